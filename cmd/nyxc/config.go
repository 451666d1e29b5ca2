package main

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds the settings a nyx.toml project file may override. Every
// field has a zero-value-safe default; a missing or absent config file is
// not an error, it just means every flag's own default applies.
type Config struct {
	Target         string `toml:"target"`          // "native" or "wasm", default "native"
	RuntimeArchive string `toml:"runtime_archive"`  // path to the rt_* support library for linking
	Color          string `toml:"color"`            // "auto" (default), "always", "never"
	Verbose        bool   `toml:"verbose"`
}

func defaultConfig() Config {
	return Config{Target: "native", Color: "auto"}
}

// loadConfig reads path if it exists, layering its settings over the
// defaults. A missing file is not an error: most invocations have none.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
