package wasmgen

// importSig describes one function the runtime support library provides to
// an instantiated module under the "env" import namespace — the WASM-side
// restatement of nativegen's externSig table, adapted to WASM's value types
// and its name+length string-passing convention (WASM has no implicit
// NUL-terminated C string type the way a native i8* does).
type importSig struct {
	name   string
	params []byte
	result byte // 0 means void (no result)
}

const noResult byte = 0

func runtimeImports() []importSig {
	return []importSig{
		// scalar printing, one entry point per static argument type since
		// the checker restricts print() to Int/Float/Bool/String.
		{"rt_print_int", []byte{valI64}, noResult},
		{"rt_print_float", []byte{valF64}, noResult},
		{"rt_print_bool", []byte{valI32}, noResult},
		{"rt_print_string", []byte{valI32}, noResult}, // NUL-terminated linear-memory offset

		// array handle operations; elements travel boxed as an i64 word.
		{"rt_array_new", []byte{valI64}, valI32},
		{"rt_array_len", []byte{valI32}, valI64},
		{"rt_array_get", []byte{valI32, valI64}, valI64},
		{"rt_array_set", []byte{valI32, valI64, valI64}, noResult},
		{"rt_array_push", []byte{valI32, valI64}, noResult},

		// struct/enum handle operations, keyed by a NUL-terminated name
		// offset into the data section rather than a precomputed byte
		// offset: wasmgen, like nativegen, has no struct layout of its own
		// to compute one from.
		{"rt_struct_new", []byte{valI64}, valI32},
		{"rt_field_get", []byte{valI32, valI32}, valI64},
		{"rt_field_set", []byte{valI32, valI32, valI64}, noResult},

		// closures: a global function-table index plus a struct-handle
		// environment. A closure's captured-environment shape isn't known
		// at any one call site, so closure calls always bounce through
		// rt_closure_call rather than a genuine call_indirect (contrast
		// perform dispatch in funcgen.go, whose call site has a statically
		// known signature and so uses call_indirect directly against the
		// same function table).
		{"rt_closure_new", []byte{valI32, valI32}, valI32},
		{"rt_closure_func", []byte{valI32}, valI32},
		{"rt_closure_env", []byte{valI32}, valI32},
		{"rt_closure_call", []byte{valI32, valI32}, valI64},

		// the Async FFI trio plus the scheduler's cooperative yield point.
		// Namespaced rt_spawn/rt_await/rt_yield (rather than bare
		// spawn/await/yield as on the native backend) since a WASM host
		// environment's import namespace is a single flat "env" module and
		// these names are common enough to collide with host tooling.
		{"rt_spawn", []byte{valI32, valI32}, valI64},
		{"rt_await", []byte{valI64}, valI64},
		{"rt_yield", nil, noResult},

		// channels.
		{"rt_chan_send", []byte{valI32, valI64}, noResult},
		{"rt_chan_recv", []byte{valI32}, valI32}, // Option handle
		{"rt_chan_try_recv", []byte{valI32}, valI32},
		{"rt_chan_try_send", []byte{valI32, valI64}, valI32}, // bool as i32

		// panics (contract violations, exhaustive-match fallthrough).
		{"rt_panic", []byte{valI32}, noResult},
	}
}
