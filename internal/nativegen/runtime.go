package nativegen

import "tinygo.org/x/go-llvm"

// externSig describes one function the runtime support library provides;
// object files nativegen emits are linked against it the same way a Go
// program links against its runtime package. Names and shapes follow the
// array/print/allocation/Async operations named in the object-output
// interface: every aggregate, closure, and channel operation bottoms out
// in one of these rather than in inline LLVM struct/array instructions.
type externSig struct {
	name    string
	params  func(b *Backend) []llvm.Type
	result  func(b *Backend) llvm.Type
	varArgs bool
}

func (b *Backend) externSigs() []externSig {
	ptr := func(b *Backend) llvm.Type { return b.ptrType() }
	word := func(b *Backend) llvm.Type { return b.wordType() }
	i1 := func(b *Backend) llvm.Type { return llvm.Int1Type() }
	void := func(b *Backend) llvm.Type { return llvm.VoidType() }

	return []externSig{
		// scalar printing, one entry point per static argument type since
		// the checker restricts print() to Int/Float/Bool/String.
		{"rt_print_int", func(b *Backend) []llvm.Type { return []llvm.Type{llvm.Int64Type()} }, void, false},
		{"rt_print_float", func(b *Backend) []llvm.Type { return []llvm.Type{llvm.DoubleType()} }, void, false},
		{"rt_print_bool", func(b *Backend) []llvm.Type { return []llvm.Type{llvm.Int1Type()} }, void, false},
		{"rt_print_string", func(b *Backend) []llvm.Type { return []llvm.Type{ptr(b)} }, void, false},

		// array handle operations; elements travel boxed as a word.
		{"rt_array_new", func(b *Backend) []llvm.Type { return []llvm.Type{llvm.Int64Type()} }, ptr, false},
		{"rt_array_len", func(b *Backend) []llvm.Type { return []llvm.Type{ptr(b)} }, func(b *Backend) llvm.Type { return llvm.Int64Type() }, false},
		{"rt_array_get", func(b *Backend) []llvm.Type { return []llvm.Type{ptr(b), llvm.Int64Type()} }, word, false},
		{"rt_array_set", func(b *Backend) []llvm.Type { return []llvm.Type{ptr(b), llvm.Int64Type(), b.wordType()} }, void, false},
		{"rt_array_push", func(b *Backend) []llvm.Type { return []llvm.Type{ptr(b), b.wordType()} }, void, false},

		// struct/enum handle operations, keyed by field name rather than a
		// precomputed byte offset: nativegen has no struct layout of its
		// own to compute one from.
		{"rt_struct_new", func(b *Backend) []llvm.Type { return []llvm.Type{llvm.Int64Type()} }, ptr, false},
		{"rt_field_get", func(b *Backend) []llvm.Type { return []llvm.Type{ptr(b), ptr(b)} }, word, false},
		{"rt_field_set", func(b *Backend) []llvm.Type { return []llvm.Type{ptr(b), ptr(b), b.wordType()} }, void, false},

		// closures: a function pointer plus a struct-handle environment.
		{"rt_closure_new", func(b *Backend) []llvm.Type { return []llvm.Type{ptr(b), ptr(b)} }, ptr, false},
		{"rt_closure_func", func(b *Backend) []llvm.Type { return []llvm.Type{ptr(b)} }, ptr, false},
		{"rt_closure_env", func(b *Backend) []llvm.Type { return []llvm.Type{ptr(b)} }, ptr, false},
		{"rt_closure_call", func(b *Backend) []llvm.Type { return []llvm.Type{ptr(b), ptr(b)} }, word, false},

		// the Async FFI trio plus the scheduler's cooperative yield point.
		{"spawn", func(b *Backend) []llvm.Type { return []llvm.Type{ptr(b), ptr(b)} }, func(b *Backend) llvm.Type { return llvm.Int64Type() }, false},
		{"await", func(b *Backend) []llvm.Type { return []llvm.Type{llvm.Int64Type()} }, word, false},
		{"yield", func(b *Backend) []llvm.Type { return nil }, void, false},

		// channels.
		{"rt_chan_send", func(b *Backend) []llvm.Type { return []llvm.Type{ptr(b), b.wordType()} }, void, false},
		{"rt_chan_recv", func(b *Backend) []llvm.Type { return []llvm.Type{ptr(b)} }, ptr, false}, // Option handle
		{"rt_chan_try_recv", func(b *Backend) []llvm.Type { return []llvm.Type{ptr(b)} }, ptr, false},
		{"rt_chan_try_send", func(b *Backend) []llvm.Type { return []llvm.Type{ptr(b), b.wordType()} }, i1, false},

		// panics (contract violations, exhaustive-match fallthrough).
		{"rt_panic", func(b *Backend) []llvm.Type { return []llvm.Type{ptr(b)} }, void, false},
	}
}

// declareExterns declares every runtime support-library entry point the
// lowering passes below may call, once, up front.
func (b *Backend) declareExterns() {
	for _, sig := range b.externSigs() {
		fnType := llvm.FunctionType(sig.result(b), sig.params(b), sig.varArgs)
		b.externs[sig.name] = llvm.AddFunction(b.module, sig.name, fnType)
	}
}

func (b *Backend) callExtern(name string, args ...llvm.Value) llvm.Value {
	fn, ok := b.externs[name]
	if !ok {
		panic("nativegen: undeclared runtime extern " + name)
	}
	return b.builder.CreateCall(fn, args, "")
}
