package wasmgen

import "github.com/nyxlang/nyx/internal/mir"

// wasmType maps a mir.Type to the WASM value type its runtime representation
// occupies on the stack. Primitive kinds keep their natural width; every
// aggregate/reference kind (struct, enum, array, closure, Result, Option,
// channel) is an i32 handle index into a table the runtime support library
// owns — WASM has no struct/pointer type of its own for nativegen to reuse,
// so wasmgen adopts the same "opaque runtime handle" convention nativegen
// uses for i8* on the native side, just narrower (i32 instead of a 64-bit
// pointer, since nothing outside the runtime ever dereferences a handle).
func wasmType(t *mir.Type) byte {
	if t == nil {
		return valI32 // void: never actually pushed/read, placeholder only
	}
	switch t.Kind {
	case mir.KindInt:
		return valI64
	case mir.KindFloat:
		return valF64
	case mir.KindBool:
		return valI32
	default: // String and every aggregate/reference kind
		return valI32
	}
}

// isVoid reports whether t denotes no return value at all (as opposed to a
// handle-typed value, which still occupies a wasm slot).
func isVoid(t *mir.Type) bool {
	return t == nil || t.Kind == mir.KindVoid
}

// wordType is the boxed-value width every runtime import call passes
// non-pointer scalars and handles through, exactly as toWord/fromWord do on
// the native backend.
const wordType = valI64

// emitToWord appends the bytecode narrowing/widening a value of static type
// t, already on the stack in its natural wasmType(t) representation, into
// the i64 word runtime imports expect.
func emitToWord(buf []byte, t *mir.Type) []byte {
	if t == nil {
		return append(buf, opDrop, opI64Const, 0)
	}
	switch t.Kind {
	case mir.KindInt:
		return buf // already i64
	case mir.KindFloat:
		return append(buf, opI64ReinterpretF64)
	case mir.KindBool:
		return append(buf, opI64ExtendI32U)
	default: // String/handle: i32 index, zero-extended
		return append(buf, opI64ExtendI32U)
	}
}

// emitFromWord is emitToWord's inverse: it narrows/reinterprets an i64 word
// already on the stack back into t's natural wasmType(t) representation.
func emitFromWord(buf []byte, t *mir.Type) []byte {
	if t == nil {
		return append(buf, opDrop)
	}
	switch t.Kind {
	case mir.KindInt:
		return buf // already i64
	case mir.KindFloat:
		return append(buf, opF64ReinterpretI64)
	case mir.KindBool:
		return append(buf, opI32WrapI64)
	default:
		return append(buf, opI32WrapI64)
	}
}

// operationIndex mirrors nativegen's own lookup: the declared ordinal of
// opName within effectName, the same value a handler vtable's
// construction and a perform's dispatch both key off of.
func operationIndex(prog *mir.Program, effectName, opName string) int64 {
	def, ok := prog.EffectByName(effectName)
	if !ok {
		return 0
	}
	for i, op := range def.Operations {
		if op.Name == opName {
			return int64(i)
		}
	}
	return 0
}

// variantTag mirrors nativegen's own lookup: the declared ordinal of
// variantName within enumName, the same value an AggregateRvalue's
// construction and a SwitchInt's enum-tag dispatch both key off of.
func variantTag(prog *mir.Program, enumName, variantName string) int64 {
	def, ok := prog.EnumByName(enumName)
	if !ok {
		return 0
	}
	for i, v := range def.Variants {
		if v.Name == variantName {
			return int64(i)
		}
	}
	return 0
}
