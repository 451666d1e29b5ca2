package nativegen

import (
	"tinygo.org/x/go-llvm"

	"github.com/nyxlang/nyx/internal/mir"
)

// llvmType maps a mir.Type to its native LLVM representation. Primitive
// kinds map to a concrete LLVM type; every aggregate/reference kind
// (struct, enum, array, closure, Result, Option, channel) maps to an
// opaque `i8*` handle the runtime support library allocates and owns —
// nativegen never synthesizes a struct layout of its own.
func (b *Backend) llvmType(t *mir.Type) llvm.Type {
	if t == nil {
		return llvm.VoidType()
	}
	switch t.Kind {
	case mir.KindInt:
		return llvm.Int64Type()
	case mir.KindFloat:
		return llvm.DoubleType()
	case mir.KindBool:
		return llvm.Int1Type()
	case mir.KindVoid:
		return llvm.VoidType()
	case mir.KindString:
		return b.ptrType()
	default: // Struct, Enum, Array, Channel, Closure, Result, Option, TypeVar
		return b.ptrType()
	}
}

// ptrType is the runtime handle type every aggregate value lowers to.
func (b *Backend) ptrType() llvm.Type {
	return llvm.PointerType(llvm.Int8Type(), 0)
}

// wordType is the boxed-value width runtime helper calls pass non-pointer
// scalars through as, so a single generic helper (array element get/set,
// named-field get/set, closure argument marshalling) can carry any of
// Int/Float/Bool/a handle without a family of type-specific entry points.
func (b *Backend) wordType() llvm.Type { return llvm.Int64Type() }

// toWord narrows/widens v (of static type t) into the i64 word runtime
// helpers expect.
func (b *Backend) toWord(v llvm.Value, t *mir.Type) llvm.Value {
	if t == nil {
		return llvm.ConstInt(b.wordType(), 0, false)
	}
	switch t.Kind {
	case mir.KindInt:
		return v
	case mir.KindBool:
		return b.builder.CreateZExt(v, b.wordType(), "box.bool")
	case mir.KindFloat:
		return b.builder.CreateBitCast(v, b.wordType(), "box.float")
	case mir.KindVoid:
		return llvm.ConstInt(b.wordType(), 0, false)
	default:
		return b.builder.CreatePtrToInt(v, b.wordType(), "box.ptr")
	}
}

// fromWord is toWord's inverse: it recovers a value of static type t from a
// boxed i64 word a runtime helper returned.
func (b *Backend) fromWord(w llvm.Value, t *mir.Type) llvm.Value {
	if t == nil {
		return w
	}
	switch t.Kind {
	case mir.KindInt:
		return w
	case mir.KindBool:
		return b.builder.CreateTrunc(w, llvm.Int1Type(), "unbox.bool")
	case mir.KindFloat:
		return b.builder.CreateBitCast(w, llvm.DoubleType(), "unbox.float")
	case mir.KindVoid:
		return w
	default:
		return b.builder.CreateIntToPtr(w, b.ptrType(), "unbox.ptr")
	}
}

// operationIndex returns the declared ordinal of opName within the named
// effect, the same index a handler vtable's construction and a perform's
// dispatch both key off of.
func (b *Backend) operationIndex(effectName, opName string) int64 {
	def, ok := b.prog.EffectByName(effectName)
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

// variantTag returns the declared ordinal of variantName within the enum
// named enumName, the same tag value an AggregateRvalue's construction and
// a SwitchInt's enum-tag dispatch both key off of.
func (b *Backend) variantTag(enumName, variantName string) int64 {
	def, ok := b.prog.EnumByName(enumName)
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
