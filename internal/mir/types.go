package mir

import "github.com/nyxlang/nyx/internal/checker"

// TypeKind tags the variant of a Type.
type TypeKind int

const (
	KindInt TypeKind = iota
	KindFloat
	KindString
	KindBool
	KindVoid
	KindStruct
	KindEnum
	KindArray
	KindChannel
	KindClosure
	KindTypeVar
	KindResult
	KindOption
)

// Type is the MIR's own tagged-variant type representation. It is built
// from a checker.Type at lowering time (see internal/lower) and additionally
// carries the shapes the checker's Type cannot: channel element types and
// closure signatures, both introduced after type checking runs.
type Type struct {
	Kind       TypeKind
	Name       string  // struct/enum/type-var name
	Elem       *Type   // Array/Channel element type
	Params     []*Type // struct field types in declaration order / Result&Option payloads
	ClosureIn  []*Type // closure parameter types
	ClosureOut *Type   // closure return type
}

var (
	TypeInt    = &Type{Kind: KindInt, Name: "Int"}
	TypeFloat  = &Type{Kind: KindFloat, Name: "Float"}
	TypeString = &Type{Kind: KindString, Name: "String"}
	TypeBool   = &Type{Kind: KindBool, Name: "Bool"}
	TypeVoid   = &Type{Kind: KindVoid, Name: "Void"}
)

// FromChecker converts a checker.Type (the type-checking phase's type
// representation) into a mir.Type. Channel and closure types have no
// checker.Type equivalent since the checker only validates declared
// surface types; lowering constructs those mir.Type values directly where
// it lowers spawn/channel/closure expressions.
func FromChecker(t *checker.Type) *Type {
	if t == nil {
		return TypeVoid
	}
	switch {
	case t.IsTypeVar:
		return &Type{Kind: KindTypeVar, Name: t.Name}
	case t.Name == "Array":
		var elem *Type
		if len(t.TypeParams) == 1 {
			elem = FromChecker(t.TypeParams[0])
		}
		return &Type{Kind: KindArray, Name: "Array", Elem: elem}
	case t.Name == "Result":
		params := make([]*Type, 0, 2)
		for _, p := range t.TypeParams {
			params = append(params, FromChecker(p))
		}
		return &Type{Kind: KindResult, Name: "Result", Params: params}
	case t.Name == "Option":
		params := make([]*Type, 0, 1)
		for _, p := range t.TypeParams {
			params = append(params, FromChecker(p))
		}
		return &Type{Kind: KindOption, Name: "Option", Params: params}
	case t.IsEntity:
		return &Type{Kind: KindStruct, Name: t.Name}
	case t.IsEnum:
		return &Type{Kind: KindEnum, Name: t.Name}
	case t.Name == "Int":
		return TypeInt
	case t.Name == "Float":
		return TypeFloat
	case t.Name == "String":
		return TypeString
	case t.Name == "Bool":
		return TypeBool
	default:
		return TypeVoid
	}
}

// Channel constructs the MIR type of a typed channel carrying elem values.
func Channel(elem *Type) *Type {
	return &Type{Kind: KindChannel, Name: "Channel", Elem: elem}
}

// Closure constructs the MIR type of a closure with the given signature.
func Closure(in []*Type, out *Type) *Type {
	return &Type{Kind: KindClosure, Name: "closure", ClosureIn: in, ClosureOut: out}
}

// Equal reports structural equality, treating any KindTypeVar as matching
// anything (monomorphization is what resolves type variables to concrete
// types; code built before that pass runs must tolerate them).
func (t *Type) Equal(other *Type) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.Kind == KindTypeVar || other.Kind == KindTypeVar {
		return true
	}
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case KindStruct, KindEnum:
		return t.Name == other.Name
	case KindArray, KindChannel:
		return t.Elem.Equal(other.Elem)
	case KindResult, KindOption:
		if len(t.Params) != len(other.Params) {
			return false
		}
		for i := range t.Params {
			if !t.Params[i].Equal(other.Params[i]) {
				return false
			}
		}
		return true
	case KindClosure:
		if len(t.ClosureIn) != len(other.ClosureIn) {
			return false
		}
		for i := range t.ClosureIn {
			if !t.ClosureIn[i].Equal(other.ClosureIn[i]) {
				return false
			}
		}
		return t.ClosureOut.Equal(other.ClosureOut)
	default:
		return true
	}
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindArray:
		return "Array<" + t.Elem.String() + ">"
	case KindChannel:
		return "Channel<" + t.Elem.String() + ">"
	case KindTypeVar:
		return t.Name
	case KindClosure:
		return "closure"
	default:
		return t.Name
	}
}
