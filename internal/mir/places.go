package mir

// Place denotes a memory location: a local slot plus zero or more
// projections (field access, index, dereference) applied to it. Every
// read and write in a lowered function goes through a Place.
type Place struct {
	Local      LocalID
	Projection []PlaceElem
}

// PlaceElem is one projection step applied to a Place.
type PlaceElem interface{ placeElemNode() }

// Field projects a named field out of a struct-typed place.
type Field struct {
	Name string
	Type *Type
}

func (Field) placeElemNode() {}

// Index projects an element out of an array-typed place using a runtime
// operand as the index.
type Index struct {
	Index Operand
	Type  *Type
}

func (Index) placeElemNode() {}

// Deref projects through a reference-typed place (mutable `let` bindings
// captured by a closure are represented as references).
type Deref struct {
	Type *Type
}

func (Deref) placeElemNode() {}

// LocalPlace builds a bare Place with no projections.
func LocalPlace(id LocalID) Place { return Place{Local: id} }

// WithField returns a new Place that additionally projects field name.
func (p Place) WithField(name string, t *Type) Place {
	proj := append(append([]PlaceElem{}, p.Projection...), Field{Name: name, Type: t})
	return Place{Local: p.Local, Projection: proj}
}

// WithIndex returns a new Place that additionally projects index idx.
func (p Place) WithIndex(idx Operand, t *Type) Place {
	proj := append(append([]PlaceElem{}, p.Projection...), Index{Index: idx, Type: t})
	return Place{Local: p.Local, Projection: proj}
}
