// Package ir contains the read-only intermediate representation consumed
// by the code generation backends. The IR is built and validated by an
// external collaborator before generation begins; backends only read it.
package ir

// DataType is the closed set of type nodes a backend can encounter.
// Concrete implementations are Primitive, List, Nullable, Struct, Union
// and Alias. Backends dispatch with an exhaustive type switch; reaching
// a default branch means the IR is malformed.
type DataType interface {
	isDataType()
}

// PrimitiveKind enumerates the built-in wire types.
type PrimitiveKind string

const (
	// Void represents the absence of a value.
	Void PrimitiveKind = "Void"
	// Bool represents a boolean value.
	Bool PrimitiveKind = "Boolean"
	// Int32 represents a signed 32-bit integer.
	Int32 PrimitiveKind = "Int32"
	// Int64 represents a signed 64-bit integer.
	Int64 PrimitiveKind = "Int64"
	// UInt32 represents an unsigned 32-bit integer.
	UInt32 PrimitiveKind = "UInt32"
	// UInt64 represents an unsigned 64-bit integer.
	UInt64 PrimitiveKind = "UInt64"
	// Float32 represents a 32-bit float.
	Float32 PrimitiveKind = "Float32"
	// Float64 represents a 64-bit float.
	Float64 PrimitiveKind = "Float64"
	// String represents a UTF-8 string.
	String PrimitiveKind = "String"
	// Bytes represents a binary blob.
	Bytes PrimitiveKind = "Bytes"
	// Timestamp represents a formatted point in time.
	Timestamp PrimitiveKind = "Timestamp"
)

// Primitive is a built-in type, optionally carrying value constraints.
type Primitive struct {
	Kind PrimitiveKind

	// TimestampFormat is the serialization format string, set only when
	// Kind is Timestamp.
	TimestampFormat string

	// MinValue/MaxValue bound numeric kinds. Nil means unbounded.
	MinValue *float64
	MaxValue *float64

	// MinLength/MaxLength/Pattern constrain String kinds.
	MinLength *int
	MaxLength *int
	Pattern   string
}

// List is an ordered collection of Elem values.
type List struct {
	Elem DataType

	MinItems *int
	MaxItems *int
}

// Nullable marks its wrapped type as accepting the null wire value.
// The IR never nests Nullable directly inside Nullable.
type Nullable struct {
	Wrapped DataType
}

// TagRef is a default value referring into a union by variant tag,
// rather than a literal.
type TagRef struct {
	Tag string
}

// Field is one member of a struct, or one variant of a union. For union
// variants a Void-typed field is a bare tag with no payload.
type Field struct {
	Name string
	Type DataType
	Doc  string

	// HasDefault distinguishes an explicit default from the zero value.
	// A field with a default is always rendered optional. Default holds
	// either a literal Go value or a TagRef.
	HasDefault bool
	Default    interface{}
}

// Subtype is one (tag, struct) entry of an enumerated-subtypes
// declaration on a root struct.
type Subtype struct {
	Tag      string
	Type     *Struct
	CatchAll bool
}

// Struct is a product type with single inheritance.
type Struct struct {
	Name      string
	Namespace string
	Doc       string

	// Parent is the extended struct, or nil.
	Parent *Struct

	// Fields are the fields declared directly on this struct.
	Fields []*Field

	// AllFields is the materialized parent-then-child linearization of
	// the full inheritance chain. It is computed once at IR build time;
	// backends must never recompute it by walking Parent pointers.
	AllFields []*Field

	// EnumeratedSubtypes is non-empty iff this struct is the root of a
	// closed tag-discriminated hierarchy.
	EnumeratedSubtypes []Subtype
}

// Union is a sum type whose variants are its fields.
type Union struct {
	Name      string
	Namespace string
	Doc       string

	// Parent is a union whose variants are also this union's variants.
	Parent *Union

	Variants []*Field

	// CatchAll is the variant deserialization falls back to on an
	// unknown tag, or nil.
	CatchAll *Field
}

// Alias binds a name to another data type without introducing a new
// shape.
type Alias struct {
	Name      string
	Namespace string
	Doc       string

	Type DataType
}

// Route is one RPC of a namespace.
type Route struct {
	Name string
	Doc  string

	Request  DataType
	Response DataType
	Error    DataType

	// Attrs carries route attributes such as "style" (empty/rpc,
	// upload, download) and "host".
	Attrs map[string]string
}

// Namespace groups data types and routes. DataTypes is linearized by
// dependency: a type always appears after every type it depends on.
type Namespace struct {
	Name string
	Doc  string

	DataTypes []DataType
	Routes    []*Route
}

// Api is the root of the IR.
type Api struct {
	Namespaces []*Namespace
}

func (*Primitive) isDataType() {}
func (*List) isDataType()      {}
func (*Nullable) isDataType()  {}
func (*Struct) isDataType()    {}
func (*Union) isDataType()     {}
func (*Alias) isDataType()     {}

// HasEnumeratedSubtypes reports whether s is the root of an enumerated
// subtype hierarchy.
func (s *Struct) HasEnumeratedSubtypes() bool {
	return len(s.EnumeratedSubtypes) > 0
}

// CatchAllSubtype returns the declared catch-all subtype, or nil.
func (s *Struct) CatchAllSubtype() *Struct {
	for _, sub := range s.EnumeratedSubtypes {
		if sub.CatchAll {
			return sub.Type
		}
	}
	return nil
}

// IsMemberOfEnumeratedTree reports whether s is the root of an
// enumerated subtype hierarchy or one of its descendants.
func (s *Struct) IsMemberOfEnumeratedTree() bool {
	if s.HasEnumeratedSubtypes() {
		return true
	}
	for parent := s.Parent; parent != nil; parent = parent.Parent {
		if parent.HasEnumeratedSubtypes() {
			return true
		}
	}
	return false
}

// EnumeratedSubtypeTag walks up the parent chain to the nearest ancestor
// declaring enumerated subtypes and returns the tag naming s in that
// ancestor's subtype list. The second return is false when no ancestor
// declares subtypes or none of the declared subtypes is s, which marks
// the IR as malformed.
func (s *Struct) EnumeratedSubtypeTag() (string, bool) {
	parent := s.Parent
	for parent != nil && !parent.HasEnumeratedSubtypes() {
		parent = parent.Parent
	}
	if parent == nil {
		return "", false
	}
	for _, sub := range parent.EnumeratedSubtypes {
		if sub.Type == s {
			return sub.Tag, true
		}
	}
	return "", false
}

// UnwrapNullable strips a single Nullable wrapper, reporting whether one
// was present.
func UnwrapNullable(dt DataType) (DataType, bool) {
	if n, ok := dt.(*Nullable); ok {
		return n.Wrapped, true
	}
	return dt, false
}

// IsVoid reports whether dt is the Void primitive, after stripping a
// Nullable wrapper.
func IsVoid(dt DataType) bool {
	dt, _ = UnwrapNullable(dt)
	p, ok := dt.(*Primitive)
	return ok && p.Kind == Void
}

// IsUserDefined reports whether dt names a struct, union or alias, after
// stripping a Nullable wrapper.
func IsUserDefined(dt DataType) bool {
	dt, _ = UnwrapNullable(dt)
	switch dt.(type) {
	case *Struct, *Union, *Alias:
		return true
	}
	return false
}

// IsNumeric reports whether dt is one of the numeric primitives.
func IsNumeric(dt DataType) bool {
	p, ok := dt.(*Primitive)
	if !ok {
		return false
	}
	switch p.Kind {
	case Int32, Int64, UInt32, UInt64, Float32, Float64:
		return true
	}
	return false
}

// TypeName returns the declared name of a user-defined type and true,
// or "" and false for wrappers and primitives.
func TypeName(dt DataType) (string, bool) {
	switch t := dt.(type) {
	case *Struct:
		return t.Name, true
	case *Union:
		return t.Name, true
	case *Alias:
		return t.Name, true
	}
	return "", false
}

// TypeNamespace returns the owning namespace of a user-defined type and
// true, or "" and false otherwise.
func TypeNamespace(dt DataType) (string, bool) {
	switch t := dt.(type) {
	case *Struct:
		return t.Namespace, true
	case *Union:
		return t.Namespace, true
	case *Alias:
		return t.Namespace, true
	}
	return "", false
}

// ReferencedNamespaces returns the names of other namespaces referenced
// by ns through field, parent and route types, in first-reference order.
func (ns *Namespace) ReferencedNamespaces() []string {
	seen := map[string]struct{}{ns.Name: {}}
	var out []string

	note := func(dt DataType) {
		name, ok := TypeNamespace(dt)
		if !ok {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	var walk func(dt DataType)
	walk = func(dt DataType) {
		switch t := dt.(type) {
		case *Nullable:
			walk(t.Wrapped)
		case *List:
			walk(t.Elem)
		default:
			note(dt)
		}
	}

	for _, dt := range ns.DataTypes {
		switch t := dt.(type) {
		case *Struct:
			if t.Parent != nil {
				walk(t.Parent)
			}
			for _, f := range t.Fields {
				walk(f.Type)
			}
		case *Union:
			if t.Parent != nil {
				walk(t.Parent)
			}
			for _, v := range t.Variants {
				walk(v.Type)
			}
		case *Alias:
			walk(t.Type)
		}
	}
	for _, r := range ns.Routes {
		walk(r.Request)
		walk(r.Response)
		walk(r.Error)
	}
	return out
}
