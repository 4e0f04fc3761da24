// Package irjson loads a serialized IR document, the hand-off format
// produced by the external IDL front end. Documents are JSON; YAML is
// accepted by converting to JSON first. The document is assumed already
// validated by the front end: the loader materializes object identity
// and field linearization, it does not re-validate semantics.
package irjson

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/quartzidl/quartz/internal/ir"
)

type document struct {
	Namespaces []namespaceDoc `json:"namespaces"`
}

type namespaceDoc struct {
	Name   string     `json:"name"`
	Doc    string     `json:"doc,omitempty"`
	Types  []typeDoc  `json:"types,omitempty"`
	Routes []routeDoc `json:"routes,omitempty"`
}

type typeDoc struct {
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	Doc    string `json:"doc,omitempty"`
	Parent string `json:"parent,omitempty"`

	// struct
	Fields             []fieldDoc   `json:"fields,omitempty"`
	EnumeratedSubtypes []subtypeDoc `json:"enumerated_subtypes,omitempty"`

	// union
	Variants []fieldDoc `json:"variants,omitempty"`
	CatchAll string     `json:"catch_all,omitempty"`

	// alias
	Type *typeNode `json:"type,omitempty"`
}

type subtypeDoc struct {
	Tag      string `json:"tag"`
	Type     string `json:"type"`
	CatchAll bool   `json:"catch_all,omitempty"`
}

type fieldDoc struct {
	Name    string          `json:"name"`
	Type    *typeNode       `json:"type"`
	Doc     string          `json:"doc,omitempty"`
	Default json.RawMessage `json:"default,omitempty"`
}

type routeDoc struct {
	Name     string            `json:"name"`
	Doc      string            `json:"doc,omitempty"`
	Request  *typeNode         `json:"request"`
	Response *typeNode         `json:"response"`
	Error    *typeNode         `json:"error"`
	Attrs    map[string]string `json:"attrs,omitempty"`
}

// typeNode is the recursive wire form of a data type reference.
type typeNode struct {
	Primitive string `json:"primitive,omitempty"`
	Format    string `json:"format,omitempty"`

	MinValue *float64 `json:"min_value,omitempty"`
	MaxValue *float64 `json:"max_value,omitempty"`

	MinLength *int   `json:"min_length,omitempty"`
	MaxLength *int   `json:"max_length,omitempty"`
	Pattern   string `json:"pattern,omitempty"`

	List     *typeNode `json:"list,omitempty"`
	MinItems *int      `json:"min_items,omitempty"`
	MaxItems *int      `json:"max_items,omitempty"`

	Nullable *typeNode `json:"nullable,omitempty"`

	// Ref names a user-defined type, "Name" within the same namespace
	// or "namespace.Name" across namespaces.
	Ref string `json:"ref,omitempty"`
}

// tagDefault is the wire form of a union-tag-valued default.
type tagDefault struct {
	Tag string `json:"tag"`
}

// LoadFile reads and decodes an IR document from path.
func LoadFile(path string) (*ir.Api, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read IR document: %w", err)
	}
	return Load(data)
}

// Load decodes an IR document from JSON or YAML bytes.
func Load(data []byte) (*ir.Api, error) {
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("could not parse IR document: %w", err)
	}

	var doc document
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, fmt.Errorf("could not decode IR document: %w", err)
	}

	l := &loader{named: make(map[string]ir.DataType)}
	return l.build(&doc)
}

type loader struct {
	// named indexes user-defined type shells by "namespace.Name".
	named map[string]ir.DataType
}

func (l *loader) build(doc *document) (*ir.Api, error) {
	api := &ir.Api{}

	// First pass: register a shell for every named type so references
	// resolve regardless of declaration order across namespaces.
	for i := range doc.Namespaces {
		nsDoc := &doc.Namespaces[i]
		for j := range nsDoc.Types {
			td := &nsDoc.Types[j]
			key := nsDoc.Name + "." + td.Name
			switch td.Kind {
			case "struct":
				l.named[key] = &ir.Struct{Name: td.Name, Namespace: nsDoc.Name, Doc: td.Doc}
			case "union":
				l.named[key] = &ir.Union{Name: td.Name, Namespace: nsDoc.Name, Doc: td.Doc}
			case "alias":
				l.named[key] = &ir.Alias{Name: td.Name, Namespace: nsDoc.Name, Doc: td.Doc}
			default:
				return nil, fmt.Errorf("namespace %s: type %s has unsupported kind %q", nsDoc.Name, td.Name, td.Kind)
			}
		}
	}

	// Second pass: resolve parents, fields, variants, subtypes, aliases
	// and routes.
	for i := range doc.Namespaces {
		nsDoc := &doc.Namespaces[i]
		ns := &ir.Namespace{Name: nsDoc.Name, Doc: nsDoc.Doc}

		for j := range nsDoc.Types {
			td := &nsDoc.Types[j]
			dt, err := l.fillType(nsDoc.Name, td)
			if err != nil {
				return nil, fmt.Errorf("namespace %s: type %s: %w", nsDoc.Name, td.Name, err)
			}
			ns.DataTypes = append(ns.DataTypes, dt)
		}

		for j := range nsDoc.Routes {
			rd := &nsDoc.Routes[j]
			route, err := l.buildRoute(nsDoc.Name, rd)
			if err != nil {
				return nil, fmt.Errorf("namespace %s: route %s: %w", nsDoc.Name, rd.Name, err)
			}
			ns.Routes = append(ns.Routes, route)
		}

		api.Namespaces = append(api.Namespaces, ns)
	}

	// Materialize the inheritance linearization once, after all parent
	// pointers are in place.
	for _, ns := range api.Namespaces {
		for _, dt := range ns.DataTypes {
			if st, ok := dt.(*ir.Struct); ok {
				materializeAllFields(st)
			}
		}
	}

	return api, nil
}

func (l *loader) fillType(nsName string, td *typeDoc) (ir.DataType, error) {
	shell := l.named[nsName+"."+td.Name]

	switch t := shell.(type) {
	case *ir.Struct:
		if td.Parent != "" {
			parent, err := l.resolveRef(nsName, td.Parent)
			if err != nil {
				return nil, err
			}
			parentStruct, ok := parent.(*ir.Struct)
			if !ok {
				return nil, fmt.Errorf("parent %q is not a struct", td.Parent)
			}
			t.Parent = parentStruct
		}
		for i := range td.Fields {
			field, err := l.buildField(nsName, &td.Fields[i])
			if err != nil {
				return nil, err
			}
			t.Fields = append(t.Fields, field)
		}
		for _, sd := range td.EnumeratedSubtypes {
			sub, err := l.resolveRef(nsName, sd.Type)
			if err != nil {
				return nil, err
			}
			subStruct, ok := sub.(*ir.Struct)
			if !ok {
				return nil, fmt.Errorf("enumerated subtype %q is not a struct", sd.Type)
			}
			t.EnumeratedSubtypes = append(t.EnumeratedSubtypes, ir.Subtype{
				Tag:      sd.Tag,
				Type:     subStruct,
				CatchAll: sd.CatchAll,
			})
		}
		return t, nil

	case *ir.Union:
		if td.Parent != "" {
			parent, err := l.resolveRef(nsName, td.Parent)
			if err != nil {
				return nil, err
			}
			parentUnion, ok := parent.(*ir.Union)
			if !ok {
				return nil, fmt.Errorf("parent %q is not a union", td.Parent)
			}
			t.Parent = parentUnion
		}
		for i := range td.Variants {
			variant, err := l.buildField(nsName, &td.Variants[i])
			if err != nil {
				return nil, err
			}
			t.Variants = append(t.Variants, variant)
			if td.CatchAll != "" && variant.Name == td.CatchAll {
				t.CatchAll = variant
			}
		}
		if td.CatchAll != "" && t.CatchAll == nil {
			return nil, fmt.Errorf("catch_all %q names no variant", td.CatchAll)
		}
		return t, nil

	case *ir.Alias:
		if td.Type == nil {
			return nil, fmt.Errorf("alias has no referent type")
		}
		referent, err := l.resolveType(nsName, td.Type)
		if err != nil {
			return nil, err
		}
		t.Type = referent
		return t, nil
	}

	return nil, fmt.Errorf("unregistered type")
}

func (l *loader) buildField(nsName string, fd *fieldDoc) (*ir.Field, error) {
	if fd.Type == nil {
		return nil, fmt.Errorf("field %s has no type", fd.Name)
	}
	dt, err := l.resolveType(nsName, fd.Type)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", fd.Name, err)
	}

	field := &ir.Field{Name: fd.Name, Type: dt, Doc: fd.Doc}
	if fd.Default != nil {
		field.HasDefault = true
		var tagRef tagDefault
		if json.Unmarshal(fd.Default, &tagRef) == nil && tagRef.Tag != "" {
			field.Default = ir.TagRef{Tag: tagRef.Tag}
		} else {
			var literal interface{}
			if err := json.Unmarshal(fd.Default, &literal); err != nil {
				return nil, fmt.Errorf("field %s: invalid default: %w", fd.Name, err)
			}
			field.Default = literal
		}
	}
	return field, nil
}

func (l *loader) buildRoute(nsName string, rd *routeDoc) (*ir.Route, error) {
	resolve := func(what string, node *typeNode) (ir.DataType, error) {
		if node == nil {
			// An omitted route type defaults to Void.
			return &ir.Primitive{Kind: ir.Void}, nil
		}
		dt, err := l.resolveType(nsName, node)
		if err != nil {
			return nil, fmt.Errorf("%s type: %w", what, err)
		}
		return dt, nil
	}

	request, err := resolve("request", rd.Request)
	if err != nil {
		return nil, err
	}
	response, err := resolve("response", rd.Response)
	if err != nil {
		return nil, err
	}
	errType, err := resolve("error", rd.Error)
	if err != nil {
		return nil, err
	}

	attrs := rd.Attrs
	if attrs == nil {
		attrs = map[string]string{}
	}
	return &ir.Route{
		Name:     rd.Name,
		Doc:      rd.Doc,
		Request:  request,
		Response: response,
		Error:    errType,
		Attrs:    attrs,
	}, nil
}

func (l *loader) resolveType(nsName string, node *typeNode) (ir.DataType, error) {
	switch {
	case node.Nullable != nil:
		inner, err := l.resolveType(nsName, node.Nullable)
		if err != nil {
			return nil, err
		}
		return &ir.Nullable{Wrapped: inner}, nil

	case node.List != nil:
		elem, err := l.resolveType(nsName, node.List)
		if err != nil {
			return nil, err
		}
		return &ir.List{Elem: elem, MinItems: node.MinItems, MaxItems: node.MaxItems}, nil

	case node.Ref != "":
		return l.resolveRef(nsName, node.Ref)

	case node.Primitive != "":
		kind, err := primitiveKind(node.Primitive)
		if err != nil {
			return nil, err
		}
		return &ir.Primitive{
			Kind:            kind,
			TimestampFormat: node.Format,
			MinValue:        node.MinValue,
			MaxValue:        node.MaxValue,
			MinLength:       node.MinLength,
			MaxLength:       node.MaxLength,
			Pattern:         node.Pattern,
		}, nil
	}

	return nil, fmt.Errorf("empty type node")
}

// resolveRef resolves "Name" against the current namespace and
// "namespace.Name" absolutely.
func (l *loader) resolveRef(nsName, ref string) (ir.DataType, error) {
	key := ref
	if !strings.Contains(ref, ".") {
		key = nsName + "." + ref
	}
	dt, ok := l.named[key]
	if !ok {
		return nil, fmt.Errorf("unresolved type reference %q", ref)
	}
	return dt, nil
}

func primitiveKind(name string) (ir.PrimitiveKind, error) {
	switch ir.PrimitiveKind(name) {
	case ir.Void, ir.Bool, ir.Int32, ir.Int64, ir.UInt32, ir.UInt64,
		ir.Float32, ir.Float64, ir.String, ir.Bytes, ir.Timestamp:
		return ir.PrimitiveKind(name), nil
	}
	return "", fmt.Errorf("unsupported primitive kind %q", name)
}

// materializeAllFields computes the parent-then-child field
// linearization, memoized on the struct itself.
func materializeAllFields(st *ir.Struct) []*ir.Field {
	if st.AllFields != nil {
		return st.AllFields
	}
	var all []*ir.Field
	if st.Parent != nil {
		all = append(all, materializeAllFields(st.Parent)...)
	}
	all = append(all, st.Fields...)
	if all == nil {
		all = []*ir.Field{}
	}
	st.AllFields = all
	return all
}
