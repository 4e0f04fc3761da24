// Package tsdgen emits ambient type declarations for a structurally
// typed target. Declarations are purely compile-time shapes, so no
// serializer code is produced; struct references into enumerated subtype
// hierarchies are narrowed through tagged reference interfaces instead.
package tsdgen

import (
	"fmt"
	"strings"

	"github.com/quartzidl/quartz/internal/emitter"
	"github.com/quartzidl/quartz/internal/format"
	"github.com/quartzidl/quartz/internal/ir"
)

// TypesMarker is the placeholder replaced with generated declarations in
// the template document.
const TypesMarker = "/*TYPES*/"

const timestampDefinition = "type Timestamp = string;"

// errorTypesHeader is the generic error envelope emitted ahead of the
// generated namespaces unless excluded by configuration. Tabs are
// replaced by one indentation unit.
const errorTypesHeader = `/**
 * An Error object returned from a route.
 */
interface Error<T> {
	// Text summary of the error.
	error_summary: string;
	// The error object.
	error: T;
	// User-friendly error message.
	user_message: UserMessage;
}

/**
 * User-friendly error message.
 */
interface UserMessage {
	// The message.
	text: string;
	// The locale of the message.
	locale: string;
}
`

// Config carries the declaration-backend options surfaced on the command
// line.
type Config struct {
	// SpacesPerIndent is the indentation unit size.
	SpacesPerIndent int

	// IndentLevel is the base indentation level types are emitted at
	// inside the template.
	IndentLevel int

	// ExcludeErrorTypes drops the generic error envelope from the
	// output.
	ExcludeErrorTypes bool

	// ModuleNamePrefix prefixes declared module names in per-namespace
	// output.
	ModuleNamePrefix string

	// ExportNamespaces adds the export keyword to namespace blocks in
	// combined output.
	ExportNamespaces bool

	// SplitByNamespace selects one declaration file per namespace
	// instead of a single combined output.
	SplitByNamespace bool
}

// Generator renders namespaces into ambient declaration units.
type Generator struct {
	cfg Config

	// extraParams indexes injected route parameters by request struct.
	extraParams map[*ir.Struct][]ExtraParam
}

// New returns a generator for the given configuration. extraParams may
// be nil.
func New(cfg Config, extraParams map[*ir.Struct][]ExtraParam) *Generator {
	if cfg.SpacesPerIndent <= 0 {
		cfg.SpacesPerIndent = 2
	}
	if cfg.IndentLevel < 0 {
		cfg.IndentLevel = 0
	}
	return &Generator{cfg: cfg, extraParams: extraParams}
}

// FileName returns the deterministic output name for a namespace unit.
func (g *Generator) FileName(ns *ir.Namespace) string {
	return ns.Name + ".d.ts"
}

type malformedIRError struct {
	msg string
}

func (e *malformedIRError) Error() string {
	return "malformed IR: " + e.msg
}

func fatalf(f string, v ...interface{}) {
	panic(&malformedIRError{msg: fmt.Sprintf(f, v...)})
}

// HasTypes reports whether any of the namespaces contains data types.
// Units without types are skipped entirely.
func HasTypes(namespaces []*ir.Namespace) bool {
	for _, ns := range namespaces {
		if len(ns.DataTypes) > 0 {
			return true
		}
	}
	return false
}

// Generate renders the given namespaces into the template, splicing the
// declarations at the TypesMarker position. The unit is fully buffered;
// nothing is produced on a fault.
func (g *Generator) Generate(namespaces []*ir.Namespace, template string) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			fault, ok := r.(*malformedIRError)
			if !ok {
				panic(r)
			}
			out = nil
			err = fault
		}
	}()

	body, err := g.generateBody(namespaces)
	if err != nil {
		return nil, err
	}
	spliced, err := SpliceTemplate(template, body)
	if err != nil {
		return nil, err
	}
	return []byte(spliced), nil
}

// SpliceTemplate replaces the single TypesMarker occurrence in template
// with body, preserving the template's surrounding text verbatim. The
// newline at the splice boundary is neither lost nor duplicated. A
// missing marker is a configuration fault.
func SpliceTemplate(template, body string) (string, error) {
	idx := strings.Index(template, TypesMarker)
	if idx < 0 {
		return "", fmt.Errorf("template is missing the %s marker", TypesMarker)
	}
	prefix := template[:idx]
	suffix := template[idx+len(TypesMarker):]

	if prefix != "" && !strings.HasSuffix(prefix, "\n") {
		prefix += "\n"
	}
	if body != "" && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	// The generated body carries its own trailing newline; drop the one
	// that followed the marker so the boundary stays single-spaced.
	suffix = strings.TrimPrefix(suffix, "\n")

	return prefix + body + suffix, nil
}

func (g *Generator) generateBody(namespaces []*ir.Namespace) (string, error) {
	e := emitter.New(g.cfg.SpacesPerIndent)
	baseIndent := g.cfg.SpacesPerIndent * g.cfg.IndentLevel

	e.IndentBy(baseIndent, func() {
		if !g.cfg.ExcludeErrorTypes {
			g.emitErrorTypes(e)
		}
		if !g.cfg.SplitByNamespace {
			e.Emit(timestampDefinition)
			e.BlankLine()
		}
		for _, ns := range namespaces {
			g.emitNamespace(e, ns)
		}
	})

	return e.String(), nil
}

func (g *Generator) emitErrorTypes(e *emitter.Emitter) {
	header := strings.ReplaceAll(errorTypesHeader, "\t", strings.Repeat(" ", e.Unit()))
	for _, line := range strings.Split(strings.TrimRight(header, "\n"), "\n") {
		e.Emit(line)
	}
	e.BlankLine()
}

func (g *Generator) emitNamespace(e *emitter.Emitter, ns *ir.Namespace) {
	// Namespaces without data types produce no declarations.
	if len(ns.DataTypes) == 0 {
		return
	}

	if g.cfg.SplitByNamespace {
		for _, ref := range ns.ReferencedNamespaces() {
			e.Emitf("import * as %s from '%s%s';", ref, g.cfg.ModuleNamePrefix, ref)
		}
	}

	if ns.Doc != "" {
		g.emitDocHeader(e, ns.Doc)
	}
	e.Emit(g.topLevelDeclaration(ns.Name))
	e.Indent(func() {
		for _, dt := range ns.DataTypes {
			g.emitType(e, ns, dt)
		}
		if g.cfg.SplitByNamespace {
			e.Emit(timestampDefinition)
		}
	})
	e.Emit("}")
	e.BlankLine()
}

func (g *Generator) topLevelDeclaration(name string) string {
	if g.cfg.SplitByNamespace {
		return fmt.Sprintf("declare module '%s%s' {", g.cfg.ModuleNamePrefix, name)
	}
	if g.cfg.ExportNamespaces {
		return fmt.Sprintf("export namespace %s {", name)
	}
	return fmt.Sprintf("namespace %s {", name)
}

func (g *Generator) emitDocHeader(e *emitter.Emitter, doc string) {
	e.Emit("/**")
	e.EmitWrapped(doc, " * ")
	e.Emit(" */")
}

func (g *Generator) emitType(e *emitter.Emitter, ns *ir.Namespace, dt ir.DataType) {
	switch t := dt.(type) {
	case *ir.Alias:
		g.emitAlias(e, ns, t)
	case *ir.Struct:
		g.emitStruct(e, ns, t)
	case *ir.Union:
		g.emitUnion(e, ns, t)
	default:
		fatalf("unsupported top-level data type %T in namespace %s", dt, ns.Name)
	}
}

// typeName resolves the declared name of a user-defined type, qualified
// with its namespace when referenced from another namespace.
func (g *Generator) typeName(dt ir.DataType, cur *ir.Namespace) string {
	name, ok := ir.TypeName(dt)
	if !ok {
		fatalf("expected a user-defined type, got %T", dt)
	}
	nsName, _ := ir.TypeNamespace(dt)
	if nsName != cur.Name {
		return nsName + "." + name
	}
	return name
}

// typeExpr resolves a data type to its declaration expression. Nullable
// wrappers carry no expression of their own: optionality surfaces as the
// field's optional marker instead.
func (g *Generator) typeExpr(dt ir.DataType, cur *ir.Namespace) string {
	inner, _ := ir.UnwrapNullable(dt)
	switch t := inner.(type) {
	case *ir.List:
		return fmt.Sprintf("Array<%s>", g.typeExpr(t.Elem, cur))
	case *ir.Primitive:
		return primitiveExpr(t)
	case *ir.Struct:
		// References into an enumerated subtype tree narrow through the
		// tagged reference shape.
		if t.IsMemberOfEnumeratedTree() {
			return g.polymorphicReference(t, cur)
		}
		return g.typeName(t, cur)
	case *ir.Union, *ir.Alias:
		return g.typeName(inner, cur)
	default:
		fatalf("unsupported data type %T", inner)
		return ""
	}
}

func primitiveExpr(p *ir.Primitive) string {
	switch p.Kind {
	case ir.String:
		return "string"
	case ir.Bool:
		return "boolean"
	case ir.Bytes:
		return "Uint8Array"
	case ir.Void:
		return "void"
	case ir.Timestamp:
		return "Timestamp"
	case ir.Int32, ir.Int64, ir.UInt32, ir.UInt64, ir.Float32, ir.Float64:
		return "number"
	}
	fatalf("unsupported primitive kind %q", p.Kind)
	return ""
}

// polymorphicReference names the tagged reference interface of a struct
// participating in an enumerated subtype tree.
func (g *Generator) polymorphicReference(st *ir.Struct, cur *ir.Namespace) string {
	return g.typeName(st, cur) + "Reference"
}

func (g *Generator) emitAlias(e *emitter.Emitter, ns *ir.Namespace, alias *ir.Alias) {
	if alias.Doc != "" {
		g.emitDocHeader(e, alias.Doc)
	}
	var referent string
	if _, ok := ir.TypeName(alias.Type); ok {
		referent = g.typeName(alias.Type, ns)
	} else {
		referent = g.typeExpr(alias.Type, ns)
	}
	e.Emitf("export type %s = %s;", alias.Name, referent)
	e.BlankLine()
}

func (g *Generator) emitStruct(e *emitter.Emitter, ns *ir.Namespace, st *ir.Struct) {
	if st.Doc != "" {
		g.emitDocHeader(e, st.Doc)
	}
	extends := ""
	if st.Parent != nil {
		extends = " extends " + g.typeName(st.Parent, ns)
	}
	e.Emitf("export interface %s%s {", st.Name, extends)
	e.Indent(func() {
		for _, param := range g.extraParams[st] {
			if param.Docstring != "" {
				g.emitDocHeader(e, param.Docstring)
			}
			// Injected parameters are always optional.
			e.Emitf("%s?: %s;", param.Name, param.Type)
		}

		for _, field := range st.Fields {
			doc := field.Doc
			_, nullable := ir.UnwrapNullable(field.Type)
			optional := nullable || field.HasDefault
			if field.HasDefault {
				if doc != "" {
					doc += "\n\n"
				}
				doc += fmt.Sprintf("Defaults to %s.", defaultText(field))
			}
			if doc != "" {
				g.emitDocHeader(e, doc)
			}
			fieldName := field.Name
			if optional {
				fieldName += "?"
			}
			e.Emitf("%s: %s;", fieldName, g.typeExpr(field.Type, ns))
		}
	})
	e.Emit("}")
	e.BlankLine()

	if st.IsMemberOfEnumeratedTree() {
		g.emitReferenceShape(e, ns, st)
	}
}

// defaultText renders a default for documentation, as a dotted tag for
// union-valued defaults.
func defaultText(field *ir.Field) string {
	if ref, ok := field.Default.(ir.TagRef); ok {
		return "." + ref.Tag
	}
	if ref, ok := field.Default.(*ir.TagRef); ok {
		return "." + ref.Tag
	}
	return fmt.Sprintf("%v", field.Default)
}

// emitReferenceShape emits the tagged reference interface used to
// narrow references into an enumerated subtype tree: a closed tag union
// for the root, a single literal tag for a leaf subtype.
func (g *Generator) emitReferenceShape(e *emitter.Emitter, ns *ir.Namespace, st *ir.Struct) {
	name := st.Name
	if st.HasEnumeratedSubtypes() {
		tags := make([]string, 0, len(st.EnumeratedSubtypes))
		for _, sub := range st.EnumeratedSubtypes {
			tags = append(tags, fmt.Sprintf("%q", sub.Tag))
		}
		g.emitDocHeader(e, fmt.Sprintf("Reference to the %s polymorphic type. Contains a .tag property to let you discriminate between possible subtypes.", name))
		e.Emitf("export interface %sReference extends %s {", name, name)
		e.Indent(func() {
			g.emitDocHeader(e, "Tag identifying the subtype variant.")
			e.Emitf("'.tag': %s;", strings.Join(tags, " | "))
		})
		e.Emit("}")
		e.BlankLine()
		return
	}

	tag, ok := st.EnumeratedSubtypeTag()
	if !ok {
		fatalf("struct %s.%s is in an enumerated subtype tree but matches no ancestor tag", st.Namespace, st.Name)
	}
	g.emitDocHeader(e, fmt.Sprintf("Reference to the %s type, identified by the value of the .tag property.", name))
	e.Emitf("export interface %sReference extends %s {", name, name)
	e.Indent(func() {
		g.emitDocHeader(e, "Tag identifying this subtype variant. This field is only present when needed to discriminate between multiple possible subtypes.")
		e.Emitf("'.tag': '%s';", tag)
	})
	e.Emit("}")
	e.BlankLine()
}

// emitUnion emits one tagged interface per variant and the top-level sum
// type, parent first, then variants in declaration order.
func (g *Generator) emitUnion(e *emitter.Emitter, ns *ir.Namespace, union *ir.Union) {
	unionName := union.Name
	var memberNames []string
	if union.Parent != nil {
		memberNames = append(memberNames, g.typeName(union.Parent, ns))
	}

	for _, variant := range union.Variants {
		if variant.Doc != "" {
			g.emitDocHeader(e, variant.Doc)
		}
		variantName := unionName + format.ToPascalCase(variant.Name)
		memberNames = append(memberNames, variantName)

		variantType, _ := ir.UnwrapNullable(variant.Type)
		inlineStruct := inlineExtendableStruct(variantType)

		if inlineStruct != nil {
			e.Emitf("export interface %s extends %s {", variantName, g.typeExpr(variantType, ns))
		} else {
			e.Emitf("export interface %s {", variantName)
		}
		e.Indent(func() {
			// The discriminant key starts with a dot, so it must be
			// quoted.
			e.Emitf("'.tag': '%s';", variant.Name)
			if !ir.IsVoid(variantType) && inlineStruct == nil {
				e.Emitf("%s: %s;", variant.Name, g.typeExpr(variantType, ns))
			}
		})
		e.Emit("}")
		e.BlankLine()
	}

	if union.Doc != "" {
		g.emitDocHeader(e, union.Doc)
	}
	e.Emitf("export type %s = %s;", unionName, strings.Join(memberNames, " | "))
	e.BlankLine()
}

// inlineExtendableStruct returns the variant payload struct when its
// fields can be inlined into the variant shape: a struct without its own
// enumerated subtypes.
func inlineExtendableStruct(dt ir.DataType) *ir.Struct {
	st, ok := dt.(*ir.Struct)
	if !ok || st.HasEnumeratedSubtypes() {
		return nil
	}
	return st
}
