// Package swiftgen emits object-oriented target source for each
// namespace: one class per struct, one enum per union, a paired
// serializer for every composite type and a typed request wrapper per
// route.
package swiftgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/quartzidl/quartz/internal/emitter"
	"github.com/quartzidl/quartz/internal/format"
	"github.com/quartzidl/quartz/internal/ir"
)

const header = `/* Autogenerated. Do not edit. */

import Foundation
`

// styleMapping maps the route "style" attribute to the request wrapper
// shape.
var styleMapping = map[string]string{
	"":         "Rpc",
	"rpc":      "Rpc",
	"upload":   "Upload",
	"download": "Download",
}

// Generator renders namespaces into target-language source units.
type Generator struct {
	spacesPerIndent int
}

// New returns a generator indenting by spacesPerIndent.
func New(spacesPerIndent int) *Generator {
	if spacesPerIndent <= 0 {
		spacesPerIndent = 4
	}
	return &Generator{spacesPerIndent: spacesPerIndent}
}

// FileName returns the deterministic output name for a namespace unit.
func (g *Generator) FileName(ns *ir.Namespace) string {
	return format.Class(ns.Name) + ".swift"
}

// malformedIRError aborts a generation run from deep inside the emit
// walk. It is recovered only at the Generate boundary.
type malformedIRError struct {
	msg string
}

func (e *malformedIRError) Error() string {
	return "malformed IR: " + e.msg
}

func fatalf(f string, v ...interface{}) {
	panic(&malformedIRError{msg: fmt.Sprintf(f, v...)})
}

// Generate renders one namespace as a fully self-contained output unit.
// The unit is buffered in memory; nothing is written on a fault.
func (g *Generator) Generate(ns *ir.Namespace) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			fault, ok := r.(*malformedIRError)
			if !ok {
				panic(r)
			}
			out = nil
			err = fmt.Errorf("namespace %s: %w", ns.Name, fault)
		}
	}()

	e := emitter.New(g.spacesPerIndent)
	e.EmitRaw(header)

	e.Block("public class "+format.Class(ns.Name), func() {
		for _, dt := range ns.DataTypes {
			switch t := dt.(type) {
			case *ir.Struct:
				g.emitStructClass(e, ns, t)
			case *ir.Union:
				g.emitUnion(e, ns, t)
			case *ir.Alias:
				g.emitAlias(e, ns, t)
			default:
				fatalf("unsupported top-level data type %T in namespace %s", dt, ns.Name)
			}
		}
	})
	g.emitRoutes(e, ns)

	return e.Bytes(), nil
}

// typeMapping resolves a data type to its target type name. When
// serializer is set the serializer type name is produced instead. A
// non-nil qualifying namespace name prefixes composite references.
func (g *Generator) typeMapping(dt ir.DataType, qualify bool, serializer bool) string {
	suffix := ""
	if serializer {
		suffix = "Serializer"
	}

	inner, nullable := ir.UnwrapNullable(dt)

	var ret string
	switch t := inner.(type) {
	case *ir.List:
		ret = fmt.Sprintf("Array%s<%s>", suffix, g.typeMapping(t.Elem, qualify, serializer))
		suffix = ""
	case *ir.Primitive:
		ret = primitiveName(t)
	case *ir.Alias:
		// Aliases resolve transparently through their referent when a
		// serializer name is needed; only the declaration side keeps
		// the alias name.
		if serializer {
			ret = g.typeMapping(t.Type, qualify, true)
			suffix = ""
			break
		}
		if qualify {
			ret = format.Class(t.Namespace) + "."
		}
		ret += format.Class(t.Name)
	case *ir.Struct, *ir.Union:
		name, _ := ir.TypeName(inner)
		nsName, _ := ir.TypeNamespace(inner)
		if qualify {
			ret = format.Class(nsName) + "."
		}
		ret += format.Class(name)
	default:
		fatalf("unsupported data type %T", inner)
	}

	ret += suffix
	if nullable {
		if serializer {
			ret = fmt.Sprintf("NullableSerializer<%s>", ret)
		} else {
			ret += "?"
		}
	}
	return ret
}

func primitiveName(p *ir.Primitive) string {
	switch p.Kind {
	case ir.String:
		return "String"
	case ir.Timestamp:
		return "NSDate"
	case ir.Bool:
		return "Bool"
	case ir.Bytes:
		return "NSData"
	case ir.Void:
		return "Void"
	case ir.Int32:
		return "Int32"
	case ir.Int64:
		return "Int64"
	case ir.UInt32:
		return "UInt32"
	case ir.UInt64:
		return "UInt64"
	case ir.Float32:
		return "Float"
	case ir.Float64:
		return "Double"
	}
	fatalf("unsupported primitive kind %q", p.Kind)
	return ""
}

// serializerObj resolves a data type to a serializer value expression, a
// fresh instance construction for composites.
func (g *Generator) serializerObj(dt ir.DataType, qualify bool) string {
	inner, nullable := ir.UnwrapNullable(dt)

	var ret string
	switch t := inner.(type) {
	case *ir.List:
		ret = fmt.Sprintf("ArraySerializer(%s)", g.serializerObj(t.Elem, qualify))
	case *ir.Primitive:
		ret = primitiveSerializer(t)
	case *ir.Alias:
		// No serializer class is emitted for an alias; serialize
		// through the referent.
		ret = g.serializerObj(t.Type, qualify)
	case *ir.Struct, *ir.Union:
		name, _ := ir.TypeName(inner)
		nsName, _ := ir.TypeNamespace(inner)
		if qualify {
			ret = format.Class(nsName) + "."
		}
		ret += format.Class(name) + "Serializer()"
	default:
		fatalf("unsupported data type %T", inner)
	}

	if nullable {
		ret = fmt.Sprintf("NullableSerializer(%s)", ret)
	}
	return ret
}

func primitiveSerializer(p *ir.Primitive) string {
	switch p.Kind {
	case ir.String:
		return "Serialization._StringSerializer"
	case ir.Timestamp:
		return fmt.Sprintf("NSDateSerializer(%q)", p.TimestampFormat)
	case ir.Bool:
		return "Serialization._BoolSerializer"
	case ir.Bytes:
		return "Serialization._NSDataSerializer"
	case ir.Void:
		return "Serialization._VoidSerializer"
	case ir.Int32:
		return "Serialization._Int32Serializer"
	case ir.Int64:
		return "Serialization._Int64Serializer"
	case ir.UInt32:
		return "Serialization._UInt32Serializer"
	case ir.UInt64:
		return "Serialization._UInt64Serializer"
	case ir.Float32:
		return "Serialization._FloatSerializer"
	case ir.Float64:
		return "Serialization._DoubleSerializer"
	}
	fatalf("unsupported primitive kind %q", p.Kind)
	return ""
}

// validatorExpr derives the constraint check for a field type, or ""
// when the type carries no constraints.
func (g *Generator) validatorExpr(dt ir.DataType) string {
	inner, nullable := ir.UnwrapNullable(dt)

	var v string
	switch t := inner.(type) {
	case *ir.List:
		itemValidator := g.validatorExpr(t.Elem)
		if itemValidator == "" {
			return ""
		}
		v = fmt.Sprintf("arrayValidator(%s)", funcArgs(
			arg{"minItems", intArg(t.MinItems)},
			arg{"maxItems", intArg(t.MaxItems)},
			arg{"itemValidator", itemValidator},
		))
	case *ir.Primitive:
		switch {
		case ir.IsNumeric(t):
			if t.MinValue == nil && t.MaxValue == nil {
				return ""
			}
			v = fmt.Sprintf("comparableValidator(%s)", funcArgs(
				arg{"minValue", floatArg(t.MinValue)},
				arg{"maxValue", floatArg(t.MaxValue)},
			))
		case t.Kind == ir.String:
			if t.MinLength == nil && t.MaxLength == nil && t.Pattern == "" {
				return ""
			}
			pattern := ""
			if t.Pattern != "" {
				pattern = strconv.Quote(t.Pattern)
			}
			v = fmt.Sprintf("stringValidator(%s)", funcArgs(
				arg{"minLength", intArg(t.MinLength)},
				arg{"maxLength", intArg(t.MaxLength)},
				arg{"pattern", pattern},
			))
		default:
			return ""
		}
	default:
		return ""
	}

	if nullable {
		v = fmt.Sprintf("nullableValidator(%s)", v)
	}
	return v
}

type arg struct {
	name  string
	value string
}

// funcArgs renders "name: value" pairs, skipping empty values.
func funcArgs(args ...arg) string {
	var out []string
	for _, a := range args {
		if a.value == "" {
			continue
		}
		out = append(out, a.name+": "+a.value)
	}
	return strings.Join(out, ", ")
}

func intArg(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func floatArg(v *float64) string {
	if v == nil {
		return ""
	}
	return format.Literal(*v)
}

// structInitArgs builds the flattened "name: Type = default" parameter
// list from the materialized inheritance chain.
func (g *Generator) structInitArgs(st *ir.Struct, qualify bool) []arg {
	args := make([]arg, 0, len(st.AllFields))
	for _, field := range st.AllFields {
		name := format.Variable(field.Name)
		value := g.typeMapping(field.Type, qualify, false)

		_, nullable := ir.UnwrapNullable(field.Type)
		switch {
		case field.HasDefault:
			value += " = " + g.defaultLiteral(field)
		case nullable:
			value += " = nil"
		}
		args = append(args, arg{name, value})
	}
	return args
}

// defaultLiteral renders a field default. A default referring into a
// union renders as a dotted tag access, never as a literal.
func (g *Generator) defaultLiteral(field *ir.Field) string {
	if ref, ok := field.Default.(ir.TagRef); ok {
		return "." + format.Class(ref.Tag)
	}
	if ref, ok := field.Default.(*ir.TagRef); ok {
		return "." + format.Class(ref.Tag)
	}
	return format.Literal(field.Default)
}

func (g *Generator) emitDocComment(e *emitter.Emitter, doc string) {
	e.EmitWrapped(doc, "/// ")
}

func (g *Generator) emitAlias(e *emitter.Emitter, ns *ir.Namespace, alias *ir.Alias) {
	if alias.Doc != "" {
		g.emitDocComment(e, alias.Doc)
	}
	e.Emitf("public typealias %s = %s", format.Class(alias.Name), g.typeMapping(alias.Type, false, false))
	e.BlankLine()
}

func (g *Generator) emitStructClass(e *emitter.Emitter, ns *ir.Namespace, st *ir.Struct) {
	className := format.Class(st.Name)
	if st.Doc != "" {
		g.emitDocComment(e, st.Doc)
	} else {
		e.Emitf("/// The %s struct", className)
	}
	e.Emit("///")
	for _, f := range st.Fields {
		e.Emitf("/// :param: %s", format.Variable(f.Name))
		if f.Doc != "" {
			e.EmitWrapped(f.Doc, "///        ")
		}
	}

	extensions := []string{}
	if st.Parent != nil {
		extensions = append(extensions, format.Class(st.Parent.Name))
	}
	extensions = append(extensions, "Printable")

	e.Block(fmt.Sprintf("public class %s: %s", className, strings.Join(extensions, ", ")), func() {
		for _, field := range st.Fields {
			e.Emitf("public let %s : %s", format.Variable(field.Name), g.typeMapping(field.Type, false, false))
		}
		g.emitStructInit(e, st)

		decl := "public var"
		if st.Parent != nil {
			decl = "public override var"
		}
		e.Block(decl+" description : String", func() {
			e.Emitf(`return "\(prepareJSONForSerialization(%sSerializer().serialize(self)))"`, className)
		})
	})

	g.emitStructSerializer(e, ns, st)
}

func (g *Generator) emitStructInit(e *emitter.Emitter, st *ir.Struct) {
	if st.Parent != nil && len(st.Fields) == 0 {
		return
	}
	args := g.structInitArgs(st, false)
	e.Block(fmt.Sprintf("public init(%s)", joinArgs(args)), func() {
		for _, field := range st.Fields {
			v := format.Variable(field.Name)
			if validator := g.validatorExpr(field.Type); validator != "" {
				e.Emitf("%s(value: %s)", validator, v)
			}
			e.Emitf("self.%s = %s", v, v)
		}
		if st.Parent != nil {
			var parentArgs []arg
			for _, f := range st.Parent.AllFields {
				v := format.Variable(f.Name)
				parentArgs = append(parentArgs, arg{v, v})
			}
			e.Emitf("super.init(%s)", joinArgs(parentArgs))
		}
	})
}

func joinArgs(args []arg) string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		out = append(out, a.name+": "+a.value)
	}
	return strings.Join(out, ", ")
}

func (g *Generator) emitStructSerializer(e *emitter.Emitter, ns *ir.Namespace, st *ir.Struct) {
	className := format.Class(st.Name)
	e.Block(fmt.Sprintf("public class %sSerializer: JSONSerializer", className), func() {
		e.Emit("public init() { }")

		e.Block(fmt.Sprintf("public func serialize(value: %s) -> JSON", className), func() {
			if len(st.AllFields) == 0 {
				e.Emit("var output = [String : JSON]()")
			} else {
				e.Emit("var output = [ ")
				for _, field := range st.AllFields {
					e.Emitf("%q: %s.serialize(value.%s),",
						field.Name,
						g.serializerObj(field.Type, false),
						format.Variable(field.Name))
				}
				e.Emit("]")

				if st.HasEnumeratedSubtypes() {
					g.emitEnumeratedSubtypeSerializer(e, ns, st)
				}
			}
			e.Emit("return .Dictionary(output)")
		})

		e.Block(fmt.Sprintf("public func deserialize(json: JSON) -> %s", className), func() {
			e.Block("switch json", func() {
				e.Emit("case .Dictionary(let dict):")
				e.Indent(func() {
					if st.HasEnumeratedSubtypes() {
						g.emitEnumeratedSubtypeDeserializer(e, ns, st)
					} else {
						g.emitPlainStructDeserializer(e, st)
					}
				})
				e.Emit("default:")
				e.Indent(func() {
					e.Emit(`fatalError("Type error deserializing")`)
				})
			})
		})
	})
}

// emitEnumeratedSubtypeSerializer switches on the runtime variant of the
// value, merges the matching subtype's serialized fields and records the
// discriminant under the ".tag" key. A value matching no known subtype
// is a fatal fault of the generated program.
func (g *Generator) emitEnumeratedSubtypeSerializer(e *emitter.Emitter, ns *ir.Namespace, st *ir.Struct) {
	e.Block("switch value", func() {
		for _, sub := range st.EnumeratedSubtypes {
			tagVar := format.Variable(sub.Tag)
			e.Emitf("case let %s as %s:", tagVar, g.typeMapping(sub.Type, false, false))
			e.Indent(func() {
				e.Block(fmt.Sprintf("for (k, v) in Serialization.getFields(%s.serialize(%s))",
					g.serializerObj(sub.Type, false), tagVar), func() {
					e.Emit("output[k] = v")
				})
				e.Emitf(`output[".tag"] = .Str(%q)`, sub.Tag)
			})
		}
		e.Emit(`default: fatalError("Tried to serialize unexpected subtype")`)
	})
}

// emitEnumeratedSubtypeDeserializer reads the ".tag" key and dispatches
// to the matching subtype's deserializer, declaration order first. An
// unknown tag falls back to the catch-all subtype when one is declared.
func (g *Generator) emitEnumeratedSubtypeDeserializer(e *emitter.Emitter, ns *ir.Namespace, st *ir.Struct) {
	e.Emit("let tag = Serialization.getTag(dict)")
	e.Block("switch tag", func() {
		for _, sub := range st.EnumeratedSubtypes {
			e.Emitf("case %q:", sub.Tag)
			e.Indent(func() {
				e.Emitf("return %s.deserialize(json)", g.serializerObj(sub.Type, false))
			})
		}
		e.Emit("default:")
		e.Indent(func() {
			if catchAll := st.CatchAllSubtype(); catchAll != nil {
				e.Emitf("return %s.deserialize(json)", g.serializerObj(catchAll, false))
			} else {
				e.Emit(`fatalError("Unknown tag \(tag)")`)
			}
		})
	})
}

// emitPlainStructDeserializer reads every linearized field by wire name;
// a missing key deserializes the null wire sentinel.
func (g *Generator) emitPlainStructDeserializer(e *emitter.Emitter, st *ir.Struct) {
	var args []arg
	for _, field := range st.AllFields {
		v := format.Variable(field.Name)
		e.Emitf(`let %s = %s.deserialize(dict[%q] ?? .Null)`,
			v, g.serializerObj(field.Type, false), field.Name)
		args = append(args, arg{v, v})
	}
	e.Emitf("return %s(%s)", format.Class(st.Name), joinArgs(args))
}

func (g *Generator) emitUnion(e *emitter.Emitter, ns *ir.Namespace, union *ir.Union) {
	className := format.Class(union.Name)
	if union.Doc != "" {
		g.emitDocComment(e, union.Doc)
	} else {
		e.Emitf("/// The %s union", className)
	}
	e.Emit("///")
	variants := allVariants(union)
	for _, v := range variants {
		sep := ""
		if v.Doc != "" {
			sep = ":"
		}
		e.Emitf("/// - %s%s", format.Class(v.Name), sep)
		if v.Doc != "" {
			e.EmitWrapped(v.Doc, "///   ")
		}
	}

	e.Block(fmt.Sprintf("public enum %s : Printable", className), func() {
		for _, variant := range variants {
			e.Emitf("case %s%s", format.Class(variant.Name), g.tagPayloadType(variant.Type))
		}
		e.Block("public var description : String", func() {
			e.Emitf(`return "\(prepareJSONForSerialization(%sSerializer().serialize(self)))"`, className)
		})
	})

	g.emitUnionSerializer(e, union)
}

// allVariants linearizes a union's variants, parent's first.
func allVariants(union *ir.Union) []*ir.Field {
	if union.Parent == nil {
		return union.Variants
	}
	parents := allVariants(union.Parent)
	out := make([]*ir.Field, 0, len(parents)+len(union.Variants))
	out = append(out, parents...)
	out = append(out, union.Variants...)
	return out
}

// tagPayloadType renders the associated value of a union case, empty for
// a void (tag only) variant.
func (g *Generator) tagPayloadType(dt ir.DataType) string {
	if ir.IsVoid(dt) {
		return ""
	}
	return fmt.Sprintf("(%s)", g.typeMapping(dt, false, false))
}

func (g *Generator) emitUnionSerializer(e *emitter.Emitter, union *ir.Union) {
	className := format.Class(union.Name)
	variants := allVariants(union)

	e.Block(fmt.Sprintf("public class %sSerializer: JSONSerializer", className), func() {
		e.Emit("public init() { }")

		e.Block(fmt.Sprintf("public func serialize(value: %s) -> JSON", className), func() {
			e.Block("switch value", func() {
				for _, variant := range variants {
					variantType, _ := ir.UnwrapNullable(variant.Type)
					caseExpr := "." + format.Class(variant.Name)
					entries := []string{fmt.Sprintf(`".tag": .Str(%q)`, variant.Name)}
					if !ir.IsVoid(variantType) {
						caseExpr += "(let arg)"
						entries = append(entries, fmt.Sprintf("%q: %s.serialize(arg)",
							variant.Name, g.serializerObj(variant.Type, false)))
					}
					e.Emitf("case %s:", caseExpr)
					e.Indent(func() {
						e.Emitf("return .Dictionary([%s])", strings.Join(entries, ", "))
					})
				}
			})
		})

		e.Block(fmt.Sprintf("public func deserialize(json: JSON) -> %s", className), func() {
			e.Block("switch json", func() {
				e.Emit("case .Dictionary(let d):")
				e.Indent(func() {
					e.Emit("let tag = Serialization.getTag(d)")
					e.Block("switch tag", func() {
						for _, variant := range variants {
							variantType, _ := ir.UnwrapNullable(variant.Type)
							e.Emitf("case %q:", variant.Name)
							tagType := fmt.Sprintf("%s.%s", className, format.Class(variant.Name))
							e.Indent(func() {
								if ir.IsVoid(variantType) {
									e.Emitf("return %s", tagType)
								} else {
									e.Emitf(`let v = %s.deserialize(d[%q] ?? .Null)`,
										g.serializerObj(variantType, false), variant.Name)
									e.Emitf("return %s(v)", tagType)
								}
							})
						}
						e.Emit("default:")
						e.Indent(func() {
							if union.CatchAll != nil {
								e.Emitf("return %s.%s", className, format.Class(union.CatchAll.Name))
							} else {
								e.Emit(`fatalError("Unknown tag \(tag)")`)
							}
						})
					})
				})
				e.Emit("default:")
				e.Indent(func() {
					e.Emit(`fatalError("Failed to deserialize")`)
				})
			})
		})
	})
}

func (g *Generator) emitRoutes(e *emitter.Emitter, ns *ir.Namespace) {
	if len(ns.Routes) == 0 {
		return
	}
	e.Block("extension QuartzClient", func() {
		for _, route := range ns.Routes {
			g.emitRoute(e, ns, route)
		}
	})
}

func (g *Generator) emitRoute(e *emitter.Emitter, ns *ir.Namespace, route *ir.Route) {
	hostIdent := route.Attrs["host"]
	if hostIdent == "" {
		hostIdent = "meta"
	}
	styleAttr := route.Attrs["style"]
	routeStyle, ok := styleMapping[styleAttr]
	if !ok {
		fatalf("route %s/%s: unknown style %q", ns.Name, route.Name, styleAttr)
	}

	requestType := g.typeMapping(route.Request, true, false)
	requestStruct, requestIsStruct := structRequest(route.Request)

	var argList []arg
	var docList [][2]string
	if requestIsStruct {
		argList = g.structInitArgs(requestStruct, true)
		for _, f := range requestStruct.Fields {
			if f.Doc != "" {
				docList = append(docList, [2]string{format.Variable(f.Name), f.Doc})
			}
		}
	} else if !ir.IsVoid(route.Request) {
		argList = []arg{{"request", requestType}}
	}
	if routeStyle == "Upload" {
		argList = append(argList, arg{"body", "NSData"})
		docList = append(docList, [2]string{"body", "The binary payload to upload"})
	}

	funcName := format.Method(ns.Name + "_" + route.Name)
	if route.Doc != "" {
		e.EmitWrapped(route.Doc, "/// ")
	} else {
		e.Emitf("/// The %s route", funcName)
	}
	e.Emit("///")
	for _, d := range docList {
		e.Emitf("/// :param: %s", d[0])
		e.EmitWrapped(d[1], "///        ")
	}

	responseType := g.typeMapping(route.Response, true, true)
	errorType := g.typeMapping(route.Error, true, true)

	signature := fmt.Sprintf("public func %s(%s) -> Quartz%sRequest<%s, %s>",
		funcName, joinArgs(argList), routeStyle, responseType, errorType)
	e.Block(signature, func() {
		if requestIsStruct {
			var ctorArgs []arg
			for _, f := range requestStruct.AllFields {
				v := format.Variable(f.Name)
				ctorArgs = append(ctorArgs, arg{v, v})
			}
			e.Emitf("let request = %s(%s)", requestType, joinArgs(ctorArgs))
		}

		requestValue := ""
		if !ir.IsVoid(route.Request) {
			requestValue = "request"
		}
		callArgs := []arg{
			{"client", "self"},
			{"host", strconv.Quote(hostIdent)},
			{"route", strconv.Quote("/" + ns.Name + "/" + route.Name)},
			{"params", fmt.Sprintf("%s.serialize(%s)", g.serializerObj(route.Request, true), requestValue)},
		}
		if routeStyle == "Upload" {
			callArgs = append(callArgs, arg{"body", "body"})
		}
		callArgs = append(callArgs,
			arg{"responseSerializer", g.serializerObj(route.Response, true)},
			arg{"errorSerializer", g.serializerObj(route.Error, true)},
		)
		e.Emitf("return Quartz%sRequest(%s)", routeStyle, joinArgs(callArgs))
	})
}

// structRequest returns the request struct when the route's request type
// resolves to one, following alias indirection.
func structRequest(dt ir.DataType) (*ir.Struct, bool) {
	dt, _ = ir.UnwrapNullable(dt)
	for {
		alias, ok := dt.(*ir.Alias)
		if !ok {
			break
		}
		dt = alias.Type
	}
	st, ok := dt.(*ir.Struct)
	return st, ok
}
