package swiftgen

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quartzidl/quartz/internal/ir"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestTypeMapping(t *testing.T) {
	g := New(4)
	account := &ir.Struct{Name: "Account", Namespace: "users"}

	cases := []struct {
		name       string
		dt         ir.DataType
		qualify    bool
		serializer bool
		expected   string
	}{
		{"string", &ir.Primitive{Kind: ir.String}, false, false, "String"},
		{"timestamp", &ir.Primitive{Kind: ir.Timestamp}, false, false, "NSDate"},
		{"bytes", &ir.Primitive{Kind: ir.Bytes}, false, false, "NSData"},
		{"float32", &ir.Primitive{Kind: ir.Float32}, false, false, "Float"},
		{"float64", &ir.Primitive{Kind: ir.Float64}, false, false, "Double"},
		{"struct", account, false, false, "Account"},
		{"qualified struct", account, true, false, "Users.Account"},
		{"struct serializer", account, false, true, "AccountSerializer"},
		{"list", &ir.List{Elem: &ir.Primitive{Kind: ir.String}}, false, false, "Array<String>"},
		{"list serializer", &ir.List{Elem: account}, false, true, "ArraySerializer<AccountSerializer>"},
		{"nullable", &ir.Nullable{Wrapped: &ir.Primitive{Kind: ir.String}}, false, false, "String?"},
		{"nullable serializer", &ir.Nullable{Wrapped: account}, false, true, "NullableSerializer<AccountSerializer>"},
		{"nullable list", &ir.Nullable{Wrapped: &ir.List{Elem: account}}, false, false, "Array<Account>?"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, g.typeMapping(c.dt, c.qualify, c.serializer))
		})
	}

	t.Run("alias resolves to its referent for serializers", func(t *testing.T) {
		alias := &ir.Alias{Name: "AccountRef", Namespace: "users", Type: account}
		assert.Equal(t, "AccountRef", g.typeMapping(alias, false, false))
		assert.Equal(t, "AccountSerializer", g.typeMapping(alias, false, true))
	})
}

func TestSerializerObj(t *testing.T) {
	g := New(4)
	account := &ir.Struct{Name: "Account", Namespace: "users"}

	cases := []struct {
		name     string
		dt       ir.DataType
		qualify  bool
		expected string
	}{
		{"string", &ir.Primitive{Kind: ir.String}, false, "Serialization._StringSerializer"},
		{"timestamp carries its format", &ir.Primitive{Kind: ir.Timestamp, TimestampFormat: "%a"}, false, `NSDateSerializer("%a")`},
		{"struct", account, false, "AccountSerializer()"},
		{"qualified struct", account, true, "Users.AccountSerializer()"},
		{"list", &ir.List{Elem: account}, false, "ArraySerializer(AccountSerializer())"},
		{"nullable", &ir.Nullable{Wrapped: account}, false, "NullableSerializer(AccountSerializer())"},
		{"alias passes through", &ir.Alias{Name: "Ref", Type: account}, false, "AccountSerializer()"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, g.serializerObj(c.dt, c.qualify))
		})
	}
}

func TestValidatorExpr(t *testing.T) {
	g := New(4)

	cases := []struct {
		name     string
		dt       ir.DataType
		expected string
	}{
		{"unconstrained string", &ir.Primitive{Kind: ir.String}, ""},
		{"string length", &ir.Primitive{Kind: ir.String, MinLength: intPtr(1), MaxLength: intPtr(255)},
			"stringValidator(minLength: 1, maxLength: 255)"},
		{"string pattern", &ir.Primitive{Kind: ir.String, Pattern: "[a-z]+"},
			`stringValidator(pattern: "[a-z]+")`},
		{"numeric bounds", &ir.Primitive{Kind: ir.UInt32, MinValue: floatPtr(1), MaxValue: floatPtr(100)},
			"comparableValidator(minValue: 1, maxValue: 100)"},
		{"numeric lower bound only", &ir.Primitive{Kind: ir.Int64, MinValue: floatPtr(0)},
			"comparableValidator(minValue: 0)"},
		{"unconstrained numeric", &ir.Primitive{Kind: ir.Int32}, ""},
		{"list of constrained items", &ir.List{
			Elem:     &ir.Primitive{Kind: ir.String, MinLength: intPtr(1)},
			MaxItems: intPtr(10),
		}, "arrayValidator(maxItems: 10, itemValidator: stringValidator(minLength: 1))"},
		{"list of unconstrained items", &ir.List{Elem: &ir.Primitive{Kind: ir.String}, MaxItems: intPtr(10)}, ""},
		{"nullable wraps the inner validator", &ir.Nullable{Wrapped: &ir.Primitive{Kind: ir.String, MinLength: intPtr(1)}},
			"nullableValidator(stringValidator(minLength: 1))"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, g.validatorExpr(c.dt))
		})
	}
}

// photosNamespace builds a namespace exercising inheritance, defaults,
// unions and routes in one unit.
func photosNamespace() *ir.Namespace {
	dimensions := &ir.Struct{
		Name:      "Dimensions",
		Namespace: "photos",
		Fields: []*ir.Field{
			{Name: "height", Type: &ir.Primitive{Kind: ir.UInt64}},
			{Name: "width", Type: &ir.Primitive{Kind: ir.UInt64}},
		},
	}
	dimensions.AllFields = dimensions.Fields

	photo := &ir.Struct{
		Name:      "Photo",
		Namespace: "photos",
		Doc:       "A photo stored in the library.",
		Parent:    dimensions,
		Fields: []*ir.Field{
			{Name: "caption", Type: &ir.Nullable{Wrapped: &ir.Primitive{Kind: ir.String}}},
			{Name: "format", Type: &ir.Primitive{Kind: ir.String}, HasDefault: true, Default: "jpeg"},
		},
	}
	photo.AllFields = append(append([]*ir.Field{}, dimensions.AllFields...), photo.Fields...)

	uploadError := &ir.Union{
		Name:      "UploadError",
		Namespace: "photos",
		Variants: []*ir.Field{
			{Name: "too_large", Type: &ir.Primitive{Kind: ir.Void}},
			{Name: "other", Type: &ir.Primitive{Kind: ir.Void}},
		},
	}
	uploadError.CatchAll = uploadError.Variants[1]

	return &ir.Namespace{
		Name:      "photos",
		DataTypes: []ir.DataType{dimensions, photo, uploadError},
		Routes: []*ir.Route{
			{
				Name:     "upload",
				Request:  photo,
				Response: photo,
				Error:    uploadError,
				Attrs:    map[string]string{"style": "upload", "host": "content"},
			},
		},
	}
}

func TestGenerate(t *testing.T) {
	g := New(4)
	ns := photosNamespace()

	out, err := g.Generate(ns)
	require.NoError(t, err)
	src := string(out)

	t.Run("unit is self contained", func(t *testing.T) {
		assert.True(t, strings.HasPrefix(src, "/* Autogenerated. Do not edit. */"))
		assert.Contains(t, src, "import Foundation")
		assert.Contains(t, src, "public class Photos {")
	})

	t.Run("inherited fields flatten into the init", func(t *testing.T) {
		assert.Contains(t, src, "public class Photo: Dimensions, Printable {")
		// Parent fields come first, then own fields with their defaults.
		assert.Contains(t, src,
			"public init(height: UInt64, width: UInt64, caption: String? = nil, format: String = \"jpeg\") {")
		assert.Contains(t, src, "super.init(height: height, width: width)")
	})

	t.Run("optional fields get defaults, required fields do not", func(t *testing.T) {
		assert.Contains(t, src, "caption: String? = nil")
		assert.NotContains(t, src, "height: UInt64 =")
	})

	t.Run("serializer covers the flattened field set", func(t *testing.T) {
		assert.Contains(t, src, `"height": Serialization._UInt64Serializer.serialize(value.height),`)
		assert.Contains(t, src, `"caption": NullableSerializer(Serialization._StringSerializer).serialize(value.caption),`)
		assert.Contains(t, src, `let height = Serialization._UInt64Serializer.deserialize(dict["height"] ?? .Null)`)
	})

	t.Run("union catch-all absorbs unknown tags", func(t *testing.T) {
		assert.Contains(t, src, "public enum UploadError : Printable {")
		assert.Contains(t, src, "case TooLarge")
		assert.Contains(t, src, "return UploadError.Other")
	})

	t.Run("upload route takes a body and flattened request args", func(t *testing.T) {
		assert.Contains(t, src, "extension QuartzClient {")
		assert.Contains(t, src,
			`public func photosUpload(height: UInt64, width: UInt64, caption: String? = nil, format: String = "jpeg", body: NSData) `+
				"-> QuartzUploadRequest<Photos.PhotoSerializer, Photos.UploadErrorSerializer> {")
	})

	t.Run("route wires host and path", func(t *testing.T) {
		assert.Contains(t, src, `host: "content"`)
		assert.Contains(t, src, `route: "/photos/upload"`)
		assert.Contains(t, src, "body: body")
	})

	t.Run("output is deterministic", func(t *testing.T) {
		again, err := g.Generate(photosNamespace())
		require.NoError(t, err)
		assert.True(t, bytes.Equal(out, again))
	})
}

func TestGenerateEnumeratedSubtypes(t *testing.T) {
	g := New(4)

	root := &ir.Struct{
		Name:      "Resource",
		Namespace: "files",
		Fields:    []*ir.Field{{Name: "path", Type: &ir.Primitive{Kind: ir.String}}},
	}
	root.AllFields = root.Fields
	file := &ir.Struct{Name: "File", Namespace: "files", Parent: root,
		Fields: []*ir.Field{{Name: "size", Type: &ir.Primitive{Kind: ir.UInt64}}}}
	file.AllFields = append(append([]*ir.Field{}, root.AllFields...), file.Fields...)
	folder := &ir.Struct{Name: "Folder", Namespace: "files", Parent: root, AllFields: root.AllFields}

	newNamespace := func(withCatchAll bool) *ir.Namespace {
		r := *root
		r.EnumeratedSubtypes = []ir.Subtype{
			{Tag: "file", Type: file},
			{Tag: "folder", Type: folder, CatchAll: withCatchAll},
		}
		return &ir.Namespace{Name: "files", DataTypes: []ir.DataType{&r, file, folder}}
	}

	t.Run("serialization dispatches on the runtime subtype", func(t *testing.T) {
		out, err := g.Generate(newNamespace(false))
		require.NoError(t, err)
		src := string(out)

		assert.Contains(t, src, "case let file as File:")
		assert.Contains(t, src, `output[".tag"] = .Str("file")`)
		assert.Contains(t, src, `default: fatalError("Tried to serialize unexpected subtype")`)
	})

	t.Run("unknown tag without a catch-all is fatal", func(t *testing.T) {
		out, err := g.Generate(newNamespace(false))
		require.NoError(t, err)

		assert.Contains(t, string(out), `fatalError("Unknown tag \(tag)")`)
	})

	t.Run("unknown tag falls back to the catch-all", func(t *testing.T) {
		out, err := g.Generate(newNamespace(true))
		require.NoError(t, err)

		assert.Contains(t, string(out), "return FolderSerializer().deserialize(json)")
	})
}

func TestGenerateFaults(t *testing.T) {
	g := New(4)

	t.Run("unknown route style aborts the unit", func(t *testing.T) {
		ns := &ir.Namespace{
			Name: "files",
			Routes: []*ir.Route{{
				Name:     "download",
				Request:  &ir.Primitive{Kind: ir.Void},
				Response: &ir.Primitive{Kind: ir.Void},
				Error:    &ir.Primitive{Kind: ir.Void},
				Attrs:    map[string]string{"style": "streaming"},
			}},
		}

		out, err := g.Generate(ns)
		require.Error(t, err)
		assert.Nil(t, out)
		assert.Contains(t, err.Error(), `unknown style "streaming"`)
		assert.Contains(t, err.Error(), "namespace files")
	})
}
