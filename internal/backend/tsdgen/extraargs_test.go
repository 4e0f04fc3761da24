package tsdgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quartzidl/quartz/internal/ir"
)

func TestParseExtraArgRules(t *testing.T) {
	t.Run("well-formed rule", func(t *testing.T) {
		rules, err := ParseExtraArgRules([]string{
			`{"match": ["style", "upload"], "arg_name": "contentHash", "arg_type": "string", "arg_docstring": "Hash of the body."}`,
		})
		require.NoError(t, err)
		require.Len(t, rules, 1)
		assert.Equal(t, ExtraArgRule{
			MatchKey:     "style",
			MatchValue:   "upload",
			ArgName:      "contentHash",
			ArgType:      "string",
			ArgDocstring: "Hash of the body.",
		}, rules[0])
	})

	t.Run("docstring is optional", func(t *testing.T) {
		rules, err := ParseExtraArgRules([]string{
			`{"match": ["host", "content"], "arg_name": "h", "arg_type": "string"}`,
		})
		require.NoError(t, err)
		assert.Empty(t, rules[0].ArgDocstring)
	})

	t.Run("each malformed entry is reported individually", func(t *testing.T) {
		_, err := ParseExtraArgRules([]string{
			`{"arg_name": "a", "arg_type": "string"}`,
			`{"match": ["host"], "arg_name": "a", "arg_type": "string"}`,
			`{"match": ["host", 2], "arg_name": "a", "arg_type": "string"}`,
			`{"match": ["host", "content"], "arg_type": "string"}`,
			`{"match": ["host", "content"], "arg_name": "a"}`,
			`{"match": ["host", "content"], "arg_name": "a", "arg_type": "string", "arg_docstring": 3}`,
			`not even json`,
		})
		require.Error(t, err)
		msg := err.Error()
		assert.Contains(t, msg, "no match key")
		assert.Contains(t, msg, "match key is not a list of two strings")
		assert.Contains(t, msg, "match values are not strings")
		assert.Contains(t, msg, "no arg_name key")
		assert.Contains(t, msg, "no arg_type key")
		assert.Contains(t, msg, "arg_docstring is not a string")
	})

	t.Run("valid entries after an invalid one are still checked", func(t *testing.T) {
		_, err := ParseExtraArgRules([]string{
			`{"arg_name": "a", "arg_type": "string"}`,
			`{"match": ["host", "content"]}`,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no match key")
		assert.Contains(t, err.Error(), "no arg_name key")
	})
}

func TestExtraParamsForRequests(t *testing.T) {
	uploadArg := &ir.Struct{Name: "UploadArg", Namespace: "files"}
	downloadArg := &ir.Struct{Name: "DownloadArg", Namespace: "files"}

	api := &ir.Api{Namespaces: []*ir.Namespace{{
		Name: "files",
		Routes: []*ir.Route{
			{Name: "upload", Request: uploadArg, Attrs: map[string]string{"host": "content", "style": "upload"}},
			{Name: "download", Request: downloadArg, Attrs: map[string]string{"host": "content", "style": "download"}},
			{Name: "ping", Request: &ir.Primitive{Kind: ir.Void}, Attrs: map[string]string{"host": "content"}},
		},
	}}}

	t.Run("matches on the attribute pair", func(t *testing.T) {
		params := ExtraParamsForRequests(api, []ExtraArgRule{
			{MatchKey: "style", MatchValue: "upload", ArgName: "contentHash", ArgType: "string"},
		})

		require.Len(t, params, 1)
		assert.Equal(t, []ExtraParam{{Name: "contentHash", Type: "string"}}, params[uploadArg])
	})

	t.Run("rules inject in declaration order", func(t *testing.T) {
		params := ExtraParamsForRequests(api, []ExtraArgRule{
			{MatchKey: "host", MatchValue: "content", ArgName: "first", ArgType: "string"},
			{MatchKey: "style", MatchValue: "upload", ArgName: "second", ArgType: "number"},
		})

		require.Len(t, params[uploadArg], 2)
		assert.Equal(t, "first", params[uploadArg][0].Name)
		assert.Equal(t, "second", params[uploadArg][1].Name)
		require.Len(t, params[downloadArg], 1)
	})

	t.Run("routes sharing a request struct inject once", func(t *testing.T) {
		shared := &ir.Api{Namespaces: []*ir.Namespace{{
			Name: "files",
			Routes: []*ir.Route{
				{Name: "upload", Request: uploadArg, Attrs: map[string]string{"host": "content"}},
				{Name: "upload_session", Request: uploadArg, Attrs: map[string]string{"host": "content"}},
			},
		}}}

		params := ExtraParamsForRequests(shared, []ExtraArgRule{
			{MatchKey: "host", MatchValue: "content", ArgName: "contentHash", ArgType: "string"},
		})

		assert.Equal(t, []ExtraParam{{Name: "contentHash", Type: "string"}}, params[uploadArg])
	})

	t.Run("no rules means no map", func(t *testing.T) {
		assert.Nil(t, ExtraParamsForRequests(api, nil))
	})
}
