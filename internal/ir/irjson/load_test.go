package irjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quartzidl/quartz/internal/ir"
)

const accountDoc = `
namespaces:
  - name: users
    doc: User account management.
    types:
      - kind: struct
        name: Account
        fields:
          - name: account_id
            type: {primitive: String, min_length: 40, max_length: 40}
          - name: email
            type: {primitive: String}
      - kind: struct
        name: FullAccount
        parent: Account
        fields:
          - name: country
            type: {nullable: {primitive: String}}
          - name: locale
            type: {primitive: String}
            default: "en"
      - kind: union
        name: GetAccountError
        variants:
          - name: no_account
            type: {primitive: Void}
          - name: other
            type: {primitive: Void}
        catch_all: other
    routes:
      - name: get_account
        request: {ref: Account}
        response: {ref: FullAccount}
        error: {ref: GetAccountError}
        attrs:
          host: api
`

func TestLoad(t *testing.T) {
	api, err := Load([]byte(accountDoc))
	require.NoError(t, err)
	require.Len(t, api.Namespaces, 1)

	ns := api.Namespaces[0]
	assert.Equal(t, "users", ns.Name)
	require.Len(t, ns.DataTypes, 3)

	t.Run("struct fields and constraints", func(t *testing.T) {
		account, ok := ns.DataTypes[0].(*ir.Struct)
		require.True(t, ok)
		require.Len(t, account.Fields, 2)

		id := account.Fields[0]
		assert.Equal(t, "account_id", id.Name)
		prim, ok := id.Type.(*ir.Primitive)
		require.True(t, ok)
		assert.Equal(t, ir.String, prim.Kind)
		require.NotNil(t, prim.MinLength)
		assert.Equal(t, 40, *prim.MinLength)
	})

	t.Run("inheritance is linearized parent first", func(t *testing.T) {
		full, ok := ns.DataTypes[1].(*ir.Struct)
		require.True(t, ok)
		require.NotNil(t, full.Parent)
		assert.Equal(t, "Account", full.Parent.Name)

		var names []string
		for _, f := range full.AllFields {
			names = append(names, f.Name)
		}
		assert.Equal(t, []string{"account_id", "email", "country", "locale"}, names)
	})

	t.Run("string defaults load as literals", func(t *testing.T) {
		full := ns.DataTypes[1].(*ir.Struct)
		locale := full.Fields[1]
		assert.True(t, locale.HasDefault)
		assert.Equal(t, "en", locale.Default)
	})

	t.Run("union catch-all resolves to its variant", func(t *testing.T) {
		u, ok := ns.DataTypes[2].(*ir.Union)
		require.True(t, ok)
		require.NotNil(t, u.CatchAll)
		assert.Equal(t, "other", u.CatchAll.Name)
	})

	t.Run("route types resolve by reference", func(t *testing.T) {
		require.Len(t, ns.Routes, 1)
		route := ns.Routes[0]
		assert.Equal(t, "get_account", route.Name)
		assert.Equal(t, ns.DataTypes[0], route.Request)
		assert.Equal(t, "api", route.Attrs["host"])
	})
}

func TestLoadJSON(t *testing.T) {
	doc := `{"namespaces":[{"name":"common","types":[
		{"kind":"alias","name":"Date","type":{"primitive":"Timestamp","format":"%Y-%m-%d"}}]}]}`

	api, err := Load([]byte(doc))
	require.NoError(t, err)

	alias, ok := api.Namespaces[0].DataTypes[0].(*ir.Alias)
	require.True(t, ok)
	prim, ok := alias.Type.(*ir.Primitive)
	require.True(t, ok)
	assert.Equal(t, ir.Timestamp, prim.Kind)
	assert.Equal(t, "%Y-%m-%d", prim.TimestampFormat)
}

func TestLoadDefaults(t *testing.T) {
	t.Run("false literal stays a literal", func(t *testing.T) {
		doc := `{"namespaces":[{"name":"a","types":[{"kind":"struct","name":"S","fields":[
			{"name":"muted","type":{"primitive":"Boolean"},"default":false}]}]}]}`

		api, err := Load([]byte(doc))
		require.NoError(t, err)

		st := api.Namespaces[0].DataTypes[0].(*ir.Struct)
		assert.True(t, st.Fields[0].HasDefault)
		assert.Equal(t, false, st.Fields[0].Default)
	})

	t.Run("tag object becomes a tag reference", func(t *testing.T) {
		doc := `{"namespaces":[{"name":"a","types":[
			{"kind":"union","name":"Mode","variants":[{"name":"auto","type":{"primitive":"Void"}}]},
			{"kind":"struct","name":"S","fields":[
				{"name":"mode","type":{"ref":"Mode"},"default":{"tag":"auto"}}]}]}]}`

		api, err := Load([]byte(doc))
		require.NoError(t, err)

		st := api.Namespaces[0].DataTypes[1].(*ir.Struct)
		assert.Equal(t, ir.TagRef{Tag: "auto"}, st.Fields[0].Default)
	})
}

func TestLoadCrossNamespaceRefs(t *testing.T) {
	doc := `{"namespaces":[
		{"name":"team","types":[{"kind":"struct","name":"Member","fields":[
			{"name":"profile","type":{"ref":"users.Account"}}]}]},
		{"name":"users","types":[{"kind":"struct","name":"Account","fields":[]}]}]}`

	api, err := Load([]byte(doc))
	require.NoError(t, err)

	member := api.Namespaces[0].DataTypes[0].(*ir.Struct)
	account, ok := member.Fields[0].Type.(*ir.Struct)
	require.True(t, ok)
	assert.Equal(t, "users", account.Namespace)
}

func TestLoadOmittedRouteTypesDefaultToVoid(t *testing.T) {
	doc := `{"namespaces":[{"name":"ping","routes":[{"name":"ping"}]}]}`

	api, err := Load([]byte(doc))
	require.NoError(t, err)

	route := api.Namespaces[0].Routes[0]
	assert.True(t, ir.IsVoid(route.Request))
	assert.True(t, ir.IsVoid(route.Response))
	assert.True(t, ir.IsVoid(route.Error))
}

func TestLoadErrors(t *testing.T) {
	t.Run("unresolved reference", func(t *testing.T) {
		doc := `{"namespaces":[{"name":"a","types":[{"kind":"struct","name":"S","fields":[
			{"name":"x","type":{"ref":"Missing"}}]}]}]}`

		_, err := Load([]byte(doc))
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unresolved type reference "Missing"`)
	})

	t.Run("unsupported kind", func(t *testing.T) {
		doc := `{"namespaces":[{"name":"a","types":[{"kind":"enum","name":"E"}]}]}`

		_, err := Load([]byte(doc))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported kind")
	})

	t.Run("catch_all naming no variant", func(t *testing.T) {
		doc := `{"namespaces":[{"name":"a","types":[
			{"kind":"union","name":"U","variants":[{"name":"x","type":{"primitive":"Void"}}],"catch_all":"missing"}]}]}`

		_, err := Load([]byte(doc))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "names no variant")
	})

	t.Run("not a document at all", func(t *testing.T) {
		_, err := Load([]byte("\t{nope"))
		require.Error(t, err)
	})
}
