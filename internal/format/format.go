// Package format holds the target-language formatting helpers: identifier
// casing conversion and literal value rendering.
package format

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English, cases.NoLower)

// ToLowerCamelCase converts a name to lowerCamelCase.
func ToLowerCamelCase(in string) string {
	var flag bool

	out := make([]rune, len(in))

	runes := []rune(in)
	for i, curr := range runes {
		if (i == 0 && unicode.IsUpper(curr)) || (flag && unicode.IsUpper(curr)) {
			out[i] = unicode.ToLower(curr)
			flag = true

			continue
		}

		out[i] = curr
		flag = false
	}

	return string(out)
}

// ToPascalCase converts a snake_case or slash-separated name to
// PascalCase, e.g. "team_policies" becomes "TeamPolicies".
func ToPascalCase(in string) string {
	parts := strings.FieldsFunc(in, func(r rune) bool {
		return r == '_' || r == '-' || r == '/' || r == '.' || r == ' '
	})
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(titleCaser.String(part))
	}
	return b.String()
}

// swiftReserved is the set of identifiers that must be backtick-escaped
// when used as Swift variable names.
var swiftReserved = map[string]struct{}{
	"class": {}, "default": {}, "enum": {}, "extension": {}, "func": {},
	"import": {}, "init": {}, "internal": {}, "let": {}, "operator": {},
	"private": {}, "protocol": {}, "public": {}, "static": {}, "struct": {},
	"subscript": {}, "var": {}, "break": {}, "case": {}, "continue": {},
	"do": {}, "else": {}, "fallthrough": {}, "for": {}, "if": {}, "in": {},
	"return": {}, "switch": {}, "where": {}, "while": {}, "as": {}, "is": {},
	"nil": {}, "self": {}, "super": {}, "throws": {}, "true": {}, "false": {},
}

// Class formats a type name for an object-oriented target, e.g.
// "team_policies" becomes "TeamPolicies".
func Class(name string) string {
	return ToPascalCase(name)
}

// Variable formats a field name as a lowerCamelCase identifier, escaping
// target-language reserved words.
func Variable(name string) string {
	v := ToLowerCamelCase(ToPascalCase(name))
	if _, reserved := swiftReserved[v]; reserved {
		return "`" + v + "`"
	}
	return v
}

// Method formats a namespace-qualified route name as a lowerCamelCase
// method identifier.
func Method(name string) string {
	return ToLowerCamelCase(ToPascalCase(name))
}

// Literal renders a default value as target-language source text.
func Literal(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case bool:
		if val {
			return "true"
		}
		return "false"
	case string:
		return strconv.Quote(val)
	case float64:
		// JSON-decoded numbers arrive as float64; render integral values
		// without a fractional part.
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	default:
		return fmt.Sprintf("%v", val)
	}
}
