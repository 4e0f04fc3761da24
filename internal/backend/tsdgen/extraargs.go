package tsdgen

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/quartzidl/quartz/internal/ir"
)

// ExtraArgRule is one structured extra-argument specification: when a
// route carries the matching attribute value, the configured parameter
// is injected into the route's request shape.
type ExtraArgRule struct {
	MatchKey   string
	MatchValue string

	ArgName      string
	ArgType      string
	ArgDocstring string
}

// ExtraParam is one injected parameter, always optional.
type ExtraParam struct {
	Name      string
	Type      string
	Docstring string
}

// rawExtraArg mirrors the JSON wire form of one --extra-arg value.
type rawExtraArg struct {
	Match        []json.RawMessage `json:"match"`
	ArgName      *string           `json:"arg_name"`
	ArgType      *string           `json:"arg_type"`
	ArgDocstring json.RawMessage   `json:"arg_docstring"`
}

// ParseExtraArgRules decodes and validates the repeatable --extra-arg
// values. Every malformed entry is reported individually in the joined
// error, identifying which key failed which check.
func ParseExtraArgRules(raw []string) ([]ExtraArgRule, error) {
	var rules []ExtraArgRule
	var errs []error

	invalid := func(msg, entry string) {
		errs = append(errs, fmt.Errorf("invalid --extra-arg: %s: %s", msg, entry))
	}

	for _, entry := range raw {
		var decoded rawExtraArg
		if err := json.Unmarshal([]byte(entry), &decoded); err != nil {
			invalid(err.Error(), entry)
			continue
		}

		if decoded.Match == nil {
			invalid("no match key", entry)
			continue
		}
		if len(decoded.Match) != 2 {
			invalid("match key is not a list of two strings", entry)
			continue
		}
		var matchKey, matchValue string
		if json.Unmarshal(decoded.Match[0], &matchKey) != nil ||
			json.Unmarshal(decoded.Match[1], &matchValue) != nil {
			invalid("match values are not strings", entry)
			continue
		}
		if decoded.ArgName == nil {
			invalid("no arg_name key", entry)
			continue
		}
		if decoded.ArgType == nil {
			invalid("no arg_type key", entry)
			continue
		}
		docstring := ""
		if decoded.ArgDocstring != nil {
			if json.Unmarshal(decoded.ArgDocstring, &docstring) != nil {
				invalid("arg_docstring is not a string", entry)
				continue
			}
		}

		rules = append(rules, ExtraArgRule{
			MatchKey:     matchKey,
			MatchValue:   matchValue,
			ArgName:      *decoded.ArgName,
			ArgType:      *decoded.ArgType,
			ArgDocstring: docstring,
		})
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return rules, nil
}

// ExtraParamsForRequests locates the request structs whose routes match
// an extra-argument rule and returns the parameters to inject, keyed on
// the request struct.
func ExtraParamsForRequests(api *ir.Api, rules []ExtraArgRule) map[*ir.Struct][]ExtraParam {
	if len(rules) == 0 {
		return nil
	}

	type structRule struct {
		st   *ir.Struct
		rule int
	}
	applied := make(map[structRule]struct{})

	out := make(map[*ir.Struct][]ExtraParam)
	for _, ns := range api.Namespaces {
		for _, route := range ns.Routes {
			request, _ := ir.UnwrapNullable(route.Request)
			st, ok := request.(*ir.Struct)
			if !ok {
				continue
			}
			// Rules apply in declaration order so output stays
			// deterministic. A rule injects once per request type, even
			// when several matching routes share it.
			for i, rule := range rules {
				if route.Attrs[rule.MatchKey] != rule.MatchValue {
					continue
				}
				if _, dup := applied[structRule{st, i}]; dup {
					continue
				}
				applied[structRule{st, i}] = struct{}{}
				out[st] = append(out[st], ExtraParam{
					Name:      rule.ArgName,
					Type:      rule.ArgType,
					Docstring: rule.ArgDocstring,
				})
			}
		}
	}
	return out
}
