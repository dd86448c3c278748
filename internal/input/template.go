package input

import (
	"regexp"
	"strings"

	"github.com/nikolalohinski/gonja"

	"github.com/ansible-policy/gatekeeper/internal/errs"
)

// wholePlaceholder matches a string that is, after trimming, exactly
// one "{{ name }}" placeholder referencing a bare variable name.
var wholePlaceholder = regexp.MustCompile(`^\{\{\s*([a-zA-Z_][a-zA-Z0-9_.]*)\s*\}\}$`)

var anyPlaceholder = regexp.MustCompile(`\{\{\s*[a-zA-Z_][a-zA-Z0-9_.]*\s*\}\}`)

// ResolveArgs recursively resolves {{ name }} placeholders throughout a
// task-argument map against the layered variable map, repeating until
// the tree stops changing or no known variable remains unresolved
// (§4.8). Maximum 10 passes guards against a pathological cycle of
// mutually-referencing variables.
func ResolveArgs(args map[string]any, vars map[string]any) (map[string]any, error) {
	cur := any(args)
	for i := 0; i < 10; i++ {
		next, changed, err := resolveValue(cur, vars)
		if err != nil {
			return nil, err
		}
		if !changed {
			break
		}
		cur = next
	}
	out, _ := cur.(map[string]any)
	return out, nil
}

func resolveValue(v any, vars map[string]any) (any, bool, error) {
	switch val := v.(type) {
	case string:
		resolved, err := resolveString(val, vars)
		if err != nil {
			return nil, false, err
		}
		s, stillString := resolved.(string)
		changed := !stillString || s != val
		return resolved, changed, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		anyChanged := false
		for k, child := range val {
			r, changed, err := resolveValue(child, vars)
			if err != nil {
				return nil, false, err
			}
			out[k] = r
			anyChanged = anyChanged || changed
		}
		return out, anyChanged, nil
	case []any:
		out := make([]any, len(val))
		anyChanged := false
		for i, child := range val {
			r, changed, err := resolveValue(child, vars)
			if err != nil {
				return nil, false, err
			}
			out[i] = r
			anyChanged = anyChanged || changed
		}
		return out, anyChanged, nil
	default:
		return v, false, nil
	}
}

// resolveString implements the §4.8 substitution rule for one string
// leaf: a string that is entirely one "{{ name }}" placeholder
// resolves to the variable's raw value (with list-of-1 unwrapped to
// its singleton and list-of->1 fanned out to a list of values,
// stringified downstream by the serializer); any other string with one
// or more placeholders is rendered through gonja, stringifying each
// referenced variable inline.
func resolveString(s string, vars map[string]any) (any, error) {
	if m := wholePlaceholder.FindStringSubmatch(s); m != nil {
		name := m[1]
		val, ok := lookup(vars, name)
		if !ok {
			return s, nil
		}
		if list, isList := val.([]any); isList {
			switch len(list) {
			case 0:
				return []any{}, nil
			case 1:
				return list[0], nil
			default:
				return list, nil
			}
		}
		return val, nil
	}

	if !anyPlaceholder.MatchString(s) {
		return s, nil
	}

	tpl, err := gonja.FromString(s)
	if err != nil {
		return nil, errs.New(errs.KindInvalidAssignment, s, err)
	}
	rendered, err := tpl.Execute(gonja.Context(vars))
	if err != nil {
		return nil, errs.New(errs.KindInvalidAssignment, s, err)
	}
	return rendered, nil
}

// lookup resolves a possibly dotted variable reference ("a.b") against
// a flat variable map, descending through nested maps.
func lookup(vars map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = vars
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}
