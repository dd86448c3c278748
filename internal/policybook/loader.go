package policybook

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/ansible-policy/gatekeeper/internal/errs"
	"github.com/ansible-policy/gatekeeper/internal/expr"
	"github.com/ansible-policy/gatekeeper/internal/expr/ast"
)

// wrapSchemaError preserves a more specific error kind (e.g. a condition's
// KindParse) already attached deeper in the chain; only a plain Go error
// gets promoted to KindSchema here.
func wrapSchemaError(path string, err error) error {
	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}
	return errs.New(errs.KindSchema, path, err)
}

// Loader reads policybook YAML files through an afero.Fs, so both real
// and in-memory filesystems (tests) work without branching code paths.
type Loader struct {
	fs afero.Fs
}

func NewLoader(fs afero.Fs) *Loader {
	return &Loader{fs: fs}
}

func NewOsLoader() *Loader {
	return NewLoader(afero.NewOsFs())
}

// LoadFile parses one policybook YAML file into a Document. Unreadable
// files and invalid YAML return a *errs.Error with Kind KindScan; malformed
// documents return KindSchema, KindParse or KindUnsupportedAction; callers
// skip the file and continue with the rest of the directory (§4.5, §7).
func (l *Loader) LoadFile(path string) (*Document, error) {
	f, err := l.fs.Open(path)
	if err != nil {
		return nil, errs.New(errs.KindScan, path, err)
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, errs.New(errs.KindScan, path, err)
	}

	var rawSets []rawPolicySet
	if err := yaml.Unmarshal(raw, &rawSets); err != nil {
		return nil, errs.New(errs.KindScan, path, err)
	}

	doc := &Document{Path: path}
	seenSets := map[string]bool{}
	for _, rs := range rawSets {
		ps, err := buildPolicySet(rs)
		if err != nil {
			return nil, wrapSchemaError(path, err)
		}
		if seenSets[ps.Name] {
			return nil, errs.Newf(errs.KindSchema, path, "duplicate policy set name %q", ps.Name)
		}
		seenSets[ps.Name] = true
		doc.PolicySets = append(doc.PolicySets, ps)
	}
	return doc, nil
}

func buildPolicySet(rs rawPolicySet) (*PolicySet, error) {
	if err := validateStruct(rs); err != nil {
		return nil, err
	}

	vars := rs.Vars
	if vars == nil {
		vars = map[string]any{}
	}
	declared := expr.Vars{}
	for name := range vars {
		declared[name] = true
	}

	ps := &PolicySet{
		Name:                  rs.Name,
		Hosts:                 hostsOf(rs.Hosts),
		Vars:                  vars,
		MatchMultiplePolicies: rs.MatchMultiplePolicies != nil && *rs.MatchMultiplePolicies,
	}

	seenPolicies := map[string]bool{}
	for _, rp := range rs.Policies {
		p, err := buildPolicy(rp, declared)
		if err != nil {
			return nil, fmt.Errorf("policy set %q: %w", rs.Name, err)
		}
		if seenPolicies[p.Name] {
			return nil, fmt.Errorf("policy set %q: duplicate policy name %q", rs.Name, p.Name)
		}
		seenPolicies[p.Name] = true
		if !p.Enabled {
			continue
		}
		ps.Policies = append(ps.Policies, p)
	}
	return ps, nil
}

func buildPolicy(rp rawPolicy, declared expr.Vars) (*Policy, error) {
	if err := validateStruct(rp); err != nil {
		return nil, err
	}
	target, err := ParseTarget(rp.Target)
	if err != nil {
		return nil, fmt.Errorf("policy %q: %w", rp.Name, err)
	}

	cond, err := buildCondition(rp.Condition, declared)
	if err != nil {
		return nil, fmt.Errorf("policy %q: %w", rp.Name, err)
	}

	actions, err := buildActions(rp)
	if err != nil {
		return nil, fmt.Errorf("policy %q: %w", rp.Name, err)
	}
	if len(actions) == 0 {
		return nil, fmt.Errorf("policy %q: at least one action is required", rp.Name)
	}

	enabled := true
	if rp.Enabled != nil {
		enabled = *rp.Enabled
	}

	tags := append([]string(nil), rp.Tags...)
	sort.Strings(tags)

	return &Policy{
		Name:      rp.Name,
		Target:    target,
		Condition: cond,
		Actions:   actions,
		Enabled:   enabled,
		Tags:      tags,
	}, nil
}

// buildCondition normalizes the three YAML shapes a `condition` field may
// take: a bare string, a literal bool, or a quantified map of strings.
func buildCondition(v any, declared expr.Vars) (*ast.Condition, error) {
	switch c := v.(type) {
	case nil:
		return &ast.Condition{Quantifier: ast.QuantAll, Children: []ast.Node{}}, nil
	case string:
		node, err := expr.ParseCondition(c, declared)
		if err != nil {
			return nil, err
		}
		return &ast.Condition{Quantifier: ast.QuantAll, Children: []ast.Node{node}}, nil
	case bool:
		return &ast.Condition{Quantifier: ast.QuantAll, Children: []ast.Node{ast.Boolean(c)}}, nil
	case map[string]any:
		for _, key := range []string{"all", "any", "not_all"} {
			raw, ok := c[key]
			if !ok {
				continue
			}
			items, ok := raw.([]any)
			if !ok {
				return nil, fmt.Errorf("condition %q must be a list of strings", key)
			}
			quant, err := ast.ParseQuantifier(key)
			if err != nil {
				return nil, err
			}
			children := make([]ast.Node, 0, len(items))
			for _, item := range items {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("condition %q entries must be strings", key)
				}
				node, err := expr.ParseCondition(s, declared)
				if err != nil {
					return nil, err
				}
				children = append(children, node)
			}
			return &ast.Condition{Quantifier: quant, Children: children}, nil
		}
		return nil, fmt.Errorf("condition map must have one of all/any/not_all")
	default:
		return nil, fmt.Errorf("condition has an unsupported shape")
	}
}

// buildActions normalizes the `action` (singular) and `actions` (plural)
// YAML fields, each a map (or list of maps) whose sole key names the
// action kind and whose value carries its keyword arguments.
func buildActions(rp rawPolicy) ([]*Action, error) {
	var raw []any
	if rp.Action != nil {
		raw = append(raw, rp.Action)
	}
	switch a := rp.Actions.(type) {
	case nil:
	case []any:
		raw = append(raw, a...)
	case map[string]any:
		raw = append(raw, a)
	default:
		return nil, fmt.Errorf("actions must be a map or a list of maps")
	}

	actions := make([]*Action, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok || len(m) != 1 {
			return nil, fmt.Errorf("each action must be a single-key map naming its kind")
		}
		for kindStr, argsRaw := range m {
			kind, err := ParseActionKind(kindStr)
			if err != nil {
				return nil, errs.New(errs.KindUnsupportedAction, kindStr, err)
			}
			args, _ := argsRaw.(map[string]any)
			if args == nil {
				args = map[string]any{}
			}
			msg, _ := args["msg"].(string)
			actions = append(actions, &Action{Kind: kind, Args: args, Msg: msg})
		}
	}
	return actions, nil
}
