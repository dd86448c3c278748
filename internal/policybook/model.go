// Package policybook loads the user-authored policybook YAML documents
// into the PolicySet -> Policy -> Action/Condition tree (component C2),
// resolving each condition string through internal/expr using the
// enclosing PolicySet's declared variables.
package policybook

import (
	"fmt"

	"github.com/ansible-policy/gatekeeper/internal/expr/ast"
)

// Target enumerates the kinds of input a Policy can be evaluated against.
type Target string

const (
	TargetTask       Target = "task"
	TargetPlay       Target = "play"
	TargetRole       Target = "role"
	TargetProject    Target = "project"
	TargetEvent      Target = "event"
	TargetTaskResult Target = "task_result"
	TargetRest       Target = "rest"
)

var validTargets = map[Target]bool{
	TargetTask: true, TargetPlay: true, TargetRole: true, TargetProject: true,
	TargetEvent: true, TargetTaskResult: true, TargetRest: true,
}

// ActionKind is the closed set of action kinds a Policy's action list may use.
type ActionKind string

const (
	ActionAllow ActionKind = "allow"
	ActionDeny  ActionKind = "deny"
	ActionInfo  ActionKind = "info"
	ActionWarn  ActionKind = "warn"
	ActionIgnore ActionKind = "ignore"
)

var validActionKinds = map[ActionKind]bool{
	ActionAllow: true, ActionDeny: true, ActionInfo: true, ActionWarn: true, ActionIgnore: true,
}

// Document is one parsed policybook YAML file: an ordered list of
// PolicySets, in document order.
type Document struct {
	Path       string
	PolicySets []*PolicySet
}

// PolicySet is a named, host-scoped group of policies. Name is unique
// within the Document it came from.
type PolicySet struct {
	Name                  string
	Hosts                 []string
	Vars                  map[string]any
	Policies              []*Policy
	MatchMultiplePolicies bool
}

// Policy is a single named rule: a target kind, a condition tree, and an
// ordered, non-empty action list.
type Policy struct {
	Name      string
	Target    Target
	Condition *ast.Condition
	Actions   []*Action
	Enabled   bool
	Tags      []string
}

// Action is one action-kind entry with its keyword arguments. Msg is
// pulled out of Args because C5 treats it specially (placeholder
// substitution into a print/sprintf call); it is still present in Args.
type Action struct {
	Kind ActionKind
	Args map[string]any
	Msg  string
}

// ParseActionKind validates k against the closed action-kind set.
func ParseActionKind(k string) (ActionKind, error) {
	kind := ActionKind(k)
	if !validActionKinds[kind] {
		return "", fmt.Errorf("unsupported action kind %q", k)
	}
	return kind, nil
}

// ParseTarget validates t against the closed target set.
func ParseTarget(t string) (Target, error) {
	target := Target(t)
	if !validTargets[target] {
		return "", fmt.Errorf("unknown policy target %q", t)
	}
	return target, nil
}
