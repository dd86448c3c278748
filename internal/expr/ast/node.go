// Package ast defines the expression abstract syntax tree produced by the
// condition parser (internal/expr) and consumed by the transpiler
// (internal/transpile). Every node type implements json.Marshaler so that
// the tree can be serialized to the tagged-union JSON shape described in
// the policybook-to-target-policy compiler's wire contract: a single-key
// object whose key names the node kind. That JSON shape is the stable
// contract between parsing and code generation — downstream packages work
// against it, never against Go type identity.
package ast

import (
	"encoding/json"
	"fmt"
)

// Node is implemented by every expression AST node. It carries no
// behavior of its own; all node-kind-specific logic lives in the
// transpiler's dispatcher (a closed type switch), not in methods here.
type Node interface {
	node()
	// Kind returns the tagged-union key this node marshals under.
	Kind() string
}

// ---- Leaves ----

type Boolean bool

func (Boolean) node()        {}
func (Boolean) Kind() string { return "Boolean" }
func (b Boolean) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]bool{"Boolean": bool(b)})
}

type Integer int64

func (Integer) node()        {}
func (Integer) Kind() string { return "Integer" }
func (i Integer) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]int64{"Integer": int64(i)})
}

type Float float64

func (Float) node()        {}
func (Float) Kind() string { return "Float" }
func (f Float) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]float64{"Float": float64(f)})
}

type String string

func (String) node()        {}
func (String) Kind() string { return "String" }
func (s String) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"String": string(s)})
}

// Null represents the `null` literal.
type Null struct{}

func (Null) node()        {}
func (Null) Kind() string { return "NullType" }
func (Null) MarshalJSON() ([]byte, error) {
	return []byte(`{"NullType":null}`), nil
}

// List is a bare list literal, e.g. `["root", "admin"]`. It is not a
// tagged kind in the wire format — it marshals as a plain JSON array,
// matching how it is used: as the rhs of membership/containment checks.
type List struct {
	Items []Node
}

func (*List) node()        {}
func (*List) Kind() string { return "List" }
func (l *List) MarshalJSON() ([]byte, error) {
	if l.Items == nil {
		return []byte(`[]`), nil
	}
	return json.Marshal(l.Items)
}

// Identifier is a qualified path rooted in "input", "vars", or a
// policybook-declared variable name, e.g. `input.a.b[0]["k"]`. Root holds
// the resolved root namespace; Path holds the full source text of the
// reference (including the root segment) so the transpiler can emit it
// as a target-language reference verbatim.
type Identifier struct {
	Root string
	Path string
}

func (*Identifier) node()        {}
func (*Identifier) Kind() string { return "Identifier" }

// MarshalJSON rewrites the identifier into {"Input": path} when rooted in
// "input", or {"Variable": path} otherwise — the §4.3 AST JSON Emitter
// contract. "vars"-rooted paths resolve through the declared variable map
// the same way (they are not roots the target language treats specially).
func (id *Identifier) MarshalJSON() ([]byte, error) {
	if id.Root == "input" {
		return json.Marshal(map[string]string{"Input": id.Path})
	}
	return json.Marshal(map[string]string{"Variable": id.Path})
}

// ---- Binary operators ----

// BinaryOp enumerates the binary AST kinds that share the {lhs, rhs} shape.
type BinaryOp string

const (
	OpEquals               BinaryOp = "EqualsExpression"
	OpNotEquals            BinaryOp = "NotEqualsExpression"
	OpGreaterThan          BinaryOp = "GreaterThanExpression"
	OpLessThan             BinaryOp = "LessThanExpression"
	OpGreaterThanOrEqualTo BinaryOp = "GreaterThanOrEqualToExpression"
	OpLessThanOrEqualTo    BinaryOp = "LessThanOrEqualToExpression"
	OpItemInList           BinaryOp = "ItemInListExpression"
	OpItemNotInList        BinaryOp = "ItemNotInListExpression"
	OpListContainsItem     BinaryOp = "ListContainsItemExpression"
	OpListNotContainsItem  BinaryOp = "ListNotContainsItemExpression"
	OpKeyInDict            BinaryOp = "KeyInDictExpression"
	OpKeyNotInDict         BinaryOp = "KeyNotInDictExpression"
)

type Binary struct {
	Op  BinaryOp
	LHS Node
	RHS Node
}

func (*Binary) node()          {}
func (b *Binary) Kind() string { return string(b.Op) }
func (b *Binary) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		string(b.Op): map[string]Node{"lhs": b.LHS, "rhs": b.RHS},
	})
}

// ---- Definedness ----

// Defined tests whether a dotted identifier path resolves to a value.
type Defined struct {
	Negate bool
	Target *Identifier
}

func (*Defined) node() {}
func (d *Defined) Kind() string {
	if d.Negate {
		return "IsNotDefinedExpression"
	}
	return "IsDefinedExpression"
}
func (d *Defined) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]Node{d.Kind(): d.Target})
}

// ---- Boolean composition ----

type BoolOp string

const (
	OpAnd BoolOp = "AndExpression"
	OpOr  BoolOp = "OrExpression"
)

// BoolExpr is a flattened n-ary "and"/"or" composition: `a and b and c`
// parses to one BoolExpr with three children rather than a nested binary
// tree, matching the transpiler's "one helper per child" handling.
type BoolExpr struct {
	Op       BoolOp
	Children []Node
}

func (*BoolExpr) node()          {}
func (b *BoolExpr) Kind() string { return string(b.Op) }
func (b *BoolExpr) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string][]Node{string(b.Op): b.Children})
}

// Negate is the unary `not <expr>` boolean negation.
type Negate struct {
	Child Node
}

func (*Negate) node()        {}
func (*Negate) Kind() string { return "NegateExpression" }
func (n *Negate) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]Node{"NegateExpression": n.Child})
}

// ---- Search / match / regex ----

type SearchKind string

const (
	SearchKindSearch SearchKind = "search"
	SearchKindMatch  SearchKind = "match"
	SearchKindRegex  SearchKind = "regex"
)

// Option is a keyword argument to a search-family predicate, e.g.
// `ignorecase=true`.
type Option struct {
	Name  string
	Value Node
}

func (o Option) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"name": o.Name, "value": o.Value})
}

// SearchType is the nested operator payload of a Search node's rhs: the
// predicate kind, pattern, and keyword options, per §4.3.
type SearchType struct {
	SearchKind SearchKind
	Pattern    Node
	Options    []Option
}

func (*SearchType) node()        {}
func (*SearchType) Kind() string { return "SearchType" }
func (s *SearchType) MarshalJSON() ([]byte, error) {
	opts := s.Options
	if opts == nil {
		opts = []Option{}
	}
	return json.Marshal(map[string]any{
		"SearchType": map[string]any{
			"kind":    String(s.SearchKind),
			"pattern": s.Pattern,
			"options": opts,
		},
	})
}

// Search is `<lhs> is [not] match|regex|search(pattern, options...)`.
type Search struct {
	Negate bool
	LHS    Node
	RHS    *SearchType
}

func (*Search) node() {}
func (s *Search) Kind() string {
	if s.Negate {
		return "SearchNotMatchesExpression"
	}
	return "SearchMatchesExpression"
}
func (s *Search) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		s.Kind(): map[string]Node{"lhs": s.LHS, "rhs": s.RHS},
	})
}

// ---- select / selectattr ----

// Select is `<lhs> is [not] select(operator, value)` or, with Key set,
// `<lhs> is [not] selectattr(key, operator, value)`.
type Select struct {
	Negate   bool
	Attr     bool
	Key      *string
	Operator string
	Value    Node
	LHS      Node
}

func (*Select) node() {}
func (s *Select) Kind() string {
	switch {
	case s.Attr && s.Negate:
		return "SelectAttrNotExpression"
	case s.Attr:
		return "SelectAttrExpression"
	case s.Negate:
		return "SelectNotExpression"
	default:
		return "SelectExpression"
	}
}
func (s *Select) MarshalJSON() ([]byte, error) {
	payload := map[string]any{
		"lhs":      s.LHS,
		"operator": s.Operator,
		"value":    s.Value,
	}
	if s.Key != nil {
		payload["key"] = *s.Key
	}
	return json.Marshal(map[string]any{s.Kind(): payload})
}

// ---- Root condition ----

type Quantifier string

const (
	QuantAll    Quantifier = "AllCondition"
	QuantAny    Quantifier = "AnyCondition"
	QuantNotAll Quantifier = "NotAllCondition"
)

// ParseQuantifier maps a policybook quantifier keyword ("all", "any",
// "not_all") to its AST Quantifier, returning an error for anything else.
func ParseQuantifier(s string) (Quantifier, error) {
	switch s {
	case "all":
		return QuantAll, nil
	case "any":
		return QuantAny, nil
	case "not_all":
		return QuantNotAll, nil
	default:
		return "", fmt.Errorf("unknown condition quantifier %q", s)
	}
}

// Condition is the root of a policy's condition tree: a quantifier over a
// list of child expressions (each itself a parsed condition string).
type Condition struct {
	Quantifier Quantifier
	Children   []Node
}

func (*Condition) node()        {}
func (c *Condition) Kind() string { return string(c.Quantifier) }
func (c *Condition) MarshalJSON() ([]byte, error) {
	children := c.Children
	if children == nil {
		children = []Node{}
	}
	return json.Marshal(map[string][]Node{string(c.Quantifier): children})
}
