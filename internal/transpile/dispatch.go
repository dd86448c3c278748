package transpile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ansible-policy/gatekeeper/internal/expr/ast"
)

// emitter accumulates helper rule text for one policy document and tracks
// which helper names it has already used, guaranteeing
// Testable Property 5: no two helpers share a name, every referenced
// helper is defined.
type emitter struct {
	policy  string
	helpers []string        // rendered "name = true if { ... }" blocks, in emission order
	seen    map[string]bool // helper names already used
	counts  map[int]int     // ordinal counter per depth
}

func newEmitter(policyName string) *emitter {
	return &emitter{
		policy: policyName,
		seen:   map[string]bool{},
		counts: map[int]int{},
	}
}

// nextName allocates the next unique helper name at the given depth, of
// the form "<policy>_<depth>_<ordinal>" (§3 invariant).
func (e *emitter) nextName(depth int) string {
	ord := e.counts[depth]
	e.counts[depth] = ord + 1
	name := fmt.Sprintf("%s_%d_%d", e.policy, depth, ord)
	for e.seen[name] {
		ord = e.counts[depth]
		e.counts[depth] = ord + 1
		name = fmt.Sprintf("%s_%d_%d", e.policy, depth, ord)
	}
	e.seen[name] = true
	return name
}

func (e *emitter) define(name, body string) {
	e.helpers = append(e.helpers, fmt.Sprintf("%s = true if {\n\t%s\n}\n", name, body))
}

// defineClauses emits several same-named clauses, the idiom Rego uses for
// rule-level disjunction (AnyCondition/OrExpression, NotAllCondition).
func (e *emitter) defineClauses(name string, bodies []string) {
	for _, body := range bodies {
		e.helpers = append(e.helpers, fmt.Sprintf("%s = true if {\n\t%s\n}\n", name, body))
	}
}

// emit dispatches on node kind and returns the name of the helper rule
// that carries its truth value, per the §4.4 handler table.
func (e *emitter) emit(node ast.Node, depth int) (string, error) {
	switch n := node.(type) {
	case *ast.Binary:
		return e.emitBinary(n, depth)
	case *ast.Defined:
		return e.emitDefined(n, depth)
	case *ast.Search:
		return e.emitSearch(n, depth)
	case *ast.Select:
		return e.emitSelect(n, depth)
	case *ast.Negate:
		return e.emitNegate(n, depth)
	case *ast.BoolExpr:
		return e.emitBoolExpr(n, depth)
	case *ast.Condition:
		return e.emitCondition(n, depth)
	case ast.Boolean:
		name := e.nextName(depth)
		if n {
			e.define(name, "true")
		} else {
			e.define(name, "false")
		}
		return name, nil
	default:
		return "", fmt.Errorf("transpile: node kind %q has no top-level helper form", node.Kind())
	}
}

func (e *emitter) emitBinary(n *ast.Binary, depth int) (string, error) {
	name := e.nextName(depth)
	lhs, err := renderExpr(n.LHS)
	if err != nil {
		return "", err
	}
	switch n.Op {
	case ast.OpEquals, ast.OpNotEquals:
		if b, ok := n.RHS.(ast.Boolean); ok {
			body := lhs
			if (n.Op == ast.OpEquals && !bool(b)) || (n.Op == ast.OpNotEquals && bool(b)) {
				body = "not " + lhs
			}
			e.define(name, body)
			return name, nil
		}
		rhs, err := renderExpr(n.RHS)
		if err != nil {
			return "", err
		}
		op := "=="
		if n.Op == ast.OpNotEquals {
			op = "!="
		}
		e.define(name, fmt.Sprintf("%s %s %s", lhs, op, rhs))
		return name, nil

	case ast.OpGreaterThan, ast.OpLessThan, ast.OpGreaterThanOrEqualTo, ast.OpLessThanOrEqualTo:
		rhs, err := renderExpr(n.RHS)
		if err != nil {
			return "", err
		}
		e.define(name, fmt.Sprintf("%s %s %s", lhs, comparisonSymbol(n.Op), rhs))
		return name, nil

	case ast.OpItemInList, ast.OpItemNotInList:
		// "<item> in <list>": LHS is the item, RHS is the list.
		rhs, err := renderExpr(n.RHS)
		if err != nil {
			return "", err
		}
		listVar := name + "_list"
		fn := "check_item_in_list"
		if n.Op == ast.OpItemNotInList {
			fn = "check_item_not_in_list"
		}
		e.define(name, fmt.Sprintf("%s := utils.to_list(%s)\n\tutils.%s(%s, %s)", listVar, rhs, fn, listVar, lhs))
		return name, nil

	case ast.OpListContainsItem, ast.OpListNotContainsItem:
		// "<list> contains <item>": LHS is the list, RHS is the item.
		rhs, err := renderExpr(n.RHS)
		if err != nil {
			return "", err
		}
		listVar := name + "_list"
		fn := "check_item_in_list"
		if n.Op == ast.OpListNotContainsItem {
			fn = "check_item_not_in_list"
		}
		e.define(name, fmt.Sprintf("%s := utils.to_list(%s)\n\tutils.%s(%s, %s)", listVar, lhs, fn, listVar, rhs))
		return name, nil

	case ast.OpKeyInDict, ast.OpKeyNotInDict:
		rhs, err := renderExpr(n.RHS)
		if err != nil {
			return "", err
		}
		if n.Op == ast.OpKeyInDict {
			e.define(name, fmt.Sprintf("utils.check_item_key_in_list(%s, %s)", lhs, rhs))
		} else {
			e.define(name, fmt.Sprintf("not utils.check_item_key_in_list(%s, %s)", lhs, rhs))
		}
		return name, nil

	default:
		return "", fmt.Errorf("transpile: unhandled binary op %q", n.Op)
	}
}

func comparisonSymbol(op ast.BinaryOp) string {
	switch op {
	case ast.OpGreaterThan:
		return ">"
	case ast.OpLessThan:
		return "<"
	case ast.OpGreaterThanOrEqualTo:
		return ">="
	case ast.OpLessThanOrEqualTo:
		return "<="
	default:
		return "=="
	}
}

// emitDefined handles IsDefinedExpression/IsNotDefinedExpression. The body
// references the parent container (so a missing ancestor fails the rule
// cleanly) as well as the full path.
func (e *emitter) emitDefined(n *ast.Defined, depth int) (string, error) {
	name := e.nextName(depth)
	path, err := renderExpr(n.Target)
	if err != nil {
		return "", err
	}
	parent := parentPath(path)
	var lines []string
	if parent != "" {
		lines = append(lines, parent)
	}
	if n.Negate {
		lines = append(lines, "not "+path)
	} else {
		lines = append(lines, path)
	}
	e.define(name, strings.Join(lines, "\n\t"))
	return name, nil
}

// parentPath strips the last ".key"/"[...]" accessor from a rendered path,
// returning "" if there is nothing to strip (a bare root reference).
func parentPath(path string) string {
	if i := strings.LastIndexAny(path, ".["); i > 0 {
		return path[:i]
	}
	return ""
}

func (e *emitter) emitSearch(n *ast.Search, depth int) (string, error) {
	name := e.nextName(depth)
	lhs, err := renderExpr(n.LHS)
	if err != nil {
		return "", err
	}
	pattern, err := renderExpr(n.RHS.Pattern)
	if err != nil {
		return "", err
	}
	ignorecase := false
	for _, opt := range n.RHS.Options {
		if opt.Name == "ignorecase" {
			if b, ok := opt.Value.(ast.Boolean); ok && bool(b) {
				ignorecase = true
			}
		}
	}
	l, p := lhs, pattern
	if ignorecase {
		l = fmt.Sprintf("lower(%s)", lhs)
		p = fmt.Sprintf("lower(%s)", pattern)
	}

	var expr string
	switch n.RHS.SearchKind {
	case ast.SearchKindMatch:
		expr = fmt.Sprintf("startswith(%s, %s)", l, p)
	case ast.SearchKindRegex:
		expr = fmt.Sprintf("regex.find_n(%s, %s, 1) != []", p, l)
	case ast.SearchKindSearch:
		expr = fmt.Sprintf("contains(%s, %s)", l, p)
	default:
		return "", fmt.Errorf("transpile: unknown search kind %q", n.RHS.SearchKind)
	}

	if n.Negate {
		if n.RHS.SearchKind == ast.SearchKindRegex {
			expr = strings.Replace(expr, "!= []", "== []", 1)
		} else {
			expr = "not " + expr
		}
	}
	e.define(name, expr)
	return name, nil
}

func (e *emitter) emitSelect(n *ast.Select, depth int) (string, error) {
	name := e.nextName(depth)
	lhs, err := renderExpr(n.LHS)
	if err != nil {
		return "", err
	}
	value, err := renderExpr(n.Value)
	if err != nil {
		return "", err
	}
	matchesVar := name + "_matches"
	itemExpr := "x"
	if n.Attr {
		itemExpr = fmt.Sprintf("object.get(x, %s, null)", strconv.Quote(*n.Key))
	}
	predicate := selectPredicate(n.Operator, itemExpr, value)

	cmp := "count(%s) > 0"
	if n.Negate {
		cmp = "count(%s) == 0"
	}
	body := fmt.Sprintf("%s := [x | some x in %s; %s]\n\t%s", matchesVar, lhs, predicate, fmt.Sprintf(cmp, matchesVar))
	e.define(name, body)
	return name, nil
}

// selectPredicate builds the per-element filter predicate for a
// select()/selectattr() helper. Comparison operators render as Rego infix
// expressions; the string-search operators reduce to Rego builtins.
func selectPredicate(op, itemExpr, value string) string {
	switch op {
	case "match":
		return fmt.Sprintf("startswith(%s, %s)", itemExpr, value)
	case "search":
		return fmt.Sprintf("contains(%s, %s)", itemExpr, value)
	case "regex":
		return fmt.Sprintf("regex.find_n(%s, %s, 1) != []", value, itemExpr)
	default:
		return fmt.Sprintf("%s %s %s", itemExpr, op, value)
	}
}

func (e *emitter) emitNegate(n *ast.Negate, depth int) (string, error) {
	child, err := e.emit(n.Child, depth+1)
	if err != nil {
		return "", err
	}
	name := e.nextName(depth)
	e.define(name, "not "+child)
	return name, nil
}

func (e *emitter) emitBoolExpr(n *ast.BoolExpr, depth int) (string, error) {
	children := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		h, err := e.emit(c, depth+1)
		if err != nil {
			return "", err
		}
		children = append(children, h)
	}
	name := e.nextName(depth)
	switch n.Op {
	case ast.OpAnd:
		e.define(name, strings.Join(children, "\n\t"))
	case ast.OpOr:
		bodies := make([]string, len(children))
		for i, h := range children {
			bodies[i] = h
		}
		e.defineClauses(name, bodies)
	default:
		return "", fmt.Errorf("transpile: unknown boolean op %q", n.Op)
	}
	return name, nil
}

// emitCondition handles the policy root: AllCondition/AnyCondition/NotAllCondition.
func (e *emitter) emitCondition(n *ast.Condition, depth int) (string, error) {
	children := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		h, err := e.emit(c, depth+1)
		if err != nil {
			return "", err
		}
		children = append(children, h)
	}
	name := e.nextName(depth)
	switch n.Quantifier {
	case ast.QuantAll:
		body := strings.Join(children, "\n\t")
		if body == "" {
			// No children: vacuously true (Rego rejects an empty body).
			body = "true"
		}
		e.define(name, body)
	case ast.QuantAny:
		e.defineClauses(name, children)
	case ast.QuantNotAll:
		bodies := make([]string, len(children))
		for i, h := range children {
			bodies[i] = "not " + h
		}
		e.defineClauses(name, bodies)
	default:
		return "", fmt.Errorf("transpile: unknown quantifier %q", n.Quantifier)
	}
	return name, nil
}

// renderExpr renders a leaf/atom AST node as target-language (Rego) source
// text, used wherever the grammar requires a value rather than a helper
// reference (comparison/membership operands, select() values, ...).
func renderExpr(node ast.Node) (string, error) {
	switch n := node.(type) {
	case *ast.Identifier:
		if n.Root == "vars" {
			return strings.TrimPrefix(n.Path, "vars."), nil
		}
		return n.Path, nil
	case ast.Boolean:
		if n {
			return "true", nil
		}
		return "false", nil
	case ast.Integer:
		return strconv.FormatInt(int64(n), 10), nil
	case ast.Float:
		return strconv.FormatFloat(float64(n), 'g', -1, 64), nil
	case ast.String:
		return strconv.Quote(string(n)), nil
	case ast.Null:
		return "null", nil
	case *ast.List:
		items := make([]string, 0, len(n.Items))
		for _, item := range n.Items {
			s, err := renderExpr(item)
			if err != nil {
				return "", err
			}
			items = append(items, s)
		}
		return "[" + strings.Join(items, ", ") + "]", nil
	default:
		return "", fmt.Errorf("transpile: %q cannot be rendered as a value expression", node.Kind())
	}
}
