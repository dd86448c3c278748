// Package expr implements the condition parser (C1): a hand-written
// recursive-descent parser over a hand-written lexer for the policybook
// condition mini-language (Boolean/compare/membership/search/select/
// selectattr expressions over input/vars/variable references). Output is
// the tagged AST defined in internal/expr/ast, which internal/transpile
// walks to emit target-policy fragments.
package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ansible-policy/gatekeeper/internal/errs"
	"github.com/ansible-policy/gatekeeper/internal/expr/ast"
)

// Vars is the set of policybook-declared variable names visible while
// parsing one condition string; used to validate bare identifier roots.
type Vars map[string]bool

// selectOperators is the fixed whitelist select()/selectattr() operators
// must belong to: comparison operators plus the string-search predicates.
var selectOperators = map[string]bool{
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
	"match": true, "regex": true, "search": true,
}

// ParseCondition parses a single condition string into an expression AST
// node. vars is the declared-variable set of the enclosing PolicySet.
func ParseCondition(src string, vars Vars) (ast.Node, error) {
	toks, err := newLexer(src).tokenize()
	if err != nil {
		return nil, errs.New(errs.KindParse, src, err)
	}
	p := &parser{toks: toks, vars: vars, src: src}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, p.errorf(errs.KindParse, "unexpected trailing input near %q", p.cur().text)
	}
	return node, nil
}

type parser struct {
	toks []token
	pos  int
	vars Vars
	src  string
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) errorf(kind errs.Kind, format string, args ...any) error {
	return errs.Newf(kind, p.src, format, args...)
}

// isKeyword reports whether the current token is a bare identifier equal
// (case-sensitively) to one of the given keyword texts, without consuming it.
func (p *parser) isKeyword(words ...string) string {
	if p.cur().kind != tokIdent {
		return ""
	}
	for _, w := range words {
		if p.cur().text == w {
			return w
		}
	}
	return ""
}

// ---- precedence chain (loosest to tightest): or, and, not, comparison,
// is/is not, in/not in, contains/not contains, has key/lacks key, atom ----

func (p *parser) parseOr() (ast.Node, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []ast.Node{first}
	for p.isKeyword("or") != "" {
		p.advance()
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, next)
	}
	if len(children) == 1 {
		return first, nil
	}
	return &ast.BoolExpr{Op: ast.OpOr, Children: children}, nil
}

func (p *parser) parseAnd() (ast.Node, error) {
	first, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	children := []ast.Node{first}
	for p.isKeyword("and") != "" {
		p.advance()
		next, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		children = append(children, next)
	}
	if len(children) == 1 {
		return first, nil
	}
	return &ast.BoolExpr{Op: ast.OpAnd, Children: children}, nil
}

func (p *parser) parseNot() (ast.Node, error) {
	if p.isKeyword("not") != "" {
		p.advance()
		child, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ast.Negate{Child: child}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[tokenKind]ast.BinaryOp{
	tokEq:    ast.OpEquals,
	tokNotEq: ast.OpNotEquals,
	tokLt:    ast.OpLessThan,
	tokLe:    ast.OpLessThanOrEqualTo,
	tokGt:    ast.OpGreaterThan,
	tokGe:    ast.OpGreaterThanOrEqualTo,
}

func (p *parser) parseComparison() (ast.Node, error) {
	left, err := p.parseIs(nil)
	if err != nil {
		return nil, err
	}
	if op, ok := comparisonOps[p.cur().kind]; ok {
		p.advance()
		right, err := p.parseIs(nil)
		if err != nil {
			return nil, err
		}
		return &ast.Binary{Op: op, LHS: left, RHS: right}, nil
	}
	return left, nil
}

// parseIs parses "<operand> is [not] <predicate>". The operand is already
// parsed by the caller's tighter level, so this just threads it through
// when invoked internally; when called directly (top-level) it parses its
// own operand via parseIn.
func (p *parser) parseIs(operand ast.Node) (ast.Node, error) {
	var left ast.Node
	var err error
	if operand != nil {
		left = operand
	} else {
		left, err = p.parseIn()
		if err != nil {
			return nil, err
		}
	}
	if p.isKeyword("is") == "" {
		return left, nil
	}
	p.advance()
	negate := false
	if p.isKeyword("not") != "" {
		negate = true
		p.advance()
	}
	switch p.isKeyword("defined", "match", "regex", "search", "select", "selectattr") {
	case "defined":
		p.advance()
		id, ok := left.(*ast.Identifier)
		if !ok {
			return nil, p.errorf(errs.KindParse, "'is defined' requires an identifier operand")
		}
		return &ast.Defined{Negate: negate, Target: id}, nil
	case "match", "regex", "search":
		kind := ast.SearchKind(p.advance().text)
		pattern, opts, err := p.parseSearchArgs()
		if err != nil {
			return nil, err
		}
		return &ast.Search{Negate: negate, LHS: left, RHS: &ast.SearchType{
			SearchKind: kind, Pattern: pattern, Options: opts,
		}}, nil
	case "select":
		p.advance()
		opToken, value, err := p.parseSelectArgs()
		if err != nil {
			return nil, err
		}
		if !selectOperators[opToken] {
			return nil, errs.Newf(errs.KindSelectOperator, p.src, "operator %q is not permitted in select()", opToken)
		}
		return &ast.Select{Negate: negate, Operator: opToken, Value: value, LHS: left}, nil
	case "selectattr":
		p.advance()
		key, opToken, value, err := p.parseSelectAttrArgs()
		if err != nil {
			return nil, err
		}
		if !selectOperators[opToken] {
			return nil, errs.Newf(errs.KindSelectAttrOperator, p.src, "operator %q is not permitted in selectattr()", opToken)
		}
		return &ast.Select{Negate: negate, Attr: true, Key: &key, Operator: opToken, Value: value, LHS: left}, nil
	default:
		return nil, p.errorf(errs.KindParse, "expected a predicate after 'is', got %q", p.cur().text)
	}
}

func (p *parser) parseIn() (ast.Node, error) {
	left, err := p.parseContains()
	if err != nil {
		return nil, err
	}
	negate := false
	if p.isKeyword("not") != "" && p.peekIs("in") {
		negate = true
		p.advance()
	}
	if p.isKeyword("in") != "" {
		p.advance()
		right, err := p.parseContains()
		if err != nil {
			return nil, err
		}
		op := ast.OpItemInList
		if negate {
			op = ast.OpItemNotInList
		}
		return &ast.Binary{Op: op, LHS: left, RHS: right}, nil
	}
	if negate {
		return nil, p.errorf(errs.KindParse, "expected 'in' after 'not'")
	}
	return left, nil
}

func (p *parser) parseContains() (ast.Node, error) {
	left, err := p.parseHasKey()
	if err != nil {
		return nil, err
	}
	negate := false
	if p.isKeyword("not") != "" && p.peekIs("contains") {
		negate = true
		p.advance()
	}
	if p.isKeyword("contains") != "" {
		p.advance()
		right, err := p.parseHasKey()
		if err != nil {
			return nil, err
		}
		op := ast.OpListContainsItem
		if negate {
			op = ast.OpListNotContainsItem
		}
		return &ast.Binary{Op: op, LHS: left, RHS: right}, nil
	}
	if negate {
		return nil, p.errorf(errs.KindParse, "expected 'contains' after 'not'")
	}
	return left, nil
}

func (p *parser) parseHasKey() (ast.Node, error) {
	left, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	switch p.isKeyword("has", "lacks") {
	case "has":
		p.advance()
		if p.isKeyword("key") == "" {
			return nil, p.errorf(errs.KindParse, "expected 'key' after 'has'")
		}
		p.advance()
		key, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		return &ast.Binary{Op: ast.OpKeyInDict, LHS: left, RHS: key}, nil
	case "lacks":
		p.advance()
		if p.isKeyword("key") == "" {
			return nil, p.errorf(errs.KindParse, "expected 'key' after 'lacks'")
		}
		p.advance()
		key, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		return &ast.Binary{Op: ast.OpKeyNotInDict, LHS: left, RHS: key}, nil
	}
	return left, nil
}

// ---- atoms ----

func (p *parser) parseAtom() (ast.Node, error) {
	t := p.cur()
	switch t.kind {
	case tokLParen:
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.cur().kind != tokRParen {
			return nil, p.errorf(errs.KindParse, "expected ')'")
		}
		p.advance()
		return inner, nil
	case tokLBracket:
		return p.parseListLiteral()
	case tokString:
		p.advance()
		return ast.String(t.text), nil
	case tokNumber:
		p.advance()
		return parseNumberToken(t.text)
	case tokIdent:
		switch t.text {
		case "true", "True":
			p.advance()
			return ast.Boolean(true), nil
		case "false", "False":
			p.advance()
			return ast.Boolean(false), nil
		case "null":
			p.advance()
			return ast.Null{}, nil
		default:
			return p.parseIdentifierPath()
		}
	default:
		return nil, p.errorf(errs.KindParse, "unexpected token %q", t.text)
	}
}

func parseNumberToken(text string) (ast.Node, error) {
	if strings.HasSuffix(text, floatMarker) {
		raw := strings.TrimSuffix(text, floatMarker)
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errs.New(errs.KindParse, raw, err)
		}
		return ast.Float(f), nil
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, errs.New(errs.KindParse, text, err)
	}
	return ast.Integer(i), nil
}

func (p *parser) parseListLiteral() (ast.Node, error) {
	p.advance() // consume '['
	items := []ast.Node{}
	if p.cur().kind == tokRBracket {
		p.advance()
		return &ast.List{Items: items}, nil
	}
	for {
		item, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.cur().kind == tokComma {
			p.advance()
			continue
		}
		break
	}
	if p.cur().kind != tokRBracket {
		return nil, p.errorf(errs.KindParse, "expected ']'")
	}
	p.advance()
	return &ast.List{Items: items}, nil
}

// parseIdentifierPath parses a root identifier plus any `.key`/`[index]`/
// `["key"]` accessors, validating that the root is "input", "vars", or a
// declared variable (§3 invariant: unknown roots are a parse error).
func (p *parser) parseIdentifierPath() (ast.Node, error) {
	root := p.advance().text
	if root != "input" && root != "vars" && !p.vars[root] {
		return nil, errs.Newf(errs.KindParse, p.src, "identifier root %q is not input, vars, or a declared variable", root)
	}
	var sb strings.Builder
	sb.WriteString(root)
loop:
	for {
		switch p.cur().kind {
		case tokDot:
			p.advance()
			if p.cur().kind != tokIdent {
				return nil, p.errorf(errs.KindParse, "expected identifier after '.'")
			}
			sb.WriteString(".")
			sb.WriteString(p.advance().text)
		case tokLBracket:
			p.advance()
			switch p.cur().kind {
			case tokNumber:
				n := p.advance().text
				sb.WriteString("[")
				sb.WriteString(n)
				sb.WriteString("]")
			case tokString:
				s := p.advance().text
				sb.WriteString(fmt.Sprintf("[%q]", s))
			default:
				return nil, p.errorf(errs.KindParse, "expected index or key inside '[...]'")
			}
			if p.cur().kind != tokRBracket {
				return nil, p.errorf(errs.KindParse, "expected ']'")
			}
			p.advance()
		default:
			break loop
		}
	}
	return &ast.Identifier{Root: root, Path: sb.String()}, nil
}

// ---- call-argument parsing for is-predicates ----

// parseSearchArgs parses "(pattern[, name=value, ...])" for match/regex/search.
func (p *parser) parseSearchArgs() (ast.Node, []ast.Option, error) {
	if p.cur().kind != tokLParen {
		return nil, nil, p.errorf(errs.KindParse, "expected '(' after search predicate")
	}
	p.advance()
	pattern, err := p.parseAtom()
	if err != nil {
		return nil, nil, err
	}
	var opts []ast.Option
	for p.cur().kind == tokComma {
		p.advance()
		opt, err := p.parseKeywordArg()
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, opt)
	}
	if p.cur().kind != tokRParen {
		return nil, nil, p.errorf(errs.KindParse, "expected ')'")
	}
	p.advance()
	return pattern, opts, nil
}

func (p *parser) parseKeywordArg() (ast.Option, error) {
	if p.cur().kind != tokIdent {
		return ast.Option{}, p.errorf(errs.KindParse, "expected keyword argument name")
	}
	name := p.advance().text
	if p.cur().kind != tokAssign {
		return ast.Option{}, p.errorf(errs.KindParse, "expected '=' after keyword argument %q", name)
	}
	p.advance()
	value, err := p.parseAtom()
	if err != nil {
		return ast.Option{}, err
	}
	return ast.Option{Name: name, Value: value}, nil
}

// parseSelectArgs parses "(operator, value)" for select(). The leading
// operator must be a string literal naming a whitelisted operator.
func (p *parser) parseSelectArgs() (string, ast.Node, error) {
	if p.cur().kind != tokLParen {
		return "", nil, p.errorf(errs.KindParse, "expected '(' after select")
	}
	p.advance()
	if p.cur().kind != tokString {
		return "", nil, p.errorf(errs.KindParse, "expected operator string literal")
	}
	op := p.advance().text
	if p.cur().kind != tokComma {
		return "", nil, p.errorf(errs.KindParse, "expected ','")
	}
	p.advance()
	value, err := p.parseAtom()
	if err != nil {
		return "", nil, err
	}
	if p.cur().kind != tokRParen {
		return "", nil, p.errorf(errs.KindParse, "expected ')'")
	}
	p.advance()
	return op, value, nil
}

// parseSelectAttrArgs parses "(key, operator, value)" for selectattr().
func (p *parser) parseSelectAttrArgs() (string, string, ast.Node, error) {
	if p.cur().kind != tokLParen {
		return "", "", nil, p.errorf(errs.KindParse, "expected '(' after selectattr")
	}
	p.advance()
	if p.cur().kind != tokString {
		return "", "", nil, p.errorf(errs.KindParse, "expected key string literal")
	}
	key := p.advance().text
	if p.cur().kind != tokComma {
		return "", "", nil, p.errorf(errs.KindParse, "expected ','")
	}
	p.advance()
	if p.cur().kind != tokString {
		return "", "", nil, p.errorf(errs.KindParse, "expected operator string literal")
	}
	op := p.advance().text
	if p.cur().kind != tokComma {
		return "", "", nil, p.errorf(errs.KindParse, "expected ','")
	}
	p.advance()
	value, err := p.parseAtom()
	if err != nil {
		return "", "", nil, err
	}
	if p.cur().kind != tokRParen {
		return "", "", nil, p.errorf(errs.KindParse, "expected ')'")
	}
	p.advance()
	return key, op, value, nil
}

// peekIs reports whether the token after the current one is a bare
// identifier equal to word, without consuming anything.
func (p *parser) peekIs(word string) bool {
	i := p.pos + 1
	if i >= len(p.toks) {
		return false
	}
	return p.toks[i].kind == tokIdent && p.toks[i].text == word
}
