package transpile

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/format"

	"github.com/ansible-policy/gatekeeper/internal/errs"
	"github.com/ansible-policy/gatekeeper/internal/expr"
	"github.com/ansible-policy/gatekeeper/internal/policybook"
)

var packageNameReplacer = regexp.MustCompile(`[\s?()'"-]+`)

// DerivePackageName turns a policy name into a valid Rego package
// identifier by replacing runs of whitespace, hyphens, '?', '(', ')' and
// quotes with underscores (§4.5 step 1), trimming leading and trailing
// underscores, prefixing "p_" before a leading digit, and lowercasing.
func DerivePackageName(policyName string) string {
	name := packageNameReplacer.ReplaceAllString(policyName, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		name = "policy"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "p_" + name
	}
	return strings.ToLower(name)
}

// Document is one compiled policy file, ready to be written to disk.
type Document struct {
	PackageName string
	Source      []byte
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*(.*?)\s*\}\}`)

// CompileDocument drives C4 on the policy's condition tree and assembles
// the full compiled document described in §3/§4.5/§6: package header,
// fixed imports, metadata, variable declarations, helper rules, and one
// rule per action.
func CompileDocument(ps *policybook.PolicySet, p *policybook.Policy) (*Document, error) {
	pkg := DerivePackageName(p.Name)
	declared := expr.Vars{}
	for name := range ps.Vars {
		declared[name] = true
	}

	em := newEmitter(pkg)
	root, err := em.emit(p.Condition, 0)
	if err != nil {
		return nil, errs.New(errs.KindParse, p.Name, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "package %s\n\n", pkg)
	b.WriteString("import rego.v1\n")
	fmt.Fprintf(&b, "import data.%s\n\n", UtilsPackage)

	fmt.Fprintf(&b, "__target__ = %q\n\n", string(p.Target))
	tagsJSON, err := json.Marshal(p.Tags)
	if err != nil {
		return nil, errs.New(errs.KindSchema, p.Name, err)
	}
	fmt.Fprintf(&b, "__tags__ = %s\n\n", tagsJSON)

	varNames := make([]string, 0, len(ps.Vars))
	for name := range ps.Vars {
		varNames = append(varNames, name)
	}
	sort.Strings(varNames)
	for _, name := range varNames {
		valueJSON, err := json.Marshal(ps.Vars[name])
		if err != nil {
			return nil, errs.New(errs.KindSchema, p.Name, err)
		}
		fmt.Fprintf(&b, "%s := %s\n", name, valueJSON)
	}
	if len(varNames) > 0 {
		b.WriteString("\n")
	}

	for _, helper := range em.helpers {
		b.WriteString(helper)
		b.WriteString("\n")
	}

	for _, action := range p.Actions {
		printExpr, err := buildPrintExpr(action.Msg, declared)
		if err != nil {
			return nil, errs.New(errs.KindInvalidAssignment, p.Name, err)
		}
		if printExpr == "" {
			fmt.Fprintf(&b, "%s = true if {\n\t%s\n}\n\n", action.Kind, root)
		} else {
			fmt.Fprintf(&b, "%s = true if {\n\t%s\n\t%s\n}\n\n", action.Kind, root, printExpr)
		}
	}

	src := b.String()

	if _, err := ast.ParseModule(pkg+".rego", src); err != nil {
		return nil, errs.New(errs.KindParse, p.Name, fmt.Errorf("compiled policy does not parse: %w", err))
	}
	canonical, err := format.Source(pkg+".rego", []byte(src))
	if err != nil {
		return nil, errs.New(errs.KindParse, p.Name, fmt.Errorf("canonicalize compiled policy: %w", err))
	}

	return &Document{PackageName: pkg, Source: canonical}, nil
}

// buildPrintExpr renders a policy action's msg template into a Rego
// print(...) call. Each "{{ expr }}" placeholder becomes a %v slot in a
// sprintf format string, with the parsed expression appended as an
// sprintf argument, in order (§4.5 step 5). An empty msg means the rule
// prints nothing; callers must omit the print line entirely rather than
// emit print("").
func buildPrintExpr(msg string, declared expr.Vars) (string, error) {
	if msg == "" {
		return "", nil
	}
	matches := placeholderPattern.FindAllStringSubmatchIndex(msg, -1)
	if len(matches) == 0 {
		return fmt.Sprintf("print(%q)", msg), nil
	}

	var out strings.Builder
	var args []string
	last := 0
	for _, m := range matches {
		full0, full1, expr0, expr1 := m[0], m[1], m[2], m[3]
		out.WriteString(msg[last:full0])
		out.WriteString("%v")
		last = full1

		exprText := msg[expr0:expr1]
		node, err := expr.ParseCondition(exprText, declared)
		if err != nil {
			return "", fmt.Errorf("message placeholder %q: %w", exprText, err)
		}
		rendered, err := renderExpr(node)
		if err != nil {
			return "", fmt.Errorf("message placeholder %q: %w", exprText, err)
		}
		args = append(args, rendered)
	}
	out.WriteString(msg[last:])

	argsJoined := strings.Join(args, ", ")
	return fmt.Sprintf("print(sprintf(%q, [%s]))", out.String(), argsJoined), nil
}
