package expr

import (
	"encoding/json"
	"testing"

	"github.com/ansible-policy/gatekeeper/internal/errs"
)

func mustParse(t *testing.T, src string, vars Vars) any {
	t.Helper()
	node, err := ParseCondition(src, vars)
	if err != nil {
		t.Fatalf("ParseCondition(%q) returned error: %v", src, err)
	}
	b, err := json.Marshal(node)
	if err != nil {
		t.Fatalf("marshal AST: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal AST JSON: %v", err)
	}
	return out
}

func decodeJSON(t *testing.T, src string) any {
	t.Helper()
	var out any
	if err := json.Unmarshal([]byte(src), &out); err != nil {
		t.Fatalf("decode expected JSON: %v", err)
	}
	return out
}

// TestParserRoundTrip covers Testable Property 1: parsing then emitting JSON
// yields a fixed expected tree, and whitespace variation does not change it.
func TestParserRoundTrip(t *testing.T) {
	cases := []struct {
		name     string
		src      string
		altSrc   string // same condition with different whitespace
		vars     Vars
		expected string
	}{
		{
			name:     "simple equals",
			src:      `input.become == true`,
			altSrc:   `  input.become==true  `,
			expected: `{"EqualsExpression":{"lhs":{"Input":"input.become"},"rhs":{"Boolean":true}}}`,
		},
		{
			name:     "not in list with declared variable",
			src:      `input["ansible.builtin.package"].name not in allowed_packages`,
			altSrc:   `input["ansible.builtin.package"].name   not   in   allowed_packages`,
			vars:     Vars{"allowed_packages": true},
			expected: `{"ItemNotInListExpression":{"lhs":{"Input":"input[\"ansible.builtin.package\"].name"},"rhs":{"Variable":"allowed_packages"}}}`,
		},
		{
			name:     "and over comparison and not-in-list",
			src:      `input.become == true and input.become_user not in ["root","admin"]`,
			altSrc:   `input.become==true and input.become_user not in ["root", "admin"]`,
			expected: `{"AndExpression":[{"EqualsExpression":{"lhs":{"Input":"input.become"},"rhs":{"Boolean":true}}},{"ItemNotInListExpression":{"lhs":{"Input":"input.become_user"},"rhs":[{"String":"root"},{"String":"admin"}]}}]}`,
		},
		{
			name:     "has key",
			src:      `input.friends has key "fred"`,
			altSrc:   `input.friends  has key  "fred"`,
			expected: `{"KeyInDictExpression":{"lhs":{"Input":"input.friends"},"rhs":{"String":"fred"}}}`,
		},
		{
			name:     "select comparison operator",
			src:      `input.ids is select(">=", 10)`,
			altSrc:   `input.ids is select( ">=" , 10 )`,
			expected: `{"SelectExpression":{"lhs":{"Input":"input.ids"},"operator":">=","value":{"Integer":10}}}`,
		},
		{
			name:     "match with keyword option",
			src:      `input.url is match("https://example.com/.*", ignorecase=true)`,
			altSrc:   `input.url is match("https://example.com/.*",ignorecase=true)`,
			expected: `{"SearchMatchesExpression":{"lhs":{"Input":"input.url"},"rhs":{"SearchType":{"kind":{"String":"match"},"pattern":{"String":"https://example.com/.*"},"options":[{"name":"ignorecase","value":{"Boolean":true}}]}}}}`,
		},
		{
			name:     "negation binds tighter than and",
			src:      `not input.a == 1 and input.b == 2`,
			altSrc:   `not  input.a==1 and input.b==2`,
			expected: `{"AndExpression":[{"NegateExpression":{"EqualsExpression":{"lhs":{"Input":"input.a"},"rhs":{"Integer":1}}}},{"EqualsExpression":{"lhs":{"Input":"input.b"},"rhs":{"Integer":2}}}]}`,
		},
		{
			name:     "is defined",
			src:      `input.vars.env is defined`,
			altSrc:   `input.vars.env  is  defined`,
			expected: `{"IsDefinedExpression":{"Input":"input.vars.env"}}`,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := mustParse(t, c.src, c.vars)
			want := decodeJSON(t, c.expected)
			gotJSON, _ := json.Marshal(got)
			wantJSON, _ := json.Marshal(want)
			if string(gotJSON) != string(wantJSON) {
				t.Fatalf("src %q:\n got  %s\n want %s", c.src, gotJSON, wantJSON)
			}

			altGot := mustParse(t, c.altSrc, c.vars)
			altJSON, _ := json.Marshal(altGot)
			if string(altJSON) != string(wantJSON) {
				t.Fatalf("whitespace variant %q produced a different tree:\n got  %s\n want %s", c.altSrc, altJSON, wantJSON)
			}
		})
	}
}

// TestSelectOperatorWhitelist covers Testable Property 2.
func TestSelectOperatorWhitelist(t *testing.T) {
	_, err := ParseCondition(`input.ids is select("in", ["a"])`, nil)
	if !errs.Is(err, errs.KindSelectOperator) {
		t.Fatalf("expected KindSelectOperator, got %v", err)
	}

	_, err = ParseCondition(`input.name is selectattr("name", "cmp", "x")`, nil)
	if !errs.Is(err, errs.KindSelectAttrOperator) {
		t.Fatalf("expected KindSelectAttrOperator, got %v", err)
	}
}

// TestIdentifierRoots covers Testable Property 3.
func TestIdentifierRoots(t *testing.T) {
	_, err := ParseCondition(`foo.bar == 1`, nil)
	if !errs.Is(err, errs.KindParse) {
		t.Fatalf("expected KindParse for undeclared root, got %v", err)
	}

	if _, err := ParseCondition(`input.bar == 1`, nil); err != nil {
		t.Fatalf("input.bar should parse, got %v", err)
	}

	if _, err := ParseCondition(`foo.bar == 1`, Vars{"foo": true}); err != nil {
		t.Fatalf("foo.bar should parse once foo is declared, got %v", err)
	}
}

func TestUnterminatedStringIsParseError(t *testing.T) {
	_, err := ParseCondition(`input.a == "unterminated`, nil)
	if err == nil {
		t.Fatal("expected an error for an unterminated string literal")
	}
	if !errs.Is(err, errs.KindParse) {
		t.Fatalf("expected KindParse, got %v", err)
	}
}

func TestFloatAndIntegerLiteralsDistinguished(t *testing.T) {
	got := mustParse(t, `input.pi == 3.5`, nil)
	want := decodeJSON(t, `{"EqualsExpression":{"lhs":{"Input":"input.pi"},"rhs":{"Float":3.5}}}`)
	gotJSON, _ := json.Marshal(got)
	wantJSON, _ := json.Marshal(want)
	if string(gotJSON) != string(wantJSON) {
		t.Fatalf("got %s, want %s", gotJSON, wantJSON)
	}
}
