package transpile

import (
	"regexp"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ansible-policy/gatekeeper/internal/policybook"
)

func loadPolicy(t *testing.T, yamlDoc string) (*policybook.PolicySet, *policybook.Policy) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "p.yml", []byte(yamlDoc), 0o644))
	doc, err := policybook.NewLoader(fs).LoadFile("p.yml")
	require.NoError(t, err)
	require.Len(t, doc.PolicySets, 1)
	require.Len(t, doc.PolicySets[0].Policies, 1)
	return doc.PolicySets[0], doc.PolicySets[0].Policies[0]
}

var helperNameRE = regexp.MustCompile(`(?m)^([a-z0-9_]+) = true if \{`)

// collectHelperNames returns the head name of every `<name> = true if {`
// rule in the compiled source, helper and action rules alike, for a loose
// check of Testable Property 5.
func collectHelperNames(t *testing.T, src string) []string {
	t.Helper()
	matches := helperNameRE.FindAllStringSubmatch(src, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

func TestCompileDocumentPackageMembership(t *testing.T) {
	ps, p := loadPolicy(t, `
- name: package policies
  vars:
    allowed_packages: [mysql]
  policies:
    - name: only allowed packages
      target: task
      condition: input["ansible.builtin.package"].name not in allowed_packages
      action:
        deny:
          msg: "package is not allowed"
`)
	doc, err := CompileDocument(ps, p)
	require.NoError(t, err)
	src := string(doc.Source)

	assert.Equal(t, "only_allowed_packages", doc.PackageName)
	assert.Contains(t, src, "package only_allowed_packages")
	assert.Contains(t, src, "import data.ansible_policy.utils")
	assert.Contains(t, src, `__target__ = "task"`)
	assert.Contains(t, src, "allowed_packages := [\"mysql\"]")
	assert.Contains(t, src, "utils.check_item_not_in_list")
	assert.Contains(t, src, "deny = true if {")
	assert.Contains(t, src, `print("package is not allowed")`)
}

func TestCompileDocumentBecomeUserWarning(t *testing.T) {
	ps, p := loadPolicy(t, `
- name: set
  policies:
    - name: become check
      target: task
      condition: input.become == true and input.become_user not in ["root","admin"]
      action:
        warn:
          msg: "user {{ input.become_user }} used become"
`)
	doc, err := CompileDocument(ps, p)
	require.NoError(t, err)
	src := string(doc.Source)
	assert.Contains(t, src, "warn = true if {")
	assert.Contains(t, src, "sprintf(")
	assert.Contains(t, src, "input.become_user")
}

func TestCompileDocumentNoMsgOmitsPrintStatement(t *testing.T) {
	ps, p := loadPolicy(t, `
- name: set
  policies:
    - name: no message
      target: task
      condition: "true"
      action: {allow: {}}
`)
	doc, err := CompileDocument(ps, p)
	require.NoError(t, err)
	src := string(doc.Source)
	assert.Contains(t, src, "allow = true if {")
	assert.NotContains(t, src, "print(")
}

func TestCompileDocumentSelectAndHasKey(t *testing.T) {
	ps, p := loadPolicy(t, `
- name: set
  policies:
    - name: id range
      target: task
      condition: input.ids is select(">=", 10)
      action: {deny: {msg: "too high"}}
`)
	doc, err := CompileDocument(ps, p)
	require.NoError(t, err)
	assert.Contains(t, string(doc.Source), "count(")

	ps2, p2 := loadPolicy(t, `
- name: set
  policies:
    - name: friends
      target: task
      condition: input.friends has key "fred"
      action: {allow: {}}
`)
	doc2, err := CompileDocument(ps2, p2)
	require.NoError(t, err)
	assert.Contains(t, string(doc2.Source), "utils.check_item_key_in_list")
	assert.Contains(t, string(doc2.Source), "allow = true if {")
}

func TestCompileDocumentHelperNamesAreUnique(t *testing.T) {
	ps, p := loadPolicy(t, `
- name: set
  policies:
    - name: compound
      target: play
      condition:
        any:
          - "input.a == 1"
          - "input.b == 2 and input.c != 3"
      action: {deny: {msg: "nope"}}
`)
	doc, err := CompileDocument(ps, p)
	require.NoError(t, err)
	names := collectHelperNames(t, string(doc.Source))
	seen := map[string]int{}
	for _, n := range names {
		seen[n]++
	}
	// the AnyCondition root legitimately repeats its own name across
	// clauses (rule-level OR); every other name must be unique.
	for name, count := range seen {
		if count > 1 {
			assert.Contains(t, name, "_0_", "unexpected duplicate helper name %q", name)
		}
	}
}

func TestDerivePackageName(t *testing.T) {
	cases := map[string]string{
		"only allowed packages":  "only_allowed_packages",
		"what's this (really)?":  "what_s_this_really",
		"simple-name":            "simple_name",
	}
	for in, want := range cases {
		assert.Equal(t, want, DerivePackageName(in))
	}
}
