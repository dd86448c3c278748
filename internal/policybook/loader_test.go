package policybook

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ansible-policy/gatekeeper/internal/errs"
	"github.com/ansible-policy/gatekeeper/internal/expr/ast"
)

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func TestLoadFileLiteralPackageExample(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "policies.yml", `
- name: package policies
  hosts: all
  vars:
    allowed_packages: [mysql]
  policies:
    - name: only allowed packages
      target: task
      condition: input["ansible.builtin.package"].name not in allowed_packages
      action:
        deny:
          msg: "package {{ input['ansible.builtin.package'].name }} is not allowed"
`)
	doc, err := NewLoader(fs).LoadFile("policies.yml")
	require.NoError(t, err)
	require.Len(t, doc.PolicySets, 1)

	ps := doc.PolicySets[0]
	assert.Equal(t, "package policies", ps.Name)
	assert.Equal(t, []string{"all"}, ps.Hosts)
	require.Len(t, ps.Policies, 1)

	p := ps.Policies[0]
	assert.Equal(t, TargetTask, p.Target)
	assert.True(t, p.Enabled)
	require.Len(t, p.Actions, 1)
	assert.Equal(t, ActionDeny, p.Actions[0].Kind)
	assert.Contains(t, p.Actions[0].Msg, "not allowed")
}

func TestLoadFileDisabledPolicyIsDropped(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "p.yml", `
- name: set
  policies:
    - name: off
      target: task
      condition: "true"
      enabled: false
      action: {allow: {}}
    - name: on
      target: task
      condition: "true"
      action: {allow: {}}
`)
	doc, err := NewLoader(fs).LoadFile("p.yml")
	require.NoError(t, err)
	require.Len(t, doc.PolicySets[0].Policies, 1)
	assert.Equal(t, "on", doc.PolicySets[0].Policies[0].Name)
}

func TestLoadFileDuplicatePolicyNameIsSchemaError(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "p.yml", `
- name: set
  policies:
    - name: dup
      target: task
      condition: "true"
      action: {allow: {}}
    - name: dup
      target: task
      condition: "true"
      action: {allow: {}}
`)
	_, err := NewLoader(fs).LoadFile("p.yml")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindSchema))
}

func TestLoadFileMissingActionIsSchemaError(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "p.yml", `
- name: set
  policies:
    - name: no-actions
      target: task
      condition: "true"
`)
	_, err := NewLoader(fs).LoadFile("p.yml")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindSchema))
}

func TestLoadFileMissingConditionDefaultsToVacuouslyTrueAll(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "p.yml", `
- name: set
  policies:
    - name: no-condition
      target: task
      action: {allow: {}}
`)
	doc, err := NewLoader(fs).LoadFile("p.yml")
	require.NoError(t, err)
	p := doc.PolicySets[0].Policies[0]
	require.NotNil(t, p.Condition)
	assert.Equal(t, ast.QuantAll, p.Condition.Quantifier)
	assert.Empty(t, p.Condition.Children)
}

func TestLoadFileQuantifiedCondition(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "p.yml", `
- name: set
  policies:
    - name: any-of
      target: task
      condition:
        any:
          - "input.a == 1"
          - "input.b == 2"
      action: {warn: {msg: "matched"}}
`)
	doc, err := NewLoader(fs).LoadFile("p.yml")
	require.NoError(t, err)
	p := doc.PolicySets[0].Policies[0]
	assert.Equal(t, "AnyCondition", string(p.Condition.Quantifier))
	assert.Len(t, p.Condition.Children, 2)
}

func TestLoadFileUnknownConditionRootIsParseError(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "p.yml", `
- name: set
  policies:
    - name: bad
      target: task
      condition: foo.bar == 1
      action: {deny: {}}
`)
	_, err := NewLoader(fs).LoadFile("p.yml")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindParse))
}
