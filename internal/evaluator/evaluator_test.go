package evaluator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ansible-policy/gatekeeper/internal/engine"
	"github.com/ansible-policy/gatekeeper/internal/input"
	"github.com/ansible-policy/gatekeeper/internal/result"
	"github.com/ansible-policy/gatekeeper/internal/selector"
)

func TestParseCompiledPolicyExtractsMetadata(t *testing.T) {
	src := `package only_allowed_packages

import rego.v1

__target__ = "task"

__tags__ = ["security","packaging"]

deny = true if { true }
`
	cp := ParseCompiledPolicy("/install/local/policies/only_allowed_packages.rego", "only_allowed_packages", src)
	assert.Equal(t, "task", cp.Target)
	assert.Equal(t, []string{"security", "packaging"}, cp.Tags)
}

func TestTranslateDecisionDenyFired(t *testing.T) {
	v, kind := translateDecision(map[string]any{"deny": true})
	assert.Equal(t, result.ValidatedFalse, v)
	assert.Equal(t, "deny", kind)
}

func TestTranslateDecisionNoneFiredIsValidated(t *testing.T) {
	v, kind := translateDecision(map[string]any{})
	assert.Equal(t, result.ValidatedTrue, v)
	assert.Equal(t, "", kind)
}

func TestTranslateDecisionIgnoreIsNA(t *testing.T) {
	v, kind := translateDecision(map[string]any{"ignore": true})
	assert.Equal(t, result.ValidatedNA, v)
	assert.Equal(t, "ignore", kind)
}

func TestAttributeLinePicksClosestNameMatch(t *testing.T) {
	yaml := `- name: install mysql
  ansible.builtin.package:
    name: mysql
- name: install mysql server
  ansible.builtin.package:
    name: mysql-server
`
	line, found := AttributeLine(yaml, "install mysql")
	require.True(t, found)
	assert.Equal(t, 1, line)
}

func fakeOpa(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-opa")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestEvaluatorRunTargetMismatchIsNA(t *testing.T) {
	bin := fakeOpa(t, `echo 'should not be invoked' >&2; exit 1`)
	sel, err := selector.NewSelector([]selector.PolicyPattern{{NameGlob: "*", Enabled: true}})
	require.NoError(t, err)
	ev := NewEvaluator(engine.NewDriver(bin), sel)

	files := []FileInput{{
		Path:   "site.yml",
		Inputs: []*input.PolicyInput{{Kind: input.KindPlay, Object: map[string]any{"name": "deploy"}}},
	}}
	policies := []CompiledPolicy{{PackageName: "only_allowed_packages", Target: "task"}}

	run, err := ev.Run(context.Background(), files, policies)
	require.NoError(t, err)
	require.Len(t, run.Files, 1)
	require.Len(t, run.Files[0].Policies, 1)
	require.Len(t, run.Files[0].Policies[0].Targets, 1)
	assert.Equal(t, result.ValidatedNA, run.Files[0].Policies[0].Targets[0].Validated)
}

func TestEvaluatorRunInvokesEngineWhenTargetMatches(t *testing.T) {
	bin := fakeOpa(t, `cat <<'EOF'
{"result":[{"expressions":[{"value":{"deny":true}}]}]}
EOF
echo "package not allowed" >&2
`)
	sel, err := selector.NewSelector([]selector.PolicyPattern{{NameGlob: "*", Enabled: true}})
	require.NoError(t, err)
	ev := NewEvaluator(engine.NewDriver(bin), sel)

	files := []FileInput{{
		Path:   "site.yml",
		Source: "- name: install mysql\n  ansible.builtin.package:\n    name: mysql\n",
		Inputs: []*input.PolicyInput{{Kind: input.KindTask, Object: map[string]any{"name": "install mysql"}}},
	}}
	policies := []CompiledPolicy{{PackageName: "only_allowed_packages", Target: "task"}}

	run, err := ev.Run(context.Background(), files, policies)
	require.NoError(t, err)
	tr := run.Files[0].Policies[0].Targets[0]
	assert.Equal(t, result.ValidatedFalse, tr.Validated)
	assert.Equal(t, "deny", tr.ActionType)
	assert.Equal(t, 1, tr.Line)
	assert.True(t, run.AnyViolated())
}
