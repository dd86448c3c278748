package auditstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ansible-policy/gatekeeper/internal/result"
)

func TestRecordAndListDecisions(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	run := result.Run{Files: []result.FileResult{
		{
			Path: "site.yml",
			Policies: []result.PolicyResult{
				{
					PolicyName: "only_allowed_packages",
					Targets: []result.TargetResult{
						{Target: "task", Validated: result.ValidatedFalse, ActionType: "deny", Message: "not allowed"},
					},
				},
			},
		},
	}}

	require.NoError(t, store.RecordRun("run-1", run))

	decisions, err := store.ListDecisions(ListOptions{RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "only_allowed_packages", decisions[0].PolicyName)
	assert.Equal(t, "false", decisions[0].Validated)

	count, err := store.CountViolationsSince(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestListDecisionsFiltersByPolicyName(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	run := result.Run{Files: []result.FileResult{{
		Path: "a.yml",
		Policies: []result.PolicyResult{
			{PolicyName: "p1", Targets: []result.TargetResult{{Target: "task", Validated: result.ValidatedTrue}}},
			{PolicyName: "p2", Targets: []result.TargetResult{{Target: "task", Validated: result.ValidatedTrue}}},
		},
	}}}
	require.NoError(t, store.RecordRun("run-2", run))

	decisions, err := store.ListDecisions(ListOptions{PolicyName: "p1"})
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "p1", decisions[0].PolicyName)
}
