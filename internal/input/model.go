// Package input implements the Input Builder (C8): it turns each
// inbound artifact into a typed PolicyInput, resolves {{ var }}
// placeholders against a layered variable map, and serializes the
// result to JSON for the engine driver.
package input

// Kind discriminates a PolicyInput variant, matching §3's "variant
// carrying a discriminator type."
type Kind string

const (
	KindProject    Kind = "project"
	KindTask       Kind = "task"
	KindPlay       Kind = "play"
	KindRole       Kind = "role"
	KindTaskResult Kind = "task_result"
	KindEvent      Kind = "event"
	KindRest       Kind = "rest"
)

// PolicyInput is the value C9 receives as JSON on stdin. Object is the
// focal entity (a task, play, role, ... as produced by the external
// scanner); exactly one of Kind's corresponding shape is populated.
type PolicyInput struct {
	Kind   Kind `json:"type"`
	Object any  `json:"object"`

	// Project is populated only when Kind == KindProject: the full
	// scanned project view (playbooks, taskfiles, roles, vars files).
	Project *Project `json:"project,omitempty"`
}

// Project is the full-project PolicyInput variant (§3).
type Project struct {
	Playbooks []map[string]any `json:"playbooks,omitempty"`
	Taskfiles []map[string]any `json:"taskfiles,omitempty"`
	Roles     []map[string]any `json:"roles,omitempty"`
	VarsFiles []map[string]any `json:"vars_files,omitempty"`
	Variables map[string]any   `json:"variables,omitempty"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
}

// TargetOf normalizes an evaluation-type Kind for the §4.10 step-3
// target-pattern check: task_result normalizes to task.
func (k Kind) TargetOf() string {
	if k == KindTaskResult {
		return string(KindTask)
	}
	return string(k)
}
