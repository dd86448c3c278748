package policybook

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// rawPolicySet mirrors the YAML shape verbatim: a policybook file is a list
// of these. `condition` can be a bare string, a bool, or a quantified map;
// `action`/`actions` are distinct YAML spellings for the same field.
type rawPolicySet struct {
	Name                  string         `yaml:"name" validate:"required"`
	Hosts                 any            `yaml:"hosts"`
	Vars                  map[string]any `yaml:"vars"`
	Policies              []rawPolicy    `yaml:"policies"`
	MatchMultiplePolicies *bool          `yaml:"match_multiple_policies"`
}

type rawPolicy struct {
	Name      string         `yaml:"name" validate:"required"`
	Target    string         `yaml:"target" validate:"required"`
	Condition any            `yaml:"condition"`
	Action    any            `yaml:"action"`
	Actions   any            `yaml:"actions"`
	Enabled   *bool          `yaml:"enabled"`
	Tags      []string       `yaml:"tags"`
}

var validate = validator.New()

// validateStruct runs struct-tag validation and folds failures into one
// SchemaError-flavored message, following the teacher's ValidateStruct shape.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	var msg string
	for _, e := range verrs {
		if msg != "" {
			msg += "; "
		}
		msg += fmt.Sprintf("field %q failed rule %q", e.StructNamespace(), e.Tag())
	}
	return fmt.Errorf("%s", msg)
}

// hostsOf normalizes the `hosts` YAML field, which may be a bare string or
// a list of strings, into a slice.
func hostsOf(v any) []string {
	switch h := v.(type) {
	case nil:
		return nil
	case string:
		return []string{h}
	case []any:
		out := make([]string, 0, len(h))
		for _, item := range h {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
