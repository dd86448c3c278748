package evaluator

import "github.com/ansible-policy/gatekeeper/internal/result"

// actionPrecedence is the order in which fired action rules are
// inspected in the engine's decision object; a compiled policy emits
// one action rule per configured action, all gated on the same condition
// helper, so a policy with several actions fires all of them together
// and the first fired kind in this order is the one reported.
var actionPrecedence = []string{"deny", "allow", "warn", "info", "ignore"}

// translateDecision implements §4.10 step 3's "translate the decision
// to a validated ternary and an action_type": the fired action rule (if
// any) carries the engine's decision; an `ignore` action opts a target
// back out to n-a rather than counting as a failure, since its purpose
// is to suppress a match that would otherwise be reported.
func translateDecision(value any) (result.Validated, string) {
	m, ok := value.(map[string]any)
	if !ok {
		return result.ValidatedTrue, ""
	}
	for _, kind := range actionPrecedence {
		fired, ok := m[kind].(bool)
		if !ok || !fired {
			continue
		}
		if kind == "ignore" {
			return result.ValidatedNA, kind
		}
		return result.ValidatedFalse, kind
	}
	return result.ValidatedTrue, ""
}
