package evaluator

import (
	"context"

	"github.com/gobwas/glob"

	"github.com/ansible-policy/gatekeeper/internal/engine"
	"github.com/ansible-policy/gatekeeper/internal/input"
	"github.com/ansible-policy/gatekeeper/internal/result"
	"github.com/ansible-policy/gatekeeper/internal/selector"
)

// FileInput groups every PolicyInput produced for one scanned file, so
// results can be attributed back to the file they came from.
type FileInput struct {
	Path   string
	Source string // raw YAML text, for line attribution
	Inputs []*input.PolicyInput
}

// Evaluator is C10's top-level coordinator.
type Evaluator struct {
	driver *engine.Driver
	sel    *selector.Selector
}

func NewEvaluator(driver *engine.Driver, sel *selector.Selector) *Evaluator {
	return &Evaluator{driver: driver, sel: sel}
}

// Run drives every (file, input, policy) tuple through target/module
// matching, the engine, and decision translation, aggregating into a
// result.Run (§4.10 steps 1-4). Results accumulate in the
// (input_kind, input_index, policy_index) order named in §5.
func (e *Evaluator) Run(ctx context.Context, files []FileInput, policies []CompiledPolicy) (*result.Run, error) {
	run := &result.Run{}

	for _, f := range files {
		fileResult := result.FileResult{Path: f.Path}

		for _, pi := range f.Inputs {
			for _, cp := range policies {
				if !e.sel.Enabled(cp.ToCompiledPolicy()) {
					continue
				}

				pr := e.evaluateOne(ctx, f, pi, cp)
				fileResult.Policies = append(fileResult.Policies, pr)
			}
		}

		run.Files = append(run.Files, fileResult)
	}

	return run, nil
}

func (e *Evaluator) evaluateOne(ctx context.Context, f FileInput, pi *input.PolicyInput, cp CompiledPolicy) result.PolicyResult {
	pr := result.PolicyResult{PolicyName: cp.PackageName}

	targetGlob, err := glob.Compile(cp.Target)
	if err != nil || !targetGlob.Match(pi.Kind.TargetOf()) {
		pr.Targets = append(pr.Targets, result.TargetResult{Target: string(pi.Kind), Validated: result.ValidatedNA})
		return pr
	}

	if pi.Kind == input.KindTask && cp.TargetModule != "" {
		fqcn, _ := objectString(pi.Object, "fqcn")
		moduleGlob, err := glob.Compile(cp.TargetModule)
		if err != nil || !moduleGlob.Match(fqcn) {
			pr.Targets = append(pr.Targets, result.TargetResult{Target: string(pi.Kind), Validated: result.ValidatedNA})
			return pr
		}
	}

	inputJSON, err := pi.ToJSON()
	if err != nil {
		pr.Targets = append(pr.Targets, result.TargetResult{Target: string(pi.Kind), Validated: result.ValidatedNA, Message: err.Error()})
		return pr
	}

	decision, err := e.driver.Eval(ctx, cp.UtilsPath, cp.Path, cp.ExternalPath, "data."+cp.PackageName, inputJSON)
	if err != nil {
		pr.Targets = append(pr.Targets, result.TargetResult{Target: string(pi.Kind), Validated: result.ValidatedNA, Message: err.Error()})
		return pr
	}

	validated, actionType := translateDecision(decision.Value)
	tr := result.TargetResult{
		Target:     string(pi.Kind),
		Validated:  validated,
		ActionType: actionType,
		Message:    decision.Message,
	}

	if (pi.Kind == input.KindTask || pi.Kind == input.KindPlay) && f.Source != "" {
		if name, ok := objectString(pi.Object, "name"); ok {
			if line, found := AttributeLine(f.Source, name); found {
				tr.Line = line
			}
		}
	}

	pr.Targets = append(pr.Targets, tr)
	return pr
}

func objectString(obj any, key string) (string, bool) {
	m, ok := obj.(map[string]any)
	if !ok {
		return "", false
	}
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
