// Package evaluator implements the Evaluator (C10): the top-level
// per-run coordinator tying together policy selection (C7), input
// construction (C8), engine invocation (C9), and result aggregation
// (C11).
package evaluator

import (
	"regexp"

	"github.com/ansible-policy/gatekeeper/internal/selector"
)

// CompiledPolicy is a compiled policy document discovered on disk,
// with the metadata C10 needs to decide applicability before invoking
// the engine.
type CompiledPolicy struct {
	PackageName   string
	Path          string
	Target        string
	TargetModule  string
	Tags          []string
	UtilsPath     string
	ExternalPath  string
}

var (
	targetRE       = regexp.MustCompile(`(?m)^__target__\s*=\s*"([^"]*)"`)
	targetModuleRE = regexp.MustCompile(`(?m)^__target_module__\s*=\s*"([^"]*)"`)
	tagsRE         = regexp.MustCompile(`(?m)^__tags__\s*=\s*\[(.*?)\]`)
	tagItemRE      = regexp.MustCompile(`"([^"]*)"`)
)

// ParseCompiledPolicy extracts a CompiledPolicy's metadata from its
// Rego source text, reading the fixed-position assignments C5 emits
// (§3: "Compiled policy document ... metadata assignments") rather
// than invoking the engine just to learn applicability.
func ParseCompiledPolicy(path, pkg, source string) CompiledPolicy {
	cp := CompiledPolicy{PackageName: pkg, Path: path}
	if m := targetRE.FindStringSubmatch(source); m != nil {
		cp.Target = m[1]
	}
	if m := targetModuleRE.FindStringSubmatch(source); m != nil {
		cp.TargetModule = m[1]
	}
	if m := tagsRE.FindStringSubmatch(source); m != nil {
		for _, t := range tagItemRE.FindAllStringSubmatch(m[1], -1) {
			cp.Tags = append(cp.Tags, t[1])
		}
	}
	return cp
}

// ToCompiledPolicy adapts a CompiledPolicy to the selector's minimal
// view for enable/disable resolution.
func (cp CompiledPolicy) ToCompiledPolicy() selector.CompiledPolicy {
	return selector.CompiledPolicy{Name: cp.PackageName, Tags: cp.Tags}
}
