package selector

import (
	"sort"

	"github.com/gobwas/glob"
)

// CompiledPolicy is the minimal view of a compiled policy document the
// selector needs: its package name and declared tags.
type CompiledPolicy struct {
	Name string
	Tags []string
}

type compiledPattern struct {
	pattern PolicyPattern
	g       glob.Glob
}

// Selector resolves, for each compiled policy, whether it is enabled,
// evaluating patterns from shortest name to longest so more specific
// (longer) patterns override more general ones (§4.7).
type Selector struct {
	patterns []compiledPattern
}

func NewSelector(patterns []PolicyPattern) (*Selector, error) {
	sorted := make([]PolicyPattern, len(patterns))
	copy(sorted, patterns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].NameGlob) < len(sorted[j].NameGlob)
	})

	compiled := make([]compiledPattern, 0, len(sorted))
	for _, p := range sorted {
		g, err := glob.Compile(p.NameGlob)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, compiledPattern{pattern: p, g: g})
	}
	return &Selector{patterns: compiled}, nil
}

// Enabled reports whether policy is enabled: the last matching pattern
// (in shortest-to-longest order) decides; a pattern with tags only
// matches a policy sharing at least one of those tags, and a pattern
// specifying tags never matches an untagged policy. A policy matching
// no pattern is disabled by default.
func (s *Selector) Enabled(policy CompiledPolicy) bool {
	enabled := false
	matched := false
	for _, cp := range s.patterns {
		if !cp.g.Match(policy.Name) {
			continue
		}
		if len(cp.pattern.Tags) > 0 && !shareTag(cp.pattern.Tags, policy.Tags) {
			continue
		}
		matched = true
		enabled = cp.pattern.Enabled
	}
	return matched && enabled
}

func shareTag(patternTags, policyTags []string) bool {
	have := make(map[string]bool, len(policyTags))
	for _, t := range policyTags {
		have[t] = true
	}
	for _, t := range patternTags {
		if have[t] {
			return true
		}
	}
	return false
}
