package evaluator

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
)

var nameLineRE = regexp.MustCompile(`^(\s*-?\s*)name:\s*(.+?)\s*$`)

// AttributeLine implements §4.10/§5's line-attribution rule: scan the
// source YAML for the line declaring the focal entity's name, using
// edit distance to pick the closest candidate when more than one line
// declares a "name:" key (e.g. repeated task names across plays). Ties
// beyond edit distance resolve to the first candidate in source order,
// since candidates are scanned top to bottom and only a strictly
// closer match replaces the current best.
func AttributeLine(sourceYAML, focalName string) (line int, found bool) {
	lines := strings.Split(sourceYAML, "\n")
	best := -1
	bestDist := -1
	for i, l := range lines {
		m := nameLineRE.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		candidate := strings.Trim(m[2], `"'`)
		dist := levenshtein.ComputeDistance(candidate, focalName)
		if best == -1 || dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	if best == -1 {
		return 0, false
	}
	return best + 1, true
}
