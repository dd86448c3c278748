package input

import (
	"encoding/json"
	"io"

	"github.com/ansible-policy/gatekeeper/internal/errs"
)

// GalaxyMapping is the external data file's module_name_mappings table
// (§6): a short module name to its candidate fully-qualified names.
type GalaxyMapping struct {
	ModuleNameMappings map[string][]string `json:"module_name_mappings"`
}

type galaxyDataFile struct {
	Galaxy GalaxyMapping `json:"galaxy"`
}

// LoadGalaxyMapping reads the external data file's top-level "galaxy"
// key.
func LoadGalaxyMapping(r io.Reader) (*GalaxyMapping, error) {
	var doc galaxyDataFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errs.New(errs.KindScan, "galaxy-mapping", err)
	}
	return &doc.Galaxy, nil
}

// ResolveFQCN resolves a task's module name to its fully-qualified
// form, picking the first candidate when more than one is registered
// (§4.8). A module with no registered mapping resolves to itself.
func (g *GalaxyMapping) ResolveFQCN(shortName string) string {
	if g == nil {
		return shortName
	}
	candidates, ok := g.ModuleNameMappings[shortName]
	if !ok || len(candidates) == 0 {
		return shortName
	}
	return candidates[0]
}
