package input

// LayeredVars merges variable sources in the §4.8 precedence order,
// lowest to highest: scanner-derived per-tree defaults, vars_files
// contents, extra vars from a runtime-data directory, and any
// explicitly provided overrides.
type LayeredVars struct {
	Defaults  map[string]any
	VarsFiles map[string]any
	ExtraVars map[string]any
	Overrides map[string]any
}

// Resolve flattens the layers into one map, later layers winning.
func (lv LayeredVars) Resolve() map[string]any {
	out := make(map[string]any)
	for _, layer := range []map[string]any{lv.Defaults, lv.VarsFiles, lv.ExtraVars, lv.Overrides} {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}
