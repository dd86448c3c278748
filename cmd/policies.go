package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/ansible-policy/gatekeeper/internal/evaluator"
	"github.com/ansible-policy/gatekeeper/internal/selector"
	"github.com/ansible-policy/gatekeeper/internal/transpile"
)

var packageLineRE = regexp.MustCompile(`(?m)^package\s+(\S+)`)

// discoverCompiledPolicies walks an install root for compiled .rego
// documents (skipping the shared utils.rego) and parses each one's
// applicability metadata, pairing it with its source's shared utils.rego,
// which the installer writes under the source's policies/ directory
// (also for run-phase documents under extensions/policy/<phase>/).
func discoverCompiledPolicies(installRoot string) ([]evaluator.CompiledPolicy, error) {
	var policies []evaluator.CompiledPolicy

	err := filepath.Walk(installRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".rego" {
			return nil
		}
		if filepath.Base(path) == transpile.UtilsFileName {
			return nil
		}

		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read compiled policy %s: %w", path, err)
		}

		m := packageLineRE.FindSubmatch(src)
		if m == nil {
			return nil
		}
		pkg := string(m[1])

		cp := evaluator.ParseCompiledPolicy(path, pkg, string(src))
		dir := filepath.Dir(path)
		if phase := filepath.Base(dir); phase == "pre_run" || phase == "post_run" {
			// <source>/extensions/policy/<phase> -> <source>/policies
			dir = filepath.Join(filepath.Dir(filepath.Dir(filepath.Dir(dir))), "policies")
		}
		cp.UtilsPath = filepath.Join(dir, transpile.UtilsFileName)
		policies = append(policies, cp)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return policies, nil
}

// loadSelector reads the selector config at path; a missing file means
// "select nothing explicitly" (every compiled policy is disabled by
// default per §4.7), which callers may want to special-case into
// "allow everything" for ad-hoc one-off evaluation.
func loadSelector(path string) (*selector.Selector, []string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()

	cfg, err := selector.Parse(f)
	if err != nil {
		return nil, nil, err
	}
	sel, err := selector.NewSelector(cfg.Policies)
	if err != nil {
		return nil, nil, err
	}

	var sourceNames []string
	for _, s := range cfg.Sources {
		sourceNames = append(sourceNames, s.Name)
	}
	return sel, sourceNames, nil
}

// allowAllSelector builds a Selector that enables every policy,
// used by select, eval, watch and serve-rest when no selector config exists.
func allowAllSelector() (*selector.Selector, error) {
	return selector.NewSelector([]selector.PolicyPattern{{NameGlob: "*", Enabled: true}})
}
