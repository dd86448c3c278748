/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ansible-policy/gatekeeper/internal/install"
	"github.com/ansible-policy/gatekeeper/internal/logging"
	"github.com/ansible-policy/gatekeeper/internal/selector"
)

var installCmd = &cobra.Command{
	Use:   "install [name=location ...]",
	Short: "Install policy sources, compiling every policybook under each one",
	Long: `Resolves one or more policy sources (either given positionally as
"name=location" pairs, or read from the [source] section of the
selector config) and drives C6 over each: discover policybook files,
load and compile them, and write the resulting Rego documents under
the configured install root.

A "galaxy"-kind source is a no-op (remote collections are not resolved
in this implementation). A path source that already has compiled
output is skipped unless --force is given.`,
	RunE: runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	sources, err := resolveInstallSources(args, settings.SelectorConfig)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		if !isQuiet() {
			cmd.Println("No sources to install. Pass name=location arguments or add a [source] section to the selector config.")
		}
		return nil
	}

	if settings.Force && !isQuiet() {
		prompt := fmt.Sprintf("This will overwrite already-installed policy sources under %s. Continue? [y/N] ", settings.InstallRoot)
		if !confirmOrAbort(prompt) {
			return nil
		}
	}

	log := logging.New(isJSON(), isVerbose())
	inst := install.NewOsInstaller(settings.InstallRoot)
	report, err := inst.Install(sources, settings.Force)
	if err != nil {
		return fmt.Errorf("install: %w", err)
	}

	for _, skip := range report.Skipped {
		logging.LogSkip(log, skip.Err)
	}

	if isJSON() {
		return printJSON(map[string]any{
			"install_root": settings.InstallRoot,
			"written":      report.Written,
			"skipped":      len(report.Skipped),
		})
	}

	if !isQuiet() {
		cmd.Printf("Installed %d source(s) into %s\n", len(sources), settings.InstallRoot)
		cmd.Printf("  %d file(s) written, %d skipped\n", len(report.Written), len(report.Skipped))
	}
	return nil
}

// resolveInstallSources parses positional "name=location" arguments,
// splitting each on its first "=" and inferring the source kind from the
// location, falling back to the selector config's [source] section when
// no arguments are given.
func resolveInstallSources(args []string, selectorConfigPath string) ([]install.Source, error) {
	if len(args) > 0 {
		sources := make([]install.Source, 0, len(args))
		for _, a := range args {
			name, location, ok := strings.Cut(a, "=")
			if !ok {
				return nil, fmt.Errorf("malformed source %q, expected name=location", a)
			}
			sources = append(sources, install.Source{
				Name:     name,
				Location: location,
				Kind:     install.InferKind(location),
			})
		}
		return sources, nil
	}

	f, err := os.Open(selectorConfigPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open selector config: %w", err)
	}
	defer func() { _ = f.Close() }()

	cfg, err := selector.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse selector config: %w", err)
	}
	return cfg.Sources, nil
}
