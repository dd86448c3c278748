/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"github.com/spf13/cobra"
)

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "List installed policies and whether each one is selected",
	Long: `Walks the install root for compiled policy documents, loads the
selector config, and reports each policy's name, target, tags, and
enabled verdict (C7) without invoking the policy engine.`,
	RunE: runSelect,
}

func init() {
	rootCmd.AddCommand(selectCmd)
}

type selectedPolicy struct {
	Name    string   `json:"name"`
	Target  string   `json:"target"`
	Tags    []string `json:"tags,omitempty"`
	Enabled bool     `json:"enabled"`
}

func runSelect(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	policies, err := discoverCompiledPolicies(settings.InstallRoot)
	if err != nil {
		return err
	}

	sel, _, err := loadSelector(settings.SelectorConfig)
	if err != nil {
		return err
	}
	if sel == nil {
		sel, err = allowAllSelector()
		if err != nil {
			return err
		}
	}

	var out []selectedPolicy
	for _, cp := range policies {
		out = append(out, selectedPolicy{
			Name:    cp.PackageName,
			Target:  cp.Target,
			Tags:    cp.Tags,
			Enabled: sel.Enabled(cp.ToCompiledPolicy()),
		})
	}

	if isJSON() {
		return printJSON(map[string]any{"policies": out})
	}

	if len(out) == 0 {
		if !isQuiet() {
			cmd.Println("No compiled policies found under", settings.InstallRoot)
		}
		return nil
	}
	for _, p := range out {
		state := "disabled"
		if p.Enabled {
			state = "enabled"
		}
		cmd.Printf("  %-40s target=%-10s %s\n", p.Name, p.Target, state)
	}
	return nil
}
