/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ansible-policy/gatekeeper/internal/policybook"
	"github.com/ansible-policy/gatekeeper/internal/transpile"
)

var compileOut string

var compileCmd = &cobra.Command{
	Use:   "compile <policybook.yml>",
	Short: "Compile one policybook file into target-policy-language documents",
	Long: `Loads a single policybook YAML file (C2), transpiles every policy it
declares into a compiled Rego document (C4/C5), and either writes them
to --out or prints them to stdout, one "package" block at a time.

Unlike "install", compile does not walk a source tree or write the
shared utils.rego file — it is meant for inspecting what one policybook
compiles to.`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().StringVar(&compileOut, "out", "", "Directory to write compiled .rego files into (default: print to stdout)")
}

func runCompile(cmd *cobra.Command, args []string) error {
	path := args[0]

	loader := policybook.NewLoader(afero.NewOsFs())
	doc, err := loader.LoadFile(path)
	if err != nil {
		return fmt.Errorf("load policybook: %w", err)
	}

	type compiled struct {
		PackageName string `json:"package_name"`
		Path        string `json:"path,omitempty"`
	}
	var written []compiled

	for _, ps := range doc.PolicySets {
		for _, p := range ps.Policies {
			out, err := transpile.CompileDocument(ps, p)
			if err != nil {
				return fmt.Errorf("compile policy %q: %w", p.Name, err)
			}

			if compileOut == "" {
				if !isJSON() {
					fmt.Println(string(out.Source))
				}
				written = append(written, compiled{PackageName: out.PackageName})
				continue
			}

			outPath := filepath.Join(compileOut, out.PackageName+".rego")
			if err := os.MkdirAll(compileOut, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			if err := os.WriteFile(outPath, out.Source, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}
			written = append(written, compiled{PackageName: out.PackageName, Path: outPath})
		}
	}

	if isJSON() {
		return printJSON(map[string]any{"compiled": written})
	}
	if compileOut != "" && !isQuiet() {
		for _, c := range written {
			cmd.Printf("compiled %s -> %s\n", c.PackageName, c.Path)
		}
	}
	return nil
}
