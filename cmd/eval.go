/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ansible-policy/gatekeeper/internal/auditstore"
	"github.com/ansible-policy/gatekeeper/internal/engine"
	"github.com/ansible-policy/gatekeeper/internal/evaluator"
	"github.com/ansible-policy/gatekeeper/internal/input"
	"github.com/ansible-policy/gatekeeper/internal/logging"
	"github.com/ansible-policy/gatekeeper/internal/result"
)

var (
	evalKind       string
	evalVarsFile   string
	evalExtraVars  []string
	evalSourceFile string
	evalFormat     string
	evalAudit      bool
)

var evalCmd = &cobra.Command{
	Use:   "eval <input.json> [input.json ...]",
	Short: "Evaluate scanned artifacts against installed, selected policies",
	Long: `Reads one or more PolicyInput object bodies (JSON) — one per scanned
artifact — builds each into a input.PolicyInput of --kind, resolves any
{{ var }} placeholders in an "args" field against layered variables,
and drives C9/C10 against every installed policy the selector (C7)
enables for this run.

Exit status is 0 when no policy decision is a violation, 1 otherwise.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.Flags().StringVar(&evalKind, "kind", "task", "PolicyInput kind: task, play, role, project, task_result, event, rest")
	evalCmd.Flags().StringVar(&evalVarsFile, "vars-file", "", "JSON file of vars_files-layer variables")
	evalCmd.Flags().StringArrayVar(&evalExtraVars, "extra-var", nil, "key=value extra var (repeatable)")
	evalCmd.Flags().StringVar(&evalSourceFile, "source-file", "", "Original YAML source file, for C10 line attribution")
	evalCmd.Flags().StringVar(&evalFormat, "format", "plaintext", "Output format: plaintext, json, event, rest")
	evalCmd.Flags().BoolVar(&evalAudit, "audit", false, "Record this run's decisions to the audit trail")
}

func runEval(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("load selector config: %w", err)
	}
	if sel == nil {
		sel, err = allowAllSelector()
		if err != nil {
			return err
		}
	}

	vars, err := resolveEvalVars()
	if err != nil {
		return err
	}

	var sourceYAML string
	if evalSourceFile != "" {
		b, err := os.ReadFile(evalSourceFile)
		if err != nil {
			return fmt.Errorf("read source file: %w", err)
		}
		sourceYAML = string(b)
	}

	files, err := buildFileInputs(args, vars, sourceYAML)
	if err != nil {
		return err
	}

	driver := engine.NewDriver(settings.EngineBinary)
	ev := evaluator.NewEvaluator(driver, sel)

	run, err := ev.Run(context.Background(), files, policies)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	if evalAudit {
		if err := recordAudit(settings.AuditDir, *run); err != nil {
			log := logging.New(isJSON(), isVerbose())
			log.Warn("audit record failed", "error", err)
		}
	}

	if err := printEvalResult(cmd, *run); err != nil {
		return err
	}

	if run.AnyViolated() {
		os.Exit(1)
	}
	return nil
}

func resolveEvalVars() (map[string]any, error) {
	lv := input.LayeredVars{}

	if evalVarsFile != "" {
		b, err := os.ReadFile(evalVarsFile)
		if err != nil {
			return nil, fmt.Errorf("read vars file: %w", err)
		}
		if err := json.Unmarshal(b, &lv.VarsFiles); err != nil {
			return nil, fmt.Errorf("parse vars file: %w", err)
		}
	}

	if len(evalExtraVars) > 0 {
		lv.ExtraVars = make(map[string]any, len(evalExtraVars))
		for _, kv := range evalExtraVars {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return nil, fmt.Errorf("malformed --extra-var %q, expected key=value", kv)
			}
			lv.ExtraVars[k] = v
		}
	}

	return lv.Resolve(), nil
}

// buildFileInputs decodes each positional argument as a raw JSON
// object, wraps it as the focal entity of a PolicyInput of --kind, and
// resolves any "args" field's templated values against vars.
func buildFileInputs(paths []string, vars map[string]any, sourceYAML string) ([]evaluator.FileInput, error) {
	files := make([]evaluator.FileInput, 0, len(paths))
	for _, path := range paths {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read input %s: %w", path, err)
		}

		var obj map[string]any
		if err := json.Unmarshal(b, &obj); err != nil {
			return nil, fmt.Errorf("parse input %s: %w", path, err)
		}

		if rawArgs, ok := obj["args"].(map[string]any); ok && len(vars) > 0 {
			resolved, err := input.ResolveArgs(rawArgs, vars)
			if err != nil {
				return nil, fmt.Errorf("resolve args in %s: %w", path, err)
			}
			obj["args"] = resolved
		}

		pi := &input.PolicyInput{Kind: input.Kind(evalKind), Object: obj}
		files = append(files, evaluator.FileInput{
			Path:   path,
			Source: sourceYAML,
			Inputs: []*input.PolicyInput{pi},
		})
	}
	return files, nil
}

func printEvalResult(cmd *cobra.Command, run result.Run) error {
	switch evalFormat {
	case "json":
		out, err := result.FormatJSON(run)
		if err != nil {
			return err
		}
		cmd.Println(string(out))
	case "event":
		out, err := result.FormatEventStream(run)
		if err != nil {
			return err
		}
		cmd.Print(string(out))
	case "rest":
		out, err := json.MarshalIndent(result.FormatREST(run), "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
	default:
		cmd.Print(result.FormatPlaintext(run))
	}
	return nil
}

func recordAudit(auditDir string, run result.Run) error {
	store, err := auditstore.Open(auditDir)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	defer func() { _ = store.Close() }()

	return store.RecordRun(uuid.New().String(), run)
}
