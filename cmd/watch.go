/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/ansible-policy/gatekeeper/internal/engine"
	"github.com/ansible-policy/gatekeeper/internal/evaluator"
	"github.com/ansible-policy/gatekeeper/internal/input"
	"github.com/ansible-policy/gatekeeper/internal/logging"
	"github.com/ansible-policy/gatekeeper/internal/result"
)

var watchCmd = &cobra.Command{
	Use:   "watch <directory>",
	Short: "Watch a directory of event JSON files, evaluating each as it lands",
	Long: `A thin fsnotify-based event adapter (§6 EXPANSION): every file
created or written under <directory> is read as a raw JSON body,
wrapped into a PolicyInput{Kind: event}, and evaluated against the
currently installed, selected policies. Nothing here carries policy
logic of its own — it is a wrapper feeding C7/C8/C9/C10 one artifact
at a time, the way a runner's event stream would.

Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]

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

	driver := engine.NewDriver(settings.EngineBinary)
	ev := evaluator.NewEvaluator(driver, sel)
	log := logging.New(isJSON(), isVerbose())

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return err
	}

	cmd.Printf("watching %s for policy events (ctrl-c to stop)\n", dir)

	for {
		select {
		case ev2, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev2.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if err := evaluateEventFile(cmd, ev, policies, ev2.Name); err != nil {
				log.Warn("event evaluation failed", "file", ev2.Name, "error", err)
			}
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", "error", watchErr)
		}
	}
}

func evaluateEventFile(cmd *cobra.Command, ev *evaluator.Evaluator, policies []evaluator.CompiledPolicy, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var body map[string]any
	if err := json.Unmarshal(b, &body); err != nil {
		return err
	}

	pi := &input.PolicyInput{Kind: input.KindEvent, Object: body}
	files := []evaluator.FileInput{{Path: path, Inputs: []*input.PolicyInput{pi}}}

	run, err := ev.Run(context.Background(), files, policies)
	if err != nil {
		return err
	}

	out, err := result.FormatEventStream(*run)
	if err != nil {
		return err
	}
	cmd.Print(string(out))
	return nil
}
