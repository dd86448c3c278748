/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ansible-policy/gatekeeper/internal/engine"
	"github.com/ansible-policy/gatekeeper/internal/evaluator"
	"github.com/ansible-policy/gatekeeper/internal/input"
	"github.com/ansible-policy/gatekeeper/internal/logging"
	"github.com/ansible-policy/gatekeeper/internal/result"
)

var serveRestAddr string

var serveRestCmd = &cobra.Command{
	Use:   "serve-rest",
	Short: "Serve a minimal REST endpoint evaluating posted artifacts",
	Long: `A minimal net/http adapter (§6 EXPANSION), deliberately thin: no
router dependency, since HTTP serving is scoped out of the core. POST
a JSON body to /evaluate and it is wrapped as a PolicyInput{Kind: rest},
evaluated against the currently installed, selected policies, and
returned as C11's REST-rendered result.`,
	RunE: runServeRest,
}

func init() {
	rootCmd.AddCommand(serveRestCmd)
	serveRestCmd.Flags().StringVar(&serveRestAddr, "addr", ":8181", "Address to listen on")
}

func runServeRest(cmd *cobra.Command, args []string) error {
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

	mux := http.NewServeMux()
	mux.HandleFunc("/evaluate", handleEvaluate(ev, policies, log))

	srv := &http.Server{
		Addr:         serveRestAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	cmd.Printf("serving REST evaluation on %s\n", serveRestAddr)
	return srv.ListenAndServe()
}

func handleEvaluate(ev *evaluator.Evaluator, policies []evaluator.CompiledPolicy, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "malformed JSON body: "+err.Error(), http.StatusBadRequest)
			return
		}

		pi := &input.PolicyInput{Kind: input.KindRest, Object: body}
		files := []evaluator.FileInput{{Path: "rest", Inputs: []*input.PolicyInput{pi}}}

		run, err := ev.Run(r.Context(), files, policies)
		if err != nil {
			log.Warn("rest evaluation failed", "error", err)
			http.Error(w, "evaluation failed: "+err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result.FormatREST(*run))
	}
}
