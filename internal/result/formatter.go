package result

import (
	"encoding/json"
	"strings"

	"github.com/slongfield/pyfmt"
)

// FormatPlaintext renders a human-readable summary followed by one
// line per violated target, in the teacher's FormatSummary style
// (count-then-detail, blank line framing).
func FormatPlaintext(run Run) string {
	var sb strings.Builder

	violatedFiles := 0
	violatedTargets := 0
	for _, f := range run.Files {
		if f.Violated() {
			violatedFiles++
		}
		for _, p := range f.Policies {
			for _, t := range p.Targets {
				if t.Violated() {
					violatedTargets++
				}
			}
		}
	}

	summary, err := pyfmt.Fmt("\n{0} file(s) evaluated, {1} violated ({2} violation(s))\n",
		len(run.Files), violatedFiles, violatedTargets)
	if err != nil {
		summary = "\nevaluation complete\n"
	}
	sb.WriteString(summary)

	for _, f := range run.Files {
		if !f.Violated() {
			continue
		}
		sb.WriteString("\n" + f.Path + "\n")
		for _, p := range f.Policies {
			if !p.Violated() {
				continue
			}
			for _, t := range p.Targets {
				if !t.Violated() {
					continue
				}
				line, err := pyfmt.Fmt("  [{0}] {1}: {2}\n", p.PolicyName, t.ActionType, t.Message)
				if err != nil {
					line = "  " + p.PolicyName + ": " + t.Message + "\n"
				}
				sb.WriteString(line)
			}
		}
	}
	return sb.String()
}

// FormatJSON renders the full result tree as one JSON document.
func FormatJSON(run Run) ([]byte, error) {
	return json.MarshalIndent(run, "", "  ")
}

// FormatEventStream renders one JSON object per file result, newline
// delimited, for streaming consumers (the fsnotify-driven event
// adapter emits one of these per watched-file evaluation).
func FormatEventStream(run Run) ([]byte, error) {
	var buf strings.Builder
	for _, f := range run.Files {
		line, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return []byte(buf.String()), nil
}

// RestResponse is the shape served by the REST adapter's /evaluate
// endpoint.
type RestResponse struct {
	ExitCode int    `json:"exit_code"`
	Violated bool   `json:"violated"`
	Run      Run    `json:"run"`
}

// FormatREST wraps a Run with the exit-code/violated summary fields a
// REST client needs without re-deriving them from the tree.
func FormatREST(run Run) RestResponse {
	return RestResponse{
		ExitCode: run.ExitCode(),
		Violated: run.AnyViolated(),
		Run:      run,
	}
}
