// Package engine implements the Engine Driver (C9): it invokes the
// configured policy engine binary as a subprocess, feeding it the
// utility-rules file, the compiled policy file, an optional external
// data file, and a PolicyInput on stdin, then parses its result.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/ansible-policy/gatekeeper/internal/errs"
)

// DefaultBinary is the engine binary name invoked when no override is
// configured (§6: "the core exec's opa eval ...").
const DefaultBinary = "opa"

// Decision is one engine evaluation's outcome: the raw decision value
// and any message captured from the policy's print(...) output.
type Decision struct {
	Value   any
	Message string
}

// Driver invokes the policy engine binary.
type Driver struct {
	Binary string
}

func NewDriver(binary string) *Driver {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Driver{Binary: binary}
}

type evalResult struct {
	Result []struct {
		Expressions []struct {
			Value any `json:"value"`
		} `json:"expressions"`
	} `json:"result"`
}

// Eval runs "<binary> eval --data <utilsPath> --data <policyPath>
// [--data <externalPath>] --stdin-input <query>", writing inputJSON to
// stdin. It walks result[0].expressions[0].value for the decision
// value and treats stderr as the policy's human-readable message
// output (§4.9/§6). A non-zero exit is a fatal *errs.Error (KindEngine)
// with stderr attached.
func (d *Driver) Eval(ctx context.Context, utilsPath, policyPath, externalPath, query string, inputJSON []byte) (*Decision, error) {
	args := []string{"eval", "--data", utilsPath, "--data", policyPath}
	if externalPath != "" {
		args = append(args, "--data", externalPath)
	}
	args = append(args, "--stdin-input", query)

	cmd := exec.CommandContext(ctx, d.Binary, args...)
	cmd.Stdin = bytes.NewReader(inputJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, errs.New(errs.KindEngine, query, fmt.Errorf("%w: %s", err, stderr.String()))
	}

	var parsed evalResult
	if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
		return nil, errs.New(errs.KindEngine, query, fmt.Errorf("parse engine output: %w", err))
	}
	if len(parsed.Result) == 0 || len(parsed.Result[0].Expressions) == 0 {
		return &Decision{Value: nil, Message: stderr.String()}, nil
	}

	return &Decision{
		Value:   parsed.Result[0].Expressions[0].Value,
		Message: stderr.String(),
	}, nil
}
