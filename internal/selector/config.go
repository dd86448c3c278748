// Package selector implements the Policy Selector (C7): parsing the
// flat, two-section config file and resolving, for each compiled
// policy, whether it is enabled for a given run.
package selector

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ansible-policy/gatekeeper/internal/errs"
	"github.com/ansible-policy/gatekeeper/internal/install"
)

// PolicyPattern is one line from the [policy] section.
type PolicyPattern struct {
	NameGlob string
	Tags     []string
	Enabled  bool
}

// Config is the parsed selector config file.
type Config struct {
	Policies []PolicyPattern
	Sources  []install.Source
}

type section int

const (
	sectionNone section = iota
	sectionPolicy
	sectionSource
)

// Parse reads a selector config file (§6). Unknown section names are a
// fatal *errs.Error with Kind KindConfig, per the error taxonomy (§7):
// unlike every other error kind, a config error aborts the whole run.
func Parse(r io.Reader) (*Config, error) {
	cfg := &Config{}
	cur := sectionNone

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			name := strings.TrimSpace(line[1 : len(line)-1])
			switch name {
			case "policy":
				cur = sectionPolicy
			case "source":
				cur = sectionSource
			default:
				return nil, errs.Newf(errs.KindConfig, fmt.Sprintf("line %d", lineNo), "unknown section %q", name)
			}
			continue
		}

		switch cur {
		case sectionPolicy:
			p, err := parsePolicyLine(line)
			if err != nil {
				return nil, errs.New(errs.KindConfig, fmt.Sprintf("line %d", lineNo), err)
			}
			cfg.Policies = append(cfg.Policies, p)
		case sectionSource:
			s, err := parseSourceLine(line)
			if err != nil {
				return nil, errs.New(errs.KindConfig, fmt.Sprintf("line %d", lineNo), err)
			}
			cfg.Sources = append(cfg.Sources, s)
		default:
			return nil, errs.Newf(errs.KindConfig, fmt.Sprintf("line %d", lineNo), "line outside any section: %q", line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.New(errs.KindConfig, "config", err)
	}
	return cfg, nil
}

// parsePolicyLine parses "<name-glob> [tag=t1,t2] (enabled|disabled)".
// "default" is an alias for "*".
func parsePolicyLine(line string) (PolicyPattern, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return PolicyPattern{}, fmt.Errorf("malformed policy pattern %q", line)
	}

	state := fields[len(fields)-1]
	var enabled bool
	switch state {
	case "enabled":
		enabled = true
	case "disabled":
		enabled = false
	default:
		return PolicyPattern{}, fmt.Errorf("policy pattern %q must end in enabled or disabled", line)
	}

	nameGlob := fields[0]
	if nameGlob == "default" {
		nameGlob = "*"
	}

	var tags []string
	for _, f := range fields[1 : len(fields)-1] {
		rest, ok := strings.CutPrefix(f, "tag=")
		if !ok {
			return PolicyPattern{}, fmt.Errorf("unexpected token %q in policy pattern %q", f, line)
		}
		tags = append(tags, strings.Split(rest, ",")...)
	}

	return PolicyPattern{NameGlob: nameGlob, Tags: tags, Enabled: enabled}, nil
}

// parseSourceLine parses "<name>=<location>[ type=path|galaxy]".
func parseSourceLine(line string) (install.Source, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return install.Source{}, fmt.Errorf("empty source line")
	}

	nameLoc := fields[0]
	name, location, ok := strings.Cut(nameLoc, "=")
	if !ok {
		return install.Source{}, fmt.Errorf("malformed source line %q, expected name=location", line)
	}

	kind := install.InferKind(location)
	for _, f := range fields[1:] {
		rest, ok := strings.CutPrefix(f, "type=")
		if !ok {
			return install.Source{}, fmt.Errorf("unexpected token %q in source line %q", f, line)
		}
		switch rest {
		case "path":
			kind = install.KindPath
		case "galaxy":
			kind = install.KindGalaxy
		default:
			return install.Source{}, fmt.Errorf("unknown source type %q", rest)
		}
	}

	return install.Source{Name: strings.TrimSpace(name), Location: strings.TrimSpace(location), Kind: kind}, nil
}
