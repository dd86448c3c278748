// Package install implements the Policy Source Installer (C6): it
// resolves a list of policy sources into an installation root and
// drives the policybook loader and policy transpiler over every
// policybook file discovered under each source.
package install

import "strings"

// Kind identifies how a Source's Location is resolved.
type Kind string

const (
	KindPath   Kind = "path"
	KindGalaxy Kind = "galaxy"
)

// Source is one entry from the selector config's [source] section
// (§4.7/§6): a name, a location, and a kind deciding how it installs.
type Source struct {
	Name     string
	Location string
	Kind     Kind
}

// InferKind applies the selector config's type-inference rule (§4.7):
// a location containing '/' that does not end in ".tar.gz" is a path;
// anything else is treated as a galaxy collection reference.
func InferKind(location string) Kind {
	if strings.Contains(location, "/") && !strings.HasSuffix(location, ".tar.gz") {
		return KindPath
	}
	return KindGalaxy
}
