package install

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/yargevad/filepathx"

	"github.com/ansible-policy/gatekeeper/internal/errs"
	"github.com/ansible-policy/gatekeeper/internal/policybook"
	"github.com/ansible-policy/gatekeeper/internal/transpile"
)

// Skip records one policybook file (or whole source) that failed to
// install; the run continues with the next file/source regardless
// (§4.5 failure semantics: "logged and skipped").
type Skip struct {
	Source string
	File   string
	Err    error
}

// Report summarizes one Install call.
type Report struct {
	Written []string
	Skipped []Skip
}

// Installer drives C6 over a set of Source entries, writing compiled
// Rego documents under an installation root via an afero.Fs so the
// whole pipeline is testable against an in-memory filesystem.
type Installer struct {
	fs   afero.Fs
	root string
}

func NewInstaller(fs afero.Fs, installRoot string) *Installer {
	return &Installer{fs: fs, root: installRoot}
}

func NewOsInstaller(installRoot string) *Installer {
	return NewInstaller(afero.NewOsFs(), installRoot)
}

// Install resolves every source and compiles its policybook files. A
// "galaxy" source is a no-op (§4.6: remote collections are not policy
// sources in the current design). A "path" source whose destination
// directory is non-empty is skipped unless force is set (install
// idempotence).
func (ins *Installer) Install(sources []Source, force bool) (*Report, error) {
	report := &Report{}
	for _, src := range sources {
		if src.Kind == KindGalaxy {
			continue
		}
		dest := filepath.Join(ins.root, src.Name)

		installed, err := afero.DirExists(ins.fs, dest)
		if err != nil {
			report.Skipped = append(report.Skipped, Skip{Source: src.Name, Err: errs.New(errs.KindScan, dest, err)})
			continue
		}
		if installed && !force {
			empty, err := isEmptyDir(ins.fs, dest)
			if err != nil {
				report.Skipped = append(report.Skipped, Skip{Source: src.Name, Err: errs.New(errs.KindScan, dest, err)})
				continue
			}
			if !empty {
				continue
			}
		}

		if err := ins.installSource(src, dest, report); err != nil {
			report.Skipped = append(report.Skipped, Skip{Source: src.Name, Err: err})
		}
	}
	return report, nil
}

func isEmptyDir(fs afero.Fs, dir string) (bool, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return true, nil
	}
	return len(entries) == 0, nil
}

func (ins *Installer) installSource(src Source, dest string, report *Report) error {
	files, err := discoverPolicybooks(ins.fs, src.Location)
	if err != nil {
		return errs.New(errs.KindScan, src.Location, err)
	}

	utilsPath := filepath.Join(dest, "policies", transpile.UtilsFileName)
	wroteUtils := false

	loader := policybook.NewLoader(ins.fs)
	for _, file := range files {
		doc, err := loader.LoadFile(file)
		if err != nil {
			report.Skipped = append(report.Skipped, Skip{Source: src.Name, File: file, Err: err})
			continue
		}

		for _, ps := range doc.PolicySets {
			for _, p := range ps.Policies {
				compiled, err := transpile.CompileDocument(ps, p)
				if err != nil {
					report.Skipped = append(report.Skipped, Skip{Source: src.Name, File: file, Err: err})
					continue
				}

				outPath := destinationPath(dest, src.Location, file, compiled.PackageName)
				if err := ins.writeFile(outPath, compiled.Source); err != nil {
					report.Skipped = append(report.Skipped, Skip{Source: src.Name, File: file, Err: errs.New(errs.KindScan, outPath, err)})
					continue
				}
				report.Written = append(report.Written, outPath)

				if !wroteUtils {
					if err := ins.writeFile(utilsPath, []byte(transpile.UtilsSource)); err != nil {
						return errs.New(errs.KindScan, utilsPath, err)
					}
					wroteUtils = true
					report.Written = append(report.Written, utilsPath)
				}
			}
		}
	}
	return nil
}

// destinationPath implements §4.5 step 6: compiled policies land under
// <install_root>/<source>/policies/<package>.rego, except a policybook
// whose path names a run phase (a "pre_run" or "post_run" path
// component) compiles instead to
// <install_root>/<source>/extensions/policy/<phase>/<package>.rego.
func destinationPath(dest, sourceRoot, policybookPath, pkg string) string {
	rel, err := filepath.Rel(sourceRoot, policybookPath)
	if err != nil {
		rel = policybookPath
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == "pre_run" || part == "post_run" {
			return filepath.Join(dest, "extensions", "policy", part, pkg+".rego")
		}
	}
	return filepath.Join(dest, "policies", pkg+".rego")
}

func (ins *Installer) writeFile(path string, content []byte) error {
	if err := ins.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(ins.fs, path, content, 0o644)
}

// discoverPolicybooks finds every *.yml/*.yaml file under root. Against
// the real filesystem it uses filepathx's "**" glob support; against an
// in-memory afero.Fs (tests) it falls back to a plain recursive walk,
// since filepathx only understands real OS paths.
func discoverPolicybooks(fs afero.Fs, root string) ([]string, error) {
	if _, ok := fs.(*afero.OsFs); ok {
		var found []string
		for _, ext := range []string{"yml", "yaml"} {
			matches, err := filepathx.Glob(filepath.Join(root, "**", "*."+ext))
			if err != nil {
				return nil, err
			}
			found = append(found, matches...)
		}
		sort.Strings(found)
		return found, nil
	}

	var found []string
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".yml") || strings.HasSuffix(path, ".yaml") {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(found)
	return found, nil
}
