// Package config resolves the runtime settings every command needs:
// the install root for compiled policies, the selector config path,
// the policy engine binary, and the audit trail directory. Settings take
// viper values (CLI flags and the ANSIBLE_POLICY_* environment variables
// bound in cmd/root.go) over built-in defaults; no config file is read.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the environment-variable prefix viper binds against
	// (ANSIBLE_POLICY_INSTALL_ROOT, ANSIBLE_POLICY_ENGINE_BINARY, ...).
	EnvPrefix = "ANSIBLE_POLICY"

	// DefaultDir is the dotfile directory created in a project root.
	DefaultDir = ".ansible-policy"

	// DefaultInstallRoot is where compiled policy sources install to,
	// relative to DefaultDir.
	DefaultInstallRoot = "policies"

	// DefaultSelectorConfig is the default selector config file name.
	DefaultSelectorConfig = "config.ini"

	// DefaultEngineBinary is the policy engine binary invoked by C9.
	DefaultEngineBinary = "opa"

	// DefaultAuditDir is where the audit SQLite database lives.
	DefaultAuditDir = "audit"
)

// Settings is the resolved runtime configuration for one invocation.
type Settings struct {
	ProjectRoot    string
	InstallRoot    string
	SelectorConfig string
	EngineBinary   string
	AuditDir       string
	Force          bool
	Verbose        bool
}

// Load resolves Settings from viper (already bound to CLI flags by the
// caller) and sensible defaults rooted at projectRoot.
func Load(projectRoot string) (*Settings, error) {
	if projectRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		projectRoot = wd
	}
	base := filepath.Join(projectRoot, DefaultDir)

	v := viper.GetViper()
	s := &Settings{
		ProjectRoot:    projectRoot,
		InstallRoot:    viper.GetString("install-root"),
		SelectorConfig: viper.GetString("selector-config"),
		EngineBinary:   viper.GetString("engine-binary"),
		AuditDir:       viper.GetString("audit-dir"),
		Force:          v.GetBool("force"),
		Verbose:        v.GetBool("verbose"),
	}

	if s.InstallRoot == "" {
		s.InstallRoot = filepath.Join(base, DefaultInstallRoot)
	}
	if s.SelectorConfig == "" {
		s.SelectorConfig = filepath.Join(base, DefaultSelectorConfig)
	}
	if s.EngineBinary == "" {
		s.EngineBinary = DefaultEngineBinary
	}
	if s.AuditDir == "" {
		s.AuditDir = filepath.Join(base, DefaultAuditDir)
	}
	return s, nil
}

// BaseDir returns the dotfile directory (".ansible-policy") under the
// settings' project root, ensuring it exists.
func (s *Settings) BaseDir() (string, error) {
	dir := filepath.Join(s.ProjectRoot, DefaultDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
