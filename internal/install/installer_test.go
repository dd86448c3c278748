package install

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const literalPolicybook = `
- name: package policies
  vars:
    allowed_packages: [mysql]
  policies:
    - name: only allowed packages
      target: task
      condition: input["ansible.builtin.package"].name not in allowed_packages
      action:
        deny:
          msg: "package is not allowed"
`

func TestInstallWritesCompiledPoliciesAndUtils(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/packages.yml", []byte(literalPolicybook), 0o644))

	ins := NewInstaller(fs, "/install")
	report, err := ins.Install([]Source{{Name: "local", Location: "/src", Kind: KindPath}}, false)
	require.NoError(t, err)
	assert.Empty(t, report.Skipped)

	exists, err := afero.Exists(fs, "/install/local/policies/only_allowed_packages.rego")
	require.NoError(t, err)
	assert.True(t, exists)

	utilsExists, err := afero.Exists(fs, "/install/local/policies/utils.rego")
	require.NoError(t, err)
	assert.True(t, utilsExists)
}

func TestInstallRunPhasePlacement(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/pre_run/packages.yml", []byte(literalPolicybook), 0o644))

	ins := NewInstaller(fs, "/install")
	_, err := ins.Install([]Source{{Name: "local", Location: "/src", Kind: KindPath}}, false)
	require.NoError(t, err)

	exists, err := afero.Exists(fs, "/install/local/extensions/policy/pre_run/only_allowed_packages.rego")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestInstallSkipsWhenAlreadyInstalledAndNotForced(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/packages.yml", []byte(literalPolicybook), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/install/local/policies/only_allowed_packages.rego", []byte("package x\n"), 0o644))

	ins := NewInstaller(fs, "/install")
	report, err := ins.Install([]Source{{Name: "local", Location: "/src", Kind: KindPath}}, false)
	require.NoError(t, err)
	assert.Empty(t, report.Written)
}

func TestInstallGalaxySourceIsNoOp(t *testing.T) {
	fs := afero.NewMemMapFs()
	ins := NewInstaller(fs, "/install")
	report, err := ins.Install([]Source{{Name: "community", Location: "community.general", Kind: KindGalaxy}}, false)
	require.NoError(t, err)
	assert.Empty(t, report.Written)
	assert.Empty(t, report.Skipped)
}

func TestInstallMalformedPolicybookIsSkippedNotFatal(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/good.yml", []byte(literalPolicybook), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/src/bad.yml", []byte("- name: broken\n  policies: [ not-a-map ]\n"), 0o644))

	ins := NewInstaller(fs, "/install")
	report, err := ins.Install([]Source{{Name: "local", Location: "/src", Kind: KindPath}}, false)
	require.NoError(t, err)
	assert.NotEmpty(t, report.Written)
	assert.NotEmpty(t, report.Skipped)
}

func TestInferKind(t *testing.T) {
	assert.Equal(t, KindPath, InferKind("/opt/policies"))
	assert.Equal(t, KindGalaxy, InferKind("community.general"))
	assert.Equal(t, KindGalaxy, InferKind("bundles/collection.tar.gz"))
}
