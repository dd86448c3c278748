package input

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayeredVarsPrecedence(t *testing.T) {
	lv := LayeredVars{
		Defaults:  map[string]any{"a": "default", "b": "default"},
		VarsFiles: map[string]any{"b": "file"},
		ExtraVars: map[string]any{"c": "extra"},
		Overrides: map[string]any{"c": "override"},
	}
	resolved := lv.Resolve()
	assert.Equal(t, "default", resolved["a"])
	assert.Equal(t, "file", resolved["b"])
	assert.Equal(t, "override", resolved["c"])
}

func TestResolveArgsWholePlaceholderSingletonUnwraps(t *testing.T) {
	args := map[string]any{"name": "{{ pkg }}"}
	vars := map[string]any{"pkg": []any{"mysql"}}
	out, err := ResolveArgs(args, vars)
	require.NoError(t, err)
	assert.Equal(t, "mysql", out["name"])
}

func TestResolveArgsWholePlaceholderFansOutList(t *testing.T) {
	args := map[string]any{"name": "{{ pkgs }}"}
	vars := map[string]any{"pkgs": []any{"mysql", "nginx"}}
	out, err := ResolveArgs(args, vars)
	require.NoError(t, err)
	assert.Equal(t, []any{"mysql", "nginx"}, out["name"])
}

func TestResolveArgsMixedTemplateRenders(t *testing.T) {
	args := map[string]any{"msg": "hello {{ who }}!"}
	vars := map[string]any{"who": "world"}
	out, err := ResolveArgs(args, vars)
	require.NoError(t, err)
	assert.Equal(t, "hello world!", out["msg"])
}

func TestResolveArgsUnknownVarLeftAsIs(t *testing.T) {
	args := map[string]any{"name": "{{ unknown }}"}
	out, err := ResolveArgs(args, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "{{ unknown }}", out["name"])
}

func TestGalaxyResolveFQCNPicksFirstCandidate(t *testing.T) {
	g := &GalaxyMapping{ModuleNameMappings: map[string][]string{
		"package": {"ansible.builtin.package", "community.general.package"},
	}}
	assert.Equal(t, "ansible.builtin.package", g.ResolveFQCN("package"))
	assert.Equal(t, "unknown_module", g.ResolveFQCN("unknown_module"))
}

func TestPolicyInputToJSON(t *testing.T) {
	pi := &PolicyInput{Kind: KindTask, Object: map[string]any{"name": "install mysql"}}
	out, err := pi.ToJSON()
	require.NoError(t, err)
	assert.Equal(t, "install mysql", QueryPath(out, "name").String())
	assert.Equal(t, "task", QueryPath(out, reservedKey+".type").String())
}

func writeZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestReadJobdataZipAndAcquire(t *testing.T) {
	zipBytes := writeZip(t, map[string]string{"project/site.yml": "- hosts: all\n"})

	var stream strings.Builder
	stream.WriteString(base64.StdEncoding.EncodeToString(zipBytes))
	stream.WriteString("\n")
	stream.WriteString(`{"eof": true}`)
	stream.WriteString("\n")

	decoded, err := ReadJobdataZip(strings.NewReader(stream.String()))
	require.NoError(t, err)
	assert.Equal(t, zipBytes, decoded)

	dir, release, err := Acquire(decoded)
	require.NoError(t, err)
	defer release()

	content, err := os.ReadFile(filepath.Join(dir, "project", "site.yml"))
	require.NoError(t, err)
	assert.Equal(t, "- hosts: all\n", string(content))

	release()
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}
