package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fetchooni.star")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseStarlarkConfig(t *testing.T) {
	path := writeConfig(t, `
version = "1.2.4"

config = {
    "tarball": {
        "path": "build/tool-" + version + ".tar.gz",
        "url": "https://example.com/tool-" + version + ".tar.gz",
        "sha256": "a" * 64,
    },
    "srctree": {
        "path": "build/tool-" + version,
        "archive": "build/tool-" + version + ".tar.gz",
        "strip_components": 1,
        "target_deps": ["tarball"],
    },
    "binary": {
        "path": "build/bin/tool",
        "cmd": "./configure && make && make install",
        "workdir": "build/tool-" + version,
        "outputs": ["build/bin/**"],
        "target_deps": ["srctree"],
    },
}

default = "binary"
`)

	pipeline, err := ParseStarlarkConfig(path)
	require.NoError(t, err)

	assert.Len(t, pipeline.Targets, 3)
	assert.Equal(t, "binary", pipeline.Default)

	tarball := pipeline.Targets["tarball"]
	require.NotNil(t, tarball)
	assert.Equal(t, "build/tool-1.2.4.tar.gz", tarball.Path)
	assert.Equal(t, "https://example.com/tool-1.2.4.tar.gz", tarball.URL)
	assert.Len(t, tarball.SHA256, 64)

	srctree := pipeline.Targets["srctree"]
	require.NotNil(t, srctree)
	assert.Equal(t, 1, srctree.StripComponents)
	assert.Equal(t, []string{"tarball"}, srctree.TargetDeps)

	binary := pipeline.Targets["binary"]
	require.NotNil(t, binary)
	assert.Equal(t, "build/tool-1.2.4", binary.Workdir)
	assert.Equal(t, []string{"build/bin/**"}, binary.Outputs)
}

func TestParseConfigMissingGlobal(t *testing.T) {
	path := writeConfig(t, `targets = {}`)

	_, err := ParseStarlarkConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'config' object not found")
}

func TestParseConfigUnknownDep(t *testing.T) {
	path := writeConfig(t, `
config = {
    "binary": {
        "path": "bin/tool",
        "cmd": "make",
        "target_deps": ["nonexistent"],
    },
}
`)

	_, err := ParseStarlarkConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown target")
}

func TestParseConfigUnknownDefault(t *testing.T) {
	path := writeConfig(t, `
config = {
    "binary": {"path": "bin/tool", "cmd": "make"},
}
default = "release"
`)

	_, err := ParseStarlarkConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default target")
}

func TestParseConfigConflictingActions(t *testing.T) {
	path := writeConfig(t, `
config = {
    "bad": {
        "path": "bin/tool",
        "cmd": "make",
        "url": "https://example.com/tool.tar.gz",
    },
}
`)

	_, err := ParseStarlarkConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestParseConfigWithLoad(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "versions.star"), []byte(`
tool_version = "2.0.1"
`), 0644))

	path := filepath.Join(dir, "fetchooni.star")
	require.NoError(t, os.WriteFile(path, []byte(`
load("versions.star", "tool_version")

config = {
    "tarball": {
        "path": "build/tool-" + tool_version + ".tar.gz",
        "url": "https://example.com/tool-" + tool_version + ".tar.gz",
    },
}
`), 0644))

	pipeline, err := ParseStarlarkConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "build/tool-2.0.1.tar.gz", pipeline.Targets["tarball"].Path)
}
