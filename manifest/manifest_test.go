package manifest

import (
	"testing"
	"time"

	"github.com/ZacxDev/fetchooni/fs/mock"
	"github.com/ZacxDev/fetchooni/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingManifest(t *testing.T) {
	m := NewManager(mock.NewMockFileSystem(), "fetchooni.lock")
	require.NoError(t, m.Load())
	assert.Empty(t, m.Entries())
}

func TestSaveLoadRoundtrip(t *testing.T) {
	fs := mock.NewMockFileSystem()

	m := NewManager(fs, "fetchooni.lock")
	m.Put("tarball", Entry{
		Fingerprint:    "fp-1",
		ArtifactSHA256: "abc123",
		ProducedAt:     time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	m.Put("binary", Entry{Fingerprint: "fp-2"})
	require.NoError(t, m.Save())

	// A temp file must not linger after the atomic rename.
	_, err := fs.Stat("fetchooni.lock.tmp")
	assert.Error(t, err)

	reloaded := NewManager(fs, "fetchooni.lock")
	require.NoError(t, reloaded.Load())

	entry, ok := reloaded.Entry("tarball")
	require.True(t, ok)
	assert.Equal(t, "fp-1", entry.Fingerprint)
	assert.Equal(t, "abc123", entry.ArtifactSHA256)
	assert.True(t, entry.ProducedAt.Equal(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)))

	assert.Len(t, reloaded.Entries(), 2)
}

func TestLoadCorruptManifest(t *testing.T) {
	fs := mock.NewMockFileSystem()
	fs.WriteFile("fetchooni.lock", []byte("{not json"), 0644)

	m := NewManager(fs, "fetchooni.lock")
	assert.Error(t, m.Load())
}

func TestDelete(t *testing.T) {
	m := NewManager(mock.NewMockFileSystem(), "fetchooni.lock")
	m.Put("tarball", Entry{Fingerprint: "fp"})
	m.Delete("tarball")

	_, ok := m.Entry("tarball")
	assert.False(t, ok)
}

func TestFingerprint(t *testing.T) {
	base := &target.Target{
		Name: "binary",
		Path: "build/bin/tool",
		Cmd:  "make install",
	}
	same := &target.Target{
		Name: "renamed",
		Path: "build/bin/tool",
		Cmd:  "make install",
	}
	changed := &target.Target{
		Name: "binary",
		Path: "build/bin/tool",
		Cmd:  "make install -j4",
	}

	// A target's name is identity, not provenance; renames alone must
	// not invalidate artifacts.
	assert.Equal(t, Fingerprint(base), Fingerprint(same))
	assert.NotEqual(t, Fingerprint(base), Fingerprint(changed))
}
