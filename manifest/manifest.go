package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/ZacxDev/fetchooni/fs"
	"github.com/ZacxDev/fetchooni/target"
	"github.com/pkg/errors"
)

const DefaultFilename = "fetchooni.lock"

// Entry records how a target's artifact was last produced. A target
// whose current fingerprint differs from its recorded one is rebuilt
// even if its path exists.
type Entry struct {
	Fingerprint    string    `json:"fingerprint"`
	ArtifactSHA256 string    `json:"artifact_sha256,omitempty"`
	ProducedAt     time.Time `json:"produced_at"`
}

type Manager interface {
	Load() error
	Save() error
	Entry(name string) (Entry, bool)
	Put(name string, entry Entry)
	Delete(name string)

	// Getters
	Entries() map[string]Entry
	FS() fs.FileSystem

	// Setters
	SetEntries(map[string]Entry)
	SetFS(fs.FileSystem)
}

type manager struct {
	filename string
	entries  map[string]Entry
	fs       fs.FileSystem
	mu       sync.Mutex
}

func NewManager(filesystem fs.FileSystem, filename string) Manager {
	if filename == "" {
		filename = DefaultFilename
	}
	return &manager{
		filename: filename,
		entries:  make(map[string]Entry),
		fs:       filesystem,
	}
}

func (m *manager) Load() error {
	data, err := m.fs.ReadFile(m.filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // It's okay if the manifest doesn't exist yet
		}
		return errors.Wrapf(err, "failed to read manifest %s", m.filename)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := json.Unmarshal(data, &m.entries); err != nil {
		return errors.Wrapf(err, "failed to parse manifest %s", m.filename)
	}

	return nil
}

func (m *manager) Save() error {
	m.mu.Lock()
	data, err := json.MarshalIndent(m.entries, "", "  ")
	m.mu.Unlock()
	if err != nil {
		return errors.WithStack(err)
	}

	tempFile := m.filename + ".tmp"
	if err := m.fs.WriteFile(tempFile, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write manifest %s", tempFile)
	}

	return m.fs.Rename(tempFile, m.filename)
}

func (m *manager) Entry(name string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[name]
	return entry, ok
}

func (m *manager) Put(name string, entry Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[name] = entry
}

func (m *manager) Delete(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, name)
}

func (m *manager) Entries() map[string]Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Entry, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}

func (m *manager) FS() fs.FileSystem {
	return m.fs
}

func (m *manager) SetEntries(entries map[string]Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = entries
}

func (m *manager) SetFS(filesystem fs.FileSystem) {
	m.fs = filesystem
}

// Fingerprint hashes the parts of a target definition that determine
// its artifact. Dependency contents are not hashed; prerequisite
// staleness is handled by mod-time comparison in the runner.
func Fingerprint(t *target.Target) string {
	h := sha256.New()

	io.WriteString(h, t.Path)
	io.WriteString(h, t.URL)
	io.WriteString(h, t.SHA256)
	io.WriteString(h, t.Archive)
	io.WriteString(h, strconv.Itoa(t.StripComponents))
	io.WriteString(h, t.Cmd)
	io.WriteString(h, t.Workdir)

	return hex.EncodeToString(h.Sum(nil))
}
