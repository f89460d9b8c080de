// Package buildcache skips recompiling a ribbon entry file when its
// content hasn't changed since the last build. Grounded on the
// teacher's build/cache.go, narrowed from multi-file import-hash
// tracking (meaningless without a module graph — modules are an
// explicit Non-goal) down to a single entry-file hash, and adapted to
// cache a serialized compiler.Program instead of an LLVM IR text file.
package buildcache

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/ribbc/ribbon/internal/compiler"
)

// Entry is the hash-sidecar metadata stored next to a cached bytecode
// blob, mirroring the teacher's CacheEntry shape (minus ImportHash,
// which only ever mattered for multi-file dependency tracking).
type Entry struct {
	SourceHash string `json:"source_hash"`
}

// Manager locates and reads/writes the cache for one project.
type Manager struct {
	dir string
}

// NewManager creates a Manager rooted at projectRoot's build/bytecode
// directory.
func NewManager(projectRoot string) *Manager {
	return &Manager{dir: filepath.Join(projectRoot, "build", "bytecode")}
}

func (m *Manager) hashPath(name string) string { return filepath.Join(m.dir, name+".hash") }
func (m *Manager) blobPath(name string) string { return filepath.Join(m.dir, name+".rbc") }

// HashSource returns the hex-encoded SHA-256 of source.
func HashSource(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}

// NeedsRebuild reports whether name's cached entry is missing or stale
// against source's hash.
func (m *Manager) NeedsRebuild(name string, source []byte) bool {
	data, err := os.ReadFile(m.hashPath(name))
	if err != nil {
		return true
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return true
	}

	return entry.SourceHash != HashSource(source)
}

// Load reads the cached bytecode Program for name, if one exists.
func (m *Manager) Load(name string) (*compiler.Program, error) {
	data, err := os.ReadFile(m.blobPath(name))
	if err != nil {
		return nil, err
	}

	var prog compiler.Program
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&prog); err != nil {
		return nil, err
	}

	return &prog, nil
}

// Store writes prog and its hash-sidecar metadata for name, creating
// the cache directory if needed.
func (m *Manager) Store(name string, source []byte, prog *compiler.Program) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(prog); err != nil {
		return err
	}

	if err := os.WriteFile(m.blobPath(name), buf.Bytes(), 0o644); err != nil {
		return err
	}

	entry := Entry{SourceHash: HashSource(source)}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(m.hashPath(name), data, 0o644)
}
