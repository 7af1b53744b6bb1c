// Package memory implements the per-task durable scratchpad: the Memory
// Store operations from the orchestrator's core design (task definition,
// uploaded files, key findings, errors, chat history, CWC, and a
// content-hash-keyed summary cache).
package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/taskgraph/taskgraph/internal/filelock"
)

// Sentinel errors matching the error taxonomy in spec §4.1/§7. No function in
// this package returns ErrMemoryNotFound: LoadMemory reports a missing file
// by returning opts.DefaultValue (the empty string when none is set) with a
// nil error, whether or not a default was given.
var (
	ErrMemoryNotFound = errors.New("memory: not found")
	ErrMemoryCorrupt  = errors.New("memory: corrupt")
)

// Store is the per-task durable scratchpad rooted at one task directory.
// Every operation is relative to that directory; there is no cross-task
// state (spec §5 "the memory bank directory is owned exclusively by one
// task").
type Store struct {
	taskDir string
}

// New binds a Store to a task directory. InitializeTaskMemory still must be
// called once before any write.
func New(taskDir string) *Store {
	return &Store{taskDir: taskDir}
}

// TaskDir returns the task directory this Store is rooted at.
func (s *Store) TaskDir() string {
	return s.taskDir
}

// InitializeTaskMemory creates the memory-bank subdirectory and the
// uploaded_files subdirectory inside it.
func (s *Store) InitializeTaskMemory() error {
	if err := os.MkdirAll(s.bankDir(), 0755); err != nil {
		return fmt.Errorf("memory: initialize task memory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(s.bankDir(), "uploaded_files"), 0755); err != nil {
		return fmt.Errorf("memory: initialize uploaded_files dir: %w", err)
	}
	return nil
}

func (s *Store) bankDir() string {
	return filepath.Join(s.taskDir, "memory_bank")
}

func (s *Store) path(name string) string {
	return filepath.Join(s.bankDir(), name)
}

// LoadOptions configures LoadMemory.
type LoadOptions struct {
	IsJSON       bool
	DefaultValue string
}

// LoadMemory returns the raw content of a memory-bank file, parsing JSON
// when requested. Absence returns opts.DefaultValue, not an error; a read
// failure on a file that does exist is MemoryIO, and a JSON parse failure
// is MemoryCorrupt.
func (s *Store) LoadMemory(name string, opts LoadOptions) (string, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return opts.DefaultValue, nil
		}
		return "", fmt.Errorf("memory: load %s: %w", name, err)
	}
	if opts.IsJSON {
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrMemoryCorrupt, name, err)
		}
	}
	return string(data), nil
}

// AppendToMemory creates parent directories as needed and appends content
// plus a trailing newline. Append-only files are never rewritten by this
// call (spec §4.1 invariant).
func (s *Store) AppendToMemory(name string, content string) error {
	path := s.path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("memory: append %s: %w", name, err)
	}
	if err := filelock.LockAndAppend(path, []byte(content+"\n")); err != nil {
		return fmt.Errorf("memory: append %s: %w", name, err)
	}
	return nil
}

// OverwriteOptions configures OverwriteMemory.
type OverwriteOptions struct {
	IsJSON bool
}

// OverwriteMemory atomically replaces a memory-bank file's content. When
// opts.IsJSON is set, content is expected to already be a JSON string; the
// caller is responsible for marshaling.
func (s *Store) OverwriteMemory(name string, content string, opts OverwriteOptions) error {
	path := s.path(name)
	if err := filelock.LockAndWrite(path, []byte(content)); err != nil {
		return fmt.Errorf("memory: overwrite %s: %w", name, err)
	}
	return nil
}

// sha256Hex is the content-hash function backing the summary cache
// (spec §4.1 getSummarizedMemory / invariant 6).
func sha256Hex(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// sanitizeUploadName strips any path components from a caller-supplied
// upload name, keeping only the base name (spec §6 "Names are sanitized").
func sanitizeUploadName(name string) string {
	base := filepath.Base(name)
	base = strings.TrimPrefix(base, string(filepath.Separator))
	if base == "." || base == ".." || base == "" {
		return "upload"
	}
	return base
}

// SaveUploadedFile writes one caller-supplied attachment under
// uploaded_files/<safeName>.
func (s *Store) SaveUploadedFile(name string, content []byte) (string, error) {
	safeName := sanitizeUploadName(name)
	path := filepath.Join(s.bankDir(), "uploaded_files", safeName)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("memory: save upload %s: %w", safeName, err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("memory: save upload %s: %w", safeName, err)
	}
	return filepath.Join("uploaded_files", safeName), nil
}
