package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/hearthside/starboard/internal/types"
)

// FileStore persists the state document as a single JSON file.
//
// A read failure (missing, truncated, or corrupt file) is recoverable: Load
// falls back to an empty document rather than failing, matching the
// behavior households actually want from a wall-mounted dashboard that must
// come back up after a power cut. Write failures are returned to the caller.
type FileStore struct {
	path string

	mu     sync.Mutex
	closed bool
}

// NewFileStore creates a FileStore backed by the given path. The file and
// its parent directory are created on first save; a missing file is not an
// error.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the state document from disk. A missing file yields an empty
// document; corrupt content is logged and replaced by an empty document.
func (s *FileStore) Load(ctx context.Context) (*types.StateDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.NewStateDocument(), nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var doc types.StateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("state file unreadable, starting from empty document",
			"path", s.path,
			"error", err,
		)
		return types.NewStateDocument(), nil
	}
	if doc.Members == nil {
		doc.Members = map[string]types.MemberRecord{}
	}
	return &doc, nil
}

// Save writes the full document atomically: marshal to a temp file in the
// same directory, fsync, then rename over the target. A crash mid-save
// never leaves a torn document behind.
func (s *FileStore) Save(ctx context.Context, doc *types.StateDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state document: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp state file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

// Close marks the store closed. Subsequent Load/Save calls fail with
// ErrClosed.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Store = (*FileStore)(nil)
