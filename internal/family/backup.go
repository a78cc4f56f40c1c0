package family

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// maxBackups caps the retained history; the oldest backup is pruned (index
// entry and file) once the cap is exceeded.
const maxBackups = 50

const indexFilename = "backup-index.json"

// ErrNoConfig is returned when a backup is requested but the family config
// file does not exist.
var ErrNoConfig = errors.New("family config file does not exist")

// BackupEntry is one line of the backup index.
type BackupEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Filename  string    `json:"filename"`
	Size      int       `json:"size"`
	Hash      string    `json:"hash"`
}

// Backups manages timestamped copies of the family configuration file,
// tracked in an index file inside the backup directory.
type Backups struct {
	configPath string
	dir        string
}

// NewBackups creates a backup manager for the given config file and backup
// directory. The directory is created on first backup.
func NewBackups(configPath, dir string) *Backups {
	return &Backups{configPath: configPath, dir: dir}
}

// Backup copies the current config into the backup directory and appends an
// index entry. History beyond maxBackups is pruned oldest-first.
func (b *Backups) Backup() (*BackupEntry, error) {
	content, err := os.ReadFile(b.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoConfig
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}

	index, err := b.loadIndex()
	if err != nil {
		slog.Warn("could not read backup index, starting fresh", "error", err)
		index = nil
	}

	now := time.Now().UTC()
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(now.Format(time.RFC3339Nano))
	filename := fmt.Sprintf("config-%s%s", stamp, filepath.Ext(b.configPath))

	if err := os.WriteFile(filepath.Join(b.dir, filename), content, 0o644); err != nil {
		return nil, fmt.Errorf("writing backup: %w", err)
	}

	entry := BackupEntry{
		Timestamp: now,
		Filename:  filename,
		Size:      len(content),
		Hash:      contentHash(content),
	}
	index = append(index, entry)

	for len(index) > maxBackups {
		oldest := index[0]
		index = index[1:]
		if err := os.Remove(filepath.Join(b.dir, oldest.Filename)); err != nil && !os.IsNotExist(err) {
			slog.Warn("could not prune old backup", "filename", oldest.Filename, "error", err)
		}
	}

	if err := b.saveIndex(index); err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns the backup index, oldest first.
func (b *Backups) List() ([]BackupEntry, error) {
	return b.loadIndex()
}

// Restore overwrites the current config with backup number n (1-based, as
// printed by List). The current config is backed up first so a restore is
// itself reversible.
func (b *Backups) Restore(n int) (*BackupEntry, error) {
	index, err := b.loadIndex()
	if err != nil {
		return nil, err
	}
	if n < 1 || n > len(index) {
		return nil, fmt.Errorf("invalid backup number %d: choose between 1 and %d", n, len(index))
	}

	entry := index[n-1]
	content, err := os.ReadFile(filepath.Join(b.dir, entry.Filename))
	if err != nil {
		return nil, fmt.Errorf("reading backup %s: %w", entry.Filename, err)
	}

	if _, err := b.Backup(); err != nil && !errors.Is(err, ErrNoConfig) {
		return nil, fmt.Errorf("backing up current config before restore: %w", err)
	}

	if err := os.WriteFile(b.configPath, content, 0o644); err != nil {
		return nil, fmt.Errorf("restoring config: %w", err)
	}
	return &entry, nil
}

// Watch polls the config file and backs it up whenever its mtime advances.
// An initial backup is taken immediately. Watch blocks until ctx is done.
func (b *Backups) Watch(ctx context.Context, interval time.Duration) error {
	if _, err := b.Backup(); err != nil && !errors.Is(err, ErrNoConfig) {
		return err
	}

	var last time.Time
	if info, err := os.Stat(b.configPath); err == nil {
		last = info.ModTime()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			info, err := os.Stat(b.configPath)
			if err != nil {
				continue
			}
			if info.ModTime().After(last) {
				last = info.ModTime()
				slog.Info("family config changed, creating backup")
				if _, err := b.Backup(); err != nil {
					slog.Error("auto-backup failed", "error", err)
				}
			}
		}
	}
}

func (b *Backups) loadIndex() ([]BackupEntry, error) {
	data, err := os.ReadFile(filepath.Join(b.dir, indexFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup index: %w", err)
	}

	var index []BackupEntry
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parsing backup index: %w", err)
	}
	return index, nil
}

func (b *Backups) saveIndex(index []BackupEntry) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding backup index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(b.dir, indexFilename), data, 0o644); err != nil {
		return fmt.Errorf("writing backup index: %w", err)
	}
	return nil
}

func contentHash(content []byte) string {
	h := fnv.New32a()
	h.Write(content)
	return fmt.Sprintf("%08x", h.Sum32())
}
