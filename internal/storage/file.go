package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/storycli/storycli/pkg/session"
)

// ErrSlotNotFound is returned when loading a slot that does not exist.
var ErrSlotNotFound = errors.New("save slot not found")

var slotNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// FileStore keeps one JSON file per save slot under a directory.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

var _ SaveStore = (*FileStore)(nil)

func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if dir == "" {
		dir = "saves"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create save directory: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Save writes the snapshot through a temp file and rename, so a crash
// mid-write never leaves a truncated slot behind.
func (s *FileStore) Save(ctx context.Context, slot string, snap *session.Snapshot) error {
	path, err := s.slotPath(slot)
	if err != nil {
		return err
	}

	data, err := snap.Encode()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+slot+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp save file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName) // no-op after a successful rename
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write save file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close save file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("commit save file: %w", err)
	}

	s.logger.Info("Session saved", "slot", slot, "path", path, "bytes", len(data))
	return nil
}

func (s *FileStore) Load(ctx context.Context, slot string) (*session.Snapshot, error) {
	path, err := s.slotPath(slot)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrSlotNotFound, slot)
		}
		return nil, fmt.Errorf("read save file: %w", err)
	}

	snap, err := session.DecodeSnapshot(data)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Session loaded", "slot", slot, "turns", len(snap.Turns))
	return snap, nil
}

func (s *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read save directory: %w", err)
	}

	var slots []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		slots = append(slots, strings.TrimSuffix(name, ".json"))
	}
	return slots, nil
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) slotPath(slot string) (string, error) {
	if !slotNameRe.MatchString(slot) {
		return "", fmt.Errorf("invalid slot name %q", slot)
	}
	return filepath.Join(s.dir, slot+".json"), nil
}
