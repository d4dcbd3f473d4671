package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"hallpos/internal/kv"
)

type Snapshotter interface {
	WriteSnapshot(snapshotID string, st kv.Store) error
}

// FilesystemSnapshotter dumps the full key-value contents to
// <baseDir>/<snapshotID>/state.json as a raw key -> value map.
type FilesystemSnapshotter struct {
	baseDir string
}

func NewFilesystemSnapshotter(baseDir string) *FilesystemSnapshotter {
	return &FilesystemSnapshotter{baseDir: baseDir}
}

func (f *FilesystemSnapshotter) WriteSnapshot(snapshotID string, st kv.Store) error {
	if err := os.MkdirAll(filepath.Join(f.baseDir, snapshotID), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	file := filepath.Join(f.baseDir, snapshotID, "state.json")
	out, err := os.Create(file)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	defer out.Close()

	dump := make(map[string]string)
	if err := st.Range(func(key, value string) error {
		dump[key] = value
		return nil
	}); err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dump); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
