package seen

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// FileStore keeps the seen set in a single JSON file. Only this process
// writes it, so there is no locking beyond replace-on-write.
type FileStore struct {
	path string
	log  zerolog.Logger
}

func NewFileStore(path string, log zerolog.Logger) *FileStore {
	return &FileStore{path: path, log: log}
}

type fileFormat struct {
	SeenIDs []string `json:"seen_ids"`
}

func (fs *FileStore) Load(ctx context.Context) (Set, error) {
	b, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return NewSet(), nil
	}
	if err != nil {
		fs.log.Warn().Err(err).Str("path", fs.path).Msg("seen store unreadable, starting with an empty set")
		return NewSet(), nil
	}
	var f fileFormat
	if err := json.Unmarshal(b, &f); err != nil {
		fs.log.Warn().Err(err).Str("path", fs.path).
			Msg("seen store corrupt, starting with an empty set; already-notified slots may be announced once more")
		return NewSet(), nil
	}
	return NewSet(f.SeenIDs...), nil
}

func (fs *FileStore) Flush(ctx context.Context, s Set) error {
	b, err := json.MarshalIndent(fileFormat{SeenIDs: s.sorted()}, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(fs.path, b, 0o644)
}

// atomicWrite goes through a temp file in the target directory plus
// rename, so a crash mid-write can never leave a truncated store behind.
func atomicWrite(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".seen-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
