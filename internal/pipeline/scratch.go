package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Scratch owns the temporary directory where uploaded utterances live for
// the duration of one request. Files are removed on every exit path.
type Scratch struct {
	dir string
}

// NewScratch ensures dir exists and returns a scratch store rooted there.
func NewScratch(dir string) (*Scratch, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "santacall")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("scratch dir %q: %w", dir, err)
	}
	return &Scratch{dir: dir}, nil
}

// Save writes an uploaded audio stream to a uniquely named scratch file and
// returns its path. The caller must Remove it when done.
func (s *Scratch) Save(r io.Reader) (string, int64, error) {
	path := filepath.Join(s.dir, "utterance-"+uuid.NewString())

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create scratch file: %w", err)
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("write scratch file: %w", err)
	}
	return path, n, nil
}

// Remove deletes a scratch file. Safe to call more than once; a missing
// file is not an error.
func (s *Scratch) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("scratch cleanup failed", "path", path, "error", err)
	}
}
