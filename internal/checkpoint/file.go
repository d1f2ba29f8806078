// Package checkpoint persists the aggregation cursor as a single decimal value in a text file.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// ErrMissing is returned by Load when the checkpoint file does not exist.
var ErrMissing = errors.New("checkpoint file missing")

// File stores the cursor at a fixed path as decimal text. Writes overwrite the
// file in place.
type File struct {
	path   string
	logger *slog.Logger
}

// NewFile returns a checkpoint store backed by path.
func NewFile(path string, logger *slog.Logger) *File {
	if logger == nil {
		logger = slog.Default()
	}
	return &File{path: path, logger: logger}
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// Load reads the stored cursor.
func (f *File) Load(_ context.Context) (int64, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("%w: %s", ErrMissing, f.path)
	}
	if err != nil {
		return 0, fmt.Errorf("read checkpoint %s: %w", f.path, err)
	}

	raw := strings.TrimSpace(string(data))
	cursor, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse checkpoint %s: %q: %w", f.path, raw, err)
	}
	if cursor < 0 {
		return 0, fmt.Errorf("parse checkpoint %s: negative cursor %d", f.path, cursor)
	}

	f.logger.Info("[Checkpoint] Loaded", "path", f.path, "cursor", cursor)
	return cursor, nil
}

// Save overwrites the stored cursor.
func (f *File) Save(_ context.Context, cursor int64) error {
	if cursor < 0 {
		return fmt.Errorf("write checkpoint %s: negative cursor %d", f.path, cursor)
	}
	if err := os.WriteFile(f.path, []byte(strconv.FormatInt(cursor, 10)), 0o644); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", f.path, err)
	}
	f.logger.Debug("[Checkpoint] Saved", "path", f.path, "cursor", cursor)
	return nil
}
