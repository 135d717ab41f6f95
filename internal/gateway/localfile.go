package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/naka-gawa/recent-activity/internal/domain"
)

// LocalFile is a ContentStore backed by the local filesystem. The repo argument is ignored and
// paths are resolved against root. Versions are SHA-256 digests of the file contents.
type LocalFile struct {
	root   string
	logger *log.Logger
}

// NewLocalFile creates a LocalFile rooted at root ("" means the working directory).
func NewLocalFile(root string, logger *log.Logger) *LocalFile {
	return &LocalFile{root: root, logger: logger}
}

func (l *LocalFile) resolve(path string) string {
	if l.root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.root, path)
}

// Read returns the file at path. A missing file is an ErrTargetFile.
func (l *LocalFile) Read(_ context.Context, _, path string) (*domain.Content, error) {
	full := l.resolve(path)
	b, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Mark(errors.Wrapf(err, "file %s does not exist", full), domain.ErrTargetFile)
		}
		return nil, fmt.Errorf("failed to read %s: %w", full, err)
	}
	return &domain.Content{Body: string(b), Version: digest(b)}, nil
}

// Update rewrites the file if it still matches update.Version.
func (l *LocalFile) Update(_ context.Context, _, path string, update domain.ContentUpdate) error {
	full := l.resolve(path)
	info, err := os.Stat(full)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", full, err)
	}
	current, err := os.ReadFile(full)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", full, err)
	}
	if digest(current) != update.Version {
		return errors.Mark(errors.Newf("%s changed since it was read", full), domain.ErrPublishConflict)
	}
	if err := os.WriteFile(full, []byte(update.Body), info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write %s: %w", full, err)
	}
	l.logger.Printf("Wrote %d bytes to %s", len(update.Body), full)
	return nil
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
