package gateway

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/naka-gawa/recent-activity/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFile_ReadUpdate(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("old"), 0o600))
	store := NewLocalFile(dir, log.New(io.Discard, "", 0))

	content, err := store.Read(ctx, "", "README.md")
	require.NoError(t, err)
	assert.Equal(t, "old", content.Body)
	assert.NotEmpty(t, content.Version)

	err = store.Update(ctx, "", "README.md", domain.ContentUpdate{Body: "new", Version: content.Version})
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(dir, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(b))

	info, err := os.Stat(filepath.Join(dir, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// The version read before the first update is now stale.
	err = store.Update(ctx, "", "README.md", domain.ContentUpdate{Body: "newer", Version: content.Version})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPublishConflict))
}

func TestLocalFile_ReadMissing(t *testing.T) {
	store := NewLocalFile(t.TempDir(), log.New(io.Discard, "", 0))

	_, err := store.Read(context.Background(), "", "README.md")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTargetFile))
}
