package remote_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/HendryAvila/sidenote/internal/remote"
	"github.com/HendryAvila/sidenote/internal/remote/remotetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadDownloadList(t *testing.T) {
	u := remotetest.Uploader(t, "backups", "sidenote/")
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "notes_backup_20240101_120000.db")
	require.NoError(t, os.WriteFile(src, []byte("sqlite bytes"), 0o600))

	key, err := u.Upload(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, "sidenote/notes_backup_20240101_120000.db", key)

	keys, err := u.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)

	dst := filepath.Join(t.TempDir(), "restored.db")
	require.NoError(t, u.Download(ctx, key, dst))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "sqlite bytes", string(got))
}

func TestUpload_MissingFile(t *testing.T) {
	u := remotetest.Uploader(t, "backups", "")
	_, err := u.Upload(context.Background(), filepath.Join(t.TempDir(), "nope.db"))
	assert.Error(t, err)
}

func TestConfig_Enabled(t *testing.T) {
	assert.False(t, remote.Config{}.Enabled())
	assert.True(t, remote.Config{Bucket: "b"}.Enabled())

	_, err := remote.New(context.Background(), remote.Config{})
	assert.Error(t, err)
}
