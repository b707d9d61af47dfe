package recording

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/BioHazard786/roomcall/internal/coordinatortest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcherDownload(t *testing.T) {
	srv := coordinatortest.New(t)
	srv.AddRecording("room-1.webm", []byte("webm bytes"))

	f := NewFetcher(srv.RecordingsURL()+"/", zerolog.Nop())
	dir := t.TempDir()

	size, err := f.Stat(context.Background(), "room-1.webm")
	require.NoError(t, err)
	assert.EqualValues(t, 10, size)

	var last int64
	path, err := f.Download(context.Background(), "room-1.webm", dir, func(written, total int64) {
		last = written
		assert.EqualValues(t, 10, total)
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "room-1.webm"), path)
	assert.EqualValues(t, 10, last)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "webm bytes", string(data))

	path, err = f.Download(context.Background(), "room-1.webm", dir, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "room-1 (1).webm"), path)
}

func TestFetcherNotFound(t *testing.T) {
	srv := coordinatortest.New(t)
	f := NewFetcher(srv.RecordingsURL(), zerolog.Nop())
	dir := t.TempDir()

	_, err := f.Download(context.Background(), "missing.webm", dir, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetcherRejectsPaths(t *testing.T) {
	f := NewFetcher("http://127.0.0.1:1/api/recordings", zerolog.Nop())
	for _, name := range []string{"", "..", "../etc/passwd", `a\b`} {
		_, err := f.Stat(context.Background(), name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestFetcherURL(t *testing.T) {
	f := NewFetcher("https://example.com/api/recordings/", zerolog.Nop())
	assert.Equal(t, "https://example.com/api/recordings/my%20call.webm", f.URL("my call.webm"))
}
