package artifacts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/selenium-runner/pkg/capture"
	"github.com/devicelab-dev/selenium-runner/pkg/download"
)

func TestPrepareDirsClearsPreviousRun(t *testing.T) {
	root := t.TempDir()
	shots := filepath.Join(root, "screenshots")
	downloads := filepath.Join(root, "downloads")
	for _, dir := range []string{shots, downloads} {
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.bin"), []byte("old"), 0o644))
	}

	require.NoError(t, PrepareDirs(capture.New(shots), download.NewWatcher(downloads, time.Second)))

	for _, dir := range []string{shots, downloads} {
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, dir)
	}
}

func TestPrepareDirsCreatesMissing(t *testing.T) {
	shots := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, PrepareDirs(capture.New(shots), nil))
	assert.DirExists(t, shots)
}

func TestPrepareDirsReportsEveryFailure(t *testing.T) {
	// A regular file where a parent directory is expected.
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	err := PrepareDirs(capture.New(filepath.Join(file, "shots")), download.NewWatcher(filepath.Join(file, "dl"), time.Second))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 errors occurred")
}

func TestPrepareDirsNothingToDo(t *testing.T) {
	assert.NoError(t, PrepareDirs(nil, nil))
}
