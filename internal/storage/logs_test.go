package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	ls := NewLogStorage(dir)

	path, err := ls.SaveLog("run-1", 0, "Build app", "output\n")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run-1_01_Build_app.log"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "output\n", string(data))
}

func TestSaveLogWithoutRunID(t *testing.T) {
	ls := NewLogStorage(t.TempDir())
	path, err := ls.SaveLog("", 2, "Deploy", "")
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Contains(t, filepath.Base(path), "_03_Deploy.log")
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "Step_1", sanitize("Step 1"))
	assert.Equal(t, "deploy-prod", sanitize("deploy-prod/../"))
	assert.Equal(t, "step", sanitize("///"))
}
