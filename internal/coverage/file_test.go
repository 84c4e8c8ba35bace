package coverage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main", "coverage.json")
	list := sampleList()

	require.NoError(t, WriteFile(path, list))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, list.Entries(), got.Entries())
}

func TestWriteFile_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coverage.json")

	require.NoError(t, WriteFile(path, sampleList()))
	require.NoError(t, WriteFile(path, NewSourceCoveringTestsList([]SourceCoveringTests{
		{Path: "src/only.cpp", TestTargets: []string{"OnlyTests"}},
	})))

	got, err := ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, got.NumSources())
	assert.Equal(t, "src/only.cpp", got.Entries()[0].Path)
}

func TestWriteFile_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteFile(filepath.Join(dir, "coverage.json"), sampleList()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "coverage.json", entries[0].Name())
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
