package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-ci/kestrel/internal/target"
)

func writeDescriptors(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func firstLoadError(t *testing.T, errs []error) *LoadError {
	t.Helper()
	require.NotEmpty(t, errs)
	var le *LoadError
	require.ErrorAs(t, errs[0], &le)
	return le
}

func TestLoadDescriptors(t *testing.T) {
	dir := writeDescriptors(t, map[string]string{
		"targets.cue": `package targets

target: CoreTests: {
	type:    "test"
	suite:   "main"
	command: "./bin/CoreTests"
	sources: ["tests/core_tests.cpp"]
}
target: libcore: {
	type:    "production"
	sources: ["src/core.cpp"]
}
`,
	})

	descriptors, errs := LoadDescriptors(dir, LoadModeFailFast)
	require.Empty(t, errs)
	require.Len(t, descriptors, 2)

	// Name order.
	assert.Equal(t, "CoreTests", descriptors[0].Name)
	assert.Equal(t, target.TypeTest, descriptors[0].Type)
	assert.Equal(t, "main", descriptors[0].Suite)
	assert.Equal(t, "./bin/CoreTests", descriptors[0].Command)
	assert.Equal(t, "libcore", descriptors[1].Name)
	assert.Equal(t, target.TypeProduction, descriptors[1].Type)
}

func TestLoadDescriptors_MultipleFiles(t *testing.T) {
	dir := writeDescriptors(t, map[string]string{
		"tests.cue": "package targets\n\n" + `target: NetTests: {type: "test", suite: "main", command: "./NetTests"}`,
		"libs.cue":  "package targets\n\n" + `target: libnet: {type: "production"}`,
	})

	descriptors, errs := LoadDescriptors(dir, LoadModeFailFast)
	require.Empty(t, errs)
	assert.Len(t, descriptors, 2)
}

func TestLoadDescriptors_BadType(t *testing.T) {
	dir := writeDescriptors(t, map[string]string{
		"targets.cue": "package targets\n\n" + `target: Weird: {type: "benchmark"}`,
	})

	_, errs := LoadDescriptors(dir, LoadModeFailFast)
	le := firstLoadError(t, errs)
	assert.Equal(t, ErrCodeSchemaFailed, le.Code)
	// The schema violation carries the position CUE recorded.
	assert.True(t, le.Pos.IsValid())
}

func TestLoadDescriptors_TestWithoutCommand(t *testing.T) {
	dir := writeDescriptors(t, map[string]string{
		"targets.cue": "package targets\n\n" + `target: Cmdless: {type: "test", suite: "main"}`,
	})

	_, errs := LoadDescriptors(dir, LoadModeFailFast)
	le := firstLoadError(t, errs)
	assert.Equal(t, ErrCodeBadTarget, le.Code)
	assert.True(t, le.Pos.IsValid())
}

func TestLoadDescriptors_FailFastStopsAtFirst(t *testing.T) {
	dir := writeDescriptors(t, map[string]string{
		"targets.cue": "package targets\n\n" +
			`target: AaaTests: {type: "test", suite: "main"}` + "\n" +
			`target: BbbTests: {type: "test", command: "./BbbTests"}` + "\n",
	})

	_, errs := LoadDescriptors(dir, LoadModeFailFast)
	require.Len(t, errs, 1)
}

func TestLoadDescriptors_CollectAll(t *testing.T) {
	dir := writeDescriptors(t, map[string]string{
		"targets.cue": "package targets\n\n" +
			`target: AaaTests: {type: "test", suite: "main"}` + "\n" +
			`target: BbbTests: {type: "test", command: "./BbbTests"}` + "\n" +
			`target: OkTests: {type: "test", suite: "main", command: "./OkTests"}` + "\n",
	})

	// Both malformed targets are reported and the well-formed one still
	// loads.
	descriptors, errs := LoadDescriptors(dir, LoadModeCollectAll)
	require.Len(t, errs, 2)
	for _, err := range errs {
		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, ErrCodeBadTarget, le.Code)
	}
	require.Len(t, descriptors, 1)
	assert.Equal(t, "OkTests", descriptors[0].Name)
}

func TestLoadDescriptors_EmptyDir(t *testing.T) {
	_, errs := LoadDescriptors(t.TempDir(), LoadModeCollectAll)
	le := firstLoadError(t, errs)
	assert.Equal(t, ErrCodeNoFiles, le.Code)
}

func TestLoadDescriptors_MissingDir(t *testing.T) {
	_, errs := LoadDescriptors(filepath.Join(t.TempDir(), "absent"), LoadModeFailFast)
	le := firstLoadError(t, errs)
	assert.Equal(t, ErrCodeNotFound, le.Code)
}

func TestSplitDescriptors(t *testing.T) {
	tests, production := SplitDescriptors([]target.Descriptor{
		{Name: "A", Type: target.TypeTest},
		{Name: "B", Type: target.TypeProduction},
		{Name: "C", Type: target.TypeTest},
	})
	assert.Len(t, tests, 2)
	assert.Len(t, production, 1)
}
