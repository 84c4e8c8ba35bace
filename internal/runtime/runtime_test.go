package runtime

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-ci/kestrel/internal/coverage"
	"github.com/kestrel-ci/kestrel/internal/policy"
	"github.com/kestrel-ci/kestrel/internal/target"
)

// testConfig builds a three-test universe (AlphaTests, BravoTests,
// CharlieTests) over one production target, with the data file in a
// temp workspace.
func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		RepoRoot:            "/repo",
		WorkspaceActiveRoot: t.TempDir(),
		DataFileName:        "coverage.json",
		Suite:               "main",
		TestDescriptors: []target.Descriptor{
			{Name: "AlphaTests", Type: target.TypeTest, Suite: "main", Command: "./AlphaTests", Sources: []string{"tests/alpha.cpp"}},
			{Name: "BravoTests", Type: target.TypeTest, Suite: "main", Command: "./BravoTests", Sources: []string{"tests/bravo.cpp"}},
			{Name: "CharlieTests", Type: target.TypeTest, Suite: "main", Command: "./CharlieTests", Sources: []string{"tests/charlie.cpp"}},
		},
		ProductionDescriptors: []target.Descriptor{
			{Name: "libcore", Type: target.TypeProduction, Sources: []string{"src/core.cpp", "src/other.cpp"}},
		},
		Policies:       policy.Default(),
		MaxConcurrency: 4,
	}
}

func seedDataFile(t *testing.T, cfg Config, entries []coverage.SourceCoveringTests) {
	t.Helper()
	path := filepath.Join(cfg.WorkspaceActiveRoot, cfg.Suite, cfg.DataFileName)
	require.NoError(t, coverage.WriteFile(path, coverage.NewSourceCoveringTestsList(entries)))
}

func writeRawFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func TestNew_NoDataFile(t *testing.T) {
	r, err := New(testConfig(t), newFakeEngine())
	require.NoError(t, err)
	assert.False(t, r.HasImpactAnalysisData())
}

func TestNew_LoadsExistingData(t *testing.T) {
	cfg := testConfig(t)
	seedDataFile(t, cfg, []coverage.SourceCoveringTests{
		{Path: "src/core.cpp", TestTargets: []string{"AlphaTests"}},
	})

	r, err := New(cfg, newFakeEngine())
	require.NoError(t, err)
	assert.True(t, r.HasImpactAnalysisData())
}

func TestNew_EmptyDataFileIsNoData(t *testing.T) {
	cfg := testConfig(t)
	seedDataFile(t, cfg, nil)

	r, err := New(cfg, newFakeEngine())
	require.NoError(t, err)
	assert.False(t, r.HasImpactAnalysisData())
}

func TestNew_PreviousDataFileFallback(t *testing.T) {
	cfg := testConfig(t)
	previous := filepath.Join(t.TempDir(), "previous.json")
	require.NoError(t, coverage.WriteFile(previous, coverage.NewSourceCoveringTestsList([]coverage.SourceCoveringTests{
		{Path: "src/core.cpp", TestTargets: []string{"BravoTests"}},
	})))
	cfg.PreviousDataFile = previous

	r, err := New(cfg, newFakeEngine())
	require.NoError(t, err)
	assert.True(t, r.HasImpactAnalysisData())
}

func TestNew_InconsistentData(t *testing.T) {
	cfg := testConfig(t)
	seedDataFile(t, cfg, []coverage.SourceCoveringTests{
		{Path: "src/core.cpp", TestTargets: []string{"GhostTests"}},
	})

	// Abort policy fails construction.
	cfg.Policies.IntegrityFailure = policy.IntegrityFailureAbort
	_, err := New(cfg, newFakeEngine())
	require.Error(t, err)
	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeDataLoad, re.Code)

	// Continue policy starts empty.
	cfg.Policies.IntegrityFailure = policy.IntegrityFailureContinue
	r, err := New(cfg, newFakeEngine())
	require.NoError(t, err)
	assert.False(t, r.HasImpactAnalysisData())
}

func TestNew_MalformedDataFile(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(cfg.WorkspaceActiveRoot, cfg.Suite, cfg.DataFileName)
	require.NoError(t, writeRawFile(path, "not json at all{"))

	cfg.Policies.IntegrityFailure = policy.IntegrityFailureAbort
	_, err := New(cfg, newFakeEngine())
	assert.Error(t, err)

	cfg.Policies.IntegrityFailure = policy.IntegrityFailureContinue
	r, err := New(cfg, newFakeEngine())
	require.NoError(t, err)
	assert.False(t, r.HasImpactAnalysisData())
}

func TestNew_EmptyUniverse(t *testing.T) {
	cfg := testConfig(t)
	cfg.TestDescriptors = nil

	_, err := New(cfg, newFakeEngine())
	require.Error(t, err)
	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeConstruction, re.Code)
}

func TestNew_SuiteFilter(t *testing.T) {
	cfg := testConfig(t)
	cfg.TestDescriptors = append(cfg.TestDescriptors,
		target.Descriptor{Name: "NightlyTests", Type: target.TypeTest, Suite: "periodic", Command: "./NightlyTests"})

	r, err := New(cfg, newFakeEngine())
	require.NoError(t, err)
	assert.False(t, r.TestTargets().Has("NightlyTests"))
	assert.Equal(t, 3, r.TestTargets().Len())
}

func TestNew_InvalidPolicies(t *testing.T) {
	cfg := testConfig(t)
	cfg.Policies.TestFailure = "retry"

	_, err := New(cfg, newFakeEngine())
	assert.Error(t, err)
}

func TestNew_NilEngine(t *testing.T) {
	_, err := New(testConfig(t), nil)
	assert.Error(t, err)
}

func TestNew_ExplicitDataFileOverride(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataFile = filepath.Join(t.TempDir(), "custom.json")

	r, err := New(cfg, newFakeEngine())
	require.NoError(t, err)
	assert.Equal(t, cfg.DataFile, r.DataFile())
}
