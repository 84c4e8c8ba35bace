package dependency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-ci/kestrel/internal/changelist"
	"github.com/kestrel-ci/kestrel/internal/coverage"
	"github.com/kestrel-ci/kestrel/internal/policy"
	"github.com/kestrel-ci/kestrel/internal/target"
)

// newTestMap builds a map over a three-test universe:
//
//	CoreTests  covers src/core/alloc.cpp (also owned by libcore)
//	NetTests   covers src/net/socket.cpp
//	UITests    has no coverage (drafted candidate)
//
// src/core/free.cpp is owned by libcore but uncovered, and
// src/gone.cpp is covered but owned by nothing (orphan material).
func newTestMap(t *testing.T) *Map {
	t.Helper()

	tests, err := target.NewTestList([]target.Descriptor{
		{Name: "CoreTests", Type: target.TypeTest, Suite: "main", Command: "./CoreTests", Sources: []string{"tests/core_tests.cpp"}},
		{Name: "NetTests", Type: target.TypeTest, Suite: "main", Command: "./NetTests", Sources: []string{"tests/net_tests.cpp"}},
		{Name: "UITests", Type: target.TypeTest, Suite: "main", Command: "./UITests", Sources: []string{"tests/ui_tests.cpp"}},
	})
	require.NoError(t, err)

	production, err := target.NewProductionList([]target.Descriptor{
		{Name: "libcore", Type: target.TypeProduction, Sources: []string{"src/core/alloc.cpp", "src/core/free.cpp"}},
		{Name: "libnet", Type: target.TypeProduction, Sources: []string{"src/net/socket.cpp"}},
	})
	require.NoError(t, err)

	m := NewMap(tests, production)
	require.NoError(t, m.ReplaceSourceCoverage(coverage.NewSourceCoveringTestsList([]coverage.SourceCoveringTests{
		{Path: "src/core/alloc.cpp", TestTargets: []string{"CoreTests"}},
		{Path: "src/net/socket.cpp", TestTargets: []string{"NetTests"}},
		{Path: "src/gone.cpp", TestTargets: []string{"CoreTests"}},
	})))
	return m
}

func TestApplyAndResolve_Classification(t *testing.T) {
	m := newTestMap(t)

	got, err := m.ApplyAndResolve(changelist.ChangeList{
		Created: []string{"src/brand_new.cpp"},
		Updated: []string{"src/core/alloc.cpp", "src/core/free.cpp", "src/unknown.cpp"},
	}, policy.IntegrityFailureAbort)
	require.NoError(t, err)

	require.Len(t, got.CoveredSources, 1)
	assert.Equal(t, "src/core/alloc.cpp", got.CoveredSources[0].Path)
	assert.Equal(t, []string{"CoreTests"}, got.CoveredSources[0].CoveringTests)
	assert.Equal(t, []string{"src/core/free.cpp"}, got.UncoveredSources)
	assert.Equal(t, []string{"src/brand_new.cpp", "src/unknown.cpp"}, got.NewSources)
	assert.Empty(t, got.OrphanedDeletions)
}

func TestApplyAndResolve_CreatedButKnown(t *testing.T) {
	m := newTestMap(t)

	// A stale change list can report a graph-known source as created;
	// it resolves as an update.
	got, err := m.ApplyAndResolve(changelist.ChangeList{
		Created: []string{"src/core/alloc.cpp"},
	}, policy.IntegrityFailureAbort)
	require.NoError(t, err)

	require.Len(t, got.CoveredSources, 1)
	assert.Equal(t, "src/core/alloc.cpp", got.CoveredSources[0].Path)
	assert.Empty(t, got.NewSources)
}

func TestApplyAndResolve_DeletedStillOwned(t *testing.T) {
	m := newTestMap(t)

	// The build graph still references the source: its covering tests
	// must run against the deletion.
	got, err := m.ApplyAndResolve(changelist.ChangeList{
		Deleted: []string{"src/net/socket.cpp"},
	}, policy.IntegrityFailureAbort)
	require.NoError(t, err)

	require.Len(t, got.CoveredSources, 1)
	assert.Equal(t, []string{"NetTests"}, got.CoveredSources[0].CoveringTests)
	assert.Empty(t, got.OrphanedDeletions)
}

func TestApplyAndResolve_OrphanedDeletion_Abort(t *testing.T) {
	m := newTestMap(t)

	_, err := m.ApplyAndResolve(changelist.ChangeList{
		Deleted: []string{"src/gone.cpp"},
	}, policy.IntegrityFailureAbort)
	require.Error(t, err)
	assert.True(t, IsOrphanedSource(err))
}

func TestApplyAndResolve_OrphanedDeletion_Continue(t *testing.T) {
	m := newTestMap(t)

	got, err := m.ApplyAndResolve(changelist.ChangeList{
		Deleted: []string{"src/gone.cpp", "src/never_covered.cpp"},
	}, policy.IntegrityFailureContinue)
	require.NoError(t, err)

	require.Len(t, got.OrphanedDeletions, 1)
	assert.Equal(t, "src/gone.cpp", got.OrphanedDeletions[0].Path)
	assert.Equal(t, []string{"CoreTests"}, got.OrphanedDeletions[0].CoveringTests)
}

func TestReplaceSourceCoverage_UnknownTarget(t *testing.T) {
	m := newTestMap(t)

	err := m.ReplaceSourceCoverage(coverage.NewSourceCoveringTestsList([]coverage.SourceCoveringTests{
		{Path: "src/a.cpp", TestTargets: []string{"GhostTests"}},
	}))
	require.Error(t, err)

	var de *Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ErrCodeUnknownTestTarget, de.Code)

	// The failed replace must leave the previous index intact.
	assert.Equal(t, 3, m.NumCoveredSources())
}

func TestNotCoveringTests(t *testing.T) {
	m := newTestMap(t)

	drafted := m.NotCoveringTests()
	assert.Equal(t, []string{"UITests"}, target.Names(drafted))
}

func TestRemoveTestFromSourceCoverage(t *testing.T) {
	m := newTestMap(t)

	m.RemoveTestFromSourceCoverage(m.TestTargets().Get("CoreTests"))

	// CoreTests covered two sources; both lose their entries and
	// CoreTests joins the drafted set.
	assert.Equal(t, 1, m.NumCoveredSources())
	assert.Equal(t, []string{"CoreTests", "UITests"}, target.Names(m.NotCoveringTests()))
}

func TestClearAllAndExport(t *testing.T) {
	m := newTestMap(t)

	exported := m.ExportSourceCoverage()
	assert.Equal(t, 3, exported.NumSources())

	m.ClearAll()
	assert.Equal(t, 0, m.NumCoveredSources())
	assert.Equal(t, 0, m.ExportSourceCoverage().NumSources())
	assert.Len(t, m.NotCoveringTests(), 3)
}
