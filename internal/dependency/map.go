// Package dependency owns the dynamic dependency map: the coverage
// index joined with the build graph view, change-list resolution, and
// the covering-test selector.
package dependency

import (
	"log/slog"

	"github.com/kestrel-ci/kestrel/internal/changelist"
	"github.com/kestrel-ci/kestrel/internal/coverage"
	"github.com/kestrel-ci/kestrel/internal/policy"
	"github.com/kestrel-ci/kestrel/internal/target"
)

// Map joins the build graph view (test and production target lists)
// with the coverage index and resolves change lists against both.
//
// Map holds non-owning views of the target lists; the runtime owns
// them for its lifetime. Map is not safe for concurrent use.
type Map struct {
	tests      *target.List[target.TestTarget]
	production *target.List[target.ProductionTarget]
	index      *coverage.Index

	// sourceOwners maps each source path to the names of the build
	// targets whose descriptors reference it.
	sourceOwners map[string][]string
}

// NewMap builds a dependency map over the given target lists with an
// empty coverage index. A nil production list means the build graph
// has no production targets.
func NewMap(tests *target.List[target.TestTarget], production *target.List[target.ProductionTarget]) *Map {
	owners := make(map[string][]string)
	for _, t := range tests.Targets() {
		for _, s := range t.Sources() {
			owners[s] = append(owners[s], t.Name())
		}
	}
	if production != nil {
		for _, t := range production.Targets() {
			for _, s := range t.Sources() {
				owners[s] = append(owners[s], t.Name())
			}
		}
	}
	return &Map{
		tests:        tests,
		production:   production,
		index:        coverage.NewIndex(),
		sourceOwners: owners,
	}
}

// TestTargets returns the test target list view.
func (m *Map) TestTargets() *target.List[target.TestTarget] { return m.tests }

// ProductionTargets returns the production target list view.
func (m *Map) ProductionTargets() *target.List[target.ProductionTarget] { return m.production }

// NumCoveredSources returns the number of sources with coverage.
func (m *Map) NumCoveredSources() int { return m.index.NumSources() }

// SourceDependency is a changed source with its covering test names.
type SourceDependency struct {
	Path          string
	CoveringTests []string
}

// OrphanedDeletion is a deleted source still covered by tests while no
// build target references it any longer.
type OrphanedDeletion struct {
	Path          string
	CoveringTests []string
}

// ChangeDependencyList classifies every path of a change list against
// the build graph and the coverage index.
type ChangeDependencyList struct {
	// CoveredSources are existing sources with coverage entries; their
	// covering tests are selection candidates.
	CoveredSources []SourceDependency

	// UncoveredSources are referenced by the build graph but have no
	// coverage entry.
	UncoveredSources []string

	// NewSources are unknown to the build graph.
	NewSources []string

	// OrphanedDeletions are the integrity anomalies tolerated under a
	// continue policy.
	OrphanedDeletions []OrphanedDeletion
}

// ApplyAndResolve classifies every path in the change list. An
// orphaned deletion is an integrity anomaly: under an abort policy it
// fails with a dependency Error, otherwise it is reported through the
// returned list and resolution continues.
func (m *Map) ApplyAndResolve(changes changelist.ChangeList, integrity policy.IntegrityFailure) (ChangeDependencyList, error) {
	var out ChangeDependencyList

	classifyExisting := func(path string) {
		if tests := m.index.CoveringTests(path); len(tests) > 0 {
			out.CoveredSources = append(out.CoveredSources, SourceDependency{Path: path, CoveringTests: tests})
			return
		}
		if len(m.sourceOwners[path]) > 0 {
			out.UncoveredSources = append(out.UncoveredSources, path)
			return
		}
		out.NewSources = append(out.NewSources, path)
	}

	for _, path := range changes.Created {
		if len(m.sourceOwners[path]) > 0 || m.index.IsCovered(path) {
			// A created source already known to the build graph is a stale
			// change list; resolve it as an update.
			slog.Warn("created source already known to build graph, treating as updated", "path", path)
			classifyExisting(path)
			continue
		}
		out.NewSources = append(out.NewSources, path)
	}

	for _, path := range changes.Updated {
		classifyExisting(path)
	}

	for _, path := range changes.Deleted {
		tests := m.index.CoveringTests(path)
		if len(tests) == 0 {
			continue
		}
		if len(m.sourceOwners[path]) > 0 {
			// The build graph still references the source, so the deletion
			// is visible to its covering tests; select them.
			out.CoveredSources = append(out.CoveredSources, SourceDependency{Path: path, CoveringTests: tests})
			continue
		}
		if integrity == policy.IntegrityFailureAbort {
			return ChangeDependencyList{}, &Error{
				Code:    ErrCodeOrphanedSource,
				Message: "deleted source still covered by tests but referenced by no build target",
				Path:    path,
			}
		}
		slog.Warn("deleted source still covered by tests but referenced by no build target",
			"path", path, "covering_tests", len(tests))
		out.OrphanedDeletions = append(out.OrphanedDeletions, OrphanedDeletion{Path: path, CoveringTests: tests})
	}

	return out, nil
}

// ReplaceSourceCoverage replaces the coverage of every source named
// in the list; sources the list does not name keep their entries.
// Loading into an empty index therefore adopts the list wholesale,
// while reconciliation after a partial instrumented run only touches
// the sources that run covered. Coverage naming a test target absent
// from the build graph is rejected with a dependency Error and the
// index is left untouched.
func (m *Map) ReplaceSourceCoverage(list coverage.SourceCoveringTestsList) error {
	for _, name := range list.TestTargetNames() {
		if !m.tests.Has(name) {
			return &Error{
				Code:    ErrCodeUnknownTestTarget,
				Message: "coverage data names a test target not in the build graph",
				Target:  name,
			}
		}
	}
	for _, entry := range list.Entries() {
		m.index.SetSourceCoverage(entry.Path, entry.TestTargets)
	}
	return nil
}

// NotCoveringTests returns every test target whose name appears in no
// coverage entry. These are the drafted candidates whose coverage
// footprint is unknown.
func (m *Map) NotCoveringTests() []*target.TestTarget {
	var out []*target.TestTarget
	for _, t := range m.tests.Targets() {
		if !m.index.CoversAnySource(t.Name()) {
			out = append(out, t)
		}
	}
	return out
}

// RemoveTestFromSourceCoverage erases the test target from every
// source's covering set.
func (m *Map) RemoveTestFromSourceCoverage(t *target.TestTarget) {
	m.index.RemoveTest(t.Name())
}

// AddTestCoverage records a (source, test target) coverage pair.
func (m *Map) AddTestCoverage(source string, t *target.TestTarget) {
	m.index.Add(source, t.Name())
}

// ClearAll empties the coverage index.
func (m *Map) ClearAll() {
	m.index.Clear()
}

// ExportSourceCoverage produces the deterministic serializable view of
// the coverage index.
func (m *Map) ExportSourceCoverage() coverage.SourceCoveringTestsList {
	return m.index.Export()
}
