// Package coverage holds the source-to-test coverage index and its
// deterministic on-disk representation.
package coverage

import "sort"

// Index is the bidirectional coverage map: source path to the set of
// test target names covering it, with the inverse map maintained
// consistently.
//
// Index is not safe for concurrent use. The runtime mutates it only
// from the orchestrating goroutine, between test runs.
type Index struct {
	sourceToTests map[string]map[string]struct{}
	testToSources map[string]map[string]struct{}
}

// NewIndex returns an empty coverage index.
func NewIndex() *Index {
	return &Index{
		sourceToTests: make(map[string]map[string]struct{}),
		testToSources: make(map[string]map[string]struct{}),
	}
}

// Add records that the given test target covers the given source.
func (x *Index) Add(source, testTarget string) {
	tests, ok := x.sourceToTests[source]
	if !ok {
		tests = make(map[string]struct{})
		x.sourceToTests[source] = tests
	}
	tests[testTarget] = struct{}{}

	sources, ok := x.testToSources[testTarget]
	if !ok {
		sources = make(map[string]struct{})
		x.testToSources[testTarget] = sources
	}
	sources[source] = struct{}{}
}

// RemoveTest erases the test target from every source's covering set.
// Sources whose set becomes empty are removed from the index.
func (x *Index) RemoveTest(testTarget string) {
	sources, ok := x.testToSources[testTarget]
	if !ok {
		return
	}
	for source := range sources {
		tests := x.sourceToTests[source]
		delete(tests, testTarget)
		if len(tests) == 0 {
			delete(x.sourceToTests, source)
		}
	}
	delete(x.testToSources, testTarget)
}

// Clear empties the index.
func (x *Index) Clear() {
	x.sourceToTests = make(map[string]map[string]struct{})
	x.testToSources = make(map[string]map[string]struct{})
}

// NumSources returns the number of sources with at least one covering
// test target.
func (x *Index) NumSources() int { return len(x.sourceToTests) }

// IsCovered reports whether the source has any covering test target.
func (x *Index) IsCovered(source string) bool {
	return len(x.sourceToTests[source]) > 0
}

// CoveringTests returns the names of the test targets covering the
// source, in ascending order. Returns nil for an uncovered source.
func (x *Index) CoveringTests(source string) []string {
	return sortedKeys(x.sourceToTests[source])
}

// CoversAnySource reports whether the test target appears in any
// source's covering set.
func (x *Index) CoversAnySource(testTarget string) bool {
	return len(x.testToSources[testTarget]) > 0
}

// CoveredSources returns the sources covered by the test target, in
// ascending order. Returns nil for a test target with no coverage.
func (x *Index) CoveredSources(testTarget string) []string {
	return sortedKeys(x.testToSources[testTarget])
}

// SetSourceCoverage makes the source's covering set exactly the given
// tests, dropping whatever covered it before. Sources not named are
// untouched.
func (x *Index) SetSourceCoverage(source string, tests []string) {
	for test := range x.sourceToTests[source] {
		sources := x.testToSources[test]
		delete(sources, source)
		if len(sources) == 0 {
			delete(x.testToSources, test)
		}
	}
	delete(x.sourceToTests, source)
	for _, test := range tests {
		x.Add(source, test)
	}
}

// Export produces the deterministic serializable view of the index:
// sources in ascending order, per-source test names in ascending order.
func (x *Index) Export() SourceCoveringTestsList {
	entries := make([]SourceCoveringTests, 0, len(x.sourceToTests))
	for source, tests := range x.sourceToTests {
		entries = append(entries, SourceCoveringTests{Path: source, TestTargets: sortedKeys(tests)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return SourceCoveringTestsList{entries: entries}
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
