package coverage

import "sort"

// SourceCoveringTests pairs a repo-relative source path with the names
// of the test targets covering it.
type SourceCoveringTests struct {
	Path        string
	TestTargets []string
}

// SourceCoveringTestsList is the deterministic serializable view of a
// coverage index: entries sorted ascending by path, per-entry test
// names sorted ascending, no duplicate paths or names.
type SourceCoveringTestsList struct {
	entries []SourceCoveringTests
}

// NewSourceCoveringTestsList consolidates raw entries into canonical
// form. Duplicate paths are merged; duplicate test names dropped;
// entries with no test targets dropped.
func NewSourceCoveringTestsList(raw []SourceCoveringTests) SourceCoveringTestsList {
	merged := make(map[string]map[string]struct{}, len(raw))
	for _, e := range raw {
		if len(e.TestTargets) == 0 {
			continue
		}
		tests, ok := merged[e.Path]
		if !ok {
			tests = make(map[string]struct{})
			merged[e.Path] = tests
		}
		for _, t := range e.TestTargets {
			tests[t] = struct{}{}
		}
	}

	entries := make([]SourceCoveringTests, 0, len(merged))
	for path, tests := range merged {
		entries = append(entries, SourceCoveringTests{Path: path, TestTargets: sortedKeys(tests)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return SourceCoveringTestsList{entries: entries}
}

// Entries returns the canonical entries.
func (l SourceCoveringTestsList) Entries() []SourceCoveringTests { return l.entries }

// NumSources returns the number of covered sources in the list.
func (l SourceCoveringTestsList) NumSources() int { return len(l.entries) }

// TestTargetNames returns every distinct test target name appearing in
// the list, in ascending order.
func (l SourceCoveringTestsList) TestTargetNames() []string {
	set := make(map[string]struct{})
	for _, e := range l.entries {
		for _, t := range e.TestTargets {
			set[t] = struct{}{}
		}
	}
	return sortedKeys(set)
}
