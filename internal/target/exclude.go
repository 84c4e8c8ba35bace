package target

// ExcludedTarget names a test target excluded from execution. When
// Tests is empty the whole target is excluded; otherwise only the named
// sub-tests are filtered and the target itself still launches.
type ExcludedTarget struct {
	Name  string   `yaml:"name" json:"name"`
	Tests []string `yaml:"tests,omitempty" json:"tests,omitempty"`
}

// ExcludeList answers whether a test target is fully excluded from a
// sequence. A target is fully excluded when every sub-test inside it is
// filtered out, which with name-level exclusion data means an entry
// with no sub-test filter.
type ExcludeList struct {
	excluded map[string][]string
}

// NewExcludeList builds an exclude list from exclusion entries,
// ignoring entries that name no target in the given test list.
func NewExcludeList(tests *List[TestTarget], entries []ExcludedTarget) *ExcludeList {
	excluded := make(map[string][]string, len(entries))
	for _, e := range entries {
		if !tests.Has(e.Name) {
			continue
		}
		excluded[e.Name] = e.Tests
	}
	return &ExcludeList{excluded: excluded}
}

// IsTestTargetFullyExcluded reports whether every sub-test of the
// target is filtered out, meaning the target is never launched.
func (l *ExcludeList) IsTestTargetFullyExcluded(t *TestTarget) bool {
	tests, ok := l.excluded[t.Name()]
	return ok && len(tests) == 0
}

// ExcludedTests returns the sub-test filter for a target, if any.
func (l *ExcludeList) ExcludedTests(t *TestTarget) []string {
	return l.excluded[t.Name()]
}

// Partition splits targets into those not fully excluded (included)
// and those fully excluded, preserving the input order.
func (l *ExcludeList) Partition(targets []*TestTarget) (included, excluded []*TestTarget) {
	for _, t := range targets {
		if l.IsTestTargetFullyExcluded(t) {
			excluded = append(excluded, t)
		} else {
			included = append(included, t)
		}
	}
	return included, excluded
}
