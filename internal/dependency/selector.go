package dependency

import (
	"log/slog"
	"sort"

	"github.com/kestrel-ci/kestrel/internal/policy"
	"github.com/kestrel-ci/kestrel/internal/target"
)

// SelectorPrioritizer turns a resolved change dependency list into an
// ordered, duplicate-free list of test targets to run.
type SelectorPrioritizer struct {
	m *Map
}

// NewSelectorPrioritizer builds a selector over the dependency map.
func NewSelectorPrioritizer(m *Map) *SelectorPrioritizer {
	return &SelectorPrioritizer{m: m}
}

// SelectTestTargets selects every test target covering any covered
// source in the list, then orders the result under the prioritization
// policy. The policy may reorder but never adds or drops members.
// Uncovered and orphaned classifications contribute nothing here; they
// surface as drafted targets through Map.NotCoveringTests.
func (s *SelectorPrioritizer) SelectTestTargets(
	list ChangeDependencyList,
	prioritization policy.TestPrioritization,
) []*target.TestTarget {
	names := make(map[string]struct{})
	for _, dep := range list.CoveredSources {
		for _, name := range dep.CoveringTests {
			names[name] = struct{}{}
		}
	}

	selected := make([]*target.TestTarget, 0, len(names))
	for name := range names {
		t := s.m.TestTargets().Get(name)
		if t == nil {
			// Coverage referencing an unknown target is caught when the
			// index is replaced; a miss here means the universe mutated
			// underneath us.
			slog.Warn("selected test target not in build graph, skipping", "target", name)
			continue
		}
		selected = append(selected, t)
	}

	if prioritization == policy.TestPrioritizationDependencyLocality {
		// Locality ordering needs the dependency graph data the build
		// system does not emit yet; resolve it as stable name order.
		slog.Debug("dependency locality prioritization unavailable, using name order")
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].Name() < selected[j].Name() })

	return selected
}
