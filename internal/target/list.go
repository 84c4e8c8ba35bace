package target

import (
	"fmt"
	"sort"
)

// List is a unique set of targets held in ascending name order.
//
// The slice NEVER changes after construction: Targets and Get hand out
// pointers into it, which the dependency map, selector and runtime keep
// for the list's lifetime, so a stable backing slice is load-bearing,
// not cosmetic.
type List[T any] struct {
	targets []T
	name    func(*T) string
}

func newList[T any](descriptors []Descriptor, build func(Descriptor) T, name func(*T) string) (*List[T], error) {
	if len(descriptors) == 0 {
		return nil, &Error{Code: ErrCodeEmptyList, Message: "target list is empty"}
	}

	sorted := make([]Descriptor, len(descriptors))
	copy(sorted, descriptors)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for i, d := range sorted {
		if d.Name == "" {
			return nil, &Error{Code: ErrCodeMalformed, Message: "target name is empty"}
		}
		if i > 0 && sorted[i-1].Name == d.Name {
			return nil, &Error{
				Code:    ErrCodeDuplicateName,
				Message: "target list contains duplicate targets",
				Target:  d.Name,
			}
		}
	}

	targets := make([]T, 0, len(sorted))
	for _, d := range sorted {
		targets = append(targets, build(d))
	}
	return &List[T]{targets: targets, name: name}, nil
}

// NewTestList builds a test target list from descriptors. Descriptors
// must all be of test type; names must be unique and non-empty.
func NewTestList(descriptors []Descriptor) (*List[TestTarget], error) {
	for _, d := range descriptors {
		if d.Type != TypeTest {
			return nil, &Error{
				Code:    ErrCodeMalformed,
				Message: fmt.Sprintf("descriptor has type %q, want %q", d.Type, TypeTest),
				Target:  d.Name,
			}
		}
	}
	return newList(descriptors, newTestTarget, func(t *TestTarget) string { return t.name })
}

// NewProductionList builds a production target list from descriptors.
func NewProductionList(descriptors []Descriptor) (*List[ProductionTarget], error) {
	for _, d := range descriptors {
		if d.Type != TypeProduction {
			return nil, &Error{
				Code:    ErrCodeMalformed,
				Message: fmt.Sprintf("descriptor has type %q, want %q", d.Type, TypeProduction),
				Target:  d.Name,
			}
		}
	}
	return newList(descriptors, newProductionTarget, func(t *ProductionTarget) string { return t.name })
}

// Targets returns pointers to the targets in ascending name order. The
// pointees are owned by the list and stay valid for its lifetime.
func (l *List[T]) Targets() []*T {
	out := make([]*T, len(l.targets))
	for i := range l.targets {
		out[i] = &l.targets[i]
	}
	return out
}

// Len returns the number of targets in the list.
func (l *List[T]) Len() int { return len(l.targets) }

// Get returns the target with the given name, or nil when no target
// matches. A miss is nil, never the nearest neighbour.
func (l *List[T]) Get(name string) *T {
	i := sort.Search(len(l.targets), func(i int) bool {
		return l.name(&l.targets[i]) >= name
	})
	if i < len(l.targets) && l.name(&l.targets[i]) == name {
		return &l.targets[i]
	}
	return nil
}

// GetOrError returns the target with the given name, or a not-found
// Error when absent.
func (l *List[T]) GetOrError(name string) (*T, error) {
	if t := l.Get(name); t != nil {
		return t, nil
	}
	return nil, &Error{Code: ErrCodeNotFound, Message: "no such target", Target: name}
}

// Has reports whether a target with the given name is in the list.
func (l *List[T]) Has(name string) bool { return l.Get(name) != nil }
