// Package target models the build-target universe the runtime selects
// tests from: production targets, test targets, sorted target lists and
// per-suite exclusion lists.
package target

// Type discriminates the two kinds of build target.
type Type string

const (
	// TypeProduction is a non-test build artifact linked into or consumed
	// by test targets.
	TypeProduction Type = "production"

	// TypeTest is a build artifact that, when executed, runs a group of
	// tests.
	TypeTest Type = "test"
)

// Descriptor is the raw form of a build target as produced by the
// descriptor loader. Descriptors are validated and frozen into Target
// values by NewTestList / NewProductionList.
type Descriptor struct {
	Name    string
	Type    Type
	Suite   string   // test targets only
	Command string   // test targets only: the launch command line
	Sources []string // repo-relative source files attributed to this target
}

// Target is the read-only surface shared by both target kinds.
type Target interface {
	Name() string
	Sources() []string
}

// ProductionTarget is a non-test build target.
type ProductionTarget struct {
	name    string
	sources []string
}

// Name returns the unique target name.
func (t *ProductionTarget) Name() string { return t.name }

// Sources returns the source files attributed to this target.
func (t *ProductionTarget) Sources() []string { return t.sources }

// TestTarget is a runnable test build target.
type TestTarget struct {
	name    string
	suite   string
	command string
	sources []string
}

// Name returns the unique target name.
func (t *TestTarget) Name() string { return t.name }

// Suite returns the suite this test target belongs to.
func (t *TestTarget) Suite() string { return t.suite }

// Command returns the command line used to launch this test target.
func (t *TestTarget) Command() string { return t.command }

// Sources returns the source files attributed to this target.
func (t *TestTarget) Sources() []string { return t.sources }

func newProductionTarget(d Descriptor) ProductionTarget {
	return ProductionTarget{name: d.Name, sources: d.Sources}
}

func newTestTarget(d Descriptor) TestTarget {
	return TestTarget{name: d.Name, suite: d.Suite, command: d.Command, sources: d.Sources}
}

// Names extracts the names of the given targets, preserving order.
func Names[T Target](targets []T) []string {
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.Name()
	}
	return names
}
