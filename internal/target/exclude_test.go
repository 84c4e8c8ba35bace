package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExcludeList_FullyExcluded(t *testing.T) {
	list, err := NewTestList(testDescriptors("alpha", "bravo", "charlie"))
	require.NoError(t, err)

	excl := NewExcludeList(list, []ExcludedTarget{
		{Name: "alpha"},                               // whole target
		{Name: "bravo", Tests: []string{"Flaky.One"}}, // sub-test filter only
		{Name: "ghost"},                               // not in the universe
	})

	assert.True(t, excl.IsTestTargetFullyExcluded(list.Get("alpha")))
	assert.False(t, excl.IsTestTargetFullyExcluded(list.Get("bravo")))
	assert.False(t, excl.IsTestTargetFullyExcluded(list.Get("charlie")))
	assert.Equal(t, []string{"Flaky.One"}, excl.ExcludedTests(list.Get("bravo")))
}

func TestExcludeList_Partition(t *testing.T) {
	list, err := NewTestList(testDescriptors("alpha", "bravo", "charlie"))
	require.NoError(t, err)

	excl := NewExcludeList(list, []ExcludedTarget{{Name: "bravo"}})

	included, excluded := excl.Partition(list.Targets())
	assert.Equal(t, []string{"alpha", "charlie"}, Names(included))
	assert.Equal(t, []string{"bravo"}, Names(excluded))
}

func TestExcludeList_Empty(t *testing.T) {
	list, err := NewTestList(testDescriptors("alpha"))
	require.NoError(t, err)

	excl := NewExcludeList(list, nil)
	included, excluded := excl.Partition(list.Targets())
	assert.Len(t, included, 1)
	assert.Empty(t, excluded)
}
