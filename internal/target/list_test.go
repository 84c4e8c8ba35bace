package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDescriptors(names ...string) []Descriptor {
	ds := make([]Descriptor, 0, len(names))
	for _, n := range names {
		ds = append(ds, Descriptor{Name: n, Type: TypeTest, Suite: "main", Command: "./" + n})
	}
	return ds
}

func TestNewTestList_SortsByName(t *testing.T) {
	list, err := NewTestList(testDescriptors("charlie", "alpha", "bravo"))
	require.NoError(t, err)

	got := Names(list.Targets())
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, got)
	assert.Equal(t, 3, list.Len())
}

func TestNewTestList_Empty(t *testing.T) {
	_, err := NewTestList(nil)
	require.Error(t, err)

	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ErrCodeEmptyList, te.Code)
}

func TestNewTestList_DuplicateNames(t *testing.T) {
	_, err := NewTestList(testDescriptors("alpha", "bravo", "alpha"))
	require.Error(t, err)

	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ErrCodeDuplicateName, te.Code)
	assert.Equal(t, "alpha", te.Target)
}

func TestNewTestList_EmptyName(t *testing.T) {
	_, err := NewTestList([]Descriptor{{Name: "", Type: TypeTest}})
	require.Error(t, err)

	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ErrCodeMalformed, te.Code)
}

func TestNewTestList_RejectsProductionDescriptor(t *testing.T) {
	_, err := NewTestList([]Descriptor{{Name: "lib", Type: TypeProduction}})
	require.Error(t, err)

	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ErrCodeMalformed, te.Code)
}

func TestList_Get(t *testing.T) {
	list, err := NewTestList(testDescriptors("alpha", "bravo", "charlie"))
	require.NoError(t, err)

	got := list.Get("bravo")
	require.NotNil(t, got)
	assert.Equal(t, "bravo", got.Name())
}

func TestList_Get_MissReturnsNil(t *testing.T) {
	list, err := NewTestList(testDescriptors("alpha", "charlie"))
	require.NoError(t, err)

	// "bravo" sorts between the two entries; a miss must not return the
	// lower-bound neighbour.
	assert.Nil(t, list.Get("bravo"))
	assert.Nil(t, list.Get(""))
	assert.Nil(t, list.Get("zulu"))
}

func TestList_GetOrError(t *testing.T) {
	list, err := NewTestList(testDescriptors("alpha"))
	require.NoError(t, err)

	_, err = list.GetOrError("missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	got, err := list.GetOrError("alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Name())
}

func TestList_Has(t *testing.T) {
	list, err := NewTestList(testDescriptors("alpha", "bravo"))
	require.NoError(t, err)

	assert.True(t, list.Has("alpha"))
	assert.False(t, list.Has("delta"))
}

func TestNewProductionList(t *testing.T) {
	list, err := NewProductionList([]Descriptor{
		{Name: "libcore", Type: TypeProduction, Sources: []string{"src/core.cpp"}},
		{Name: "libnet", Type: TypeProduction, Sources: []string{"src/net.cpp"}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, list.Len())

	got := list.Get("libcore")
	require.NotNil(t, got)
	assert.Equal(t, []string{"src/core.cpp"}, got.Sources())
}
