package coverage

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleList() SourceCoveringTestsList {
	return NewSourceCoveringTestsList([]SourceCoveringTests{
		{Path: "src/net/socket.cpp", TestTargets: []string{"NetTests", "CoreTests"}},
		{Path: "src/core/alloc.cpp", TestTargets: []string{"CoreTests"}},
	})
}

func TestSerialize_Golden(t *testing.T) {
	data, err := Serialize(sampleList())
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "source_covering_tests", data)
}

func TestSerialize_Deterministic(t *testing.T) {
	// Two lists built from the same pairs in different input order must
	// serialize to identical bytes.
	a, err := Serialize(NewSourceCoveringTestsList([]SourceCoveringTests{
		{Path: "src/b.cpp", TestTargets: []string{"TestB", "TestA"}},
		{Path: "src/a.cpp", TestTargets: []string{"TestA"}},
	}))
	require.NoError(t, err)

	b, err := Serialize(NewSourceCoveringTestsList([]SourceCoveringTests{
		{Path: "src/a.cpp", TestTargets: []string{"TestA"}},
		{Path: "src/b.cpp", TestTargets: []string{"TestA"}},
		{Path: "src/b.cpp", TestTargets: []string{"TestB"}},
	}))
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestSerialize_RoundTrip(t *testing.T) {
	list := sampleList()

	data, err := Serialize(list)
	require.NoError(t, err)

	got, err := Deserialize(data)
	require.NoError(t, err)
	assert.Equal(t, list.Entries(), got.Entries())
}

func TestDeserialize_Empty(t *testing.T) {
	got, err := Deserialize(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, got.NumSources())

	got, err = Deserialize([]byte("  \n"))
	require.NoError(t, err)
	assert.Equal(t, 0, got.NumSources())
}

func TestDeserialize_Malformed(t *testing.T) {
	_, err := Deserialize([]byte(`{"sources":`))
	assert.Error(t, err)

	_, err = Deserialize([]byte(`{"sauces":[]}`))
	assert.Error(t, err, "unknown fields must be rejected")

	_, err = Deserialize([]byte(`{"sources":[{"path":"","test_targets":["T"]}]}`))
	assert.Error(t, err, "empty path must be rejected")
}

func TestSerialize_NoHTMLEscaping(t *testing.T) {
	data, err := Serialize(NewSourceCoveringTestsList([]SourceCoveringTests{
		{Path: "src/a<b>.cpp", TestTargets: []string{"T&T"}},
	}))
	require.NoError(t, err)
	assert.Contains(t, string(data), "a<b>.cpp")
	assert.Contains(t, string(data), "T&T")
}
