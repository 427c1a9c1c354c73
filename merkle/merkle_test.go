package merkle

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootHashIsDeterministic(t *testing.T) {
	t1 := New([]string{"a", "b", "c"})
	t2 := New([]string{"a", "b", "c"})
	require.Equal(t, t1.RootHash(), t2.RootHash())
	require.NotEmpty(t, t1.RootHash())
}

func TestRootHashChangesWithData(t *testing.T) {
	t1 := New([]string{"a", "b", "c"})
	t2 := New([]string{"a", "b", "d"})
	require.NotEqual(t, t1.RootHash(), t2.RootHash())
}

func TestOddLeafCountDuplicatesLast(t *testing.T) {
	odd := New([]string{"a", "b", "c"})
	even := New([]string{"a", "b", "c", "c"})
	require.Equal(t, odd.RootHash(), even.RootHash())
}

func TestEmptyInputHasNoRoot(t *testing.T) {
	tree := New(nil)
	require.Nil(t, tree.Root)
	require.Empty(t, tree.RootHash())
}

func TestJSONRoundTripPreservesStoredHashes(t *testing.T) {
	original := New([]string{"a", "b", "c"})

	encoded, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Tree
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	require.Equal(t, original.RootHash(), decoded.RootHash())
	require.Len(t, decoded.Leaves(), len(original.Leaves()))
}

func TestSingleLeafTree(t *testing.T) {
	tree := New([]string{"only"})
	require.NotEmpty(t, tree.RootHash())
	require.Len(t, tree.Leaves(), 1)
}
