package walk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b", "c.txt"), []byte("c"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "z.txt"), []byte("z"), 0o644))
	return root
}

func drain(t *testing.T, it *Iterator) []Entry {
	t.Helper()
	var out []Entry
	for {
		e, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		out = append(out, e)
	}
	return out
}

func TestIteratorPreOrderSortedTraversal(t *testing.T) {
	root := buildTree(t)
	it := NewIterator(root, false)
	entries := drain(t, it)

	require.Len(t, entries, 5)
	assert.Equal(t, root, entries[0].Path)
	assert.True(t, entries[0].IsDir)
	assert.Equal(t, filepath.Join(root, "a.txt"), entries[1].Path)
	assert.Equal(t, filepath.Join(root, "b"), entries[2].Path)
	assert.True(t, entries[2].IsDir)
	assert.Equal(t, filepath.Join(root, "b", "c.txt"), entries[3].Path)
	assert.Equal(t, filepath.Join(root, "z.txt"), entries[4].Path)
}

func TestIteratorDeterministicAcrossInstances(t *testing.T) {
	root := buildTree(t)
	a := drain(t, NewIterator(root, false))
	b := drain(t, NewIterator(root, false))
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Path, b[i].Path)
	}
}

func TestIteratorSingleFileRoot(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "only.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	it := NewIterator(file, false)
	entries := drain(t, it)
	require.Len(t, entries, 1)
	assert.Equal(t, file, entries[0].Path)
	assert.False(t, entries[0].IsDir)
}

func TestIteratorResumableAcrossCalls(t *testing.T) {
	root := buildTree(t)
	it := NewIterator(root, false)

	var collected []Entry
	for i := 0; i < 5; i++ {
		e, ok, err := it.Next()
		require.NoError(t, err)
		require.True(t, ok)
		collected = append(collected, e)
	}
	_, ok, err := it.Next()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, collected, 5)
}
