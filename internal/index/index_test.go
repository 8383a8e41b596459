package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tonic/internal/domain"
)

func node(path string, dir bool, size int64) domain.StorageNode {
	return domain.StorageNode{
		ID:           domain.NodeID(path),
		Path:         path,
		Name:         domain.DisplayName(path),
		IsDirectory:  dir,
		LogicalBytes: size,
	}
}

func seeded() *Index {
	index := New()
	index.UpsertBatch([]domain.StorageNode{
		node("/root/a", false, 100),
		node("/root/b/c", false, 200),
		node("/root/b/d", false, 300),
		node("/root/b", true, 500),
		node("/root", true, 600),
	})
	return index
}

func paths(nodes []domain.StorageNode) []string {
	result := make([]string, 0, len(nodes))
	for _, node := range nodes {
		result = append(result, node.Path)
	}
	return result
}

func collect(index *Index, prefix string) []string {
	var result []string
	for node := range index.Query(prefix) {
		result = append(result, node.Path)
	}
	return result
}

func TestUpsertReplacesAndChildren(t *testing.T) {
	index := seeded()
	index.Upsert(node("/root/b/c", false, 250))

	got, ok := index.Get("/root/b/c")
	require.True(t, ok)
	assert.Equal(t, int64(250), got.LogicalBytes)
	assert.Equal(t, 5, index.Len())

	parent, _ := index.Get("/root/b")
	assert.Equal(t, int64(500), parent.LogicalBytes, "upsert must not touch ancestors")

	assert.Equal(t, []string{"/root/a", "/root/b"}, paths(index.Children("/root")))
	assert.Equal(t, []string{"/root/b/c", "/root/b/d"}, paths(index.Children("/root/b/")))
	assert.Empty(t, index.Children("/root/a"))
}

func TestUpsertDerivesMissingID(t *testing.T) {
	index := New()
	index.Upsert(domain.StorageNode{Path: "/x"})
	got, ok := index.Get("/x")
	require.True(t, ok)
	assert.Equal(t, domain.NodeID("/x"), got.ID)
}

func TestQueryIsDeterministicAndRestartable(t *testing.T) {
	index := seeded()
	want := []string{"/root", "/root/a", "/root/b", "/root/b/c", "/root/b/d"}

	assert.Equal(t, want, collect(index, "/root"))
	assert.Equal(t, want, collect(index, "/root"))
	assert.Equal(t, want, collect(index, ""))
	assert.Equal(t, []string{"/root/b", "/root/b/c", "/root/b/d"}, collect(index, "/root/b"))
	assert.Empty(t, collect(index, "/elsewhere"))
}

func TestQueryStopsEarly(t *testing.T) {
	index := seeded()
	count := 0
	for range index.Query("/root") {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestQuerySnapshotToleratesMutation(t *testing.T) {
	index := seeded()
	var seen []string
	for node := range index.Query("/root") {
		seen = append(seen, node.Path)
		index.Remove("/root/b")
	}
	assert.Len(t, seen, 5)
	assert.Equal(t, 2, index.Len())
}

func TestRemoveEvictsSubtree(t *testing.T) {
	index := seeded()
	before := index.Generation()

	removed := index.Remove("/root/b")
	assert.Equal(t, 3, removed)
	assert.Equal(t, 2, index.Len())
	assert.Equal(t, []string{"/root/a"}, paths(index.Children("/root")))
	_, ok := index.Get("/root/b/d")
	assert.False(t, ok)
	assert.Greater(t, index.Generation(), before)

	assert.Zero(t, index.Remove("/root/missing"))
}

func TestReset(t *testing.T) {
	index := seeded()
	index.Reset()
	assert.Zero(t, index.Len())
	assert.Empty(t, collect(index, ""))
}
