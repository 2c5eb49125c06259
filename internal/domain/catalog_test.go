package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embedding(dim int) []float32 {
	return make([]float32, dim)
}

func TestNewCatalog_SkipsMalformedEmbeddings(t *testing.T) {
	entries := []CatalogEntry{
		{PersonID: "emp-001", Embeddings: [][]float32{embedding(EmbeddingDim)}},
		{PersonID: "emp-002", Embeddings: [][]float32{embedding(64)}},
		{PersonID: "emp-003", Embeddings: [][]float32{embedding(64), embedding(EmbeddingDim)}},
	}

	cat := NewCatalog(entries, 1)

	require.Equal(t, 2, cat.Size())
	assert.Equal(t, "emp-001", cat.Entries()[0].PersonID)
	assert.Equal(t, "emp-003", cat.Entries()[1].PersonID)
	assert.Len(t, cat.Entries()[1].Embeddings, 1)
}

func TestNewCatalog_PreservesInsertionOrder(t *testing.T) {
	entries := []CatalogEntry{
		{PersonID: "c", Embeddings: [][]float32{embedding(EmbeddingDim)}},
		{PersonID: "a", Embeddings: [][]float32{embedding(EmbeddingDim)}},
		{PersonID: "b", Embeddings: [][]float32{embedding(EmbeddingDim)}},
	}

	cat := NewCatalog(entries, 7)

	got := make([]string, 0, cat.Size())
	for _, e := range cat.Entries() {
		got = append(got, e.PersonID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, got)
	assert.Equal(t, int64(7), cat.Version())
}

func TestCatalog_NilSafe(t *testing.T) {
	var cat *Catalog
	assert.Equal(t, 0, cat.Size())
	assert.Nil(t, cat.Entries())
	assert.Equal(t, int64(0), cat.Version())
}

func TestEventRef_Admits(t *testing.T) {
	open := EventRef{Name: "all hands"}
	assert.True(t, open.Admits("emp-001"))

	closed := EventRef{Name: "training", Participants: []string{"emp-001", "emp-002"}}
	assert.True(t, closed.Admits("emp-002"))
	assert.False(t, closed.Admits("emp-999"))
}
