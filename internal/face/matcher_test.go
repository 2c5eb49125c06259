package face

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
)

// vec builds a 128-dim embedding whose first component carries the value.
func vec(first float32) []float32 {
	v := make([]float32, domain.EmbeddingDim)
	v[0] = first
	return v
}

func testCatalog(t *testing.T, version int64, people map[string][]float32, order []string) *domain.Catalog {
	t.Helper()
	entries := make([]domain.CatalogEntry, 0, len(order))
	for _, id := range order {
		entries = append(entries, domain.CatalogEntry{
			PersonID:   id,
			Embeddings: [][]float32{people[id]},
		})
	}
	cat := domain.NewCatalog(entries, version)
	require.Equal(t, len(order), cat.Size())
	return cat
}

func TestLinearMatcher_ExactMatch(t *testing.T) {
	cat := testCatalog(t, 1, map[string][]float32{
		"emp-001": vec(0.1),
		"emp-002": vec(0.9),
	}, []string{"emp-001", "emp-002"})

	m := NewLinearMatcher(0.6)
	got, err := m.Match(vec(0.9), cat)
	require.NoError(t, err)

	assert.Equal(t, "emp-002", got.PersonID)
	assert.Equal(t, 0.0, got.Distance)
	assert.Equal(t, 1.0, got.Confidence)
}

func TestLinearMatcher_PicksMinimumDistance(t *testing.T) {
	cat := testCatalog(t, 1, map[string][]float32{
		"far":  vec(1.0),
		"near": vec(0.45),
	}, []string{"far", "near"})

	m := NewLinearMatcher(0.6)
	got, err := m.Match(vec(0.5), cat)
	require.NoError(t, err)
	assert.Equal(t, "near", got.PersonID)
	assert.InDelta(t, 0.05, got.Distance, 1e-6)
	assert.InDelta(t, 0.95, got.Confidence, 1e-6)
}

func TestLinearMatcher_BeyondTolerance(t *testing.T) {
	cat := testCatalog(t, 1, map[string][]float32{
		"emp-001": vec(0),
	}, []string{"emp-001"})

	m := NewLinearMatcher(0.6)
	_, err := m.Match(vec(2.0), cat)
	assert.ErrorIs(t, err, domain.ErrNoMatch)
}

func TestLinearMatcher_EmptyCatalog(t *testing.T) {
	m := NewLinearMatcher(0.6)
	_, err := m.Match(vec(0), domain.NewCatalog(nil, 0))
	assert.ErrorIs(t, err, domain.ErrNoMatch)
}

func TestLinearMatcher_TieBrokenByInsertionOrder(t *testing.T) {
	// Two identities equidistant from the probe: the one enrolled first
	// wins.
	cat := testCatalog(t, 1, map[string][]float32{
		"second": vec(0.4),
		"first":  vec(0.6),
	}, []string{"second", "first"})

	m := NewLinearMatcher(0.6)
	got, err := m.Match(vec(0.5), cat)
	require.NoError(t, err)
	assert.Equal(t, "second", got.PersonID)
}

func TestLinearMatcher_InvalidProbe(t *testing.T) {
	cat := testCatalog(t, 1, map[string][]float32{"emp-001": vec(0)}, []string{"emp-001"})
	m := NewLinearMatcher(0.6)
	_, err := m.Match([]float32{1, 2, 3}, cat)
	assert.ErrorIs(t, err, domain.ErrInvalidEmbedding)
}

func TestEuclideanDistance(t *testing.T) {
	assert.Equal(t, 0.0, EuclideanDistance(vec(0.5), vec(0.5)))
	assert.InDelta(t, 0.5, EuclideanDistance(vec(0.0), vec(0.5)), 1e-9)
	assert.True(t, EuclideanDistance(vec(0), []float32{1}) > 1e12)
	assert.True(t, EuclideanDistance(nil, nil) > 1e12)
}

func TestIndexedMatcher_AgreesWithLinear(t *testing.T) {
	people := map[string][]float32{
		"emp-001": vec(0.1),
		"emp-002": vec(0.35),
		"emp-003": vec(0.8),
	}
	order := []string{"emp-001", "emp-002", "emp-003"}
	cat := testCatalog(t, 3, people, order)

	linear := NewLinearMatcher(0.6)
	indexed := NewIndexedMatcher(0.6)

	for _, probe := range []float32{0.1, 0.3, 0.82} {
		want, err := linear.Match(vec(probe), cat)
		require.NoError(t, err)

		got, err := indexed.Match(vec(probe), cat)
		require.NoError(t, err)
		assert.Equal(t, want.PersonID, got.PersonID)
		assert.InDelta(t, want.Distance, got.Distance, 1e-6)
	}
}

func TestIndexedMatcher_RebuildsOnNewVersion(t *testing.T) {
	indexed := NewIndexedMatcher(0.6)

	cat1 := testCatalog(t, 1, map[string][]float32{"emp-001": vec(0.2)}, []string{"emp-001"})
	got, err := indexed.Match(vec(0.2), cat1)
	require.NoError(t, err)
	assert.Equal(t, "emp-001", got.PersonID)

	// Same probe against a reloaded catalog where emp-001 is gone.
	cat2 := testCatalog(t, 2, map[string][]float32{"emp-002": vec(0.9)}, []string{"emp-002"})
	_, err = indexed.Match(vec(0.2), cat2)
	assert.ErrorIs(t, err, domain.ErrNoMatch)
}

func TestIndexedMatcher_EmptyCatalog(t *testing.T) {
	indexed := NewIndexedMatcher(0.6)
	_, err := indexed.Match(vec(0.2), domain.NewCatalog(nil, 0))
	assert.ErrorIs(t, err, domain.ErrNoMatch)
}
