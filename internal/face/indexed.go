package face

import (
	"math"
	"sync"

	"github.com/coder/hnsw"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
)

// hnswMaxNeighbors is the M parameter of the graph.
const hnswMaxNeighbors = 16

// IndexedMatcher serves the same contract as LinearMatcher from an HNSW
// graph, for fleets whose catalogs outgrow a linear scan. The graph is
// rebuilt lazily whenever the catalog snapshot version changes, so reloads
// stay wholesale-swap cheap for the monitors.
type IndexedMatcher struct {
	Tolerance float64

	mu      sync.Mutex
	version int64
	graph   *hnsw.Graph[int]
	persons []string
}

func NewIndexedMatcher(tolerance float64) *IndexedMatcher {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &IndexedMatcher{Tolerance: tolerance, version: -1}
}

func (m *IndexedMatcher) Match(probe []float32, catalog *domain.Catalog) (Match, error) {
	if err := ValidateEmbedding(probe); err != nil {
		return Match{}, err
	}
	if catalog.Size() == 0 {
		return Match{}, domain.ErrNoMatch
	}

	m.mu.Lock()
	if m.graph == nil || m.version != catalog.Version() {
		m.rebuild(catalog)
	}
	graph, persons := m.graph, m.persons
	m.mu.Unlock()

	if graph == nil {
		return Match{}, domain.ErrNoMatch
	}

	// Over-fetch a little and re-rank on exact distance: the graph search
	// is approximate, and identities may hold several embeddings.
	neighbors := graph.Search(probe, 4)

	best := Match{Distance: math.Inf(1)}
	bestKey := -1
	for _, n := range neighbors {
		d := EuclideanDistance(probe, n.Value)
		if d < best.Distance || (d == best.Distance && n.Key < bestKey) {
			best = Match{PersonID: persons[n.Key], Distance: d}
			bestKey = n.Key
		}
	}

	if bestKey < 0 || best.Distance > m.Tolerance {
		return Match{}, domain.ErrNoMatch
	}

	best.Confidence = 1 - best.Distance
	return best, nil
}

// rebuild is called with m.mu held.
func (m *IndexedMatcher) rebuild(catalog *domain.Catalog) {
	g := hnsw.NewGraph[int]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance

	persons := make([]string, 0, catalog.Size())
	key := 0
	for _, entry := range catalog.Entries() {
		for _, emb := range entry.Embeddings {
			g.Add(hnsw.MakeNode(key, emb))
			persons = append(persons, entry.PersonID)
			key++
		}
	}

	m.graph = g
	m.persons = persons
	m.version = catalog.Version()
}
