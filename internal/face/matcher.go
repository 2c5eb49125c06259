package face

import (
	"math"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
)

// DefaultTolerance is the maximum Euclidean distance for an accepted match.
// It mirrors the 0.6 threshold the enrollment pipeline was tuned against.
const DefaultTolerance = 0.6

// Match is an accepted catalog hit. Confidence is 1 - distance.
type Match struct {
	PersonID   string
	Distance   float64
	Confidence float64
}

// Matcher finds the closest enrolled identity for a probe embedding.
// Returns domain.ErrNoMatch when nothing is within tolerance; an empty
// catalog is not an error.
type Matcher interface {
	Match(probe []float32, catalog *domain.Catalog) (Match, error)
}

// EuclideanDistance computes the L2 distance between two embeddings.
// Mismatched or empty vectors yield +Inf so they can never win a match.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// LinearMatcher scans every catalog embedding. O(n) is adequate at the
// expected catalog sizes (tens to hundreds of identities); IndexedMatcher
// is the drop-in upgrade for larger fleets.
type LinearMatcher struct {
	Tolerance float64
}

func NewLinearMatcher(tolerance float64) *LinearMatcher {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &LinearMatcher{Tolerance: tolerance}
}

// Match selects the minimum-distance entry. Ties are broken by catalog
// insertion order, which keeps results deterministic.
func (m *LinearMatcher) Match(probe []float32, catalog *domain.Catalog) (Match, error) {
	if err := ValidateEmbedding(probe); err != nil {
		return Match{}, err
	}

	best := Match{Distance: math.Inf(1)}
	for _, entry := range catalog.Entries() {
		for _, emb := range entry.Embeddings {
			d := EuclideanDistance(probe, emb)
			if d < best.Distance {
				best = Match{PersonID: entry.PersonID, Distance: d}
			}
		}
	}

	if best.PersonID == "" || best.Distance > m.Tolerance {
		return Match{}, domain.ErrNoMatch
	}

	best.Confidence = 1 - best.Distance
	return best, nil
}
