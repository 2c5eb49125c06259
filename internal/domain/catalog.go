package domain

// EmbeddingDim is the fixed length of every face embedding handled by the
// pipeline. Catalog rows with any other dimensionality are skipped at load.
const EmbeddingDim = 128

// CatalogEntry is one enrolled identity with its embedding vectors.
type CatalogEntry struct {
	PersonID   string
	Embeddings [][]float32
}

// Catalog is an immutable in-memory snapshot of the enrolled identities.
// Monitors hold it by pointer and swap the whole snapshot on reload; it is
// never partially mutated in place.
type Catalog struct {
	entries []CatalogEntry
	version int64
}

// NewCatalog builds a snapshot from raw entries, preserving insertion order.
// Embeddings with the wrong dimensionality are dropped; entries left with no
// valid embedding are dropped entirely. Malformed data is never fatal.
func NewCatalog(entries []CatalogEntry, version int64) *Catalog {
	kept := make([]CatalogEntry, 0, len(entries))
	for _, e := range entries {
		valid := make([][]float32, 0, len(e.Embeddings))
		for _, emb := range e.Embeddings {
			if len(emb) != EmbeddingDim {
				continue
			}
			valid = append(valid, emb)
		}
		if len(valid) == 0 {
			continue
		}
		kept = append(kept, CatalogEntry{PersonID: e.PersonID, Embeddings: valid})
	}
	return &Catalog{entries: kept, version: version}
}

// Entries returns the snapshot's identities in insertion order. Callers must
// not mutate the returned slice.
func (c *Catalog) Entries() []CatalogEntry {
	if c == nil {
		return nil
	}
	return c.entries
}

// Size is the number of enrolled identities in the snapshot.
func (c *Catalog) Size() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Version identifies the snapshot for cache invalidation (e.g. rebuilding a
// vector index after a reload).
func (c *Catalog) Version() int64 {
	if c == nil {
		return 0
	}
	return c.version
}
