package gallery

import (
	"errors"
	"sync"

	"github.com/coder/hnsw"
)

// hnswMaxNeighbors is the M parameter of the HNSW graph.
const hnswMaxNeighbors = 16

// Index is an optional in-memory HNSW index over gallery templates. It is
// rebuilt from the store snapshot after each publish; the linear cosine scan
// stays authoritative for small galleries and for determinism.
type Index struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[string]
	count int
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{}
}

// Rebuild replaces the graph with one built from the given templates.
func (idx *Index) Rebuild(templates []Template) {
	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance

	n := 0
	for _, t := range templates {
		if len(t.Vector) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(t.ID, t.Vector))
		n++
	}

	idx.mu.Lock()
	idx.graph = g
	idx.count = n
	idx.mu.Unlock()
}

// Search returns the identity IDs of the k nearest templates to the query.
func (idx *Index) Search(query []float32, k int) ([]string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.graph == nil {
		return nil, errors.New("index not initialized")
	}

	neighbors := idx.graph.Search(query, k)
	ids := make([]string, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.Key
	}
	return ids, nil
}

// Count returns the number of indexed templates.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.count
}
