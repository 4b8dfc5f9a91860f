// Package match scores live embeddings against the gallery and applies the
// acceptance threshold.
package match

import (
	"math"

	"github.com/kiosklabs/facegate/internal/gallery"
)

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical. Mismatched
// lengths and zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Result is the outcome of matching one live embedding.
type Result struct {
	ID    string
	Name  string
	Score float64
	OK    bool // true when Score reached the acceptance threshold
}

// Matcher finds the nearest gallery template for a query embedding.
type Matcher struct {
	store     *gallery.Store
	index     *gallery.Index // optional; nil means linear scan only
	threshold float64
}

// hnswCandidates is how many nearest neighbors the index path pulls before
// applying the threshold.
const hnswCandidates = 4

// New creates a matcher over the given store.
func New(store *gallery.Store, threshold float64) *Matcher {
	return &Matcher{store: store, threshold: threshold}
}

// WithIndex attaches an HNSW index used to narrow candidates for large
// galleries. The threshold decision is still made on exact cosine scores.
func (m *Matcher) WithIndex(index *gallery.Index) *Matcher {
	m.index = index
	return m
}

// Match scans a consistent gallery snapshot and returns the best-scoring
// identity. Below the threshold the result carries OK=false: an unknown
// presence, not an error. Ties break toward the first-seen gallery entry.
func (m *Matcher) Match(embedding []float32) Result {
	snapshot := m.store.Snapshot()
	if len(snapshot) == 0 {
		return Result{}
	}

	if m.index != nil && m.index.Count() > 0 {
		if r, ok := m.matchIndexed(embedding); ok {
			return r
		}
		// Index unavailable mid-rebuild; fall through to the scan.
	}

	best := Result{}
	for _, t := range snapshot {
		score := CosineSimilarity(embedding, t.Vector)
		if score > best.Score || best.ID == "" {
			best = Result{ID: t.ID, Name: t.Name, Score: score}
		}
	}

	best.OK = best.Score > m.threshold
	if !best.OK {
		return Result{Score: best.Score}
	}
	return best
}

// matchIndexed resolves the best candidate through the HNSW index and
// re-scores it exactly.
func (m *Matcher) matchIndexed(embedding []float32) (Result, bool) {
	ids, err := m.index.Search(embedding, hnswCandidates)
	if err != nil || len(ids) == 0 {
		return Result{}, false
	}

	best := Result{}
	for _, id := range ids {
		t, ok := m.store.Get(id)
		if !ok {
			continue
		}
		score := CosineSimilarity(embedding, t.Vector)
		if score > best.Score || best.ID == "" {
			best = Result{ID: t.ID, Name: t.Name, Score: score}
		}
	}
	if best.ID == "" {
		return Result{}, false
	}

	best.OK = best.Score > m.threshold
	if !best.OK {
		return Result{Score: best.Score}, true
	}
	return best, true
}
