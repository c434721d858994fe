// Package similar reuses classification decisions for near-identical
// image regions via approximate nearest neighbor search over region
// embeddings.
package similar

import (
	"math"
	"sync"

	"github.com/coder/hnsw"

	"github.com/nvandessel/cocofix/internal/models"
)

// Index maps region embeddings to confirmed decisions using a
// Hierarchical Navigable Small World graph. In-memory only: embeddings
// are endpoint-specific, so the index lives for one run. Thread-safe.
type Index struct {
	mu        sync.RWMutex
	graph     *hnsw.Graph[string]
	decisions map[string]models.Decision
	vectors   map[string][]float32
}

// Config holds HNSW tuning parameters.
type Config struct {
	// M is the maximum number of neighbors per node. Default 16.
	M int

	// EfSearch is the number of candidates considered during search.
	// Default 100.
	EfSearch int
}

func (c Config) withDefaults() Config {
	if c.M == 0 {
		c.M = 16
	}
	if c.EfSearch == 0 {
		c.EfSearch = 100
	}
	return c
}

// New creates an empty index.
func New(cfg Config) *Index {
	cfg = cfg.withDefaults()
	g := hnsw.NewGraph[string]()
	g.M = cfg.M
	g.EfSearch = cfg.EfSearch
	g.Distance = hnsw.CosineDistance
	return &Index{
		graph:     g,
		decisions: make(map[string]models.Decision),
		vectors:   make(map[string][]float32),
	}
}

// Add records a decision under the region's fingerprint and embedding.
// Only fresh agent decisions belong here; cached or reused decisions
// would launder their provenance.
func (i *Index) Add(fingerprint string, vector []float32, dec models.Decision) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.graph.Add(hnsw.MakeNode(fingerprint, vector))
	i.decisions[fingerprint] = dec
	i.vectors[fingerprint] = vector
}

// Lookup returns the decision of the nearest indexed region when its
// cosine similarity to query reaches threshold.
func (i *Index) Lookup(query []float32, threshold float64) (models.Decision, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if len(i.decisions) == 0 {
		return models.Decision{}, false
	}

	nodes := i.graph.Search(query, 1)
	if len(nodes) == 0 {
		return models.Decision{}, false
	}
	best := nodes[0].Key
	vec, ok := i.vectors[best]
	if !ok {
		return models.Decision{}, false
	}
	if cosine(query, vec) < threshold {
		return models.Decision{}, false
	}

	dec := i.decisions[best]
	dec.Source = models.SourceSimilar
	return dec, true
}

// Len returns the number of indexed regions.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.decisions)
}

// cosine computes the cosine similarity of two vectors. Mismatched
// lengths or zero vectors yield 0.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for idx := range a {
		dot += float64(a[idx]) * float64(b[idx])
		na += float64(a[idx]) * float64(a[idx])
		nb += float64(b[idx]) * float64(b[idx])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
