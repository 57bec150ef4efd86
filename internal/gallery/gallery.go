// Package gallery holds the in-memory snapshot of known face embeddings.
// The recognition loop reads from it on every matched frame, so reads are
// lock-cheap and reloads swap the whole snapshot atomically.
package gallery

import (
	"context"
	"fmt"
	"sync"

	"github.com/coder/hnsw"

	"github.com/cmena/presente/internal/database"
)

const maxNeighbors = 16

// Gallery caches student embeddings loaded from the store. A reload
// replaces the entries and the search index in one critical section, so
// concurrent readers always see a consistent snapshot.
type Gallery struct {
	store database.PersonStore

	mu      sync.RWMutex
	entries []database.GalleryEntry
	graph   *hnsw.Graph[int]
}

func New(store database.PersonStore) *Gallery {
	return &Gallery{store: store}
}

// Reload fetches all usable embeddings from the store and swaps them in.
// On error the previous snapshot stays intact.
func (g *Gallery) Reload(ctx context.Context) error {
	entries, err := g.store.LoadGallery(ctx)
	if err != nil {
		return fmt.Errorf("loading gallery: %w", err)
	}

	var graph *hnsw.Graph[int]
	if len(entries) > 0 {
		graph = hnsw.NewGraph[int]()
		graph.M = maxNeighbors
		graph.Ml = 1.0 / float64(maxNeighbors)
		graph.Distance = hnsw.EuclideanDistance
		for i := range entries {
			graph.Add(hnsw.MakeNode(i, entries[i].Embedding))
		}
	}

	g.mu.Lock()
	g.entries = entries
	g.graph = graph
	g.mu.Unlock()
	return nil
}

// Entries returns a copy of the current snapshot. The caller may iterate
// it freely while a reload happens underneath.
func (g *Gallery) Entries() []database.GalleryEntry {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]database.GalleryEntry, len(g.entries))
	copy(out, g.entries)
	return out
}

func (g *Gallery) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

// Neighbor is a nearest-neighbor search hit.
type Neighbor struct {
	Entry    database.GalleryEntry
	Distance float64
}

// Nearest returns up to k entries closest to the query embedding,
// ordered by ascending Euclidean distance. Used by the duplicate
// detection command, not by the live matching path.
func (g *Gallery) Nearest(query []float32, k int) []Neighbor {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.graph == nil || k <= 0 {
		return nil
	}

	nodes := g.graph.Search(query, k)
	neighbors := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		if n.Key < 0 || n.Key >= len(g.entries) {
			continue
		}
		neighbors = append(neighbors, Neighbor{
			Entry:    g.entries[n.Key],
			Distance: database.EuclideanDistance(query, n.Value),
		})
	}
	return neighbors
}
