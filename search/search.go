// Package search provides a small read-side index over entities that opt
// in through the Searchable capability. The registry is built by the
// composition root at startup; there is no package-level state.
package search

import (
	"sort"
	"strings"
	"sync"
)

type Document struct {
	Kind  string `json:"kind"`
	ID    uint64 `json:"id"`
	Title string `json:"title"`

	// Terms are extra matchable strings not shown to the user.
	Terms []string `json:"-"`
}

// Searchable is implemented per entity type that wants to appear in search
// results.
type Searchable interface {
	SearchDocuments() ([]Document, error)
}

type Registry struct {
	mutex   sync.RWMutex
	sources map[string]Searchable
}

func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]Searchable),
	}
}

func (r *Registry) Register(kind string, source Searchable) *Registry {
	r.mutex.Lock()
	r.sources[kind] = source
	r.mutex.Unlock()
	return r
}

// Search returns documents whose title or terms contain the query,
// case-insensitively, ordered by kind then id.
func (r *Registry) Search(query string) ([]Document, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, nil
	}

	r.mutex.RLock()
	sources := make([]Searchable, 0, len(r.sources))
	for _, s := range r.sources {
		sources = append(sources, s)
	}
	r.mutex.RUnlock()

	var results []Document
	for _, source := range sources {
		docs, err := source.SearchDocuments()
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			if matches(doc, query) {
				results = append(results, doc)
			}
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Kind != results[j].Kind {
			return results[i].Kind < results[j].Kind
		}
		return results[i].ID < results[j].ID
	})
	return results, nil
}

func matches(doc Document, query string) bool {
	if strings.Contains(strings.ToLower(doc.Title), query) {
		return true
	}
	for _, term := range doc.Terms {
		if strings.Contains(strings.ToLower(term), query) {
			return true
		}
	}
	return false
}
