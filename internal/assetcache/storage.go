// Package assetcache implements the generation-based cache that fronts the
// static origin: install populates a named generation with the app shell,
// activate garbage-collects every other generation, and the request handler
// serves cache-first with an offline fallback.
package assetcache

import (
	"net/http"
	"sort"
	"sync"
)

// StoredResponse is one cached HTTP response body with its metadata.
type StoredResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// Clone returns a deep copy so callers can mutate headers safely.
func (r *StoredResponse) Clone() *StoredResponse {
	if r == nil {
		return nil
	}
	cpy := &StoredResponse{
		Status: r.Status,
		Header: r.Header.Clone(),
		Body:   make([]byte, len(r.Body)),
	}
	copy(cpy.Body, r.Body)
	return cpy
}

// Storage is the process-wide cache storage. It holds versioned generations
// (exactly one of which is current) plus named partitions such as the
// offline-data queue. Partitions are untouched by generation cleanup.
type Storage struct {
	mu          sync.RWMutex
	generations map[string]map[string]*StoredResponse
	partitions  map[string]map[string]*StoredResponse
	current     string
}

// NewStorage constructs an empty Storage.
func NewStorage() *Storage {
	return &Storage{
		generations: make(map[string]map[string]*StoredResponse),
		partitions:  make(map[string]map[string]*StoredResponse),
	}
}

// CreateGeneration atomically installs a complete generation. An existing
// generation with the same name is replaced wholesale.
func (s *Storage) CreateGeneration(name string, entries map[string]*StoredResponse) {
	cloned := make(map[string]*StoredResponse, len(entries))
	for path, resp := range entries {
		cloned[path] = resp.Clone()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[name] = cloned
}

// ActivateGeneration marks the named generation current and deletes every
// other generation. It returns the names of the removed generations.
func (s *Storage) ActivateGeneration(name string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for existing := range s.generations {
		if existing != name {
			removed = append(removed, existing)
			delete(s.generations, existing)
		}
	}
	sort.Strings(removed)

	s.current = name
	return removed
}

// CurrentGeneration returns the name of the current generation.
func (s *Storage) CurrentGeneration() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// GenerationNames lists all existing generations, sorted.
func (s *Storage) GenerationNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.generations))
	for name := range s.generations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GenerationResources lists the resource paths held by the named generation.
func (s *Storage) GenerationResources(name string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.generations[name]
	paths := make([]string, 0, len(entries))
	for path := range entries {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Lookup finds a response for path in the current generation.
func (s *Storage) Lookup(path string) (*StoredResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.generations[s.current]
	if entries == nil {
		return nil, false
	}
	resp, ok := entries[path]
	if !ok {
		return nil, false
	}
	return resp.Clone(), true
}

// Store writes a response into the current generation, creating it on first
// use. It is a no-op when no generation has been activated yet.
func (s *Storage) Store(path string, resp *StoredResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == "" {
		return
	}
	entries := s.generations[s.current]
	if entries == nil {
		entries = make(map[string]*StoredResponse)
		s.generations[s.current] = entries
	}
	entries[path] = resp.Clone()
}

// PartitionPut stores an entry in the named partition, creating it on first use.
func (s *Storage) PartitionPut(partition, key string, resp *StoredResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.partitions[partition]
	if entries == nil {
		entries = make(map[string]*StoredResponse)
		s.partitions[partition] = entries
	}
	entries[key] = resp.Clone()
}

// PartitionGet retrieves an entry from the named partition.
func (s *Storage) PartitionGet(partition, key string) (*StoredResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp, ok := s.partitions[partition][key]
	if !ok {
		return nil, false
	}
	return resp.Clone(), true
}

// PartitionKeys lists the keys of the named partition, sorted.
func (s *Storage) PartitionKeys(partition string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.partitions[partition]
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// PartitionDelete removes an entry from the named partition.
func (s *Storage) PartitionDelete(partition, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.partitions[partition], key)
}
