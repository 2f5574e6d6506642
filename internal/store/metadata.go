package store

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/postdevai/postdevai/internal/apperrors"
)

// Relation is one directed, labelled edge in the metadata graph.
type Relation struct {
	Source uuid.UUID `json:"source"`
	Label  string    `json:"label"`
	Target uuid.UUID `json:"target"`
}

// MetadataStore is a directed labelled multigraph over entity ids, kept
// with forward and backward adjacency indices for O(1)-ish traversal in
// either direction.
type MetadataStore struct {
	mu       sync.RWMutex
	forward  map[uuid.UUID]map[string]map[uuid.UUID]struct{}
	backward map[uuid.UUID]map[string]map[uuid.UUID]struct{}
	all      []Relation
}

// NewMetadataStore creates an empty metadata store.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{
		forward:  make(map[uuid.UUID]map[string]map[uuid.UUID]struct{}),
		backward: make(map[uuid.UUID]map[string]map[uuid.UUID]struct{}),
	}
}

// AddRelation inserts source-[label]->target. Re-inserting the same
// triple is a no-op (idempotent).
func (s *MetadataStore) AddRelation(source uuid.UUID, label string, target uuid.UUID) error {
	if label == "" {
		return apperrors.InvalidInput("relation label must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasLocked(source, label, target) {
		return nil
	}

	insertTriple(s.forward, source, label, target)
	insertTriple(s.backward, target, label, source)
	s.all = append(s.all, Relation{Source: source, Label: label, Target: target})
	return nil
}

func (s *MetadataStore) hasLocked(source uuid.UUID, label string, target uuid.UUID) bool {
	byLabel, ok := s.forward[source]
	if !ok {
		return false
	}
	targets, ok := byLabel[label]
	if !ok {
		return false
	}
	_, ok = targets[target]
	return ok
}

func insertTriple(idx map[uuid.UUID]map[string]map[uuid.UUID]struct{}, from uuid.UUID, label string, to uuid.UUID) {
	byLabel, ok := idx[from]
	if !ok {
		byLabel = make(map[string]map[uuid.UUID]struct{})
		idx[from] = byLabel
	}
	targets, ok := byLabel[label]
	if !ok {
		targets = make(map[uuid.UUID]struct{})
		byLabel[label] = targets
	}
	targets[to] = struct{}{}
}

// removeTriple deletes to from idx[from][label], cascading cleanup of
// now-empty label and from submaps.
func removeTriple(idx map[uuid.UUID]map[string]map[uuid.UUID]struct{}, from uuid.UUID, label string, to uuid.UUID) {
	byLabel, ok := idx[from]
	if !ok {
		return
	}
	targets, ok := byLabel[label]
	if !ok {
		return
	}
	delete(targets, to)
	if len(targets) == 0 {
		delete(byLabel, label)
	}
	if len(byLabel) == 0 {
		delete(idx, from)
	}
}

// RemoveRelation deletes source-[label]->target if present.
func (s *MetadataStore) RemoveRelation(source uuid.UUID, label string, target uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasLocked(source, label, target) {
		return apperrors.NotFound("relation", label)
	}

	removeTriple(s.forward, source, label, target)
	removeTriple(s.backward, target, label, source)

	for i, r := range s.all {
		if r.Source == source && r.Label == label && r.Target == target {
			s.all = append(s.all[:i], s.all[i+1:]...)
			break
		}
	}
	return nil
}

// RelatedEntities returns the union of every id reachable from any of ids
// by a forward or backward edge, optionally filtered to a single relation
// label, excluding every id in ids itself (spec §4.5 related_entities /
// original get_related_entities). Deduplicated.
func (s *MetadataStore) RelatedEntities(ids []uuid.UUID, label *string) []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	excluded := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		excluded[id] = struct{}{}
	}

	seen := make(map[uuid.UUID]struct{})
	for _, id := range ids {
		for l, targets := range s.forward[id] {
			if label != nil && l != *label {
				continue
			}
			for t := range targets {
				if _, excl := excluded[t]; !excl {
					seen[t] = struct{}{}
				}
			}
		}
		for l, sources := range s.backward[id] {
			if label != nil && l != *label {
				continue
			}
			for src := range sources {
				if _, excl := excluded[src]; !excl {
					seen[src] = struct{}{}
				}
			}
		}
	}

	out := make([]uuid.UUID, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	return out
}

// Neighbors returns every relation touching id in either direction,
// optionally filtered to a single label (spec §4.5 neighbors / original
// get_relations).
func (s *MetadataStore) Neighbors(id uuid.UUID, label *string) []Relation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Relation
	for l, targets := range s.forward[id] {
		if label != nil && l != *label {
			continue
		}
		for t := range targets {
			out = append(out, Relation{Source: id, Label: l, Target: t})
		}
	}
	for l, sources := range s.backward[id] {
		if label != nil && l != *label {
			continue
		}
		for src := range sources {
			out = append(out, Relation{Source: src, Label: l, Target: id})
		}
	}
	return out
}

// Forward returns every relation with id as source, optionally filtered
// to a single label (spec §4.5 forward / original get_forward_relations).
func (s *MetadataStore) Forward(id uuid.UUID, label *string) []Relation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Relation
	for l, targets := range s.forward[id] {
		if label != nil && l != *label {
			continue
		}
		for t := range targets {
			out = append(out, Relation{Source: id, Label: l, Target: t})
		}
	}
	return out
}

// Backward returns every relation with id as target, optionally filtered
// to a single label (spec §4.5 backward / original get_backward_relations).
func (s *MetadataStore) Backward(id uuid.UUID, label *string) []Relation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Relation
	for l, sources := range s.backward[id] {
		if label != nil && l != *label {
			continue
		}
		for src := range sources {
			out = append(out, Relation{Source: src, Label: l, Target: id})
		}
	}
	return out
}

// ByLabel returns every relation whose label exactly matches label (spec
// §4.5 by_label / original get_relations_by_type).
func (s *MetadataStore) ByLabel(label string) []Relation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Relation
	for _, r := range s.all {
		if r.Label == label {
			out = append(out, r)
		}
	}
	return out
}

// DeleteEntityRelations removes every relation touching id (as source or
// target) and returns the number of relations removed.
func (s *MetadataStore) DeleteEntityRelations(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []Relation
	var kept []Relation
	for _, r := range s.all {
		if r.Source == id || r.Target == id {
			removed = append(removed, r)
		} else {
			kept = append(kept, r)
		}
	}
	s.all = kept

	for _, r := range removed {
		removeTriple(s.forward, r.Source, r.Label, r.Target)
		removeTriple(s.backward, r.Target, r.Label, r.Source)
	}
	return len(removed)
}

// FindEntitiesByRelation returns every (source, target) pair whose label
// matches a "*"-glob pattern.
func (s *MetadataStore) FindEntitiesByRelation(pattern string) []Relation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	re, err := globToRegexp(pattern)
	var matches []Relation
	for _, r := range s.all {
		matched := false
		if err == nil {
			matched = re.MatchString(r.Label)
		} else {
			matched = r.Label == pattern
		}
		if matched {
			matches = append(matches, r)
		}
	}
	return matches
}

// Count returns the number of stored relations.
func (s *MetadataStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.all)
}

// Size returns an approximate byte accounting for the relation set: each
// triple is two uuid.UUIDs (32 bytes) plus its label text.
func (s *MetadataStore) Size() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total uint64
	for _, r := range s.all {
		total += 32 + uint64(len(r.Label))
	}
	return total
}

// Persist writes the full relation list to relations.json under dir.
func (s *MetadataStore) Persist(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.IO("failed to create metadata store directory", err)
	}
	return writeJSONAtomic(filepath.Join(dir, "relations.json"), s.all)
}

// Load reads relations.json back, replacing the store's current contents
// and rebuilding the forward/backward indices.
func (s *MetadataStore) Load(dir string) error {
	var relations []Relation
	if err := readJSON(filepath.Join(dir, "relations.json"), &relations); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperrors.IO("failed to read relations", err)
	}

	forward := make(map[uuid.UUID]map[string]map[uuid.UUID]struct{})
	backward := make(map[uuid.UUID]map[string]map[uuid.UUID]struct{})
	for _, r := range relations {
		insertTriple(forward, r.Source, r.Label, r.Target)
		insertTriple(backward, r.Target, r.Label, r.Source)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.forward = forward
	s.backward = backward
	s.all = relations
	return nil
}
