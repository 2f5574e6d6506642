package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/postdevai/postdevai/internal/apperrors"
)

// HistoryEvent is one append-only event in the history log. Source and
// Severity are optional metadata (spec §3's Event variant); Content is kept
// in memory for the hot path but is persisted separately as the raw-bytes
// file named by FilePath, matching the on-disk layout in spec §6.
type HistoryEvent struct {
	ID        uuid.UUID `json:"id"`
	EventType string    `json:"event_type"`
	Content   string    `json:"-"`
	Size      uint64    `json:"size"`
	FilePath  string    `json:"file_path"`
	Source    *string   `json:"source,omitempty"`
	Severity  *string   `json:"severity,omitempty"`
	Timestamp time.Time `json:"timestamp"` // stored UTC, converted to local on read
}

// HistoryStore is an append-only event log bounded by a caller-supplied
// byte budget; when a new event doesn't fit, the oldest events are
// evicted (LRU by timestamp) until it does. Events are also indexed by
// type for find_events_by_type-style lookups.
type HistoryStore struct {
	mu      sync.RWMutex
	events  map[uuid.UUID]*HistoryEvent
	byType  map[string][]uuid.UUID
	totalSz uint64
}

// NewHistoryStore creates an empty history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		events: make(map[uuid.UUID]*HistoryEvent),
		byType: make(map[string][]uuid.UUID),
	}
}

// Append adds a new event with no source/severity metadata. If maxBytes is
// non-zero and the store would exceed it, the oldest events are evicted
// (oldest timestamp first) until there is enough room, then the budget is
// rechecked; if the new event alone exceeds maxBytes, it fails with
// OverBudget.
func (s *HistoryStore) Append(eventType, content string, maxBytes uint64) (uuid.UUID, error) {
	return s.AppendWithMetadata(eventType, content, nil, nil, maxBytes)
}

// AppendWithMetadata adds a new event carrying optional source/severity
// metadata (spec §4.4 store_event_with_metadata). source and severity may
// be nil to mean "absent".
func (s *HistoryStore) AppendWithMetadata(eventType, content string, source, severity *string, maxBytes uint64) (uuid.UUID, error) {
	size := uint64(len(content))

	s.mu.Lock()
	defer s.mu.Unlock()

	if maxBytes > 0 {
		if size > maxBytes {
			return uuid.Nil, apperrors.OverBudget(size, maxBytes)
		}
		s.evictUntilFitsLocked(maxBytes - size)
		if s.totalSz+size > maxBytes {
			return uuid.Nil, apperrors.OverBudget(size, maxBytes-s.totalSz)
		}
	}

	id := uuid.New()
	s.events[id] = &HistoryEvent{
		ID:        id,
		EventType: eventType,
		Content:   content,
		Size:      size,
		FilePath:  id.String() + ".event",
		Source:    source,
		Severity:  severity,
		Timestamp: time.Now().UTC(),
	}
	s.byType[eventType] = append(s.byType[eventType], id)
	s.totalSz += size
	return id, nil
}

// evictUntilFitsLocked removes oldest-first events until totalSz fits
// within budget, or there is nothing left to evict. Caller holds mu.
func (s *HistoryStore) evictUntilFitsLocked(budget uint64) {
	if s.totalSz <= budget {
		return
	}
	ordered := make([]*HistoryEvent, 0, len(s.events))
	for _, e := range s.events {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Timestamp.Before(ordered[j].Timestamp) })

	for _, e := range ordered {
		if s.totalSz <= budget {
			break
		}
		s.deleteLocked(e.ID)
	}
}

// deleteLocked removes the event for id from events, byType and totalSz.
// Caller holds mu. No-op if id is unknown.
func (s *HistoryStore) deleteLocked(id uuid.UUID) {
	e, ok := s.events[id]
	if !ok {
		return
	}
	delete(s.events, id)
	s.totalSz -= e.Size
	s.removeFromTypeIndexLocked(e.EventType, id)
}

func (s *HistoryStore) removeFromTypeIndexLocked(eventType string, id uuid.UUID) {
	ids := s.byType[eventType]
	for i, existing := range ids {
		if existing == id {
			s.byType[eventType] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(s.byType[eventType]) == 0 {
		delete(s.byType, eventType)
	}
}

// Get returns the event for id with its timestamp converted to local time.
func (s *HistoryStore) Get(id uuid.UUID) (*HistoryEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, apperrors.NotFound("event", id.String())
	}
	cp := *e
	cp.Timestamp = cp.Timestamp.Local()
	return &cp, nil
}

// Delete removes the event for id (spec §4.4 delete_event).
func (s *HistoryStore) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return apperrors.NotFound("event", id.String())
	}
	s.deleteLocked(id)
	return nil
}

// Recent returns up to n most-recent events, newest first, with local
// timestamps.
func (s *HistoryStore) Recent(n int) []*HistoryEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := make([]*HistoryEvent, 0, len(s.events))
	for _, e := range s.events {
		cp := *e
		cp.Timestamp = cp.Timestamp.Local()
		ordered = append(ordered, &cp)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Timestamp.After(ordered[j].Timestamp) })
	if n < len(ordered) {
		ordered = ordered[:n]
	}
	return ordered
}

// FindByType returns every event of eventType, oldest first, with local
// timestamps (spec §4.4 find_events_by_type).
func (s *HistoryStore) FindByType(eventType string) []*HistoryEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byType[eventType]
	matches := make([]*HistoryEvent, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.events[id]; ok {
			cp := *e
			cp.Timestamp = cp.Timestamp.Local()
			matches = append(matches, &cp)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Timestamp.Before(matches[j].Timestamp) })
	return matches
}

// FindByTimestampRange returns every event whose timestamp falls within
// [start, end] inclusive, oldest first, with local timestamps (spec §4.4
// find_events_by_timestamp_range).
func (s *HistoryStore) FindByTimestampRange(start, end time.Time) []*HistoryEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, end = start.UTC(), end.UTC()
	var matches []*HistoryEvent
	for _, e := range s.events {
		ts := e.Timestamp
		if (ts.Equal(start) || ts.After(start)) && (ts.Equal(end) || ts.Before(end)) {
			cp := *e
			cp.Timestamp = cp.Timestamp.Local()
			matches = append(matches, &cp)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Timestamp.Before(matches[j].Timestamp) })
	return matches
}

// FindBySeverity returns every event whose Severity equals severity,
// oldest first, with local timestamps (spec §4.4 find_events_by_severity).
func (s *HistoryStore) FindBySeverity(severity string) []*HistoryEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*HistoryEvent
	for _, e := range s.events {
		if e.Severity != nil && *e.Severity == severity {
			cp := *e
			cp.Timestamp = cp.Timestamp.Local()
			matches = append(matches, &cp)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Timestamp.Before(matches[j].Timestamp) })
	return matches
}

// FindBySource returns every event whose Source equals source, oldest
// first, with local timestamps (spec §4.4 find_events_by_source).
func (s *HistoryStore) FindBySource(source string) []*HistoryEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*HistoryEvent
	for _, e := range s.events {
		if e.Source != nil && *e.Source == source {
			cp := *e
			cp.Timestamp = cp.Timestamp.Local()
			matches = append(matches, &cp)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Timestamp.Before(matches[j].Timestamp) })
	return matches
}

// Count returns the number of retained events.
func (s *HistoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Size returns the total bytes of retained event content.
func (s *HistoryStore) Size() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalSz
}

// ExportToJSON returns every retained event, oldest first, as JSON.
func (s *HistoryStore) ExportToJSON() ([]byte, error) {
	s.mu.RLock()
	ordered := make([]*HistoryEvent, 0, len(s.events))
	for _, e := range s.events {
		ordered = append(ordered, e)
	}
	s.mu.RUnlock()

	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Timestamp.Before(ordered[j].Timestamp) })
	data, err := json.MarshalIndent(ordered, "", "  ")
	if err != nil {
		return nil, apperrors.Internal("failed to marshal history export", err)
	}
	return data, nil
}

// historyIndex mirrors the original's EventIndex: the chronological id
// order plus the type→ids secondary index, persisted alongside the
// per-event metadata.
type historyIndex struct {
	IDs    []string            `json:"ids"`
	ByType map[string][]string `json:"by_type"`
}

// Persist writes index.json (chronological ids + the type index),
// metadata.json (entries minus content, keyed by id) and one raw
// <id>.event file per entry holding its content, under dir.
func (s *HistoryStore) Persist(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.IO("failed to create history store directory", err)
	}

	events := make(map[string]*HistoryEvent, len(s.events))
	ordered := make([]*HistoryEvent, 0, len(s.events))
	for id, e := range s.events {
		events[id.String()] = e
		ordered = append(ordered, e)
		if err := os.WriteFile(filepath.Join(dir, e.FilePath), []byte(e.Content), 0o644); err != nil {
			return apperrors.IO("failed to write event content file", err)
		}
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Timestamp.Before(ordered[j].Timestamp) })

	idx := historyIndex{
		IDs:    make([]string, len(ordered)),
		ByType: make(map[string][]string, len(s.byType)),
	}
	for i, e := range ordered {
		idx.IDs[i] = e.ID.String()
	}
	for t, ids := range s.byType {
		strs := make([]string, len(ids))
		for i, id := range ids {
			strs[i] = id.String()
		}
		idx.ByType[t] = strs
	}

	if err := writeJSONAtomic(filepath.Join(dir, "index.json"), idx); err != nil {
		return err
	}
	return writeJSONAtomic(filepath.Join(dir, "metadata.json"), events)
}

// Load reads index.json/metadata.json and each entry's <id>.event content
// file back, replacing the store's current contents.
func (s *HistoryStore) Load(dir string) error {
	var events map[string]*HistoryEvent
	if err := readJSON(filepath.Join(dir, "metadata.json"), &events); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperrors.IO("failed to read history metadata", err)
	}

	var idx historyIndex
	if err := readJSON(filepath.Join(dir, "index.json"), &idx); err != nil && !os.IsNotExist(err) {
		return apperrors.IO("failed to read history index", err)
	}

	byID := make(map[uuid.UUID]*HistoryEvent, len(events))
	var total uint64
	for idStr, e := range events {
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		e.ID = id
		if e.FilePath != "" {
			content, err := os.ReadFile(filepath.Join(dir, e.FilePath))
			if err != nil {
				return apperrors.IO("failed to read event content file", err)
			}
			e.Content = string(content)
		}
		byID[id] = e
		total += e.Size
	}

	byType := make(map[string][]uuid.UUID, len(idx.ByType))
	for t, ids := range idx.ByType {
		parsed := make([]uuid.UUID, 0, len(ids))
		for _, idStr := range ids {
			id, err := uuid.Parse(idStr)
			if err != nil {
				continue
			}
			if _, ok := byID[id]; ok {
				parsed = append(parsed, id)
			}
		}
		if len(parsed) > 0 {
			byType[t] = parsed
		}
	}
	if len(byType) == 0 {
		// index.json absent or stale (older persisted store) — rebuild
		// the type index from the loaded metadata directly.
		byType = make(map[string][]uuid.UUID)
		ordered := make([]*HistoryEvent, 0, len(byID))
		for _, e := range byID {
			ordered = append(ordered, e)
		}
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].Timestamp.Before(ordered[j].Timestamp) })
		for _, e := range ordered {
			byType[e.EventType] = append(byType[e.EventType], e.ID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = byID
	s.byType = byType
	s.totalSz = total
	return nil
}
