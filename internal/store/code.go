package store

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/postdevai/postdevai/internal/apperrors"
)

// CodeEntry is one stored code blob, addressed by filesystem path. Content
// is kept in memory for the hot path but is never serialized into
// metadata.json — it is persisted separately as the raw-bytes file named
// by FilePath, matching the on-disk layout in spec §6.
type CodeEntry struct {
	ID        uuid.UUID `json:"id"`
	Path      string    `json:"path"`
	Content   string    `json:"-"`
	Language  string    `json:"language"`
	Hash      string    `json:"hash"`
	Size      uint64    `json:"size"`
	FilePath  string    `json:"file_path"`
	Timestamp time.Time `json:"timestamp"`
}

// CodeStore is a path-addressed code blob store: storing to an existing
// path replaces its entry in place rather than creating a duplicate.
type CodeStore struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]*CodeEntry
	byPath   map[string]uuid.UUID
	totalSz  uint64
}

// NewCodeStore creates an empty code store.
func NewCodeStore() *CodeStore {
	return &CodeStore{
		byID:   make(map[uuid.UUID]*CodeEntry),
		byPath: make(map[string]uuid.UUID),
	}
}

// sha256Hex returns the lowercase hex SHA-256 digest of content.
func sha256Hex(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Store inserts a new entry for path, or replaces the existing entry if
// path was already stored. Size accounting reflects only the net change.
func (s *CodeStore) Store(path, content, language string) (uuid.UUID, error) {
	if path == "" {
		return uuid.Nil, apperrors.InvalidInput("path must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	newSize := uint64(len(content))

	if existingID, ok := s.byPath[path]; ok {
		old := s.byID[existingID]
		s.totalSz = s.totalSz - old.Size + newSize
		old.Content = content
		old.Language = language
		old.Hash = sha256Hex(content)
		old.Size = newSize
		old.Timestamp = time.Now()
		return existingID, nil
	}

	id := uuid.New()
	entry := &CodeEntry{
		ID:        id,
		Path:      path,
		Content:   content,
		Language:  language,
		Hash:      sha256Hex(content),
		Size:      newSize,
		FilePath:  id.String() + ".code",
		Timestamp: time.Now(),
	}
	s.byID[id] = entry
	s.byPath[path] = id
	s.totalSz += newSize
	return id, nil
}

// Get returns the entry for id.
func (s *CodeStore) Get(id uuid.UUID) (*CodeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, apperrors.NotFound("code", id.String())
	}
	cp := *e
	return &cp, nil
}

// GetByPath returns the entry stored at path.
func (s *CodeStore) GetByPath(path string) (*CodeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPath[path]
	if !ok {
		return nil, apperrors.NotFound("code", path)
	}
	cp := *s.byID[id]
	return &cp, nil
}

// Delete removes the entry for id.
func (s *CodeStore) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return apperrors.NotFound("code", id.String())
	}
	s.totalSz -= e.Size
	delete(s.byID, id)
	delete(s.byPath, e.Path)
	return nil
}

// Count returns the number of stored entries.
func (s *CodeStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Size returns the total bytes of stored content.
func (s *CodeStore) Size() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalSz
}

// FindByPathPattern returns entries whose path matches a glob pattern
// ("*" meaning any run of characters). A pattern that fails to compile as
// a regex falls back to an exact literal match.
func (s *CodeStore) FindByPathPattern(pattern string) []*CodeEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	re, err := globToRegexp(pattern)
	var matches []*CodeEntry
	for path, id := range s.byPath {
		matched := false
		if err == nil {
			matched = re.MatchString(path)
		} else {
			matched = path == pattern
		}
		if matched {
			cp := *s.byID[id]
			matches = append(matches, &cp)
		}
	}
	return matches
}

// globToRegexp compiles a "*"-only glob pattern into an anchored regexp.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, part := range strings.Split(pattern, "*") {
		b.WriteString(regexp.QuoteMeta(part))
		b.WriteString(".*")
	}
	s := strings.TrimSuffix(b.String(), ".*") + "$"
	return regexp.Compile(s)
}

type codeIndexEntry struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// Persist writes index.json (id/path pairs), metadata.json (the entries
// minus content, keyed by id) and one raw <id>.code file per entry holding
// its content, under dir.
func (s *CodeStore) Persist(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.IO("failed to create code store directory", err)
	}

	index := make([]codeIndexEntry, 0, len(s.byID))
	entries := make(map[string]*CodeEntry, len(s.byID))
	for id, e := range s.byID {
		index = append(index, codeIndexEntry{ID: id.String(), Path: e.Path})
		entries[id.String()] = e
		if err := os.WriteFile(filepath.Join(dir, e.FilePath), []byte(e.Content), 0o644); err != nil {
			return apperrors.IO("failed to write code content file", err)
		}
	}

	if err := writeJSONAtomic(filepath.Join(dir, "index.json"), index); err != nil {
		return err
	}
	return writeJSONAtomic(filepath.Join(dir, "metadata.json"), entries)
}

// Load reads index.json/metadata.json and each entry's <id>.code content
// file back, replacing the store's current contents.
func (s *CodeStore) Load(dir string) error {
	var entries map[string]*CodeEntry
	if err := readJSON(filepath.Join(dir, "metadata.json"), &entries); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperrors.IO("failed to read code metadata", err)
	}

	byID := make(map[uuid.UUID]*CodeEntry, len(entries))
	byPath := make(map[string]uuid.UUID, len(entries))
	var total uint64
	for idStr, e := range entries {
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		e.ID = id
		if e.FilePath != "" {
			content, err := os.ReadFile(filepath.Join(dir, e.FilePath))
			if err != nil {
				return apperrors.IO("failed to read code content file", err)
			}
			e.Content = string(content)
		}
		byID[id] = e
		byPath[e.Path] = id
		total += e.Size
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = byID
	s.byPath = byPath
	s.totalSz = total
	return nil
}
