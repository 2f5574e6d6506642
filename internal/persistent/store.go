// Package persistent implements the Persistent Store: a durable
// key-value log over a pure-Go SQLite engine holding the tagged-union
// Entry variants under "entry:<id>" keys.
package persistent

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/postdevai/postdevai/internal/apperrors"
	"github.com/postdevai/postdevai/internal/budget"
)

// Config configures a Store.
type Config struct {
	BasePath          string `yaml:"base_path"`
	MaxSize           uint64 `yaml:"max_size"`
	Compression       string `yaml:"compression"` // "none", "snappy", or "zstd" (see codec.go)
	CacheSizeMB       uint64 `yaml:"cache_size_mb"`
	WriteBufferSizeMB uint64 `yaml:"write_buffer_size_mb"`
	EnableWAL         bool   `yaml:"enable_wal"`
}

// Metrics is a value-copy snapshot of PS's current state.
type Metrics struct {
	TotalSize      uint64
	EntryCount     uint64
	LastCompaction time.Time
	HasCompacted   bool
	WritesPerSec   float64
	ReadsPerSec    float64
}

// Store is the durable key-value log over modernc.org/sqlite, opened in
// WAL mode with a single-connection pool for single-writer semantics.
type Store struct {
	db   *sql.DB
	lock *dirLock
	cfg  Config

	cache  *entryCache
	budget *budget.Budgeter

	mu             sync.RWMutex
	entryCount     uint64
	lastCompaction time.Time
	hasCompacted   bool

	rateMu    sync.Mutex
	writes    uint64
	reads     uint64
	rateStart time.Time
}

// New opens (or creates) the persistent store rooted at cfg.BasePath,
// under <base>/postdevai.db/store.db, taking an exclusive
// directory lock for the lifetime of the returned Store.
func New(cfg Config) (*Store, error) {
	dbDir := filepath.Join(cfg.BasePath, "postdevai.db")
	lock := newDirLock(cfg.BasePath)
	if err := lock.tryLock(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		_ = lock.unlock()
		return nil, apperrors.IO("failed to create persistent store directory", err)
	}

	dsn := filepath.Join(dbDir, "store.db") + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = lock.unlock()
		return nil, apperrors.IO("failed to open persistent store database", err)
	}

	// Single writer to prevent lock contention, matching the teacher's
	// sqlite connection-pool discipline.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", cfg.CacheSizeMB*1024),
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			_ = lock.unlock()
			return nil, apperrors.IO("failed to set pragma", err)
		}
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS entries (key TEXT PRIMARY KEY, value BLOB)`); err != nil {
		_ = db.Close()
		_ = lock.unlock()
		return nil, apperrors.IO("failed to create entries table", err)
	}

	s := &Store{
		db:        db,
		lock:      lock,
		cfg:       cfg,
		cache:     newEntryCache(cfg.CacheSizeMB),
		rateStart: time.Now(),
	}

	var count uint64
	if err := db.QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&count); err == nil {
		s.entryCount = count
	}

	if cfg.MaxSize > 0 {
		s.budget = budget.New(cfg.MaxSize)
		var onDiskSize uint64
		if err := db.QueryRow(`SELECT COALESCE(SUM(LENGTH(value)), 0) FROM entries`).Scan(&onDiskSize); err == nil && onDiskSize > 0 {
			if err := s.budget.Reserve(onDiskSize, "load"); err != nil {
				_ = db.Close()
				_ = lock.unlock()
				return nil, err
			}
		}
	}

	return s, nil
}

// Close releases the underlying database handle and directory lock.
func (s *Store) Close() error {
	err := s.db.Close()
	if unlockErr := s.lock.unlock(); err == nil {
		err = unlockErr
	}
	return err
}

func entryKey(id uuid.UUID) string {
	return "entry:" + id.String()
}

// Put stores entry under id, crash-safe on return when WAL is enabled.
// The store's total byte budget (cfg.MaxSize) is enforced at this point.
func (s *Store) Put(id uuid.UUID, entry Entry) error {
	data, err := encode(entry, s.cfg.Compression)
	if err != nil {
		return err
	}
	newLen := uint64(len(data))

	var oldLen uint64
	hadOld := s.db.QueryRow(`SELECT LENGTH(value) FROM entries WHERE key = ?`, entryKey(id)).Scan(&oldLen) == nil

	if s.budget != nil {
		switch {
		case !hadOld:
			if err := s.budget.Reserve(newLen, "put"); err != nil {
				return err
			}
		case newLen > oldLen:
			if err := s.budget.Reserve(newLen-oldLen, "put"); err != nil {
				return err
			}
		case newLen < oldLen:
			_ = s.budget.Release(oldLen-newLen, "put")
		}
	}

	_, err = s.db.Exec(`INSERT INTO entries(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, entryKey(id), data)
	if err != nil {
		return apperrors.IO("failed to store entry", err)
	}

	if !hadOld {
		s.mu.Lock()
		s.entryCount++
		s.mu.Unlock()
	}
	s.cache.put(id, entry)
	s.recordWrite()
	return nil
}

// Get returns the entry stored under id, or a NotFound error.
func (s *Store) Get(id uuid.UUID) (Entry, error) {
	s.recordRead()
	if e, ok := s.cache.get(id); ok {
		return e, nil
	}

	var data []byte
	err := s.db.QueryRow(`SELECT value FROM entries WHERE key = ?`, entryKey(id)).Scan(&data)
	if err == sql.ErrNoRows {
		return Entry{}, apperrors.NotFound("entry", id.String())
	}
	if err != nil {
		return Entry{}, apperrors.IO("failed to read entry", err)
	}

	entry, err := decode(data, s.cfg.Compression)
	if err != nil {
		return Entry{}, err
	}
	s.cache.put(id, entry)
	return entry, nil
}

// Delete removes the entry stored under id, if present.
func (s *Store) Delete(id uuid.UUID) error {
	var oldLen uint64
	hadOld := s.db.QueryRow(`SELECT LENGTH(value) FROM entries WHERE key = ?`, entryKey(id)).Scan(&oldLen) == nil

	res, err := s.db.Exec(`DELETE FROM entries WHERE key = ?`, entryKey(id))
	if err != nil {
		return apperrors.IO("failed to delete entry", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.mu.Lock()
		if s.entryCount > 0 {
			s.entryCount--
		}
		s.mu.Unlock()
		if s.budget != nil && hadOld && oldLen > 0 {
			_ = s.budget.Release(oldLen, "delete")
		}
	}
	s.cache.invalidate(id)
	return nil
}

// StoreContext persists list under sessionID as a Context entry.
func (s *Store) StoreContext(sessionID uuid.UUID, list []string) error {
	return s.Put(sessionID, Entry{
		Kind:      KindContext,
		SessionID: sessionID,
		Context:   list,
		Timestamp: time.Now(),
	})
}

// GetContext returns the context list stored under sessionID.
func (s *Store) GetContext(sessionID uuid.UUID) ([]string, error) {
	e, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if e.Kind != KindContext {
		return nil, apperrors.NotFound("context", sessionID.String())
	}
	return e.Context, nil
}

// Iterate scans every "entry:" key, skipping unparseable UUIDs silently
// and surfacing decode failures, up to limit entries (0 means no limit).
func (s *Store) Iterate(limit int) ([]IteratedEntry, error) {
	rows, err := s.db.Query(`SELECT key, value FROM entries WHERE key LIKE 'entry:%'`)
	if err != nil {
		return nil, apperrors.IO("failed to scan entries", err)
	}
	defer rows.Close()

	var out []IteratedEntry
	for rows.Next() {
		var key string
		var data []byte
		if err := rows.Scan(&key, &data); err != nil {
			return nil, apperrors.IO("failed to scan entry row", err)
		}

		idStr := strings.TrimPrefix(key, "entry:")
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}

		entry, err := decode(data, s.cfg.Compression)
		if err != nil {
			return nil, err
		}
		out = append(out, IteratedEntry{ID: id, Entry: entry})

		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// SearchByType returns every stored entry of the given kind, up to limit
// (0 means no limit).
func (s *Store) SearchByType(kind EntryKind, limit int) ([]IteratedEntry, error) {
	all, err := s.Iterate(0)
	if err != nil {
		return nil, err
	}
	var out []IteratedEntry
	for _, e := range all {
		if e.Entry.Kind != kind {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// IteratedEntry pairs a decoded Entry with its id, returned by Iterate and
// SearchByType.
type IteratedEntry struct {
	ID    uuid.UUID
	Entry Entry
}

// BackupFromRamLake bulk-puts entries. Each Put is committed on its own;
// there is no separate flush step after the batch.
func (s *Store) BackupFromRamLake(entries []IteratedEntry) (int, error) {
	count := 0
	for _, e := range entries {
		if err := s.Put(e.ID, e.Entry); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Compact issues the SQLite-native analogue of RocksDB's compact_range.
func (s *Store) Compact() error {
	if _, err := s.db.Exec(`PRAGMA incremental_vacuum`); err != nil {
		return apperrors.IO("failed to run incremental vacuum", err)
	}
	if _, err := s.db.Exec(`VACUUM`); err != nil {
		return apperrors.IO("failed to run vacuum", err)
	}

	s.mu.Lock()
	s.lastCompaction = time.Now()
	s.hasCompacted = true
	s.mu.Unlock()
	return nil
}

// Metrics returns a value-copy snapshot of the store's current state.
func (s *Store) Metrics() Metrics {
	s.mu.RLock()
	count := s.entryCount
	lastCompaction := s.lastCompaction
	hasCompacted := s.hasCompacted
	s.mu.RUnlock()

	var totalSize uint64
	_ = s.db.QueryRow(`SELECT COALESCE(SUM(LENGTH(value)), 0) FROM entries`).Scan(&totalSize)

	return Metrics{
		TotalSize:      totalSize,
		EntryCount:     count,
		LastCompaction: lastCompaction,
		HasCompacted:   hasCompacted,
		WritesPerSec:   s.writesPerSec(),
		ReadsPerSec:    s.readsPerSec(),
	}
}

func (s *Store) recordWrite() {
	s.rateMu.Lock()
	s.writes++
	s.rateMu.Unlock()
}

func (s *Store) recordRead() {
	s.rateMu.Lock()
	s.reads++
	s.rateMu.Unlock()
}

func (s *Store) writesPerSec() float64 {
	s.rateMu.Lock()
	defer s.rateMu.Unlock()
	elapsed := time.Since(s.rateStart).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.writes) / elapsed
}

func (s *Store) readsPerSec() float64 {
	s.rateMu.Lock()
	defer s.rateMu.Unlock()
	elapsed := time.Since(s.rateStart).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.reads) / elapsed
}
