// Package ramlake implements the RAM Lake coordinator: the writable,
// size-budgeted in-memory tier owning the vector, code, history, and
// metadata stores.
package ramlake

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/postdevai/postdevai/internal/apperrors"
	"github.com/postdevai/postdevai/internal/store"
)

// StoreAllocation divides the total RAM Lake budget among its four
// sub-stores as fractional shares. Shares must sum to 1.0 within 1e-3.
type StoreAllocation struct {
	Vectors  float64 `yaml:"vectors"`
	Code     float64 `yaml:"code"`
	History  float64 `yaml:"history"`
	Metadata float64 `yaml:"metadata"`
}

// Sum returns the sum of all four shares.
func (a StoreAllocation) Sum() float64 {
	return a.Vectors + a.Code + a.History + a.Metadata
}

// Validate reports InvalidInput if the shares don't sum to 1.0±1e-3 or any
// share is negative.
func (a StoreAllocation) Validate() error {
	if a.Vectors < 0 || a.Code < 0 || a.History < 0 || a.Metadata < 0 {
		return apperrors.InvalidInput("store allocation shares must be non-negative")
	}
	if math.Abs(a.Sum()-1.0) > 1e-3 {
		return apperrors.InvalidInput(fmt.Sprintf("store allocation shares must sum to 1.0, got %f", a.Sum()))
	}
	return nil
}

// Config configures a RamLake instance.
type Config struct {
	BasePath          string          `yaml:"base_path"`
	TotalSize         uint64          `yaml:"total_size"`
	Allocation        StoreAllocation `yaml:"allocation"`
	UseHNSW           bool            `yaml:"use_hnsw"`
	BackupPath        string          `yaml:"backup_path"`
	BackupInterval    time.Duration   `yaml:"backup_interval"`
	MinBackupInterval time.Duration   `yaml:"min_backup_interval"`
	MaxBackups        int             `yaml:"max_backups"`
	WatchForBursts    bool            `yaml:"watch_for_bursts"`
}

// Metrics is a value-copy snapshot of RAM Lake's current state.
type Metrics struct {
	TotalSize         uint64
	UsedSize          uint64
	VectorStoreSize   uint64
	CodeStoreSize     uint64
	HistoryStoreSize  uint64
	MetadataStoreSize uint64
	IndexedFiles      int
	VectorEntries     int
	HistoryEvents     int
}

// RamLake owns the four RAM-resident sub-stores on a writable base
// directory, plus a backup scheduler and a metrics snapshotter.
type RamLake struct {
	cfg     Config
	vectors store.VectorStore
	code    *store.CodeStore
	history *store.HistoryStore
	meta    *store.MetadataStore

	metricsMu sync.RWMutex
	metrics   Metrics

	backupMu      sync.Mutex
	lastBackup    time.Time
	burstDetector *burstDetector

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a RamLake rooted at cfg.BasePath, creating its subdirectories
// and loading any existing persisted state.
func New(cfg Config) (*RamLake, error) {
	if err := cfg.Allocation.Validate(); err != nil {
		return nil, err
	}
	if cfg.TotalSize == 0 {
		return nil, apperrors.InvalidInput("ramlake total size must be positive")
	}

	for _, sub := range []string{"vectors", "code", "history", "metadata"} {
		if err := os.MkdirAll(filepath.Join(cfg.BasePath, sub), 0o755); err != nil {
			return nil, apperrors.IO(fmt.Sprintf("failed to create %s directory", sub), err)
		}
	}

	var vs store.VectorStore
	if cfg.UseHNSW {
		vs = store.NewHNSWVectorStore()
	} else {
		vs = store.NewBruteForceVectorStore()
	}

	rl := &RamLake{
		cfg:     cfg,
		vectors: vs,
		code:    store.NewCodeStore(),
		history: store.NewHistoryStore(),
		meta:    store.NewMetadataStore(),
	}

	if err := rl.vectors.Load(filepath.Join(cfg.BasePath, "vectors")); err != nil {
		return nil, err
	}
	if err := rl.code.Load(filepath.Join(cfg.BasePath, "code")); err != nil {
		return nil, err
	}
	if err := rl.history.Load(filepath.Join(cfg.BasePath, "history")); err != nil {
		return nil, err
	}
	if err := rl.meta.Load(filepath.Join(cfg.BasePath, "metadata")); err != nil {
		return nil, err
	}

	rl.refreshMetrics()
	return rl, nil
}

// budgetFor returns the byte budget for one sub-store given its share.
func (rl *RamLake) budgetFor(share float64) uint64 {
	return uint64(float64(rl.cfg.TotalSize) * share)
}

// Start launches the backup scheduler, burst detector, and metrics
// refresh loop. It returns immediately; background work stops on ctx
// cancellation or Close.
func (rl *RamLake) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	rl.cancel = cancel

	rl.wg.Add(1)
	go rl.metricsLoop(ctx)

	rl.wg.Add(1)
	go rl.backupLoop(ctx)

	if rl.cfg.WatchForBursts {
		bd, err := newBurstDetector(rl.cfg.BasePath)
		if err != nil {
			slog.Warn("ram lake burst detector unavailable, running on timer alone",
				slog.String("error", err.Error()))
		} else {
			rl.burstDetector = bd
			rl.wg.Add(1)
			go rl.burstLoop(ctx)
		}
	}
}

// Close stops all background tasks and waits for them to finish. It
// always returns nil.
func (rl *RamLake) Close() error {
	if rl.cancel != nil {
		rl.cancel()
	}
	if rl.burstDetector != nil {
		rl.burstDetector.close()
	}
	rl.wg.Wait()
	return nil
}

// --- Vector Store pass-through ---

// IndexVector stores a vector under id, enforcing the vector store's share
// of the total budget.
func (rl *RamLake) IndexVector(id uuid.UUID, vector []float32) error {
	budget := rl.budgetFor(rl.cfg.Allocation.Vectors)
	if rl.vectors.Size()+uint64(len(vector))*4+64 > budget {
		return apperrors.OverBudget(uint64(len(vector))*4+64, budget)
	}
	return rl.vectors.Store(id, vector)
}

// GetVector returns the vector stored under id.
func (rl *RamLake) GetVector(id uuid.UUID) ([]float32, bool) {
	return rl.vectors.Get(id)
}

// DeleteVector removes the vector stored under id.
func (rl *RamLake) DeleteVector(id uuid.UUID) error {
	return rl.vectors.Delete(id)
}

// SearchSimilar returns the k nearest neighbors to query by cosine
// similarity.
func (rl *RamLake) SearchSimilar(query []float32, k int) ([]store.VectorResult, error) {
	return rl.vectors.Search(query, k)
}

// --- Code Store pass-through ---

// StoreCode stores path-addressed code, enforcing the code store's share of
// the total budget.
func (rl *RamLake) StoreCode(path, content, language string) (uuid.UUID, error) {
	budget := rl.budgetFor(rl.cfg.Allocation.Code)
	delta := int64(len(content))
	if existing, err := rl.code.GetByPath(path); err == nil {
		delta -= int64(existing.Size)
	}
	if delta > 0 && rl.code.Size()+uint64(delta) > budget {
		return uuid.Nil, apperrors.OverBudget(uint64(delta), budget)
	}
	return rl.code.Store(path, content, language)
}

// GetCode returns the code entry for id.
func (rl *RamLake) GetCode(id uuid.UUID) (*store.CodeEntry, error) {
	return rl.code.Get(id)
}

// GetCodeByPath returns the code entry stored at path.
func (rl *RamLake) GetCodeByPath(path string) (*store.CodeEntry, error) {
	return rl.code.GetByPath(path)
}

// DeleteCode removes the code entry for id.
func (rl *RamLake) DeleteCode(id uuid.UUID) error {
	return rl.code.Delete(id)
}

// FindCodeByPathPattern returns code entries whose path matches a glob.
func (rl *RamLake) FindCodeByPathPattern(pattern string) []*store.CodeEntry {
	return rl.code.FindByPathPattern(pattern)
}

// --- History Store pass-through ---

// StoreEvent appends an event with optional source/severity metadata,
// enforcing the history store's share of the total budget. source and
// severity may be nil to mean "absent".
func (rl *RamLake) StoreEvent(eventType, content string, source, severity *string) (uuid.UUID, error) {
	return rl.history.AppendWithMetadata(eventType, content, source, severity, rl.budgetFor(rl.cfg.Allocation.History))
}

// GetEvent returns the event for id.
func (rl *RamLake) GetEvent(id uuid.UUID) (*store.HistoryEvent, error) {
	return rl.history.Get(id)
}

// DeleteEvent removes the event for id.
func (rl *RamLake) DeleteEvent(id uuid.UUID) error {
	return rl.history.Delete(id)
}

// RecentEvents returns up to n most-recent events, newest first.
func (rl *RamLake) RecentEvents(n int) []*store.HistoryEvent {
	return rl.history.Recent(n)
}

// FindEventsByType returns every event of eventType, oldest first.
func (rl *RamLake) FindEventsByType(eventType string) []*store.HistoryEvent {
	return rl.history.FindByType(eventType)
}

// FindEventsByTimestampRange returns every event within [start, end].
func (rl *RamLake) FindEventsByTimestampRange(start, end time.Time) []*store.HistoryEvent {
	return rl.history.FindByTimestampRange(start, end)
}

// FindEventsBySeverity returns every event whose severity matches.
func (rl *RamLake) FindEventsBySeverity(severity string) []*store.HistoryEvent {
	return rl.history.FindBySeverity(severity)
}

// FindEventsBySource returns every event whose source matches.
func (rl *RamLake) FindEventsBySource(source string) []*store.HistoryEvent {
	return rl.history.FindBySource(source)
}

// --- Metadata Store pass-through ---

// AddRelation inserts source-[label]->target.
func (rl *RamLake) AddRelation(source uuid.UUID, label string, target uuid.UUID) error {
	return rl.meta.AddRelation(source, label, target)
}

// RemoveRelation deletes source-[label]->target.
func (rl *RamLake) RemoveRelation(source uuid.UUID, label string, target uuid.UUID) error {
	return rl.meta.RemoveRelation(source, label, target)
}

// RelatedEntities returns the union of every entity reachable from any of
// ids by one edge, optionally filtered to a single label, excluding ids
// themselves.
func (rl *RamLake) RelatedEntities(ids []uuid.UUID, label *string) []uuid.UUID {
	return rl.meta.RelatedEntities(ids, label)
}

// Neighbors returns every relation touching id in either direction,
// optionally filtered to a single label.
func (rl *RamLake) Neighbors(id uuid.UUID, label *string) []store.Relation {
	return rl.meta.Neighbors(id, label)
}

// ForwardRelations returns every relation with id as source, optionally
// filtered to a single label.
func (rl *RamLake) ForwardRelations(id uuid.UUID, label *string) []store.Relation {
	return rl.meta.Forward(id, label)
}

// BackwardRelations returns every relation with id as target, optionally
// filtered to a single label.
func (rl *RamLake) BackwardRelations(id uuid.UUID, label *string) []store.Relation {
	return rl.meta.Backward(id, label)
}

// RelationsByLabel returns every relation whose label exactly matches.
func (rl *RamLake) RelationsByLabel(label string) []store.Relation {
	return rl.meta.ByLabel(label)
}

// DeleteEntityRelations removes every relation touching id.
func (rl *RamLake) DeleteEntityRelations(id uuid.UUID) int {
	return rl.meta.DeleteEntityRelations(id)
}

// FindEntitiesByRelation returns relations whose label matches a glob.
func (rl *RamLake) FindEntitiesByRelation(pattern string) []store.Relation {
	return rl.meta.FindEntitiesByRelation(pattern)
}

// --- Metrics ---

// Metrics returns a value-copy of the latest metrics snapshot; it never
// blocks on a long-running task.
func (rl *RamLake) Metrics() Metrics {
	rl.metricsMu.RLock()
	defer rl.metricsMu.RUnlock()
	return rl.metrics
}

func (rl *RamLake) refreshMetrics() {
	m := Metrics{
		TotalSize:         rl.cfg.TotalSize,
		VectorStoreSize:   rl.vectors.Size(),
		CodeStoreSize:     rl.code.Size(),
		HistoryStoreSize:  rl.history.Size(),
		MetadataStoreSize: rl.meta.Size(),
		IndexedFiles:      rl.code.Count(),
		VectorEntries:     rl.vectors.Count(),
		HistoryEvents:     rl.history.Count(),
	}
	m.UsedSize = m.VectorStoreSize + m.CodeStoreSize + m.HistoryStoreSize + m.MetadataStoreSize

	rl.metricsMu.Lock()
	rl.metrics = m
	rl.metricsMu.Unlock()
}

func (rl *RamLake) metricsLoop(ctx context.Context) {
	defer rl.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.refreshMetrics()
		}
	}
}
