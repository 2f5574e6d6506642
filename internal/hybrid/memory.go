// Package hybrid implements the Hybrid Memory façade: a tiered store that
// writes through to both RAM Lake and the Persistent Store, reads RAM
// Lake first with promotion on a PS hit, and runs background sync and
// metrics loops.
package hybrid

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/postdevai/postdevai/internal/apperrors"
	"github.com/postdevai/postdevai/internal/persistent"
	"github.com/postdevai/postdevai/internal/ramlake"
)

// cacheHitEMAAlpha is the exponential-moving-average smoothing factor
// applied to every read's hit/miss outcome.
const cacheHitEMAAlpha = 0.1

// Config configures a Memory instance.
type Config struct {
	HotRetentionSecs int `yaml:"hot_retention_secs"`
	SyncIntervalSecs int `yaml:"sync_interval_secs"`
	MaxRAMEntries    int `yaml:"max_ram_entries"`
}

// Memory holds shared references to one RamLake and one persistent Store
// plus a mutex-guarded metrics snapshot.
type Memory struct {
	rl  *ramlake.RamLake
	ps  *persistent.Store
	cfg Config

	metricsMu sync.RWMutex
	metrics   Metrics
	cacheHit  float64

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New wires an already-constructed RamLake and persistent Store into a
// Memory façade and takes an initial metrics snapshot from both.
func New(rl *ramlake.RamLake, ps *persistent.Store, cfg Config) *Memory {
	m := &Memory{rl: rl, ps: ps, cfg: cfg}
	m.refreshMetrics()
	return m
}

// Start launches the sync and metrics background loops under an
// errgroup-managed context, so they cancel cleanly on Close.
func (m *Memory) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	m.group = g

	g.Go(func() error {
		m.syncLoop(gctx)
		return nil
	})
	g.Go(func() error {
		m.metricsLoop(gctx)
		return nil
	})
}

// Close cancels the background loops and waits for them to finish.
func (m *Memory) Close() error {
	if m.cancel != nil {
		m.cancel()
	}
	if m.group != nil {
		return m.group.Wait()
	}
	return nil
}

// StoreCode writes a code entry through RL then PS. The RL id is reused
// as the PS key.
func (m *Memory) StoreCode(path, content, language string) (uuid.UUID, error) {
	id, err := m.rl.StoreCode(path, content, language)
	if err != nil {
		return uuid.Nil, err
	}

	err = m.ps.Put(id, persistent.Entry{
		Kind: persistent.KindCode, Path: path, Content: content, Language: language,
		Timestamp: time.Now(),
	})
	return id, err
}

// StoreAndIndexCode stores code (as StoreCode does), indexes embedding
// under the code's own id in RL's vector store, and persists the
// embedding to PS under a fresh id — the code id and the embedding id are
// deliberately distinct. The embedding's metadata carries "code:<path>".
func (m *Memory) StoreAndIndexCode(path, content, language string, embedding []float32) (uuid.UUID, error) {
	id, err := m.StoreCode(path, content, language)
	if err != nil {
		return uuid.Nil, err
	}

	if err := m.rl.IndexVector(id, embedding); err != nil {
		return id, err
	}

	embeddingID := uuid.New()
	err = m.ps.Put(embeddingID, persistent.Entry{
		Kind: persistent.KindEmbedding, Vector: embedding, Metadata: "code:" + path,
		Timestamp: time.Now(),
	})
	return id, err
}

// StoreEvent writes an event through RL then PS, with optional
// source/severity metadata (nil means "absent").
func (m *Memory) StoreEvent(eventType, content string, source, severity *string) (uuid.UUID, error) {
	id, err := m.rl.StoreEvent(eventType, content, source, severity)
	if err != nil {
		return uuid.Nil, err
	}

	err = m.ps.Put(id, persistent.Entry{
		Kind: persistent.KindEvent, EventType: eventType, Content: content,
		Source: source, Severity: severity, Timestamp: time.Now(),
	})
	return id, err
}

// StoreContext persists list under sessionID directly in PS; RL is never
// consulted for context (durability-biased).
func (m *Memory) StoreContext(sessionID uuid.UUID, list []string) error {
	return m.ps.StoreContext(sessionID, list)
}

// GetContext reads session context directly from PS.
func (m *Memory) GetContext(sessionID uuid.UUID) ([]string, error) {
	return m.ps.GetContext(sessionID)
}

// CodeResult is the (path, content, language) triple returned by GetCode.
type CodeResult struct {
	Path     string
	Content  string
	Language string
}

// GetCode tries RL first; on hit it bumps the cache-hit EMA. On miss it
// falls back to PS; a PS hit is re-inserted into RL's code store
// best-effort (promotion failures are ignored) before being returned.
func (m *Memory) GetCode(id uuid.UUID) (CodeResult, error) {
	if entry, err := m.rl.GetCode(id); err == nil {
		m.recordCacheOutcome(true)
		return CodeResult{Path: entry.Path, Content: entry.Content, Language: entry.Language}, nil
	}

	m.recordCacheOutcome(false)
	entry, err := m.ps.Get(id)
	if err != nil {
		return CodeResult{}, apperrors.NotFound("code", id.String())
	}
	if entry.Kind != persistent.KindCode {
		return CodeResult{}, apperrors.NotFound("code", id.String())
	}

	_, _ = m.rl.StoreCode(entry.Path, entry.Content, entry.Language)
	return CodeResult{Path: entry.Path, Content: entry.Content, Language: entry.Language}, nil
}

// SearchSimilar searches RL's vector store only; the minimal contract
// does not extend a short result set into PS.
func (m *Memory) SearchSimilar(embedding []float32, k int) ([]ramlakeVectorResult, error) {
	results, err := m.rl.SearchSimilar(embedding, k)
	if err != nil {
		return nil, err
	}
	out := make([]ramlakeVectorResult, len(results))
	for i, r := range results {
		out[i] = ramlakeVectorResult{ID: r.ID, Score: r.Score}
	}
	return out, nil
}

// ramlakeVectorResult re-exports the fields callers of this façade need
// without binding them to internal/store's package.
type ramlakeVectorResult struct {
	ID    uuid.UUID
	Score float32
}

func (m *Memory) recordCacheOutcome(hit bool) {
	var value float64
	if hit {
		value = 1
	}

	m.metricsMu.Lock()
	m.cacheHit = cacheHitEMAAlpha*value + (1-cacheHitEMAAlpha)*m.cacheHit
	m.metricsMu.Unlock()
}

// RestoreHotData iterates up to limit PS entries (0 means no limit),
// re-inserting Code and Event variants into RL. Embeddings and Contexts
// are not promoted — they are recreated on demand. Returns the number of
// entries promoted.
func (m *Memory) RestoreHotData(limit int) (int, error) {
	entries, err := m.ps.Iterate(limit)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, e := range entries {
		switch e.Entry.Kind {
		case persistent.KindCode:
			if _, err := m.rl.StoreCode(e.Entry.Path, e.Entry.Content, e.Entry.Language); err == nil {
				count++
			}
		case persistent.KindEvent:
			if _, err := m.rl.StoreEvent(e.Entry.EventType, e.Entry.Content, e.Entry.Source, e.Entry.Severity); err == nil {
				count++
			}
		}
	}
	return count, nil
}

// EvictColdData is the contract placeholder for LRU/time-based eviction
// driven by HotRetentionSecs and MaxRAMEntries. The minimal implementation
// the spec permits returns zero and has no observable side effects; doing
// more would require store-level delete-by-age support that no other
// operation needs, so it is left as a hook for an extended implementation.
func (m *Memory) EvictColdData() int {
	return 0
}

// Metrics returns a value-copy snapshot composed from RL and PS metrics.
func (m *Memory) Metrics() Metrics {
	m.metricsMu.RLock()
	defer m.metricsMu.RUnlock()
	return m.metrics
}

func (m *Memory) refreshMetrics() {
	rlMetrics := m.rl.Metrics()
	psMetrics := m.ps.Metrics()

	ramEntries := uint64(rlMetrics.VectorEntries + rlMetrics.IndexedFiles + rlMetrics.HistoryEvents)

	m.metricsMu.Lock()
	m.metrics.RAMEntries = ramEntries
	m.metrics.PersistentEntries = psMetrics.EntryCount
	m.metrics.TotalEntries = ramEntries + psMetrics.EntryCount
	m.metrics.CacheHitRate = m.cacheHit
	m.metricsMu.Unlock()
}

func (m *Memory) metricsLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refreshMetrics()
		}
	}
}

// syncLoop periodically compacts PS and records the sync time. The
// minimal contract requires only periodic compaction; enumerating entries
// modified since the last sync and re-pushing them is left to an extended
// implementation (RL already write-throughs every mutation to PS).
func (m *Memory) syncLoop(ctx context.Context) {
	interval := time.Duration(m.cfg.SyncIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.ps.Compact(); err != nil {
				slog.Warn("persistent store compaction failed", slog.String("error", err.Error()))
			}
			m.metricsMu.Lock()
			m.metrics.LastSync = time.Now()
			m.metrics.HasSynced = true
			m.metricsMu.Unlock()
		}
	}
}
