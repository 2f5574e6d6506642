package dashboard

import (
	"context"
	"fmt"
	"time"
)

// PlainRenderer prints one metrics line per poll tick, for CI, pipes, or
// --plain. It never clears or repaints the terminal.
type PlainRenderer struct {
	cfg Config
}

// NewPlainRenderer creates a plain text dashboard renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{cfg: cfg}
}

// Run polls src.Metrics() on cfg.PollInterval and writes a summary line
// until ctx is canceled.
func (r *PlainRenderer) Run(ctx context.Context, src MetricsSource) error {
	interval := r.cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.print(src)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.print(src)
		}
	}
}

func (r *PlainRenderer) print(src MetricsSource) {
	m := src.Metrics()

	sync := "never"
	if m.HasSynced {
		sync = m.LastSync.Format("15:04:05")
	}

	_, _ = fmt.Fprintf(r.cfg.Output,
		"total=%d ram=%d persistent=%d cache_hit=%.1f%% last_sync=%s\n",
		m.TotalEntries, m.RAMEntries, m.PersistentEntries, m.CacheHitRate*100, sync)
}
