// Package dashboard implements a read-only terminal dashboard over the
// hybrid memory engine's metrics. It is a pure consumer of
// hybrid.Memory.Metrics() — polled on a timer — with no write path back
// into the engine.
package dashboard

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/postdevai/postdevai/internal/hybrid"
)

// MetricsSource is the subset of hybrid.Memory the dashboard depends on.
type MetricsSource interface {
	Metrics() hybrid.Metrics
}

// Config configures a dashboard renderer.
type Config struct {
	Output       io.Writer
	ForcePlain   bool
	NoColor      bool
	PollInterval time.Duration
}

// ConfigOption modifies a Config.
type ConfigOption func(*Config)

// WithForcePlain forces the plain text renderer regardless of TTY detection.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) { c.ForcePlain = force }
}

// WithNoColor disables color output in the TUI renderer.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

// WithPollInterval sets how often metrics are re-read.
func WithPollInterval(d time.Duration) ConfigOption {
	return func(c *Config) { c.PollInterval = d }
}

// NewConfig builds a Config with defaults, then applies opts.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output, PollInterval: time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Renderer is implemented by both the TUI and plain dashboard renderers.
type Renderer interface {
	// Run blocks, polling src and redrawing until ctx is canceled.
	Run(ctx context.Context, src MetricsSource) error
}

// NewRenderer picks a TUI renderer for interactive terminals and a plain
// renderer for pipes, CI, or when ForcePlain is set.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}
	return NewTUIRenderer(cfg)
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor reports whether NO_COLOR is set in the environment.
func DetectNoColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

// DetectCI reports whether a common CI environment variable is set to a
// non-empty value.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}
