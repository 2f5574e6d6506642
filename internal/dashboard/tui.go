package dashboard

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/postdevai/postdevai/internal/hybrid"
)

// TUIRenderer renders a live-updating metrics panel with bubbletea.
type TUIRenderer struct {
	cfg Config
}

// NewTUIRenderer creates a TUI dashboard renderer.
func NewTUIRenderer(cfg Config) *TUIRenderer {
	return &TUIRenderer{cfg: cfg}
}

// Run builds a bubbletea program over src and blocks until it exits or
// ctx is canceled.
func (r *TUIRenderer) Run(ctx context.Context, src MetricsSource) error {
	interval := r.cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}

	styles := GetStyles(r.cfg.NoColor || DetectNoColor())
	model := newDashboardModel(src, interval, styles)

	var opts []tea.ProgramOption
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	opts = append(opts, tea.WithAltScreen())

	program := tea.NewProgram(model, opts...)

	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	_, err := program.Run()
	if err == tea.ErrProgramKilled {
		return nil
	}
	return err
}

type tickMsg time.Time

type dashboardModel struct {
	src       MetricsSource
	interval  time.Duration
	styles    Styles
	cacheHit  *Sparkline
	ramVsPers *Sparkline
	metrics   hybrid.Metrics
	quitting  bool
}

func newDashboardModel(src MetricsSource, interval time.Duration, styles Styles) *dashboardModel {
	return &dashboardModel{
		src:       src,
		interval:  interval,
		styles:    styles,
		cacheHit:  NewSparkline(40),
		ramVsPers: NewSparkline(40),
	}
}

func (m *dashboardModel) Init() tea.Cmd {
	return m.tickCmd()
}

func (m *dashboardModel) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}
	case tickMsg:
		m.metrics = m.src.Metrics()
		m.cacheHit.Add(m.metrics.CacheHitRate * 100)
		if m.metrics.TotalEntries > 0 {
			m.ramVsPers.Add(float64(m.metrics.RAMEntries) / float64(m.metrics.TotalEntries) * 100)
		}
		return m, m.tickCmd()
	}
	return m, nil
}

func (m *dashboardModel) View() string {
	if m.quitting {
		return ""
	}

	lines := []string{
		m.styles.Header.Render("postdevaid — memory engine"),
		"",
		m.row("Total entries", fmt.Sprintf("%d", m.metrics.TotalEntries)),
		m.row("RAM Lake entries", fmt.Sprintf("%d", m.metrics.RAMEntries)),
		m.row("Persistent entries", fmt.Sprintf("%d", m.metrics.PersistentEntries)),
		m.row("Cache hit rate", fmt.Sprintf("%.1f%%", m.metrics.CacheHitRate*100)),
		m.row("Last sync", m.lastSync()),
		"",
		m.styles.Dim.Render("cache hit % ─ ") + m.styles.Sparkline.Render(m.cacheHit.Render()),
		m.styles.Dim.Render("RAM share %  ─ ") + m.styles.Sparkline.Render(m.ramVsPers.Render()),
		"",
		m.styles.Dim.Render("press q to quit"),
	}

	content := strings.Join(lines, "\n")
	return m.styles.Panel.Render(content)
}

func (m *dashboardModel) lastSync() string {
	if !m.metrics.HasSynced {
		return "never"
	}
	return m.metrics.LastSync.Format("15:04:05")
}

func (m *dashboardModel) row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		m.styles.Label.Render(fmt.Sprintf("%-20s", label)),
		m.styles.Value.Render(value))
}
