package ramlake

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// burstDebounceWindow mirrors the teacher watcher's debounce window: a run
// of writes within this span counts as one burst rather than many.
const burstDebounceWindow = 500 * time.Millisecond

// burstDetector watches RamLake's base path for a dense run of writes and
// signals on its channel once per debounce window. It is an optional
// nudge for the backup scheduler, never a correctness requirement.
type burstDetector struct {
	watcher *fsnotify.Watcher
	signal  chan struct{}

	mu      sync.Mutex
	timer   *time.Timer
	closed  bool
	closeCh chan struct{}
}

// newBurstDetector starts watching root's four sub-store directories
// non-recursively; they are flat, so one watch on each is sufficient to
// observe write activity. The base path itself is not watched.
func newBurstDetector(root string) (*burstDetector, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	bd := &burstDetector{
		watcher: w,
		signal:  make(chan struct{}, 1),
		closeCh: make(chan struct{}),
	}

	for _, sub := range []string{"vectors", "code", "history", "metadata"} {
		if err := w.Add(filepath.Join(root, sub)); err != nil {
			slog.Warn("burst detector could not watch subdirectory",
				slog.String("dir", sub), slog.String("error", err.Error()))
		}
	}

	go bd.run()
	return bd, nil
}

func (bd *burstDetector) run() {
	for {
		select {
		case _, ok := <-bd.watcher.Events:
			if !ok {
				return
			}
			bd.debounce()
		case _, ok := <-bd.watcher.Errors:
			if !ok {
				return
			}
		case <-bd.closeCh:
			return
		}
	}
}

// debounce schedules a single signal emission after the debounce window,
// restarting the window on every new event.
func (bd *burstDetector) debounce() {
	bd.mu.Lock()
	defer bd.mu.Unlock()
	if bd.closed {
		return
	}
	if bd.timer != nil {
		bd.timer.Stop()
	}
	bd.timer = time.AfterFunc(burstDebounceWindow, func() {
		select {
		case bd.signal <- struct{}{}:
		default:
		}
	})
}

func (bd *burstDetector) close() {
	bd.mu.Lock()
	if bd.closed {
		bd.mu.Unlock()
		return
	}
	bd.closed = true
	if bd.timer != nil {
		bd.timer.Stop()
	}
	bd.mu.Unlock()

	close(bd.closeCh)
	_ = bd.watcher.Close()
}

// burstLoop forwards burst signals into an early, rate-limited backup.
func (rl *RamLake) burstLoop(ctx context.Context) {
	defer rl.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-rl.burstDetector.signal:
			rl.maybeBackupEarly()
		}
	}
}
