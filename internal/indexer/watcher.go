package indexer

import (
	"log/slog"
	"sync"
	"time"

	"github.com/rjeczalik/notify"
)

const (
	eventBufferSize        = 64
	defaultDebounceTimeout = 500 * time.Millisecond
)

// Watcher turns raw filesystem events under the watch root into debounced
// nudges for the poll loop. It carries no event detail: a nudge only means
// "snapshot sooner", the snapshot pipeline decides what actually changed.
type Watcher struct {
	watchDir string
	events   chan notify.EventInfo
	nudges   chan struct{}
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer

	done chan struct{}
	wg   sync.WaitGroup
}

func NewWatcher(watchDir string) *Watcher {
	return &Watcher{
		watchDir: watchDir,
		nudges:   make(chan struct{}, 1),
		debounce: defaultDebounceTimeout,
		done:     make(chan struct{}),
	}
}

// SetDebounce adjusts how long a burst of events is coalesced before one
// nudge is emitted.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

func (w *Watcher) Start() error {
	w.events = make(chan notify.EventInfo, eventBufferSize)

	recursivePath := w.watchDir + "/..."
	if err := notify.Watch(recursivePath, w.events, notify.Create, notify.Write, notify.Remove, notify.Rename); err != nil {
		return err
	}

	slog.Info("fs watcher start", "dir", w.watchDir)
	w.wg.Add(1)
	go w.forwardEvents()
	return nil
}

func (w *Watcher) Stop() {
	close(w.done)
	if w.events != nil {
		notify.Stop(w.events)
	}
	w.wg.Wait()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	slog.Debug("fs watcher stopped")
}

// Nudges delivers at most one pending wake-up; bursts coalesce.
func (w *Watcher) Nudges() <-chan struct{} {
	return w.nudges
}

func (w *Watcher) forwardEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.events:
			if !ok {
				return
			}
			slog.Debug("fs event", "event", event.Event(), "path", event.Path())
			w.scheduleNudge()
		}
	}
}

// scheduleNudge resets the debounce timer; writes during a burst keep
// pushing the nudge out until the burst settles.
func (w *Watcher) scheduleNudge() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.nudges <- struct{}{}:
		default:
		}
	})
}
