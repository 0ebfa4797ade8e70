// Package control lets another parari process signal a running one through
// files in the run's control directory.
package control

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ShayCichocki/parari/internal/errors"
	"github.com/ShayCichocki/parari/internal/logging"
)

// CancelFile is the file whose appearance asks the run to cancel.
const CancelFile = "cancel"

// DefaultPollInterval is how often the watcher re-checks the directory.
// Polling backs up fsnotify, which can miss events or be unavailable.
const DefaultPollInterval = time.Second

// Signal is a request delivered through the control directory.
type Signal int

const (
	SignalCancel Signal = iota
)

func (s Signal) String() string {
	switch s {
	case SignalCancel:
		return "cancel"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// DefaultRunsDir returns ~/.parari/runs.
func DefaultRunsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".parari", "runs"), nil
}

// RunDir returns the control directory for runID under root.
func RunDir(root, runID string) string {
	return filepath.Join(root, runID)
}

// SendCancel asks the run owning dir to cancel. It fails if the directory
// does not exist, which means the run is not active.
func SendCancel(dir string) error {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		if err == nil {
			err = os.ErrNotExist
		}
		return errors.NewFilesystemError("open control directory", dir, err)
	}
	path := filepath.Join(dir, CancelFile)
	if err := os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644); err != nil {
		return errors.NewFilesystemError("write cancel signal", path, err)
	}
	return nil
}

// Watcher delivers signals written to a run's control directory.
type Watcher struct {
	dir      string
	poll     time.Duration
	noNotify bool
	log      *logging.Logger
	watcher  *fsnotify.Watcher
	signals  chan Signal
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	mu        sync.Mutex
	cancelled bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) { w.poll = d }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *Watcher) { w.log = l }
}

// WithoutFSNotify disables fsnotify so only polling is used (for testing).
func WithoutFSNotify() Option {
	return func(w *Watcher) { w.noNotify = true }
}

// NewWatcher creates dir and starts watching it.
func NewWatcher(dir string, opts ...Option) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.NewFilesystemError("create control directory", dir, err)
	}

	w := &Watcher{
		dir:     dir,
		poll:    DefaultPollInterval,
		log:     logging.NopLogger(),
		signals: make(chan Signal, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.poll <= 0 {
		w.poll = DefaultPollInterval
	}

	if !w.noNotify {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			w.log.Warn("fsnotify unavailable, polling control directory", "error", err)
		} else if err := watcher.Add(dir); err != nil {
			w.log.Warn("cannot watch control directory, polling instead", "dir", dir, "error", err)
			watcher.Close()
		} else {
			w.watcher = watcher
		}
	}

	w.check()
	go w.loop()
	return w, nil
}

// Dir returns the control directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Signals delivers each signal once.
func (w *Watcher) Signals() <-chan Signal {
	return w.signals
}

// Cancelled reports whether a cancel signal has been seen.
func (w *Watcher) Cancelled() bool {
	w.check()
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancelled
}

func (w *Watcher) loop() {
	defer close(w.stopped)

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	var events chan fsnotify.Event
	var errs chan error
	if w.watcher != nil {
		events = w.watcher.Events
		errs = w.watcher.Errors
	}

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Base(event.Name) == CancelFile && event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.fire()
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.log.Debug("control watcher error", "error", err)
		case <-ticker.C:
			w.check()
		}
	}
}

// check looks for the cancel file directly in case an event was missed.
func (w *Watcher) check() {
	if _, err := os.Stat(filepath.Join(w.dir, CancelFile)); err == nil {
		w.fire()
	}
}

func (w *Watcher) fire() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelled {
		return
	}
	w.cancelled = true
	w.log.Info("cancel requested through control directory", "dir", w.dir)
	select {
	case w.signals <- SignalCancel:
	default:
	}
}

// Close stops watching. The directory is left in place.
func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		if w.watcher != nil {
			err = w.watcher.Close()
		}
		<-w.stopped
	})
	return err
}

// Remove stops watching and deletes the control directory.
func (w *Watcher) Remove() error {
	closeErr := w.Close()
	if err := os.RemoveAll(w.dir); err != nil {
		return errors.NewFilesystemError("remove control directory", w.dir, err)
	}
	return closeErr
}
