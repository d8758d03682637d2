package logsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/nfrund/actwatch/internal/domain"
	"github.com/spf13/afero"
)

// DefaultRefreshInterval is how often the directory is rescanned for a newer
// log file when no filesystem notification arrives.
const DefaultRefreshInterval = 60 * time.Second

// Follower tails the newest file in a directory and switches to newer files as
// they appear. Only one file is read at a time, so lines are delivered in
// order.
type Follower struct {
	fs     afero.Fs
	dir    string
	logger *slog.Logger

	startAtEnd      bool
	pollInterval    time.Duration
	refreshInterval time.Duration
	watch           bool

	readyOnce sync.Once
	ready     chan struct{}
}

// Option configures a Follower.
type Option func(*Follower)

// WithStartAtEnd skips the existing content of the first file.
func WithStartAtEnd(b bool) Option {
	return func(f *Follower) { f.startAtEnd = b }
}

func WithPollInterval(d time.Duration) Option {
	return func(f *Follower) {
		if d > 0 {
			f.pollInterval = d
		}
	}
}

func WithRefreshInterval(d time.Duration) Option {
	return func(f *Follower) {
		if d > 0 {
			f.refreshInterval = d
		}
	}
}

// WithWatcher enables or disables fsnotify. It defaults to on for the OS
// filesystem and off otherwise.
func WithWatcher(b bool) Option {
	return func(f *Follower) { f.watch = b }
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Follower) {
		if l != nil {
			f.logger = l
		}
	}
}

func NewFollower(fs afero.Fs, dir string, opts ...Option) *Follower {
	_, isOS := fs.(*afero.OsFs)
	f := &Follower{
		fs:              fs,
		dir:             dir,
		logger:          slog.Default().With("component", "logsource"),
		startAtEnd:      true,
		pollInterval:    DefaultPollInterval,
		refreshInterval: DefaultRefreshInterval,
		watch:           isOS,
		ready:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Ready is closed once the first log file has been opened.
func (f *Follower) Ready() <-chan struct{} { return f.ready }

type running struct {
	path   string
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *running) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func (r *running) stop() {
	r.cancel()
	<-r.done
}

// Run follows the directory until ctx is done. It fails only when the directory
// cannot be read at startup; everything later is logged and retried.
func (f *Follower) Run(ctx context.Context, onLine func(string)) error {
	if _, err := afero.ReadDir(f.fs, f.dir); err != nil {
		return fmt.Errorf("read log directory %q: %w", f.dir, err)
	}

	changes := f.startWatcher(ctx)
	ticker := time.NewTicker(f.refreshInterval)
	defer ticker.Stop()

	var cur *running
	defer func() {
		if cur != nil {
			cur.stop()
		}
	}()

	for {
		path, err := LatestFile(f.fs, f.dir)
		switch {
		case errors.Is(err, domain.ErrNoLogFiles):
			f.logger.Debug("Waiting for a log file", "dir", f.dir)
		case err != nil:
			f.logger.Warn("Failed to scan log directory", "dir", f.dir, "error", err)
		case cur == nil || cur.path != path || cur.finished():
			startAtEnd := f.startAtEnd
			if cur != nil {
				cur.stop()
				if cur.path != path {
					startAtEnd = false
				}
			}
			cur = f.start(ctx, path, startAtEnd, onLine)
		}

		for waiting := true; waiting; {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				waiting = false
			case name := <-changes:
				// Appends to the current file need no rescan.
				waiting = name != "" && cur != nil && !cur.finished() && filepath.Clean(name) == cur.path
			}
		}
	}
}

func (f *Follower) start(ctx context.Context, path string, startAtEnd bool, onLine func(string)) *running {
	tctx, cancel := context.WithCancel(ctx)
	r := &running{path: path, cancel: cancel, done: make(chan struct{})}

	t, err := NewTailer(f.fs, path, TailOptions{StartAtEnd: startAtEnd, PollInterval: f.pollInterval})
	if err != nil {
		f.logger.Error("Failed to create tailer", "path", path, "error", err)
		close(r.done)
		return r
	}

	f.logger.Info("Following log file", "path", path, "start_at_end", startAtEnd)
	go func() {
		select {
		case <-t.Ready():
			f.readyOnce.Do(func() { close(f.ready) })
		case <-tctx.Done():
		}
	}()
	go func() {
		defer close(r.done)
		if err := t.Run(tctx, onLine); err != nil {
			f.logger.Warn("Tailer stopped", "path", path, "error", err)
		}
	}()
	return r
}

// startWatcher forwards write notifications as the written path and create
// notifications as "". It returns nil when watching is disabled or
// unavailable, leaving the periodic refresh as the only trigger.
func (f *Follower) startWatcher(ctx context.Context) <-chan string {
	if !f.watch {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.logger.Warn("Failed to create file system watcher", "error", err)
		return nil
	}
	if err := watcher.Add(f.dir); err != nil {
		f.logger.Warn("Failed to watch log directory", "dir", f.dir, "error", err)
		watcher.Close()
		return nil
	}

	changes := make(chan string, 1)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				switch {
				case ev.Has(fsnotify.Create):
					// A new file always forces a rescan, replacing any
					// pending write notification.
					select {
					case <-changes:
					default:
					}
					changes <- ""
				case ev.Has(fsnotify.Write):
					select {
					case changes <- ev.Name:
					default:
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.logger.Error("File system watcher error", "error", err)
			}
		}
	}()

	f.logger.Debug("Started file system watcher", "dir", f.dir)
	return changes
}
