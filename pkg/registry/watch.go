package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/axle/pkg/observability"
)

// ReloadFunc reloads one registry from its durable document.
type ReloadFunc func(ctx context.Context) error

type watchTarget struct {
	backing *FileBacking
	reload  ReloadFunc
	lastMod time.Time
}

// Watcher detects external changes to registry documents and triggers
// reloads. Two detection paths feed the same reload: filesystem notifications
// and a scheduled modification-time poll at the configured check interval.
// The poll covers filesystems where notifications are unreliable.
//
// A registry's own commits also touch the data file, so a commit is followed
// by one redundant reload; loads are idempotent and coalesced inside the
// services.
type Watcher struct {
	logger   *observability.Logger
	fsw      *fsnotify.Watcher
	cron     *cron.Cron
	interval time.Duration

	mu      sync.Mutex
	targets map[string]*watchTarget // data file path -> target
	watched map[string]struct{}     // directories already added to fsnotify
	done    chan struct{}
}

// NewWatcher creates a watcher. A zero interval disables the scheduled poll
// and leaves only filesystem notifications.
func NewWatcher(logger *observability.Logger, interval time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	w := &Watcher{
		logger:   logger,
		fsw:      fsw,
		cron:     cron.New(),
		interval: interval,
		targets:  make(map[string]*watchTarget),
		watched:  make(map[string]struct{}),
		done:     make(chan struct{}),
	}
	if interval > 0 {
		if _, err := w.cron.AddFunc(fmt.Sprintf("@every %s", interval), w.poll); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to schedule check interval: %w", err)
		}
	}
	return w, nil
}

// Watch registers a registry backing for change detection. The parent
// directory is watched rather than the file itself, because atomic commits
// replace the file by rename.
func (w *Watcher) Watch(backing *FileBacking, reload ReloadFunc) error {
	path := backing.Path()
	mod, err := backing.ModTime()
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	dir := filepath.Dir(path)
	if _, ok := w.watched[dir]; !ok {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch registry directory: %w", err)
		}
		w.watched[dir] = struct{}{}
	}
	w.targets[path] = &watchTarget{backing: backing, reload: reload, lastMod: mod}
	return nil
}

// Start begins delivering reloads. Call Stop to shut down.
func (w *Watcher) Start() {
	w.cron.Start()
	go w.loop()
}

// Stop halts the poll schedule and the notification loop.
func (w *Watcher) Stop(ctx context.Context) error {
	stopped := w.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			w.mu.Lock()
			target := w.targets[event.Name]
			w.mu.Unlock()
			if target != nil {
				w.fire(event.Name, target)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("filesystem watcher error")
		}
	}
}

// poll compares modification times against the last observed ones and fires
// reloads for changed documents.
func (w *Watcher) poll() {
	w.mu.Lock()
	paths := make(map[string]*watchTarget, len(w.targets))
	for path, target := range w.targets {
		paths[path] = target
	}
	w.mu.Unlock()

	for path, target := range paths {
		mod, err := target.backing.ModTime()
		if err != nil {
			w.logger.WithError(err).WithField("path", path).Warn("check interval stat failed")
			continue
		}
		w.mu.Lock()
		changed := mod.After(target.lastMod)
		w.mu.Unlock()
		if changed {
			w.fire(path, target)
		}
	}
}

func (w *Watcher) fire(path string, target *watchTarget) {
	if err := target.reload(context.Background()); err != nil {
		w.logger.WithError(err).WithField("path", path).Error("registry reload failed")
		return
	}
	if mod, err := target.backing.ModTime(); err == nil {
		w.mu.Lock()
		target.lastMod = mod
		w.mu.Unlock()
	}
	w.logger.WithField("path", path).Info("registry reloaded after external change")
}
