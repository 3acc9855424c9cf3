package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/nodius/graphsync/errors"
)

// ReloadCallback receives a freshly reloaded Config.
type ReloadCallback func(*Config) error

// Watcher watches the config file on disk and reloads non-structural fields
// (log level, allowed origins, rate limits) without a process restart.
// Fields that shape goroutine topology at startup, like Cluster.BasePort,
// are read once at boot; a change to them has no effect until restart.
type Watcher struct {
	path     string
	log      *zap.SugaredLogger
	fsw      *fsnotify.Watcher
	mu       sync.Mutex
	cbs      []ReloadCallback
	debounce time.Duration
	timer    *time.Timer
}

// NewWatcher creates a Watcher for the config file at path. It does not
// start watching until Start is called.
func NewWatcher(path string, log *zap.SugaredLogger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating fsnotify watcher")
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "watching config file %s", path)
	}
	return &Watcher{
		path:     path,
		log:      log,
		fsw:      fsw,
		debounce: 500 * time.Millisecond,
	}, nil
}

// OnReload registers a callback invoked after every successful reload.
func (w *Watcher) OnReload(cb ReloadCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cbs = append(w.cbs, cb)
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop closes the underlying fsnotify watcher.
func (w *Watcher) Stop() error {
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warnw("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.log.Errorw("config reload failed", "path", w.path, "error", err)
		return
	}
	w.log.Infow("config reloaded", "path", w.path)

	w.mu.Lock()
	cbs := make([]ReloadCallback, len(w.cbs))
	copy(cbs, w.cbs)
	w.mu.Unlock()

	for _, cb := range cbs {
		if err := cb(cfg); err != nil {
			w.log.Warnw("config reload callback failed", "error", err)
		}
	}
}
