// Package server owns policy snapshot reloads: a config-file watcher and a
// SIGHUP handler, both rebuilding the snapshot and swapping it atomically.
// A reload that fails to parse keeps the running policy.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/bridgewarden/bridgewarden/internal/config"
	"github.com/bridgewarden/bridgewarden/internal/detect"
	"github.com/bridgewarden/bridgewarden/internal/policy"
)

const debounceDelay = 500 * time.Millisecond

// Target receives rebuilt snapshots.
type Target interface {
	Swap(snap *policy.Snapshot)
}

// Reloader rebuilds the policy snapshot when the config file changes or the
// process receives SIGHUP.
type Reloader struct {
	watcher *fsnotify.Watcher
	target  Target
	cfgPath string
	log     *zap.Logger
}

// NewReloader watches cfgPath. An empty or missing path disables the file
// watcher; SIGHUP still works.
func NewReloader(target Target, cfgPath string, log *zap.Logger) (*Reloader, error) {
	if log == nil {
		log = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("server: create watcher: %w", err)
	}
	if cfgPath != "" {
		if _, err := os.Stat(cfgPath); err == nil {
			if err := watcher.Add(cfgPath); err != nil {
				watcher.Close()
				return nil, fmt.Errorf("server: watch %q: %w", cfgPath, err)
			}
		}
	}
	return &Reloader{watcher: watcher, target: target, cfgPath: cfgPath, log: log}, nil
}

// Run blocks until ctx is cancelled. File writes are debounced so an editor
// save (write + rename + chmod) triggers one reload, not three.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case <-hup:
			r.Reload()

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceDelay, r.Reload)
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.log.Warn("config watcher error", zap.Error(err))
		}
	}
}

// Reload rebuilds the snapshot from disk and installs it. Errors leave the
// previous snapshot in place.
func (r *Reloader) Reload() {
	cfg, hash, err := config.LoadWithHash(r.cfgPath)
	if err != nil {
		r.log.Error("reload failed, keeping current policy", zap.Error(err))
		return
	}
	packs, err := detect.Load()
	if err != nil {
		r.log.Error("rule pack load failed, keeping current policy", zap.Error(err))
		return
	}
	r.target.Swap(policy.NewSnapshot(cfg, hash, packs))
}
