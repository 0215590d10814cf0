// Package watch re-runs an action whenever a watched file changes. It backs
// the watch command, which keeps the installed units in sync with the
// drontab as it is edited.
package watch

import (
	"context"
	"hash/fnv"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"dron/pkg/logx"
)

// Watcher observes one file and invokes OnChange after edits settle.
type Watcher struct {
	path string
	log  logx.Logger

	// OnChange runs after the debounce window. Errors are logged, not fatal;
	// the next edit gets another chance.
	OnChange func(ctx context.Context) error

	// Debounce delays the callback so editors that write in several steps
	// trigger one run. Zero means 250ms.
	Debounce time.Duration

	// lastHash skips callback runs when the file content did not actually
	// change (editors love redundant write events).
	mu       sync.Mutex
	lastHash uint64
}

func New(path string, log logx.Logger, onChange func(ctx context.Context) error) *Watcher {
	return &Watcher{path: path, log: log, OnChange: onChange}
}

// Run watches until ctx is done. The watcher directory is observed rather
// than the file itself so rename-replace saves keep working.
//
// When fsnotify gets into a bad state the watcher may stop delivering events
// or close its channels. Self-heal by recreating the watcher with a small
// exponential backoff.
func (w *Watcher) Run(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)

	const (
		restartBackoffBase = 250 * time.Millisecond
		restartBackoffMax  = 5 * time.Second
	)
	backoff := restartBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	debounceDelay := w.Debounce
	if debounceDelay <= 0 {
		debounceDelay = 250 * time.Millisecond
	}

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		w.log.Debug("change detected; scheduling run", logx.String("path", w.path))
		timer = time.AfterFunc(debounceDelay, func() {
			if !w.changed() {
				w.log.Debug("content unchanged; skipping run", logx.String("path", w.path))
				return
			}
			if err := w.OnChange(ctx); err != nil {
				w.log.Warn("watch run failed", logx.String("path", w.path), logx.Err(err))
			}
		})
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		fw, err := fsnotify.NewWatcher()
		if err != nil {
			w.log.Warn("watch init failed", logx.Err(err), logx.String("dir", dir))
			if !w.sleep(ctx, nextBackoff(&backoff, restartBackoffMax, rng)) {
				return nil
			}
			continue
		}
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			w.log.Warn("watch add failed", logx.Err(err), logx.String("dir", dir))
			if !w.sleep(ctx, nextBackoff(&backoff, restartBackoffMax, rng)) {
				return nil
			}
			continue
		}

		// success; reset backoff so transient issues don't cause long restart delays
		backoff = restartBackoffBase
		w.log.Debug("watcher started", logx.String("dir", dir), logx.String("file", file))

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = fw.Close()
				return nil
			case ev, ok := <-fw.Events:
				if !ok {
					broken = true
					break
				}
				if strings.EqualFold(filepath.Base(ev.Name), file) {
					if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Chmod) != 0 {
						debounce()
					}
				}
			case err, ok := <-fw.Errors:
				if !ok {
					broken = true
					break
				}
				if err == nil {
					continue
				}
				// Overflow means we may have missed events; run once and keep going.
				if strings.Contains(strings.ToLower(err.Error()), "overflow") {
					w.log.Warn("watch overflow; forcing run", logx.Err(err), logx.String("dir", dir))
					debounce()
					continue
				}
				w.log.Warn("watch error", logx.Err(err), logx.String("dir", dir))
				if strings.Contains(strings.ToLower(err.Error()), "closed") {
					broken = true
					break
				}
			}
		}

		_ = fw.Close()
		if ctx.Err() != nil {
			return nil
		}
		wait := nextBackoff(&backoff, restartBackoffMax, rng)
		w.log.Warn("watcher stopped; restarting",
			logx.String("dir", dir),
			logx.String("file", file),
			logx.Duration("backoff", wait),
		)
		if !w.sleep(ctx, wait) {
			return nil
		}
	}
}

// changed hashes the file and reports whether its content differs from the
// last run. A read failure counts as changed so the callback can surface it.
func (w *Watcher) changed() bool {
	b, err := os.ReadFile(w.path)
	if err != nil {
		w.mu.Lock()
		w.lastHash = 0
		w.mu.Unlock()
		return true
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	sum := h.Sum64()

	w.mu.Lock()
	defer w.mu.Unlock()
	if sum == w.lastHash && sum != 0 {
		return false
	}
	w.lastHash = sum
	return true
}

func (w *Watcher) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func nextBackoff(backoff *time.Duration, max time.Duration, rng *rand.Rand) time.Duration {
	wait := *backoff + time.Duration(rng.Int63n(int64(*backoff/2)+1))
	if *backoff < max {
		*backoff *= 2
		if *backoff > max {
			*backoff = max
		}
	}
	return wait
}
