// Package watch re-aligns pairs whenever one of their images changes on
// disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/ironsheep/slider-align/internal/align"
	"github.com/ironsheep/slider-align/internal/config"
)

// DefaultDebounce is how long a pair must stay quiet before it is re-run.
// Editors and cameras often write a file in several steps.
const DefaultDebounce = 500 * time.Millisecond

// AlignFunc aligns one pair.
type AlignFunc func(ctx context.Context, pair config.Pair) (*align.Outcome, error)

// Watcher monitors the directories of a set of pairs.
type Watcher struct {
	pairs    []config.Pair
	byPath   map[string][]int
	dirs     []string
	run      AlignFunc
	debounce time.Duration
	log      *zap.Logger

	// Evict, when set, is called with the absolute path of every changed
	// image before its pair is re-run.
	Evict func(path string)
	// OnResult receives every re-run result.
	OnResult func(pair config.Pair, out *align.Outcome, err error)
}

// New returns a Watcher for pairs. Image paths are resolved to absolute
// paths so they can be matched against event names.
func New(pairs []config.Pair, run AlignFunc, debounce time.Duration, log *zap.Logger) (*Watcher, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no pairs to watch")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = zap.NewNop()
	}

	w := &Watcher{
		pairs:    pairs,
		byPath:   make(map[string][]int),
		run:      run,
		debounce: debounce,
		log:      log,
	}
	dirs := make(map[string]bool)
	for i, p := range pairs {
		for _, path := range []string{p.Before, p.After} {
			abs, err := filepath.Abs(path)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
			}
			w.byPath[abs] = append(w.byPath[abs], i)
			dirs[filepath.Dir(abs)] = true
		}
	}
	for d := range dirs {
		w.dirs = append(w.dirs, d)
	}
	sort.Strings(w.dirs)
	return w, nil
}

// Dirs returns the watched directories.
func (w *Watcher) Dirs() []string {
	return w.dirs
}

// Run watches until ctx is cancelled. Pairs are re-run one at a time on
// the calling goroutine; a failing run is reported and watching
// continues.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()

	for _, dir := range w.dirs {
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.log.Info("watching directory", zap.String("dir", dir))
	}

	due := make(chan int, len(w.pairs))
	var (
		mu     sync.Mutex
		timers = make(map[int]*time.Timer)
	)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()

	schedule := func(i int) {
		mu.Lock()
		defer mu.Unlock()
		// A fired timer is re-armed by Reset.
		if t, ok := timers[i]; ok {
			t.Reset(w.debounce)
			return
		}
		timers[i] = time.AfterFunc(w.debounce, func() {
			select {
			case due <- i:
			case <-ctx.Done():
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !relevant(event.Op) {
				continue
			}
			path := filepath.Clean(event.Name)
			idx, ok := w.byPath[path]
			if !ok {
				continue
			}
			w.log.Debug("image changed", zap.String("path", path), zap.Stringer("op", event.Op))
			if w.Evict != nil {
				w.Evict(path)
			}
			for _, i := range idx {
				schedule(i)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", zap.Error(err))

		case i := <-due:
			w.realign(ctx, i)
		}
	}
}

func (w *Watcher) realign(ctx context.Context, i int) {
	pair := w.pairs[i]
	w.log.Info("re-aligning pair", zap.String("pair", pair.Name))
	out, err := w.run(ctx, pair)
	if err != nil {
		w.log.Error("re-alignment failed", zap.String("pair", pair.Name), zap.Error(err))
	}
	if w.OnResult != nil {
		w.OnResult(pair, out, err)
	}
}

// relevant reports whether an event can change an image's content.
// Removal is ignored: the pair is re-run when the file comes back.
func relevant(op fsnotify.Op) bool {
	return op.Has(fsnotify.Create) || op.Has(fsnotify.Write) || op.Has(fsnotify.Rename)
}
