package esbuild

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/spabuild/internal/bundler"
	"git.home.luguber.info/inful/spabuild/internal/diagnostics"
	ferrors "git.home.luguber.info/inful/spabuild/internal/foundation/errors"
	"git.home.luguber.info/inful/spabuild/internal/logfields"
)

// handle keeps an esbuild incremental context alive between passes. The
// filesystem watcher is only started once Changes is first called, so one-shot
// builds never pay for it.
type handle struct {
	bctx api.BuildContext
	cfg  bundler.BuildConfig

	mu        sync.Mutex
	changes   chan struct{}
	watcher   *fsnotify.Watcher
	watchOnce sync.Once
	closeOnce sync.Once
	closed    bool
	pumpDone  chan struct{}
	// ignored directories never produce change notifications.
	ignored []string
}

func newHandle(bctx api.BuildContext, cfg bundler.BuildConfig) *handle {
	return &handle{
		bctx:    bctx,
		cfg:     cfg.Clone(),
		changes: make(chan struct{}, 1),
		ignored: []string{cfg.OutputDir},
	}
}

// IgnorePaths excludes dirs from the change feed. Directories already being
// watched stay registered with fsnotify but their events are dropped.
func (h *handle) IgnorePaths(dirs ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, d := range dirs {
		d = filepath.Clean(d)
		if !slices.Contains(h.ignored, d) {
			h.ignored = append(h.ignored, d)
		}
	}
}

func (h *handle) isIgnored(path string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return withinAny(path, h.ignored)
}

func (h *handle) Rebuild(ctx context.Context) (diagnostics.Report, error) {
	stop := context.AfterFunc(ctx, h.bctx.Cancel)
	defer stop()

	result := h.bctx.Rebuild()
	if err := ctx.Err(); err != nil {
		return diagnostics.Report{}, ferrors.EngineFailure("esbuild pass canceled").WithCause(err).Build()
	}
	report := diagnostics.Report{
		Errors:   messages(result.Errors),
		Warnings: messages(result.Warnings),
	}
	if len(result.Errors) > 0 {
		return report, nil
	}
	if err := writeOutput(h.cfg, result.OutputFiles); err != nil {
		return diagnostics.Report{}, ferrors.EngineFailure("write esbuild output").
			WithCause(err).
			WithContext("output_dir", h.cfg.OutputDir).
			Build()
	}
	return report, nil
}

func (h *handle) Changes() <-chan struct{} {
	h.watchOnce.Do(h.startWatcher)
	return h.changes
}

func (h *handle) startWatcher() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("Cannot start file watcher; changes will not trigger rebuilds", logfields.Error(err))
		return
	}
	skip := slices.Clone(h.ignored)
	for _, root := range h.watchRoots() {
		addDirsRecursive(w, root, skip)
	}
	h.watcher = w
	h.pumpDone = make(chan struct{})
	go h.pump(w)
}

// watchRoots returns the existing source and public roots, dropping one that
// is nested in the other.
func (h *handle) watchRoots() []string {
	var roots []string
	for _, r := range []string{h.cfg.SourceRoot, h.cfg.PublicRoot} {
		if st, err := os.Stat(r); r == "" || err != nil || !st.IsDir() {
			continue
		}
		roots = append(roots, r)
	}
	if len(roots) == 2 {
		switch {
		case within(roots[1], roots[0]):
			return roots[:1]
		case within(roots[0], roots[1]):
			return roots[1:]
		}
	}
	return roots
}

func (h *handle) pump(w *fsnotify.Watcher) {
	defer close(h.pumpDone)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if shouldIgnoreEvent(ev.Name) || h.isIgnored(ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Create == fsnotify.Create {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					h.mu.Lock()
					skip := slices.Clone(h.ignored)
					h.mu.Unlock()
					addDirsRecursive(w, ev.Name, skip)
				}
			}
			slog.Debug("Source change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
			// The consumer coalesces; a full buffer already carries a pending notification.
			select {
			case h.changes <- struct{}{}:
			default:
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			slog.Warn("File watcher error", logfields.Error(err))
		}
	}
}

func (h *handle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		w := h.watcher
		h.mu.Unlock()
		if w != nil {
			err = w.Close()
			<-h.pumpDone
		}
		h.bctx.Dispose()
		close(h.changes)
	})
	return err
}

func addDirsRecursive(w *fsnotify.Watcher, root string, skip []string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == "node_modules" || withinAny(path, skip) || (path != root && strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			if err := w.Add(path); err != nil {
				slog.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
			}
		}
		return nil
	})
}

// shouldIgnoreEvent reports hidden files and editor temp files.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") ||
		strings.HasPrefix(base, "#") ||
		strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx")
}

func withinAny(p string, dirs []string) bool {
	for _, d := range dirs {
		if within(p, d) {
			return true
		}
	}
	return false
}

func within(p, dir string) bool {
	if dir == "" {
		return false
	}
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
