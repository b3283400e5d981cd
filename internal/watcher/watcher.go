package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"twig-cs-formatter/internal/filewalker"
	"twig-cs-formatter/internal/pipeline"
	"twig-cs-formatter/internal/textutil"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher reformats templates in place when they are saved.
type Watcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	formatter pipeline.DocumentFormatter
	root      string
	ctx       context.Context

	mu sync.Mutex
	// written holds the hash of the content this watcher last wrote per path,
	// so the resulting write event is not formatted again.
	written map[string]string
}

// New creates a watcher for templates under root.
func New(formatter pipeline.DocumentFormatter, root string, debounce time.Duration) (*Watcher, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root path: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		watcher:   fsw,
		formatter: formatter,
		root:      root,
		ctx:       context.Background(),
		written:   make(map[string]string),
	}
	w.debouncer = NewDebouncer(debounce, w.formatAll)
	return w, nil
}

// AddRecursive watches dir and all its subdirectories.
func (w *Watcher) AddRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != dir && filewalker.SkipDir(info.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Run watches the root until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.ctx = ctx
	if err := w.AddRecursive(w.root); err != nil {
		return err
	}
	defer w.debouncer.Stop()
	defer w.watcher.Close()

	log.Info().Str("root", w.root).Msg("Watching templates")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("File watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !filewalker.SkipDir(info.Name()) {
				if err := w.AddRecursive(event.Name); err != nil {
					log.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch new directory")
				}
			}
			return
		}
	}

	if filewalker.IsTemplate(event.Name) {
		w.debouncer.Add(event.Name)
	}
}

func (w *Watcher) formatAll(paths []string) {
	for _, path := range paths {
		if _, err := w.FormatFile(w.ctx, path); err != nil {
			log.Error().Err(err).Str("file", path).Msg("Formatting error")
		}
	}
}

// FormatFile formats one template in place. It reports whether the file
// was rewritten.
func (w *Watcher) FormatFile(ctx context.Context, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	text := string(data)
	hash := textutil.Hash(text)

	w.mu.Lock()
	self := w.written[path] == hash
	w.mu.Unlock()
	if self {
		log.Debug().Str("file", path).Msg("Skipping self-written template")
		return false, nil
	}

	formatted, err := w.formatter.Format(ctx, pipeline.Request{
		Text:          text,
		Path:          path,
		WorkspaceRoot: w.root,
	})
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	w.written[path] = textutil.Hash(formatted)
	w.mu.Unlock()

	if formatted == text {
		return false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(formatted), info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}

	log.Info().Str("file", path).Msg("Formatted template")
	return true, nil
}
