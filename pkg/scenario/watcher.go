package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ChangeCallback is called with the path of a scenario file that was
// created or written.
type ChangeCallback func(path string) error

// WatcherConfig holds configuration for the watcher
type WatcherConfig struct {
	// Paths are scenario files or directories of scenario files.
	Paths              []string
	StabilityThreshold time.Duration
	OnChange           ChangeCallback
	Logger             zerolog.Logger
}

// Watcher re-reports scenario files when they change on disk. Editors
// often write a file several times in a row, so events are debounced per
// path.
type Watcher struct {
	watcher            *fsnotify.Watcher
	files              map[string]bool
	dirs               map[string]bool
	stabilityThreshold time.Duration
	onChange           ChangeCallback
	logger             zerolog.Logger
	done               chan struct{}
	debounceTimers     map[string]*time.Timer
	debounceMu         sync.Mutex
	stopOnce           sync.Once
}

// NewWatcher creates a new scenario watcher
func NewWatcher(config WatcherConfig) (*Watcher, error) {
	if len(config.Paths) == 0 {
		return nil, fmt.Errorf("no scenario paths to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if config.StabilityThreshold == 0 {
		config.StabilityThreshold = 100 * time.Millisecond
	}

	w := &Watcher{
		watcher:            watcher,
		files:              make(map[string]bool),
		dirs:               make(map[string]bool),
		stabilityThreshold: config.StabilityThreshold,
		onChange:           config.OnChange,
		logger:             config.Logger.With().Str("component", "scenario-watcher").Logger(),
		done:               make(chan struct{}),
		debounceTimers:     make(map[string]*time.Timer),
	}

	for _, path := range config.Paths {
		clean, err := filepath.Abs(path)
		if err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		info, err := os.Stat(clean)
		if err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if info.IsDir() {
			w.dirs[clean] = true
		} else {
			w.files[clean] = true
		}
	}

	return w, nil
}

// Start starts watching. Files are watched through their parent directory
// so atomic saves that replace the file are still seen.
func (w *Watcher) Start() error {
	watched := make(map[string]bool)
	for dir := range w.dirs {
		watched[dir] = true
	}
	for file := range w.files {
		watched[filepath.Dir(file)] = true
	}

	for dir := range watched {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	go w.eventLoop()

	w.logger.Info().
		Int("files", len(w.files)).
		Int("dirs", len(w.dirs)).
		Msg("Scenario watcher started")

	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	var closeErr error
	w.stopOnce.Do(func() {
		close(w.done)

		w.debounceMu.Lock()
		for _, timer := range w.debounceTimers {
			timer.Stop()
		}
		clear(w.debounceTimers)
		w.debounceMu.Unlock()

		if err := w.watcher.Close(); err != nil {
			closeErr = fmt.Errorf("failed to close watcher: %w", err)
			return
		}
		w.logger.Info().Msg("Scenario watcher stopped")
	})
	return closeErr
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !w.matches(event.Name) {
		return
	}
	w.debounceEvent(event.Name)
}

// matches reports whether path is a watched file or a scenario file
// directly inside a watched directory.
func (w *Watcher) matches(path string) bool {
	clean, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if w.files[clean] {
		return true
	}
	base := filepath.Base(clean)
	if strings.HasPrefix(base, ".") || !IsScenarioFile(base) {
		return false
	}
	return w.dirs[filepath.Dir(clean)]
}

func (w *Watcher) debounceEvent(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.debounceTimers[path]; exists {
		timer.Stop()
	}

	w.debounceTimers[path] = time.AfterFunc(w.stabilityThreshold, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()

		select {
		case <-w.done:
			return
		default:
			w.processChange(path)
		}
	})
}

func (w *Watcher) processChange(path string) {
	w.logger.Debug().Str("path", path).Msg("Scenario file changed")
	if w.onChange == nil {
		return
	}
	if err := w.onChange(path); err != nil {
		w.logger.Error().
			Err(err).
			Str("path", path).
			Msg("Error handling scenario change")
	}
}
