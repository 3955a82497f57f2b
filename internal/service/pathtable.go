package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"prdash/internal/domain"
)

// PathTable holds the operator-configured transition steps, reloaded
// live when the backing file changes. A missing or empty path means an
// empty table, which is a valid configuration.
type PathTable struct {
	mu     sync.RWMutex
	path   string
	steps  []domain.PathStep
	logger *slog.Logger
}

type pathFile struct {
	Steps []domain.PathStep `yaml:"steps"`
}

// LoadPathTable reads the table from path. A missing file yields an
// empty table; a malformed file is an error.
func LoadPathTable(path string, logger *slog.Logger) (*PathTable, error) {
	table := &PathTable{path: path, logger: logger}
	if err := table.reload(); err != nil {
		return nil, err
	}
	return table, nil
}

// Steps returns a copy of the current step list.
func (t *PathTable) Steps() []domain.PathStep {
	t.mu.RLock()
	defer t.mu.RUnlock()

	steps := make([]domain.PathStep, len(t.steps))
	copy(steps, t.steps)
	return steps
}

func (t *PathTable) reload() error {
	if t.path == "" {
		return nil
	}

	// #nosec G304 -- path table location comes from operator config
	data, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		t.mu.Lock()
		t.steps = nil
		t.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("read path table %s: %w", t.path, err)
	}

	var parsed pathFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("unmarshal path table yaml: %w", err)
	}

	t.mu.Lock()
	t.steps = parsed.Steps
	t.mu.Unlock()
	return nil
}

// Watch reloads the table whenever the file is rewritten. It blocks
// until the context is cancelled. Watching the directory rather than
// the file survives editors that replace the file on save.
func (t *PathTable) Watch(ctx context.Context) error {
	if t.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create path table watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(t.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(t.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := t.reload(); err != nil {
				t.logger.Error("path table reload failed", "path", t.path, "error", err)
				continue
			}
			t.logger.Info("path table reloaded", "path", t.path, "steps", len(t.Steps()))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.logger.Error("path table watcher error", "error", err)
		}
	}
}
