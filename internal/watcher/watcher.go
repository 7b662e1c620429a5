// Package watcher monitors the forms directory so mappings for new or
// changed templates are generated ahead of the first fill request.
package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// TemplateEvent announces a form template that appeared or changed.
type TemplateEvent struct {
	Path        string
	FormType    string
	FormVersion string
}

// Watcher emits TemplateEvents for PDF files in a directory.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	debounce time.Duration
}

// New creates a directory watcher.
func New(logger *zap.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{watcher: w, logger: logger, debounce: 2 * time.Second}, nil
}

// Watch starts monitoring the directory and emits events until the context
// is cancelled. Rapid create+write sequences for the same file collapse into
// one event.
func (w *Watcher) Watch(ctx context.Context, dir string) (<-chan TemplateEvent, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	events := make(chan TemplateEvent, 16)

	go func() {
		defer close(events)
		lastSeen := make(map[string]time.Time)

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !strings.EqualFold(filepath.Ext(event.Name), ".pdf") {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				now := time.Now()
				if last, seen := lastSeen[event.Name]; seen && now.Sub(last) < w.debounce {
					continue
				}
				lastSeen[event.Name] = now

				formType, formVersion := TemplateKey(event.Name)
				w.logger.Info("form template detected",
					zap.String("path", event.Name),
					zap.String("form_type", formType),
					zap.String("form_version", formVersion))

				select {
				case events <- TemplateEvent{Path: event.Name, FormType: formType, FormVersion: formVersion}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watch error", zap.Error(err))
			}
		}
	}()

	return events, nil
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// TemplateKey derives the (form type, form version) cache key from a
// template file name: "<type>-<version>.pdf", with the version defaulting
// to v1 when the name has no dash.
func TemplateKey(path string) (string, string) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if idx := strings.LastIndex(base, "-"); idx > 0 && idx < len(base)-1 {
		return base[:idx], base[idx+1:]
	}
	return base, "v1"
}
