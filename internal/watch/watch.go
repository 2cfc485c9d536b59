// Package watch links one local file to a remote file and uploads a new
// version whenever the local copy settles after a change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	apperrors "github.com/alexjbarnes/sealbox/internal/errors"
	"github.com/alexjbarnes/sealbox/internal/models"
)

const (
	// DefaultInterval is how often pending changes are checked.
	DefaultInterval = 500 * time.Millisecond

	// DefaultQuiet is how long the file must be unchanged before upload.
	DefaultQuiet = 300 * time.Millisecond
)

// Updater uploads a new version of a remote file.
type Updater interface {
	UpdateFile(ctx context.Context, fileID string, data []byte) (models.FileMetadata, error)
}

// Options configures a Watcher.
type Options struct {
	Logger   *slog.Logger
	Interval time.Duration
	Quiet    time.Duration
}

// Watcher uploads the local file at path as new versions of fileID.
type Watcher struct {
	path     string
	fileID   string
	updater  Updater
	logger   *slog.Logger
	interval time.Duration
	quiet    time.Duration
}

// New creates a Watcher. path is resolved to an absolute path.
func New(path, fileID string, updater Updater, opts Options) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}

	if opts.Quiet <= 0 {
		opts.Quiet = DefaultQuiet
	}

	return &Watcher{
		path:     abs,
		fileID:   fileID,
		updater:  updater,
		logger:   logger.With(slog.String("path", abs), slog.String("file_id", fileID)),
		interval: opts.Interval,
		quiet:    opts.Quiet,
	}, nil
}

// Watch blocks until ctx is cancelled. The parent directory is watched
// rather than the file so editors that save by rename are followed.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}

	w.logger.Info("file watcher started")

	var changed time.Time

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed unexpectedly")
			}

			if event.Name != w.path {
				continue
			}

			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				changed = time.Now()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed unexpectedly")
			}

			w.logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-ticker.C:
			if changed.IsZero() || time.Since(changed) < w.quiet {
				continue
			}

			changed = time.Time{}
			w.push(ctx)
		}
	}
}

func (w *Watcher) push(ctx context.Context) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.logger.Warn("reading file", slog.String("error", err.Error()))
		}

		return
	}

	f, err := w.updater.UpdateFile(ctx, w.fileID, data)

	switch {
	case err == nil:
		w.logger.Info("version uploaded",
			slog.String("version_id", f.VersionID),
			slog.Int("bytes", len(data)),
		)
	case errors.Is(err, apperrors.ErrFileContentNotChanged):
		w.logger.Debug("content unchanged, skipping upload")
	default:
		w.logger.Warn("uploading version failed",
			slog.String("kind", apperrors.KindOf(err).String()),
			slog.String("error", err.Error()),
		)
	}
}
