package journal

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/jera/internal/filestore"
)

// Watch starts an fsnotify watcher on the photos root and processes file
// change events until ctx is cancelled. An image removed behind the app's
// back (file manager, rm) is recorded as a deletion with reason
// "external", so the index never points at files that no longer exist.
//
// New year/month directories created at runtime are automatically added to
// the watch list.
func Watch(ctx context.Context, svc *Service, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := svc.photos.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			// New directories (year/month folders) join the watch list.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					}
				}
				continue
			}

			if !strings.HasSuffix(ev.Name, ".jpg") {
				continue
			}

			// fsnotify fires Rename on the old path; either way the file
			// is gone from this path.
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				handleExternalRemove(svc, logger, ev.Name)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// handleExternalRemove records a deletion for an image that vanished from
// the photos tree. The deciding live-capture check happens inside
// RecordExternalDeletion's critical section, so an event arriving late
// for a removal the journal performed itself (retake, manual delete)
// writes nothing.
func handleExternalRemove(svc *Service, logger *slog.Logger, path string) {
	id := filestore.Stem(path)

	recorded, err := svc.RecordExternalDeletion(id)
	if err != nil {
		logger.Warn("watcher: record external deletion failed",
			slog.String("id", id), slog.String("error", err.Error()))
		return
	}
	if recorded {
		logger.Info("watcher: recorded external deletion", slog.String("id", id))
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
