package biz

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kart-io/logger"
)

const (
	// watchDebounce coalesces bursts of write events into one notification.
	watchDebounce = 2 * time.Second
	// selfWriteGrace suppresses events caused by this process's own writes.
	selfWriteGrace = 3 * time.Second
)

// ExportWatcher watches the flat text export for edits made outside this
// process and fires a callback so the knowledge base can be resynced.
type ExportWatcher struct {
	export   *ExportFile
	onChange func(ctx context.Context)
	watcher  *fsnotify.Watcher
}

// NewExportWatcher creates a watcher over export. onChange runs after an
// external edit has settled.
func NewExportWatcher(export *ExportFile, onChange func(ctx context.Context)) (*ExportWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, not the file. Atomic rewrites replace the inode
	// and a file watch would silently die on the first rename.
	if err := w.Add(filepath.Dir(export.Path())); err != nil {
		w.Close()
		return nil, err
	}
	return &ExportWatcher{export: export, onChange: onChange, watcher: w}, nil
}

// Run processes events until ctx is cancelled.
func (ew *ExportWatcher) Run(ctx context.Context) {
	target := filepath.Clean(ew.export.Path())
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	pending := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ew.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if time.Since(ew.export.LastLocalWrite()) < selfWriteGrace {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})
		case <-pending:
			logger.Warnw("导出文件被外部修改, 触发全量同步", "path", target)
			ew.onChange(ctx)
		case err, ok := <-ew.watcher.Errors:
			if !ok {
				return
			}
			logger.Errorw("导出文件监听错误", "error", err)
		}
	}
}

// Close stops the underlying watcher.
func (ew *ExportWatcher) Close() error {
	return ew.watcher.Close()
}
