package fetch

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"netmirror/internal/topo"
)

// FileSource reads snapshots from a JSON file using the same wire format
// as the producer endpoint. It exists for offline replay: a captured
// snapshot file can drive the twin without a live producer.
type FileSource struct {
	path     string
	debounce time.Duration
}

// NewFileSource creates a file-backed snapshot source.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path, debounce: 500 * time.Millisecond}
}

// WithDebounce sets the change-notification debounce duration.
func (f *FileSource) WithDebounce(d time.Duration) *FileSource {
	f.debounce = d
	return f
}

// Read loads, decodes and validates the current file contents.
func (f *FileSource) Read() (*topo.Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	snap, err := topo.Decode(data)
	if err != nil {
		return nil, err
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

// Watch blocks until the context is cancelled, invoking onChange after
// each debounced write to the snapshot file. The parent directory is
// watched rather than the file itself, so editors that replace the file
// still trigger notifications.
func (f *FileSource) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(f.path)
	filename := filepath.Base(f.path)

	if err := watcher.Add(dir); err != nil {
		return err
	}

	log.Printf("Watching %s for snapshot changes", f.path)

	var debounceTimer *time.Timer

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(f.debounce, func() {
					log.Printf("Snapshot file changed: %s", f.path)
					onChange()
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("Snapshot watcher error: %v", err)

		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return ctx.Err()
		}
	}
}
