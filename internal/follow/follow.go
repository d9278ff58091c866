package follow

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"

	"github.com/evalrelay/evalrelay/pkg/types"
)

// ReadFile parses every complete line of the JSONL file at path and calls
// emit for each item. Malformed lines are logged and skipped.
func ReadFile(path string, emit func(types.TelemetryItem)) error {
	f := New(path)
	if err := f.drain(emit); err != nil {
		return fmt.Errorf("follow: read %s: %w", path, err)
	}
	return nil
}

// Follower tails a JSONL results file and emits items appended to it.
type Follower struct {
	path   string
	offset int64
}

// New creates a Follower starting at the beginning of the file.
func New(path string) *Follower {
	return &Follower{path: path}
}

// Run emits every item already in the file, then watches for writes and
// emits newly appended items until ctx is cancelled. Each complete line is
// emitted exactly once.
func (f *Follower) Run(ctx context.Context, emit func(types.TelemetryItem)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("follow: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(f.path); err != nil {
		return fmt.Errorf("follow: watch %s: %w", f.path, err)
	}

	slog.Info("follow: tailing results file", "path", f.path)

	// Catch up on content written before the watch started.
	if err := f.drain(emit); err != nil {
		slog.Warn("follow: initial read failed", "path", f.path, "err", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Appenders emit Write. Atomic-save writers replace the inode,
			// which surfaces as Create, Rename or Remove on the watched path.
			replaced := event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove)
			if !event.Has(fsnotify.Write) && !replaced {
				continue
			}
			if replaced {
				// The watch followed the old inode; re-add the path so
				// writes to the replacement file are still delivered.
				if err := watcher.Add(f.path); err != nil {
					slog.Warn("follow: re-watch failed", "path", f.path, "err", err)
					continue
				}
			}
			if err := f.drain(emit); err != nil {
				slog.Warn("follow: read failed, keeping offset", "path", f.path, "err", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("follow: watcher error", "path", f.path, "err", err)
		}
	}
}

// drain reads complete lines from the current offset, emitting each parsed
// item. The offset only advances past newline-terminated lines, so a
// partially written trailing line is re-read on the next drain. A file
// smaller than the offset was truncated or replaced and is read from the
// beginning again.
func (f *Follower) drain(emit func(types.TelemetryItem)) error {
	file, err := os.Open(f.path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	if info.Size() < f.offset {
		slog.Warn("follow: file truncated or replaced, restarting from the beginning",
			"path", f.path, "size", info.Size(), "offset", f.offset)
		f.offset = 0
	}

	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return err
	}

	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			// No trailing newline yet; the writer is mid-append.
			return nil
		}
		if err != nil {
			return err
		}

		f.offset += int64(len(line))

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		var item types.TelemetryItem
		if err := json.Unmarshal(line, &item); err != nil {
			slog.Warn("follow: skipping malformed line", "path", f.path, "err", err)
			continue
		}
		emit(item)
	}
}
