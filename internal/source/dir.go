// Package source fills engines from outside data: a directory tree whose
// relative paths are the candidates, and a PostgreSQL table of (id, text)
// rows.
package source

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

const batchSize = 1024

// Pusher receives candidates. fuzzmatch.Handle implements it.
type Pusher interface {
	PushAll(payloads [][]byte, ids []uint32) error
}

// Identity is the FNV-32a hash of a slash-separated relative path. Two
// directory sources rooted at different places share this identity space,
// so the same relative path joins across them.
func Identity(rel string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(rel))
	return h.Sum32()
}

// Dir pushes the files below root as relative slash paths. Each identity is
// pushed at most once; a path whose hash collides with an earlier one is
// skipped with a warning.
type Dir struct {
	root   string
	target Pusher
	logger *slog.Logger

	mu    sync.Mutex
	seen  map[uint32]string
	batch [][]byte
	ids   []uint32
}

func NewDir(root string, target Pusher) *Dir {
	return &Dir{
		root:   filepath.Clean(root),
		target: target,
		logger: slog.Default().With("component", "dir-source", "root", root),
		seen:   make(map[uint32]string),
	}
}

func ignoreDir(name string) bool {
	switch name {
	case ".git", "node_modules", "vendor":
		return true
	}
	return false
}

// Load walks the tree once and returns the number of files pushed.
func (d *Dir) Load(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.walkLocked(ctx, d.root)
	if err != nil {
		return n, err
	}
	if err := d.flushLocked(); err != nil {
		return n, err
	}
	d.logger.Info("directory loaded", "files", n)
	return n, nil
}

func (d *Dir) walkLocked(ctx context.Context, start string) (int, error) {
	pushed := 0
	err := filepath.WalkDir(start, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			d.logger.Debug("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry.IsDir() {
			if path != d.root && ignoreDir(entry.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		ok, err := d.addLocked(path)
		if ok {
			pushed++
		}
		return err
	})
	if err != nil {
		return pushed, fmt.Errorf("walking %s: %w", start, err)
	}
	return pushed, nil
}

func (d *Dir) addLocked(path string) (bool, error) {
	rel, err := filepath.Rel(d.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false, nil
	}
	rel = filepath.ToSlash(rel)
	id := Identity(rel)
	if prev, dup := d.seen[id]; dup {
		if prev != rel {
			d.logger.Warn("identity collision, skipping path", "path", rel, "existing", prev, "identity", id)
		}
		return false, nil
	}
	d.seen[id] = rel
	d.batch = append(d.batch, []byte(rel))
	d.ids = append(d.ids, id)
	if len(d.batch) >= batchSize {
		return true, d.flushLocked()
	}
	return true, nil
}

func (d *Dir) flushLocked() error {
	if len(d.batch) == 0 {
		return nil
	}
	err := d.target.PushAll(d.batch, d.ids)
	d.batch, d.ids = nil, nil
	if err != nil {
		return fmt.Errorf("pushing paths: %w", err)
	}
	return nil
}

// Watch pushes files created below root until ctx is done. Removed files
// stay in the engine since the store is append-only.
func (d *Dir) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	if err := d.addWatches(fsw, d.root); err != nil {
		return err
	}
	d.logger.Info("watching for new files")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := d.handleCreate(ctx, fsw, event.Name); err != nil {
				d.logger.Warn("failed to add created path", "path", event.Name, "error", err)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			d.logger.Warn("watcher error", "error", err)
		}
	}
}

func (d *Dir) handleCreate(ctx context.Context, fsw *fsnotify.Watcher, path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case info.IsDir():
		if ignoreDir(info.Name()) {
			return nil
		}
		if err := d.addWatches(fsw, path); err != nil {
			return err
		}
		// files may land before the watch on the new directory is active
		if _, err := d.walkLocked(ctx, path); err != nil {
			return err
		}
	case info.Mode().IsRegular():
		if _, err := d.addLocked(path); err != nil {
			return err
		}
	}
	return d.flushLocked()
}

func (d *Dir) addWatches(fsw *fsnotify.Watcher, start string) error {
	return filepath.WalkDir(start, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || !entry.IsDir() {
			return nil
		}
		if path != d.root && ignoreDir(entry.Name()) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}
