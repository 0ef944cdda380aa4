package watcher

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blinkenlights/convertster/internal/config"
	"github.com/blinkenlights/convertster/internal/utils"
	"github.com/blinkenlights/convertster/internal/worker"
	"github.com/fsnotify/fsnotify"
)

// Index records watched files and reports whether their content changed.
type Index interface {
	UpsertIndex(path, md5 string) (changed bool, err error)
}

type Watcher struct {
	cfg    *config.Config
	index  Index
	queue  *worker.Queue
	w      *fsnotify.Watcher
	roots  []string
	mu     sync.Mutex
	paused bool
}

func NewRecursiveWatcher(cfg *config.Config, index Index, q *worker.Queue) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	wr := &Watcher{cfg: cfg, index: index, queue: q, w: w, roots: cfg.WatchDirs}
	return wr, nil
}

// Start registers every directory under the roots and handles events until ctx is done.
func (wr *Watcher) Start(ctx context.Context) error {
	wr.registerAll()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-wr.w.Events:
			if !ok {
				return nil
			}
			wr.handleEvent(ev)
		case err, ok := <-wr.w.Errors:
			if !ok {
				return nil
			}
			log.Printf("[watcher] error: %v", err)
		}
	}
}

func (wr *Watcher) Close() error { return wr.w.Close() }

func (wr *Watcher) Pause()       { wr.mu.Lock(); wr.paused = true; wr.mu.Unlock() }
func (wr *Watcher) Resume()      { wr.mu.Lock(); wr.paused = false; wr.mu.Unlock() }
func (wr *Watcher) Paused() bool { wr.mu.Lock(); defer wr.mu.Unlock(); return wr.paused }

func (wr *Watcher) registerAll() {
	for _, root := range wr.roots {
		wr.addTree(root)
	}
}

func (wr *Watcher) addTree(root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := wr.w.Add(path); err != nil {
				log.Printf("[watcher] Failed to watch %s: %v", path, err)
			}
		}
		return nil
	})
}

func (wr *Watcher) handleEvent(ev fsnotify.Event) {
	// New directories
	if ev.Op&fsnotify.Create != 0 {
		fi, err := os.Stat(ev.Name)
		if err == nil && fi.IsDir() {
			wr.addTree(ev.Name)
			return
		}
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if wr.Paused() || !utils.IsSourceImage(ev.Name) {
		return
	}
	go func(path string) {
		if err := utils.WaitFileStable(path, wr.cfg.StabilityDelay); err != nil {
			log.Printf("[watcher] %s not stable: %v", path, err)
			return
		}
		if _, err := wr.indexAndEnqueue(path); err != nil {
			log.Printf("[watcher] index/enqueue error: %v", err)
		}
	}(ev.Name)
}

// indexAndEnqueue reports whether path was added to the queue.
func (wr *Watcher) indexAndEnqueue(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		return false, err
	}
	digest, err := contentDigest(path, wr.cfg.MD5ChunkSize)
	if err != nil {
		return false, err
	}
	changed, err := wr.index.UpsertIndex(path, digest)
	if err != nil {
		return false, err
	}
	if changed && wr.queue.Enqueue(path) {
		log.Printf("[watcher] Queued %s", path)
		return true, nil
	}
	return false, nil
}

// ScanAll indexes every source image under the roots and queues the changed ones.
// It returns the number of files queued.
func (wr *Watcher) ScanAll(ctx context.Context) (int, error) {
	queued := 0
	start := time.Now()
	for _, root := range wr.roots {
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil || d.IsDir() || !utils.IsSourceImage(path) {
				return nil
			}
			ok, err := wr.indexAndEnqueue(path)
			if err != nil {
				log.Printf("[watcher] scan index error: %v", err)
				return nil
			}
			if ok {
				queued++
			}
			return nil
		})
		if err != nil {
			return queued, err
		}
	}
	log.Printf("[watcher] Scan queued %d file(s) in %v", queued, time.Since(start))
	return queued, nil
}
