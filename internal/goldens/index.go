package goldens

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/internal/autonomy"
	"github.com/fyrsmithlabs/steward/internal/vectorstore"
)

// systemUserID owns the goldens collection. Goldens are platform-wide,
// so they live under one synthetic user instead of per-account payloads.
const systemUserID = "system"

// resyncDebounce coalesces bursts of filesystem events (editors write
// several events per save) into one reload.
const resyncDebounce = 500 * time.Millisecond

// Index keeps the goldens collection in sync with a YAML directory and
// serves max-similarity queries for confidence scoring.
type Index struct {
	dir    string
	store  vectorstore.Store
	logger *zap.Logger

	mu      sync.RWMutex
	indexed map[string]Golden // id -> golden currently in the collection

	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewIndex builds the index and performs the initial sync.
func NewIndex(ctx context.Context, dir string, store vectorstore.Store, logger *zap.Logger) (*Index, error) {
	if dir == "" {
		return nil, errors.New("goldens: directory is required")
	}
	if store == nil {
		return nil, errors.New("goldens: vector store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	idx := &Index{
		dir:     dir,
		store:   store,
		logger:  logger,
		indexed: make(map[string]Golden),
		stopCh:  make(chan struct{}),
	}
	if err := store.EnsureCollection(idx.userCtx(ctx), vectorstore.CollectionGoldens); err != nil {
		return nil, fmt.Errorf("ensuring goldens collection: %w", err)
	}
	if err := idx.Sync(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) userCtx(ctx context.Context) context.Context {
	return vectorstore.ContextWithUser(ctx, &vectorstore.UserInfo{UserID: systemUserID})
}

// Sync reloads the directory and replaces the collection contents. A
// load or validation failure leaves the previous index in place.
func (idx *Index) Sync(ctx context.Context) error {
	loaded, err := LoadDir(idx.dir)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	uctx := idx.userCtx(ctx)

	// Delete the union of old and new ids, then re-add. Covers removed
	// goldens and leftovers persisted by an earlier process.
	stale := make([]string, 0, len(idx.indexed)+len(loaded))
	for id := range idx.indexed {
		stale = append(stale, id)
	}
	for _, g := range loaded {
		if _, known := idx.indexed[g.ID]; !known {
			stale = append(stale, g.ID)
		}
	}
	if len(stale) > 0 {
		if err := idx.store.DeleteDocuments(uctx, vectorstore.CollectionGoldens, stale); err != nil {
			return fmt.Errorf("clearing goldens collection: %w", err)
		}
	}

	if len(loaded) > 0 {
		docs := make([]vectorstore.Document, 0, len(loaded))
		for _, g := range loaded {
			docs = append(docs, vectorstore.Document{
				ID:         g.ID,
				Content:    g.Action,
				Collection: vectorstore.CollectionGoldens,
				Metadata: map[string]interface{}{
					"category": string(g.Category),
					"title":    g.Title,
				},
			})
		}
		if _, err := idx.store.AddDocuments(uctx, docs); err != nil {
			return fmt.Errorf("indexing goldens: %w", err)
		}
	}

	idx.indexed = make(map[string]Golden, len(loaded))
	for _, g := range loaded {
		idx.indexed[g.ID] = g
	}
	idx.logger.Info("goldens synced", zap.Int("count", len(loaded)))
	return nil
}

// Count returns how many goldens are currently indexed.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.indexed)
}

// MaxSimilarity returns the highest similarity between the vector and
// any golden in the category. found=false means the category has no
// goldens; the scorer treats that as neutral, not zero alignment.
func (idx *Index) MaxSimilarity(ctx context.Context, category autonomy.Category, vector []float32) (float64, bool, error) {
	idx.mu.RLock()
	any := false
	for _, g := range idx.indexed {
		if g.Category == category {
			any = true
			break
		}
	}
	idx.mu.RUnlock()
	if !any {
		return 0, false, nil
	}

	results, err := idx.store.SearchVector(idx.userCtx(ctx), vectorstore.CollectionGoldens, vector, 1,
		map[string]interface{}{"category": string(category)})
	if err != nil {
		return 0, false, fmt.Errorf("searching goldens: %w", err)
	}
	if len(results) == 0 {
		return 0, false, nil
	}
	score := float64(results[0].Score)
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, true, nil
}

// Watch re-syncs on directory changes until Close. Errors during a
// re-sync are logged; the index keeps serving the last good set.
func (idx *Index) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating goldens watcher: %w", err)
	}
	if err := watcher.Add(idx.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching %s: %w", idx.dir, err)
	}
	idx.watcher = watcher

	idx.wg.Add(1)
	go idx.watchLoop()
	return nil
}

func (idx *Index) watchLoop() {
	defer idx.wg.Done()

	var debounce *time.Timer
	var debounceCh <-chan time.Time
	for {
		select {
		case <-idx.stopCh:
			return
		case event, ok := <-idx.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(resyncDebounce)
				debounceCh = debounce.C
			} else {
				debounce.Reset(resyncDebounce)
			}
		case <-debounceCh:
			debounce = nil
			debounceCh = nil
			if err := idx.Sync(context.Background()); err != nil {
				idx.logger.Error("re-syncing goldens", zap.Error(err))
			}
		case err, ok := <-idx.watcher.Errors:
			if !ok {
				return
			}
			idx.logger.Error("goldens watcher", zap.Error(err))
		}
	}
}

// Close stops the watcher.
func (idx *Index) Close() error {
	var err error
	idx.closeOnce.Do(func() {
		close(idx.stopCh)
		if idx.watcher != nil {
			err = idx.watcher.Close()
		}
		idx.wg.Wait()
	})
	return err
}
