package service

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Builder produces a pipeline build result.
type Builder interface {
	Build(ctx context.Context, opts BuildOptions) *Result
}

// defaultDebounce coalesces bursts of file system events into one rebuild.
const defaultDebounce = 500 * time.Millisecond

const defaultRefreshInterval = 5 * time.Minute

// BackgroundRefresher rebuilds the pipeline periodically and whenever a watched
// configuration directory changes. Readers get the last result via Latest.
type BackgroundRefresher struct {
	builder         Builder
	opts            BuildOptions
	refreshInterval time.Duration
	watchDirs       []string
	debounce        time.Duration
	cache           *FileCache
	logger          Logger
	stopChan        chan struct{}
	wg              sync.WaitGroup
	mu              sync.Mutex
	running         bool

	resultMu sync.RWMutex
	result   *Result
}

// NewBackgroundRefresher creates a new background refresher. cache may be nil.
func NewBackgroundRefresher(builder Builder, opts BuildOptions, refreshInterval time.Duration, watchDirs []string, cache *FileCache, logger Logger) *BackgroundRefresher {
	if refreshInterval <= 0 {
		refreshInterval = defaultRefreshInterval
	}
	return &BackgroundRefresher{
		builder:         builder,
		opts:            opts,
		refreshInterval: refreshInterval,
		watchDirs:       watchDirs,
		debounce:        defaultDebounce,
		cache:           cache,
		logger:          logger,
		stopChan:        make(chan struct{}),
	}
}

// Latest returns the last build result, or nil before the first build.
func (r *BackgroundRefresher) Latest() *Result {
	r.resultMu.RLock()
	defer r.resultMu.RUnlock()
	return r.result
}

// Refresh rebuilds synchronously and stores the result.
// Failed builds are stored too but never overwrite the file snapshot.
func (r *BackgroundRefresher) Refresh(ctx context.Context) *Result {
	result := r.builder.Build(ctx, r.opts)

	r.resultMu.Lock()
	r.result = result
	r.resultMu.Unlock()

	if r.cache != nil && !result.Failed {
		if err := r.cache.Save(result); err != nil {
			r.logger.Printf("Background refresher: Failed to save snapshot: %v", err)
		}
	}
	return result
}

// Start loads the file snapshot, if any, and begins refreshing in the background.
// Non-blocking - launches goroutine and returns immediately.
func (r *BackgroundRefresher) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	if r.cache != nil {
		data, err := r.cache.Load()
		if err != nil {
			r.logger.Printf("Background refresher: Ignoring snapshot: %v", err)
		}
		if data != nil {
			r.resultMu.Lock()
			if r.result == nil {
				r.result = data.Result
			}
			r.resultMu.Unlock()
		}
	}

	watcher := r.newWatcher()

	r.logger.Printf("Background refresher: Starting with %v interval", r.refreshInterval)
	r.wg.Add(1)
	go r.refreshLoop(watcher)
}

// Stop gracefully stops the background refresher.
func (r *BackgroundRefresher) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	r.logger.Printf("Background refresher: Stopping...")
	close(r.stopChan)
	r.wg.Wait()
	r.logger.Printf("Background refresher: Stopped")
}

// newWatcher watches the existing configuration directories. It returns nil
// when nothing can be watched; the loop then relies on the ticker alone.
func (r *BackgroundRefresher) newWatcher() *fsnotify.Watcher {
	if len(r.watchDirs) == 0 {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		r.logger.Printf("Background refresher: File watching disabled: %v", err)
		return nil
	}

	watched := 0
	for _, dir := range r.watchDirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			r.logger.Printf("Background refresher: Cannot watch %s: %v", dir, err)
			continue
		}
		watched++
	}
	if watched == 0 {
		watcher.Close()
		return nil
	}
	return watcher
}

func (r *BackgroundRefresher) refreshLoop(watcher *fsnotify.Watcher) {
	defer r.wg.Done()

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if watcher != nil {
		defer watcher.Close()
		events = watcher.Events
		errs = watcher.Errors
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-r.stopChan
		cancel()
	}()

	r.refreshAndLog(ctx, "initial")

	ticker := time.NewTicker(r.refreshInterval)
	defer ticker.Stop()

	// pending fires once after the last file event of a burst.
	pending := time.NewTimer(r.debounce)
	pending.Stop()
	defer pending.Stop()

	for {
		select {
		case <-ticker.C:
			r.refreshAndLog(ctx, "periodic")
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending.Reset(r.debounce)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			r.logger.Printf("Background refresher: Watch error: %v", err)
		case <-pending.C:
			r.refreshAndLog(ctx, "configuration change")
		case <-r.stopChan:
			return
		}
	}
}

func (r *BackgroundRefresher) refreshAndLog(ctx context.Context, reason string) {
	startTime := time.Now()
	result := r.Refresh(ctx)
	r.logger.Printf("Background refresher: %s refresh completed in %v (branches: %d, warnings: %d)",
		reason, time.Since(startTime).Round(time.Millisecond), len(result.Branches), len(result.Warnings))
}
