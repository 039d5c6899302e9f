package guard

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"NewsDesk/internal/domain"
	"NewsDesk/internal/ports"
)

// DefaultTTL is how long a loaded GuardConfig is trusted before the store is read again.
const DefaultTTL = 5 * time.Minute

type snapshot struct {
	config      domain.GuardConfig
	loadedAt    time.Time
	invalidated bool
}

// ConfigCache holds the GuardConfig behind an atomic pointer. Readers never lock; a mutex only
// collapses concurrent reloads into one store read.
type ConfigCache struct {
	store  ports.GuardConfigStore
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	current    atomic.Pointer[snapshot]
	generation atomic.Uint64
	loadMu     sync.Mutex
}

// NewConfigCache builds a cache over store. A non-positive ttl uses DefaultTTL.
func NewConfigCache(store ports.GuardConfigStore, ttl time.Duration, now func() time.Time, logger *slog.Logger) *ConfigCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &ConfigCache{store: store, ttl: ttl, now: now, logger: logger}
}

// Get returns the cached config, reloading it when expired or invalidated. When a reload fails
// and an earlier config exists, the earlier config is returned and the error only logged.
func (c *ConfigCache) Get(ctx context.Context) (domain.GuardConfig, error) {
	if snap := c.current.Load(); c.fresh(snap) {
		return snap.config, nil
	}

	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	snap := c.current.Load()
	if c.fresh(snap) {
		return snap.config, nil
	}

	gen := c.generation.Load()
	cfg, err := c.store.LoadGuardConfig(ctx)
	if err != nil {
		if snap != nil {
			c.warn("guard config reload failed, serving stale config", "error", err, "loaded_at", snap.loadedAt)
			return snap.config, nil
		}
		return domain.GuardConfig{}, err
	}

	// An Invalidate racing with this load must still force the next call to reload.
	c.current.Store(&snapshot{
		config:      cfg,
		loadedAt:    c.now(),
		invalidated: c.generation.Load() != gen,
	})
	return cfg, nil
}

// Invalidate forces the next Get to read the store. The previous config stays available as a
// stale fallback.
func (c *ConfigCache) Invalidate() {
	c.generation.Add(1)
	for {
		old := c.current.Load()
		if old == nil || old.invalidated {
			return
		}
		next := *old
		next.invalidated = true
		if c.current.CompareAndSwap(old, &next) {
			return
		}
	}
}

func (c *ConfigCache) fresh(snap *snapshot) bool {
	return snap != nil && !snap.invalidated && c.now().Sub(snap.loadedAt) < c.ttl
}

func (c *ConfigCache) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
