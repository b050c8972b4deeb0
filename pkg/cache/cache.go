package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/propscout/propscout/pkg/cache/sqlite"
	"github.com/propscout/propscout/pkg/config"
	"github.com/propscout/propscout/pkg/models"
)

// excerptLen bounds the request excerpt kept alongside analysis entries. The
// excerpt is diagnostic only and never used for lookups.
const excerptLen = 200

// store is the durable tier consumed by the facade.
type store interface {
	GetAnalysis(ctx context.Context, fingerprint, model string) (*models.AnalysisEntry, error)
	PutAnalysis(ctx context.Context, fingerprint, excerpt, model string, payload []byte, tokenCount int, ttl time.Duration) error
	GetProperty(ctx context.Context, propertyID string) (*models.PropertyEntry, error)
	PutProperty(ctx context.Context, propertyID string, payload []byte, sourceURL string, ttl time.Duration) error
	PutPropertiesBulk(ctx context.Context, items map[string]any, sourceURL string, ttl time.Duration) (int, int)
	SweepExpired(ctx context.Context) (int64, error)
	RecordEvent(ctx context.Context, apiCall, cacheHit bool, tokensSaved int) error
	Stats(ctx context.Context, days int) (models.CacheStats, error)
	Close() error
}

// Cache fronts two kinds of expensive remote calls — LLM analysis and
// property scrapes — with a volatile in-process tier and a durable SQLite
// tier. It is the failure boundary: storage and serialization errors are
// logged and surfaced as misses or false, never as errors. Callers fall back
// to recomputation on any miss.
type Cache struct {
	store  store
	memory *memoryStore
	codec  models.Codec
	ttl    time.Duration
	logger *zap.Logger
}

// New builds a Cache from configuration. The cache directory is created if
// absent. A schema initialization failure is returned: the cache cannot
// operate without its tables.
func New(cfg *config.Config, logger *zap.Logger) (*Cache, error) {
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	st, err := sqlite.New(cfg.ResolveDBPath(), cfg.CostPerToken, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("cache initialized",
		zap.String("db_path", cfg.ResolveDBPath()),
		zap.Int("ttl_days", cfg.TTLDays))

	return &Cache{
		store:  st,
		memory: newMemoryStore(),
		codec:  models.JSONCodec{},
		ttl:    cfg.TTL(),
		logger: logger,
	}, nil
}

// Fingerprint returns the fixed-length cache key for s: a SHA-256 hex digest.
// Analysis keys are computed over the content concatenated with the model
// identifier, so the same content under different models caches separately.
func Fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// GetAnalysis returns the cached analysis payload for content and model. The
// volatile tier is probed first; a durable hit is promoted into it before
// returning. Both kinds of hit record a cache-hit event with the entry's
// token count. A full miss records nothing.
func (c *Cache) GetAnalysis(ctx context.Context, content, model string) ([]byte, bool) {
	fp := Fingerprint(content + model)

	if payload, tokens, ok := c.memory.get(fp); ok {
		c.logger.Debug("memory cache hit", zap.String("fingerprint", fp[:8]))
		c.recordEvent(ctx, false, true, tokens)
		return payload, true
	}

	entry, err := c.store.GetAnalysis(ctx, fp, model)
	if err != nil {
		c.logger.Error("get analysis failed", zap.String("fingerprint", fp[:8]), zap.Error(err))
		return nil, false
	}
	if entry == nil {
		return nil, false
	}

	c.memory.put(fp, entry.Payload, entry.TokenCount, entry.ExpiresAt)
	c.logger.Debug("analysis cache hit", zap.String("fingerprint", fp[:8]))
	c.recordEvent(ctx, false, true, entry.TokenCount)
	return entry.Payload, true
}

// PutAnalysis serializes and stores an analysis result the caller just paid
// for, promotes it into the volatile tier, and records an api-call event.
// ttl == 0 applies the configured default. Returns false on serialization or
// storage failure.
func (c *Cache) PutAnalysis(ctx context.Context, content, model string, result any, tokenCount int, ttl time.Duration) bool {
	if ttl == 0 {
		ttl = c.ttl
	}
	fp := Fingerprint(content + model)

	payload, err := c.codec.Marshal(result)
	if err != nil {
		c.logger.Error("marshal analysis payload failed", zap.String("fingerprint", fp[:8]), zap.Error(err))
		return false
	}

	if err := c.store.PutAnalysis(ctx, fp, excerpt(content), model, payload, tokenCount, ttl); err != nil {
		c.logger.Error("put analysis failed", zap.String("fingerprint", fp[:8]), zap.Error(err))
		return false
	}

	c.memory.put(fp, payload, tokenCount, time.Now().UTC().Add(ttl))
	c.logger.Info("analysis cached",
		zap.String("fingerprint", fp[:8]),
		zap.String("model", model),
		zap.Int("token_count", tokenCount))
	c.recordEvent(ctx, true, false, 0)
	return true
}

// GetProperty returns the cached payload for a property ID. Property reads
// go straight to the durable store; there is no volatile tier for them.
func (c *Cache) GetProperty(ctx context.Context, propertyID string) ([]byte, bool) {
	entry, err := c.store.GetProperty(ctx, propertyID)
	if err != nil {
		c.logger.Error("get property failed", zap.String("property_id", propertyID), zap.Error(err))
		return nil, false
	}
	if entry == nil {
		return nil, false
	}
	c.logger.Debug("property cache hit", zap.String("property_id", propertyID))
	return entry.Payload, true
}

// PutProperty serializes and stores property data under a caller-supplied
// ID. ttl == 0 applies the configured default.
func (c *Cache) PutProperty(ctx context.Context, propertyID string, data any, sourceURL string, ttl time.Duration) bool {
	if ttl == 0 {
		ttl = c.ttl
	}

	payload, err := c.codec.Marshal(data)
	if err != nil {
		c.logger.Error("marshal property payload failed", zap.String("property_id", propertyID), zap.Error(err))
		return false
	}

	if err := c.store.PutProperty(ctx, propertyID, payload, sourceURL, ttl); err != nil {
		c.logger.Error("put property failed", zap.String("property_id", propertyID), zap.Error(err))
		return false
	}
	c.logger.Debug("property cached", zap.String("property_id", propertyID))
	return true
}

// PutPropertiesBulk stores many properties in one transaction. Items that
// fail to serialize are skipped and excluded from the stored count without
// aborting the batch. Returns (stored, total).
func (c *Cache) PutPropertiesBulk(ctx context.Context, items map[string]any, sourceURL string, ttl time.Duration) (int, int) {
	if ttl == 0 {
		ttl = c.ttl
	}
	return c.store.PutPropertiesBulk(ctx, items, sourceURL, ttl)
}

// SweepExpired removes every expired row from both durable tables and
// returns the number removed. It is invoked by a caller, never on a timer.
func (c *Cache) SweepExpired(ctx context.Context) int {
	removed, err := c.store.SweepExpired(ctx)
	if err != nil {
		c.logger.Error("sweep expired failed", zap.Error(err))
	}
	return int(removed)
}

// Stats aggregates usage counters over the last `days` days. days == 0
// restricts to today.
func (c *Cache) Stats(ctx context.Context, days int) (models.CacheStats, error) {
	return c.store.Stats(ctx, days)
}

// ClearMemory drops the volatile tier and returns how many entries were
// released. The durable store is untouched.
func (c *Cache) ClearMemory() int {
	n := c.memory.clear()
	c.logger.Info("memory cache cleared", zap.Int("released", n))
	return n
}

// Close releases the durable store.
func (c *Cache) Close() error {
	return c.store.Close()
}

func (c *Cache) recordEvent(ctx context.Context, apiCall, cacheHit bool, tokensSaved int) {
	if err := c.store.RecordEvent(ctx, apiCall, cacheHit, tokensSaved); err != nil {
		c.logger.Warn("record stats event failed", zap.Error(err))
	}
}

func excerpt(content string) string {
	if len(content) > excerptLen {
		return content[:excerptLen]
	}
	return content
}
