package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/propscout/propscout/pkg/models"
)

const dateLayout = "2006-01-02"

// RecordEvent updates today's usage counters. The row is created lazily on
// the first event of a new day. Cost saved is derived from the configured
// per-token rate; only cache hits accumulate tokens and cost.
func (s *Store) RecordEvent(ctx context.Context, apiCall, cacheHit bool, tokensSaved int) error {
	today := time.Now().UTC().Format(dateLayout)

	var apiCalls, cacheHits, tokens int64
	var costSaved float64
	if apiCall {
		apiCalls = 1
	}
	if cacheHit {
		cacheHits = 1
		tokens = int64(tokensSaved)
		costSaved = float64(tokensSaved) * s.costPerToken
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_stats (date, api_calls, cache_hits, tokens_saved, cost_saved)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(date) DO UPDATE SET
			api_calls = api_calls + excluded.api_calls,
			cache_hits = cache_hits + excluded.cache_hits,
			tokens_saved = tokens_saved + excluded.tokens_saved,
			cost_saved = cost_saved + excluded.cost_saved`,
		today, apiCalls, cacheHits, tokens, costSaved,
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// Stats sums the daily counters over the last `days` days and derives the
// total request count and hit rate. days == 0 restricts to today.
func (s *Store) Stats(ctx context.Context, days int) (models.CacheStats, error) {
	start := time.Now().UTC().AddDate(0, 0, -days).Format(dateLayout)

	stats := models.CacheStats{PeriodDays: days}
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(api_calls), 0), COALESCE(SUM(cache_hits), 0),
			COALESCE(SUM(tokens_saved), 0), COALESCE(SUM(cost_saved), 0)
		 FROM cache_stats WHERE date >= ?`,
		start,
	).Scan(&stats.APICalls, &stats.CacheHits, &stats.TokensSaved, &stats.CostSaved)
	if err != nil {
		return models.CacheStats{PeriodDays: days}, fmt.Errorf("aggregate stats: %w", err)
	}

	stats.TotalRequests = stats.APICalls + stats.CacheHits
	if stats.TotalRequests > 0 {
		stats.HitRate = float64(stats.CacheHits) / float64(stats.TotalRequests)
	}
	return stats, nil
}
