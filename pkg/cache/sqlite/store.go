package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"go.uber.org/zap"

	"github.com/propscout/propscout/pkg/models"
)

// Store persists analysis results, property data and daily usage counters in
// a single SQLite database. Every operation opens a short-lived statement or
// transaction and commits before returning.
type Store struct {
	db           *sql.DB
	costPerToken float64
	codec        models.Codec
	logger       *zap.Logger
}

// New opens the database at dbPath and creates the tables if absent. A schema
// failure is fatal: the store cannot operate without its tables.
func New(dbPath string, costPerToken float64, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	for _, stmt := range []string{createAnalysisTable, createPropertyTable, createStatsTable} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate cache db: %w", err)
		}
	}

	return &Store{
		db:           db,
		costPerToken: costPerToken,
		codec:        models.JSONCodec{},
		logger:       logger,
	}, nil
}

// GetAnalysis looks up an analysis entry by fingerprint and model. An expired
// row is deleted as a side effect and reported as a miss (nil, nil).
func (s *Store) GetAnalysis(ctx context.Context, fingerprint, model string) (*models.AnalysisEntry, error) {
	var e models.AnalysisEntry
	err := s.db.QueryRowContext(ctx,
		`SELECT content_hash, request_data, response_data, created_at, expires_at, model, token_count
		 FROM gpt_analysis_cache WHERE content_hash = ? AND model = ?`,
		fingerprint, model,
	).Scan(&e.Fingerprint, &e.RequestExcerpt, &e.Payload, &e.CreatedAt, &e.ExpiresAt, &e.Model, &e.TokenCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}

	if !time.Now().UTC().Before(e.ExpiresAt) {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM gpt_analysis_cache WHERE content_hash = ?`, fingerprint); err != nil {
			return nil, fmt.Errorf("delete expired analysis: %w", err)
		}
		s.logger.Debug("expired analysis entry removed", zap.String("fingerprint", keyPrefix(fingerprint)))
		return nil, nil
	}

	return &e, nil
}

// PutAnalysis inserts or replaces an analysis entry. A re-computation for the
// same content and model overwrites the previous row and resets its expiry.
func (s *Store) PutAnalysis(ctx context.Context, fingerprint, excerpt, model string, payload []byte, tokenCount int, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO gpt_analysis_cache
		 (content_hash, request_data, response_data, created_at, expires_at, model, token_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fingerprint, excerpt, payload, now, now.Add(ttl), model, tokenCount,
	)
	if err != nil {
		return fmt.Errorf("put analysis: %w", err)
	}
	return nil
}

// GetProperty looks up property data by ID. A live hit updates last_accessed
// inside the same transaction; an expired row is deleted and reported absent.
func (s *Store) GetProperty(ctx context.Context, propertyID string) (*models.PropertyEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("get property: begin: %w", err)
	}
	defer tx.Rollback()

	var e models.PropertyEntry
	err = tx.QueryRowContext(ctx,
		`SELECT property_id, data, source_url, created_at, expires_at, last_accessed
		 FROM property_data_cache WHERE property_id = ?`,
		propertyID,
	).Scan(&e.PropertyID, &e.Payload, &e.SourceURL, &e.CreatedAt, &e.ExpiresAt, &e.LastAccessed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get property: %w", err)
	}

	now := time.Now().UTC()
	if !now.Before(e.ExpiresAt) {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM property_data_cache WHERE property_id = ?`, propertyID); err != nil {
			return nil, fmt.Errorf("delete expired property: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("get property: commit: %w", err)
		}
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE property_data_cache SET last_accessed = ? WHERE property_id = ?`, now, propertyID); err != nil {
		return nil, fmt.Errorf("touch property: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("get property: commit: %w", err)
	}
	e.LastAccessed = now
	return &e, nil
}

// PutProperty inserts or replaces a property entry.
func (s *Store) PutProperty(ctx context.Context, propertyID string, payload []byte, sourceURL string, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO property_data_cache
		 (property_id, data, source_url, created_at, expires_at, last_accessed)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		propertyID, payload, sourceURL, now, now.Add(ttl), now,
	)
	if err != nil {
		return fmt.Errorf("put property: %w", err)
	}
	return nil
}

// PutPropertiesBulk stores multiple properties inside one transaction. An
// item that fails to serialize is logged and skipped without aborting the
// batch; the remaining items still commit. Returns (stored, total).
func (s *Store) PutPropertiesBulk(ctx context.Context, items map[string]any, sourceURL string, ttl time.Duration) (int, int) {
	total := len(items)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("bulk put: begin failed", zap.Error(err))
		return 0, total
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	stored := 0

	for id, data := range items {
		payload, err := s.codec.Marshal(data)
		if err != nil {
			s.logger.Warn("bulk put: skip item",
				zap.String("property_id", id), zap.Error(err))
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO property_data_cache
			 (property_id, data, source_url, created_at, expires_at, last_accessed)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, payload, sourceURL, now, expiresAt, now,
		); err != nil {
			s.logger.Warn("bulk put: insert failed",
				zap.String("property_id", id), zap.Error(err))
			continue
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("bulk put: commit failed", zap.Error(err))
		return 0, total
	}

	s.logger.Info("bulk put complete", zap.Int("stored", stored), zap.Int("total", total))
	return stored, total
}

// SweepExpired deletes every expired row in both cache tables and returns the
// total number removed.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	var removed int64

	for _, table := range []string{"gpt_analysis_cache", "property_data_cache"} {
		res, err := s.db.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE expires_at < ?", table), now)
		if err != nil {
			return removed, fmt.Errorf("sweep %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return removed, fmt.Errorf("sweep %s: %w", table, err)
		}
		removed += n
	}

	s.logger.Info("expired entries swept", zap.Int64("removed", removed))
	return removed, nil
}

// ClearAll deletes every row in both cache tables. Statistics are kept.
func (s *Store) ClearAll(ctx context.Context) (int64, error) {
	var removed int64
	for _, table := range []string{"gpt_analysis_cache", "property_data_cache"} {
		res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			return removed, fmt.Errorf("clear %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return removed, fmt.Errorf("clear %s: %w", table, err)
		}
		removed += n
	}
	return removed, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// keyPrefix shortens a fingerprint for log output.
func keyPrefix(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}
