package store

import (
	"database/sql"
	"time"
)

// CacheStats is the single cache_metadata sidecar row: hit/miss counters
// and bulk-update bookkeeping for the on-disk product-cache layer.
type CacheStats struct {
	Hits             int64
	Misses           int64
	TotalCached      int64
	LastBulkUpdateAt *time.Time
}

// CacheStats reads the singleton cache_metadata row.
func (s *Store) CacheStats() (CacheStats, error) {
	var c CacheStats
	var lastBulk sql.NullInt64
	err := s.sql.QueryRow(`SELECT hits, misses, total_cached, last_bulk_update_at FROM cache_metadata WHERE id=1`).
		Scan(&c.Hits, &c.Misses, &c.TotalCached, &lastBulk)
	if err != nil {
		return c, err
	}
	if lastBulk.Valid {
		t := time.Unix(lastBulk.Int64, 0).UTC()
		c.LastBulkUpdateAt = &t
	}
	return c, nil
}

// RecordCacheHit increments the hit counter.
func (s *Store) RecordCacheHit() error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE cache_metadata SET hits = hits + 1 WHERE id=1`)
		return err
	})
}

// RecordCacheMiss increments the miss counter.
func (s *Store) RecordCacheMiss() error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE cache_metadata SET misses = misses + 1 WHERE id=1`)
		return err
	})
}

// SetTotalCached overwrites the total_cached gauge, used after a bulk
// update finishes counting the on-disk snapshot set.
func (s *Store) SetTotalCached(total int64) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE cache_metadata SET total_cached = ?, last_bulk_update_at = ? WHERE id=1`,
			total, time.Now().UTC().Unix())
		return err
	})
}
