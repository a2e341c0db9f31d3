package store

import (
	"database/sql"
	"time"
)

// PricePoint is one row of the price_history table.
type PricePoint struct {
	ASIN      string
	Platform  string
	AccountID string
	Price     int64
	ChangedAt time.Time
}

// RecordPriceChange appends a price history row. History is append-only;
// there is no update or delete path.
func (s *Store) RecordPriceChange(asin, platform, accountID string, price int64) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO price_history (asin, platform, account_id, price, changed_at)
			VALUES (?, ?, ?, ?, ?)`,
			asin, platform, accountID, price, time.Now().UTC().Unix(),
		)
		return err
	})
}

// PriceHistory returns every recorded price point for (asin, platform,
// accountID), oldest first.
func (s *Store) PriceHistory(asin, platform, accountID string) ([]PricePoint, error) {
	rows, err := s.sql.Query(`
		SELECT asin, platform, account_id, price, changed_at
		FROM price_history
		WHERE asin = ? AND platform = ? AND account_id = ?
		ORDER BY changed_at ASC`, asin, platform, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PricePoint
	for rows.Next() {
		var p PricePoint
		var changedAt int64
		if err := rows.Scan(&p.ASIN, &p.Platform, &p.AccountID, &p.Price, &changedAt); err != nil {
			return nil, err
		}
		p.ChangedAt = time.Unix(changedAt, 0).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// LastRecordedPrice returns the most recent price for (asin, platform,
// accountID), or (0, false) if none has ever been recorded.
func (s *Store) LastRecordedPrice(asin, platform, accountID string) (int64, bool, error) {
	var price int64
	err := s.sql.QueryRow(`
		SELECT price FROM price_history
		WHERE asin = ? AND platform = ? AND account_id = ?
		ORDER BY changed_at DESC LIMIT 1`, asin, platform, accountID).Scan(&price)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return price, true, nil
}
