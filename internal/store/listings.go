package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ListingStatus enumerates the lifecycle of one (asin, platform, account)
// listing row.
type ListingStatus string

const (
	ListingPending ListingStatus = "pending"
	ListingListed  ListingStatus = "listed"
	ListingHidden  ListingStatus = "hidden"
	ListingFailed  ListingStatus = "failed"
	ListingRemoved ListingStatus = "removed"
)

// Listing mirrors the listings table.
type Listing struct {
	ID              int64
	ASIN            string
	Platform        string
	AccountID       string
	PlatformItemID  string
	SKU             string
	SellingPrice    *int64
	Currency        string
	InStockQuantity int
	Status          ListingStatus
	Visibility      string
	ListedAt        *time.Time
	UpdatedAt       time.Time
}

// UpsertListing inserts or updates the listing row keyed by (asin,
// platform, account_id). A status of 'listed' with an empty platformItemID is
// rejected: a listed row must always carry the id the remote platform
// assigned it.
func (s *Store) UpsertListing(l Listing) error {
	if l.Status == ListingListed && l.PlatformItemID == "" {
		return fmt.Errorf("store: listing %s/%s/%s cannot be marked listed without a platform_item_id", l.ASIN, l.Platform, l.AccountID)
	}

	return s.withTx(func(tx *sql.Tx) error {
		now := time.Now().UTC()
		var sellingPrice interface{}
		if l.SellingPrice != nil {
			sellingPrice = *l.SellingPrice
		}
		var listedAt interface{}
		if l.ListedAt != nil {
			listedAt = l.ListedAt.Unix()
		}
		currency := l.Currency
		if currency == "" {
			currency = "JPY"
		}
		visibility := l.Visibility
		if visibility == "" {
			visibility = "public"
		}

		_, err := tx.Exec(`
			INSERT INTO listings (asin, platform, account_id, platform_item_id, sku, selling_price,
				currency, in_stock_quantity, status, visibility, listed_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(asin, platform, account_id) DO UPDATE SET
				platform_item_id = excluded.platform_item_id,
				sku = excluded.sku,
				selling_price = excluded.selling_price,
				currency = excluded.currency,
				in_stock_quantity = excluded.in_stock_quantity,
				status = excluded.status,
				visibility = excluded.visibility,
				listed_at = excluded.listed_at,
				updated_at = excluded.updated_at`,
			l.ASIN, l.Platform, l.AccountID, l.PlatformItemID, l.SKU, sellingPrice,
			currency, l.InStockQuantity, string(l.Status), visibility, listedAt, now.Unix(),
		)
		return err
	})
}

// SetListingStatus transitions a listing's status without touching its
// other fields. Transitioning to 'listed' requires platformItemID to
// already be set on the existing row.
func (s *Store) SetListingStatus(asin, platform, accountID string, status ListingStatus) error {
	return s.withTx(func(tx *sql.Tx) error {
		if status == ListingListed {
			var platformItemID sql.NullString
			err := tx.QueryRow(`SELECT platform_item_id FROM listings WHERE asin=? AND platform=? AND account_id=?`,
				asin, platform, accountID).Scan(&platformItemID)
			if err != nil {
				return err
			}
			if !platformItemID.Valid || platformItemID.String == "" {
				return fmt.Errorf("store: cannot mark %s/%s/%s listed without a platform_item_id", asin, platform, accountID)
			}
		}
		_, err := tx.Exec(`UPDATE listings SET status=?, updated_at=? WHERE asin=? AND platform=? AND account_id=?`,
			string(status), time.Now().UTC().Unix(), asin, platform, accountID)
		return err
	})
}

// SetListingVisibility updates only the visibility column, used by the
// out-of-stock hide/unhide reconciliation path.
func (s *Store) SetListingVisibility(asin, platform, accountID, visibility string) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE listings SET visibility=?, updated_at=? WHERE asin=? AND platform=? AND account_id=?`,
			visibility, time.Now().UTC().Unix(), asin, platform, accountID)
		return err
	})
}

// GetListing returns the listing for (asin, platform, accountID), or nil
// if none exists.
func (s *Store) GetListing(asin, platform, accountID string) (*Listing, error) {
	row := s.sql.QueryRow(`
		SELECT id, asin, platform, account_id, platform_item_id, sku, selling_price, currency,
			in_stock_quantity, status, visibility, listed_at, updated_at
		FROM listings WHERE asin=? AND platform=? AND account_id=?`, asin, platform, accountID)
	return scanListing(row)
}

// ListingsByStatus returns every listing with the given status, across
// all platforms and accounts.
func (s *Store) ListingsByStatus(status ListingStatus) ([]Listing, error) {
	rows, err := s.sql.Query(`
		SELECT id, asin, platform, account_id, platform_item_id, sku, selling_price, currency,
			in_stock_quantity, status, visibility, listed_at, updated_at
		FROM listings WHERE status = ?`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanListing(row rowScanner) (*Listing, error) {
	var l Listing
	var sellingPrice sql.NullInt64
	var listedAt sql.NullInt64
	var updatedAt int64
	var status string

	err := row.Scan(&l.ID, &l.ASIN, &l.Platform, &l.AccountID, &l.PlatformItemID, &l.SKU, &sellingPrice,
		&l.Currency, &l.InStockQuantity, &status, &l.Visibility, &listedAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	l.Status = ListingStatus(status)
	if sellingPrice.Valid {
		v := sellingPrice.Int64
		l.SellingPrice = &v
	}
	if listedAt.Valid {
		t := time.Unix(listedAt.Int64, 0).UTC()
		l.ListedAt = &t
	}
	l.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &l, nil
}
