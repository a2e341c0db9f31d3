package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Product mirrors the products table. Pointer fields distinguish "not
// provided" (nil) from "explicitly cleared" in ProductPatch; Product
// itself always carries concrete values once loaded.
type Product struct {
	ASIN           string
	TitleJA        string
	TitleEN        string
	Description    string
	Brand          string
	CategoryPath   string
	Images         []string
	AmazonPriceJPY *int64
	AmazonInStock  bool
	LastFetchedAt  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ProductPatch is a partial update. A nil field must never clobber the
// currently stored value; AddProduct fills nil fields from the existing
// row before writing.
type ProductPatch struct {
	TitleJA        *string
	TitleEN        *string
	Description    *string
	Brand          *string
	CategoryPath   *string
	Images         []string // nil means "leave unchanged"; non-nil (incl. empty) replaces
	AmazonPriceJPY *int64
	AmazonInStock  *bool
	LastFetchedAt  *time.Time
}

// AddProduct inserts or merges a product patch. The titles (JA and EN) and
// the description routed through the patch are cleaned by the store's
// ngfilter.Lexicon before being written; brand and category path are
// stored as given.
func (s *Store) AddProduct(asin string, patch ProductPatch) error {
	return s.withTx(func(tx *sql.Tx) error {
		existing, err := s.getProductTx(tx, asin)
		if err != nil {
			return err
		}
		now := time.Now().UTC()

		merged := Product{ASIN: asin, CreatedAt: now, UpdatedAt: now}
		if existing != nil {
			merged = *existing
			merged.UpdatedAt = now
		}

		if patch.TitleJA != nil {
			merged.TitleJA = s.lexicon.Clean(*patch.TitleJA)
		}
		if patch.TitleEN != nil {
			merged.TitleEN = s.lexicon.Clean(*patch.TitleEN)
		}
		if patch.Description != nil {
			merged.Description = s.lexicon.Clean(*patch.Description)
		}
		if patch.Brand != nil {
			merged.Brand = *patch.Brand
		}
		if patch.CategoryPath != nil {
			merged.CategoryPath = *patch.CategoryPath
		}
		if patch.Images != nil {
			merged.Images = patch.Images
		}
		if patch.AmazonPriceJPY != nil {
			merged.AmazonPriceJPY = patch.AmazonPriceJPY
		}
		if patch.AmazonInStock != nil {
			merged.AmazonInStock = *patch.AmazonInStock
		}
		if patch.LastFetchedAt != nil {
			merged.LastFetchedAt = patch.LastFetchedAt
		}

		imagesJSON, err := json.Marshal(merged.Images)
		if err != nil {
			return err
		}

		var lastFetched interface{}
		if merged.LastFetchedAt != nil {
			lastFetched = merged.LastFetchedAt.Unix()
		}
		var priceJPY interface{}
		if merged.AmazonPriceJPY != nil {
			priceJPY = *merged.AmazonPriceJPY
		}

		_, err = tx.Exec(`
			INSERT INTO products (asin, title_ja, title_en, description, brand, category_path, images_json,
				amazon_price_jpy, amazon_in_stock, last_fetched_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(asin) DO UPDATE SET
				title_ja = excluded.title_ja,
				title_en = excluded.title_en,
				description = excluded.description,
				brand = excluded.brand,
				category_path = excluded.category_path,
				images_json = excluded.images_json,
				amazon_price_jpy = excluded.amazon_price_jpy,
				amazon_in_stock = excluded.amazon_in_stock,
				last_fetched_at = excluded.last_fetched_at,
				updated_at = excluded.updated_at`,
			merged.ASIN, merged.TitleJA, merged.TitleEN, merged.Description, merged.Brand, merged.CategoryPath,
			string(imagesJSON), priceJPY, boolToInt(merged.AmazonInStock), lastFetched,
			merged.CreatedAt.Unix(), merged.UpdatedAt.Unix(),
		)
		return err
	})
}

// GetProduct returns the stored product, or nil if absent.
func (s *Store) GetProduct(asin string) (*Product, error) {
	var p *Product
	err := s.withTx(func(tx *sql.Tx) error {
		var innerErr error
		p, innerErr = s.getProductTx(tx, asin)
		return innerErr
	})
	return p, err
}

func (s *Store) getProductTx(tx *sql.Tx, asin string) (*Product, error) {
	row := tx.QueryRow(`
		SELECT asin, title_ja, title_en, description, brand, category_path, images_json,
			amazon_price_jpy, amazon_in_stock, last_fetched_at, created_at, updated_at
		FROM products WHERE asin = ?`, asin)

	var p Product
	var imagesJSON string
	var priceJPY sql.NullInt64
	var lastFetched sql.NullInt64
	var createdAt, updatedAt int64
	var inStock int

	err := row.Scan(&p.ASIN, &p.TitleJA, &p.TitleEN, &p.Description, &p.Brand, &p.CategoryPath, &imagesJSON,
		&priceJPY, &inStock, &lastFetched, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	_ = json.Unmarshal([]byte(imagesJSON), &p.Images)
	if priceJPY.Valid {
		v := priceJPY.Int64
		p.AmazonPriceJPY = &v
	}
	p.AmazonInStock = inStock != 0
	if lastFetched.Valid {
		t := time.Unix(lastFetched.Int64, 0).UTC()
		p.LastFetchedAt = &t
	}
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &p, nil
}

// DistinctListedASINs returns every ASIN with at least one listing whose
// status is 'listed', across all platforms: the Phase 1 input set.
func (s *Store) DistinctListedASINs() ([]string, error) {
	rows, err := s.sql.Query(`SELECT DISTINCT asin FROM listings WHERE status = 'listed'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var asin string
		if err := rows.Scan(&asin); err != nil {
			return nil, err
		}
		out = append(out, asin)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
