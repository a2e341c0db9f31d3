package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// PlatformMetadata mirrors the platform_metadata table: the per-SKU
// extras a platform adapter needs that don't belong on the generic
// Listing row (category/policy ids, structured item specifics).
type PlatformMetadata struct {
	SKU                 string
	Platform            string
	OfferID             string
	ListingID           string
	CategoryID          string
	PolicyIDs           map[string]string
	ItemSpecifics       map[string]string
	MerchantLocationKey string
	UpdatedAt           time.Time
}

// UpsertPlatformMetadata inserts or replaces the metadata row for sku.
func (s *Store) UpsertPlatformMetadata(m PlatformMetadata) error {
	return s.withTx(func(tx *sql.Tx) error {
		if m.PolicyIDs == nil {
			m.PolicyIDs = map[string]string{}
		}
		if m.ItemSpecifics == nil {
			m.ItemSpecifics = map[string]string{}
		}
		policyJSON, err := json.Marshal(m.PolicyIDs)
		if err != nil {
			return err
		}
		specificsJSON, err := json.Marshal(m.ItemSpecifics)
		if err != nil {
			return err
		}

		_, err = tx.Exec(`
			INSERT INTO platform_metadata (sku, platform, offer_id, listing_id, category_id, policy_ids_json,
				item_specifics_json, merchant_location_key, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(sku) DO UPDATE SET
				platform = excluded.platform,
				offer_id = excluded.offer_id,
				listing_id = excluded.listing_id,
				category_id = excluded.category_id,
				policy_ids_json = excluded.policy_ids_json,
				item_specifics_json = excluded.item_specifics_json,
				merchant_location_key = excluded.merchant_location_key,
				updated_at = excluded.updated_at`,
			m.SKU, m.Platform, m.OfferID, m.ListingID, m.CategoryID, string(policyJSON),
			string(specificsJSON), m.MerchantLocationKey, time.Now().UTC().Unix(),
		)
		return err
	})
}

// GetPlatformMetadata returns the metadata row for sku, or nil if absent.
func (s *Store) GetPlatformMetadata(sku string) (*PlatformMetadata, error) {
	row := s.sql.QueryRow(`
		SELECT sku, platform, offer_id, listing_id, category_id, policy_ids_json, item_specifics_json,
			merchant_location_key, updated_at
		FROM platform_metadata WHERE sku = ?`, sku)

	var m PlatformMetadata
	var policyJSON, specificsJSON string
	var updatedAt int64
	err := row.Scan(&m.SKU, &m.Platform, &m.OfferID, &m.ListingID, &m.CategoryID, &policyJSON, &specificsJSON,
		&m.MerchantLocationKey, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	_ = json.Unmarshal([]byte(policyJSON), &m.PolicyIDs)
	_ = json.Unmarshal([]byte(specificsJSON), &m.ItemSpecifics)
	m.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &m, nil
}
