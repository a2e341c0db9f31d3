package store

import "database/sql"

func (s *Store) schemaVersion() int {
	var v int
	_ = s.sql.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&v)
	return v
}

// migrate runs every pending versioned migration block in order. Each
// block is idempotent and gated on the current schema_version row, so
// re-running migrate on an already-current database is a no-op.
func (s *Store) migrate() error {
	if _, err := s.sql.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`); err != nil {
		return err
	}
	version := s.schemaVersion()

	steps := []func(*sql.DB) error{
		migrateV1Products,
		migrateV2Listings,
		migrateV3UploadQueue,
		migrateV4PlatformMetadata,
		migrateV5CredentialTokens,
		migrateV6PriceHistory,
		migrateV7CacheMetadata,
		migrateV8ProductTitleEN,
	}

	for i, step := range steps {
		target := i + 1
		if version >= target {
			continue
		}
		if err := step(s.sql); err != nil {
			return err
		}
		if _, err := s.sql.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, target); err != nil {
			return err
		}
	}
	return nil
}

func migrateV1Products(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS products (
			asin              TEXT PRIMARY KEY,
			title_ja          TEXT,
			description       TEXT,
			brand             TEXT,
			category_path     TEXT,
			images_json       TEXT NOT NULL DEFAULT '[]',
			amazon_price_jpy  INTEGER,
			amazon_in_stock   INTEGER NOT NULL DEFAULT 0,
			last_fetched_at   INTEGER,
			created_at        INTEGER NOT NULL,
			updated_at        INTEGER NOT NULL
		)`)
	return err
}

func migrateV2Listings(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS listings (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			asin              TEXT NOT NULL,
			platform          TEXT NOT NULL,
			account_id        TEXT NOT NULL,
			platform_item_id  TEXT,
			sku               TEXT UNIQUE,
			selling_price     INTEGER,
			currency          TEXT NOT NULL DEFAULT 'JPY',
			in_stock_quantity INTEGER NOT NULL DEFAULT 0,
			status            TEXT NOT NULL DEFAULT 'pending',
			visibility        TEXT NOT NULL DEFAULT 'public',
			listed_at         INTEGER,
			updated_at        INTEGER NOT NULL,
			UNIQUE(asin, platform, account_id)
		)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status)`)
	return err
}

func migrateV3UploadQueue(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS upload_queue (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			asin           TEXT NOT NULL,
			platform       TEXT NOT NULL,
			account_id     TEXT NOT NULL,
			scheduled_time INTEGER NOT NULL,
			priority       INTEGER NOT NULL DEFAULT 0,
			status         TEXT NOT NULL DEFAULT 'pending',
			retry_count    INTEGER NOT NULL DEFAULT 0,
			error_message  TEXT,
			created_at     INTEGER NOT NULL,
			processed_at   INTEGER,
			UNIQUE(asin, platform, account_id)
		)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_queue_claim ON upload_queue(status, priority DESC, scheduled_time ASC)`)
	return err
}

func migrateV4PlatformMetadata(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS platform_metadata (
			sku                   TEXT PRIMARY KEY,
			platform              TEXT NOT NULL,
			offer_id              TEXT,
			listing_id            TEXT,
			category_id           TEXT,
			policy_ids_json       TEXT NOT NULL DEFAULT '{}',
			item_specifics_json   TEXT NOT NULL DEFAULT '{}',
			merchant_location_key TEXT,
			updated_at            INTEGER NOT NULL
		)`)
	return err
}

func migrateV5CredentialTokens(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS credential_tokens (
			account_id    TEXT NOT NULL,
			platform      TEXT NOT NULL,
			access_token  TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			token_type    TEXT,
			expires_in    INTEGER NOT NULL DEFAULT 0,
			saved_at      INTEGER NOT NULL,
			PRIMARY KEY (account_id, platform)
		)`)
	return err
}

func migrateV6PriceHistory(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS price_history (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			asin       TEXT NOT NULL,
			platform   TEXT NOT NULL,
			account_id TEXT NOT NULL,
			price      INTEGER NOT NULL,
			changed_at INTEGER NOT NULL
		)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_price_history_lookup ON price_history(asin, platform, account_id, changed_at)`)
	return err
}

func migrateV7CacheMetadata(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS cache_metadata (
			id                   INTEGER PRIMARY KEY CHECK (id = 1),
			hits                 INTEGER NOT NULL DEFAULT 0,
			misses               INTEGER NOT NULL DEFAULT 0,
			total_cached         INTEGER NOT NULL DEFAULT 0,
			last_bulk_update_at  INTEGER
		)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`INSERT OR IGNORE INTO cache_metadata (id, hits, misses, total_cached) VALUES (1, 0, 0, 0)`)
	return err
}

// English titles arrived after the initial products schema shipped, so
// this step is additive against databases created by either shape.
func migrateV8ProductTitleEN(db *sql.DB) error {
	return ensureTableColumn(db, "products", "title_en", "TEXT")
}
