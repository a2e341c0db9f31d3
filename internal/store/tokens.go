package store

import (
	"database/sql"
	"time"
)

// CredentialToken mirrors the credential_tokens table: one OAuth session
// per (account, platform).
type CredentialToken struct {
	AccountID    string
	Platform     string
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int
	SavedAt      time.Time
}

// SaveToken upserts the OAuth token pair for (accountID, platform).
func (s *Store) SaveToken(t CredentialToken) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO credential_tokens (account_id, platform, access_token, refresh_token, token_type, expires_in, saved_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(account_id, platform) DO UPDATE SET
				access_token = excluded.access_token,
				refresh_token = excluded.refresh_token,
				token_type = excluded.token_type,
				expires_in = excluded.expires_in,
				saved_at = excluded.saved_at`,
			t.AccountID, t.Platform, t.AccessToken, t.RefreshToken, t.TokenType, t.ExpiresIn, time.Now().UTC().Unix(),
		)
		return err
	})
}

// GetToken returns the stored token for (accountID, platform), or nil if
// none has ever been saved.
func (s *Store) GetToken(accountID, platform string) (*CredentialToken, error) {
	row := s.sql.QueryRow(`
		SELECT account_id, platform, access_token, refresh_token, token_type, expires_in, saved_at
		FROM credential_tokens WHERE account_id = ? AND platform = ?`, accountID, platform)

	var t CredentialToken
	var savedAt int64
	err := row.Scan(&t.AccountID, &t.Platform, &t.AccessToken, &t.RefreshToken, &t.TokenType, &t.ExpiresIn, &savedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.SavedAt = time.Unix(savedAt, 0).UTC()
	return &t, nil
}

// NeedsRefresh reports whether the saved token is within margin of
// expiring, or absent entirely.
func (t *CredentialToken) NeedsRefresh(margin time.Duration) bool {
	if t == nil {
		return true
	}
	expiresAt := t.SavedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
	return time.Now().After(expiresAt.Add(-margin))
}
