package models

import "time"

// APIKey stores only the keyed hash of the secret plus a masked preview.
// Revoked is monotonic: once set it never reverts.
type APIKey struct {
	ID             string   `json:"id"`
	OrganizationID string   `json:"organization_id"`
	UserID         string   `json:"user_id"`
	Name           string   `json:"name,omitempty"`
	KeyHash        string   `json:"-"`
	KeyPreview     string   `json:"key_preview"`
	Scopes         []string `json:"scopes"` // JSON array in DB
	Revoked        bool     `json:"revoked"`
	CreatedAt      int64    `json:"created_at"`
	ExpiresAt      *int64   `json:"expires_at,omitempty"`
}

// Expired reports whether the key's expiry is set and already in the past.
// Expiry is evaluated at use time; nothing deletes expired rows.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && *k.ExpiresAt < now.Unix()
}
