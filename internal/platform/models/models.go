package models

import "strings"

// Tier is a user's service class, driving key quotas, default scopes and
// the request rate ceiling.
type Tier string

const (
	TierStandard  Tier = "STANDARD"
	TierPriority  Tier = "PRIORITY"
	TierUnlimited Tier = "UNLIMITED"
)

// ParseTier maps a raw string to a known tier, defaulting to STANDARD.
// Matching is case-insensitive: viper lowercases config map keys, so the
// tier table arrives as "standard"/"priority"/"unlimited".
func ParseTier(s string) Tier {
	switch Tier(strings.ToUpper(s)) {
	case TierPriority:
		return TierPriority
	case TierUnlimited:
		return TierUnlimited
	default:
		return TierStandard
	}
}

type Organization struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

type User struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Username       string `json:"username"`
	PasswordHash   string `json:"-"`
	IsAdmin        bool   `json:"is_admin"`
	Tier           Tier   `json:"tier"`
	CreatedAt      int64  `json:"created_at"`
}
