package gate

import (
	"keygate/internal/platform/config"
	"keygate/internal/platform/models"
)

// Scopes gating the operation catalog.
const (
	ScopeGenerateText  = "generate-text"
	ScopeGenerateImage = "generate-image"
	ScopeSpeech        = "speech"
	ScopeGenerateVideo = "generate-video"
	ScopeAdmin         = "admin"
)

// Policy maps a tier to its key quota, default scopes and request rate
// ceiling. Values come from configuration; the defaults below apply when a
// tier is absent from the config file.
type Policy struct {
	tiers map[models.Tier]config.TierConfig
}

func defaultTiers() map[models.Tier]config.TierConfig {
	return map[models.Tier]config.TierConfig{
		models.TierStandard: {
			MaxLiveKeys:       10,
			RequestsPerSecond: 10,
			Scopes:            []string{ScopeGenerateText},
		},
		models.TierPriority: {
			MaxLiveKeys:       100,
			RequestsPerSecond: 100,
			Scopes:            []string{ScopeGenerateText, ScopeGenerateImage, ScopeSpeech},
		},
		models.TierUnlimited: {
			MaxLiveKeys:       -1,
			RequestsPerSecond: 0,
			Scopes:            []string{ScopeGenerateText, ScopeGenerateImage, ScopeSpeech, ScopeGenerateVideo, ScopeAdmin},
		},
	}
}

func NewPolicy(cfg map[string]config.TierConfig) *Policy {
	tiers := defaultTiers()
	for name, tc := range cfg {
		tiers[models.ParseTier(name)] = tc
	}
	return &Policy{tiers: tiers}
}

func (p *Policy) tier(t models.Tier) config.TierConfig {
	if tc, ok := p.tiers[t]; ok {
		return tc
	}
	return p.tiers[models.TierStandard]
}

// MaxLiveKeys returns the cap on live (non-revoked) keys per user.
// A negative value means unbounded.
func (p *Policy) MaxLiveKeys(t models.Tier) int {
	return p.tier(t).MaxLiveKeys
}

// DefaultScopes returns a copy of the tier's default scope set.
func (p *Policy) DefaultScopes(t models.Tier) []string {
	src := p.tier(t).Scopes
	scopes := make([]string, len(src))
	copy(scopes, src)
	return scopes
}

// RequestsPerSecond returns the rate ceiling; 0 or less means unlimited.
func (p *Policy) RequestsPerSecond(t models.Tier) int {
	return p.tier(t).RequestsPerSecond
}

// HasScope reports whether the scope set contains the required scope.
func HasScope(scopes []string, required string) bool {
	for _, s := range scopes {
		if s == required {
			return true
		}
	}
	return false
}
