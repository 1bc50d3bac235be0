package gate

import (
	"testing"

	"keygate/internal/platform/config"
	"keygate/internal/platform/models"
)

func TestPolicy_Defaults(t *testing.T) {
	p := NewPolicy(nil)

	tests := []struct {
		tier    models.Tier
		maxKeys int
		rps     int
		scopes  int
	}{
		{models.TierStandard, 10, 10, 1},
		{models.TierPriority, 100, 100, 3},
		{models.TierUnlimited, -1, 0, 5},
	}

	for _, tt := range tests {
		if got := p.MaxLiveKeys(tt.tier); got != tt.maxKeys {
			t.Errorf("MaxLiveKeys(%v) = %d, want %d", tt.tier, got, tt.maxKeys)
		}
		if got := p.RequestsPerSecond(tt.tier); got != tt.rps {
			t.Errorf("RequestsPerSecond(%v) = %d, want %d", tt.tier, got, tt.rps)
		}
		if got := p.DefaultScopes(tt.tier); len(got) != tt.scopes {
			t.Errorf("DefaultScopes(%v) = %v, want %d scopes", tt.tier, got, tt.scopes)
		}
	}
}

func TestPolicy_UnknownTierFallsBackToStandard(t *testing.T) {
	p := NewPolicy(nil)

	if got := p.RequestsPerSecond(models.Tier("MYSTERY")); got != 10 {
		t.Errorf("RequestsPerSecond(unknown) = %d, want STANDARD value 10", got)
	}
}

func TestPolicy_ConfigOverride(t *testing.T) {
	p := NewPolicy(map[string]config.TierConfig{
		"standard": {MaxLiveKeys: 3, RequestsPerSecond: 5, Scopes: []string{ScopeGenerateText}},
	})

	if got := p.MaxLiveKeys(models.TierStandard); got != 3 {
		t.Errorf("MaxLiveKeys = %d, want 3", got)
	}
	if got := p.RequestsPerSecond(models.TierStandard); got != 5 {
		t.Errorf("RequestsPerSecond = %d, want 5", got)
	}
	// Other tiers keep their defaults
	if got := p.RequestsPerSecond(models.TierPriority); got != 100 {
		t.Errorf("RequestsPerSecond(priority) = %d, want 100", got)
	}
}

// Viper lowercases map keys, so the tier table from config arrives as
// "standard"/"priority"/"unlimited". Each key must land on its own tier
// rather than collapsing onto STANDARD.
func TestPolicy_LowercaseConfigKeys(t *testing.T) {
	p := NewPolicy(map[string]config.TierConfig{
		"priority":  {MaxLiveKeys: 50, RequestsPerSecond: 75, Scopes: []string{ScopeGenerateText, ScopeSpeech}},
		"unlimited": {MaxLiveKeys: -1, RequestsPerSecond: 0, Scopes: []string{ScopeGenerateText, ScopeAdmin}},
	})

	if got := p.RequestsPerSecond(models.TierPriority); got != 75 {
		t.Errorf("RequestsPerSecond(priority) = %d, want 75", got)
	}
	if got := p.MaxLiveKeys(models.TierUnlimited); got != -1 {
		t.Errorf("MaxLiveKeys(unlimited) = %d, want -1", got)
	}

	// STANDARD was not named in the config and must keep its defaults,
	// not inherit whichever entry happened to be iterated last.
	if got := p.RequestsPerSecond(models.TierStandard); got != 10 {
		t.Errorf("RequestsPerSecond(standard) = %d, want default 10", got)
	}
	if scopes := p.DefaultScopes(models.TierStandard); HasScope(scopes, ScopeAdmin) {
		t.Errorf("STANDARD scopes gained admin from another tier's config: %v", scopes)
	}
}

func TestPolicy_DefaultScopesReturnsCopy(t *testing.T) {
	p := NewPolicy(nil)

	scopes := p.DefaultScopes(models.TierStandard)
	scopes[0] = "mutated"

	if got := p.DefaultScopes(models.TierStandard); got[0] != ScopeGenerateText {
		t.Errorf("policy scope table was mutated through a returned slice: %v", got)
	}
}

func TestHasScope(t *testing.T) {
	scopes := []string{ScopeGenerateText, ScopeSpeech}

	if !HasScope(scopes, ScopeSpeech) {
		t.Error("HasScope should find speech")
	}
	if HasScope(scopes, ScopeAdmin) {
		t.Error("HasScope should not find admin")
	}
	if HasScope(nil, ScopeGenerateText) {
		t.Error("HasScope on nil set should be false")
	}
}
