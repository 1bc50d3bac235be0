package gate

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"keygate/internal/pkg/secrets"
	"keygate/internal/platform/auth"
	"keygate/internal/platform/config"
	"keygate/internal/platform/models"
	"keygate/internal/platform/repositories"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
	CREATE TABLE organizations (
		id TEXT PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE users (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		is_admin INTEGER NOT NULL DEFAULT 0,
		tier TEXT NOT NULL DEFAULT 'STANDARD',
		created_at INTEGER NOT NULL
	);
	CREATE TABLE api_keys (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		name TEXT,
		key_hash TEXT UNIQUE NOT NULL,
		key_preview TEXT NOT NULL,
		scopes TEXT NOT NULL DEFAULT '[]',
		revoked INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		expires_at INTEGER
	);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return db
}

type resolverFixture struct {
	db       *sql.DB
	resolver *Resolver
	codec    *secrets.Codec
	tokenSvc *auth.TokenService
	users    *repositories.UserRepository
	keys     *repositories.APIKeyRepository
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()
	db := setupTestDB(t)

	codec := secrets.NewCodec("test-hash-secret", "sk")
	tokenSvc := auth.NewTokenService(config.JWTConfig{Secret: "test-jwt-secret", AccessTokenTTL: time.Hour})
	users := repositories.NewUserRepository(db)
	keys := repositories.NewAPIKeyRepository(db)
	policy := NewPolicy(nil)

	return &resolverFixture{
		db:       db,
		resolver: NewResolver(codec, keys, users, tokenSvc, policy),
		codec:    codec,
		tokenSvc: tokenSvc,
		users:    users,
		keys:     keys,
	}
}

func (f *resolverFixture) createUser(t *testing.T, username string, tier models.Tier) *models.User {
	t.Helper()
	user := &models.User{
		OrganizationID: "org_1",
		Username:       username,
		PasswordHash:   "x",
		Tier:           tier,
	}
	if err := f.users.Create(user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

func (f *resolverFixture) createKey(t *testing.T, user *models.User, scopes []string) (string, *models.APIKey) {
	t.Helper()
	rawKey, err := f.codec.Generate()
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	key := &models.APIKey{
		OrganizationID: user.OrganizationID,
		UserID:         user.ID,
		KeyHash:        f.codec.Hash(rawKey),
		KeyPreview:     secrets.Mask(rawKey),
		Scopes:         scopes,
	}
	if err := f.keys.CreateWithinQuota(key, -1); err != nil {
		t.Fatalf("Failed to create key: %v", err)
	}
	return rawKey, key
}

func TestResolve_KeyPath(t *testing.T) {
	f := newResolverFixture(t)
	user := f.createUser(t, "alice", models.TierPriority)
	rawKey, _ := f.createKey(t, user, []string{ScopeGenerateText, ScopeSpeech})

	principal, err := f.resolver.Resolve(Credential{APIKey: rawKey})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if principal.UserID != user.ID {
		t.Errorf("UserID = %v, want %v", principal.UserID, user.ID)
	}
	if principal.OrganizationID != "org_1" {
		t.Errorf("OrganizationID = %v, want org_1", principal.OrganizationID)
	}
	if principal.Tier != models.TierPriority {
		t.Errorf("Tier = %v, want PRIORITY", principal.Tier)
	}
	if principal.Kind != CredentialAPIKey {
		t.Errorf("Kind = %v, want api_key", principal.Kind)
	}
	if len(principal.Scopes) != 2 || !HasScope(principal.Scopes, ScopeSpeech) {
		t.Errorf("Scopes = %v, want the key's own scope set", principal.Scopes)
	}
}

func TestResolve_KeyPathFailures(t *testing.T) {
	f := newResolverFixture(t)
	user := f.createUser(t, "alice", models.TierStandard)

	t.Run("unknown key", func(t *testing.T) {
		if _, err := f.resolver.Resolve(Credential{APIKey: "sk-deadbeef"}); err != ErrInvalidKey {
			t.Errorf("error = %v, want ErrInvalidKey", err)
		}
	})

	t.Run("revoked key stays revoked", func(t *testing.T) {
		rawKey, key := f.createKey(t, user, []string{ScopeGenerateText})
		if err := f.keys.Revoke(key.ID, user.ID); err != nil {
			t.Fatalf("Revoke() error: %v", err)
		}
		for i := 0; i < 3; i++ {
			if _, err := f.resolver.Resolve(Credential{APIKey: rawKey}); err != ErrKeyRevoked {
				t.Fatalf("attempt %d: error = %v, want ErrKeyRevoked", i, err)
			}
		}
	})

	t.Run("expired key", func(t *testing.T) {
		rawKey, _ := f.createKey(t, user, []string{ScopeGenerateText})
		past := time.Now().Add(-time.Hour).Unix()
		// Backdate the expiry directly; the repo has no update path for it.
		if _, err := f.db.Exec(`UPDATE api_keys SET expires_at = ? WHERE key_hash = ?`, past, f.codec.Hash(rawKey)); err != nil {
			t.Fatalf("Failed to backdate expiry: %v", err)
		}
		if _, err := f.resolver.Resolve(Credential{APIKey: rawKey}); err != ErrKeyExpired {
			t.Errorf("error = %v, want ErrKeyExpired", err)
		}
	})

	t.Run("owner no longer exists", func(t *testing.T) {
		ghost := &models.User{ID: "usr_ghost", OrganizationID: "org_1", Username: "ghost", PasswordHash: "x"}
		rawKey, _ := f.createKey(t, ghost, []string{ScopeGenerateText})
		if _, err := f.resolver.Resolve(Credential{APIKey: rawKey}); err != ErrUserMissing {
			t.Errorf("error = %v, want ErrUserMissing", err)
		}
	})
}

func TestResolve_TokenPath(t *testing.T) {
	f := newResolverFixture(t)
	user := f.createUser(t, "bob", models.TierUnlimited)

	token, err := f.tokenSvc.Issue(user.ID, user.OrganizationID, user.Tier)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	principal, err := f.resolver.Resolve(Credential{Bearer: token})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if principal.Kind != CredentialToken {
		t.Errorf("Kind = %v, want token", principal.Kind)
	}
	// Tokens carry the tier defaults, not key scopes.
	if !HasScope(principal.Scopes, ScopeAdmin) {
		t.Errorf("Scopes = %v, want UNLIMITED defaults incl. admin", principal.Scopes)
	}
}

func TestResolve_TokenPathFailures(t *testing.T) {
	f := newResolverFixture(t)
	user := f.createUser(t, "carol", models.TierStandard)

	t.Run("malformed token", func(t *testing.T) {
		if _, err := f.resolver.Resolve(Credential{Bearer: "garbage"}); err != ErrInvalidToken {
			t.Errorf("error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("user missing", func(t *testing.T) {
		token, _ := f.tokenSvc.Issue("usr_gone", "org_1", models.TierStandard)
		if _, err := f.resolver.Resolve(Credential{Bearer: token}); err != ErrUserMissing {
			t.Errorf("error = %v, want ErrUserMissing", err)
		}
	})

	t.Run("organization mismatch", func(t *testing.T) {
		// Token minted against org_other; the user's current org is org_1.
		token, _ := f.tokenSvc.Issue(user.ID, "org_other", user.Tier)
		if _, err := f.resolver.Resolve(Credential{Bearer: token}); err != ErrOrgMismatch {
			t.Errorf("error = %v, want ErrOrgMismatch", err)
		}
	})
}

func TestResolve_NoCredential(t *testing.T) {
	f := newResolverFixture(t)

	if _, err := f.resolver.Resolve(Credential{}); err != ErrNoCredential {
		t.Errorf("error = %v, want ErrNoCredential", err)
	}
}

func TestResolve_KeyTakesPriorityOverBearer(t *testing.T) {
	f := newResolverFixture(t)
	user := f.createUser(t, "dave", models.TierStandard)
	rawKey, _ := f.createKey(t, user, []string{ScopeGenerateText})

	// The bearer value is garbage; the key path must win and succeed.
	principal, err := f.resolver.Resolve(Credential{APIKey: rawKey, Bearer: "garbage"})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if principal.Kind != CredentialAPIKey {
		t.Errorf("Kind = %v, want api_key", principal.Kind)
	}
}
