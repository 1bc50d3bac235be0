package gate

import (
	"errors"
	"time"

	"keygate/internal/pkg/secrets"
	"keygate/internal/platform/auth"
	"keygate/internal/platform/models"
)

// CredentialKind tags which path resolved a principal.
type CredentialKind string

const (
	CredentialAPIKey CredentialKind = "api_key"
	CredentialToken  CredentialKind = "token"
)

// Credential is a request's declared identity, extracted once at the HTTP
// boundary. A raw API key takes priority when both fields are set.
type Credential struct {
	APIKey string
	Bearer string
}

// Principal is the resolved identity every later stage consumes. Nothing
// downstream re-derives identity from raw headers.
type Principal struct {
	UserID         string
	OrganizationID string
	Username       string
	IsAdmin        bool
	Tier           models.Tier
	Scopes         []string
	Kind           CredentialKind
}

// Resolution failures. The gate maps every one of them to an
// Unauthenticated verdict; identity is never allowed to fail open, so
// store errors surface here too rather than admitting.
var (
	ErrNoCredential = errors.New("no credential provided")
	ErrInvalidKey   = errors.New("invalid api key")
	ErrKeyRevoked   = errors.New("api key revoked")
	ErrKeyExpired   = errors.New("api key expired")
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrUserMissing  = errors.New("user not found")
	ErrOrgMismatch  = errors.New("organization mismatch in token")
)

type UserStore interface {
	GetByID(id string) (*models.User, error)
}

type KeyStore interface {
	GetByHash(hash string) (*models.APIKey, error)
}

type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Resolver turns a declared credential into a Principal or a typed failure.
type Resolver struct {
	codec  *secrets.Codec
	keys   KeyStore
	users  UserStore
	tokens TokenVerifier
	policy *Policy
}

func NewResolver(codec *secrets.Codec, keys KeyStore, users UserStore, tokens TokenVerifier, policy *Policy) *Resolver {
	return &Resolver{codec: codec, keys: keys, users: users, tokens: tokens, policy: policy}
}

func (r *Resolver) Resolve(cred Credential) (*Principal, error) {
	if cred.APIKey != "" {
		return r.resolveKey(cred.APIKey)
	}
	if cred.Bearer != "" {
		return r.resolveToken(cred.Bearer)
	}
	return nil, ErrNoCredential
}

func (r *Resolver) resolveKey(rawKey string) (*Principal, error) {
	key, err := r.keys.GetByHash(r.codec.Hash(rawKey))
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, ErrInvalidKey
	}
	if key.Revoked {
		return nil, ErrKeyRevoked
	}
	if key.Expired(time.Now()) {
		return nil, ErrKeyExpired
	}

	user, err := r.users.GetByID(key.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserMissing
	}

	return &Principal{
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		Username:       user.Username,
		IsAdmin:        user.IsAdmin,
		Tier:           user.Tier,
		Scopes:         key.Scopes,
		Kind:           CredentialAPIKey,
	}, nil
}

func (r *Resolver) resolveToken(token string) (*Principal, error) {
	claims, err := r.tokens.Verify(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := r.users.GetByID(claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserMissing
	}

	// A token minted before the user moved organizations must not keep
	// working against the old tenant.
	if user.OrganizationID != claims.OrganizationID {
		return nil, ErrOrgMismatch
	}

	// Tokens are not independently scoped; they carry the tier defaults.
	return &Principal{
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		Username:       user.Username,
		IsAdmin:        user.IsAdmin,
		Tier:           user.Tier,
		Scopes:         r.policy.DefaultScopes(user.Tier),
		Kind:           CredentialToken,
	}, nil
}
