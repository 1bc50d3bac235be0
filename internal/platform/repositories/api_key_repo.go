package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	apperrors "keygate/internal/pkg/errors"
	"keygate/internal/platform/models"
)

type APIKeyRepository struct {
	db *sql.DB
}

func NewAPIKeyRepository(db *sql.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// CreateWithinQuota inserts the key only if the owner currently holds fewer
// than maxLive live (non-revoked) keys. The count runs inside the INSERT
// statement itself, so the quota check and the write are a single atomic
// step; concurrent creations cannot both slip under the limit.
// maxLive < 0 disables the quota.
func (r *APIKeyRepository) CreateWithinQuota(key *models.APIKey, maxLive int) error {
	if key.ID == "" {
		key.ID = "key_" + uuid.NewString()
	}
	key.CreatedAt = time.Now().Unix()

	scopesJSON, err := json.Marshal(key.Scopes)
	if err != nil {
		return err
	}

	if maxLive < 0 {
		_, err = r.db.Exec(`
			INSERT INTO api_keys (id, organization_id, user_id, name, key_hash, key_preview, scopes, revoked, created_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		`, key.ID, key.OrganizationID, key.UserID, key.Name, key.KeyHash, key.KeyPreview, string(scopesJSON), key.CreatedAt, key.ExpiresAt)
		return err
	}

	res, err := r.db.Exec(`
		INSERT INTO api_keys (id, organization_id, user_id, name, key_hash, key_preview, scopes, revoked, created_at, expires_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, 0, ?, ?
		WHERE (SELECT COUNT(*) FROM api_keys WHERE user_id = ? AND revoked = 0) < ?
	`, key.ID, key.OrganizationID, key.UserID, key.Name, key.KeyHash, key.KeyPreview, string(scopesJSON), key.CreatedAt, key.ExpiresAt, key.UserID, maxLive)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.ErrQuotaExceeded
	}
	return nil
}

func (r *APIKeyRepository) GetByHash(hash string) (*models.APIKey, error) {
	row := r.db.QueryRow(`
		SELECT id, organization_id, user_id, name, key_preview, scopes, revoked, created_at, expires_at
		FROM api_keys WHERE key_hash = ?
	`, hash)

	k, err := scanKey(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	k.KeyHash = hash
	return k, nil
}

func (r *APIKeyRepository) ListByUser(userID string) ([]*models.APIKey, error) {
	return r.list(`user_id`, userID)
}

func (r *APIKeyRepository) ListByOrg(orgID string) ([]*models.APIKey, error) {
	return r.list(`organization_id`, orgID)
}

func (r *APIKeyRepository) list(column, value string) ([]*models.APIKey, error) {
	rows, err := r.db.Query(`
		SELECT id, organization_id, user_id, name, key_preview, scopes, revoked, created_at, expires_at
		FROM api_keys WHERE `+column+` = ? ORDER BY created_at DESC
	`, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Revoke marks the key revoked, scoped to its owning user so one user
// cannot revoke another's key: a foreign id reports ErrNotFound.
// Revoking an already-revoked key is a no-op success.
func (r *APIKeyRepository) Revoke(id, userID string) error {
	res, err := r.db.Exec(`
		UPDATE api_keys SET revoked = 1 WHERE id = ? AND user_id = ?
	`, id, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *APIKeyRepository) CountLiveByUser(userID string) (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM api_keys WHERE user_id = ? AND revoked = 0
	`, userID).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanKey(row rowScanner) (*models.APIKey, error) {
	var k models.APIKey
	var name sql.NullString
	var scopesStr string
	var revoked int
	var expiresAt sql.NullInt64

	err := row.Scan(&k.ID, &k.OrganizationID, &k.UserID, &name, &k.KeyPreview, &scopesStr, &revoked, &k.CreatedAt, &expiresAt)
	if err != nil {
		return nil, err
	}

	k.Name = name.String
	k.Revoked = revoked != 0
	if expiresAt.Valid {
		k.ExpiresAt = new(int64)
		*k.ExpiresAt = expiresAt.Int64
	}
	if err := json.Unmarshal([]byte(scopesStr), &k.Scopes); err != nil {
		return nil, fmt.Errorf("decoding scopes for key %s: %w", k.ID, err)
	}

	return &k, nil
}
