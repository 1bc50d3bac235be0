package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	apiContext "keygate/internal/api/context"
	"keygate/internal/gate"
	apperrors "keygate/internal/pkg/errors"
	"keygate/internal/pkg/secrets"
	"keygate/internal/platform/models"
	"keygate/internal/platform/repositories"
)

type APIKeyHandler struct {
	keyRepo *repositories.APIKeyRepository
	codec   *secrets.Codec
	policy  *gate.Policy
}

func NewAPIKeyHandler(keyRepo *repositories.APIKeyRepository, codec *secrets.Codec, policy *gate.Policy) *APIKeyHandler {
	return &APIKeyHandler{keyRepo: keyRepo, codec: codec, policy: policy}
}

type CreateKeyRequest struct {
	Name        string   `json:"name"`
	ExpiresDays int      `json:"expires_days"`
	Scopes      []string `json:"scopes"`
}

type CreateKeyResponse struct {
	ID        string   `json:"id"`
	Key       string   `json:"key"` // plaintext, returned exactly once
	Name      string   `json:"name,omitempty"`
	Scopes    []string `json:"scopes"`
	CreatedAt int64    `json:"created_at"`
	ExpiresAt *int64   `json:"expires_at,omitempty"`
}

// Create mints a new API key for the calling user, subject to the tier's
// live-key quota. The response is the only place the plaintext ever
// appears; listings show the masked preview.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := r.Context().Value(apiContext.Principal).(*gate.Principal)

	var req CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, http.StatusBadRequest, apperrors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	rawKey, err := h.codec.Generate()
	if err != nil {
		apperrors.WriteError(w, http.StatusInternalServerError, apperrors.ErrCodeInternal, "Failed to generate key", nil)
		return
	}

	scopes := req.Scopes
	if scopes == nil {
		scopes = h.policy.DefaultScopes(principal.Tier)
	}

	key := &models.APIKey{
		OrganizationID: principal.OrganizationID,
		UserID:         principal.UserID,
		Name:           req.Name,
		KeyHash:        h.codec.Hash(rawKey),
		KeyPreview:     secrets.Mask(rawKey),
		Scopes:         scopes,
	}
	if req.ExpiresDays > 0 {
		exp := time.Now().Add(time.Duration(req.ExpiresDays) * 24 * time.Hour).Unix()
		key.ExpiresAt = &exp
	}

	err = h.keyRepo.CreateWithinQuota(key, h.policy.MaxLiveKeys(principal.Tier))
	if err == apperrors.ErrQuotaExceeded {
		apperrors.WriteError(w, http.StatusForbidden, apperrors.ErrCodeQuotaExceeded,
			"API key quota exceeded for tier "+string(principal.Tier), nil)
		return
	}
	if err != nil {
		apperrors.WriteError(w, http.StatusInternalServerError, apperrors.ErrCodeInternal, "Failed to create key", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(CreateKeyResponse{
		ID:        key.ID,
		Key:       rawKey,
		Name:      key.Name,
		Scopes:    key.Scopes,
		CreatedAt: key.CreatedAt,
		ExpiresAt: key.ExpiresAt,
	})
}

// List returns the caller's keys with masked previews only.
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := r.Context().Value(apiContext.Principal).(*gate.Principal)

	keys, err := h.keyRepo.ListByUser(principal.UserID)
	if err != nil {
		apperrors.WriteError(w, http.StatusInternalServerError, apperrors.ErrCodeInternal, "Database error", nil)
		return
	}
	if keys == nil {
		keys = []*models.APIKey{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(keys)
}

// Revoke marks one of the caller's keys revoked. A key id belonging to
// another user reports 404; revocation never crosses users.
func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	principal := r.Context().Value(apiContext.Principal).(*gate.Principal)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	keyID := params.ByName("key_id")

	err := h.keyRepo.Revoke(keyID, principal.UserID)
	if err == apperrors.ErrNotFound {
		apperrors.WriteError(w, http.StatusNotFound, apperrors.ErrCodeNotFound, "API key not found", nil)
		return
	}
	if err != nil {
		apperrors.WriteError(w, http.StatusInternalServerError, apperrors.ErrCodeInternal, "Database error", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "revoked", "id": keyID})
}
