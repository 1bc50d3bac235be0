package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "keygate/internal/api/context"
	"keygate/internal/gate"
	apperrors "keygate/internal/pkg/errors"
	"keygate/internal/platform/models"
	"keygate/internal/platform/repositories"
)

type AdminHandler struct {
	keyRepo *repositories.APIKeyRepository
}

func NewAdminHandler(keyRepo *repositories.APIKeyRepository) *AdminHandler {
	return &AdminHandler{keyRepo: keyRepo}
}

// ListOrgKeys lists every key in an organization, masked. Only an admin
// of that same organization may call it; cross-tenant reads are refused.
func (h *AdminHandler) ListOrgKeys(w http.ResponseWriter, r *http.Request) {
	principal := r.Context().Value(apiContext.Principal).(*gate.Principal)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	orgID := params.ByName("org_id")

	if principal.OrganizationID != orgID {
		apperrors.WriteError(w, http.StatusForbidden, apperrors.ErrCodeForbidden, "Cross-tenant access denied", nil)
		return
	}
	if !principal.IsAdmin {
		apperrors.WriteError(w, http.StatusForbidden, apperrors.ErrCodeForbidden, "Admin only", nil)
		return
	}

	keys, err := h.keyRepo.ListByOrg(orgID)
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
