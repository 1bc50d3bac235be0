package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apiContext "keygate/internal/api/context"
	"keygate/internal/gate"
	apperrors "keygate/internal/pkg/errors"
)

// GenerateHandler serves the protected generation operations. The gate
// middleware has already admitted the request; the handlers only echo a
// stub result naming the resolved principal.
type GenerateHandler struct{}

func NewGenerateHandler() *GenerateHandler {
	return &GenerateHandler{}
}

func (h *GenerateHandler) Text(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "text")
}

func (h *GenerateHandler) Image(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "image")
}

func (h *GenerateHandler) Speech(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "speech")
}

func (h *GenerateHandler) Video(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "video")
}

func (h *GenerateHandler) respond(w http.ResponseWriter, r *http.Request, kind string) {
	principal := r.Context().Value(apiContext.Principal).(*gate.Principal)

	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		apperrors.WriteError(w, http.StatusBadRequest, apperrors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"kind":    kind,
		"message": "generated " + kind + " for org " + principal.OrganizationID + " by user " + principal.Username,
		"payload": payload,
	})
}
