package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
	apiContext "keygate/internal/api/context"
	"keygate/internal/api/handlers"
	"keygate/internal/api/middleware"
	"keygate/internal/gate"
)

type Dependencies struct {
	AuthHandler     *handlers.AuthHandler
	APIKeyHandler   *handlers.APIKeyHandler
	GenerateHandler *handlers.GenerateHandler
	AdminHandler    *handlers.AdminHandler
	HealthHandler   *handlers.HealthHandler
	GateMiddleware  *middleware.GateMiddleware
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	router.GET("/health", wrap(deps.HealthHandler.Check))

	// Authentication routes
	router.POST("/api/v1/auth/signup", wrap(deps.AuthHandler.Signup))
	router.POST("/api/v1/auth/token", wrap(deps.AuthHandler.Login))

	gated := deps.GateMiddleware

	// API key management: gated on identity alone, token credentials only.
	router.POST("/api/v1/apikeys",
		chain(deps.APIKeyHandler.Create, gated.Protect(""), middleware.TokensOnly))
	router.GET("/api/v1/apikeys",
		chain(deps.APIKeyHandler.List, gated.Protect(""), middleware.TokensOnly))
	router.DELETE("/api/v1/apikeys/:key_id",
		chain(deps.APIKeyHandler.Revoke, gated.Protect(""), middleware.TokensOnly))

	// Protected generation operations, each declaring its required scope.
	router.POST("/api/v1/generate/text",
		chain(deps.GenerateHandler.Text, gated.Protect(gate.ScopeGenerateText)))
	router.POST("/api/v1/generate/image",
		chain(deps.GenerateHandler.Image, gated.Protect(gate.ScopeGenerateImage)))
	router.POST("/api/v1/generate/speech",
		chain(deps.GenerateHandler.Speech, gated.Protect(gate.ScopeSpeech)))
	router.POST("/api/v1/generate/video",
		chain(deps.GenerateHandler.Video, gated.Protect(gate.ScopeGenerateVideo)))

	// Admin: same-org key inventory.
	router.GET("/api/v1/organizations/:org_id/keys",
		chain(deps.AdminHandler.ListOrgKeys, gated.Protect("")))

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		// Inject params into context
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
