package handlers

import (
	"net/http"

	"github.com/areebabashir/intrnecommerceproj1/internal/platform/httpx"
	"github.com/areebabashir/intrnecommerceproj1/internal/platform/requestctx"
	"github.com/areebabashir/intrnecommerceproj1/internal/services"
)

// resolveSession loads the stores of the cookie session, writing the error response on failure.
func resolveSession(w http.ResponseWriter, r *http.Request, sessions services.SessionProvider) (*services.Session, bool) {
	ctx := r.Context()
	if sessions == nil {
		httpx.WriteError(ctx, w, httpx.NewError("session_unavailable", "shopping session is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	id := requestctx.SessionID(ctx)
	if id == "" {
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "a session cookie is required", http.StatusUnauthorized))
		return nil, false
	}
	session, err := sessions.Session(ctx, id)
	if err != nil {
		writeStoreError(ctx, w, err)
		return nil, false
	}
	return session, true
}
