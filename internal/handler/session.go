package handler

import (
	"fmt"
	"net/http"

	"github.com/conversant-bank/atm-backend/internal/auth"
	"github.com/conversant-bank/atm-backend/internal/domain"
	"github.com/conversant-bank/atm-backend/internal/session"
)

// resolveSession loads the live session behind the request's bearer token.
func resolveSession(r *http.Request, mgr *session.Manager) (*domain.Session, error) {
	id, ok := auth.SessionIDFromContext(r.Context())
	if !ok {
		return nil, fmt.Errorf("resolveSession: %w", domain.ErrNotFound)
	}
	return mgr.Get(r.Context(), id)
}
