package http

import (
	"net/http"

	"spendwise/internal/auth"
	applog "spendwise/internal/log"
)

type signOutResponse struct {
	SignedOut bool `json:"signed_out"`
}

// handleSignOut drops the user's session state and clears the token cookie.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()
	existed := s.sessions.SignOut(ctx, userID)

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	applog.FromContext(ctx).InfoContext(ctx, "User signed out",
		applog.FieldUserID, userID,
		applog.FieldOperation, applog.OpSignOut)
	writeJSON(w, http.StatusOK, signOutResponse{SignedOut: existed})
}
