// Package identity reads the caller identity that the upstream auth layer
// attaches to every request. Tokens are verified before requests reach
// these services; the headers are trusted as is.
package identity

import (
	"net/http"
	"strings"

	"github.com/ThekraQaqish/Quikko-sub000/internal/domain"
)

const (
	HeaderUserID     = "X-User-ID"
	HeaderGuestToken = "X-Guest-Token"
)

// FromRequest prefers the registered user over the guest token.
func FromRequest(r *http.Request) (domain.Owner, error) {
	if userID := strings.TrimSpace(r.Header.Get(HeaderUserID)); userID != "" {
		return domain.RegisteredOwner(userID), nil
	}
	if token := strings.TrimSpace(r.Header.Get(HeaderGuestToken)); token != "" {
		return domain.GuestOwner(token), nil
	}
	return domain.Owner{}, domain.ErrMissingOwner
}

// UserID returns the registered user id, which vendor endpoints require.
func UserID(r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	return userID, userID != ""
}

// Apply sets the identity headers on an outgoing request.
func Apply(req *http.Request, owner domain.Owner) {
	if userID, ok := owner.UserID(); ok {
		req.Header.Set(HeaderUserID, userID)
	}
	if token, ok := owner.GuestToken(); ok {
		req.Header.Set(HeaderGuestToken, token)
	}
}
