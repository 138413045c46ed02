package domain

import (
	"encoding/json"
	"errors"
	"strings"
)

// Owner identifies who a cart, order or payment belongs to: either a
// registered user or an anonymous guest token, never both.
type Owner struct {
	userID     string
	guestToken string
}

func RegisteredOwner(userID string) Owner {
	return Owner{userID: strings.TrimSpace(userID)}
}

func GuestOwner(token string) Owner {
	return Owner{guestToken: strings.TrimSpace(token)}
}

// OwnerFromColumns rebuilds an Owner from the nullable user_id/guest_token
// column pair. Exactly one of them must be set.
func OwnerFromColumns(userID, guestToken *string) (Owner, error) {
	switch {
	case userID != nil && guestToken == nil:
		return RegisteredOwner(*userID), nil
	case userID == nil && guestToken != nil:
		return GuestOwner(*guestToken), nil
	default:
		return Owner{}, errors.New("owner must have exactly one of user_id or guest_token")
	}
}

func (o Owner) UserID() (string, bool) {
	return o.userID, o.userID != ""
}

func (o Owner) GuestToken() (string, bool) {
	return o.guestToken, o.guestToken != ""
}

func (o Owner) IsGuest() bool {
	return o.guestToken != ""
}

func (o Owner) IsZero() bool {
	return o.userID == "" && o.guestToken == ""
}

func (o Owner) Equal(other Owner) bool {
	return !o.IsZero() && o == other
}

// Columns returns the values for the user_id and guest_token columns, with
// the unset side as nil so it is stored as NULL.
func (o Owner) Columns() (userID, guestToken any) {
	if o.userID != "" {
		return o.userID, nil
	}
	if o.guestToken != "" {
		return nil, o.guestToken
	}
	return nil, nil
}

type ownerJSON struct {
	Kind   string `json:"kind"`
	UserID string `json:"user_id,omitempty"`
}

// MarshalJSON never exposes the guest token.
func (o Owner) MarshalJSON() ([]byte, error) {
	if o.IsGuest() {
		return json.Marshal(ownerJSON{Kind: "guest"})
	}
	return json.Marshal(ownerJSON{Kind: "registered", UserID: o.userID})
}
