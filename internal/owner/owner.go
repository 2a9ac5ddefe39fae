package owner

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind discriminates the two identity modes a shopper can have.
type Kind int

const (
	// KindUser is an authenticated user identified by a user ID.
	KindUser Kind = iota + 1
	// KindGuest is an anonymous shopper identified by a session token.
	KindGuest
)

// Owner is a tagged union: exactly one of user ID or guest session token
// identifies a shopper. Carts and orders are scoped by it, so every query
// site must handle both cases explicitly.
type Owner struct {
	kind   Kind
	userID uuid.UUID
	token  string
}

// User constructs an Owner for an authenticated user.
func User(userID uuid.UUID) Owner {
	return Owner{kind: KindUser, userID: userID}
}

// Guest constructs an Owner for a guest session token.
func Guest(token string) Owner {
	return Owner{kind: KindGuest, token: token}
}

// Kind returns the identity mode, or 0 for the zero Owner.
func (o Owner) Kind() Kind {
	return o.kind
}

// IsZero reports whether the Owner carries no identity at all.
func (o Owner) IsZero() bool {
	return o.kind == 0
}

// IsUser reports whether the Owner is an authenticated user.
func (o Owner) IsUser() bool {
	return o.kind == KindUser
}

// UserID returns the user ID. Only meaningful when IsUser is true.
func (o Owner) UserID() uuid.UUID {
	return o.userID
}

// SessionToken returns the guest session token. Only meaningful for guests.
func (o Owner) SessionToken() string {
	return o.token
}

// Key returns the opaque owner key used for log enrichment and event metadata.
func (o Owner) Key() string {
	switch o.kind {
	case KindUser:
		return "user:" + o.userID.String()
	case KindGuest:
		return "guest:" + o.token
	default:
		return ""
	}
}

// Equal reports whether two Owners identify the same shopper.
func (o Owner) Equal(other Owner) bool {
	return o == other
}

// SQLArgs returns the (user_id, session_token) pair for the two nullable
// owner columns. Exactly one of the two is non-nil for a non-zero Owner.
func (o Owner) SQLArgs() (userID any, sessionToken any) {
	switch o.kind {
	case KindUser:
		return o.userID, nil
	case KindGuest:
		return nil, o.token
	default:
		return nil, nil
	}
}

// FromColumns reconstructs an Owner from the two nullable owner columns.
// It errors when both or neither are set, which indicates a corrupt row.
func FromColumns(userID *uuid.UUID, sessionToken *string) (Owner, error) {
	switch {
	case userID != nil && sessionToken != nil:
		return Owner{}, fmt.Errorf("owner: both user_id and session_token set")
	case userID != nil:
		return User(*userID), nil
	case sessionToken != nil:
		return Guest(*sessionToken), nil
	default:
		return Owner{}, fmt.Errorf("owner: neither user_id nor session_token set")
	}
}

// NewSessionToken mints a fresh guest session token.
func NewSessionToken() string {
	return uuid.New().String()
}
