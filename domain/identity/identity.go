// Package identity provides the caller identity value types.
// An identity is either an authenticated account or an anonymous device
// fingerprint, modeled as a tagged variant rather than an interface.
package identity

// Kind tags the identity variant.
type Kind string

const (
	KindAccount Kind = "account"
	KindDevice  Kind = "device"
	KindNone    Kind = "none"
)

// Identity is the caller identity (value type).
// Exactly one variant's fields are set; Kind() reports which.
type Identity struct {
	AccountID   string
	Email       string
	Fingerprint string
}

// Account builds an authenticated account identity.
func Account(accountID, email string) Identity {
	return Identity{AccountID: accountID, Email: email}
}

// Device builds an anonymous device identity.
func Device(fingerprint string) Identity {
	return Identity{Fingerprint: fingerprint}
}

// Kind reports which variant the identity carries. Account identification
// wins if both are somehow present; KindNone means no usable identity.
// This is a PURE function.
func (id Identity) Kind() Kind {
	if id.AccountID != "" || id.Email != "" {
		return KindAccount
	}
	if id.Fingerprint != "" {
		return KindDevice
	}
	return KindNone
}

// IsAnonymous reports whether the identity is a device fingerprint.
func (id Identity) IsAnonymous() bool {
	return id.Kind() == KindDevice
}
