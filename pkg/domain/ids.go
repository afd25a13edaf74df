// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "scorepass/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing IdentityID where CredentialID is expected.
type (
	IdentityID   uuid.UUID
	CredentialID uuid.UUID
)

// Principal is an address-like participant identifier (subject, requester,
// validator, admin). It is opaque to the core; uniqueness is enforced by the
// identity registry.
type Principal string

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseIdentityID(s string) (IdentityID, error) {
	id, err := parseUUID(s, "identity ID")
	return IdentityID(id), err
}

func ParseCredentialID(s string) (CredentialID, error) {
	id, err := parseUUID(s, "credential ID")
	return CredentialID(id), err
}

func ParsePrincipal(s string) (Principal, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal cannot be empty")
	}
	return Principal(s), nil
}

// String methods - for logging and debugging.

func (id IdentityID) String() string   { return uuid.UUID(id).String() }
func (id CredentialID) String() string { return uuid.UUID(id).String() }
func (p Principal) String() string     { return string(p) }

// IsNil checks - used for service-layer validation.

func (id IdentityID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id CredentialID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (p Principal) IsNil() bool     { return p == "" }

// Text marshaling so JSON payloads carry canonical UUID strings.

func (id IdentityID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id CredentialID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *IdentityID) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentityID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *CredentialID) UnmarshalText(text []byte) error {
	parsed, err := ParseCredentialID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NewIdentityID mints a fresh identity identifier.
func NewIdentityID() IdentityID { return IdentityID(uuid.New()) }

// NewCredentialID mints a fresh credential identifier.
func NewCredentialID() CredentialID { return CredentialID(uuid.New()) }

// parseUUID is the shared validation logic.
// Nil UUIDs are allowed here; use IsNil() at the service layer so store
// lookups can return proper "not found" errors for consistency.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}
