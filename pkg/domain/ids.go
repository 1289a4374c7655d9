// Package domain holds typed identifiers and small value types shared across
// bounded contexts. Typed IDs keep a user id from being passed where a property
// id is expected.
package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "propnest/pkg/domain-errors"
)

// UserID identifies a marketplace user (lister, viewer or administrator).
type UserID uuid.UUID

// PropertyID identifies a listed property.
type PropertyID uuid.UUID

func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id UserID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id PropertyID) String() string { return uuid.UUID(id).String() }
func (id PropertyID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// NewPropertyID returns a fresh random property id.
func NewPropertyID() PropertyID {
	return PropertyID(uuid.New())
}

// ParseUserID parses a non-nil UUID into a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user_id")
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

// ParsePropertyID parses a non-nil UUID into a PropertyID.
func ParsePropertyID(s string) (PropertyID, error) {
	u, err := parseUUID(s, "property_id")
	if err != nil {
		return PropertyID{}, err
	}
	return PropertyID(u), nil
}

const maxIDLength = 64

func parseUUID(s, field string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	if len(s) > maxIDLength || !utf8.ValidString(s) {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field)
	}
	return u, nil
}
