package services

import (
	"errors"
	"fmt"
)

// Identity is the authenticated caller of a service operation.
// It is built once per request and passed explicitly into every call.
type Identity struct {
	UserID   uint   `json:"userId"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
}

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
)

// canActOn reports whether id may modify resources owned by ownerID.
func (id Identity) canActOn(ownerID uint) bool {
	return id.IsAdmin || (id.UserID != 0 && id.UserID == ownerID)
}
