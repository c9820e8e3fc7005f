package registry

import "github.com/roach88/crid/internal/ir"

// Identity is an opaque caller identity (an account, address or user ID).
type Identity string

// NormalizeIdentity returns the NFC form of id.
func NormalizeIdentity(id Identity) Identity {
	return Identity(ir.NormalizeIdentifier(string(id)))
}

// AccessControl holds the single administrator fixed at registry creation.
// It has no mutation operations.
type AccessControl struct {
	admin Identity
}

// NewAccessControl fixes admin as the administrator. admin must be
// non-empty valid UTF-8.
func NewAccessControl(admin Identity) (AccessControl, error) {
	admin = NormalizeIdentity(admin)
	if err := requireText("admin", string(admin), "administrator identity"); err != nil {
		return AccessControl{}, err
	}
	return AccessControl{admin: admin}, nil
}

// Admin returns the administrator identity.
func (a AccessControl) Admin() Identity {
	return a.admin
}

// IsAdmin reports whether id is the administrator.
func (a AccessControl) IsAdmin(id Identity) bool {
	return a.admin != "" && NormalizeIdentity(id) == a.admin
}

// requireAdmin returns an UNAUTHORIZED error unless id is the administrator.
func (a AccessControl) requireAdmin(id Identity) error {
	if !a.IsAdmin(id) {
		return NewUnauthorized(id)
	}
	return nil
}
