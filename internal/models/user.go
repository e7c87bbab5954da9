package models

import "time"

// User is a minimal account record for credential verification.
// Authorization data is the role list; capabilities are derived from it.
type User struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	Roles        []string  `db:"roles"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// HasRole reports whether the user holds the given role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Capability vocabulary.
const (
	CapManageOptions   = "manage_options"
	CapBypassRedirects = "bypass_redirects"
)

// HasCapability maps the small capability vocabulary onto roles.
// "manage_options" and "bypass_redirects" belong to administrators;
// "bypass_redirects" is also granted by a dedicated override role.
func (u *User) HasCapability(capability string) bool {
	switch capability {
	case CapManageOptions:
		return u.HasRole("administrator")
	case CapBypassRedirects:
		return u.HasRole("administrator") || u.HasRole("redirect_exempt")
	default:
		return false
	}
}
