package domain

import "time"

// User role constants.
const (
	RoleBuyer  = "buyer"
	RoleVendor = "vendor"
	RoleAdmin  = "admin"
)

// Profile is the marketplace view of an account held by the auth provider.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	IsBanned  bool      `json:"is_banned"`
	CreatedAt time.Time `json:"created_at"`
}

// ProfileFilter selects profiles for the admin listing.
type ProfileFilter struct {
	Role    *string
	Query   string
	Page    int
	PerPage int
}

// IsValidRole checks whether role is a known role.
func IsValidRole(role string) bool {
	switch role {
	case RoleBuyer, RoleVendor, RoleAdmin:
		return true
	}
	return false
}
