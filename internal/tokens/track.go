package tokens

import "github.com/Skotchmaster/shop_auth/internal/models"

// Track is an isolated authentication context. Each track has its own
// secrets, audience and cookie names, so a token minted for one track is
// never accepted by the other.
type Track int

const (
	Customer Track = iota + 1
	Admin
)

var Tracks = []Track{Customer, Admin}

func (t Track) Valid() bool { return t == Customer || t == Admin }

func (t Track) String() string {
	switch t {
	case Customer:
		return "customer"
	case Admin:
		return "admin"
	default:
		return "unknown"
	}
}

// Role is the role claim stamped into every token of the track.
func (t Track) Role() string {
	if t == Admin {
		return models.RoleAdmin
	}
	return models.RoleCustomer
}

// Permits reports whether an account with the stored role may hold a
// session on the track. Admin accounts may also shop as customers.
func (t Track) Permits(role string) bool {
	switch t {
	case Customer:
		return role == models.RoleCustomer || role == models.RoleAdmin
	case Admin:
		return role == models.RoleAdmin
	default:
		return false
	}
}

func (t Track) AccessCookie() string {
	if t == Admin {
		return "adminAccessToken"
	}
	return "accessToken"
}

func (t Track) RefreshCookie() string {
	if t == Admin {
		return "adminRefreshToken"
	}
	return "refreshToken"
}
