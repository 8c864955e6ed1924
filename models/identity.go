package models

type Role string

const (
	RoleNormal Role = "normal"
	RoleAdmin  Role = "admin"
)

// Identity is the verified or claimed handle bound to one connection.
type Identity struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	Role          Role   `json:"role"`
	Blocked       bool   `json:"blocked"`
	Authenticated bool   `json:"authenticated"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
