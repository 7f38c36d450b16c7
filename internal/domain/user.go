package domain

import "time"

// Role enumerates account roles.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleAgent     Role = "AGENT"
	RoleRequester Role = "REQUESTER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAgent, RoleRequester:
		return true
	}
	return false
}

// User is an account able to authenticate against the service.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	IsLead       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor is the authenticated identity performing an operation.
// It is derived from a token and never persisted.
type Actor struct {
	ID     string
	Role   Role
	IsLead bool
}

// ActorFromUser builds the actor view of a stored user.
func ActorFromUser(u *User) Actor {
	return Actor{ID: u.ID, Role: u.Role, IsLead: u.IsLead}
}
