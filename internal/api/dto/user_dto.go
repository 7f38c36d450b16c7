package dto

import (
	"net/mail"
	"time"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// LoginRequest payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the login payload shape.
func (r LoginRequest) Validate() error {
	errs := fieldErrors{}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		errs["email"] = "must be a valid email address"
	}
	if r.Password == "" {
		errs["password"] = "is required"
	}
	return errs.err("request validation failed")
}

// RegisterRequest payload for POST /auth/register.
type RegisterRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
	IsLead   bool        `json:"isLead"`
}

// Validate checks the register payload shape.
func (r RegisterRequest) Validate() error {
	errs := fieldErrors{}
	errs.length("name", r.Name, 2, 120)
	if _, err := mail.ParseAddress(r.Email); err != nil {
		errs["email"] = "must be a valid email address"
	}
	errs.length("password", r.Password, 8, 128)
	errs.oneOf("role", r.Role.Valid(), string(domain.RoleAdmin), string(domain.RoleAgent), string(domain.RoleRequester))
	return errs.err("request validation failed")
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`
	IsLead bool        `json:"isLead"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// NewUserResponse serialises a user without its password hash.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, IsLead: u.IsLead}
}
