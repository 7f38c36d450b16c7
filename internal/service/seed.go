package service

import (
	"context"
	"time"

	"github.com/spec-kit/workorder-service/internal/auth"
	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/repository"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

// DemoUser is an account created by the seed command.
type DemoUser struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
	IsLead   bool
}

// DemoUsers covers every role plus a lead agent.
var DemoUsers = []DemoUser{
	{Name: "System Admin", Email: "admin@workorder.local", Password: "Admin#12345", Role: domain.RoleAdmin},
	{Name: "Lead Agent", Email: "lead.agent@workorder.local", Password: "Agent#12345", Role: domain.RoleAgent, IsLead: true},
	{Name: "Support Agent", Email: "agent@workorder.local", Password: "Agent#12345", Role: domain.RoleAgent},
	{Name: "Request User", Email: "requester@workorder.local", Password: "Requester#12345", Role: domain.RoleRequester},
}

// SeedUsers creates any of users that do not exist yet and returns how many
// were created.
func SeedUsers(ctx context.Context, users repository.UserRepository, seeds []DemoUser, bcryptCost int) (int, error) {
	created := 0
	for _, seed := range seeds {
		email := normalizeEmail(seed.Email)
		if _, err := users.GetByEmail(ctx, email); err == nil {
			continue
		} else if !apperrors.IsNotFound(err) {
			return created, err
		}

		hash, err := auth.HashPassword(seed.Password, bcryptCost)
		if err != nil {
			return created, err
		}
		now := time.Now().UTC()
		user := &domain.User{
			Name:         seed.Name,
			Email:        email,
			PasswordHash: hash,
			Role:         seed.Role,
			IsLead:       seed.Role == domain.RoleAgent && seed.IsLead,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := users.Create(ctx, user); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
