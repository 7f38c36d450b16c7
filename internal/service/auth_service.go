package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/workorder-service/internal/audit"
	"github.com/spec-kit/workorder-service/internal/auth"
	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/repository"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

const (
	loginFailureEmailNotFound    = "EMAIL_NOT_FOUND"
	loginFailurePasswordMismatch = "PASSWORD_MISMATCH"
	minPasswordLength            = 8
)

// AuthService coordinates login and account management.
type AuthService struct {
	store      repository.Store
	tokens     *auth.TokenManager
	throttle   auth.LoginThrottle
	recorder   *audit.Recorder
	logger     *zap.Logger
	bcryptCost int
	Now        func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Store      repository.Store
	Tokens     *auth.TokenManager
	Throttle   auth.LoginThrottle
	Recorder   *audit.Recorder
	Logger     *zap.Logger
	BcryptCost int
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// RegisterUserInput describes a new account.
type RegisterUserInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
	IsLead   bool
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	throttle := deps.Throttle
	if throttle == nil {
		throttle = auth.NoopThrottle{}
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = audit.NewRecorder(nil)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		store:      deps.Store,
		tokens:     deps.Tokens,
		throttle:   throttle,
		recorder:   recorder,
		logger:     logger,
		bcryptCost: deps.BcryptCost,
		Now:        time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login verifies credentials and issues an access token. Both outcomes are
// audited; an unknown email and a wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string, rc audit.RequestContext) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password are required", nil)
	}

	allowed, err := s.throttle.Allow(ctx, email)
	if err != nil {
		s.logger.Warn("login throttle unavailable", zap.Error(err))
	} else if !allowed {
		return nil, apperrors.NewTooManyRequests("too many login attempts, try again later")
	}

	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}
	if user == nil {
		return nil, s.loginFailure(ctx, nil, email, loginFailureEmailNotFound, rc)
	}

	ok, err := auth.PasswordMatches(user.PasswordHash, password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if !ok {
		actor := domain.ActorFromUser(user)
		return nil, s.loginFailure(ctx, &actor, email, loginFailurePasswordMismatch, rc)
	}

	token, expiresAt, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	actor := domain.ActorFromUser(user)
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		_, err := s.recorder.Record(ctx, tx.AuditLogs(), audit.Entry{
			Actor:        &actor,
			Action:       domain.AuditLoginSuccess,
			ResourceType: domain.ResourceAuth,
			ResourceID:   user.ID,
			Metadata:     map[string]any{"email": email},
			Request:      rc,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// loginFailure records the failed attempt and returns the credentials error,
// or the audit error if recording failed.
func (s *AuthService) loginFailure(ctx context.Context, actor *domain.Actor, email, reason string, rc audit.RequestContext) error {
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		_, err := s.recorder.Record(ctx, tx.AuditLogs(), audit.Entry{
			Actor:        actor,
			Action:       domain.AuditLoginFailure,
			ResourceType: domain.ResourceAuth,
			Metadata:     map[string]any{"email": email, "reason": reason},
			Request:      rc,
		})
		return err
	})
	if err != nil {
		return err
	}
	return apperrors.NewUnauthorized(apperrors.CodeInvalidCredentials, "invalid email or password")
}

// RegisterUser creates an account. Admin only; the lead flag is kept only
// for agents.
func (s *AuthService) RegisterUser(ctx context.Context, actor domain.Actor, input RegisterUserInput, rc audit.RequestContext) (*domain.User, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only admins can register users")
	}

	name := strings.TrimSpace(input.Name)
	email := normalizeEmail(input.Email)
	details := map[string]any{}
	if len(name) < 2 {
		details["name"] = "must be at least 2 characters"
	}
	if _, err := mail.ParseAddress(email); err != nil {
		details["email"] = "must be a valid email address"
	}
	if len(input.Password) < minPasswordLength {
		details["password"] = "must be at least 8 characters"
	}
	if !input.Role.Valid() {
		details["role"] = "must be one of ADMIN, AGENT, REQUESTER"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid user payload", details)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	now := s.Now().UTC()
	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         input.Role,
		IsLead:       input.Role == domain.RoleAgent && input.IsLead,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Users().GetByEmail(ctx, email); err == nil {
			return apperrors.NewConflict(apperrors.CodeUserExists, "email already registered", map[string]any{"email": email})
		} else if !apperrors.IsNotFound(err) {
			return err
		}
		if err := tx.Users().Create(ctx, user); err != nil {
			if errors.Is(err, apperrors.ErrDuplicate) {
				return apperrors.NewConflict(apperrors.CodeUserExists, "email already registered", map[string]any{"email": email})
			}
			return err
		}
		_, err := s.recorder.Record(ctx, tx.AuditLogs(), audit.Entry{
			Actor:        &actor,
			Action:       domain.AuditUserCreated,
			ResourceType: domain.ResourceUser,
			ResourceID:   user.ID,
			Metadata:     map[string]any{"email": user.Email, "role": string(user.Role), "isLead": user.IsLead},
			Request:      rc,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Me returns the stored account of the actor.
func (s *AuthService) Me(ctx context.Context, actor domain.Actor) (*domain.User, error) {
	user, err := s.store.Users().GetByID(ctx, actor.ID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewUnauthorized(apperrors.CodeAuthInvalid, "user no longer exists")
		}
		return nil, err
	}
	return user, nil
}
