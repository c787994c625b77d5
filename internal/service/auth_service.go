package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/armada-rental/rental-service/internal/auth"
	"github.com/armada-rental/rental-service/internal/config"
	"github.com/armada-rental/rental-service/internal/domain"
	"github.com/armada-rental/rental-service/internal/events"
	"github.com/armada-rental/rental-service/internal/repository"
	apperrors "github.com/armada-rental/rental-service/pkg/util/errorutil"
)

const tokenTypeBearer = "bearer"

// AuthService coordinates registration, sign-in and sign-out flows.
type AuthService struct {
	users       repository.UserRepository
	tokenMgr    *auth.TokenManager
	revoked     auth.RevocationList
	dispatcher  events.Dispatcher
	bcryptCost  int
	defaultRole domain.Role
	logger      *zap.Logger
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo     repository.UserRepository
	TokenManager *auth.TokenManager
	Revocations  auth.RevocationList
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// SignUpInput describes a registration request.
type SignUpInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

// UpdateUserInput lists profile changes. Nil fields are left untouched.
type UpdateUserInput struct {
	Name     *string
	Email    *string
	Phone    *string
	Password *string
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	role, ok := domain.ParseRole(cfg.DefaultRole)
	if !ok {
		role = domain.RoleCustomer
	}
	tokens := deps.TokenManager
	if tokens == nil {
		tokens = auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL())
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:       deps.UserRepo,
		tokenMgr:    tokens,
		revoked:     deps.Revocations,
		dispatcher:  deps.Dispatcher,
		bcryptCost:  cfg.BcryptCost,
		defaultRole: role,
		logger:      logger,
	}
}

// SignUp creates an account with the default role and signs it in.
func (s *AuthService) SignUp(ctx context.Context, input SignUpInput) (*domain.Session, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	if err := auth.ValidatePassword(input.Password); err != nil {
		return nil, apperrors.NewValidationError(err.Error(), map[string]any{"field": "password"})
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		Phone:        strings.TrimSpace(input.Phone),
		PasswordHash: hash,
		Role:         s.defaultRole,
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:    events.EventUserSignedUp,
		Subject: user.ID,
		Actor:   events.Actor{UserID: user.ID, Role: user.Role},
		Payload: events.UserSignedUpPayload{Email: user.Email, Name: user.Name, Role: user.Role},
	})
	return s.issue(user)
}

// SignIn authenticates with email and password.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid login credentials")
		}
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid login credentials")
	}
	if user.Status != domain.UserStatusActive {
		return nil, apperrors.NewForbidden("account suspended")
	}
	return s.issue(user)
}

// Session describes the caller's current session.
func (s *AuthService) Session(principal *auth.Principal) *domain.Session {
	sess := &domain.Session{TokenType: tokenTypeBearer, User: principal.User.Identity()}
	if principal.Claims != nil && principal.Claims.ExpiresAt != nil {
		sess.ExpiresAt = principal.Claims.ExpiresAt.Time
	}
	return sess
}

// Refresh issues a new token for the caller and revokes the presented one.
func (s *AuthService) Refresh(ctx context.Context, principal *auth.Principal) (*domain.Session, error) {
	sess, err := s.issue(principal.User)
	if err != nil {
		return nil, err
	}
	if err := s.SignOut(ctx, principal.Claims); err != nil {
		return nil, err
	}
	return sess, nil
}

// SignOut revokes the presented token until it would have expired.
func (s *AuthService) SignOut(ctx context.Context, claims *auth.Claims) error {
	if s.revoked == nil || claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// UpdateUser applies profile changes for userID.
func (s *AuthService) UpdateUser(ctx context.Context, userID string, input UpdateUserInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewValidationError("name cannot be empty", map[string]any{"field": "name"})
		}
		user.Name = name
	}
	if input.Phone != nil {
		user.Phone = strings.TrimSpace(*input.Phone)
	}
	if input.Email != nil {
		email, err := normalizeEmail(*input.Email)
		if err != nil {
			return nil, err
		}
		if !strings.EqualFold(email, user.Email) {
			if existing, err := s.users.GetByEmail(ctx, email); err == nil && existing.ID != user.ID {
				return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
			} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return nil, err
			}
		}
		user.Email = email
	}
	if input.Password != nil {
		if err := auth.ValidatePassword(*input.Password); err != nil {
			return nil, apperrors.NewValidationError(err.Error(), map[string]any{"field": "password"})
		}
		hash, err := auth.HashPassword(*input.Password, s.bcryptCost)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issue(user *domain.User) (*domain.Session, error) {
	identity := user.Identity()
	token, exp, err := s.tokenMgr.GenerateToken(identity)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("sign token: %w", err))
	}
	return &domain.Session{AccessToken: token, TokenType: tokenTypeBearer, ExpiresAt: exp, User: identity}, nil
}

func (s *AuthService) publishEvent(ctx context.Context, event events.Event) {
	publish(ctx, s.dispatcher, s.logger, event)
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperrors.NewValidationError("invalid email address", map[string]any{"field": "email"})
	}
	return email, nil
}

func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("publish event", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
