package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/doaqui/doaqui/internal/auth"
	"github.com/doaqui/doaqui/internal/domain"
	"github.com/doaqui/doaqui/internal/repository"
)

// minPasswordLength is the minimum accepted password length.
const minPasswordLength = 8

// UserService handles registration and authentication. It also resolves
// bearer-token subjects to request identities for the auth middleware.
type UserService struct {
	userRepo repository.UserRepository
	issuer   *auth.TokenIssuer
	logger   zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(
	userRepo repository.UserRepository,
	issuer *auth.TokenIssuer,
	logger zerolog.Logger,
) *UserService {
	return &UserService{
		userRepo: userRepo,
		issuer:   issuer,
		logger:   logger.With().Str("service", "user").Logger(),
	}
}

// =============================================================================
// Input/Output Structs
// =============================================================================

// RegisterInput contains the data needed to register a user.
type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

// RegisterOutput contains the created user and a fresh token.
type RegisterOutput struct {
	User  *domain.User
	Token string
}

// LoginInput contains the credentials of a login attempt.
type LoginInput struct {
	Email    string
	Password string
}

// LoginOutput contains the authenticated user and a fresh token.
type LoginOutput struct {
	User  *domain.User
	Token string
}

// =============================================================================
// Service Methods
// =============================================================================

// Register creates a new user account and signs them in.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*RegisterOutput, error) {
	if input.Name == "" || input.Email == "" || input.Phone == "" || input.Password == "" {
		return nil, ErrMissingUserFields
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if len(input.Password) < minPasswordLength {
		return nil, ErrInvalidPassword
	}

	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to check user existence")
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if exists {
		return nil, domain.ErrUserAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	user := domain.NewUser(input.Name, email, input.Phone, string(hash))

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return nil, domain.ErrUserAlreadyExists
		}
		s.logger.Error().Err(err).Msg("failed to create user")
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("failed to issue token")
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("user registered")

	return &RegisterOutput{User: user, Token: token}, nil
}

// Login verifies the credentials and issues a token. Unknown emails and
// wrong passwords produce the same error so login does not leak which
// accounts exist.
func (s *UserService) Login(ctx context.Context, input LoginInput) (*LoginOutput, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		s.logger.Error().Err(err).Msg("failed to get user by email")
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("failed to issue token")
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("user logged in")

	return &LoginOutput{User: user, Token: token}, nil
}

// GetIdentity resolves a token subject to the acting user's identity.
// Implements the auth middleware's identity store.
func (s *UserService) GetIdentity(ctx context.Context, userID uuid.UUID) (*domain.UserIdentity, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to get user")
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	return &domain.UserIdentity{
		ID:    user.ID,
		Name:  user.Name,
		Phone: user.Phone,
	}, nil
}
