package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/karyatek/storefront/internal/identity/auth"
	"github.com/karyatek/storefront/internal/identity/domain"
	"github.com/karyatek/storefront/internal/identity/event"
	"github.com/karyatek/storefront/internal/identity/repository"
	apperrors "github.com/karyatek/storefront/pkg/errors"
)

const bcryptCost = 12

const minPasswordLength = 8

// TokenVerifier verifies an external provider access token and returns the
// identity it belongs to.
type TokenVerifier interface {
	Name() string
	VerifyAccessToken(ctx context.Context, accessToken string) (*auth.UserInfo, error)
}

// IdentityService implements registration, login, provider exchange, token
// refresh, and the address book.
type IdentityService struct {
	users    repository.UserRepository
	tokens   repository.RefreshTokenRepository
	addrs    repository.AddressRepository
	jwt      *auth.JWTManager
	provider TokenVerifier
	producer *event.Producer
	logger   *slog.Logger
}

// NewIdentityService creates an identity service. provider and producer may
// be nil, disabling provider exchange and events respectively.
func NewIdentityService(
	users repository.UserRepository,
	tokens repository.RefreshTokenRepository,
	addrs repository.AddressRepository,
	jwt *auth.JWTManager,
	provider TokenVerifier,
	producer *event.Producer,
	logger *slog.Logger,
) *IdentityService {
	return &IdentityService{
		users:    users,
		tokens:   tokens,
		addrs:    addrs,
		jwt:      jwt,
		provider: provider,
		producer: producer,
		logger:   logger,
	}
}

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// LoginInput holds the parameters for user login.
type LoginInput struct {
	Email    string
	Password string
}

// Register creates a password account and returns the user with a token pair.
func (s *IdentityService) Register(ctx context.Context, input RegisterInput) (*domain.User, *domain.TokenPair, error) {
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return nil, nil, apperrors.InvalidInput("a valid email is required")
	}
	if input.Name == "" {
		return nil, nil, apperrors.InvalidInput("name is required")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: string(hashed),
		Role:         domain.RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	tokens, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.publishRegistered(ctx, user)

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID.String()),
		slog.String("email", user.Email),
	)

	return user, tokens, nil
}

// Login authenticates a password account and returns a token pair.
func (s *IdentityService) Login(ctx context.Context, input LoginInput) (*domain.User, *domain.TokenPair, error) {
	if input.Email == "" || input.Password == "" {
		return nil, nil, apperrors.InvalidInput("email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, nil, apperrors.Unauthorized("invalid email or password")
	}

	// Provider-only accounts have no password to check.
	if user.PasswordHash == "" {
		return nil, nil, apperrors.Unauthorized("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, nil, apperrors.Unauthorized("invalid email or password")
	}

	tokens, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID.String()),
	)

	return user, tokens, nil
}

// ExchangeProviderToken verifies an external provider access token, finds or
// creates the local account bound to that identity, and issues first-party
// tokens.
func (s *IdentityService) ExchangeProviderToken(ctx context.Context, providerToken string) (*domain.User, *domain.TokenPair, error) {
	if s.provider == nil {
		return nil, nil, apperrors.Unprocessable("PROVIDER_DISABLED", "external provider login is not configured")
	}

	info, err := s.provider.VerifyAccessToken(ctx, providerToken)
	if err != nil {
		return nil, nil, fmt.Errorf("verify provider token: %w", err)
	}

	user, err := s.users.GetByProvider(ctx, s.provider.Name(), info.Subject)
	switch {
	case err == nil:
		// Known provider identity.
	case errors.Is(err, apperrors.ErrNotFound):
		user, err = s.createProviderUser(ctx, info)
		if err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, fmt.Errorf("look up provider identity: %w", err)
	}

	tokens, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "provider token exchanged",
		slog.String("user_id", user.ID.String()),
		slog.String("provider", s.provider.Name()),
	)

	return user, tokens, nil
}

func (s *IdentityService) createProviderUser(ctx context.Context, info *auth.UserInfo) (*domain.User, error) {
	if info.Email == "" {
		return nil, apperrors.Unprocessable("PROVIDER_NO_EMAIL", "provider identity carries no email")
	}

	name := info.Name
	if name == "" {
		name = info.Email
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:         uuid.New(),
		Email:      info.Email,
		Name:       name,
		Provider:   s.provider.Name(),
		ProviderID: info.Subject,
		Role:       domain.RoleCustomer,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.users.Create(ctx, user)
	if err == nil {
		s.publishRegistered(ctx, user)
		return user, nil
	}

	// The email already has a password account. The provider verified the
	// address, so treat it as the same person.
	if errors.Is(err, apperrors.ErrAlreadyExists) {
		existing, getErr := s.users.GetByEmail(ctx, info.Email)
		if getErr != nil {
			return nil, fmt.Errorf("look up existing account for provider email: %w", getErr)
		}
		return existing, nil
	}

	return nil, fmt.Errorf("create provider user: %w", err)
}

// Refresh rotates a refresh token, returning a fresh token pair.
func (s *IdentityService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, apperrors.InvalidInput("refresh token is required")
	}

	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired refresh token")
	}

	stored, err := s.tokens.GetByHash(ctx, hashToken(refreshToken))
	if err != nil {
		return nil, apperrors.Unauthorized("refresh token not found")
	}
	if stored.RevokedAt != nil {
		return nil, apperrors.Unauthorized("refresh token has been revoked")
	}
	if time.Now().UTC().After(stored.ExpiresAt) {
		return nil, apperrors.Unauthorized("refresh token has expired")
	}

	if err := s.tokens.Revoke(ctx, stored.TokenHash); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke rotated refresh token",
			slog.String("user_id", claims.UserID),
			slog.String("error", err.Error()),
		)
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid refresh token subject")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user for token refresh: %w", err)
	}

	tokens, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "tokens refreshed",
		slog.String("user_id", user.ID.String()),
	)

	return tokens, nil
}

// Logout revokes the presented refresh token. An unknown token is not an
// error; logout is idempotent.
func (s *IdentityService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.tokens.Revoke(ctx, hashToken(refreshToken)); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// GetProfile retrieves a user by ID.
func (s *IdentityService) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	return user, nil
}

// UpdateProfileInput holds the parameters for updating a user's profile.
type UpdateProfileInput struct {
	Name *string
}

// UpdateProfile updates mutable profile fields.
func (s *IdentityService) UpdateProfile(ctx context.Context, userID uuid.UUID, input UpdateProfileInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user for update: %w", err)
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, apperrors.InvalidInput("name must not be empty")
		}
		user.Name = *input.Name
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.logger.InfoContext(ctx, "user profile updated",
		slog.String("user_id", user.ID.String()),
	)

	return user, nil
}

// ChangePassword changes a password account's password and revokes every
// refresh token the user holds.
func (s *IdentityService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	if currentPassword == "" {
		return apperrors.InvalidInput("current password is required")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if currentPassword == newPassword {
		return apperrors.InvalidInput("new password must be different from current password")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user for password change: %w", err)
	}
	if user.PasswordHash == "" {
		return apperrors.Unprocessable("PROVIDER_ACCOUNT", "this account signs in through an external provider")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return apperrors.Unauthorized("current password is incorrect")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	user.PasswordHash = string(hashed)
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("update user password: %w", err)
	}

	if err := s.tokens.RevokeByUserID(ctx, user.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke refresh tokens after password change",
			slog.String("user_id", user.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password changed",
		slog.String("user_id", user.ID.String()),
	)

	return nil
}

// --- Address Operations ---

// AddressInput holds the parameters for creating an address.
type AddressInput struct {
	Label       string
	FullName    string
	Phone       string
	AddressLine string
	City        string
	State       string
	PostalCode  string
	Country     string
	IsDefault   bool
}

// UpdateAddressInput holds the parameters for updating an address.
type UpdateAddressInput struct {
	Label       *string
	FullName    *string
	Phone       *string
	AddressLine *string
	City        *string
	State       *string
	PostalCode  *string
	Country     *string
}

// CreateAddress adds an address to the user's address book.
func (s *IdentityService) CreateAddress(ctx context.Context, userID uuid.UUID, input *AddressInput) (*domain.Address, error) {
	if input.FullName == "" {
		return nil, apperrors.InvalidInput("full name is required")
	}
	if input.AddressLine == "" {
		return nil, apperrors.InvalidInput("address line is required")
	}
	if input.City == "" {
		return nil, apperrors.InvalidInput("city is required")
	}
	if input.PostalCode == "" {
		return nil, apperrors.InvalidInput("postal code is required")
	}
	if len(input.Country) != 2 {
		return nil, apperrors.InvalidInput("country must be a 2-letter ISO code")
	}

	now := time.Now().UTC()
	address := &domain.Address{
		ID:          uuid.New(),
		UserID:      userID,
		Label:       input.Label,
		FullName:    input.FullName,
		Phone:       input.Phone,
		AddressLine: input.AddressLine,
		City:        input.City,
		State:       input.State,
		PostalCode:  input.PostalCode,
		Country:     input.Country,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.addrs.Create(ctx, address); err != nil {
		return nil, fmt.Errorf("create address: %w", err)
	}

	if input.IsDefault {
		if err := s.addrs.SetDefault(ctx, userID, address.ID); err != nil {
			return nil, fmt.Errorf("set default address: %w", err)
		}
		address.IsDefault = true
	}

	s.logger.InfoContext(ctx, "address created",
		slog.String("user_id", userID.String()),
		slog.String("address_id", address.ID.String()),
	)

	return address, nil
}

// ListAddresses returns the user's address book.
func (s *IdentityService) ListAddresses(ctx context.Context, userID uuid.UUID) ([]domain.Address, error) {
	addresses, err := s.addrs.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	return addresses, nil
}

// UpdateAddress updates one of the user's addresses. A foreign address is
// indistinguishable from a missing one.
func (s *IdentityService) UpdateAddress(ctx context.Context, userID, addressID uuid.UUID, input *UpdateAddressInput) (*domain.Address, error) {
	address, err := s.ownedAddress(ctx, userID, addressID)
	if err != nil {
		return nil, err
	}

	if input.Label != nil {
		address.Label = *input.Label
	}
	if input.FullName != nil {
		if *input.FullName == "" {
			return nil, apperrors.InvalidInput("full name must not be empty")
		}
		address.FullName = *input.FullName
	}
	if input.Phone != nil {
		address.Phone = *input.Phone
	}
	if input.AddressLine != nil {
		if *input.AddressLine == "" {
			return nil, apperrors.InvalidInput("address line must not be empty")
		}
		address.AddressLine = *input.AddressLine
	}
	if input.City != nil {
		if *input.City == "" {
			return nil, apperrors.InvalidInput("city must not be empty")
		}
		address.City = *input.City
	}
	if input.State != nil {
		address.State = *input.State
	}
	if input.PostalCode != nil {
		if *input.PostalCode == "" {
			return nil, apperrors.InvalidInput("postal code must not be empty")
		}
		address.PostalCode = *input.PostalCode
	}
	if input.Country != nil {
		if len(*input.Country) != 2 {
			return nil, apperrors.InvalidInput("country must be a 2-letter ISO code")
		}
		address.Country = *input.Country
	}

	if err := s.addrs.Update(ctx, address); err != nil {
		return nil, fmt.Errorf("update address: %w", err)
	}

	s.logger.InfoContext(ctx, "address updated",
		slog.String("user_id", userID.String()),
		slog.String("address_id", addressID.String()),
	)

	return address, nil
}

// DeleteAddress removes one of the user's addresses.
func (s *IdentityService) DeleteAddress(ctx context.Context, userID, addressID uuid.UUID) error {
	if _, err := s.ownedAddress(ctx, userID, addressID); err != nil {
		return err
	}

	if err := s.addrs.Delete(ctx, addressID); err != nil {
		return fmt.Errorf("delete address: %w", err)
	}

	s.logger.InfoContext(ctx, "address deleted",
		slog.String("user_id", userID.String()),
		slog.String("address_id", addressID.String()),
	)

	return nil
}

// SetDefaultAddress marks the address as the user's default.
func (s *IdentityService) SetDefaultAddress(ctx context.Context, userID, addressID uuid.UUID) error {
	if _, err := s.ownedAddress(ctx, userID, addressID); err != nil {
		return err
	}

	if err := s.addrs.SetDefault(ctx, userID, addressID); err != nil {
		return fmt.Errorf("set default address: %w", err)
	}

	s.logger.InfoContext(ctx, "default address updated",
		slog.String("user_id", userID.String()),
		slog.String("address_id", addressID.String()),
	)

	return nil
}

func (s *IdentityService) ownedAddress(ctx context.Context, userID, addressID uuid.UUID) (*domain.Address, error) {
	address, err := s.addrs.GetByID(ctx, addressID)
	if err != nil {
		return nil, fmt.Errorf("get address: %w", err)
	}
	if address.UserID != userID {
		return nil, apperrors.NotFound("address", addressID.String())
	}
	return address, nil
}

// --- Helpers ---

func (s *IdentityService) publishRegistered(ctx context.Context, user *domain.User) {
	if s.producer == nil {
		return
	}
	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// generateTokenPair creates an access/refresh token pair and stores the
// refresh token hash.
func (s *IdentityService) generateTokenPair(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	accessToken, err := s.jwt.GenerateAccessToken(user.ID.String(), user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	refreshToken, err := s.jwt.GenerateRefreshToken(user.ID.String())
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("validate refresh token for expiry: %w", err)
	}

	if err := s.tokens.Create(ctx, user.ID, hashToken(refreshToken), claims.ExpiresAt.Time); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// hashToken returns the SHA256 hex digest of the given token string.
func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// validatePassword checks minimum length and character class coverage.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.InvalidInput("password must contain at least one uppercase letter, one lowercase letter, and one digit")
	}

	return nil
}
