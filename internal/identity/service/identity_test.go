package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/karyatek/storefront/internal/identity/auth"
	"github.com/karyatek/storefront/internal/identity/domain"
	apperrors "github.com/karyatek/storefront/pkg/errors"
)

// --- Mock UserRepository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByProvider(ctx context.Context, provider, providerID string) (*domain.User, error) {
	args := m.Called(ctx, provider, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// --- Mock RefreshTokenRepository ---

type mockRefreshTokenRepository struct {
	mock.Mock
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, tokenHash, expiresAt)
	return args.Error(0)
}

func (m *mockRefreshTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshToken), args.Error(1)
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

func (m *mockRefreshTokenRepository) RevokeByUserID(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockRefreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// --- Mock AddressRepository ---

type mockAddressRepository struct {
	mock.Mock
}

func (m *mockAddressRepository) Create(ctx context.Context, address *domain.Address) error {
	args := m.Called(ctx, address)
	return args.Error(0)
}

func (m *mockAddressRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Address, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Address), args.Error(1)
}

func (m *mockAddressRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Address, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Address), args.Error(1)
}

func (m *mockAddressRepository) Update(ctx context.Context, address *domain.Address) error {
	args := m.Called(ctx, address)
	return args.Error(0)
}

func (m *mockAddressRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockAddressRepository) SetDefault(ctx context.Context, userID, addressID uuid.UUID) error {
	args := m.Called(ctx, userID, addressID)
	return args.Error(0)
}

// --- Mock TokenVerifier ---

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) Name() string {
	return "auth0"
}

func (m *mockVerifier) VerifyAccessToken(ctx context.Context, accessToken string) (*auth.UserInfo, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.UserInfo), args.Error(1)
}

// --- Test Helpers ---

type testRepos struct {
	users  *mockUserRepository
	tokens *mockRefreshTokenRepository
	addrs  *mockAddressRepository
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) (*IdentityService, testRepos, *mockVerifier) {
	t.Helper()
	repos := testRepos{
		users:  new(mockUserRepository),
		tokens: new(mockRefreshTokenRepository),
		addrs:  new(mockAddressRepository),
	}
	verifier := new(mockVerifier)
	jwt := auth.NewJWTManager("test-secret", 15*time.Minute, 7*24*time.Hour)
	svc := NewIdentityService(repos.users, repos.tokens, repos.addrs, jwt, verifier, nil, newTestLogger())
	return svc, repos, verifier
}

func hashedPassword(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

// --- Register / Login Tests ---

func TestRegister(t *testing.T) {
	svc, repos, _ := newTestService(t)
	ctx := context.Background()

	repos.users.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil)
	repos.tokens.On("Create", ctx, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)

	user, tokens, err := svc.Register(ctx, RegisterInput{
		Email:    "maja@example.com",
		Password: "Sommar2025",
		Name:     "Maja Lindqvist",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.RoleCustomer, user.Role)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "Sommar2025", user.PasswordHash)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)

	repos.users.AssertExpectations(t)
	repos.tokens.AssertExpectations(t)
}

func TestRegister_WeakPassword(t *testing.T) {
	svc, repos, _ := newTestService(t)

	tests := []struct {
		name     string
		password string
	}{
		{name: "too short", password: "Ab1"},
		{name: "no uppercase", password: "sommar2025"},
		{name: "no digit", password: "SommarSommar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Register(context.Background(), RegisterInput{
				Email:    "maja@example.com",
				Password: tt.password,
				Name:     "Maja",
			})
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}

	repos.users.AssertNotCalled(t, "Create")
}

func TestRegister_InvalidEmail(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, _, err := svc.Register(context.Background(), RegisterInput{
		Email:    "not-an-email",
		Password: "Sommar2025",
		Name:     "Maja",
	})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestLogin(t *testing.T) {
	svc, repos, _ := newTestService(t)
	ctx := context.Background()

	user := &domain.User{
		ID:           uuid.New(),
		Email:        "maja@example.com",
		PasswordHash: hashedPassword(t, "Sommar2025"),
		Role:         domain.RoleCustomer,
	}

	repos.users.On("GetByEmail", ctx, "maja@example.com").Return(user, nil)
	repos.tokens.On("Create", ctx, user.ID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)

	got, tokens, err := svc.Login(ctx, LoginInput{Email: "maja@example.com", Password: "Sommar2025"})

	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.NotEmpty(t, tokens.AccessToken)
	repos.users.AssertExpectations(t)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, repos, _ := newTestService(t)
	ctx := context.Background()

	user := &domain.User{
		ID:           uuid.New(),
		Email:        "maja@example.com",
		PasswordHash: hashedPassword(t, "Sommar2025"),
	}
	repos.users.On("GetByEmail", ctx, "maja@example.com").Return(user, nil)

	_, _, err := svc.Login(ctx, LoginInput{Email: "maja@example.com", Password: "fel-losenord"})

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	repos.tokens.AssertNotCalled(t, "Create")
}

func TestLogin_UnknownEmailLooksLikeWrongPassword(t *testing.T) {
	svc, repos, _ := newTestService(t)
	ctx := context.Background()

	repos.users.On("GetByEmail", ctx, "okand@example.com").
		Return(nil, apperrors.NotFound("user", "okand@example.com"))

	_, _, err := svc.Login(ctx, LoginInput{Email: "okand@example.com", Password: "Sommar2025"})

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestLogin_ProviderOnlyAccount(t *testing.T) {
	svc, repos, _ := newTestService(t)
	ctx := context.Background()

	user := &domain.User{ID: uuid.New(), Email: "maja@example.com", Provider: "auth0", ProviderID: "auth0|abc"}
	repos.users.On("GetByEmail", ctx, "maja@example.com").Return(user, nil)

	_, _, err := svc.Login(ctx, LoginInput{Email: "maja@example.com", Password: "Sommar2025"})

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

// --- Provider Exchange Tests ---

func TestExchangeProviderToken_ExistingIdentity(t *testing.T) {
	svc, repos, verifier := newTestService(t)
	ctx := context.Background()

	user := &domain.User{ID: uuid.New(), Email: "maja@example.com", Provider: "auth0", ProviderID: "auth0|abc", Role: domain.RoleCustomer}

	verifier.On("VerifyAccessToken", ctx, "provider-token").
		Return(&auth.UserInfo{Subject: "auth0|abc", Email: "maja@example.com", Name: "Maja"}, nil)
	repos.users.On("GetByProvider", ctx, "auth0", "auth0|abc").Return(user, nil)
	repos.tokens.On("Create", ctx, user.ID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)

	got, tokens, err := svc.ExchangeProviderToken(ctx, "provider-token")

	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.NotEmpty(t, tokens.AccessToken)
	repos.users.AssertNotCalled(t, "Create")
}

func TestExchangeProviderToken_CreatesNewUser(t *testing.T) {
	svc, repos, verifier := newTestService(t)
	ctx := context.Background()

	verifier.On("VerifyAccessToken", ctx, "provider-token").
		Return(&auth.UserInfo{Subject: "auth0|new", Email: "ny@example.com", Name: "Ny Kund"}, nil)
	repos.users.On("GetByProvider", ctx, "auth0", "auth0|new").
		Return(nil, apperrors.NotFound("user", "auth0:auth0|new"))
	repos.users.On("Create", ctx, mock.MatchedBy(func(u *domain.User) bool {
		return u.Provider == "auth0" && u.ProviderID == "auth0|new" && u.PasswordHash == ""
	})).Return(nil)
	repos.tokens.On("Create", ctx, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)

	user, tokens, err := svc.ExchangeProviderToken(ctx, "provider-token")

	require.NoError(t, err)
	assert.Equal(t, "ny@example.com", user.Email)
	assert.Equal(t, domain.RoleCustomer, user.Role)
	assert.NotEmpty(t, tokens.RefreshToken)
	repos.users.AssertExpectations(t)
}

func TestExchangeProviderToken_LinksExistingEmailAccount(t *testing.T) {
	svc, repos, verifier := newTestService(t)
	ctx := context.Background()

	existing := &domain.User{ID: uuid.New(), Email: "maja@example.com", PasswordHash: "hash", Role: domain.RoleCustomer}

	verifier.On("VerifyAccessToken", ctx, "provider-token").
		Return(&auth.UserInfo{Subject: "auth0|abc", Email: "maja@example.com", Name: "Maja"}, nil)
	repos.users.On("GetByProvider", ctx, "auth0", "auth0|abc").
		Return(nil, apperrors.NotFound("user", "auth0:auth0|abc"))
	repos.users.On("Create", ctx, mock.AnythingOfType("*domain.User")).
		Return(apperrors.AlreadyExists("user", "email", "maja@example.com"))
	repos.users.On("GetByEmail", ctx, "maja@example.com").Return(existing, nil)
	repos.tokens.On("Create", ctx, existing.ID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)

	user, _, err := svc.ExchangeProviderToken(ctx, "provider-token")

	require.NoError(t, err)
	assert.Equal(t, existing.ID, user.ID)
}

func TestExchangeProviderToken_RejectedToken(t *testing.T) {
	svc, repos, verifier := newTestService(t)
	ctx := context.Background()

	verifier.On("VerifyAccessToken", ctx, "bad-token").
		Return(nil, apperrors.Unauthorized("provider rejected the access token"))

	_, _, err := svc.ExchangeProviderToken(ctx, "bad-token")

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	repos.users.AssertNotCalled(t, "GetByProvider")
}

// --- Refresh Tests ---

func TestRefresh_RotatesToken(t *testing.T) {
	svc, repos, _ := newTestService(t)
	ctx := context.Background()

	user := &domain.User{ID: uuid.New(), Email: "maja@example.com", Role: domain.RoleCustomer}

	// Obtain a real refresh token through login.
	user.PasswordHash = hashedPassword(t, "Sommar2025")
	repos.users.On("GetByEmail", ctx, user.Email).Return(user, nil)
	repos.tokens.On("Create", ctx, user.ID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)

	_, pair, err := svc.Login(ctx, LoginInput{Email: user.Email, Password: "Sommar2025"})
	require.NoError(t, err)

	stored := &domain.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: hashToken(pair.RefreshToken),
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	}
	repos.tokens.On("GetByHash", ctx, stored.TokenHash).Return(stored, nil)
	repos.tokens.On("Revoke", ctx, stored.TokenHash).Return(nil)
	repos.users.On("GetByID", ctx, user.ID).Return(user, nil)

	tokens, err := svc.Refresh(ctx, pair.RefreshToken)

	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
	repos.tokens.AssertCalled(t, "Revoke", ctx, stored.TokenHash)
}

func TestRefresh_RevokedToken(t *testing.T) {
	svc, repos, _ := newTestService(t)
	ctx := context.Background()

	user := &domain.User{ID: uuid.New(), Email: "maja@example.com", Role: domain.RoleCustomer, PasswordHash: hashedPassword(t, "Sommar2025")}
	repos.users.On("GetByEmail", ctx, user.Email).Return(user, nil)
	repos.tokens.On("Create", ctx, user.ID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)

	_, pair, err := svc.Login(ctx, LoginInput{Email: user.Email, Password: "Sommar2025"})
	require.NoError(t, err)

	revokedAt := time.Now().UTC()
	stored := &domain.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(pair.RefreshToken),
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
		RevokedAt: &revokedAt,
	}
	repos.tokens.On("GetByHash", ctx, stored.TokenHash).Return(stored, nil)

	_, err = svc.Refresh(ctx, pair.RefreshToken)

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestRefresh_GarbageToken(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Refresh(context.Background(), "not-a-jwt")

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

// --- ChangePassword Tests ---

func TestChangePassword(t *testing.T) {
	svc, repos, _ := newTestService(t)
	ctx := context.Background()

	user := &domain.User{ID: uuid.New(), Email: "maja@example.com", PasswordHash: hashedPassword(t, "Sommar2025"), Role: domain.RoleCustomer}
	repos.users.On("GetByID", ctx, user.ID).Return(user, nil)
	repos.users.On("Update", ctx, user).Return(nil)
	repos.tokens.On("RevokeByUserID", ctx, user.ID).Return(nil)

	err := svc.ChangePassword(ctx, user.ID, "Sommar2025", "Vinter2026")

	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("Vinter2026")))
	repos.tokens.AssertCalled(t, "RevokeByUserID", ctx, user.ID)
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	svc, repos, _ := newTestService(t)
	ctx := context.Background()

	user := &domain.User{ID: uuid.New(), PasswordHash: hashedPassword(t, "Sommar2025")}
	repos.users.On("GetByID", ctx, user.ID).Return(user, nil)

	err := svc.ChangePassword(ctx, user.ID, "fel-losenord", "Vinter2026")

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	repos.users.AssertNotCalled(t, "Update")
}

// --- Address Tests ---

func TestCreateAddress(t *testing.T) {
	svc, repos, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	repos.addrs.On("Create", ctx, mock.AnythingOfType("*domain.Address")).Return(nil)

	address, err := svc.CreateAddress(ctx, userID, &AddressInput{
		Label:       "Hem",
		FullName:    "Maja Lindqvist",
		AddressLine: "Storgatan 12",
		City:        "Stockholm",
		PostalCode:  "111 22",
		Country:     "SE",
	})

	require.NoError(t, err)
	assert.Equal(t, userID, address.UserID)
	assert.False(t, address.IsDefault)
	repos.addrs.AssertNotCalled(t, "SetDefault")
}

func TestCreateAddress_DefaultFlag(t *testing.T) {
	svc, repos, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	repos.addrs.On("Create", ctx, mock.AnythingOfType("*domain.Address")).Return(nil)
	repos.addrs.On("SetDefault", ctx, userID, mock.AnythingOfType("uuid.UUID")).Return(nil)

	address, err := svc.CreateAddress(ctx, userID, &AddressInput{
		FullName:    "Maja Lindqvist",
		AddressLine: "Storgatan 12",
		City:        "Stockholm",
		PostalCode:  "111 22",
		Country:     "SE",
		IsDefault:   true,
	})

	require.NoError(t, err)
	assert.True(t, address.IsDefault)
	repos.addrs.AssertExpectations(t)
}

func TestCreateAddress_BadCountry(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CreateAddress(context.Background(), uuid.New(), &AddressInput{
		FullName:    "Maja Lindqvist",
		AddressLine: "Storgatan 12",
		City:        "Stockholm",
		PostalCode:  "111 22",
		Country:     "Sweden",
	})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestUpdateAddress_ForeignAddressIsNotFound(t *testing.T) {
	svc, repos, _ := newTestService(t)
	ctx := context.Background()

	address := &domain.Address{ID: uuid.New(), UserID: uuid.New()}
	repos.addrs.On("GetByID", ctx, address.ID).Return(address, nil)

	label := "Jobb"
	_, err := svc.UpdateAddress(ctx, uuid.New(), address.ID, &UpdateAddressInput{Label: &label})

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	repos.addrs.AssertNotCalled(t, "Update")
}

func TestDeleteAddress(t *testing.T) {
	svc, repos, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	address := &domain.Address{ID: uuid.New(), UserID: userID}
	repos.addrs.On("GetByID", ctx, address.ID).Return(address, nil)
	repos.addrs.On("Delete", ctx, address.ID).Return(nil)

	err := svc.DeleteAddress(ctx, userID, address.ID)

	require.NoError(t, err)
	repos.addrs.AssertExpectations(t)
}

func TestSetDefaultAddress(t *testing.T) {
	svc, repos, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	address := &domain.Address{ID: uuid.New(), UserID: userID}
	repos.addrs.On("GetByID", ctx, address.ID).Return(address, nil)
	repos.addrs.On("SetDefault", ctx, userID, address.ID).Return(nil)

	err := svc.SetDefaultAddress(ctx, userID, address.ID)

	require.NoError(t, err)
	repos.addrs.AssertExpectations(t)
}
