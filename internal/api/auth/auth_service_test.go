package auth

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/FACorreiaa/go-blog-api/app/observability/metrics"
	"github.com/FACorreiaa/go-blog-api/config"
	"github.com/FACorreiaa/go-blog-api/internal/notification"
	"github.com/FACorreiaa/go-blog-api/internal/types"
)

// MockUserStore is a mock implementation of the UserStore interface
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) CreateUser(ctx context.Context, params types.CreateUserParams) (*types.User, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserStore) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserStore) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

// MockTokenService is a mock implementation of token.Service
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) Issue(ctx context.Context, userID uuid.UUID, purpose types.TokenPurpose) (*types.VerificationToken, error) {
	args := m.Called(ctx, userID, purpose)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.VerificationToken), args.Error(1)
}

func (m *MockTokenService) Check(ctx context.Context, userID uuid.UUID, purpose types.TokenPurpose, presented string) error {
	return m.Called(ctx, userID, purpose, presented).Error(0)
}

func (m *MockTokenService) Redeem(ctx context.Context, userID uuid.UUID, purpose types.TokenPurpose, presented, newPasswordHash string) error {
	return m.Called(ctx, userID, purpose, presented, newPasswordHash).Error(0)
}

func (m *MockTokenService) Link(purpose types.TokenPurpose, userID uuid.UUID, token string) string {
	return "http://localhost:3000/" + string(purpose) + "/" + userID.String() + "/" + token
}

func (m *MockTokenService) TTL(purpose types.TokenPurpose) time.Duration {
	return time.Hour
}

// MockNotifier is a mock implementation of the Notifier interface
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Enqueue(ctx context.Context, msg notification.Message) bool {
	return m.Called(ctx, msg).Bool(0)
}

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			SecretKey:      "test-access-secret",
			AccessTokenTTL: 15 * time.Minute,
			Issuer:         "test-issuer",
			Audience:       "test-audience",
		},
		Auth: config.AuthConfig{BcryptCost: bcrypt.MinCost},
	}
}

type fixture struct {
	users    *MockUserStore
	tokens   *MockTokenService
	notifier *MockNotifier
	service  *ServiceImpl
}

func newFixture() *fixture {
	f := &fixture{
		users:    new(MockUserStore),
		tokens:   new(MockTokenService),
		notifier: new(MockNotifier),
	}
	f.service = NewAuthService(f.users, f.tokens, f.notifier, testConfig(), testLogger, metrics.NewNoop())
	return f
}

func (f *fixture) assertExpectations(t *testing.T) {
	f.users.AssertExpectations(t)
	f.tokens.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func hashed(t *testing.T, pw string) string {
	h, err := HashPassword(pw, bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newFixture()
		user := &types.User{ID: uuid.New(), Username: "alice", Email: "alice@example.com"}

		f.users.On("CreateUser", mock.Anything, mock.MatchedBy(func(p types.CreateUserParams) bool {
			return p.Email == "alice@example.com" && p.Username == "alice" && ComparePassword(p.PasswordHash, "s3cretpass")
		})).Return(user, nil).Once()
		f.tokens.On("Issue", mock.Anything, user.ID, types.PurposeVerifyAccount).
			Return(&types.VerificationToken{UserID: user.ID, Token: "t1"}, nil).Once()
		f.notifier.On("Enqueue", mock.Anything, mock.MatchedBy(func(m notification.Message) bool {
			return m.To == "alice@example.com" && m.Subject == "Verify Your Email"
		})).Return(true).Once()

		got, err := f.service.Register(ctx, "alice", "alice@example.com", "s3cretpass")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		f.assertExpectations(t)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		f := newFixture()
		f.users.On("CreateUser", mock.Anything, mock.Anything).Return(nil, types.ErrConflict).Once()

		_, err := f.service.Register(ctx, "alice", "alice@example.com", "s3cretpass")
		assert.ErrorIs(t, err, types.ErrConflict)
		f.tokens.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("TokenFailure", func(t *testing.T) {
		f := newFixture()
		user := &types.User{ID: uuid.New(), Email: "alice@example.com"}
		f.users.On("CreateUser", mock.Anything, mock.Anything).Return(user, nil).Once()
		f.tokens.On("Issue", mock.Anything, user.ID, types.PurposeVerifyAccount).Return(nil, errors.New("db down")).Once()

		_, err := f.service.Register(ctx, "alice", "alice@example.com", "s3cretpass")
		assert.Error(t, err)
		f.notifier.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
	})

	t.Run("TokenFailureLogsCreatedUser", func(t *testing.T) {
		var buf bytes.Buffer
		f := newFixture()
		f.service = NewAuthService(f.users, f.tokens, f.notifier, testConfig(),
			slog.New(slog.NewJSONHandler(&buf, nil)), metrics.NewNoop())
		user := &types.User{ID: uuid.New(), Email: "alice@example.com"}
		f.users.On("CreateUser", mock.Anything, mock.Anything).Return(user, nil).Once()
		f.tokens.On("Issue", mock.Anything, user.ID, types.PurposeVerifyAccount).Return(nil, errors.New("db down")).Once()

		_, err := f.service.Register(ctx, "alice", "alice@example.com", "s3cretpass")
		require.Error(t, err)
		assert.Contains(t, buf.String(), user.ID.String())
		assert.Contains(t, buf.String(), "verification token not issued")
		f.assertExpectations(t)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newFixture()
		user := &types.User{ID: uuid.New(), Username: "alice", Email: "alice@example.com",
			PasswordHash: hashed(t, "s3cretpass"), IsAccountVerified: true, IsAdmin: true}
		f.users.On("GetUserByEmail", mock.Anything, user.Email).Return(user, nil).Once()

		res, err := f.service.Login(ctx, user.Email, "s3cretpass")
		require.NoError(t, err)
		assert.Equal(t, user, res.User)

		claims, err := ParseAccessToken(testConfig().JWT, res.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID.String(), claims.UserID)
		assert.True(t, claims.IsAdmin)
		f.assertExpectations(t)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		f := newFixture()
		f.users.On("GetUserByEmail", mock.Anything, "ghost@example.com").Return(nil, types.ErrUserNotFound).Once()

		_, err := f.service.Login(ctx, "ghost@example.com", "whatever1")
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		f := newFixture()
		user := &types.User{ID: uuid.New(), Email: "alice@example.com", PasswordHash: hashed(t, "s3cretpass")}
		f.users.On("GetUserByEmail", mock.Anything, user.Email).Return(user, nil).Once()

		_, err := f.service.Login(ctx, user.Email, "wrongpass")
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
		f.tokens.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UnverifiedSendsOneEmailAndNoSession", func(t *testing.T) {
		f := newFixture()
		user := &types.User{ID: uuid.New(), Username: "alice", Email: "alice@example.com", PasswordHash: hashed(t, "s3cretpass")}
		f.users.On("GetUserByEmail", mock.Anything, user.Email).Return(user, nil).Once()
		f.tokens.On("Issue", mock.Anything, user.ID, types.PurposeVerifyAccount).
			Return(&types.VerificationToken{UserID: user.ID, Token: "t1"}, nil).Once()
		f.notifier.On("Enqueue", mock.Anything, mock.MatchedBy(func(m notification.Message) bool {
			return m.To == user.Email
		})).Return(true).Once()

		res, err := f.service.Login(ctx, user.Email, "s3cretpass")
		assert.ErrorIs(t, err, types.ErrAccountNotVerified)
		assert.Nil(t, res)
		f.assertExpectations(t)
	})

	t.Run("StoreFailure", func(t *testing.T) {
		f := newFixture()
		f.users.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(nil, errors.New("timeout")).Once()

		_, err := f.service.Login(ctx, "alice@example.com", "s3cretpass")
		require.Error(t, err)
		assert.NotErrorIs(t, err, types.ErrUnauthenticated)
	})
}

func TestVerifyAccount(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	f := newFixture()
	f.tokens.On("Redeem", mock.Anything, userID, types.PurposeVerifyAccount, "good", "").Return(nil).Once()
	f.tokens.On("Redeem", mock.Anything, userID, types.PurposeVerifyAccount, "bad", "").Return(types.ErrInvalidToken).Once()

	assert.NoError(t, f.service.VerifyAccount(ctx, userID, "good"))
	assert.ErrorIs(t, f.service.VerifyAccount(ctx, userID, "bad"), types.ErrInvalidToken)
	f.assertExpectations(t)
}
