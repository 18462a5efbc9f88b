package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-blog-api/app/observability/metrics"
	"github.com/FACorreiaa/go-blog-api/config"
	"github.com/FACorreiaa/go-blog-api/internal/api/token"
	"github.com/FACorreiaa/go-blog-api/internal/notification"
	"github.com/FACorreiaa/go-blog-api/internal/types"
)

// UserStore is the slice of user persistence the auth flows need.
type UserStore interface {
	CreateUser(ctx context.Context, params types.CreateUserParams) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error)
}

// Notifier accepts an email for asynchronous delivery.
type Notifier interface {
	Enqueue(ctx context.Context, msg notification.Message) bool
}

var _ AuthService = (*ServiceImpl)(nil)

type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*types.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	VerifyAccount(ctx context.Context, userID uuid.UUID, presented string) error
}

// LoginResult carries the authenticated user and their session token.
type LoginResult struct {
	User        *types.User
	AccessToken string
}

type ServiceImpl struct {
	users    UserStore
	tokens   token.Service
	notifier Notifier
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.AppMetrics
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(users UserStore, tokens token.Service, notifier Notifier, cfg *config.Config, logger *slog.Logger, m *metrics.AppMetrics) *ServiceImpl {
	return &ServiceImpl{
		users:    users,
		tokens:   tokens,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Register creates an unverified account and sends its verification email.
func (s *ServiceImpl) Register(ctx context.Context, username, email, password string) (*types.User, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Register", trace.WithAttributes(
		attribute.String("user.email", email),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Register"), slog.String("email", email))
	result := "error"
	defer func() {
		metrics.Count(ctx, s.metrics.RegistrationsTotal, attribute.String("result", result))
	}()

	hash, err := HashPassword(password, s.cfg.Auth.BcryptCost)
	if err != nil {
		l.ErrorContext(ctx, "Failed to hash password", slog.Any("error", err))
		span.RecordError(err)
		return nil, err
	}

	user, err := s.users.CreateUser(ctx, types.CreateUserParams{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, types.ErrConflict) {
			result = "conflict"
			l.InfoContext(ctx, "Registration rejected, email already in use")
			return nil, err
		}
		l.ErrorContext(ctx, "Failed to create user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "create user failed")
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	span.SetAttributes(attribute.String("user.id", user.ID.String()))

	if err := s.sendVerification(ctx, user); err != nil {
		// The account stays unverified. Login with the right password issues a new token.
		l.ErrorContext(ctx, "User created but verification token not issued",
			slog.String("userID", user.ID.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "issue token failed")
		return nil, err
	}

	result = "ok"
	l.InfoContext(ctx, "User registered", slog.String("userID", user.ID.String()))
	span.SetStatus(codes.Ok, "registered")
	return user, nil
}

// Login checks credentials first. A correct password on an unverified
// account re-sends the verification email and fails with
// types.ErrAccountNotVerified without issuing a session token.
func (s *ServiceImpl) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Login", trace.WithAttributes(
		attribute.String("user.email", email),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Login"), slog.String("email", email))
	result := "error"
	defer func() {
		metrics.Count(ctx, s.metrics.LoginAttemptsTotal, attribute.String("result", result))
	}()

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, types.ErrUserNotFound) {
			// Burn the same bcrypt time as a real comparison.
			ComparePassword(s.fakeHash(), password)
			result = "bad_credentials"
			l.InfoContext(ctx, "Login failed, unknown email")
			return nil, types.ErrUnauthenticated
		}
		l.ErrorContext(ctx, "Failed to look up user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return nil, fmt.Errorf("error fetching user: %w", err)
	}

	if !ComparePassword(user.PasswordHash, password) {
		result = "bad_credentials"
		l.InfoContext(ctx, "Login failed, wrong password", slog.String("userID", user.ID.String()))
		return nil, types.ErrUnauthenticated
	}

	if user.State() != types.StateVerified {
		if err := s.sendVerification(ctx, user); err != nil {
			l.ErrorContext(ctx, "Failed to issue verification token on login", slog.Any("error", err))
			span.RecordError(err)
			return nil, err
		}
		result = "unverified"
		l.InfoContext(ctx, "Login refused, account not verified", slog.String("userID", user.ID.String()))
		return nil, types.ErrAccountNotVerified
	}

	accessToken, err := GenerateAccessToken(s.cfg.JWT, user, s.now())
	if err != nil {
		l.ErrorContext(ctx, "Failed to generate access token", slog.Any("error", err))
		span.RecordError(err)
		return nil, err
	}

	result = "ok"
	l.InfoContext(ctx, "User logged in", slog.String("userID", user.ID.String()))
	span.SetStatus(codes.Ok, "logged in")
	return &LoginResult{User: user, AccessToken: accessToken}, nil
}

// VerifyAccount redeems a verify token for userID.
func (s *ServiceImpl) VerifyAccount(ctx context.Context, userID uuid.UUID, presented string) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "VerifyAccount", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	if err := s.tokens.Redeem(ctx, userID, types.PurposeVerifyAccount, presented, ""); err != nil {
		if !errors.Is(err, types.ErrInvalidToken) && !errors.Is(err, types.ErrUserNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "redeem failed")
		}
		return err
	}
	s.logger.InfoContext(ctx, "Account verified", slog.String("method", "VerifyAccount"), slog.String("userID", userID.String()))
	return nil
}

// sendVerification issues (or reuses) the verify token and enqueues the
// email. Only the token step can fail the caller.
func (s *ServiceImpl) sendVerification(ctx context.Context, user *types.User) error {
	tok, err := s.tokens.Issue(ctx, user.ID, types.PurposeVerifyAccount)
	if err != nil {
		return err
	}

	link := s.tokens.Link(types.PurposeVerifyAccount, user.ID, tok.Token)
	msg, err := notification.VerificationEmail(user.Email, user.Username, link)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to render verification email", slog.Any("error", err))
		return nil
	}
	s.notifier.Enqueue(ctx, msg)
	return nil
}

func (s *ServiceImpl) fakeHash() string {
	s.dummyOnce.Do(func() {
		h, err := HashPassword(uuid.NewString(), s.cfg.Auth.BcryptCost)
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}
