package password

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-blog-api/config"
	"github.com/FACorreiaa/go-blog-api/internal/api/auth"
	"github.com/FACorreiaa/go-blog-api/internal/api/token"
	"github.com/FACorreiaa/go-blog-api/internal/notification"
	"github.com/FACorreiaa/go-blog-api/internal/types"
)

// UserFinder looks accounts up by email.
type UserFinder interface {
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
}

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	SendResetLink(ctx context.Context, email string) error
	CheckResetLink(ctx context.Context, userID uuid.UUID, presented string) error
	ResetPassword(ctx context.Context, userID uuid.UUID, presented, newPassword string) error
}

type ServiceImpl struct {
	users    UserFinder
	tokens   token.Service
	notifier auth.Notifier
	cfg      config.AuthConfig
	logger   *slog.Logger
}

func NewPasswordService(users UserFinder, tokens token.Service, notifier auth.Notifier, cfg config.AuthConfig, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		users:    users,
		tokens:   tokens,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// SendResetLink issues (or reuses) a reset token and mails its link. An
// unknown address yields types.ErrUserNotFound unless ConcealUnknownEmail is
// set, in which case it succeeds silently.
func (s *ServiceImpl) SendResetLink(ctx context.Context, email string) error {
	ctx, span := otel.Tracer("PasswordService").Start(ctx, "SendResetLink", trace.WithAttributes(
		attribute.String("user.email", email),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "SendResetLink"), slog.String("email", email))

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, types.ErrUserNotFound) {
			l.InfoContext(ctx, "Reset link requested for unknown email", slog.Bool("concealed", s.cfg.ConcealUnknownEmail))
			if s.cfg.ConcealUnknownEmail {
				return nil
			}
			return err
		}
		l.ErrorContext(ctx, "Failed to look up user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return fmt.Errorf("error fetching user: %w", err)
	}

	tok, err := s.tokens.Issue(ctx, user.ID, types.PurposeResetPassword)
	if err != nil {
		l.ErrorContext(ctx, "Failed to issue reset token", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "issue failed")
		return err
	}

	link := s.tokens.Link(types.PurposeResetPassword, user.ID, tok.Token)
	msg, err := notification.ResetPasswordEmail(user.Email, user.Username, link, s.tokens.TTL(types.PurposeResetPassword).String())
	if err != nil {
		l.ErrorContext(ctx, "Failed to render reset email", slog.Any("error", err))
		return nil
	}
	s.notifier.Enqueue(ctx, msg)

	l.InfoContext(ctx, "Reset link sent", slog.String("userID", user.ID.String()))
	span.SetStatus(codes.Ok, "sent")
	return nil
}

// CheckResetLink validates a reset link without consuming it.
func (s *ServiceImpl) CheckResetLink(ctx context.Context, userID uuid.UUID, presented string) error {
	return s.tokens.Check(ctx, userID, types.PurposeResetPassword, presented)
}

// ResetPassword replaces the credential and consumes the token. The
// account ends up verified.
func (s *ServiceImpl) ResetPassword(ctx context.Context, userID uuid.UUID, presented, newPassword string) error {
	ctx, span := otel.Tracer("PasswordService").Start(ctx, "ResetPassword", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "ResetPassword"), slog.String("userID", userID.String()))

	// Cheap rejection before paying for bcrypt.
	if err := s.tokens.Check(ctx, userID, types.PurposeResetPassword, presented); err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		l.ErrorContext(ctx, "Failed to hash password", slog.Any("error", err))
		span.RecordError(err)
		return err
	}

	if err := s.tokens.Redeem(ctx, userID, types.PurposeResetPassword, presented, hash); err != nil {
		if !errors.Is(err, types.ErrInvalidToken) && !errors.Is(err, types.ErrUserNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "redeem failed")
		}
		return err
	}

	l.InfoContext(ctx, "Password reset")
	span.SetStatus(codes.Ok, "reset")
	return nil
}
