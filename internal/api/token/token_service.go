package token

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-blog-api/app/observability/metrics"
	"github.com/FACorreiaa/go-blog-api/config"
	"github.com/FACorreiaa/go-blog-api/internal/types"
)

// tokenBytes is the amount of randomness behind each token; the encoded
// value is twice as long.
const tokenBytes = 32

var _ Service = (*ServiceImpl)(nil)

// Service issues and redeems single-use verification tokens.
type Service interface {
	// Issue returns the live token for (userID, purpose), creating one if
	// needed. Calling it twice without a redemption yields the same value.
	Issue(ctx context.Context, userID uuid.UUID, purpose types.TokenPurpose) (*types.VerificationToken, error)
	// Check validates a presented token without consuming it.
	Check(ctx context.Context, userID uuid.UUID, purpose types.TokenPurpose, presented string) error
	// Redeem consumes the token and applies the account transition for its
	// purpose. newPasswordHash is only used for password resets.
	Redeem(ctx context.Context, userID uuid.UUID, purpose types.TokenPurpose, presented, newPasswordHash string) error
	// Link builds the client URL for a token.
	Link(purpose types.TokenPurpose, userID uuid.UUID, token string) string
	// TTL reports how long tokens of the given purpose live.
	TTL(purpose types.TokenPurpose) time.Duration
}

type ServiceImpl struct {
	repo    TokenRepo
	logger  *slog.Logger
	metrics *metrics.AppMetrics
	origin  string
	ttl     map[types.TokenPurpose]time.Duration
	now     func() time.Time
	random  io.Reader
}

// Option customises a ServiceImpl.
type Option func(*ServiceImpl)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *ServiceImpl) { s.now = now }
}

// WithRandom replaces crypto/rand as the token entropy source.
func WithRandom(r io.Reader) Option {
	return func(s *ServiceImpl) { s.random = r }
}

func NewTokenService(repo TokenRepo, cfg config.TokenConfig, origin string, logger *slog.Logger, m *metrics.AppMetrics, opts ...Option) *ServiceImpl {
	s := &ServiceImpl{
		repo:    repo,
		logger:  logger,
		metrics: m,
		origin:  origin,
		ttl: map[types.TokenPurpose]time.Duration{
			types.PurposeVerifyAccount: cfg.VerifyTTL,
			types.PurposeResetPassword: cfg.ResetTTL,
		},
		now:    time.Now,
		random: rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateToken reads tokenBytes from r and hex-encodes them.
func GenerateToken(r io.Reader) (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("reading token entropy: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// wellFormed rejects values that could never have been issued, sparing a
// database round trip.
func wellFormed(presented string) bool {
	if len(presented) != 2*tokenBytes {
		return false
	}
	_, err := hex.DecodeString(presented)
	return err == nil
}

func (s *ServiceImpl) TTL(purpose types.TokenPurpose) time.Duration {
	return s.ttl[purpose]
}

func (s *ServiceImpl) Link(purpose types.TokenPurpose, userID uuid.UUID, token string) string {
	return BuildLink(s.origin, purpose, userID.String(), token)
}

func (s *ServiceImpl) Issue(ctx context.Context, userID uuid.UUID, purpose types.TokenPurpose) (*types.VerificationToken, error) {
	ctx, span := otel.Tracer("TokenService").Start(ctx, "Issue", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("token.purpose", string(purpose)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Issue"), slog.String("userID", userID.String()), slog.String("purpose", string(purpose)))

	if !purpose.Valid() {
		return nil, fmt.Errorf("unknown token purpose %q: %w", purpose, types.ErrValidation)
	}

	candidate, err := GenerateToken(s.random)
	if err != nil {
		l.ErrorContext(ctx, "Failed to generate token", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "entropy failure")
		return nil, err
	}

	now := s.now()
	tok, err := s.repo.GetOrCreate(ctx, userID, purpose, candidate, now, now.Add(s.ttl[purpose]))
	if err != nil {
		l.ErrorContext(ctx, "Failed to store token", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failure")
		return nil, fmt.Errorf("issuing %s token: %w", purpose, err)
	}

	reused := tok.Token != candidate
	metrics.Count(ctx, s.metrics.TokensIssuedTotal,
		attribute.String("purpose", string(purpose)),
		attribute.Bool("reused", reused),
	)
	l.DebugContext(ctx, "Token issued", slog.Bool("reused", reused), slog.Time("expires_at", tok.ExpiresAt))
	span.SetStatus(codes.Ok, "issued")
	return tok, nil
}

func (s *ServiceImpl) Check(ctx context.Context, userID uuid.UUID, purpose types.TokenPurpose, presented string) error {
	ctx, span := otel.Tracer("TokenService").Start(ctx, "Check", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("token.purpose", string(purpose)),
	))
	defer span.End()

	if !wellFormed(presented) {
		return types.ErrInvalidToken
	}

	tok, err := s.repo.Find(ctx, userID, purpose)
	if err != nil {
		if !errors.Is(err, types.ErrInvalidToken) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "lookup failed")
		}
		return err
	}
	if subtle.ConstantTimeCompare([]byte(tok.Token), []byte(presented)) != 1 || tok.Expired(s.now()) {
		return types.ErrInvalidToken
	}
	return nil
}

func (s *ServiceImpl) Redeem(ctx context.Context, userID uuid.UUID, purpose types.TokenPurpose, presented, newPasswordHash string) error {
	ctx, span := otel.Tracer("TokenService").Start(ctx, "Redeem", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("token.purpose", string(purpose)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Redeem"), slog.String("userID", userID.String()), slog.String("purpose", string(purpose)))

	mutation, err := types.TransitionFor(purpose, newPasswordHash)
	if err != nil {
		return err
	}

	result := "ok"
	defer func() {
		metrics.Count(ctx, s.metrics.TokenRedemptionTotal,
			attribute.String("purpose", string(purpose)),
			attribute.String("result", result),
		)
	}()

	if !wellFormed(presented) {
		result = "invalid"
		return types.ErrInvalidToken
	}

	err = s.repo.Redeem(ctx, userID, purpose, presented, mutation, s.now())
	switch {
	case err == nil:
		l.InfoContext(ctx, "Token redeemed")
		span.SetStatus(codes.Ok, "redeemed")
		return nil
	case errors.Is(err, types.ErrInvalidToken), errors.Is(err, types.ErrUserNotFound):
		result = "invalid"
		l.InfoContext(ctx, "Token redemption rejected", slog.Any("reason", err))
		return err
	default:
		result = "error"
		l.ErrorContext(ctx, "Token redemption failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "redeem failed")
		return fmt.Errorf("redeeming %s token: %w", purpose, err)
	}
}
