package token

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/go-blog-api/app/db"
	"github.com/FACorreiaa/go-blog-api/internal/types"
)

var _ TokenRepo = (*PostgresTokenRepo)(nil)

// TokenRepo persists verification tokens keyed by (user, purpose).
type TokenRepo interface {
	// GetOrCreate stores candidate unless a live token already exists for
	// (userID, purpose), and returns whichever token is current. An expired
	// token is replaced. Returns types.ErrUserNotFound for an unknown user.
	GetOrCreate(ctx context.Context, userID uuid.UUID, purpose types.TokenPurpose, candidate string, now, expiresAt time.Time) (*types.VerificationToken, error)

	// Find returns the stored token or types.ErrInvalidToken.
	Find(ctx context.Context, userID uuid.UUID, purpose types.TokenPurpose) (*types.VerificationToken, error)

	// Redeem checks presented against the stored token and, in one
	// transaction, applies mutation to the user and deletes the token.
	Redeem(ctx context.Context, userID uuid.UUID, purpose types.TokenPurpose, presented string, mutation types.AccountMutation, now time.Time) error
}

type PostgresTokenRepo struct {
	logger *slog.Logger
	pgpool database.Pool
}

func NewPostgresTokenRepo(pgpool database.Pool, logger *slog.Logger) *PostgresTokenRepo {
	return &PostgresTokenRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const (
	upsertTokenSQL = `
		INSERT INTO verification_tokens (user_id, purpose, token, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, purpose) DO UPDATE
			SET token = EXCLUDED.token,
			    created_at = EXCLUDED.created_at,
			    expires_at = EXCLUDED.expires_at
			WHERE verification_tokens.expires_at <= EXCLUDED.created_at
		RETURNING token, created_at, expires_at`

	selectTokenSQL = `
		SELECT token, created_at, expires_at
		FROM verification_tokens
		WHERE user_id = $1 AND purpose = $2`

	lockUserSQL = `SELECT is_account_verified FROM users WHERE id = $1 FOR UPDATE`

	lockTokenSQL = `
		SELECT token, expires_at
		FROM verification_tokens
		WHERE user_id = $1 AND purpose = $2
		FOR UPDATE`

	applyMutationSQL = `
		UPDATE users
		SET is_account_verified = is_account_verified OR $2,
		    password_hash = COALESCE($3, password_hash),
		    updated_at = $4
		WHERE id = $1`

	// A redemption that verifies the account also retires any pending
	// verify token for it.
	deleteTokensSQL = `
		DELETE FROM verification_tokens
		WHERE user_id = $1 AND (purpose = $2 OR ($3 AND purpose = 'verify'))`
)

// maxUpsertAttempts bounds the retry when a live row vanishes between the
// conditional upsert and the follow-up read.
const maxUpsertAttempts = 3

func (r *PostgresTokenRepo) GetOrCreate(ctx context.Context, userID uuid.UUID, purpose types.TokenPurpose, candidate string, now, expiresAt time.Time) (*types.VerificationToken, error) {
	ctx, span := otel.Tracer("TokenRepo").Start(ctx, "GetOrCreate", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPSERT"),
		attribute.String("db.sql.table", "verification_tokens"),
		attribute.String("token.purpose", string(purpose)),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "GetOrCreate"), slog.String("userID", userID.String()), slog.String("purpose", string(purpose)))

	for attempt := 1; attempt <= maxUpsertAttempts; attempt++ {
		tok := &types.VerificationToken{UserID: userID, Purpose: purpose}
		err := r.pgpool.QueryRow(ctx, upsertTokenSQL, userID, string(purpose), candidate, now, expiresAt).
			Scan(&tok.Token, &tok.CreatedAt, &tok.ExpiresAt)
		if err == nil {
			return tok, nil
		}
		if database.IsForeignKeyViolation(err) {
			span.SetStatus(codes.Error, "user not found")
			return nil, fmt.Errorf("issuing %s token: %w", purpose, types.ErrUserNotFound)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			l.ErrorContext(ctx, "Failed to upsert verification token", slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "upsert failed")
			return nil, fmt.Errorf("database error upserting token: %w", err)
		}

		// A live token already exists; return it unchanged.
		existing, err := r.Find(ctx, userID, purpose)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, types.ErrInvalidToken) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "read after upsert failed")
			return nil, err
		}
		l.DebugContext(ctx, "Live token disappeared between upsert and read, retrying", slog.Int("attempt", attempt))
	}

	err := fmt.Errorf("could not settle token for user %s after %d attempts", userID, maxUpsertAttempts)
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}

func (r *PostgresTokenRepo) Find(ctx context.Context, userID uuid.UUID, purpose types.TokenPurpose) (*types.VerificationToken, error) {
	ctx, span := otel.Tracer("TokenRepo").Start(ctx, "Find", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "verification_tokens"),
	))
	defer span.End()

	tok := &types.VerificationToken{UserID: userID, Purpose: purpose}
	err := r.pgpool.QueryRow(ctx, selectTokenSQL, userID, string(purpose)).Scan(&tok.Token, &tok.CreatedAt, &tok.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrInvalidToken
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, fmt.Errorf("database error fetching token: %w", err)
	}
	return tok, nil
}

func (r *PostgresTokenRepo) Redeem(ctx context.Context, userID uuid.UUID, purpose types.TokenPurpose, presented string, mutation types.AccountMutation, now time.Time) (err error) {
	ctx, span := otel.Tracer("TokenRepo").Start(ctx, "Redeem", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "TRANSACTION"),
		attribute.String("token.purpose", string(purpose)),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Redeem"), slog.String("userID", userID.String()), slog.String("purpose", string(purpose)))

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				l.WarnContext(ctx, "Rollback failed", slog.Any("error", rbErr))
			}
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	var verified bool
	if err = tx.QueryRow(ctx, lockUserSQL, userID).Scan(&verified); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.ErrUserNotFound
		}
		return fmt.Errorf("locking user: %w", err)
	}

	var stored string
	var expiresAt time.Time
	if err = tx.QueryRow(ctx, lockTokenSQL, userID, string(purpose)).Scan(&stored, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.ErrInvalidToken
		}
		return fmt.Errorf("locking token: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) != 1 {
		return types.ErrInvalidToken
	}
	if !now.Before(expiresAt) {
		l.InfoContext(ctx, "Rejected expired token", slog.Time("expires_at", expiresAt))
		return types.ErrInvalidToken
	}

	if _, err = tx.Exec(ctx, applyMutationSQL, userID, mutation.MarkVerified, mutation.PasswordHash, now); err != nil {
		return fmt.Errorf("applying account transition: %w", err)
	}

	tag, err := tx.Exec(ctx, deleteTokensSQL, userID, string(purpose), mutation.MarkVerified)
	if err != nil {
		return fmt.Errorf("deleting redeemed token: %w", err)
	}
	if tag.RowsAffected() < 1 {
		return types.ErrInvalidToken
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing redemption: %w", err)
	}

	l.InfoContext(ctx, "Token redeemed", slog.Bool("was_verified", verified))
	span.SetStatus(codes.Ok, "redeemed")
	return nil
}
