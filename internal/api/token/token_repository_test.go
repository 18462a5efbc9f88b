package token

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-blog-api/internal/types"
)

var tokenCols = []string{"token", "created_at", "expires_at"}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresTokenRepo) {
	t.Helper()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool, NewPostgresTokenRepo(pool, testLogger)
}

func TestPostgresTokenRepo_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	exp := epoch.Add(time.Hour)

	t.Run("inserts a new token", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectQuery(regexp.QuoteMeta("INSERT INTO verification_tokens")).
			WithArgs(userID, "reset-password", "fresh", epoch, exp).
			WillReturnRows(pgxmock.NewRows(tokenCols).AddRow("fresh", epoch, exp))

		tok, err := repo.GetOrCreate(ctx, userID, types.PurposeResetPassword, "fresh", epoch, exp)
		require.NoError(t, err)
		assert.Equal(t, "fresh", tok.Token)
		assert.Equal(t, types.PurposeResetPassword, tok.Purpose)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("returns the live token on conflict", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectQuery(regexp.QuoteMeta("INSERT INTO verification_tokens")).
			WithArgs(userID, "verify", "fresh", epoch, exp).
			WillReturnRows(pgxmock.NewRows(tokenCols))
		pool.ExpectQuery(regexp.QuoteMeta("SELECT token, created_at, expires_at")).
			WithArgs(userID, "verify").
			WillReturnRows(pgxmock.NewRows(tokenCols).AddRow("existing", epoch.Add(-time.Minute), exp))

		tok, err := repo.GetOrCreate(ctx, userID, types.PurposeVerifyAccount, "fresh", epoch, exp)
		require.NoError(t, err)
		assert.Equal(t, "existing", tok.Token)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("unknown user", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectQuery(regexp.QuoteMeta("INSERT INTO verification_tokens")).
			WithArgs(userID, "verify", "fresh", epoch, exp).
			WillReturnError(&pgconn.PgError{Code: "23503"})

		_, err := repo.GetOrCreate(ctx, userID, types.PurposeVerifyAccount, "fresh", epoch, exp)
		assert.ErrorIs(t, err, types.ErrUserNotFound)
	})

	t.Run("storage failure", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectQuery(regexp.QuoteMeta("INSERT INTO verification_tokens")).
			WithArgs(userID, "verify", "fresh", epoch, exp).
			WillReturnError(errors.New("connection refused"))

		_, err := repo.GetOrCreate(ctx, userID, types.PurposeVerifyAccount, "fresh", epoch, exp)
		require.Error(t, err)
		assert.NotErrorIs(t, err, types.ErrUserNotFound)
	})
}

func TestPostgresTokenRepo_Redeem(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	exp := epoch.Add(time.Hour)
	verify := types.AccountMutation{MarkVerified: true}

	expectLocks := func(pool pgxmock.PgxPoolIface, purpose, stored string, expiresAt time.Time) {
		pool.ExpectBegin()
		pool.ExpectQuery(regexp.QuoteMeta("SELECT is_account_verified FROM users")).
			WithArgs(userID).
			WillReturnRows(pgxmock.NewRows([]string{"is_account_verified"}).AddRow(false))
		pool.ExpectQuery(regexp.QuoteMeta("SELECT token, expires_at")).
			WithArgs(userID, purpose).
			WillReturnRows(pgxmock.NewRows([]string{"token", "expires_at"}).AddRow(stored, expiresAt))
	}

	t.Run("success commits mutation and delete", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		expectLocks(pool, "verify", "tok", exp)
		pool.ExpectExec(regexp.QuoteMeta("UPDATE users")).
			WithArgs(userID, true, pgxmock.AnyArg(), epoch).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		pool.ExpectExec(regexp.QuoteMeta("DELETE FROM verification_tokens")).
			WithArgs(userID, "verify", true).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		pool.ExpectCommit()

		require.NoError(t, repo.Redeem(ctx, userID, types.PurposeVerifyAccount, "tok", verify, epoch))
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("reset passes the new hash", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		hash := "bcrypt-hash"
		expectLocks(pool, "reset-password", "tok", exp)
		pool.ExpectExec(regexp.QuoteMeta("UPDATE users")).
			WithArgs(userID, true, &hash, epoch).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		pool.ExpectExec(regexp.QuoteMeta("DELETE FROM verification_tokens")).
			WithArgs(userID, "reset-password", true).
			WillReturnResult(pgxmock.NewResult("DELETE", 2))
		pool.ExpectCommit()

		m := types.AccountMutation{MarkVerified: true, PasswordHash: &hash}
		require.NoError(t, repo.Redeem(ctx, userID, types.PurposeResetPassword, "tok", m, epoch))
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("unknown user rolls back", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectBegin()
		pool.ExpectQuery(regexp.QuoteMeta("SELECT is_account_verified FROM users")).
			WithArgs(userID).
			WillReturnRows(pgxmock.NewRows([]string{"is_account_verified"}))
		pool.ExpectRollback()

		err := repo.Redeem(ctx, userID, types.PurposeVerifyAccount, "tok", verify, epoch)
		assert.ErrorIs(t, err, types.ErrUserNotFound)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("missing token", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectBegin()
		pool.ExpectQuery(regexp.QuoteMeta("SELECT is_account_verified FROM users")).
			WithArgs(userID).
			WillReturnRows(pgxmock.NewRows([]string{"is_account_verified"}).AddRow(true))
		pool.ExpectQuery(regexp.QuoteMeta("SELECT token, expires_at")).
			WithArgs(userID, "verify").
			WillReturnRows(pgxmock.NewRows([]string{"token", "expires_at"}))
		pool.ExpectRollback()

		err := repo.Redeem(ctx, userID, types.PurposeVerifyAccount, "tok", verify, epoch)
		assert.ErrorIs(t, err, types.ErrInvalidToken)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("mismatch leaves the token", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		expectLocks(pool, "verify", "tok", exp)
		pool.ExpectRollback()

		err := repo.Redeem(ctx, userID, types.PurposeVerifyAccount, "other", verify, epoch)
		assert.ErrorIs(t, err, types.ErrInvalidToken)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("expired", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		expectLocks(pool, "verify", "tok", epoch)
		pool.ExpectRollback()

		err := repo.Redeem(ctx, userID, types.PurposeVerifyAccount, "tok", verify, epoch)
		assert.ErrorIs(t, err, types.ErrInvalidToken)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("delete failure reports no success", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		expectLocks(pool, "verify", "tok", exp)
		pool.ExpectExec(regexp.QuoteMeta("UPDATE users")).
			WithArgs(userID, true, pgxmock.AnyArg(), epoch).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		pool.ExpectExec(regexp.QuoteMeta("DELETE FROM verification_tokens")).
			WithArgs(userID, "verify", true).
			WillReturnError(errors.New("connection reset"))
		pool.ExpectRollback()

		err := repo.Redeem(ctx, userID, types.PurposeVerifyAccount, "tok", verify, epoch)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "deleting redeemed token")
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("nothing deleted means the token was already used", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		expectLocks(pool, "verify", "tok", exp)
		pool.ExpectExec(regexp.QuoteMeta("UPDATE users")).
			WithArgs(userID, true, pgxmock.AnyArg(), epoch).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		pool.ExpectExec(regexp.QuoteMeta("DELETE FROM verification_tokens")).
			WithArgs(userID, "verify", true).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		pool.ExpectRollback()

		err := repo.Redeem(ctx, userID, types.PurposeVerifyAccount, "tok", verify, epoch)
		assert.ErrorIs(t, err, types.ErrInvalidToken)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("commit failure reports no success", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		expectLocks(pool, "verify", "tok", exp)
		pool.ExpectExec(regexp.QuoteMeta("UPDATE users")).
			WithArgs(userID, true, pgxmock.AnyArg(), epoch).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		pool.ExpectExec(regexp.QuoteMeta("DELETE FROM verification_tokens")).
			WithArgs(userID, "verify", true).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		pool.ExpectCommit().WillReturnError(errors.New("serialization failure"))
		pool.ExpectRollback()

		err := repo.Redeem(ctx, userID, types.PurposeVerifyAccount, "tok", verify, epoch)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "committing redemption")
		assert.NoError(t, pool.ExpectationsWereMet())
	})
}
