package user

import (
	"context"
	"errors"
	"io"
	"log/slog"
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

var (
	testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	userCols   = []string{"id", "username", "email", "password_hash", "is_account_verified", "is_admin",
		"bio", "profile_photo_url", "created_at", "updated_at"}
	created = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresUserRepo) {
	t.Helper()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool, NewPostgresUserRepo(pool, testLogger)
}

func userRow(id uuid.UUID, username, email string, verified bool) *pgxmock.Rows {
	return pgxmock.NewRows(userCols).
		AddRow(id, username, email, "$2a$hash", verified, false, "", "", created, created)
}

func TestPostgresUserRepo_CreateUser(t *testing.T) {
	ctx := context.Background()
	params := types.CreateUserParams{Username: "alice", Email: "Alice@Example.com", PasswordHash: "$2a$hash"}

	t.Run("Success", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		id := uuid.New()
		pool.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (username, email, password_hash)")).
			WithArgs("alice", "Alice@Example.com", "$2a$hash").
			WillReturnRows(userRow(id, "alice", "alice@example.com", false))

		user, err := repo.CreateUser(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, id, user.ID)
		assert.Equal(t, "alice@example.com", user.Email)
		assert.False(t, user.IsAccountVerified)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
			WithArgs("alice", "Alice@Example.com", "$2a$hash").
			WillReturnError(&pgconn.PgError{Code: "23505"})

		_, err := repo.CreateUser(ctx, params)
		assert.ErrorIs(t, err, types.ErrConflict)
	})

	t.Run("DBError", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
			WithArgs("alice", "Alice@Example.com", "$2a$hash").
			WillReturnError(errors.New("connection reset"))

		_, err := repo.CreateUser(ctx, params)
		require.Error(t, err)
		assert.NotErrorIs(t, err, types.ErrConflict)
	})
}

func TestPostgresUserRepo_Lookups(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("ByEmail", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectQuery(regexp.QuoteMeta("FROM users WHERE LOWER(email) = LOWER($1)")).
			WithArgs("alice@example.com").
			WillReturnRows(userRow(id, "alice", "alice@example.com", true))

		user, err := repo.GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, id, user.ID)
		assert.Equal(t, types.StateVerified, user.State())
	})

	t.Run("ByEmailMissing", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectQuery(regexp.QuoteMeta("FROM users WHERE LOWER(email)")).
			WithArgs("ghost@example.com").
			WillReturnRows(pgxmock.NewRows(userCols))

		_, err := repo.GetUserByEmail(ctx, "ghost@example.com")
		assert.ErrorIs(t, err, types.ErrUserNotFound)
	})

	t.Run("ByIDMissing", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows(userCols))

		_, err := repo.GetUserByID(ctx, id)
		assert.ErrorIs(t, err, types.ErrUserNotFound)
	})
}

func TestPostgresUserRepo_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	bio := "writes about Go"
	name := "alice2"

	t.Run("PartialUpdate", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectQuery(regexp.QuoteMeta("UPDATE users SET username = $1, bio = $2, updated_at = NOW() WHERE id = $3")).
			WithArgs(name, bio, id).
			WillReturnRows(pgxmock.NewRows(userCols).
				AddRow(id, name, "alice@example.com", "$2a$hash", true, false, bio, "", created, created))

		user, err := repo.UpdateProfile(ctx, id, types.UpdateProfileParams{Username: &name, Bio: &bio})
		require.NoError(t, err)
		assert.Equal(t, name, user.Username)
		assert.Equal(t, bio, user.Bio)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("NothingToUpdate", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
			WithArgs(id).
			WillReturnRows(userRow(id, "alice", "alice@example.com", true))

		user, err := repo.UpdateProfile(ctx, id, types.UpdateProfileParams{})
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("UnknownUser", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectQuery(regexp.QuoteMeta("UPDATE users SET bio = $1")).
			WithArgs(bio, id).
			WillReturnRows(pgxmock.NewRows(userCols))

		_, err := repo.UpdateProfile(ctx, id, types.UpdateProfileParams{Bio: &bio})
		assert.ErrorIs(t, err, types.ErrUserNotFound)
	})
}

func TestPostgresUserRepo_ListAndCount(t *testing.T) {
	ctx := context.Background()

	t.Run("List", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		a, b := uuid.New(), uuid.New()
		pool.ExpectQuery(regexp.QuoteMeta("FROM users ORDER BY created_at DESC, id LIMIT $1 OFFSET $2")).
			WithArgs(10, 0).
			WillReturnRows(pgxmock.NewRows(userCols).
				AddRow(a, "alice", "alice@example.com", "h", true, true, "", "", created, created).
				AddRow(b, "bob", "bob@example.com", "h", false, false, "", "", created, created))

		users, err := repo.ListUsers(ctx, 10, 0)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "alice", users[0].Username)
		assert.Equal(t, b, users[1].ID)
	})

	t.Run("ListError", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectQuery(regexp.QuoteMeta("FROM users ORDER BY")).
			WithArgs(10, 0).
			WillReturnError(errors.New("timeout"))

		_, err := repo.ListUsers(ctx, 10, 0)
		assert.Error(t, err)
	})

	t.Run("Count", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

		count, err := repo.CountUsers(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})
}
