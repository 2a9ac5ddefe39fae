package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karyatek/storefront/pkg/database"
	apperrors "github.com/karyatek/storefront/pkg/errors"
)

func newTokenRepo(t *testing.T) (*RefreshTokenRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	pool, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return NewRefreshTokenRepository(pool), pool
}

func TestRefreshTokenCreate(t *testing.T) {
	repo, pool := newTokenRepo(t)
	userID := uuid.New()
	expiresAt := time.Now().Add(7 * 24 * time.Hour).UTC()

	pool.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), userID, "hash-abc", expiresAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), userID, "hash-abc", expiresAt))
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestRefreshTokenGetByHash(t *testing.T) {
	repo, pool := newTokenRepo(t)
	id := uuid.New()
	userID := uuid.New()
	now := time.Now().UTC()

	pool.ExpectQuery(`SELECT .+ FROM refresh_tokens WHERE token_hash = \$1`).
		WithArgs("hash-abc").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "revoked_at", "created_at"}).
			AddRow(id, userID, "hash-abc", now.Add(time.Hour), nil, now))

	token, err := repo.GetByHash(context.Background(), "hash-abc")

	require.NoError(t, err)
	assert.Equal(t, userID, token.UserID)
	assert.Nil(t, token.RevokedAt)
}

func TestRefreshTokenGetByHash_NotFound(t *testing.T) {
	repo, pool := newTokenRepo(t)

	pool.ExpectQuery(`SELECT .+ FROM refresh_tokens WHERE token_hash = \$1`).
		WithArgs("unknown").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "revoked_at", "created_at"}))

	_, err := repo.GetByHash(context.Background(), "unknown")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRefreshTokenRevoke_AlreadyRevoked(t *testing.T) {
	repo, pool := newTokenRepo(t)

	pool.ExpectExec(`UPDATE refresh_tokens SET revoked_at = NOW\(\) WHERE token_hash = \$1 AND revoked_at IS NULL`).
		WithArgs("hash-abc").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Revoke(context.Background(), "hash-abc")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRefreshTokenRevokeByUserID(t *testing.T) {
	repo, pool := newTokenRepo(t)
	userID := uuid.New()

	pool.ExpectExec(`UPDATE refresh_tokens SET revoked_at = NOW\(\) WHERE user_id = \$1 AND revoked_at IS NULL`).
		WithArgs(userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	require.NoError(t, repo.RevokeByUserID(context.Background(), userID))
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestRefreshTokenDeleteExpired(t *testing.T) {
	repo, pool := newTokenRepo(t)

	pool.ExpectExec(`DELETE FROM refresh_tokens WHERE expires_at < NOW\(\)`).
		WillReturnResult(pgxmock.NewResult("DELETE", 5))

	count, err := repo.DeleteExpired(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}
