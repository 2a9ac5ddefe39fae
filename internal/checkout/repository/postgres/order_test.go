package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karyatek/storefront/internal/owner"
	"github.com/karyatek/storefront/pkg/database"
	apperrors "github.com/karyatek/storefront/pkg/errors"
)

func newTestRepo(t *testing.T) (*OrderRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	pool, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return NewOrderRepository(pool), pool
}

var orderRowColumns = []string{
	"id", "order_number", "status", "payment_status", "payment_method",
	"transaction_ref", "shipping_address", "billing_address", "notes",
	"subtotal_cents", "tax_cents", "shipping_cents", "total_cents",
	"created_at", "updated_at", "lines",
}

const addressJSON = `{"full_name":"Maja Lindqvist","email":"maja@example.com","phone":"",
	"address_line1":"Storgatan 12","address_line2":"","city":"Stockholm","state":"Stockholm",
	"postal_code":"111 22","country":"SE"}`

func orderRowValues(id uuid.UUID, orderNumber string, linesJSON string) []any {
	now := time.Now().UTC()
	return []any{
		id, orderNumber, "pending", "completed", "credit_card",
		"TXN-a1b2c3d4e5f6", []byte(addressJSON), []byte(addressJSON), "",
		int64(9999), int64(2500), int64(999), int64(13498),
		now, now, []byte(linesJSON),
	}
}

func TestOrderRepository_ListByOwner_User(t *testing.T) {
	repo, pool := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()
	own := owner.User(userID)

	orderID := uuid.New()
	lines := `[{"id":"` + uuid.New().String() + `","order_id":"` + orderID.String() + `",
		"variant_id":"` + uuid.New().String() + `","product_name":"Linen Shirt","sku":"SHIRT-A",
		"variant_label":"white / M","unit_price_cents":4999,"quantity":2,"subtotal_cents":9998,
		"snapshot":{},"created_at":"2025-01-02T03:04:05Z"}]`

	rows := pgxmock.NewRows(append(orderRowColumns, "total_count")).
		AddRow(append(orderRowValues(orderID, "ORD202501020304abcd", lines), 3)...)

	pool.ExpectQuery(`SELECT (.+) FROM orders o\s+WHERE o.user_id = \$1`).
		WithArgs(userID, 20, 0).
		WillReturnRows(rows)

	orders, total, err := repo.ListByOwner(ctx, own, 1, 20)

	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, orders, 1)
	assert.Equal(t, "ORD202501020304abcd", orders[0].OrderNumber)
	assert.Equal(t, "Stockholm", orders[0].ShippingAddress.City)
	require.Len(t, orders[0].Lines, 1)
	assert.Equal(t, "SHIRT-A", orders[0].Lines[0].SKU)
	assert.Equal(t, 2, orders[0].Lines[0].Quantity)

	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestOrderRepository_ListByOwner_GuestPagination(t *testing.T) {
	repo, pool := newTestRepo(t)
	ctx := context.Background()
	own := owner.Guest("guest-token-1")

	pool.ExpectQuery(`WHERE o.session_token = \$1`).
		WithArgs("guest-token-1", 10, 10).
		WillReturnRows(pgxmock.NewRows(append(orderRowColumns, "total_count")))

	orders, total, err := repo.ListByOwner(ctx, own, 2, 10)

	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, orders)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestOrderRepository_ListByOwner_MissingOwner(t *testing.T) {
	repo, pool := newTestRepo(t)

	_, _, err := repo.ListByOwner(context.Background(), owner.Owner{}, 1, 20)

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestOrderRepository_GetByIDAndOwner_Success(t *testing.T) {
	repo, pool := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()
	orderID := uuid.New()

	rows := pgxmock.NewRows(orderRowColumns).
		AddRow(orderRowValues(orderID, "ORD202501020304abcd", "[]")...)

	pool.ExpectQuery(`WHERE o.id = \$1 AND o.user_id = \$2`).
		WithArgs(orderID, userID).
		WillReturnRows(rows)

	order, err := repo.GetByIDAndOwner(ctx, orderID, owner.User(userID))

	require.NoError(t, err)
	assert.Equal(t, orderID, order.ID)
	assert.Equal(t, int64(13498), order.TotalCents)
	assert.Empty(t, order.Lines)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestOrderRepository_GetByIDAndOwner_ForeignOrderIsNotFound(t *testing.T) {
	repo, pool := newTestRepo(t)
	ctx := context.Background()
	orderID := uuid.New()

	pool.ExpectQuery(`WHERE o.id = \$1 AND o.session_token = \$2`).
		WithArgs(orderID, "guest-token-2").
		WillReturnError(pgx.ErrNoRows)

	order, err := repo.GetByIDAndOwner(ctx, orderID, owner.Guest("guest-token-2"))

	assert.Nil(t, order)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestOrderRepository_UpdateStatus(t *testing.T) {
	repo, pool := newTestRepo(t)
	ctx := context.Background()
	orderID := uuid.New()

	pool.ExpectExec(`UPDATE orders SET status = \$1`).
		WithArgs("processing", orderID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.UpdateStatus(ctx, orderID, "processing")

	assert.NoError(t, err)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestOrderRepository_UpdateStatus_UnknownOrder(t *testing.T) {
	repo, pool := newTestRepo(t)
	ctx := context.Background()
	orderID := uuid.New()

	pool.ExpectExec(`UPDATE orders SET status = \$1`).
		WithArgs("shipped", orderID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateStatus(ctx, orderID, "shipped")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, pool.ExpectationsWereMet())
}
