package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/karyatek/storefront/internal/checkout/domain"
	"github.com/karyatek/storefront/internal/owner"
	"github.com/karyatek/storefront/pkg/database"
	apperrors "github.com/karyatek/storefront/pkg/errors"
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `
	o.id, o.order_number, o.status, o.payment_status, o.payment_method,
	o.transaction_ref, o.shipping_address, o.billing_address, o.notes,
	o.subtotal_cents, o.tax_cents, o.shipping_cents, o.total_cents,
	o.created_at, o.updated_at,
	COALESCE(
		(SELECT JSONB_AGG(JSONB_BUILD_OBJECT(
			'id', l.id,
			'order_id', l.order_id,
			'variant_id', l.variant_id,
			'product_name', l.product_name,
			'sku', l.variant_sku,
			'variant_label', l.variant_label,
			'unit_price_cents', l.unit_price_cents,
			'quantity', l.quantity,
			'subtotal_cents', l.subtotal_cents,
			'snapshot', l.snapshot,
			'created_at', l.created_at
		) ORDER BY l.created_at)
		FROM order_lines l WHERE l.order_id = o.id),
		'[]'::jsonb
	) AS lines`

func ownerClause(own owner.Owner, argIndex int) (string, any) {
	if own.IsUser() {
		return fmt.Sprintf("o.user_id = $%d", argIndex), own.UserID()
	}
	return fmt.Sprintf("o.session_token = $%d", argIndex), own.SessionToken()
}

func scanOrder(dest func(...any) error) (*domain.Order, error) {
	var (
		o            domain.Order
		shippingJSON []byte
		billingJSON  []byte
		linesJSON    []byte
	)

	err := dest(
		&o.ID, &o.OrderNumber, &o.Status, &o.PaymentStatus, &o.PaymentMethod,
		&o.TransactionRef, &shippingJSON, &billingJSON, &o.Notes,
		&o.SubtotalCents, &o.TaxCents, &o.ShippingCents, &o.TotalCents,
		&o.CreatedAt, &o.UpdatedAt, &linesJSON,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(shippingJSON, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if err := json.Unmarshal(billingJSON, &o.BillingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal billing address: %w", err)
	}
	if err := json.Unmarshal(linesJSON, &o.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal order lines: %w", err)
	}

	return &o, nil
}

// ListByOwner returns the owner's orders newest first with lines attached.
func (r *OrderRepository) ListByOwner(ctx context.Context, own owner.Owner, page, perPage int) ([]domain.Order, int, error) {
	if own.IsZero() {
		return nil, 0, apperrors.Unauthorized("a user or guest session is required")
	}

	clause, arg := ownerClause(own, 1)
	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM orders o
		WHERE %s
		ORDER BY o.created_at DESC
		LIMIT $2 OFFSET $3`,
		orderColumns, clause,
	)

	if perPage <= 0 {
		perPage = 20
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * perPage
	}

	rows, err := r.pool.Query(ctx, query, arg, perPage, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var totalCount int
	orders := make([]domain.Order, 0)

	for rows.Next() {
		o, err := scanOrder(func(dest ...any) error {
			return rows.Scan(append(dest, &totalCount)...)
		})
		if err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, totalCount, nil
}

// GetByIDAndOwner returns the order only if the owner matches. A foreign
// order is indistinguishable from a missing one.
func (r *OrderRepository) GetByIDAndOwner(ctx context.Context, id uuid.UUID, own owner.Owner) (*domain.Order, error) {
	if own.IsZero() {
		return nil, apperrors.Unauthorized("a user or guest session is required")
	}

	clause, arg := ownerClause(own, 2)
	query := fmt.Sprintf(`SELECT %s FROM orders o WHERE o.id = $1 AND %s`, orderColumns, clause)

	row := r.pool.QueryRow(ctx, query, id, arg)
	o, err := scanOrder(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id.String())
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// GetByID returns the order with lines regardless of owner.
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders o WHERE o.id = $1`, orderColumns)

	row := r.pool.QueryRow(ctx, query, id)
	o, err := scanOrder(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id.String())
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// UpdateStatus sets the order's lifecycle status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", id.String())
	}
	return nil
}
