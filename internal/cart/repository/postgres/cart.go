package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/karyatek/storefront/internal/cart/domain"
	"github.com/karyatek/storefront/internal/owner"
	"github.com/karyatek/storefront/pkg/database"
	apperrors "github.com/karyatek/storefront/pkg/errors"
)

// CartRepository implements repository.CartRepository using PostgreSQL.
// Carts live in Postgres rather than a session store so checkout can clear
// them inside the order transaction.
type CartRepository struct {
	pool database.DBTX
}

// NewCartRepository creates a PostgreSQL-backed cart repository.
func NewCartRepository(pool database.DBTX) *CartRepository {
	return &CartRepository{pool: pool}
}

// ownerClause returns the WHERE fragment and argument matching the owner's
// column. Carts have exactly one of user_id and session_token set.
func ownerClause(own owner.Owner) (string, any) {
	if own.IsUser() {
		return "user_id = $1", own.UserID()
	}
	return "session_token = $1", own.SessionToken()
}

// GetOrCreate returns the owner's cart with priced lines, creating an empty
// cart row on first use.
func (r *CartRepository) GetOrCreate(ctx context.Context, own owner.Owner) (*domain.Cart, error) {
	if own.IsZero() {
		return nil, apperrors.Unauthorized("a user or guest session is required")
	}

	clause, arg := ownerClause(own)

	var cart domain.Cart
	err := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT id, created_at, updated_at FROM carts WHERE %s`, clause), arg,
	).Scan(&cart.ID, &cart.CreatedAt, &cart.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		userID, sessionToken := own.SQLArgs()
		now := time.Now().UTC()
		cart = domain.Cart{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}

		// Two first-touch requests can race this insert; the loser takes
		// the winner's row instead of tripping the owner unique index.
		ct, err := r.pool.Exec(ctx,
			`INSERT INTO carts (id, user_id, session_token, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT DO NOTHING`,
			cart.ID, userID, sessionToken, now, now,
		)
		if err != nil {
			return nil, fmt.Errorf("insert cart: %w", err)
		}
		if ct.RowsAffected() == 0 {
			if err := r.pool.QueryRow(ctx,
				fmt.Sprintf(`SELECT id, created_at, updated_at FROM carts WHERE %s`, clause), arg,
			).Scan(&cart.ID, &cart.CreatedAt, &cart.UpdatedAt); err != nil {
				return nil, fmt.Errorf("select cart after insert conflict: %w", err)
			}
		}
	} else if err != nil {
		return nil, fmt.Errorf("select cart: %w", err)
	}

	lines, err := r.loadLines(ctx, cart.ID)
	if err != nil {
		return nil, err
	}

	cart.Lines = lines
	cart.ComputeSubtotal()
	return &cart, nil
}

// loadLines loads cart lines joined with current catalog data so prices and
// stock levels are never stale.
func (r *CartRepository) loadLines(ctx context.Context, cartID uuid.UUID) ([]domain.Line, error) {
	query := `
		SELECT ci.id, ci.variant_id, ci.quantity,
		       p.id, p.name, p.slug,
		       v.sku, v.color, v.size,
		       p.base_price_cents + v.price_delta_cents AS unit_price_cents,
		       v.stock
		FROM cart_items ci
		JOIN product_variants v ON v.id = ci.variant_id
		JOIN products p ON p.id = v.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at`

	rows, err := r.pool.Query(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("select cart lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.Line, 0)
	for rows.Next() {
		var l domain.Line
		if err := rows.Scan(
			&l.ID, &l.VariantID, &l.Quantity,
			&l.ProductID, &l.ProductName, &l.ProductSlug,
			&l.SKU, &l.Color, &l.Size,
			&l.UnitPriceCents, &l.StockLeft,
		); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart line rows: %w", err)
	}
	return lines, nil
}

// AddLine merges quantity into the cart, one line per variant.
func (r *CartRepository) AddLine(ctx context.Context, cartID, variantID uuid.UUID, quantity int) error {
	query := `
		INSERT INTO cart_items (id, cart_id, variant_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (cart_id, variant_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query, uuid.New(), cartID, variantID, quantity, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert cart line: %w", err)
	}
	return r.touch(ctx, cartID)
}

// SetLineQuantity replaces the quantity of an existing line.
func (r *CartRepository) SetLineQuantity(ctx context.Context, cartID, variantID uuid.UUID, quantity int) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE cart_items SET quantity = $1, updated_at = $2 WHERE cart_id = $3 AND variant_id = $4`,
		quantity, time.Now().UTC(), cartID, variantID,
	)
	if err != nil {
		return fmt.Errorf("update cart line: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("cart line", variantID.String())
	}
	return r.touch(ctx, cartID)
}

// RemoveLine deletes the line for the given variant.
func (r *CartRepository) RemoveLine(ctx context.Context, cartID, variantID uuid.UUID) error {
	ct, err := r.pool.Exec(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND variant_id = $2`,
		cartID, variantID,
	)
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("cart line", variantID.String())
	}
	return r.touch(ctx, cartID)
}

// Clear deletes every line but keeps the cart row.
func (r *CartRepository) Clear(ctx context.Context, cartID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return r.touch(ctx, cartID)
}

func (r *CartRepository) touch(ctx context.Context, cartID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `UPDATE carts SET updated_at = $1 WHERE id = $2`, time.Now().UTC(), cartID); err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}
