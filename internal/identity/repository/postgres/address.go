package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/karyatek/storefront/internal/identity/domain"
	"github.com/karyatek/storefront/pkg/database"
	apperrors "github.com/karyatek/storefront/pkg/errors"
)

// AddressRepository implements repository.AddressRepository using PostgreSQL.
type AddressRepository struct {
	pool database.DBTX
}

// NewAddressRepository creates a PostgreSQL-backed address repository.
func NewAddressRepository(pool database.DBTX) *AddressRepository {
	return &AddressRepository{pool: pool}
}

const addressColumns = `id, user_id, label, full_name, phone, address_line, city, state, postal_code, country, is_default, created_at, updated_at`

func scanAddress(row pgx.Row, ref string) (*domain.Address, error) {
	var a domain.Address
	err := row.Scan(
		&a.ID, &a.UserID, &a.Label, &a.FullName, &a.Phone, &a.AddressLine,
		&a.City, &a.State, &a.PostalCode, &a.Country, &a.IsDefault,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("address", ref)
		}
		return nil, fmt.Errorf("scan address: %w", err)
	}
	return &a, nil
}

// Create inserts a new address.
func (r *AddressRepository) Create(ctx context.Context, address *domain.Address) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO addresses (id, user_id, label, full_name, phone, address_line, city, state, postal_code, country, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		address.ID, address.UserID, address.Label, address.FullName, address.Phone,
		address.AddressLine, address.City, address.State, address.PostalCode,
		address.Country, address.IsDefault, address.CreatedAt, address.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert address: %w", err)
	}
	return nil
}

// GetByID returns the address with the given ID.
func (r *AddressRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Address, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM addresses WHERE id = $1`, addressColumns), id)
	return scanAddress(row, id.String())
}

// ListByUserID returns the user's addresses, default first.
func (r *AddressRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Address, error) {
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM addresses WHERE user_id = $1 ORDER BY is_default DESC, created_at`, addressColumns),
		userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	addresses := make([]domain.Address, 0)
	for rows.Next() {
		a, err := scanAddress(rows, userID.String())
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate address rows: %w", err)
	}
	return addresses, nil
}

// Update persists mutable address fields.
func (r *AddressRepository) Update(ctx context.Context, address *domain.Address) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE addresses
		SET label = $1, full_name = $2, phone = $3, address_line = $4, city = $5,
		    state = $6, postal_code = $7, country = $8, updated_at = NOW()
		WHERE id = $9`,
		address.Label, address.FullName, address.Phone, address.AddressLine,
		address.City, address.State, address.PostalCode, address.Country, address.ID,
	)
	if err != nil {
		return fmt.Errorf("update address: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("address", address.ID.String())
	}
	return nil
}

// Delete removes an address.
func (r *AddressRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM addresses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("address", id.String())
	}
	return nil
}

// SetDefault makes the address the user's single default. The partial unique
// index on (user_id) WHERE is_default requires clearing the old default first.
func (r *AddressRepository) SetDefault(ctx context.Context, userID, addressID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin set default transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`UPDATE addresses SET is_default = FALSE, updated_at = NOW() WHERE user_id = $1 AND is_default`,
		userID,
	); err != nil {
		return fmt.Errorf("clear previous default address: %w", err)
	}

	ct, err := tx.Exec(ctx,
		`UPDATE addresses SET is_default = TRUE, updated_at = NOW() WHERE id = $1 AND user_id = $2`,
		addressID, userID,
	)
	if err != nil {
		return fmt.Errorf("set default address: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("address", addressID.String())
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit set default transaction: %w", err)
	}
	return nil
}
