package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karyatek/storefront/internal/catalog/domain"
	"github.com/karyatek/storefront/internal/catalog/repository"
	"github.com/karyatek/storefront/pkg/database"
	apperrors "github.com/karyatek/storefront/pkg/errors"
)

// --- Test Helpers ---

func newTestRepo(t *testing.T) (*ProductRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewProductRepository(mock), mock
}

func sampleProduct() *domain.Product {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Product{
		ID:             uuid.New(),
		Name:           "Wool Sweater",
		Slug:           "wool-sweater",
		Description:    "Soft merino wool",
		BasePriceCents: 4999,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func aggregateColumns() []string {
	return []string{
		"id", "category_id", "name", "slug", "description", "base_price_cents",
		"active", "created_at", "updated_at", "variants", "images",
	}
}

func aggregateRow(mock pgxmock.PgxPoolIface, p *domain.Product, variantsJSON, imagesJSON string) *pgxmock.Rows {
	return mock.NewRows(aggregateColumns()).AddRow(
		p.ID, p.CategoryID, p.Name, p.Slug, p.Description, p.BasePriceCents,
		p.Active, p.CreatedAt, p.UpdatedAt, []byte(variantsJSON), []byte(imagesJSON),
	)
}

// --- Create Tests ---

func TestProductRepository_Create_Success(t *testing.T) {
	repo, mock := newTestRepo(t)
	p := sampleProduct()

	mock.ExpectExec("INSERT INTO products").
		WithArgs(p.ID, p.CategoryID, p.Name, p.Slug, p.Description, p.BasePriceCents, p.Active, p.CreatedAt, p.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_Create_DuplicateSlug(t *testing.T) {
	repo, mock := newTestRepo(t)
	p := sampleProduct()

	mock.ExpectExec("INSERT INTO products").
		WithArgs(p.ID, p.CategoryID, p.Name, p.Slug, p.Description, p.BasePriceCents, p.Active, p.CreatedAt, p.UpdatedAt).
		WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "products_slug_key" (SQLSTATE 23505)`))

	err := repo.Create(context.Background(), p)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

// --- Get Tests ---

func TestProductRepository_GetByID_Success(t *testing.T) {
	repo, mock := newTestRepo(t)
	p := sampleProduct()

	variantID := uuid.New()
	variantsJSON := `[{"id":"` + variantID.String() + `","product_id":"` + p.ID.String() + `","sku":"SWTR-M-GRY","color":"Grey","size":"M","price_delta_cents":0,"stock":10}]`

	mock.ExpectQuery("SELECT (.+) FROM products p WHERE p.id =").
		WithArgs(p.ID).
		WillReturnRows(aggregateRow(mock, p, variantsJSON, `[]`))

	got, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Slug, got.Slug)
	require.Len(t, got.Variants, 1)
	assert.Equal(t, "SWTR-M-GRY", got.Variants[0].SKU)
	assert.Equal(t, 10, got.Variants[0].Stock)
	assert.Empty(t, got.Images)
}

func TestProductRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM products p WHERE p.id =").
		WithArgs(id).
		WillReturnRows(mock.NewRows(aggregateColumns()))

	_, err := repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProductRepository_GetBySlug_Success(t *testing.T) {
	repo, mock := newTestRepo(t)
	p := sampleProduct()

	mock.ExpectQuery("SELECT (.+) FROM products p WHERE p.slug =").
		WithArgs(p.Slug).
		WillReturnRows(aggregateRow(mock, p, `[]`, `[]`))

	got, err := repo.GetBySlug(context.Background(), p.Slug)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

// --- List Tests ---

func TestProductRepository_List_WithTotalCount(t *testing.T) {
	repo, mock := newTestRepo(t)
	p := sampleProduct()

	cols := append(aggregateColumns(), "total_count")
	rows := mock.NewRows(cols).AddRow(
		p.ID, p.CategoryID, p.Name, p.Slug, p.Description, p.BasePriceCents,
		p.Active, p.CreatedAt, p.UpdatedAt, []byte(`[]`), []byte(`[]`), 57,
	)

	mock.ExpectQuery("SELECT (.+) count\\(\\*\\) OVER\\(\\) AS total_count").
		WithArgs(20, 0).
		WillReturnRows(rows)

	products, total, err := repo.List(context.Background(), repository.ProductFilter{Page: 1, PerPage: 20})
	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, 57, total)
}

func TestProductRepository_List_ActiveOnlyWithSearch(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("WHERE \\(p.name ILIKE (.+) AND p.active").
		WithArgs("%sweater%", 20, 0).
		WillReturnRows(mock.NewRows(append(aggregateColumns(), "total_count")))

	products, total, err := repo.List(context.Background(), repository.ProductFilter{
		Search:     "sweater",
		ActiveOnly: true,
		Page:       1,
		PerPage:    20,
	})
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.Zero(t, total)
}

// --- Update / Delete Tests ---

func TestProductRepository_Update_Success(t *testing.T) {
	repo, mock := newTestRepo(t)
	p := sampleProduct()

	mock.ExpectExec("UPDATE products").
		WithArgs(p.CategoryID, p.Name, p.Slug, p.Description, p.BasePriceCents, p.Active, pgxmock.AnyArg(), p.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.Update(context.Background(), p))
}

func TestProductRepository_Update_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)
	p := sampleProduct()

	mock.ExpectExec("UPDATE products").
		WithArgs(p.CategoryID, p.Name, p.Slug, p.Description, p.BasePriceCents, p.Active, pgxmock.AnyArg(), p.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), p)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProductRepository_Delete(t *testing.T) {
	repo, mock := newTestRepo(t)
	id := uuid.New()

	mock.ExpectExec("DELETE FROM products").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, repo.Delete(context.Background(), id))

	mock.ExpectExec("DELETE FROM products").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), id), apperrors.ErrNotFound)
}
