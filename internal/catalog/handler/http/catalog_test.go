package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/karyatek/storefront/internal/catalog/domain"
	"github.com/karyatek/storefront/internal/catalog/repository"
	"github.com/karyatek/storefront/internal/catalog/service"
	apperrors "github.com/karyatek/storefront/pkg/errors"
	"github.com/karyatek/storefront/pkg/httputil"
)

// =============================================================================
// Mock repositories
// =============================================================================

type mockProductRepo struct {
	mock.Mock
}

func (m *mockProductRepo) Create(ctx context.Context, p *domain.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepo) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepo) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepo) Update(ctx context.Context, p *domain.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockProductRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockCategoryRepo struct {
	mock.Mock
}

func (m *mockCategoryRepo) Create(ctx context.Context, c *domain.Category) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *mockCategoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCategoryRepo) List(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *mockCategoryRepo) Update(ctx context.Context, c *domain.Category) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *mockCategoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockVariantRepo struct {
	mock.Mock
}

func (m *mockVariantRepo) Create(ctx context.Context, v *domain.Variant) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *mockVariantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Variant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Variant), args.Error(1)
}

func (m *mockVariantRepo) GetBySKU(ctx context.Context, sku string) (*domain.Variant, error) {
	args := m.Called(ctx, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Variant), args.Error(1)
}

func (m *mockVariantRepo) Update(ctx context.Context, v *domain.Variant) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *mockVariantRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockImageRepo struct {
	mock.Mock
}

func (m *mockImageRepo) Attach(ctx context.Context, img *domain.Image) error {
	args := m.Called(ctx, img)
	return args.Error(0)
}

func (m *mockImageRepo) ListByProduct(ctx context.Context, productID uuid.UUID) ([]domain.Image, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).([]domain.Image), args.Error(1)
}

func (m *mockImageRepo) Detach(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockImageRepo) ReferencedAssetIDs(ctx context.Context) (map[uuid.UUID]struct{}, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[uuid.UUID]struct{}), args.Error(1)
}

// =============================================================================
// Test helpers
// =============================================================================

type catalogMocks struct {
	products   *mockProductRepo
	categories *mockCategoryRepo
	variants   *mockVariantRepo
	images     *mockImageRepo
}

func catalogTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func catalogTestRouter() (*chi.Mux, *catalogMocks) {
	mocks := &catalogMocks{
		products:   new(mockProductRepo),
		categories: new(mockCategoryRepo),
		variants:   new(mockVariantRepo),
		images:     new(mockImageRepo),
	}

	logger := catalogTestLogger()
	svc := service.NewCatalogService(mocks.products, mocks.categories, mocks.variants, mocks.images, nil, nil, logger)
	importer := service.NewImporter(svc, nil, logger)

	passthrough := func(next http.Handler) http.Handler { return next }

	r := chi.NewRouter()
	RegisterRoutes(r, svc, importer, passthrough, logger)
	return r, mocks
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func sampleProduct() *domain.Product {
	now := time.Now().UTC()
	return &domain.Product{
		ID:             uuid.MustParse("550e8400-e29b-41d4-a716-446655440001"),
		Name:           "Wool Sweater",
		Slug:           "wool-sweater",
		Description:    "Soft merino wool",
		BasePriceCents: 4999,
		Active:         true,
		Variants:       []domain.Variant{},
		Images:         []domain.Image{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// =============================================================================
// GET /api/v1/products
// =============================================================================

func TestListProducts(t *testing.T) {
	router, mocks := catalogTestRouter()

	mocks.products.On("List", mock.Anything, mock.AnythingOfType("repository.ProductFilter")).
		Return([]domain.Product{*sampleProduct()}, 1, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?page=1&per_page=20", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp httputil.PaginatedResponse[domain.Product]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Data, 1)
	assert.Equal(t, 1, resp.TotalCount)
}

func TestListProducts_InvalidCategoryID(t *testing.T) {
	router, _ := catalogTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?category_id=not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_PARAMETER", resp.Error.Code)
}

// =============================================================================
// GET /api/v1/products/{idOrSlug}
// =============================================================================

func TestGetProduct_ByID(t *testing.T) {
	router, mocks := catalogTestRouter()
	p := sampleProduct()

	mocks.products.On("GetByID", mock.Anything, p.ID).Return(p, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/"+p.ID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	assert.NotNil(t, resp.Data)
}

func TestGetProduct_BySlug(t *testing.T) {
	router, mocks := catalogTestRouter()
	p := sampleProduct()

	mocks.products.On("GetBySlug", mock.Anything, "wool-sweater").Return(p, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/wool-sweater", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetProduct_NotFound(t *testing.T) {
	router, mocks := catalogTestRouter()

	mocks.products.On("GetBySlug", mock.Anything, "missing").
		Return(nil, apperrors.NotFound("product", "missing"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

// =============================================================================
// POST /api/v1/products
// =============================================================================

func TestCreateProduct_Success(t *testing.T) {
	router, mocks := catalogTestRouter()

	mocks.products.On("Create", mock.Anything, mock.AnythingOfType("*domain.Product")).Return(nil)

	body, _ := json.Marshal(CreateProductRequest{
		Name:           "Wool Sweater",
		BasePriceCents: 4999,
		Active:         true,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	mocks.products.AssertExpectations(t)
}

func TestCreateProduct_InvalidJSON(t *testing.T) {
	router, _ := catalogTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", bytes.NewReader([]byte(`{invalid`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
}

func TestCreateProduct_ValidationError(t *testing.T) {
	router, _ := catalogTestRouter()

	// Missing required name.
	body, _ := json.Marshal(CreateProductRequest{BasePriceCents: 4999})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

// =============================================================================
// PUT /api/v1/products/{id}
// =============================================================================

func TestUpdateProduct_Success(t *testing.T) {
	router, mocks := catalogTestRouter()
	p := sampleProduct()

	mocks.products.On("GetByID", mock.Anything, p.ID).Return(p, nil)
	mocks.products.On("Update", mock.Anything, mock.AnythingOfType("*domain.Product")).Return(nil)

	name := "Wool Sweater Deluxe"
	body, _ := json.Marshal(UpdateProductRequest{Name: &name})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/products/"+p.ID.String(), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	mocks.products.AssertExpectations(t)
}

func TestUpdateProduct_InvalidID(t *testing.T) {
	router, _ := catalogTestRouter()

	req := httptest.NewRequest(http.MethodPut, "/api/v1/products/not-a-uuid", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// Variants
// =============================================================================

func TestAddVariant_Success(t *testing.T) {
	router, mocks := catalogTestRouter()
	p := sampleProduct()

	mocks.products.On("GetByID", mock.Anything, p.ID).Return(p, nil)
	mocks.variants.On("Create", mock.Anything, mock.AnythingOfType("*domain.Variant")).Return(nil)

	body, _ := json.Marshal(VariantRequest{SKU: "SWTR-M-GRY", Color: "Grey", Size: "M", Stock: 10})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/"+p.ID.String()+"/variants", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	mocks.variants.AssertExpectations(t)
}

func TestAddVariant_NegativeStock(t *testing.T) {
	router, _ := catalogTestRouter()

	body, _ := json.Marshal(VariantRequest{SKU: "SWTR-M-GRY", Stock: -1})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/"+uuid.NewString()+"/variants", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

// =============================================================================
// Categories
// =============================================================================

func TestListCategories(t *testing.T) {
	router, mocks := catalogTestRouter()

	mocks.categories.On("List", mock.Anything).Return([]domain.Category{
		{ID: uuid.New(), Name: "Knitwear", Slug: "knitwear"},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
}

// =============================================================================
// Import
// =============================================================================

func TestImportTemplate(t *testing.T) {
	router, _ := catalogTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/import/template", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "name,description,category")
}

func TestImport_RejectsUnknownExtension(t *testing.T) {
	router, _ := catalogTestRouter()

	var buf bytes.Buffer
	mw := newMultipartFile(t, &buf, "products.txt", []byte("hello"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/import", &buf)
	req.Header.Set("Content-Type", mw)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImport_CSVUpload(t *testing.T) {
	router, mocks := catalogTestRouter()
	p := sampleProduct()

	mocks.products.On("GetBySlug", mock.Anything, "wool-sweater").Return(p, nil)
	mocks.products.On("GetByID", mock.Anything, p.ID).Return(p, nil)
	mocks.variants.On("Create", mock.Anything, mock.Anything).Return(nil)

	csvBody := "name,description,category,base_price_cents,sku,color,size,price_delta_cents,stock,image\n" +
		"Wool Sweater,,,4999,SWTR-M-GRY,Grey,M,0,10,\n"

	var buf bytes.Buffer
	mw := newMultipartFile(t, &buf, "products.csv", []byte(csvBody))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/import", &buf)
	req.Header.Set("Content-Type", mw)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	require.Nil(t, resp.Error)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var report service.ImportReport
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, 1, report.Created)
	assert.Empty(t, report.Failed)
}

// newMultipartFile writes a single-part multipart body with the given file
// and returns the Content-Type header value.
func newMultipartFile(t *testing.T, buf *bytes.Buffer, filename string, data []byte) string {
	t.Helper()

	mw := multipart.NewWriter(buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return mw.FormDataContentType()
}
