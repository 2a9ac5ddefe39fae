package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/karyatek/storefront/internal/catalog/domain"
	apperrors "github.com/karyatek/storefront/pkg/errors"
)

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) UploadImage(ctx context.Context, filename string, data []byte) (uuid.UUID, error) {
	args := m.Called(ctx, filename, data)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func newTestImporter(t *testing.T) (*Importer, *testRepos, *mockUploader) {
	t.Helper()
	svc, repos := newTestService(t)
	uploader := new(mockUploader)
	return NewImporter(svc, uploader, newTestLogger()), repos, uploader
}

const importHeader = "name,description,category,base_price_cents,sku,color,size,price_delta_cents,stock,image\n"

func TestImportCSV_CreatesVariantOnExistingProduct(t *testing.T) {
	imp, repos, _ := newTestImporter(t)
	ctx := context.Background()
	p := testProduct()

	repos.products.On("GetBySlug", ctx, "linen-shirt").Return(p, nil)
	repos.products.On("GetByID", ctx, p.ID).Return(p, nil)
	repos.variants.On("Create", ctx, mock.AnythingOfType("*domain.Variant")).Return(nil)

	input := importHeader + "Linen Shirt,Breathable,,3999,SHRT-M-WHT,White,M,0,12,\n"

	report, err := imp.ImportCSV(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 0, report.Updated)
	assert.Empty(t, report.Failed)
	repos.variants.AssertExpectations(t)
}

func TestImportCSV_UpdatesExistingVariant(t *testing.T) {
	imp, repos, _ := newTestImporter(t)
	ctx := context.Background()

	p := testProduct()
	v := domain.Variant{ID: uuid.New(), ProductID: p.ID, SKU: "SHRT-M-WHT", Stock: 2}
	p.Variants = []domain.Variant{v}

	repos.products.On("GetBySlug", ctx, "linen-shirt").Return(p, nil)
	repos.variants.On("GetByID", ctx, v.ID).Return(&v, nil)
	repos.variants.On("Update", ctx, mock.AnythingOfType("*domain.Variant")).Return(nil)

	input := importHeader + "Linen Shirt,,,3999,SHRT-M-WHT,White,M,0,30,\n"

	report, err := imp.ImportCSV(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 1, report.Updated)
	assert.Empty(t, report.Failed)
}

func TestImportCSV_ReportsBadRowsAndContinues(t *testing.T) {
	imp, repos, _ := newTestImporter(t)
	ctx := context.Background()
	p := testProduct()

	repos.products.On("GetBySlug", ctx, "linen-shirt").Return(p, nil)
	repos.products.On("GetByID", ctx, p.ID).Return(p, nil)
	repos.variants.On("Create", ctx, mock.Anything).Return(nil)

	input := importHeader +
		"Linen Shirt,,,3999,,White,M,0,12,\n" + // missing sku
		",,,3999,SHRT-M-BLK,Black,M,0,12,\n" + // missing name
		"Linen Shirt,,,3999,SHRT-M-WHT,White,M,0,-5,\n" + // negative stock
		"Linen Shirt,,,3999,SHRT-M-WHT,White,M,0,12,\n" // valid

	report, err := imp.ImportCSV(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	require.Len(t, report.Failed, 3)
	assert.Equal(t, 2, report.Failed[0].Row)
	assert.Equal(t, "sku is required", report.Failed[0].Message)
	assert.Equal(t, 3, report.Failed[1].Row)
	assert.Equal(t, 4, report.Failed[2].Row)
}

func TestImportCSV_RejectsWrongHeader(t *testing.T) {
	imp, _, _ := newTestImporter(t)

	_, err := imp.ImportCSV(context.Background(), strings.NewReader("foo,bar\n"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestImportCSV_ImageWithoutArchiveFails(t *testing.T) {
	imp, repos, _ := newTestImporter(t)
	ctx := context.Background()
	p := testProduct()

	repos.products.On("GetBySlug", ctx, "linen-shirt").Return(p, nil)
	repos.products.On("GetByID", ctx, p.ID).Return(p, nil)
	repos.variants.On("Create", ctx, mock.Anything).Return(nil)

	input := importHeader + "Linen Shirt,,,3999,SHRT-M-WHT,White,M,0,12,front.jpg\n"

	report, err := imp.ImportCSV(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	require.Len(t, report.Failed, 1)
	assert.Contains(t, report.Failed[0].Message, "front.jpg")
}

func TestImportZIP(t *testing.T) {
	imp, repos, uploader := newTestImporter(t)
	ctx := context.Background()
	p := testProduct()
	assetID := uuid.New()

	repos.products.On("GetBySlug", ctx, "linen-shirt").Return(p, nil)
	repos.products.On("GetByID", ctx, p.ID).Return(p, nil)
	repos.variants.On("Create", ctx, mock.Anything).Return(nil)
	repos.images.On("Attach", ctx, mock.AnythingOfType("*domain.Image")).Return(nil)
	uploader.On("UploadImage", ctx, "front.jpg", []byte("jpegdata")).Return(assetID, nil)

	archive := buildZip(t, map[string][]byte{
		"products.csv": []byte(importHeader + "Linen Shirt,,,3999,SHRT-M-WHT,White,M,0,12,front.jpg\n"),
		"front.jpg":    []byte("jpegdata"),
	})

	report, err := imp.ImportZIP(ctx, bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Empty(t, report.Failed)
	uploader.AssertExpectations(t)
	repos.images.AssertExpectations(t)
}

func TestImportZIP_RequiresCSV(t *testing.T) {
	imp, _, _ := newTestImporter(t)

	archive := buildZip(t, map[string][]byte{"front.jpg": []byte("jpegdata")})

	_, err := imp.ImportZIP(context.Background(), bytes.NewReader(archive), int64(len(archive)))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestTemplateCSV(t *testing.T) {
	imp, _, _ := newTestImporter(t)

	records, err := csv.NewReader(bytes.NewReader(imp.TemplateCSV())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, csvHeader, records[0])
}

func buildZip(t *testing.T, files map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
