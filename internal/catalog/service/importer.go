package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/karyatek/storefront/internal/catalog/domain"
	apperrors "github.com/karyatek/storefront/pkg/errors"
	"github.com/karyatek/storefront/pkg/slug"
)

// csvHeader is the required column order of an import file. TemplateCSV
// serves it so admins never have to guess.
var csvHeader = []string{
	"name", "description", "category", "base_price_cents",
	"sku", "color", "size", "price_delta_cents", "stock", "image",
}

const maxImportRows = 10000

// AssetUploader pushes an image found inside an import archive to the CDN
// and returns the stored asset id.
type AssetUploader interface {
	UploadImage(ctx context.Context, filename string, data []byte) (uuid.UUID, error)
}

// RowFailure describes one rejected import row.
type RowFailure struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportReport summarizes a bulk import. Failed rows never abort the run.
type ImportReport struct {
	Created int          `json:"created"`
	Updated int          `json:"updated"`
	Failed  []RowFailure `json:"failed"`
}

// Importer ingests product CSV files, optionally packed in a ZIP together
// with the image files the CSV references.
type Importer struct {
	catalog  *CatalogService
	uploader AssetUploader
	logger   *slog.Logger
}

// NewImporter creates a bulk product importer. uploader may be nil, in which
// case image columns are reported as row failures.
func NewImporter(catalog *CatalogService, uploader AssetUploader, logger *slog.Logger) *Importer {
	return &Importer{catalog: catalog, uploader: uploader, logger: logger}
}

// TemplateCSV returns the import template with one example row.
func (i *Importer) TemplateCSV() []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(csvHeader)
	_ = w.Write([]string{
		"Wool Sweater", "Soft merino wool", "Knitwear", "4999",
		"SWTR-M-GRY", "Grey", "M", "0", "25", "sweater-grey.jpg",
	})
	w.Flush()
	return buf.Bytes()
}

// ImportCSV ingests a bare CSV stream. Rows referencing image files fail
// individually since a bare CSV carries no image data.
func (i *Importer) ImportCSV(ctx context.Context, r io.Reader) (*ImportReport, error) {
	return i.importRows(ctx, r, nil)
}

// ImportZIP ingests an archive holding exactly one CSV plus the image files
// its rows reference by name.
func (i *Importer) ImportZIP(ctx context.Context, r io.ReaderAt, size int64) (*ImportReport, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, apperrors.InvalidInput("upload is not a valid zip archive")
	}

	var csvFile *zip.File
	images := make(map[string][]byte)

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := path.Base(f.Name)
		switch strings.ToLower(path.Ext(name)) {
		case ".csv":
			if csvFile != nil {
				return nil, apperrors.InvalidInput("archive must contain exactly one csv file")
			}
			csvFile = f
		case ".jpg", ".jpeg", ".png", ".webp", ".gif":
			data, err := readZipFile(f)
			if err != nil {
				return nil, fmt.Errorf("read archive entry %s: %w", f.Name, err)
			}
			images[name] = data
		}
	}

	if csvFile == nil {
		return nil, apperrors.InvalidInput("archive must contain a csv file")
	}

	rc, err := csvFile.Open()
	if err != nil {
		return nil, fmt.Errorf("open archive csv: %w", err)
	}
	defer rc.Close()

	return i.importRows(ctx, rc, images)
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

type importRow struct {
	name            string
	description     string
	category        string
	basePriceCents  int64
	sku             string
	color           string
	size            string
	priceDeltaCents int64
	stock           int
	image           string
}

func (i *Importer) importRows(ctx context.Context, r io.Reader, images map[string][]byte) (*ImportReport, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, apperrors.InvalidInput("csv is empty or unreadable")
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	report := &ImportReport{Failed: []RowFailure{}}

	// Caches for the duration of one import run.
	categories := make(map[string]uuid.UUID)
	products := make(map[string]*domain.Product)

	rowNum := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		rowNum++
		if rowNum > maxImportRows+1 {
			return nil, apperrors.InvalidInput(fmt.Sprintf("import exceeds %d rows", maxImportRows))
		}
		if err != nil {
			report.Failed = append(report.Failed, RowFailure{Row: rowNum, Message: "malformed csv row"})
			continue
		}

		row, err := parseRow(record)
		if err != nil {
			report.Failed = append(report.Failed, RowFailure{Row: rowNum, Message: err.Error()})
			continue
		}

		created, err := i.applyRow(ctx, row, categories, products, images)
		if err != nil {
			report.Failed = append(report.Failed, RowFailure{Row: rowNum, Message: err.Error()})
			continue
		}
		if created {
			report.Created++
		} else {
			report.Updated++
		}
	}

	i.logger.InfoContext(ctx, "bulk import finished",
		slog.Int("created", report.Created),
		slog.Int("updated", report.Updated),
		slog.Int("failed", len(report.Failed)),
	)

	return report, nil
}

func checkHeader(header []string) error {
	if len(header) != len(csvHeader) {
		return apperrors.InvalidInput(fmt.Sprintf("csv header must have %d columns", len(csvHeader)))
	}
	for idx, want := range csvHeader {
		if strings.ToLower(strings.TrimSpace(header[idx])) != want {
			return apperrors.InvalidInput(fmt.Sprintf("csv column %d must be %q", idx+1, want))
		}
	}
	return nil
}

func parseRow(record []string) (*importRow, error) {
	if len(record) != len(csvHeader) {
		return nil, fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(record))
	}
	for idx := range record {
		record[idx] = strings.TrimSpace(record[idx])
	}

	row := &importRow{
		name:        record[0],
		description: record[1],
		category:    record[2],
		sku:         record[4],
		color:       record[5],
		size:        record[6],
		image:       record[9],
	}

	if row.name == "" {
		return nil, errors.New("name is required")
	}
	if row.sku == "" {
		return nil, errors.New("sku is required")
	}

	basePrice, err := strconv.ParseInt(record[3], 10, 64)
	if err != nil || basePrice < 0 {
		return nil, errors.New("base_price_cents must be a non-negative integer")
	}
	row.basePriceCents = basePrice

	delta := int64(0)
	if record[7] != "" {
		delta, err = strconv.ParseInt(record[7], 10, 64)
		if err != nil {
			return nil, errors.New("price_delta_cents must be an integer")
		}
	}
	row.priceDeltaCents = delta

	stock, err := strconv.Atoi(record[8])
	if err != nil || stock < 0 {
		return nil, errors.New("stock must be a non-negative integer")
	}
	row.stock = stock

	return row, nil
}

// applyRow upserts the product (by slug), its variant (by sku), and the
// optional image. Returns whether the variant row counted as created.
func (i *Importer) applyRow(
	ctx context.Context,
	row *importRow,
	categories map[string]uuid.UUID,
	products map[string]*domain.Product,
	images map[string][]byte,
) (bool, error) {
	categoryID, err := i.resolveCategory(ctx, row.category, categories)
	if err != nil {
		return false, err
	}

	product, err := i.resolveProduct(ctx, row, categoryID, products)
	if err != nil {
		return false, err
	}

	created, err := i.upsertVariant(ctx, product, row)
	if err != nil {
		return false, err
	}

	if row.image != "" {
		if err := i.attachRowImage(ctx, product, row.image, images); err != nil {
			return false, err
		}
	}

	return created, nil
}

func (i *Importer) resolveCategory(ctx context.Context, name string, cache map[string]uuid.UUID) (*uuid.UUID, error) {
	if name == "" {
		return nil, nil
	}
	if id, ok := cache[name]; ok {
		return &id, nil
	}

	existing, err := i.catalog.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve category: %w", err)
	}
	for _, c := range existing {
		if strings.EqualFold(c.Name, name) {
			cache[name] = c.ID
			id := c.ID
			return &id, nil
		}
	}

	c, err := i.catalog.CreateCategory(ctx, name, "")
	if err != nil {
		return nil, fmt.Errorf("create category %q: %w", name, err)
	}
	cache[name] = c.ID
	id := c.ID
	return &id, nil
}

func (i *Importer) resolveProduct(ctx context.Context, row *importRow, categoryID *uuid.UUID, cache map[string]*domain.Product) (*domain.Product, error) {
	productSlug := slug.Generate(row.name)
	if p, ok := cache[productSlug]; ok {
		return p, nil
	}

	p, err := i.catalog.GetProductBySlug(ctx, productSlug)
	if err == nil {
		cache[productSlug] = p
		return p, nil
	}

	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("look up product %q: %w", row.name, err)
	}

	p, err = i.catalog.CreateProduct(ctx, &CreateProductInput{
		Name:           row.name,
		Description:    row.description,
		CategoryID:     categoryID,
		BasePriceCents: row.basePriceCents,
		Active:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("create product %q: %w", row.name, err)
	}
	cache[productSlug] = p
	return p, nil
}

func (i *Importer) upsertVariant(ctx context.Context, product *domain.Product, row *importRow) (bool, error) {
	for _, v := range product.Variants {
		if v.SKU == row.sku {
			_, err := i.catalog.UpdateVariant(ctx, v.ID, &UpdateVariantInput{
				Color:           &row.color,
				Size:            &row.size,
				PriceDeltaCents: &row.priceDeltaCents,
				Stock:           &row.stock,
			})
			if err != nil {
				return false, fmt.Errorf("update variant %s: %w", row.sku, err)
			}
			return false, nil
		}
	}

	v, err := i.catalog.AddVariant(ctx, product.ID, &AddVariantInput{
		SKU:             row.sku,
		Color:           row.color,
		Size:            row.size,
		PriceDeltaCents: row.priceDeltaCents,
		Stock:           row.stock,
	})
	if err != nil {
		return false, fmt.Errorf("create variant %s: %w", row.sku, err)
	}
	product.Variants = append(product.Variants, *v)
	return true, nil
}

func (i *Importer) attachRowImage(ctx context.Context, product *domain.Product, filename string, images map[string][]byte) error {
	for _, img := range product.Images {
		if img.AltText == filename {
			return nil
		}
	}

	data, ok := images[filename]
	if !ok {
		return fmt.Errorf("image %q not found in archive", filename)
	}
	if i.uploader == nil {
		return errors.New("image upload is not configured")
	}

	assetID, err := i.uploader.UploadImage(ctx, filename, data)
	if err != nil {
		return fmt.Errorf("upload image %q: %w", filename, err)
	}

	img, err := i.catalog.AttachImage(ctx, product.ID, nil, assetID, filename, len(product.Images))
	if err != nil {
		return fmt.Errorf("attach image %q: %w", filename, err)
	}
	product.Images = append(product.Images, *img)
	return nil
}
