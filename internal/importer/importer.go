package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront-core/internal/domain"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// Header is the column layout of the admin product sheet. Colors is accepted and ignored.
var Header = []string{"ProductID", "ProductName", "Brand", "Price", "Stock", "SKU", "Description", "ImageURL", "Category", "Sizes", "Colors"}

var required = []string{"ProductName", "Brand", "Price", "ImageURL"}

// CSVImporter reads the product sheet and creates or updates catalog rows. Rows with a ProductID update
// that product; rows without one create a new product.
type CSVImporter struct {
	reader      *csv.Reader
	productRepo ProductWriter
	logger      *slog.Logger
}

func NewCSVImporter(r io.Reader, repo ProductWriter, logger *slog.Logger) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.TrimLeadingSpace = true
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CSVImporter{
		reader:      csvr,
		productRepo: repo,
		logger:      logger,
	}
}

// Result summarizes an import run.
type Result struct {
	Created int
	Updated int
}

func (r Result) Total() int { return r.Created + r.Updated }

// Run validates every row before writing any, so a malformed sheet imports nothing.
func (i *CSVImporter) Run(ctx context.Context) (Result, error) {
	headers, err := i.reader.Read()
	if errors.Is(err, io.EOF) {
		return Result{}, fmt.Errorf("%w: file must contain a header and at least one data row", domain.ErrInvalidInput)
	}
	if err != nil {
		return Result{}, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return Result{}, fmt.Errorf("%w: missing column %s", domain.ErrInvalidInput, col)
		}
	}

	var products []domain.Product
	for rowNum := 2; ; rowNum++ {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("%w: row %d: %w", domain.ErrInvalidInput, rowNum, err)
		}
		p, err := parseRow(record, index)
		if err != nil {
			return Result{}, fmt.Errorf("%w: row %d: %w", domain.ErrInvalidInput, rowNum, err)
		}
		products = append(products, p)
	}
	if len(products) == 0 {
		return Result{}, fmt.Errorf("%w: file must contain a header and at least one data row", domain.ErrInvalidInput)
	}

	var res Result
	for _, p := range products {
		if _, err := i.productRepo.Upsert(ctx, p); err != nil {
			return res, fmt.Errorf("upsert product %q: %w", p.Name, err)
		}
		if p.ID == "" {
			res.Created++
		} else {
			res.Updated++
		}
	}
	i.logger.InfoContext(ctx, "products imported", slog.Int("created", res.Created), slog.Int("updated", res.Updated))
	return res, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) (domain.Product, error) {
	for _, col := range required {
		if pick(record, index, col) == "" {
			return domain.Product{}, fmt.Errorf("missing required fields (%s)", strings.Join(required, ", "))
		}
	}

	id := pick(record, index, "ProductID")
	if id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return domain.Product{}, fmt.Errorf("invalid ProductID %q", id)
		}
		id = parsed.String()
	}

	price, err := decimal.NewFromString(pick(record, index, "Price"))
	if err != nil || price.IsNegative() {
		return domain.Product{}, fmt.Errorf("invalid Price %q", pick(record, index, "Price"))
	}

	stock := 0
	if s := pick(record, index, "Stock"); s != "" {
		stock, err = strconv.Atoi(s)
		if err != nil || stock < 0 {
			return domain.Product{}, fmt.Errorf("invalid Stock %q", s)
		}
	}

	return domain.Product{
		ID:            id,
		SKU:           pick(record, index, "SKU"),
		Name:          pick(record, index, "ProductName"),
		Brand:         pick(record, index, "Brand"),
		Description:   pick(record, index, "Description"),
		Category:      pick(record, index, "Category"),
		ImageURL:      pick(record, index, "ImageURL"),
		Sizes:         splitList(pick(record, index, "Sizes")),
		Price:         price.Round(2),
		StockQuantity: stock,
	}, nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
