package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"storefront-core/internal/domain"
)

type stubProductRepo struct {
	items []domain.Product
	err   error
}

func (s *stubProductRepo) Upsert(_ context.Context, p domain.Product) (*domain.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.items = append(s.items, p)
	return &p, nil
}

func TestCSVImporter_Run(t *testing.T) {
	csvData := strings.Join(Header, ",") + `
,Predator Elite,Adidas,2499.99,12,AD-PRED-01,Firm ground boot,https://example.com/pred.jpg,Boots,"7, 8,9",Black
00000000-0000-0000-0000-000000000002,Home Jersey,Puma,899,0,,,https://example.com/jersey.jpg,Jerseys,,`

	repo := &stubProductRepo{}
	imp := NewCSVImporter(strings.NewReader(csvData), repo, nil)

	res, err := imp.Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if res.Created != 1 || res.Updated != 1 || res.Total() != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(repo.items) != 2 {
		t.Fatalf("expected 2 products saved, got %d", len(repo.items))
	}

	first := repo.items[0]
	if first.ID != "" || first.Name != "Predator Elite" || first.Brand != "Adidas" || first.SKU != "AD-PRED-01" || first.StockQuantity != 12 {
		t.Fatalf("unexpected product data: %+v", first)
	}
	if !first.Price.Equal(decimal.RequireFromString("2499.99")) {
		t.Fatalf("unexpected price %s", first.Price)
	}
	if len(first.Sizes) != 3 || first.Sizes[1] != "8" {
		t.Fatalf("expected trimmed sizes, got %v", first.Sizes)
	}
	if repo.items[1].ID != "00000000-0000-0000-0000-000000000002" || repo.items[1].InStock() {
		t.Fatalf("expected id to be preserved and product out of stock, got %+v", repo.items[1])
	}
}

func TestCSVImporter_RejectsInvalidRowsBeforeWriting(t *testing.T) {
	cases := map[string]string{
		"missing brand":  `,Boot,,100,1,,,https://example.com/a.jpg,,,`,
		"bad price":      `,Boot,Nike,abc,1,,,https://example.com/a.jpg,,,`,
		"negative stock": `,Boot,Nike,100,-1,,,https://example.com/a.jpg,,,`,
		"bad id":         `not-a-uuid,Boot,Nike,100,1,,,https://example.com/a.jpg,,,`,
		"short row":      `,Boot,Nike`,
	}
	for name, row := range cases {
		t.Run(name, func(t *testing.T) {
			csvData := strings.Join(Header, ",") + "\n,Valid,Nike,10,1,,,https://example.com/v.jpg,,,\n" + row
			repo := &stubProductRepo{}
			_, err := NewCSVImporter(strings.NewReader(csvData), repo, nil).Run(context.Background())
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
			if !strings.Contains(err.Error(), "row 3") {
				t.Fatalf("expected row number in %q", err)
			}
			if len(repo.items) != 0 {
				t.Fatalf("expected nothing written, got %d", len(repo.items))
			}
		})
	}
}

func TestCSVImporter_EmptyAndHeaderOnly(t *testing.T) {
	for _, data := range []string{"", strings.Join(Header, ",")} {
		_, err := NewCSVImporter(strings.NewReader(data), &stubProductRepo{}, nil).Run(context.Background())
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("expected invalid input for %q, got %v", data, err)
		}
	}
}

func TestCSVImporter_MissingColumn(t *testing.T) {
	csvData := "ProductName,Price\nBoot,10"
	_, err := NewCSVImporter(strings.NewReader(csvData), &stubProductRepo{}, nil).Run(context.Background())
	if !errors.Is(err, domain.ErrInvalidInput) || !strings.Contains(err.Error(), "Brand") {
		t.Fatalf("expected missing Brand column, got %v", err)
	}
}

func TestCSVImporter_StorageError(t *testing.T) {
	csvData := strings.Join(Header, ",") + "\n,Boot,Nike,10,1,,,https://example.com/v.jpg,,,"
	repo := &stubProductRepo{err: errors.New("db down")}
	_, err := NewCSVImporter(strings.NewReader(csvData), repo, nil).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "db down") {
		t.Fatalf("expected storage error, got %v", err)
	}
}
