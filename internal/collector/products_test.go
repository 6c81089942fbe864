package collector

import (
	"testing"

	"github.com/spigell/expansion-evaluator/internal/evidence"
)

func TestJSONLDProducts(t *testing.T) {
	t.Parallel()

	blocks := []string{
		`{"@context": "https://schema.org", "@graph": [
			{"@type": "WebSite", "name": "Acme"},
			{"@type": ["Product", "Thing"], "name": "Widget", "offers": {"@type": "AggregateOffer", "lowPrice": 9.5, "priceCurrency": "usd"}}
		]}`,
		`[{"@type": "Product", "name": "Gadget", "url": "https://acme.com/gadget", "offers": {"@type": "Offer", "price": "1.299,00", "priceCurrency": "EUR"}}]`,
		`{"@type": "Product", "name": "  "}`,
		`not json`,
		`{"@type": "Product", "name": "Gizmo"}`,
	}

	products, currency := jsonLDProducts(blocks, "https://acme.com")
	if currency != "USD" {
		t.Fatalf("expected first currency USD, got %q", currency)
	}
	if len(products) != 3 {
		t.Fatalf("expected 3 products, got %+v", products)
	}

	if p := products[0].Price; p == nil || p.Amount != "9.5" || p.Currency != "USD" {
		t.Fatalf("unexpected widget price: %+v", p)
	}
	if p := products[1].Price; p == nil || p.Amount != "1299.00" || p.Currency != "EUR" {
		t.Fatalf("unexpected gadget price: %+v", p)
	}
	if products[2].Name != "Gizmo" || products[2].Price != nil {
		t.Fatalf("unexpected gizmo: %+v", products[2])
	}
}

func TestWooCommerceProducts(t *testing.T) {
	t.Parallel()

	products, err := wooCommerceProducts([]byte(`[
		{"name": "Widget", "permalink": "https://acme.com/product/widget", "prices": {"price": "1999", "currency_code": "EUR", "currency_minor_unit": 2}},
		{"name": "Gadget", "permalink": "https://acme.com/product/gadget", "prices": {"price": "500", "currency_code": "JPY", "currency_minor_unit": 0}},
		{"name": "", "prices": {}}
	]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %+v", products)
	}
	if p := products[0].Price; p == nil || p.Amount != "19.99" || p.Currency != "EUR" {
		t.Fatalf("unexpected widget price: %+v", p)
	}
	if p := products[1].Price; p == nil || p.Amount != "500" || p.Currency != "JPY" {
		t.Fatalf("unexpected gadget price: %+v", p)
	}
}

func TestShopifyProductsRejectsInvalidJSON(t *testing.T) {
	t.Parallel()

	if _, err := shopifyProducts([]byte("<html>"), "https://acme.com"); err == nil {
		t.Fatal("expected error for non-JSON body")
	}
}

func TestMinorToDecimal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		minor  string
		digits int
		want   string
	}{
		{"1999", 2, "19.99"},
		{"5", 2, "0.05"},
		{"500", 0, "500"},
		{"12345", 3, "12.345"},
		{"", 2, ""},
		{"abc", 2, ""},
	}

	for _, tt := range tests {
		if got := minorToDecimal(tt.minor, tt.digits); got != tt.want {
			t.Errorf("minorToDecimal(%q, %d) = %q, want %q", tt.minor, tt.digits, got, tt.want)
		}
	}
}

func TestDedupeProducts(t *testing.T) {
	t.Parallel()

	products := []evidence.Product{
		{Name: "Widget"},
		{Name: "The Widget"},
		{Name: "Gadget - Wholesale"},
		{Name: "Gadget"},
		{Name: ""},
		{Name: "Gizmo"},
	}

	got := dedupeProducts(products, 0)
	if len(got) != 3 || got[0].Name != "Widget" || got[1].Name != "Gadget - Wholesale" || got[2].Name != "Gizmo" {
		t.Fatalf("unexpected deduplicated products: %+v", got)
	}

	if capped := dedupeProducts(products, 2); len(capped) != 2 {
		t.Fatalf("expected cap of 2, got %+v", capped)
	}
}
