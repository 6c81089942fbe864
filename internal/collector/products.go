package collector

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/expansion-evaluator/internal/evidence"
	"github.com/spigell/expansion-evaluator/internal/matching"
)

const (
	SourceJSONLD      = "json-ld"
	SourceShopify     = "shopify-products-json"
	SourceWooCommerce = "woocommerce-store-api"
	SourceAI          = "ai-extraction"
	SourceKnowledge   = "knowledge-base"

	shopifyProductsPath     = "/products.json"
	wooCommerceProductsPath = "/wp-json/wc/store/v1/products"
	collectionsPath         = "/collections/all"
	cartPath                = "/cart"
)

type ldProduct struct {
	Name   string `mapstructure:"name"`
	URL    string `mapstructure:"url"`
	Offers any    `mapstructure:"offers"`
}

type ldOffer struct {
	Price         string `mapstructure:"price"`
	LowPrice      string `mapstructure:"lowPrice"`
	PriceCurrency string `mapstructure:"priceCurrency"`
}

type shopifyProduct struct {
	Title    string `mapstructure:"title"`
	Handle   string `mapstructure:"handle"`
	Variants []struct {
		Price string `mapstructure:"price"`
	} `mapstructure:"variants"`
}

type wooProduct struct {
	Name      string `mapstructure:"name"`
	Permalink string `mapstructure:"permalink"`
	Prices    struct {
		Price             string `mapstructure:"price"`
		CurrencyCode      string `mapstructure:"currency_code"`
		CurrencyMinorUnit int    `mapstructure:"currency_minor_unit"`
	} `mapstructure:"prices"`
}

// decodeLoose decodes generic JSON values into typed structs, accepting
// numbers where strings are expected.
func decodeLoose(input, output any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           output,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// jsonLDProducts extracts Product entries from JSON-LD blocks, following
// ItemList elements and @graph containers. It also returns the first
// priceCurrency seen.
func jsonLDProducts(blocks []string, base string) ([]evidence.Product, string) {
	var (
		products []evidence.Product
		currency string
	)

	var visit func(node any)
	visit = func(node any) {
		switch v := node.(type) {
		case []any:
			for _, item := range v {
				visit(item)
			}
		case map[string]any:
			if graph, ok := v["@graph"]; ok {
				visit(graph)
			}
			switch {
			case hasType(v, "Product"):
				product, cur, ok := decodeLDProduct(v, base)
				if ok {
					products = append(products, product)
				}
				if currency == "" {
					currency = cur
				}
			case hasType(v, "ItemList"):
				visit(v["itemListElement"])
			case hasType(v, "ListItem"):
				if item, ok := v["item"]; ok {
					visit(item)
				}
			}
		}
	}

	for _, block := range blocks {
		var data any
		if err := json.Unmarshal([]byte(block), &data); err != nil {
			continue
		}
		visit(data)
	}

	return products, currency
}

func hasType(node map[string]any, want string) bool {
	switch t := node["@type"].(type) {
	case string:
		return strings.EqualFold(t, want)
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.EqualFold(s, want) {
				return true
			}
		}
	}
	return false
}

func decodeLDProduct(node map[string]any, base string) (evidence.Product, string, bool) {
	var ld ldProduct
	if err := decodeLoose(node, &ld); err != nil {
		return evidence.Product{}, "", false
	}

	name := strings.TrimSpace(ld.Name)
	if name == "" {
		return evidence.Product{}, "", false
	}

	product := evidence.Product{Name: name}
	if ld.URL != "" {
		product.URL = evidence.Resolve(base, ld.URL)
	}

	offer := firstOffer(ld.Offers)
	if offer == nil {
		return product, "", true
	}

	amount := offer.Price
	if amount == "" {
		amount = offer.LowPrice
	}
	cur := normalizeCurrency(offer.PriceCurrency)
	if amount = evidence.ParseAmount(amount); amount != "" {
		product.Price = &evidence.Price{Amount: amount, Currency: cur}
	}

	return product, cur, true
}

func firstOffer(raw any) *ldOffer {
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if offer := firstOffer(item); offer != nil {
				return offer
			}
		}
	case map[string]any:
		var offer ldOffer
		if err := decodeLoose(v, &offer); err != nil {
			return nil
		}
		if offer.Price == "" && offer.LowPrice == "" && offer.PriceCurrency == "" {
			if nested, ok := v["offers"]; ok {
				return firstOffer(nested)
			}
		}
		return &offer
	}
	return nil
}

// shopifyProducts reads a Shopify /products.json document.
func shopifyProducts(body []byte, base string) ([]evidence.Product, error) {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, err
	}

	var items []shopifyProduct
	if err := decodeLoose(data["products"], &items); err != nil {
		return nil, err
	}

	products := make([]evidence.Product, 0, len(items))
	for _, item := range items {
		name := strings.TrimSpace(item.Title)
		if name == "" {
			continue
		}
		product := evidence.Product{Name: name}
		if item.Handle != "" {
			product.URL = evidence.Resolve(base, "/products/"+item.Handle)
		}
		if len(item.Variants) > 0 {
			if amount := evidence.ParseAmount(item.Variants[0].Price); amount != "" {
				product.Price = &evidence.Price{Amount: amount}
			}
		}
		products = append(products, product)
	}

	return products, nil
}

// wooCommerceProducts reads a WooCommerce Store API product list. Prices are
// published in minor units.
func wooCommerceProducts(body []byte) ([]evidence.Product, error) {
	var data []any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, err
	}

	var items []wooProduct
	if err := decodeLoose(data, &items); err != nil {
		return nil, err
	}

	products := make([]evidence.Product, 0, len(items))
	for _, item := range items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		product := evidence.Product{Name: name, URL: item.Permalink}
		if amount := minorToDecimal(item.Prices.Price, item.Prices.CurrencyMinorUnit); amount != "" {
			product.Price = &evidence.Price{Amount: amount, Currency: normalizeCurrency(item.Prices.CurrencyCode)}
		}
		products = append(products, product)
	}

	return products, nil
}

// minorToDecimal converts "1999" with 2 minor digits into "19.99".
func minorToDecimal(minor string, digits int) string {
	minor = strings.TrimSpace(minor)
	if minor == "" {
		return ""
	}

	value, ok := new(big.Int).SetString(minor, 10)
	if !ok {
		return ""
	}
	if digits <= 0 {
		return value.String()
	}

	return new(big.Rat).SetFrac(value, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)).FloatString(digits)
}

// dedupeProducts drops repeated products by normalized name and caps the list.
func dedupeProducts(products []evidence.Product, limit int) []evidence.Product {
	seen := make(map[string]struct{}, len(products))
	result := make([]evidence.Product, 0, len(products))

	for _, p := range products {
		key := matching.Normalize(p.Name)
		if key == "" {
			key = strings.ToLower(strings.TrimSpace(p.Name))
		}
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, p)
		if limit > 0 && len(result) == limit {
			break
		}
	}

	return result
}
