package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/expansion-evaluator/internal/evidence"
	"github.com/spigell/expansion-evaluator/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200
	defaultMaxProducts  = 25
	maxPageTextRunes    = 12000
)

// Extractor asks Gemini to list the products found in a page's visible text.
type Extractor struct {
	generator   contentGenerator
	maxProducts int
	maxLogLen   int
	logger      *zap.Logger
}

func NewExtractor(generator contentGenerator, maxProducts, maxLogLength int, logger *zap.Logger) *Extractor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if maxProducts <= 0 {
		maxProducts = defaultMaxProducts
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Extractor{
		generator:   generator,
		maxProducts: maxProducts,
		maxLogLen:   maxLogLength,
		logger:      logger,
	}
}

func (e *Extractor) ExtractProducts(ctx context.Context, storeURL, pageText string) ([]evidence.Product, error) {
	pageText = strings.TrimSpace(pageText)
	if pageText == "" {
		return nil, nil
	}

	system := buildPrompt(e.maxProducts)
	message := buildMessage(storeURL, pageText)

	e.logger.Debug("gemini product extraction request",
		zap.String("store_url", storeURL),
		zap.Int("message_length", utf8.RuneCountInString(message)),
		zap.String("message_preview", utils.TruncateForLog(message, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, system, message)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("gemini product extraction response",
		zap.String("store_url", storeURL),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	products, err := parseResponse(raw, storeURL)
	if err != nil {
		return nil, err
	}

	if len(products) > e.maxProducts {
		products = products[:e.maxProducts]
	}

	return products, nil
}

func buildPrompt(maxProducts int) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = `List the products on the page, at most {{MAX_PRODUCTS}}. Respond with {"products": [{"name", "price", "currency", "url"}]}.`
	}
	return strings.ReplaceAll(template, "{{MAX_PRODUCTS}}", strconv.Itoa(maxProducts))
}

func buildMessage(storeURL, pageText string) string {
	runes := []rune(pageText)
	if len(runes) > maxPageTextRunes {
		pageText = string(runes[:maxPageTextRunes])
	}

	return "Store URL: " + storeURL + "\n\nPage text:\n" + pageText
}

func parseResponse(raw, storeURL string) ([]evidence.Product, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		var list []any
		if listErr := json.Unmarshal([]byte(cleaned), &list); listErr != nil {
			return nil, fmt.Errorf("parse gemini response: %w", err)
		}
		data = map[string]any{"products": list}
	}

	items, _ := data["products"].([]any)
	products := make([]evidence.Product, 0, len(items))
	seen := make(map[string]struct{}, len(items))

	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}

		name := coerceString(fields["name"])
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		product := evidence.Product{
			Name: name,
			URL:  resolveURL(storeURL, coerceString(fields["url"])),
		}
		if amount := coerceAmount(fields["price"]); amount != "" {
			product.Price = &evidence.Price{
				Amount:   amount,
				Currency: strings.ToUpper(coerceString(fields["currency"])),
			}
		}

		products = append(products, product)
	}

	return products, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceAmount(v any) string {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		return evidence.ParseAmount(val)
	default:
		return ""
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

func resolveURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	return evidence.Resolve(base, ref)
}
