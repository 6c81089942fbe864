package ai

import (
	"context"

	"github.com/spigell/expansion-evaluator/internal/evidence"
)

// ProductExtractor recovers a store's products from the visible text of a page
// when no structured product data is available.
type ProductExtractor interface {
	ExtractProducts(ctx context.Context, storeURL, pageText string) ([]evidence.Product, error)
}
