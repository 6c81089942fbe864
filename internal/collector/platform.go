package collector

import (
	"net/http"
	"strings"
)

const (
	PlatformShopify     = "shopify"
	PlatformWooCommerce = "woocommerce"
	PlatformMagento     = "magento"
	PlatformBigCommerce = "bigcommerce"
	PlatformCustom      = "custom"
)

var platformMarkers = []struct {
	platform string
	headers  []string
	markers  []string
}{
	{
		platform: PlatformShopify,
		headers:  []string{"X-Shopid", "X-Shopify-Stage", "X-Sorting-Hat-Shopid"},
		markers:  []string{"cdn.shopify.com", "myshopify.com", "shopify.theme", "shopifycdn.com"},
	},
	{
		platform: PlatformWooCommerce,
		markers:  []string{"wp-content/plugins/woocommerce", "woocommerce", "wc-block"},
	},
	{
		platform: PlatformMagento,
		headers:  []string{"X-Magento-Cache-Debug", "X-Magento-Tags"},
		markers:  []string{"mage/cookies", "magento_", "magento"},
	},
	{
		platform: PlatformBigCommerce,
		markers:  []string{"cdn.bigcommerce.com", "bigcommercecdn.com", "bigcommerce"},
	},
}

// detectPlatform recognises the storefront software from response headers and
// HTML markers.
func detectPlatform(header http.Header, body string) string {
	lower := strings.ToLower(body)

	for _, candidate := range platformMarkers {
		for _, h := range candidate.headers {
			if header.Get(h) != "" {
				return candidate.platform
			}
		}
		for _, marker := range candidate.markers {
			if strings.Contains(lower, marker) {
				return candidate.platform
			}
		}
	}

	return PlatformCustom
}
