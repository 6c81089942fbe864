package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/expansion-evaluator/internal/ai"
	"github.com/spigell/expansion-evaluator/internal/evidence"
	"github.com/spigell/expansion-evaluator/internal/knowledge"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxRetries  = 3
	DefaultMaxProducts = 25
	DefaultUserAgent   = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	defaultBackoff = time.Second
	maxBackoff     = 8 * time.Second
)

type Config struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max-retries"`
	UserAgent   string        `mapstructure:"user-agent"`
	MaxProducts int           `mapstructure:"max-products"`
	RenderJS    bool          `mapstructure:"render-js"`
	ChromePath  string        `mapstructure:"chrome-path"`
}

func (c Config) Validate() error {
	if c.Timeout < 0 {
		return errors.New("collector.timeout must not be negative")
	}
	if c.MaxRetries < 0 {
		return errors.New("collector.max-retries must not be negative")
	}
	if c.MaxProducts < 0 {
		return errors.New("collector.max-products must not be negative")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.MaxProducts == 0 {
		c.MaxProducts = DefaultMaxProducts
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		c.UserAgent = DefaultUserAgent
	}
	return c
}

// KnowledgeBase remembers product lists of stores seen before.
type KnowledgeBase interface {
	Lookup(ctx context.Context, rawURL string) (*knowledge.Entry, error)
	Save(ctx context.Context, rawURL, platform, method string, products []evidence.Product) error
}

// Collector fetches a storefront and turns it into StoreEvidence.
type Collector struct {
	cfg     Config
	logger  *zap.Logger
	backoff time.Duration

	renderer renderer

	HTTPClient *http.Client
	Extractor  ai.ProductExtractor
	Knowledge  KnowledgeBase
}

func New(cfg Config, logger *zap.Logger) *Collector {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Collector{
		cfg:     cfg,
		logger:  logger,
		backoff: defaultBackoff,
		HTTPClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
	if cfg.RenderJS {
		c.renderer = NewChromeRenderer(cfg.ChromePath, cfg.UserAgent, 3*cfg.Timeout)
	}

	return c
}

// Collect gathers the evidence of the store at rawURL. It fails with a
// *FetchFailure only when the landing page cannot be retrieved; probes of
// secondary pages degrade to unconfirmed access signals.
func (c *Collector) Collect(ctx context.Context, rawURL string, businessType evidence.BusinessType) (*evidence.StoreEvidence, error) {
	storeURL := evidence.NormalizeURL(rawURL)
	log := c.logger.With(zap.String("store_url", storeURL))

	landing, err := c.get(ctx, storeURL, acceptHTML)
	if err != nil {
		return nil, err
	}

	landingSignal := classify(evidence.SurfaceLanding, storeURL, landing)
	if !landing.ok() && !landingSignal.Confirmed {
		return nil, &FetchFailure{URL: storeURL, Status: landing.Status}
	}

	var p *page
	if landing.ok() && isHTML(landing) {
		if p, err = parsePage(landing.Body); err != nil {
			log.Debug("landing page is not parsable", zap.Error(err))
			p = nil
		}
	}

	ev := &evidence.StoreEvidence{
		URL:          storeURL,
		StoreName:    storeName(p, storeURL),
		BusinessType: businessType,
		Platform:     detectPlatform(landing.Header, landing.text()),
		Products:     []evidence.Product{},
	}
	if p != nil {
		ev.Branding.Tagline = p.Description
		if logo := p.Logo(); logo != "" {
			ev.Branding.Logo = evidence.Resolve(landing.URL, logo)
		}
	}

	var ldProducts []evidence.Product
	var ldCurrency string
	if p != nil {
		ldProducts, ldCurrency = jsonLDProducts(p.JSONLD, landing.URL)
	}

	loc := detectLocale(storeURL, p, ldCurrency)
	ev.Language, ev.LanguageSource = loc.Language, loc.LanguageSource
	ev.Currency, ev.CurrencySource = loc.Currency, loc.CurrencySource
	ev.Notes = append(ev.Notes, loc.Notes...)

	listingURL := c.listingURL(storeURL, ev.Platform)
	listing, listingErr := c.get(ctx, listingURL, acceptFor(ev.Platform))
	if listingErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Debug("product listing probe failed", zap.Error(listingErr))
		ev.Notes = append(ev.Notes, "product listing probe failed: "+listingErr.Error())
	}

	cartURL := evidence.Resolve(storeURL, cartPath)
	cart, cartErr := c.get(ctx, cartURL, acceptHTML)
	if cartErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Debug("cart probe failed", zap.Error(cartErr))
		ev.Notes = append(ev.Notes, "cart probe failed: "+cartErr.Error())
	}

	ev.AccessSignals = []evidence.AccessSignal{
		landingSignal,
		classify(evidence.SurfaceProductListing, listingURL, listing),
		pricingSignal(storeURL, landing, listing),
		classify(evidence.SurfaceCart, cartURL, cart),
	}
	ev.AccessRestricted = len(ev.ConfirmedSurfaces()) > 0

	text := ""
	if p != nil {
		text = p.Text
	}
	ev.B2BIndicators = b2bIndicators(storeURL, text)

	c.collectProducts(ctx, log, ev, ldProducts, listing, text)

	log.Debug("store evidence collected",
		zap.String("store_name", ev.StoreName),
		zap.String("platform", ev.Platform),
		zap.Int("products", len(ev.Products)),
		zap.String("product_source", ev.ProductSource),
		zap.Bool("access_restricted", ev.AccessRestricted),
	)

	return ev, nil
}

func (c *Collector) collectProducts(ctx context.Context, log *zap.Logger, ev *evidence.StoreEvidence, ldProducts []evidence.Product, listing *response, text string) {
	products, source := ldProducts, SourceJSONLD

	if len(products) == 0 && listing.ok() {
		var err error
		switch ev.Platform {
		case PlatformShopify:
			products, err = shopifyProducts(listing.Body, ev.URL)
			source = SourceShopify
		case PlatformWooCommerce:
			products, err = wooCommerceProducts(listing.Body)
			source = SourceWooCommerce
		}
		if err != nil {
			log.Debug("product listing is not parsable", zap.Error(err))
			products = nil
		}
	}

	if len(products) == 0 && c.renderer != nil && !ev.AccessRestricted {
		rendered, renderedText := c.renderProducts(ctx, log, ev.URL)
		if len(rendered) > 0 {
			products, source = rendered, SourceJSONLD
		}
		if renderedText != "" {
			text = renderedText
		}
	}

	if len(products) == 0 && c.Extractor != nil && !ev.AccessRestricted && text != "" {
		extracted, err := c.Extractor.ExtractProducts(ctx, ev.URL, text)
		if err != nil {
			log.Warn("ai product extraction failed", zap.Error(err))
			ev.Notes = append(ev.Notes, "ai product extraction failed")
		}
		products, source = extracted, SourceAI
	}

	products = dedupeProducts(products, c.cfg.MaxProducts)

	if len(products) > 0 {
		if c.Knowledge != nil {
			if err := c.Knowledge.Save(ctx, ev.URL, ev.Platform, source, products); err != nil {
				log.Warn("saving products to knowledge base failed", zap.Error(err))
			}
		}
	} else if c.Knowledge != nil && !ev.AccessRestricted {
		entry, err := c.Knowledge.Lookup(ctx, ev.URL)
		if err != nil {
			log.Warn("knowledge base lookup failed", zap.Error(err))
		}
		if entry != nil && len(entry.Products) > 0 {
			products = dedupeProducts(entry.Products, c.cfg.MaxProducts)
			source = SourceKnowledge
			ev.Notes = append(ev.Notes, fmt.Sprintf("products from knowledge base, learned %s via %s", entry.UpdatedAt.Format(time.RFC3339), entry.Method))
		}
	}

	if len(products) == 0 {
		return
	}

	for i := range products {
		if products[i].Price != nil && products[i].Price.Currency == "" && ev.Currency != "" {
			price := *products[i].Price
			price.Currency = ev.Currency
			products[i].Price = &price
		}
	}

	ev.Products = products
	ev.ProductSource = source
}

func (c *Collector) renderProducts(ctx context.Context, log *zap.Logger, storeURL string) ([]evidence.Product, string) {
	rendered, err := c.renderer.Render(ctx, storeURL)
	if err != nil {
		log.Debug("rendering landing page failed", zap.Error(err))
		return nil, ""
	}
	if !rendered.ok() {
		return nil, ""
	}

	p, err := parsePage(rendered.Body)
	if err != nil {
		return nil, ""
	}

	products, _ := jsonLDProducts(p.JSONLD, rendered.URL)
	return products, p.Text
}

func (c *Collector) listingURL(storeURL, platform string) string {
	switch platform {
	case PlatformShopify:
		return evidence.Resolve(storeURL, fmt.Sprintf("%s?limit=%d", shopifyProductsPath, c.cfg.MaxProducts))
	case PlatformWooCommerce:
		return evidence.Resolve(storeURL, fmt.Sprintf("%s?per_page=%d", wooCommerceProductsPath, c.cfg.MaxProducts))
	default:
		return evidence.Resolve(storeURL, collectionsPath)
	}
}

func acceptFor(platform string) string {
	switch platform {
	case PlatformShopify, PlatformWooCommerce:
		return acceptJSON
	default:
		return acceptHTML
	}
}
