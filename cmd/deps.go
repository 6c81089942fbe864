package cmd

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/expansion-evaluator/internal/ai"
	"github.com/spigell/expansion-evaluator/internal/ai/gemini"
	"github.com/spigell/expansion-evaluator/internal/collector"
	"github.com/spigell/expansion-evaluator/internal/evaluator"
	"github.com/spigell/expansion-evaluator/internal/knowledge"
	"github.com/spigell/expansion-evaluator/internal/secrets"
)

// deps holds the long-lived components shared by the commands.
type deps struct {
	collector *collector.Collector
	service   *evaluator.Service
	knowledge *knowledge.Store
}

func (d *deps) Close() error {
	if d.knowledge != nil {
		return d.knowledge.Close()
	}
	return nil
}

func buildDeps(ctx context.Context, config *Config, logger *zap.Logger) (*deps, error) {
	c := collector.New(config.Collector, logger.Named("collector"))
	d := &deps{collector: c}

	if config.Knowledge.Enabled {
		store, err := knowledge.Open(config.Knowledge.Path, config.Knowledge.TTL)
		if err != nil {
			return nil, fmt.Errorf("opening knowledge base: %w", err)
		}
		d.knowledge = store
		c.Knowledge = store
		logger.Info("knowledge base enabled", zap.String("path", config.Knowledge.Path), zap.Duration("ttl", config.Knowledge.TTL))
	}

	extractor, err := newProductExtractor(ctx, config.AI, config.Collector.MaxProducts, logger)
	switch {
	case err != nil:
		logger.Warn("skipping ai product extraction", zap.Error(err))
	case extractor != nil:
		c.Extractor = extractor
	}

	d.service = evaluator.NewService(c, evaluator.New(config.Evaluation.Matching), config.Evaluation.Timeout, logger)

	return d, nil
}

func newProductExtractor(ctx context.Context, cfg *AIConfig, maxProducts int, logger *zap.Logger) (ai.ProductExtractor, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	if cfg.Gemini == nil {
		return nil, errors.New("gemini configuration is required when ai is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	genLogger := logger.With(zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries))

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	if maxProducts <= 0 {
		maxProducts = collector.DefaultMaxProducts
	}

	extractorLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", generator.Model()),
		zap.Int("max_products", maxProducts),
	)

	return gemini.NewExtractor(generator, maxProducts, cfg.Gemini.MaxLogLength, extractorLogger), nil
}

func adminToken(config *Config) (string, error) {
	token, err := secrets.Load(secrets.Source{
		Name:  "admin token",
		Value: config.Server.AdminToken,
		File:  config.Server.AdminTokenFile,
	})
	if errors.Is(err, secrets.ErrNotConfigured) {
		return "", nil
	}
	return token, err
}
