package evaluator

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/expansion-evaluator/internal/evidence"
	"github.com/spigell/expansion-evaluator/internal/logger"
)

const DefaultTimeout = 60 * time.Second

// Collector gathers the evidence of a single store.
type Collector interface {
	Collect(ctx context.Context, rawURL string, businessType evidence.BusinessType) (*evidence.StoreEvidence, error)
}

// Request is an evaluation request as received from callers.
type Request struct {
	MainStoreURL       string `json:"main_store_url"`
	ExpansionStoreURL  string `json:"expansion_store_url"`
	MainStoreType      string `json:"main_store_type"`
	ExpansionStoreType string `json:"expansion_store_type"`
}

// Normalized validates the request and returns it with URLs normalized and
// business types defaulted.
func (r Request) Normalized() (Request, evidence.BusinessType, evidence.BusinessType, error) {
	if strings.TrimSpace(r.MainStoreURL) == "" || strings.TrimSpace(r.ExpansionStoreURL) == "" {
		return r, "", "", &ValidationError{Field: "url", Message: "Both main_store_url and expansion_store_url are required"}
	}

	for _, f := range []struct {
		name  string
		value *string
	}{
		{"main_store_url", &r.MainStoreURL},
		{"expansion_store_url", &r.ExpansionStoreURL},
	} {
		normalized := evidence.NormalizeURL(*f.value)
		u, err := url.Parse(normalized)
		if err != nil || u.Hostname() == "" {
			return r, "", "", &ValidationError{Field: f.name, Message: "Invalid " + f.name + ": " + *f.value}
		}
		*f.value = normalized
	}

	mainType := evidence.ParseBusinessType(r.MainStoreType)
	expansionType := evidence.ParseBusinessType(r.ExpansionStoreType)
	r.MainStoreType = string(mainType)
	r.ExpansionStoreType = string(expansionType)

	return r, mainType, expansionType, nil
}

// Outcome is a finished evaluation together with the evidence it used.
type Outcome struct {
	EvaluationID string
	Request      Request
	Report       *Report
	Main         *evidence.StoreEvidence
	Expansion    *evidence.StoreEvidence
}

type Service struct {
	collector Collector
	evaluator *Evaluator
	timeout   time.Duration
	logger    *zap.Logger
}

func NewService(collector Collector, evaluator *Evaluator, timeout time.Duration, log *zap.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Service{
		collector: collector,
		evaluator: evaluator,
		timeout:   timeout,
		logger:    logger.WithFields(log),
	}
}

func (s *Service) Timeout() time.Duration {
	return s.timeout
}

// Evaluate collects both stores in parallel and evaluates them. A failed main
// store collection aborts the evaluation with a *CollectionError. A failed
// expansion store collection is reported inside an unqualified report.
// Exceeding the time budget returns ErrTimeout.
func (s *Service) Evaluate(ctx context.Context, req Request) (*Outcome, error) {
	req, mainType, expansionType, err := req.Normalized()
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	log := logger.WithStoreFields(s.logger, id, req.MainStoreURL, req.ExpansionStoreURL)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	log.Info("evaluation started",
		zap.String("main_store_type", string(mainType)),
		zap.String("expansion_store_type", string(expansionType)),
		zap.Duration("timeout", s.timeout),
	)

	var main, expansion *evidence.StoreEvidence

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ev, err := s.collector.Collect(gctx, req.MainStoreURL, mainType)
		if err != nil {
			return &CollectionError{Store: "main", URL: req.MainStoreURL, Err: err}
		}
		main = ev
		return nil
	})
	g.Go(func() error {
		ev, err := s.collector.Collect(gctx, req.ExpansionStoreURL, expansionType)
		if err != nil {
			if gctx.Err() != nil {
				return err
			}

			log.Warn("expansion store collection failed", zap.Error(err))
			expansion = evidence.Unavailable(req.ExpansionStoreURL, expansionType, evidence.Failure{
				Error:     err.Error(),
				Status:    statusOf(err),
				Retryable: retryable(err),
			})
			return nil
		}
		expansion = ev
		return nil
	})

	err = g.Wait()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.Warn("evaluation timed out", zap.Duration("elapsed", time.Since(started)))
		return nil, ErrTimeout
	}
	if err != nil {
		log.Warn("evaluation aborted", zap.Error(err))
		return nil, err
	}

	report := s.evaluator.Evaluate(main, expansion)

	fields := []zap.Field{
		zap.String("result", string(report.Result)),
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("main_products", len(main.Products)),
		zap.Int("expansion_products", len(expansion.Products)),
	}
	for _, c := range s.evaluator.Criteria() {
		if met, ok := report.CriteriaMet[c.ID()]; ok {
			fields = append(fields, zap.Bool(string(c.ID()), met))
		}
	}
	log.Info("evaluation finished", fields...)

	return &Outcome{
		EvaluationID: id,
		Request:      req,
		Report:       report,
		Main:         main,
		Expansion:    expansion,
	}, nil
}

func retryable(err error) bool {
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return true
}

func statusOf(err error) int {
	var s interface{ StatusCode() int }
	if errors.As(err, &s) {
		return s.StatusCode()
	}
	return 0
}
