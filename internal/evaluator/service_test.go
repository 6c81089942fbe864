package evaluator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/expansion-evaluator/internal/evidence"
	"github.com/spigell/expansion-evaluator/internal/matching"
)

type stubFailure struct {
	status int
}

func (f *stubFailure) Error() string   { return fmt.Sprintf("bad status: %d", f.status) }
func (f *stubFailure) Retryable() bool { return f.status >= 500 }
func (f *stubFailure) StatusCode() int { return f.status }

type stubCollector struct {
	mu       sync.Mutex
	stores   map[string]*evidence.StoreEvidence
	errs     map[string]error
	block    map[string]bool
	requests []string
}

func (s *stubCollector) Collect(ctx context.Context, rawURL string, bt evidence.BusinessType) (*evidence.StoreEvidence, error) {
	s.mu.Lock()
	s.requests = append(s.requests, rawURL)
	block := s.block[rawURL]
	err := s.errs[rawURL]
	ev := s.stores[rawURL]
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}

	out := *ev
	out.BusinessType = bt
	return &out, nil
}

func newStub() *stubCollector {
	return &stubCollector{
		stores: map[string]*evidence.StoreEvidence{
			"https://acme.com": store("https://acme.com", "Acme Co", evidence.D2C, "Widget", "Gadget", "Gizmo"),
			"https://acme.eu":  store("https://acme.eu", "Acme Co EU", evidence.D2C, "Widget", "Gadget", "Gizmo"),
		},
		errs:  map[string]error{},
		block: map[string]bool{},
	}
}

func newTestService(c Collector, timeout time.Duration, log *zap.Logger) *Service {
	return NewService(c, New(matching.Config{FuzzyThreshold: 0.85, MinimumMatches: 3}), timeout, log)
}

func TestServiceEvaluate(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	svc := newTestService(newStub(), time.Second, zap.New(core))

	outcome, err := svc.Evaluate(context.Background(), Request{
		MainStoreURL:      "acme.com",
		ExpansionStoreURL: "https://acme.eu",
		MainStoreType:     "unknown",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Report.Result != Qualified {
		t.Fatalf("expected qualified, got %s: %v", outcome.Report.Result, outcome.Report.Reasons)
	}
	if outcome.Request.MainStoreURL != "https://acme.com" {
		t.Fatalf("expected normalized main url, got %q", outcome.Request.MainStoreURL)
	}
	if outcome.Request.MainStoreType != "d2c" || outcome.Request.ExpansionStoreType != "d2c" {
		t.Fatalf("expected types to default to d2c, got %q/%q", outcome.Request.MainStoreType, outcome.Request.ExpansionStoreType)
	}
	if outcome.EvaluationID == "" {
		t.Fatal("expected evaluation id")
	}

	finished := observed.FilterMessage("evaluation finished").All()
	if len(finished) != 1 {
		t.Fatalf("expected one finished entry, got %d", len(finished))
	}
	ctx := finished[0].ContextMap()
	if ctx["result"] != "qualified" || ctx["products_identical"] != true {
		t.Fatalf("unexpected log context: %v", ctx)
	}
	if ctx["evaluation_id"] != outcome.EvaluationID {
		t.Fatalf("expected evaluation id in logs, got %v", ctx["evaluation_id"])
	}
}

func TestServiceValidation(t *testing.T) {
	t.Parallel()

	svc := newTestService(newStub(), time.Second, zap.NewNop())

	tests := []Request{
		{MainStoreURL: "https://acme.com"},
		{ExpansionStoreURL: "https://acme.eu"},
		{MainStoreURL: "  ", ExpansionStoreURL: "https://acme.eu"},
		{MainStoreURL: "https://", ExpansionStoreURL: "https://acme.eu"},
	}

	for _, req := range tests {
		_, err := svc.Evaluate(context.Background(), req)
		var validation *ValidationError
		if !errors.As(err, &validation) {
			t.Fatalf("expected validation error for %+v, got %v", req, err)
		}
		if IsRetryable(err) {
			t.Fatal("validation errors must not be retryable")
		}
	}
}

func TestServiceMainStoreFailureIsAnError(t *testing.T) {
	t.Parallel()

	stub := newStub()
	stub.errs["https://acme.com"] = &stubFailure{status: 503}

	outcome, err := newTestService(stub, time.Second, zap.NewNop()).Evaluate(context.Background(), Request{
		MainStoreURL:      "https://acme.com",
		ExpansionStoreURL: "https://acme.eu",
	})
	if outcome != nil {
		t.Fatalf("expected no report when the main store is unreachable, got %+v", outcome.Report)
	}

	var collection *CollectionError
	if !errors.As(err, &collection) || collection.Store != "main" {
		t.Fatalf("expected main store collection error, got %v", err)
	}
	if !IsRetryable(err) {
		t.Fatal("expected 503 to be retryable")
	}
}

func TestServiceExpansionFailureIsReported(t *testing.T) {
	t.Parallel()

	stub := newStub()
	stub.errs["https://acme.eu"] = &stubFailure{status: 404}

	outcome, err := newTestService(stub, time.Second, zap.NewNop()).Evaluate(context.Background(), Request{
		MainStoreURL:       "https://acme.com",
		ExpansionStoreURL:  "https://acme.eu",
		ExpansionStoreType: "b2b",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Report.Result != Unqualified {
		t.Fatalf("expected unqualified, got %s", outcome.Report.Result)
	}
	if outcome.Expansion.Collected() {
		t.Fatal("expected expansion evidence to be marked as not collected")
	}
	if outcome.Expansion.Failure.Status != 404 || outcome.Expansion.Failure.Retryable {
		t.Fatalf("unexpected failure details: %+v", outcome.Expansion.Failure)
	}
	if outcome.Expansion.BusinessType != evidence.B2B {
		t.Fatalf("expected declared business type to be kept, got %q", outcome.Expansion.BusinessType)
	}
}

func TestServiceTimeout(t *testing.T) {
	t.Parallel()

	stub := newStub()
	stub.block["https://acme.com"] = true

	_, err := newTestService(stub, 20*time.Millisecond, zap.NewNop()).Evaluate(context.Background(), Request{
		MainStoreURL:      "https://acme.com",
		ExpansionStoreURL: "https://acme.eu",
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !IsRetryable(err) {
		t.Fatal("expected timeout to be retryable")
	}
}

func TestServiceTimeoutWhileExpansionBlocks(t *testing.T) {
	t.Parallel()

	stub := newStub()
	stub.block["https://acme.eu"] = true

	outcome, err := newTestService(stub, 20*time.Millisecond, zap.NewNop()).Evaluate(context.Background(), Request{
		MainStoreURL:      "https://acme.com",
		ExpansionStoreURL: "https://acme.eu",
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if outcome != nil {
		t.Fatal("expected no partial report on timeout")
	}
}

func TestServiceCollectsStoresInParallel(t *testing.T) {
	t.Parallel()

	started := make(chan string, 2)
	release := make(chan struct{})

	c := collectorFunc(func(ctx context.Context, rawURL string, bt evidence.BusinessType) (*evidence.StoreEvidence, error) {
		started <- rawURL
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return store(rawURL, "Acme", bt, "Widget", "Gadget", "Gizmo"), nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := newTestService(c, 5*time.Second, zap.NewNop()).Evaluate(context.Background(), Request{
			MainStoreURL:      "https://acme.com",
			ExpansionStoreURL: "https://acme.eu",
		})
		done <- err
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("expected both collections to start before either finished")
		}
	}
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

type collectorFunc func(ctx context.Context, rawURL string, bt evidence.BusinessType) (*evidence.StoreEvidence, error)

func (f collectorFunc) Collect(ctx context.Context, rawURL string, bt evidence.BusinessType) (*evidence.StoreEvidence, error) {
	return f(ctx, rawURL, bt)
}
