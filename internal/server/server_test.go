package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/expansion-evaluator/internal/evaluator"
	"github.com/spigell/expansion-evaluator/internal/evidence"
	"github.com/spigell/expansion-evaluator/internal/matching"
)

const testToken = "s3cret"

type failure struct {
	status int
}

func (f *failure) Error() string   { return "bad status" }
func (f *failure) Retryable() bool { return f.status >= 500 }

type stubCollector struct {
	stores map[string]*evidence.StoreEvidence
	errs   map[string]error
}

func (s *stubCollector) Collect(_ context.Context, rawURL string, bt evidence.BusinessType) (*evidence.StoreEvidence, error) {
	if err := s.errs[rawURL]; err != nil {
		return nil, err
	}
	ev, ok := s.stores[rawURL]
	if !ok {
		return nil, &failure{status: 404}
	}

	out := *ev
	out.BusinessType = bt
	return &out, nil
}

func store(url, name, currency string, products ...string) *evidence.StoreEvidence {
	ev := &evidence.StoreEvidence{
		URL:            url,
		StoreName:      name,
		Language:       "en",
		LanguageSource: evidence.SourceDomain,
		Currency:       currency,
		CurrencySource: evidence.SourceDomain,
		Branding:       evidence.Branding{Logo: url + "/logo.png"},
	}
	for _, p := range products {
		ev.Products = append(ev.Products, evidence.Product{Name: p})
	}
	return ev
}

func newCollector() *stubCollector {
	return &stubCollector{
		stores: map[string]*evidence.StoreEvidence{
			"https://acme.com": store("https://acme.com", "Acme Co", "USD", "Widget", "Gadget", "Gizmo"),
			"https://acme.eu":  store("https://acme.eu", "Acme Co EU", "EUR", "Widget", "Gadget", "Gizmo"),
		},
		errs: map[string]error{},
	}
}

func newTestServer(c *stubCollector, token string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	svc := evaluator.NewService(c, evaluator.New(matching.Config{FuzzyThreshold: 0.85, MinimumMatches: 3}), time.Second, log)
	return New(svc, c, token, "1.2.3", log)
}

type fakeEvaluations struct {
	err error
}

func (f fakeEvaluations) Evaluate(context.Context, evaluator.Request) (*evaluator.Outcome, error) {
	return nil, f.err
}

func (f fakeEvaluations) Timeout() time.Duration { return time.Second }

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return out
}

const acmeRequest = `{"main_store_url":"acme.com","expansion_store_url":"https://acme.eu","main_store_type":"d2c","expansion_store_type":"d2c"}`

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(newCollector(), "", nil)
	srv.started = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	srv.now = func() time.Time { return srv.started.Add(90*time.Second + 200*time.Millisecond) }

	rec := do(t, srv.Routes(), http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	body := decode(t, rec)
	if body["status"] != "healthy" || body["version"] != "1.2.3" || body["uptime"] != "1m30s" {
		t.Fatalf("unexpected health body %v", body)
	}
}

func TestEvaluateQualified(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"/evaluate", "/api/evaluate"} {
		t.Run(path, func(t *testing.T) {
			t.Parallel()

			rec := do(t, newTestServer(newCollector(), "", nil).Routes(), http.MethodPost, path, acmeRequest, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("unexpected content type %q", ct)
			}

			body := decode(t, rec)
			if body["result"] != "qualified" {
				t.Fatalf("expected qualified, got %v", body["result"])
			}
			if body["main_store_url"] != "https://acme.com" || body["main_store_type"] != "d2c" {
				t.Fatalf("request not echoed: %v %v", body["main_store_url"], body["main_store_type"])
			}
			if id, _ := body["evaluation_id"].(string); id == "" {
				t.Fatal("expected evaluation id")
			}

			info := body["store_info"].(map[string]any)
			if info["store_name"] != "Acme Co EU" || info["currency"] != "EUR" || info["url"] != "https://acme.eu" {
				t.Fatalf("unexpected store info %v", info)
			}
			if products := info["products"].([]any); len(products) != 3 {
				t.Fatalf("expected 3 products, got %v", products)
			}

			if _, ok := body["product_analysis"]; ok {
				t.Fatal("product analysis must be hidden without authorization")
			}
		})
	}
}

func TestEvaluateDetailsRequireAuthorization(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		token    string
		public   bool
		header   string
		detailed bool
	}{
		{name: "no token configured"},
		{name: "no token configured with bearer", header: "Bearer anything"},
		{name: "no header", token: testToken},
		{name: "wrong token", token: testToken, header: "Bearer nope"},
		{name: "wrong scheme", token: testToken, header: "Basic " + testToken},
		{name: "admin", token: testToken, header: "Bearer " + testToken, detailed: true},
		{name: "public details", public: true, detailed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}

			srv := newTestServer(newCollector(), tt.token, nil)
			srv.PublicDetails = tt.public

			rec := do(t, srv.Routes(), http.MethodPost, "/evaluate", acmeRequest, headers)
			if rec.Code != http.StatusOK {
				t.Fatalf("unexpected status %d", rec.Code)
			}

			body := decode(t, rec)
			analysis, hasAnalysis := body["product_analysis"].(map[string]any)
			if hasAnalysis != tt.detailed {
				t.Fatalf("product_analysis present=%v, want %v", hasAnalysis, tt.detailed)
			}
			if hasAnalysis && analysis["total_matches"] != float64(3) {
				t.Fatalf("unexpected total matches %v", analysis["total_matches"])
			}

			products := body["criteria_analysis"].(map[string]any)["products_identical"].(map[string]any)
			_, hasEvidence := products["expansion_store_evidence"]
			if hasEvidence != tt.detailed {
				t.Fatalf("criterion evidence present=%v, want %v", hasEvidence, tt.detailed)
			}
			if body["result"] != "qualified" {
				t.Fatalf("verdict must not depend on authorization, got %v", body["result"])
			}
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		err        error
		status     int
		message    string
		retryAfter bool
	}{
		{
			name:    "empty body",
			status:  http.StatusBadRequest,
			message: "No data provided",
		},
		{
			name:    "malformed json",
			body:    `{"main_store_url":`,
			status:  http.StatusBadRequest,
			message: "No data provided",
		},
		{
			name:    "validation",
			body:    `{}`,
			err:     &evaluator.ValidationError{Field: "url", Message: "Both main_store_url and expansion_store_url are required"},
			status:  http.StatusBadRequest,
			message: "Both main_store_url and expansion_store_url are required",
		},
		{
			name:       "timeout",
			body:       acmeRequest,
			err:        evaluator.ErrTimeout,
			status:     http.StatusGatewayTimeout,
			message:    "Evaluation timed out, please retry",
			retryAfter: true,
		},
		{
			name:       "main store unreachable",
			body:       acmeRequest,
			err:        &evaluator.CollectionError{Store: "main", URL: "https://acme.com", Err: &failure{status: 503}},
			status:     http.StatusBadGateway,
			message:    "collecting main store evidence from https://acme.com: bad status",
			retryAfter: true,
		},
		{
			name:    "main store missing",
			body:    acmeRequest,
			err:     &evaluator.CollectionError{Store: "main", URL: "https://acme.com", Err: &failure{status: 404}},
			status:  http.StatusBadGateway,
			message: "collecting main store evidence from https://acme.com: bad status",
		},
		{
			name:    "unexpected",
			body:    acmeRequest,
			err:     errors.New("boom"),
			status:  http.StatusInternalServerError,
			message: "Evaluation failed: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := New(fakeEvaluations{err: tt.err}, newCollector(), "", "test", nil)
			rec := do(t, srv.Routes(), http.MethodPost, "/evaluate", tt.body, nil)

			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rec.Code)
			}
			if got := decode(t, rec)["error"]; got != tt.message {
				t.Fatalf("unexpected error message %q", got)
			}
			if got := rec.Header().Get("Retry-After") != ""; got != tt.retryAfter {
				t.Fatalf("Retry-After present=%v, want %v", got, tt.retryAfter)
			}
		})
	}
}

func TestEvaluateMainStoreUnreachableIsNotAReport(t *testing.T) {
	t.Parallel()

	c := newCollector()
	c.errs["https://acme.com"] = &failure{status: 503}

	rec := do(t, newTestServer(c, "", nil).Routes(), http.MethodPost, "/evaluate", acmeRequest, nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}

	body := decode(t, rec)
	if _, ok := body["result"]; ok {
		t.Fatalf("error response must not carry a verdict: %v", body)
	}
}

func TestEvaluateExpansionUnreachable(t *testing.T) {
	t.Parallel()

	c := newCollector()
	c.errs["https://acme.eu"] = &failure{status: 503}

	rec := do(t, newTestServer(c, "", nil).Routes(), http.MethodPost, "/evaluate", acmeRequest, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := decode(t, rec)
	if body["result"] != "unqualified" {
		t.Fatalf("expected unqualified, got %v", body["result"])
	}
	if failures, _ := body["collection_failures"].([]any); len(failures) != 1 {
		t.Fatalf("expected one collection failure, got %v", body["collection_failures"])
	}

	info := body["store_info"].(map[string]any)
	if info["collected"] != false || info["store_name"] != evidence.NotDetected {
		t.Fatalf("unexpected store info %v", info)
	}
	if info["language_source"] != string(evidence.SourceUnknown) {
		t.Fatalf("unexpected language source %v", info["language_source"])
	}
}

func TestStoreInfo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		headers  map[string]string
		status   int
		evidence bool
	}{
		{name: "missing url", body: `{}`, status: http.StatusBadRequest},
		{name: "public", body: `{"url":"acme.eu"}`, status: http.StatusOK},
		{name: "admin", body: `{"url":"acme.eu"}`, headers: map[string]string{"Authorization": "Bearer " + testToken}, status: http.StatusOK, evidence: true},
		{name: "unknown store", body: `{"url":"nowhere.test"}`, status: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := do(t, newTestServer(newCollector(), testToken, nil).Routes(), http.MethodPost, "/store-info", tt.body, tt.headers)
			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}

			body := decode(t, rec)
			if tt.status != http.StatusOK {
				if _, ok := body["error"]; !ok {
					t.Fatalf("expected error body, got %v", body)
				}
				return
			}

			info := body["store_info"].(map[string]any)
			if info["store_name"] != "Acme Co EU" {
				t.Fatalf("unexpected store info %v", info)
			}
			if _, ok := body["evidence"]; ok != tt.evidence {
				t.Fatalf("evidence present=%v, want %v", ok, tt.evidence)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		origin  string
		allowed bool
	}{
		{origin: "http://localhost:3000", allowed: true},
		{origin: "http://127.0.0.1:8080", allowed: true},
		{origin: "http://localhost", allowed: true},
		{origin: "https://localhost:3000"},
		{origin: "http://evil.example"},
		{origin: "http://localhost.evil.example"},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			t.Parallel()

			h := newTestServer(newCollector(), "", nil).Routes()
			rec := do(t, h, http.MethodOptions, "/evaluate", "", map[string]string{
				"Origin":                        tt.origin,
				"Access-Control-Request-Method": http.MethodPost,
			})

			got := rec.Header().Get("Access-Control-Allow-Origin")
			if tt.allowed {
				if got != tt.origin || rec.Code != http.StatusNoContent {
					t.Fatalf("expected preflight allowed, got status %d origin %q", rec.Code, got)
				}
				if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "Authorization") {
					t.Fatal("expected Authorization in allowed headers")
				}
				return
			}
			if got != "" {
				t.Fatalf("origin %q must not be allowed", tt.origin)
			}
		})
	}
}

func TestRequestsAreLogged(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.InfoLevel)
	srv := newTestServer(newCollector(), "", zap.New(core))

	do(t, srv.Routes(), http.MethodGet, "/health", "", nil)

	entries := observed.FilterMessage("request served").All()
	if len(entries) != 1 {
		t.Fatalf("expected one request log entry, got %d", len(entries))
	}

	fields := entries[0].ContextMap()
	if fields["path"] != "/health" || fields["status"] != int64(http.StatusOK) {
		t.Fatalf("unexpected log fields %v", fields)
	}
	if id, _ := fields["request_id"].(string); id == "" {
		t.Fatal("expected request id in log entry")
	}
}

func TestNewStoreInfoBranding(t *testing.T) {
	t.Parallel()

	ev := store("https://acme.eu", "", "", "Widget")
	ev.Branding.Tagline = "Built to last"

	info := NewStoreInfo(ev)
	if info.StoreName != evidence.NotDetected || info.Currency != evidence.NotDetected {
		t.Fatalf("missing values must be displayed as not detected: %+v", info)
	}

	want := []string{"logo: https://acme.eu/logo.png", "tagline: Built to last"}
	got, _ := json.Marshal(info.BrandingElements)
	wantJSON, _ := json.Marshal(want)
	if !bytes.Equal(got, wantJSON) {
		t.Fatalf("unexpected branding %s", got)
	}
}
