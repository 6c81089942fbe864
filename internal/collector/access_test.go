package collector

import (
	"net/http"
	"reflect"
	"testing"

	"github.com/spigell/expansion-evaluator/internal/evidence"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	const requested = "https://acme.com/collections/all"

	tests := []struct {
		name      string
		resp      *response
		confirmed bool
		marker    string
	}{
		{name: "no answer", resp: nil},
		{name: "public page", resp: &response{URL: requested, Status: http.StatusOK, Body: []byte("All products")}},
		{name: "unauthorized", resp: &response{URL: requested, Status: http.StatusUnauthorized}, confirmed: true, marker: "http 401"},
		{name: "forbidden without marker", resp: &response{URL: requested, Status: http.StatusForbidden, Body: []byte("Blocked by firewall")}},
		{name: "forbidden with login marker", resp: &response{URL: requested, Status: http.StatusForbidden, Body: []byte("Authentication required")}, confirmed: true, marker: "authentication required"},
		{name: "login marker", resp: &response{URL: requested, Status: http.StatusOK, Body: []byte("Please log in to continue")}, confirmed: true, marker: "please log in"},
		{name: "shopify password page", resp: &response{URL: "https://acme.com/password", Status: http.StatusOK}, confirmed: true, marker: "redirect to /password"},
		{name: "redirect to account login", resp: &response{URL: "https://acme.com/account/login?return_url=%2Fcart", Status: http.StatusOK}, confirmed: true, marker: "redirect to /account/login?return_url=%2Fcart"},
		{name: "redirect elsewhere", resp: &response{URL: "https://acme.com/collections/frontpage", Status: http.StatusOK}},
		{name: "not found", resp: &response{URL: requested, Status: http.StatusNotFound, Body: []byte("please log in")}},
		{
			name: "marker only in theme script",
			resp: &response{
				URL:    requested,
				Status: http.StatusOK,
				Header: http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
				Body:   []byte(`<html><body><script>window.theme = {strings: {login: "Please log in to continue"}};</script><h1>All products</h1></body></html>`),
			},
		},
		{
			name: "marker in visible html",
			resp: &response{
				URL:    requested,
				Status: http.StatusOK,
				Header: http.Header{"Content-Type": []string{"text/html"}},
				Body:   []byte(`<html><body><p>Please <b>log in</b> to continue</p></body></html>`),
			},
			confirmed: true,
			marker:    "please log in",
		},
		{
			name: "marker in json body",
			resp: &response{
				URL:    requested,
				Status: http.StatusForbidden,
				Header: http.Header{"Content-Type": []string{"application/json"}},
				Body:   []byte(`{"message":"Authentication required"}`),
			},
			confirmed: true,
			marker:    "authentication required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			signal := classify(evidence.SurfaceProductListing, requested, tt.resp)
			if signal.Confirmed != tt.confirmed {
				t.Fatalf("confirmed = %v, want %v (%+v)", signal.Confirmed, tt.confirmed, signal)
			}
			if signal.Marker != tt.marker {
				t.Fatalf("marker = %q, want %q", signal.Marker, tt.marker)
			}
			if signal.Surface != evidence.SurfaceProductListing || signal.URL != requested {
				t.Fatalf("unexpected signal identity: %+v", signal)
			}
		})
	}
}

func TestPricingSignal(t *testing.T) {
	t.Parallel()

	landing := &response{URL: "https://acme.com", Status: http.StatusOK, Body: []byte("Best tools")}
	listing := &response{URL: "https://acme.com/collections/all", Status: http.StatusOK, Body: []byte("Widget - Login to view prices")}

	signal := pricingSignal("https://acme.com", landing, nil, listing)
	if !signal.Confirmed || signal.URL != listing.URL || signal.Marker != "login to view prices" {
		t.Fatalf("unexpected pricing signal: %+v", signal)
	}

	scripted := &response{
		URL:    "https://acme.com",
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": []string{"text/html"}},
		Body:   []byte(`<html><body><script>var t = "Login to view prices";</script><p>Widget $10</p></body></html>`),
	}
	if signal := pricingSignal("https://acme.com", scripted); signal.Confirmed {
		t.Fatalf("script text must not confirm hidden pricing: %+v", signal)
	}

	if signal := pricingSignal("https://acme.com", landing); signal.Confirmed {
		t.Fatalf("expected unconfirmed pricing signal, got %+v", signal)
	}
}

func TestB2BIndicators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		text string
		want []string
	}{
		{url: "https://acme-trade.com", want: []string{"domain: trade"}},
		{url: "https://b2b.acme.com", text: "Request a quote today", want: []string{"domain: b2b", "page: request a quote"}},
		{url: "https://acmewholesale.com", want: []string{"domain: wholesale"}},
		{url: "https://products.acme.com", want: nil},
		{url: "https://acme.com", text: "Free shipping", want: nil},
	}

	for _, tt := range tests {
		if got := b2bIndicators(tt.url, tt.text); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("b2bIndicators(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
