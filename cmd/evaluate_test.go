package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/expansion-evaluator/internal/criteria"
	"github.com/spigell/expansion-evaluator/internal/evaluator"
	"github.com/spigell/expansion-evaluator/internal/evidence"
)

func testOutcome() *evaluator.Outcome {
	return &evaluator.Outcome{
		EvaluationID: "test-id",
		Request: evaluator.Request{
			MainStoreURL:       "https://acme.com",
			ExpansionStoreURL:  "https://acme.eu",
			MainStoreType:      "d2c",
			ExpansionStoreType: "d2c",
		},
		Report: &evaluator.Report{
			Result:          evaluator.Qualified,
			CriteriaMet:     map[criteria.ID]bool{criteria.BrandExtension: true},
			Reasons:         []string{"All required criteria are met"},
			Recommendations: []string{"Sales: proceed"},
			ProductAnalysis: &criteria.ProductAnalysis{TotalMatches: 3},
		},
		Main:      &evidence.StoreEvidence{URL: "https://acme.com", StoreName: "Acme Co"},
		Expansion: &evidence.StoreEvidence{URL: "https://acme.eu", StoreName: "Acme Co EU"},
	}
}

func TestHandleAction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		action string
		want   string
	}{
		{action: PromptReport, want: `"total_matches": 3`},
		{action: PromptReasons, want: "recommendation: Sales: proceed"},
		{action: PromptMainEvidence, want: `"store_name": "Acme Co"`},
		{action: PromptExpEvidence, want: `"store_name": "Acme Co EU"`},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer
			if err := handleAction(tt.action, &out, zap.NewNop(), testOutcome()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Fatalf("expected output to contain %q, got:\n%s", tt.want, out.String())
			}
		})
	}
}

func TestHandleActionExit(t *testing.T) {
	t.Parallel()

	err := handleAction(PromptExit, &bytes.Buffer{}, zap.NewNop(), testOutcome())
	if !errors.Is(err, errExit) {
		t.Fatalf("expected errExit, got %v", err)
	}

	if err := handleAction("bogus", &bytes.Buffer{}, zap.NewNop(), testOutcome()); err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestHandleActionDumpsReport(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.InfoLevel)
	if err := handleAction(PromptReportToFile, &bytes.Buffer{}, zap.New(core), testOutcome()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := observed.FilterMessage("dumping report to file").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}

	filename := entries[0].ContextMap()["filename"].(string)
	t.Cleanup(func() { os.Remove(filename) })

	data, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("reading dump: %v", err)
	}

	var dumped map[string]any
	if err := json.Unmarshal(data, &dumped); err != nil {
		t.Fatalf("decoding dump: %v", err)
	}
	if dumped["result"] != "qualified" || dumped["evaluation_id"] != "test-id" {
		t.Fatalf("unexpected dump %v", dumped)
	}
}

func TestBuildRequestNonInteractive(t *testing.T) {
	t.Parallel()

	cmd := &cobra.Command{}
	cmd.Flags().String("main-type", "d2c", "")
	cmd.Flags().String("expansion-type", "d2c", "")
	if err := cmd.Flags().Set("expansion-type", "b2b"); err != nil {
		t.Fatal(err)
	}

	req, err := buildRequest(cmd, []string{"acme.com", "trade.acme.com"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := evaluator.Request{
		MainStoreURL:       "acme.com",
		ExpansionStoreURL:  "trade.acme.com",
		MainStoreType:      "d2c",
		ExpansionStoreType: "b2b",
	}
	if req != want {
		t.Fatalf("unexpected request %+v", req)
	}

	// Without prompts missing URLs are left for validation to reject.
	req, err = buildRequest(cmd, nil, false)
	if err != nil || req.MainStoreURL != "" || req.ExpansionStoreURL != "" {
		t.Fatalf("unexpected request %+v (%v)", req, err)
	}
}
