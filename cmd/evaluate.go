package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/expansion-evaluator/internal/evaluator"
	"github.com/spigell/expansion-evaluator/internal/evidence"
	"github.com/spigell/expansion-evaluator/internal/logger"
	"github.com/spigell/expansion-evaluator/internal/server"
)

const (
	PromptReport       = "Print report"
	PromptReasons      = "Show reasons and recommendations"
	PromptMainEvidence = "Show main store evidence"
	PromptExpEvidence  = "Show expansion store evidence"
	PromptReportToFile = "Dump report to file"
	PromptExit         = "Exit"
)

var errExit = errors.New("exit requested")

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [MAIN_STORE_URL EXPANSION_STORE_URL]",
	Short: "Evaluate an expansion store against its main store",
	Args:  cobra.MaximumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		evaluate(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().String("main-type", "d2c", "business type of the main store (d2c or b2b)")
	evaluateCmd.Flags().String("expansion-type", "d2c", "business type of the expansion store (d2c or b2b)")
	evaluateCmd.Flags().BoolP("yes", "y", false, "do not prompt, print the JSON report and exit")
}

func evaluate(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	d, err := buildDeps(ctx, config, logger)
	if err != nil {
		logger.Fatal("building evaluator", zap.Error(err))
	}
	defer d.Close()

	yes, _ := cmd.Flags().GetBool("yes")

	req, err := buildRequest(cmd, args, !yes)
	if err != nil {
		logger.Fatal("reading evaluation input", zap.Error(err))
	}

	outcome, err := d.service.Evaluate(ctx, req)
	if err != nil {
		logger.Fatal("evaluation failed", zap.Error(err), zap.Bool("retryable", evaluator.IsRetryable(err)))
	}

	logger.Info("evaluation finished",
		zap.String("result", string(outcome.Report.Result)),
		zap.Float64("confidence_score", outcome.Report.ConfidenceScore),
		zap.Any("criteria_met", outcome.Report.CriteriaMet),
	)

	if yes {
		if err := printJSON(os.Stdout, server.NewEvaluationResponse(outcome, true)); err != nil {
			logger.Fatal("printing report", zap.Error(err))
		}
		return
	}

	prompt := promptui.Select{
		Label: "What next?",
		Items: []string{PromptReport, PromptReasons, PromptMainEvidence, PromptExpEvidence, PromptReportToFile, PromptExit},
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, os.Stdout, logger, outcome); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

// buildRequest takes the store URLs from args and the business types from
// flags, asking for whatever is missing when interactive is set.
func buildRequest(cmd *cobra.Command, args []string, interactive bool) (evaluator.Request, error) {
	var req evaluator.Request
	if len(args) > 0 {
		req.MainStoreURL = args[0]
	}
	if len(args) > 1 {
		req.ExpansionStoreURL = args[1]
	}
	req.MainStoreType, _ = cmd.Flags().GetString("main-type")
	req.ExpansionStoreType, _ = cmd.Flags().GetString("expansion-type")

	if !interactive {
		return req, nil
	}

	var err error
	if req.MainStoreURL == "" {
		if req.MainStoreURL, err = promptURL("Main store URL"); err != nil {
			return req, err
		}
	}
	if req.ExpansionStoreURL == "" {
		if req.ExpansionStoreURL, err = promptURL("Expansion store URL"); err != nil {
			return req, err
		}
	}
	if !cmd.Flags().Changed("expansion-type") {
		if req.ExpansionStoreType, err = promptBusinessType("Expansion store type"); err != nil {
			return req, err
		}
	}

	return req, nil
}

func promptURL(label string) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("url is required")
			}
			return nil
		},
	}
	return prompt.Run()
}

func promptBusinessType(label string) (string, error) {
	prompt := promptui.Select{
		Label: label,
		Items: []string{string(evidence.D2C), string(evidence.B2B)},
	}
	_, value, err := prompt.Run()
	return value, err
}

func handleAction(action string, out io.Writer, logger *zap.Logger, outcome *evaluator.Outcome) error {
	switch action {
	case PromptReport:
		return printJSON(out, server.NewEvaluationResponse(outcome, true))
	case PromptReasons:
		for _, reason := range outcome.Report.Reasons {
			fmt.Fprintf(out, "reason: %s\n", reason)
		}
		for _, rec := range outcome.Report.Recommendations {
			fmt.Fprintf(out, "recommendation: %s\n", rec)
		}
		return nil
	case PromptMainEvidence:
		return printJSON(out, outcome.Main)
	case PromptExpEvidence:
		return printJSON(out, outcome.Expansion)
	case PromptReportToFile:
		filename, err := dumpToTmpFile(outcome)
		if err != nil {
			return fmt.Errorf("dump report to file: %w", err)
		}
		logger.Info("dumping report to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func dumpToTmpFile(outcome *evaluator.Outcome) (string, error) {
	f, err := os.CreateTemp("", "evaluation-"+outcome.EvaluationID+"-*.json")
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := printJSON(f, server.NewEvaluationResponse(outcome, true)); err != nil {
		return "", err
	}

	return f.Name(), nil
}
