package cmd

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/expansion-evaluator/internal/evidence"
	"github.com/spigell/expansion-evaluator/internal/logger"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect STORE_URL",
	Short: "Collect and print the evidence of a single store",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		inspect(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().String("type", "d2c", "business type of the store (d2c or b2b)")
}

func inspect(cmd *cobra.Command, storeURL string) {
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

	d, err := buildDeps(ctx, config, logger)
	if err != nil {
		logger.Fatal("building collector", zap.Error(err))
	}
	defer d.Close()

	ctx, cancel := context.WithTimeout(ctx, config.Evaluation.Timeout)
	defer cancel()

	businessType, _ := cmd.Flags().GetString("type")
	ev, err := d.collector.Collect(ctx, storeURL, evidence.ParseBusinessType(businessType))
	if err != nil {
		logger.Fatal("collecting store evidence", zap.String("url", storeURL), zap.Error(err))
	}

	if err := printJSON(os.Stdout, ev); err != nil {
		logger.Fatal("printing evidence", zap.Error(err))
	}
}
