package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/expansion-evaluator/internal/logger"
	"github.com/spigell/expansion-evaluator/internal/server"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the evaluation HTTP API",
	Run: func(cmd *cobra.Command, _ []string) {
		if err := serve(cmd.Context()); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "address to listen on (default :5001)")
	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
}

func serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		return fmt.Errorf("creating a logger: %w", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	token, err := adminToken(config)
	if err != nil {
		logger.Fatal("loading admin token", zap.Error(err))
	}
	switch {
	case config.Server.PublicDetails:
		logger.Warn("server.public-details is set, detailed analysis is visible to every caller")
	case token == "":
		logger.Info("admin token is not configured, detailed analysis is hidden from every caller")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d, err := buildDeps(ctx, config, logger)
	if err != nil {
		logger.Fatal("building evaluator", zap.Error(err))
	}
	defer d.Close()

	srv := server.New(d.service, d.collector, token, version, logger.Named("http"))
	srv.PublicDetails = config.Server.PublicDetails
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	httpServer := &http.Server{
		Addr:              config.Server.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      config.Evaluation.Timeout + shutdownTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()
	logger.Info("starting the expansion-evaluator",
		zap.String("version", version),
		zap.String("listen", config.Server.Listen),
		zap.Duration("evaluation_timeout", config.Evaluation.Timeout),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	}
}
