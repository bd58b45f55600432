package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solatis/rulekeeper/internal/core/api"
	"github.com/solatis/rulekeeper/internal/core/config"
	"github.com/solatis/rulekeeper/internal/core/metrics"
	"github.com/solatis/rulekeeper/internal/core/server"
	"github.com/solatis/rulekeeper/internal/rules"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start gRPC condition service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50051, "gRPC server port")
	serveCmd.Flags().String("metrics-addr", ":9090", "Prometheus metrics listen address (empty disables)")
	serveCmd.Flags().Bool("migrate", false, "apply pending migrations before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.cfg
	logger := rt.logger

	if cmd.Flags().Changed("host") {
		cfg.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr, _ = cmd.Flags().GetString("metrics-addr")
	}

	if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
		if err := applyMigrations(ctx, rt); err != nil {
			return err
		}
	}

	m := metrics.New(nil)
	service, err := rt.newService(ctx, m)
	if err != nil {
		return err
	}

	if cfg.Variables.File != "" {
		m.VariablesReloaded(len(service.Engine().Config().VariableNames()), nil)
		if cfg.Variables.Watch {
			if err := watchVariables(ctx, cfg, service.Engine(), m, logger); err != nil {
				return err
			}
		}
	}

	grpcService, err := api.NewGRPCService(service)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	grpcServer, err := server.NewGRPCServer(cfg, grpcService, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errChan := make(chan error, 2)
	if cfg.MetricsAddr != "" {
		metricsServer := startMetricsServer(cfg.MetricsAddr, m, logger, errChan)
		defer shutdownMetricsServer(metricsServer, logger)
	}

	logger.Info("Starting RuleKeeper condition service",
		zap.String("version", Version),
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database.Driver),
	)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("Shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return grpcServer.Shutdown(shutdownCtx)
	}
}

// watchVariables reloads the variables file into the engine on change.
// A failed reload keeps the previous variables.
func watchVariables(ctx context.Context, cfg *config.ServerConfig, engine *rules.Engine, m *metrics.Metrics, logger *zap.Logger) error {
	watcher, err := config.NewFileWatcher(cfg.Variables.File, cfg.Variables.Debounce, logger)
	if err != nil {
		return err
	}

	go func() {
		err := watcher.Watch(ctx, func() error {
			variables, err := config.LoadVariables(cfg.Variables.File)
			m.VariablesReloaded(len(variables), err)
			if err != nil {
				return err
			}
			engine.SetVariables(variables)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Variables watcher stopped", zap.Error(err))
		}
	}()
	return nil
}

func startMetricsServer(addr string, m *metrics.Metrics, logger *zap.Logger, errChan chan<- error) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()
	return srv
}

func shutdownMetricsServer(srv *http.Server, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("Metrics server shutdown failed", zap.Error(err))
	}
}
