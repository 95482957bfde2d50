package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/junctionhq/junction/pkg/config"
	"github.com/junctionhq/junction/pkg/connector/registry"
	"github.com/junctionhq/junction/pkg/logger"
	"github.com/junctionhq/junction/pkg/observability"
	"github.com/junctionhq/junction/pkg/webhook"

	// Import provider adapters to register them
	_ "github.com/junctionhq/junction/pkg/connector/providers/httpapi"
)

var version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "junction",
		Short: "Junction - resilient connector framework and webhook receiver",
		Long: `Junction hosts resilient connectors to external services and receives
their webhooks: it verifies provider signatures, routes events to
registered handlers, and exposes Prometheus metrics.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Junction v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "connectors",
		Short: "List available provider adapters",
		Run: func(cmd *cobra.Command, args []string) {
			for _, desc := range registry.List() {
				fmt.Printf("%-12s %s (capabilities: %s)\n",
					desc.ID, desc.Name, strings.Join(desc.Capabilities, ", "))
			}
		},
	})

	root.AddCommand(newServeCmd())
	root.AddCommand(newVaultCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook receiver",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServerConfig(configFile)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "path to config file (default junction.yaml)")
	return cmd
}

// loadServerConfig reads the server configuration from a YAML file and
// the environment. Environment variables use the JUNCTION_ prefix, e.g.
// JUNCTION_ADDR overrides addr.
func loadServerConfig(path string) (*config.ServerConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("JUNCTION")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("junction")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/junction")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// No config file; defaults and environment are enough to run.
	}

	var cfg config.ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func serve(ctx context.Context, cfg *config.ServerConfig) error {
	if err := logger.Init(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		Encoding:    cfg.Log.Encoding,
	}); err != nil {
		return err
	}
	defer logger.Sync()

	log := logger.Get()

	if cfg.Tracing.Enabled {
		shutdown, err := observability.InitTracing(observability.TracingConfig{
			ServiceName:  "junction",
			SamplingRate: cfg.Tracing.SamplingRate,
			Stdout:       cfg.Tracing.Stdout,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn("trace provider shutdown failed", zap.Error(err))
			}
		}()
	}

	manager := webhook.NewManager()
	for source, src := range cfg.Sources {
		manager.SetSignatureSecret(source, src.Secret)
		log.Info("configured webhook source", zap.String("source", source),
			zap.Bool("verified", src.Secret != ""))
	}

	mux := http.NewServeMux()
	mux.Handle("/webhooks", webhook.NewHTTPHandler(manager))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	server := &http.Server{
		Addr:        cfg.Addr,
		Handler:     observability.TracingMiddleware("junction")(mux),
		ReadTimeout: cfg.ReadTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("webhook receiver listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
