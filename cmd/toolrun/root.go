package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/toolrun/internal/artifact"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/config"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/events"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/logging"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/metrics"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/platform"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/service"
)

// app holds the persistent flags and the collaborators tests replace.
type app struct {
	configPath  string
	toolkitsDir string
	logLevel    string
	metricsAddr string

	platform *platform.Info
	runner   artifact.Runner
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "toolrun",
		Short:         "Fetch, verify and run toolkit binaries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a TOML settings file (default $"+config.EnvConfig+")")
	cmd.PersistentFlags().StringVar(&a.toolkitsDir, "toolkits-dir", "", "Directory holding one subdirectory per toolkit")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newPlatformCmd(a))
	cmd.AddCommand(newToolsCmd(a))
	cmd.AddCommand(newBinaryCmd(a))
	cmd.AddCommand(newResourceCmd(a))
	cmd.AddCommand(newPrepareCmd(a))
	cmd.AddCommand(newExecCmd(a))
	cmd.AddCommand(newBashCmd(a))

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("toolrun %s\n", Version)
		},
	}
}

// settings resolves the settings file and environment, then applies flags.
func (a *app) settings() (config.Settings, error) {
	cfg, err := config.Resolve(a.configPath)
	if err != nil {
		return config.Settings{}, err
	}
	if a.toolkitsDir != "" {
		cfg.ToolkitsDir = a.toolkitsDir
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.metricsAddr != "" {
		cfg.MetricsAddr = a.metricsAddr
	}
	return cfg, cfg.Validate()
}

// engine builds a service.Engine writing logs and events to the command's
// output. The returned func stops the metrics server, if any.
func (a *app) engine(cmd *cobra.Command) (*service.Engine, func(), error) {
	cfg, err := a.settings()
	if err != nil {
		return nil, nil, err
	}

	out := cmd.OutOrStdout()
	logger := logging.NewLogger(logging.Options{
		Name:   "toolrun",
		Level:  cfg.LogLevel,
		JSON:   cfg.JSONLog,
		Output: out,
	})

	engine, err := service.New(cfg, service.Options{
		Reporter: events.NewJSONReporter(out),
		Logger:   logger,
		Platform: a.platform,
		Runner:   a.runner,
	})
	if err != nil {
		return nil, nil, err
	}

	return engine, serveMetrics(cfg.MetricsAddr, logger), nil
}

// serveMetrics exposes /metrics on addr until the returned func is called.
func serveMetrics(addr string, logger hclog.Logger) func() {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	logger.Debug("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
