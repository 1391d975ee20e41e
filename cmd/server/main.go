package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mx-space/tldr/internal/app"
	"github.com/mx-space/tldr/internal/config"
	"github.com/mx-space/tldr/internal/pkg/nativelog"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	var configPath string
	root := &cobra.Command{
		Use:           "tldr",
		Short:         "AI TL;DR summaries for host documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file (default "+config.DefaultConfigPath+", or $"+config.EnvConfigPath+")")

	root.AddCommand(serveCMD(&configPath), queueCMD(&configPath), testConnectionCMD(&configPath))
	if err := root.Execute(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func serveCMD(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(*configPath)
		},
	}
}

// bootstrap loads config, builds the logger, and wires the application.
func bootstrap(ctx context.Context, configPath string) (*app.App, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger, err := nativelog.NewZapLogger(nativelog.Options{Dev: cfg.IsDev(), Dir: cfg.LogDir, Level: zapcore.InfoLevel})
	if err != nil {
		logger, _ = zap.NewProduction()
		logger.Warn("native log pipeline unavailable, fallback to zap production logger", zap.Error(err))
	}

	application, err := app.New(ctx, logger, cfg)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return application, logger, nil
}

func serve(configPath string) error {
	application, logger, err := bootstrap(context.Background(), configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	application.Start(context.Background())

	srv := &http.Server{
		Addr:              application.Addr(),
		Handler:           application.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("forced shutdown", zap.Error(err))
	}
	application.Shutdown()
	logger.Info("server exited")
	return nil
}
