package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/paperdigest/paper-service/internal/config"
	"github.com/paperdigest/paper-service/internal/pipeline"
	"github.com/paperdigest/paper-service/internal/server"
)

var (
	servePort      int
	serveScheduler bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		zap.L().Info("paper sources registered", zap.Strings("sources", env.Crawlers.Sources()))

		serverCfg := cfg.Server
		if servePort != 0 {
			serverCfg = config.ServerConfig{Port: servePort}
		}
		srv := server.New(env.Store, env.Submitter, env.Pipeline, serverCfg, cfg.Crawl)

		if serveScheduler {
			sched := pipeline.NewScheduler(env.Pipeline, cfg.Crawl)
			go sched.Run(ctx)
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Error("shutdown failed", zap.Error(err))
			}
		}()

		if err := srv.Start(); err != nil {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveScheduler, "scheduler", true, "run the daily crawl scheduler")
	rootCmd.AddCommand(serveCmd)
}
