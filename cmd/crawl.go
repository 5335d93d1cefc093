package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/paperdigest/paper-service/internal/pipeline"
)

var crawlLoop bool

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Fetch and process recent papers for the configured categories",
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

		if crawlLoop {
			pipeline.NewScheduler(env.Pipeline, cfg.Crawl).Run(ctx)
			return nil
		}
		return env.Pipeline.CrawlOnce(ctx, cfg.Crawl)
	},
}

func init() {
	crawlCmd.Flags().BoolVar(&crawlLoop, "loop", false, "keep running on the daily schedule")
	rootCmd.AddCommand(crawlCmd)
}
