package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/paperdigest/paper-service/internal/model"
)

var (
	submitSource  string
	submitProcess bool
)

var submitCmd = &cobra.Command{
	Use:   "submit <paper-id> [paper-id...]",
	Short: "Submit papers by ID for ingestion",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		results, err := env.Submitter.Submit(ctx, submitSource, args)
		if err != nil {
			return err
		}

		for _, result := range results {
			fmt.Printf("%-24s %-10s %s\n", result.SourceID, result.Status, result.Message)
		}

		if !submitProcess {
			return nil
		}
		for _, result := range results {
			if result.Status != model.SubmissionQueued {
				continue
			}
			if err := env.Pipeline.ProcessPaper(ctx, result.PaperID); err != nil {
				fmt.Printf("%-24s processing failed: %v\n", result.SourceID, err)
			}
		}
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitSource, "source", "arxiv", "paper source")
	submitCmd.Flags().BoolVar(&submitProcess, "process", false, "run enrichment after submitting")
	rootCmd.AddCommand(submitCmd)
}
