package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/Andrandra1na/AMER-SMA/metrics"
)

var analyzeSession int64

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one session analysis in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		if analyzeSession <= 0 {
			return errors.New("--session is required")
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), conf.JobTimeout())
		defer cancel()
		out := buildPipeline(st, metrics.New()).Run(ctx, analyzeSession)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
		if !out.Success() {
			return out.Err
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().Int64Var(&analyzeSession, "session", 0, "session id to analyze")
}
