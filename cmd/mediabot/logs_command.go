package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mediabot/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		follow  bool
		lines   int
		jobID   string
		account int64
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Paths.LogDir) == "" {
				return fmt.Errorf("paths.log_dir is not configured; the daemon only logs to stderr")
			}
			path := filepath.Join(cfg.Paths.LogDir, "mediabot.log")

			opts := logs.TailOptions{
				Offset: -1,
				Limit:  max(lines, 0),
				Filter: logs.Filter{JobID: strings.TrimSpace(jobID), AccountID: account},
			}
			runCtx := cmd.Context()
			printed := false
			for {
				result, err := logs.Tail(runCtx, path, opts)
				if err != nil {
					if follow && runCtx.Err() != nil {
						return nil
					}
					return fmt.Errorf("tail logs: %w", err)
				}
				for _, line := range result.Lines {
					fmt.Fprintln(cmd.OutOrStdout(), line)
					printed = true
				}
				if !follow {
					if !printed {
						fmt.Fprintln(cmd.OutOrStdout(), "No log entries available")
					}
					return nil
				}
				opts.Offset = result.Offset
				opts.Follow = true
				opts.Wait = time.Second
				if runCtx.Err() != nil {
					return nil
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of lines to show (0 for all)")
	cmd.Flags().StringVar(&jobID, "job", "", "Only lines for this job id")
	cmd.Flags().Int64Var(&account, "account", 0, "Only lines for this account id")
	return cmd
}
