package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediabot/internal/config"
	"mediabot/internal/services"
	"mediabot/internal/store"
	"mediabot/internal/textutil"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect download job history",
	}
	cmd.AddCommand(newJobsListCommand(ctx))
	cmd.AddCommand(newJobsShowCommand(ctx))
	return cmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var (
		account int64
		state   string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				jobs, err := st.ListJobs(cmd.Context(), store.JobFilter{
					AccountID: account,
					State:     strings.ToLower(strings.TrimSpace(state)),
					Limit:     limit,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs found")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Account", "State", "Title", "Size", "Error", "Created"},
					buildJobRows(jobs),
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&account, "account", 0, "Only jobs for this account id")
	cmd.Flags().StringVar(&state, "state", "", "Only jobs in this state (completed, failed, downloading, ...)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to show")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				rec, err := st.GetJob(cmd.Context(), strings.TrimSpace(args[0]))
				if errors.Is(err, services.ErrNotFound) {
					return fmt.Errorf("job %s not found", args[0])
				}
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), renderJob(rec))
				return nil
			})
		},
	}
}

func buildJobRows(jobs []store.JobRecord) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, rec := range jobs {
		rows = append(rows, []string{
			shortID(rec.ID),
			strconv.FormatInt(rec.AccountID, 10),
			rec.State,
			truncate(dash(rec.Title), 40),
			sizeLabel(rec.SizeBytes),
			dash(rec.ErrorKind),
			humanize.Time(rec.CreatedAt),
		})
	}
	return rows
}

func renderJob(rec store.JobRecord) string {
	finished := "-"
	if rec.FinishedAt != nil {
		finished = fmt.Sprintf("%s (took %s)", rec.FinishedAt.Local().Format(time.DateTime), rec.FinishedAt.Sub(rec.CreatedAt).Round(time.Second))
	}
	duration := "-"
	if rec.DurationSeconds > 0 {
		duration = textutil.FormatDuration(rec.DurationSeconds)
	}
	rows := [][]string{
		{"ID", rec.ID},
		{"Account", strconv.FormatInt(rec.AccountID, 10)},
		{"URL", rec.SourceURL},
		{"Title", dash(rec.Title)},
		{"Extractor", dash(rec.Extractor)},
		{"Profile", dash(rec.Profile)},
		{"State", rec.State},
		{"Duration", duration},
		{"Size", sizeLabel(rec.SizeBytes)},
		{"Watermarked", yesNo(rec.Watermarked)},
		{"Bonus used", yesNo(rec.UsedBonus)},
		{"Error kind", dash(rec.ErrorKind)},
		{"Error", dash(rec.ErrorMessage)},
		{"Created", rec.CreatedAt.Local().Format(time.DateTime)},
		{"Finished", finished},
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}

func sizeLabel(size int64) string {
	if size <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(size))
}

func dash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
