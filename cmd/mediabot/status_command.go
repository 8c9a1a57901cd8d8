package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediabot/internal/config"
	"mediabot/internal/daemon"
	"mediabot/internal/deps"
	"mediabot/internal/preflight"
	"mediabot/internal/staging"
	"mediabot/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, account and job status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				writeSection(out, "System Status", colorize, systemLines(cmd.Context(), cfg, st, colorize))
				writeSection(out, "Dependencies", colorize, dependencyLines(preflight.CheckSystemDeps(cfg), colorize))
				writeSection(out, "Work Directory", colorize, workDirLines(cfg, colorize))

				stats, err := st.AccountStats(cmd.Context(), time.Now())
				if err != nil {
					return err
				}
				writeSection(out, "Accounts", colorize, []string{
					renderStatusLine("Total", statusInfo, strconv.Itoa(stats.Total), colorize),
					renderStatusLine("Paid", statusInfo, strconv.Itoa(stats.Paid), colorize),
					renderStatusLine("Lifetime VIP", statusInfo, strconv.Itoa(stats.Lifetime), colorize),
				})

				for _, line := range renderSectionHeader("Jobs (last 24h)", colorize) {
					fmt.Fprintln(out, line)
				}
				counts, err := st.JobStateCounts(cmd.Context(), time.Now().Add(-24*time.Hour))
				if err != nil {
					return err
				}
				rows := buildJobStateRows(counts)
				if len(rows) == 0 {
					fmt.Fprintln(out, "No jobs in the last 24 hours")
					return nil
				}
				fmt.Fprint(out, renderTable([]string{"State", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func writeSection(out io.Writer, title string, colorize bool, lines []string) {
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(out, line)
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out)
}

func systemLines(ctx context.Context, cfg *config.Config, st *store.Store, colorize bool) []string {
	var lines []string

	running, pid, err := daemon.Probe(cfg)
	switch {
	case err != nil:
		lines = append(lines, renderStatusLine("Daemon", statusWarn, err.Error(), colorize))
	case running && pid > 0:
		lines = append(lines, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", pid), colorize))
	case running:
		lines = append(lines, renderStatusLine("Daemon", statusOK, "Running", colorize))
	default:
		lines = append(lines, renderStatusLine("Daemon", statusInfo, "Not running", colorize))
	}

	if err := cfg.RequireTelegram(); err != nil {
		lines = append(lines, renderStatusLine("Telegram token", statusError, "Missing", colorize))
	} else {
		lines = append(lines, renderStatusLine("Telegram token", statusOK, "Configured", colorize))
	}

	if err := st.Ping(ctx); err != nil {
		lines = append(lines, renderStatusLine("Database", statusError, err.Error(), colorize))
	} else {
		lines = append(lines, renderStatusLine("Database", statusOK, st.Path(), colorize))
	}

	for _, result := range []preflight.Result{
		preflight.CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		preflight.CheckFreeSpace("Work directory space", cfg.Paths.WorkDir, preflight.MinFreeBytes(cfg)),
		preflight.CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
	} {
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}

	notify := renderStatusLine("Notifications", statusWarn, "ntfy topic not configured", colorize)
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		notify = renderStatusLine("Notifications", statusOK, cfg.Notifications.NtfyTopic, colorize)
	}
	lines = append(lines, notify)

	watermark := renderStatusLine("Watermark", statusInfo, "Disabled (no asset)", colorize)
	if asset := strings.TrimSpace(cfg.Watermark.AssetPath); asset != "" {
		watermark = renderStatusLine("Watermark", statusOK, asset, colorize)
	}
	return append(lines, watermark)
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses))
	for _, s := range statuses {
		switch {
		case s.Available:
			lines = append(lines, renderStatusLine(s.Name, statusOK, s.Path, colorize))
		case s.Optional:
			lines = append(lines, renderStatusLine(s.Name, statusWarn, s.Detail+" (optional: "+s.Description+")", colorize))
		default:
			lines = append(lines, renderStatusLine(s.Name, statusError, s.Detail+" ("+s.Description+")", colorize))
		}
	}
	return lines
}

func workDirLines(cfg *config.Config, colorize bool) []string {
	dirs, err := staging.ListDirectories(cfg.Paths.WorkDir)
	if err != nil {
		return []string{renderStatusLine("Job directories", statusError, err.Error(), colorize)}
	}
	if len(dirs) == 0 {
		return []string{renderStatusLine("Job directories", statusOK, "None", colorize)}
	}
	oldest := dirs[0].ModTime
	for _, d := range dirs[1:] {
		if d.ModTime.Before(oldest) {
			oldest = d.ModTime
		}
	}
	kind := statusInfo
	if hours := cfg.Maintenance.StaleJobHours; hours > 0 && time.Since(oldest) > time.Duration(hours)*time.Hour {
		kind = statusWarn
	}
	return []string{
		renderStatusLine("Job directories", kind, fmt.Sprintf("%d using %s, oldest %s", len(dirs),
			humanize.IBytes(uint64(staging.TotalSize(dirs))), humanize.Time(oldest)), colorize),
	}
}

func buildJobStateRows(counts map[string]int) [][]string {
	states := make([]string, 0, len(counts))
	for state := range counts {
		states = append(states, state)
	}
	sort.Strings(states)
	rows := make([][]string, 0, len(states))
	for _, state := range states {
		rows = append(rows, []string{state, strconv.Itoa(counts[state])})
	}
	return rows
}
