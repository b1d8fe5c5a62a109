package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/mcsbridge/internal/store"
	"github.com/spf13/cobra"
)

var (
	runsDataDir   string
	keepLast      int
	olderThanDays int
	forceClean    bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage saved runs",
	Long:  `List, inspect and clean runs saved by "run --save" and by the job server.`,
}

var listRunsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved runs",
	RunE:  runListRuns,
}

var showRunCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a saved run as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowRun,
}

var cleanRunsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete old runs",
	Long: `Delete old runs and their traces based on a retention policy.
You can keep only the newest N runs or delete runs older than N days.`,
	RunE: runCleanRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(listRunsCmd)
	runsCmd.AddCommand(showRunCmd)
	runsCmd.AddCommand(cleanRunsCmd)

	runsCmd.PersistentFlags().StringVar(&runsDataDir, "data-dir", "", "Run store directory (default from config)")

	cleanRunsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the newest N runs (0 = keep all)")
	cleanRunsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete runs older than N days (0 = no age limit)")
	cleanRunsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func openRunStore() (store.Store, error) {
	runStore, err := store.Open(cfg.Store, dataDir(runsDataDir))
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return runStore, nil
}

func runListRuns(cmd *cobra.Command, args []string) error {
	runStore, err := openRunStore()
	if err != nil {
		return err
	}
	defer runStore.Close()

	infos, err := runStore.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(infos) == 0 {
		printf(cmd, "No runs found.\n")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tFINISHED\tOBJECTIVE\tN\tEVALS\tBEST VALUE\tSTATUS\tSIZE")
	fmt.Fprintln(w, "------\t--------\t---------\t-\t-----\t----------\t------\t----")

	for _, info := range infos {
		// run directory: record (fs store) and trace
		sizeStr := "-"
		if size, err := getDirSize(filepath.Join(dataDir(runsDataDir), "runs", info.ID)); err == nil {
			sizeStr = formatBytes(size)
		}

		status := info.ExitStatus
		if info.Error != "" {
			status = "error"
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%g\t%s\t%s\n",
			shortID(info.ID),
			info.FinishedAt.Format("2006-01-02 15:04:05"),
			info.Objective,
			info.Dimension,
			info.Evaluations,
			float64(info.BestValue),
			status,
			sizeStr,
		)
	}

	w.Flush()

	printf(cmd, "\nTotal runs: %d\n", len(infos))
	return nil
}

func runShowRun(cmd *cobra.Command, args []string) error {
	runStore, err := openRunStore()
	if err != nil {
		return err
	}
	defer runStore.Close()

	run, err := runStore.LoadRun(args[0])
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}
	printf(cmd, "%s\n", data)
	return nil
}

func runCleanRuns(cmd *cobra.Command, args []string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	runStore, err := openRunStore()
	if err != nil {
		return err
	}
	defer runStore.Close()

	infos, err := runStore.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(infos) == 0 {
		printf(cmd, "No runs to clean.\n")
		return nil
	}

	toDelete := selectRunsForDeletion(infos, keepLast, olderThanDays, time.Now())

	if len(toDelete) == 0 {
		printf(cmd, "No runs match deletion criteria.\n")
		return nil
	}

	printf(cmd, "Found %d run(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		printf(cmd, "  - %s (%s, %s)\n", shortID(info.ID), info.Objective, info.FinishedAt.Format("2006-01-02 15:04:05"))
	}

	if !forceClean {
		printf(cmd, "\nProceed with deletion? [y/N]: ")
		var response string
		fmt.Fscanln(cmd.InOrStdin(), &response)
		if response != "y" && response != "Y" {
			printf(cmd, "Aborted.\n")
			return nil
		}
	}

	deleted := 0
	failed := 0
	for _, info := range toDelete {
		if err := deleteRun(runStore, dataDir(runsDataDir), info.ID); err != nil {
			slog.Error("Failed to delete run", "run_id", info.ID, "error", err)
			failed++
		} else {
			slog.Info("Deleted run", "run_id", info.ID)
			deleted++
		}
	}

	printf(cmd, "\nDeleted %d run(s), %d failed.\n", deleted, failed)
	return nil
}

// deleteRun removes the record and its trace. The filesystem store already
// removes the trace with the run directory.
func deleteRun(runStore store.Store, dir, id string) error {
	if err := runStore.DeleteRun(id); err != nil {
		return err
	}
	return store.DeleteTrace(dir, id)
}

// selectRunsForDeletion applies the retention policy: runs older than the
// age limit, plus the oldest runs beyond the newest keepLast.
func selectRunsForDeletion(infos []store.RunInfo, keepLast int, olderThanDays int, now time.Time) []store.RunInfo {
	sorted := make([]store.RunInfo, len(infos))
	copy(sorted, infos)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].FinishedAt.Before(sorted[j].FinishedAt)
	})

	selected := make(map[string]bool)
	var toDelete []store.RunInfo
	add := func(info store.RunInfo) {
		if !selected[info.ID] {
			selected[info.ID] = true
			toDelete = append(toDelete, info)
		}
	}

	if olderThanDays > 0 {
		cutoff := now.AddDate(0, 0, -olderThanDays)
		for _, info := range sorted {
			if info.FinishedAt.Before(cutoff) {
				add(info)
			}
		}
	}

	if keepLast > 0 && len(sorted) > keepLast {
		for _, info := range sorted[:len(sorted)-keepLast] {
			add(info)
		}
	}

	return toDelete
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
