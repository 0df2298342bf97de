package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/duekeeper/duekeeper/internal/core/db"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent run summaries for an entity",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().String("entity", "", "entity name (required)")
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to show")
	historyCmd.MarkFlagRequired("entity")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if dbURL == "" {
		return fmt.Errorf("--db-url required")
	}
	entity, _ := cmd.Flags().GetString("entity")
	limit, _ := cmd.Flags().GetInt("limit")

	database, err := db.Open(dbURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	store, err := db.NewRunStore(database)
	if err != nil {
		return err
	}
	runs, err := store.ListRuns(entity, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Printf("no runs recorded for %s\n", entity)
		return nil
	}

	fmt.Printf("%-36s  %-9s  %7s  %10s  %8s  %s\n",
		"RUN", "STATUS", "RECORDS", "UNRESOLVED", "DURATION", "STARTED")
	for _, r := range runs {
		fmt.Printf("%-36s  %-9s  %7d  %10d  %7dms  %s\n",
			r.RunID, r.Status, r.TotalRecords, r.UnresolvedRecords,
			r.DurationMs, r.StartedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
