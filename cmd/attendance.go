package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Inspect and maintain attendance records",
}

var attendanceClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete attendance records",
	Long: `Delete attendance records from the database. With --today only records
registered today are removed; --all wipes the whole table. Exactly one
of the two flags must be given.`,
	RunE: runAttendanceClear,
}

var attendanceExportCmd = &cobra.Command{
	Use:   "export <file.csv>",
	Short: "Export all attendance records to a CSV file",
	Args:  cobra.ExactArgs(1),
	RunE:  runAttendanceExport,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceClearCmd)
	attendanceCmd.AddCommand(attendanceExportCmd)

	attendanceClearCmd.Flags().Bool("today", false, "Delete only today's records")
	attendanceClearCmd.Flags().Bool("all", false, "Delete every record")
	attendanceClearCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
}

func runAttendanceClear(cmd *cobra.Command, args []string) error {
	today := mustGetBool(cmd, "today")
	all := mustGetBool(cmd, "all")
	if today == all {
		return fmt.Errorf("exactly one of --today or --all must be given")
	}

	ctx := context.Background()
	store, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	scope := "today's attendance records"
	if all {
		scope = "ALL attendance records"
	}
	if !mustGetBool(cmd, "yes") {
		if !confirmAction(fmt.Sprintf("Delete %s? [y/N] ", scope)) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	var deleted int64
	if all {
		deleted, err = store.ClearAll(ctx)
	} else {
		deleted, err = store.ClearToday(ctx, time.Now())
	}
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d records\n", deleted)
	return nil
}

func runAttendanceExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.ListAll(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No attendance records to export.")
		return nil
	}

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	bar := progressbar.NewOptions(len(entries),
		progressbar.OptionSetDescription("Exporting records"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("records"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	writer := csv.NewWriter(f)
	header := []string{"id", "session_id", "person_id", "person_name",
		"recorded_at", "method", "confidence", "status", "minutes_late"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range entries {
		row := []string{
			strconv.FormatInt(e.ID, 10),
			strconv.FormatInt(e.SessionID, 10),
			strconv.FormatInt(e.PersonID, 10),
			e.PersonName,
			e.RecordedAt.Format(time.RFC3339),
			e.Method,
			strconv.FormatFloat(e.Confidence, 'f', 4, 64),
			e.Status,
			strconv.Itoa(e.MinutesLate),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
		_ = bar.Add(1)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	fmt.Printf("\nExported %d records to %s\n", len(entries), args[0])
	return nil
}
