package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/cmena/presente/internal/academic"
	"github.com/cmena/presente/internal/database"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage class sessions",
}

var sessionsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a class session for the resolved academic period",
	Long: `Create a session keyed by the academic period of the given date. The
period (semester and cut) is resolved from the configured calendar and
the session number is the next free one for the period and course.`,
	RunE: runSessionsCreate,
}

var sessionsEnableCmd = &cobra.Command{
	Use:   "enable <session-id>",
	Short: "Open a session for attendance registration",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsEnable,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsCreateCmd)
	sessionsCmd.AddCommand(sessionsEnableCmd)

	sessionsCreateCmd.Flags().String("date", "", "Session date as YYYY-MM-DD (defaults to today)")
	sessionsCreateCmd.Flags().String("start", "", "Start time as HH:MM (defaults to now)")
	sessionsCreateCmd.Flags().Int("duration", 0, "Session length in minutes (defaults to calendar setting)")
	sessionsCreateCmd.Flags().String("course", "", "Course tag (defaults to calendar setting)")
	sessionsCreateCmd.Flags().String("room", "", "Room label (defaults to calendar setting)")
	sessionsCreateCmd.Flags().String("name", "", "Session display name")
	sessionsCreateCmd.Flags().Int("tolerance", -1, "Lateness tolerance in minutes (defaults to calendar setting)")
	sessionsCreateCmd.Flags().Bool("enable", false, "Open the session for attendance immediately")
}

func runSessionsCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	now := time.Now()
	day := now
	if s := mustGetString(cmd, "date"); s != "" {
		day, err = time.ParseInLocation("2006-01-02", s, now.Location())
		if err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
		}
	}

	start := now
	if s := mustGetString(cmd, "start"); s != "" {
		t, err := time.Parse("15:04", s)
		if err != nil {
			return fmt.Errorf("invalid start time %q, expected HH:MM", s)
		}
		start = time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	} else {
		start = time.Date(day.Year(), day.Month(), day.Day(), now.Hour(), now.Minute(), 0, 0, now.Location())
	}

	duration := academic.DefaultDuration()
	if m := mustGetInt(cmd, "duration"); m > 0 {
		duration = time.Duration(m) * time.Minute
	}

	course := mustGetString(cmd, "course")
	if course == "" {
		course = academic.DefaultCourse()
	}
	room := mustGetString(cmd, "room")
	if room == "" {
		room = academic.DefaultRoom()
	}
	tolerance := mustGetInt(cmd, "tolerance")
	if tolerance < 0 {
		tolerance = academic.DefaultTolerance()
	}

	period := academic.ResolvePeriod(day)
	number, err := store.NextSessionNumber(ctx, period.Year, period.Semester, period.Cut, course)
	if err != nil {
		return err
	}

	name := mustGetString(cmd, "name")
	if name == "" {
		name = fmt.Sprintf("Session %d (%s cut %d)", number, period.Semester, period.Cut)
	}

	sess, err := store.UpsertSession(ctx, database.Session{
		Year:             period.Year,
		Semester:         period.Semester,
		Cut:              period.Cut,
		Course:           course,
		Number:           number,
		Name:             name,
		Room:             room,
		ScheduledDate:    time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, now.Location()),
		StartTime:        start,
		EndTime:          start.Add(duration),
		AttendanceOpen:   mustGetBool(cmd, "enable"),
		ToleranceMinutes: tolerance,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created session %d: %s\n", sess.ID, sess.Name)
	fmt.Printf("  Period:  %s cut %d, number %d\n", sess.Semester, sess.Cut, sess.Number)
	fmt.Printf("  Course:  %s, room %s\n", sess.Course, sess.Room)
	fmt.Printf("  Time:    %s to %s (tolerance %d min)\n",
		sess.StartTime.Format("2006-01-02 15:04"), sess.EndTime.Format("15:04"), sess.ToleranceMinutes)
	if sess.AttendanceOpen {
		fmt.Println("  Attendance is open.")
	}
	return nil
}

func runSessionsEnable(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid session id %q", args[0])
	}

	ctx := context.Background()
	store, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := store.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("session %d not found", id)
	}

	if err := store.EnableAttendance(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Attendance open for session %d: %s\n", id, sess.Name)
	return nil
}
