package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendx/internal/constants"
	"github.com/kozaktomas/attendx/internal/database/postgres"
	"github.com/kozaktomas/attendx/internal/facematch"
)

var marksCmd = &cobra.Command{
	Use:   "marks",
	Short: "Print the database log of attendance marks",
	Long: `Print every mark logged in PostgreSQL for a subject and day, including
marks later superseded in the sheet. Requires DATABASE_URL.

Examples:
  attendx marks --subject math
  attendx marks --subject math --date 2025-03-14`,
	Args: cobra.NoArgs,
	RunE: runMarks,
}

func init() {
	rootCmd.AddCommand(marksCmd)

	marksCmd.Flags().String("subject", "", "Subject name")
	marksCmd.Flags().String("date", "", "Day to show as YYYY-MM-DD (default today)")
}

func runMarks(cmd *cobra.Command, args []string) error {
	subject := facematch.NormalizeSubject(mustGetString(cmd, "subject"))
	if subject == "" {
		return errors.New("--subject is required")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.UsesDatabase() {
		return errors.New("DATABASE_URL environment variable is required")
	}

	from, err := parseDay(mustGetString(cmd, "date"))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	pool, err := postgres.Open(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	marks, err := postgres.NewMarkRepository(pool).List(ctx, subject, from, from.AddDate(0, 0, 1))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTIME\tSIMILARITY")
	fmt.Fprintln(w, "----\t----\t----------")
	for _, m := range marks {
		fmt.Fprintf(w, "%s\t%s\t%.3f\n", m.Name, m.MarkedAt.In(time.Local).Format(constants.TimeLayout), m.Similarity)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d marks for %s on %s\n", len(marks), subject, from.Format(constants.DateLayout))
	return nil
}

// parseDay returns local midnight of the given YYYY-MM-DD day, or of today.
func parseDay(value string) (time.Time, error) {
	if value == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local), nil
	}
	day, err := time.ParseInLocation(constants.DateLayout, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", value)
	}
	return day, nil
}
