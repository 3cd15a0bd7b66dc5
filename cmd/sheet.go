package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendx/internal/constants"
	"github.com/kozaktomas/attendx/internal/facematch"
	"github.com/kozaktomas/attendx/internal/sheet"
)

var sheetCmd = &cobra.Command{
	Use:   "sheet",
	Short: "Print recorded attendance for a subject",
	Long: `Print the rows of a subject's sheet for one day. Without --subject the
sheets present in the day's workbook are listed.

Examples:
  attendx sheet --subject math
  attendx sheet --subject math --date 2025-03-14`,
	Args: cobra.NoArgs,
	RunE: runSheet,
}

func init() {
	rootCmd.AddCommand(sheetCmd)

	sheetCmd.Flags().String("subject", "", "Subject name")
	sheetCmd.Flags().String("date", "", "Day to show as YYYY-MM-DD (default today)")
}

func runSheet(cmd *cobra.Command, args []string) error {
	subject := facematch.NormalizeSubject(mustGetString(cmd, "subject"))
	dateFlag := mustGetString(cmd, "date")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	date, err := parseDay(dateFlag)
	if err != nil {
		return err
	}

	book, err := sheet.Open(cfg.Attendance.Dir, date)
	if err != nil {
		return err
	}
	if _, err := os.Stat(book.Path()); errors.Is(err, os.ErrNotExist) {
		fmt.Printf("No attendance recorded on %s (%s does not exist)\n", date.Format(constants.DateLayout), book.Path())
		return nil
	}

	if subject == "" {
		names, err := book.Sheets()
		if err != nil {
			return err
		}
		fmt.Printf("Sheets in %s:\n", book.Path())
		for _, name := range names {
			fmt.Printf("  %s\n", name)
		}
		return nil
	}

	entries, err := book.Load(subject)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTIME")
	fmt.Fprintln(w, "----\t----")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\n", e.Name, e.At.Format(constants.TimeLayout))
	}
	w.Flush()

	fmt.Printf("\nTotal: %d present in %s\n", len(entries), subject)
	return nil
}
