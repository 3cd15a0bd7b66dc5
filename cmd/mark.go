package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendx/internal/annotate"
	"github.com/kozaktomas/attendx/internal/session"
)

var markCmd = &cobra.Command{
	Use:   "mark <image>...",
	Short: "Recognise faces in class photos and mark attendance",
	Long: `Detect every face in the given images, match it against the registered
people and mark attendance for the subject in today's sheet.

A person already marked within the cooldown keeps the earlier time.
Images without faces are reported and skipped.

Examples:
  # Mark attendance for Math from two photos
  attendx mark --subject math class1.jpg class2.jpg

  # Stricter matching, keep annotated copies
  attendx mark --subject "data structures" --threshold 0.6 --annotate-dir out photo.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMark,
}

func init() {
	rootCmd.AddCommand(markCmd)

	addMatchingFlags(markCmd)
	markCmd.Flags().String("annotate-dir", "", "Save annotated copies of the images to this directory")
}

func runMark(cmd *cobra.Command, args []string) error {
	annotateDir := mustGetString(cmd, "annotate-dir")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	subject, err := resolveSubject(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	sess, be, det, err := openSession(ctx, cfg, subject)
	if err != nil {
		return err
	}
	defer be.Close()
	defer det.Close()

	failed := 0
	for _, path := range args {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fmt.Printf("\n%s\n", path)
		data, err := readImage(path)
		if err != nil {
			fmt.Printf("  Error: %v\n", err)
			failed++
			continue
		}

		report, err := sess.Process(ctx, data)
		if errors.Is(err, session.ErrNoFaces) {
			fmt.Println("  No faces detected in the image.")
			continue
		}
		if report == nil {
			fmt.Printf("  Error: %v\n", err)
			failed++
			continue
		}

		fmt.Printf("  Faces: %d, matched: %d\n", len(report.Faces), report.Matched())
		for _, line := range report.Messages() {
			fmt.Printf("  %s\n", line)
		}
		if err != nil {
			// the report is complete but the sheet was not written
			return err
		}

		if annotateDir != "" {
			out := filepath.Join(annotateDir, annotatedName(path))
			if err := annotate.Save(out, report.Image); err != nil {
				fmt.Printf("  Warning: %v\n", err)
			} else {
				fmt.Printf("  Annotated image saved to %s\n", out)
			}
		}
	}

	fmt.Printf("\nAttendance for %s saved to %s (%d present)\n", subject, sess.SheetPath(), len(sess.Entries()))
	if failed > 0 {
		return fmt.Errorf("%d of %d images could not be processed", failed, len(args))
	}
	return nil
}

// annotatedName keeps the base name and extension of jpg/png inputs,
// everything else becomes PNG.
func annotatedName(path string) string {
	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	switch ext {
	case ".jpg", ".jpeg", ".png":
		return stem + "_annotated" + ext
	default:
		return stem + "_annotated.png"
	}
}
