package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendx/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web front end",
	Long: `Start the AttendX web server for one subject.
The browser page uploads a class photo, shows who was recognised and
offers the annotated image for download. Attendance is written to
today's sheet after every photo.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	addMatchingFlags(serveCmd)
	serveCmd.Flags().Int("port", 0, "Port to listen on (0 = config)")
	serveCmd.Flags().String("host", "", "Host to bind to (empty = config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	subject, err := resolveSubject(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, be, det, err := openSession(ctx, cfg, subject)
	if err != nil {
		return err
	}
	defer be.Close()
	defer det.Close()

	server := web.NewServer(cfg, sess)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting AttendX for %s on http://%s\n", subject, server.Addr())
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	if err := sess.Save(); err != nil {
		return fmt.Errorf("saving attendance: %w", err)
	}
	fmt.Printf("Attendance for %s saved to %s\n", subject, sess.SheetPath())
	return nil
}
