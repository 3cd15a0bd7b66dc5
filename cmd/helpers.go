package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendx/internal/config"
	"github.com/kozaktomas/attendx/internal/database/postgres"
	"github.com/kozaktomas/attendx/internal/detector"
	"github.com/kozaktomas/attendx/internal/embeddings"
	"github.com/kozaktomas/attendx/internal/facematch"
	"github.com/kozaktomas/attendx/internal/session"
	"github.com/kozaktomas/attendx/internal/sheet"
)

// backend bundles the embeddings repository with the optional database pool.
type backend struct {
	repo embeddings.Repository
	pool *postgres.Pool
}

func (b *backend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

// markRecorder returns the database mark log, or nil for the file store.
func (b *backend) markRecorder() session.MarkRecorder {
	if b.pool == nil {
		return nil
	}
	return postgres.NewMarkRepository(b.pool)
}

// openBackend picks PostgreSQL when DATABASE_URL is set, the gob file otherwise.
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	if !cfg.UsesDatabase() {
		return &backend{repo: embeddings.NewFileRepository(cfg.Store.Path)}, nil
	}

	fmt.Println("Connecting to PostgreSQL database...")
	pool, err := postgres.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	return &backend{repo: postgres.NewPersonRepository(pool), pool: pool}, nil
}

// storeLocation describes where embeddings are kept, for status lines.
func storeLocation(cfg *config.Config) string {
	if cfg.UsesDatabase() {
		return "PostgreSQL"
	}
	return cfg.Store.Path
}

// addMatchingFlags registers the flags shared by mark and serve.
func addMatchingFlags(cmd *cobra.Command) {
	cmd.Flags().String("subject", "", "Subject name (prompted when empty)")
	cmd.Flags().Float64("threshold", 0, "Similarity threshold, a face matches when similarity is above it (default from config)")
	cmd.Flags().Duration("cooldown", 0, "Minimum time between two marks of the same person (default from config)")
}

// loadConfig loads the configuration and applies command line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if cmd.Flags().Changed("threshold") {
		cfg.Matching.Threshold = mustGetFloat64(cmd, "threshold")
	}
	if cmd.Flags().Changed("cooldown") {
		cfg.Attendance.Cooldown = mustGetDuration(cmd, "cooldown")
	}
	return cfg, cfg.Validate()
}

// resolveSubject returns the --subject flag or prompts for it on stdin.
func resolveSubject(cmd *cobra.Command) (string, error) {
	subject := mustGetString(cmd, "subject")
	if subject == "" {
		var err error
		subject, err = promptSubject(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return "", err
		}
	}

	subject = facematch.NormalizeSubject(subject)
	if subject == "" {
		return "", errors.New("subject name is required")
	}
	return subject, nil
}

func promptSubject(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Enter the subject name: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading subject: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// openSession loads the embeddings store, starts the detector and prepares
// today's sheet for the subject. The caller closes the returned backend and
// detector.
func openSession(ctx context.Context, cfg *config.Config, subject string) (*session.Session, *backend, detector.Detector, error) {
	be, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := be.repo.Load(ctx)
	if err != nil {
		be.Close()
		return nil, nil, nil, err
	}
	fmt.Printf("Loaded embeddings for %d individuals from %s\n", store.Len(), storeLocation(cfg))

	det, err := detector.New(cfg)
	if err != nil {
		be.Close()
		return nil, nil, nil, fmt.Errorf("creating detector: %w", err)
	}

	book, err := sheet.Open(cfg.Attendance.Dir, time.Now())
	if err != nil {
		det.Close()
		be.Close()
		return nil, nil, nil, err
	}

	sess := session.New(store, det, book, session.Options{
		Subject:   subject,
		Threshold: cfg.Matching.Threshold,
		Cooldown:  cfg.Attendance.Cooldown,
		Recorder:  be.markRecorder(),
	})

	setup, err := sess.Prepare(cfg.Attendance.Preload)
	if err != nil {
		det.Close()
		be.Close()
		return nil, nil, nil, err
	}
	reportSetup(subject, book.Path(), setup)

	return sess, be, det, nil
}

func reportSetup(subject, path string, setup *session.Setup) {
	switch setup.Sheet {
	case sheet.FileCreated:
		fmt.Printf("Created %s with sheet %q\n", path, subject)
	case sheet.SheetAdded:
		fmt.Printf("Added sheet %q to %s\n", subject, path)
	default:
		fmt.Printf("Using sheet %q in %s\n", subject, path)
	}
	if setup.PreloadErr != nil {
		fmt.Printf("Warning: could not read existing attendance, starting empty: %v\n", setup.PreloadErr)
	} else if setup.Preloaded > 0 {
		fmt.Printf("Loaded %d existing attendance rows\n", setup.Preloaded)
	}
}

// readImage reads an image file, rejecting anything that is not an image.
func readImage(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from command line
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !detector.IsImage(data) {
		return nil, fmt.Errorf("%s is not a supported image", path)
	}
	return data, nil
}
