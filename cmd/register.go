package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendx/internal/config"
	"github.com/kozaktomas/attendx/internal/constants"
	"github.com/kozaktomas/attendx/internal/detector"
	"github.com/kozaktomas/attendx/internal/embeddings"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Compute face embeddings for every person in the dataset",
	Long: `Walk the dataset directory (one sub-directory per person, named after the
person) and compute a face embedding for every image. The first detected
face of each image is used; images without a face are skipped.

The resulting store replaces the previous one.

Examples:
  # Register everybody in ./faces
  attendx register

  # Use another dataset and keep one averaged vector per person
  attendx register --dataset ./students --average`,
	Args: cobra.NoArgs,
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)

	registerCmd.Flags().String("dataset", "faces", "Directory with one sub-directory of images per person")
	registerCmd.Flags().Bool("average", false, "Store one averaged vector per person instead of all vectors")
	registerCmd.Flags().Bool("verbose", false, "Print every skipped image")
}

func runRegister(cmd *cobra.Command, args []string) error {
	dataset := mustGetString(cmd, "dataset")
	average := mustGetBool(cmd, "average")
	verbose := mustGetBool(cmd, "verbose")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	dirs, err := embeddings.ScanDataset(dataset)
	if err != nil {
		return err
	}
	total := embeddings.CountImages(dirs)
	fmt.Printf("Found %d images of %d people in %s\n", total, len(dirs), dataset)

	det, err := detector.New(cfg)
	if err != nil {
		return fmt.Errorf("creating detector: %w", err)
	}
	defer det.Close()

	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.Close()

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Embedding faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var skipped []string
	store, report, err := embeddings.Register(ctx, det, dataset, embeddings.RegisterOptions{
		Average: average,
		Model:   modelName(cfg),
		Dim:     embeddingDim(cfg),
		OnImage: func(person, path string, used bool) {
			if !used {
				skipped = append(skipped, path)
			}
			_ = bar.Add(1)
		},
	})
	_ = bar.Finish()
	fmt.Println()
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	if verbose {
		for _, path := range skipped {
			fmt.Printf("  skipped %s\n", path)
		}
		fmt.Printf("Registered: %s\n", strings.Join(store.Names(), ", "))
	}
	for _, name := range report.Empty {
		fmt.Printf("Warning: no usable face for %s, not registered\n", name)
	}
	fmt.Printf("Images used: %d, skipped: %d\n", report.ImagesUsed, report.ImagesSkipped)

	if err := be.repo.Save(ctx, store); err != nil {
		return fmt.Errorf("saving embeddings: %w", err)
	}

	fmt.Printf("Saved embeddings for %d individuals to %s\n", report.People, storeLocation(cfg))
	return nil
}

// embeddingDim is the vector size the configured backend produces.
func embeddingDim(cfg *config.Config) int {
	if cfg.Detector.Backend == "dlib" {
		return constants.DlibEmbeddingDim
	}
	if cfg.Embedding.Dim <= 0 {
		return constants.FaceEmbeddingDim
	}
	return cfg.Embedding.Dim
}

// modelName records which model produced the stored vectors.
func modelName(cfg *config.Config) string {
	if cfg.Detector.Backend == "dlib" {
		return "dlib_face_recognition_resnet_model_v1"
	}
	return cfg.Embedding.Model
}
