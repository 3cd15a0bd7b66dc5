package embeddings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kozaktomas/attendx/internal/constants"
	"github.com/kozaktomas/attendx/internal/detector"
	"github.com/kozaktomas/attendx/internal/facematch"
)

// RegisterOptions controls a registration run.
type RegisterOptions struct {
	// Average collapses each person's vectors into one normalised mean.
	Average bool
	Model   string
	// Dim is the expected embedding dimension; 0 accepts whatever the
	// detector returns first.
	Dim int
	// OnImage is called after every image, used, skipped or not.
	OnImage func(person, path string, used bool)
}

// RegisterReport summarises a registration run.
type RegisterReport struct {
	People        int
	ImagesUsed    int
	ImagesSkipped int
	// Empty lists person directories that produced no usable image.
	Empty []string
}

// PersonDir is one person's directory of face images.
type PersonDir struct {
	Name   string
	Images []string
}

// ScanDataset lists the person directories under root in filename order,
// which os.ReadDir guarantees. Regular files in root are ignored.
func ScanDataset(root string) ([]PersonDir, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset directory: %w", err)
	}

	var dirs []PersonDir
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			// Unreadable person directory counts as a person with no images.
			dirs = append(dirs, PersonDir{Name: e.Name()})
			continue
		}
		pd := PersonDir{Name: e.Name()}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			pd.Images = append(pd.Images, filepath.Join(dir, f.Name()))
		}
		dirs = append(dirs, pd)
	}
	return dirs, nil
}

// CountImages returns the total number of candidate images.
func CountImages(dirs []PersonDir) int {
	n := 0
	for _, d := range dirs {
		n += len(d.Images)
	}
	return n
}

// Register embeds every image under root and builds a store. Only the first
// face of an image is used. Unreadable images, non-images, detector failures
// and images without faces are skipped. People without a single usable image
// are left out.
func Register(ctx context.Context, det detector.Detector, root string, opts RegisterOptions) (*Store, *RegisterReport, error) {
	dirs, err := ScanDataset(root)
	if err != nil {
		return nil, nil, err
	}

	store := NewStore(opts.Model, opts.Dim)
	report := &RegisterReport{}

	for _, pd := range dirs {
		var vectors [][]float32
		for _, path := range pd.Images {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			vec := embedImage(ctx, det, path, store.Dim)
			if vec == nil {
				report.ImagesSkipped++
			} else {
				if store.Dim == 0 {
					store.Dim = len(vec)
				}
				vectors = append(vectors, vec)
				report.ImagesUsed++
			}
			if opts.OnImage != nil {
				opts.OnImage(pd.Name, path, vec != nil)
			}
		}

		if len(vectors) == 0 {
			report.Empty = append(report.Empty, pd.Name)
			continue
		}
		if opts.Average {
			mean, err := facematch.Mean(vectors)
			if err != nil {
				return nil, nil, fmt.Errorf("averaging %s: %w", pd.Name, err)
			}
			vectors = [][]float32{facematch.Normalize(mean)}
		}
		if err := store.Add(facematch.Person{Name: pd.Name, Vectors: vectors}); err != nil {
			return nil, nil, err
		}
	}

	report.People = store.Len()
	return store, report, nil
}

// embedImage returns the normalised embedding of the first face in the
// image, or nil when the image yields nothing usable.
func embedImage(ctx context.Context, det detector.Detector, path string, dim int) []float32 {
	data, err := os.ReadFile(path)
	if err != nil || !detector.IsImage(data) {
		return nil
	}
	// only the embedding is kept, so large photos can be shrunk first
	if data, err = detector.ResizeImage(data, constants.MaxImageSize); err != nil {
		return nil
	}
	faces, err := det.Detect(ctx, data)
	if err != nil || len(faces) == 0 {
		return nil
	}
	emb := faces[0].Embedding
	if len(emb) == 0 || (dim > 0 && len(emb) != dim) {
		return nil
	}
	return facematch.Normalize(emb)
}
