package embeddings

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/attendx/internal/detector"
	"github.com/kozaktomas/attendx/internal/facematch"
)

// colorDetector returns one face whose embedding is taken from the colour
// of the top-left pixel, so tests can control embeddings via image content.
type colorDetector struct {
	calls int
	fail  map[uint8]bool
	empty map[uint8]bool
}

func (d *colorDetector) Detect(_ context.Context, data []byte) ([]detector.Face, error) {
	d.calls++
	img, err := detector.DecodeImage(data)
	if err != nil {
		return nil, err
	}
	r, g, b, _ := img.At(0, 0).RGBA()
	red := uint8(r >> 8)
	if d.fail[red] {
		return nil, errors.New("detector exploded")
	}
	if d.empty[red] {
		return nil, nil
	}
	return []detector.Face{
		{Index: 0, BBox: []float64{0, 0, 1, 1}, Embedding: []float32{float32(r >> 8), float32(g >> 8), float32(b >> 8)}},
		{Index: 1, BBox: []float64{0, 0, 1, 1}, Embedding: []float32{0, 0, 1}},
	}, nil
}

func (d *colorDetector) Close() error { return nil }

func writePNG(t *testing.T, path string, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := range 4 {
		for x := range 4 {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func buildDataset(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "bob", "1.png"), color.RGBA{200, 200, 0, 255})
	writePNG(t, filepath.Join(root, "alice", "1.png"), color.RGBA{200, 0, 0, 255})
	writePNG(t, filepath.Join(root, "alice", "2.png"), color.RGBA{100, 100, 0, 255})
	if err := os.WriteFile(filepath.Join(root, "alice", "notes.txt"), []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}
	// carol has only images without faces
	writePNG(t, filepath.Join(root, "carol", "1.png"), color.RGBA{7, 7, 7, 255})
	// dave has an empty folder
	if err := os.MkdirAll(filepath.Join(root, "dave"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestRegister(t *testing.T) {
	root := buildDataset(t)
	det := &colorDetector{empty: map[uint8]bool{7: true}}

	var seen int
	store, report, err := Register(context.Background(), det, root, RegisterOptions{
		Model:   "test",
		OnImage: func(string, string, bool) { seen++ },
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	names := store.Names()
	if len(names) != 2 || names[0] != "alice" || names[1] != "bob" {
		t.Fatalf("expected [alice bob], got %v", names)
	}
	if store.Dim != 3 {
		t.Errorf("Dim = %d; want 3", store.Dim)
	}

	alice, _ := store.Find("alice")
	if len(alice.Vectors) != 2 {
		t.Fatalf("alice should have 2 vectors, got %d", len(alice.Vectors))
	}
	// first face only, normalised
	if alice.Vectors[0][0] != 1 || alice.Vectors[0][2] != 0 {
		t.Errorf("alice vector 0 = %v; want [1 0 0]", alice.Vectors[0])
	}

	if report.People != 2 || report.ImagesUsed != 3 || report.ImagesSkipped != 2 {
		t.Errorf("unexpected report: %+v", report)
	}
	if len(report.Empty) != 2 || report.Empty[0] != "carol" || report.Empty[1] != "dave" {
		t.Errorf("Empty = %v; want [carol dave]", report.Empty)
	}
	if seen != 5 {
		t.Errorf("OnImage called %d times; want 5", seen)
	}
}

func TestRegister_Average(t *testing.T) {
	root := buildDataset(t)
	store, _, err := Register(context.Background(), &colorDetector{empty: map[uint8]bool{7: true}}, root, RegisterOptions{Average: true})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	alice, ok := store.Find("alice")
	if !ok {
		t.Fatal("alice missing")
	}
	if len(alice.Vectors) != 1 {
		t.Fatalf("averaged person should have one vector, got %d", len(alice.Vectors))
	}
	sim, err := facematch.Dot(alice.Vectors[0], alice.Vectors[0])
	if err != nil {
		t.Fatal(err)
	}
	if sim < 0.9999 || sim > 1.0001 {
		t.Errorf("averaged vector should be unit norm, |v|^2 = %f", sim)
	}
}

func TestRegister_DetectorErrorsAreSkipped(t *testing.T) {
	root := buildDataset(t)
	det := &colorDetector{fail: map[uint8]bool{200: true}, empty: map[uint8]bool{7: true}}

	store, report, err := Register(context.Background(), det, root, RegisterOptions{})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	// bob's only image and alice's first image fail
	if _, ok := store.Find("bob"); ok {
		t.Error("bob should be excluded")
	}
	alice, ok := store.Find("alice")
	if !ok || len(alice.Vectors) != 1 {
		t.Errorf("alice should have one vector, got %+v", alice)
	}
	if report.ImagesSkipped != 4 {
		t.Errorf("ImagesSkipped = %d; want 4", report.ImagesSkipped)
	}
}

func TestRegister_DimMismatchSkipped(t *testing.T) {
	root := buildDataset(t)
	store, _, err := Register(context.Background(), &colorDetector{empty: map[uint8]bool{7: true}}, root, RegisterOptions{Dim: 512})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("vectors of the wrong dimension should be skipped, got %d people", store.Len())
	}
}

func TestRegister_MissingRoot(t *testing.T) {
	_, _, err := Register(context.Background(), &colorDetector{}, filepath.Join(t.TempDir(), "nope"), RegisterOptions{})
	if err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestRegister_Cancelled(t *testing.T) {
	root := buildDataset(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Register(ctx, &colorDetector{}, root, RegisterOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestScanDataset(t *testing.T) {
	root := buildDataset(t)
	dirs, err := ScanDataset(root)
	if err != nil {
		t.Fatalf("ScanDataset failed: %v", err)
	}
	if len(dirs) != 4 {
		t.Fatalf("expected 4 person dirs, got %d", len(dirs))
	}
	if dirs[0].Name != "alice" || len(dirs[0].Images) != 3 {
		t.Errorf("unexpected first dir: %+v", dirs[0])
	}
	if got := CountImages(dirs); got != 5 {
		t.Errorf("CountImages = %d; want 5", got)
	}
}

func TestStoreAdd(t *testing.T) {
	s := NewStore("m", 2)
	if err := s.Add(facematch.Person{Name: "a", Vectors: [][]float32{{1, 0}}}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := s.Add(facematch.Person{Name: "b", Vectors: [][]float32{{1, 0, 0}}}); !errors.Is(err, facematch.ErrDimMismatch) {
		t.Errorf("expected ErrDimMismatch, got %v", err)
	}
	if err := s.Add(facematch.Person{Name: "c"}); err == nil {
		t.Error("expected error for person without vectors")
	}
	if err := s.Add(facematch.Person{Name: "a", Vectors: [][]float32{{0, 1}, {1, 0}}}); err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d; want 1", s.Len())
	}
	if p, _ := s.Find("a"); len(p.Vectors) != 2 {
		t.Errorf("replace should keep new vectors, got %v", p.Vectors)
	}
}

func TestFileRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "embeddings.gob")
	repo := NewFileRepository(path)
	ctx := context.Background()

	_, err := repo.Load(ctx)
	if !errors.Is(err, ErrStoreNotFound) {
		t.Fatalf("expected ErrStoreNotFound, got %v", err)
	}

	s := NewStore("buffalo_l", 2)
	for _, p := range []facematch.Person{
		{Name: "zoe", Vectors: [][]float32{{1, 0}}},
		{Name: "adam", Vectors: [][]float32{{0, 1}, {0.6, 0.8}}},
	} {
		if err := s.Add(p); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.Save(ctx, s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Model != "buffalo_l" || loaded.Dim != 2 || loaded.Version != FormatVersion {
		t.Errorf("unexpected header: %+v", loaded)
	}
	names := loaded.Names()
	if len(names) != 2 || names[0] != "zoe" || names[1] != "adam" {
		t.Errorf("order not preserved: %v", names)
	}
	adam, _ := loaded.Find("adam")
	if adam.Vectors[1][1] != 0.8 {
		t.Errorf("vectors not preserved: %v", adam.Vectors)
	}
}

func TestFileRepository_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.gob")
	if err := os.WriteFile(path, []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := NewFileRepository(path).Load(context.Background())
	if err == nil || errors.Is(err, ErrStoreNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
}
