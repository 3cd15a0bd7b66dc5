package facematch

// Person is a known identity with one or more unit-norm reference vectors.
// A single averaged vector is stored as a one-element list.
type Person struct {
	Name    string
	Vectors [][]float32
}

// Result is the outcome of matching one query embedding.
type Result struct {
	Name       string  // best candidate, empty when the store is empty
	Similarity float64 // best similarity found, even when below threshold
	Matched    bool    // Similarity > threshold
}
