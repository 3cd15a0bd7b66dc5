// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Spreadsheet constants
const (
	// TimeLayout is the format of the Time column in attendance sheets
	TimeLayout = "2006-01-02 15:04:05"

	// DateLayout names the per-day workbook (attendance_<date>.xlsx)
	DateLayout = "2006-01-02"

	// SheetFilePrefix is the file name prefix of per-day workbooks
	SheetFilePrefix = "attendance_"

	// HeaderName and HeaderTime are the required header cells
	HeaderName = "Name"
	HeaderTime = "Time"
)

// Face matching constants
const (
	// UnknownLabel is shown for faces that match nobody above the threshold
	UnknownLabel = "unknown"

	// FaceEmbeddingDim is the dimension produced by buffalo_l/antelopev2
	FaceEmbeddingDim = 512

	// DlibEmbeddingDim is the descriptor size of the dlib ResNet model
	DlibEmbeddingDim = 128
)

// Processing constants
const (
	// MaxImageSize is the maximum dimension (width or height) sent to the detector
	MaxImageSize = 1920

	// MaxDisplayWidth is the width annotated images are shrunk to for display
	MaxDisplayWidth = 1280
)
