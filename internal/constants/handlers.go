package constants

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100

	// MaxJobHistory is how many finished recognition jobs are kept for
	// status and image requests
	MaxJobHistory = 20
)

// File upload constants
const (
	// MaxUploadSize is the maximum image upload size in bytes (32MB)
	MaxUploadSize = 32 << 20
)
