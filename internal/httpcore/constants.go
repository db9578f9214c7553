package httpcore

import "time"

// Header parsing limits
const (
	// MaxHeaderBytes caps the request line + header region.
	MaxHeaderBytes = 8 * 1024
)

// Body ingestion
const (
	// SmallBodyThreshold is the largest declared body kept fully in memory.
	SmallBodyThreshold = 2 << 20 // 2MB

	// SpoolChunkSize is the copy chunk for streaming a body to disk.
	SpoolChunkSize = 64 * 1024
)

// Socket timeouts
const (
	ReadTimeout  = 30 * time.Second
	WriteTimeout = 30 * time.Second
)
