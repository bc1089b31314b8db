package constants

import "time"

type ContextKey string

const TraceIDKey ContextKey = "trace_id"

const (
	ServerReadHeaderTimeout = 5 * time.Second
	ServerReadTimeout       = 30 * time.Second
	ServerWriteTimeout      = 30 * time.Second
	ServerIdleTimeout       = 120 * time.Second
)

const (
	// DefaultMaxRequestSize covers multipart post uploads: up to
	// MaxPostImages images of MaxImageSizeBytes each plus form overhead.
	DefaultMaxRequestSize = int64(55 * 1024 * 1024)

	MaxImageSizeBytes = int64(5 * 1024 * 1024)
	MaxPostImages     = 10

	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

const (
	DBPoolMetricsInterval = 30 * time.Second
)

const (
	RateLimitCleanupInterval = 5 * time.Minute

	RateLimitLoginRequestsPerSecond    = 1.0
	RateLimitLoginBurst                = 5
	RateLimitRegisterRequestsPerSecond = 0.5
	RateLimitRegisterBurst             = 3
	RateLimitUploadRequestsPerSecond   = 2.0
	RateLimitUploadBurst               = 5
	RateLimitGeneralRequestsPerSecond  = 20.0
	RateLimitGeneralBurst              = 40
)

const (
	// GraphWriteRetries bounds the re-drive of the second adjacency write
	// after a partial follow/unfollow failure.
	GraphWriteRetries    = 3
	GraphWriteRetryDelay = 50 * time.Millisecond
)

const (
	// ImageCleanupTimeout caps the detached best-effort deletion of stored
	// images after a post is removed.
	ImageCleanupTimeout = 30 * time.Second
)
