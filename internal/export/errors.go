package export

import "errors"

var (
	ErrInvalidType   = errors.New("unknown export type")
	ErrInvalidFormat = errors.New("unknown export format")
	ErrRateLimited   = errors.New("too many active export jobs")

	// ErrMemorySoftLimit marks a build whose accumulated output crossed the
	// configured ceiling. Jobs failing with it are never retried.
	ErrMemorySoftLimit = errors.New("memory soft limit exceeded")

	ErrJobNotReady   = errors.New("export job has no payload yet")
	ErrTokenInvalid  = errors.New("download token mismatch")
	ErrTokenExpired  = errors.New("download token expired")
	ErrTokenConsumed = errors.New("download token already consumed")
)
