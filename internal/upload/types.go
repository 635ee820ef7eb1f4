package upload

import (
	"fmt"
	"time"
)

const (
	// DefaultPartSize is the smallest part S3 accepts for all but the last part.
	DefaultPartSize = 5 * 1024 * 1024

	// DefaultMaxObjectSize is the largest object the pipeline accepts.
	DefaultMaxObjectSize = 5*1024*1024*1024 + 256

	// MaxPartCount is the S3 limit on parts in one multipart upload.
	MaxPartCount = 10000

	// DefaultAbortTimeout bounds the abort call made while tearing down.
	DefaultAbortTimeout = 30 * time.Second

	// sniffLen is how much plaintext is inspected for the content type.
	sniffLen = 3072
)

// Options controls part sizing and teardown.
type Options struct {
	PartSize      int
	MaxObjectSize int64
	AbortTimeout  time.Duration
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		PartSize:      DefaultPartSize,
		MaxObjectSize: DefaultMaxObjectSize,
		AbortTimeout:  DefaultAbortTimeout,
	}
}

// MaxParts is the number of parts needed for an object of MaxObjectSize.
func (o Options) MaxParts() int {
	return int((o.MaxObjectSize + int64(o.PartSize) - 1) / int64(o.PartSize))
}

// Validate checks the options are usable.
func (o Options) Validate() error {
	if o.PartSize <= 0 {
		return fmt.Errorf("part size must be positive, got %d", o.PartSize)
	}
	if o.MaxObjectSize < int64(o.PartSize) {
		return fmt.Errorf("max object size %d is smaller than part size %d", o.MaxObjectSize, o.PartSize)
	}
	if o.AbortTimeout <= 0 {
		return fmt.Errorf("abort timeout must be positive, got %s", o.AbortTimeout)
	}
	return nil
}

// State is the lifecycle phase of a Transaction.
type State int

const (
	StateIdle State = iota
	StateActive
	StateCompleting
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateCompleting:
		return "completing"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
