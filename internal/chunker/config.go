package chunker

import (
	"errors"
	"fmt"

	"github.com/mkaplan/chapterwise/internal/boundary"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid chunking configuration")

// Config holds the size targets and tolerances for a chunking run. It is
// constructed once per job via NewConfig and treated as immutable afterward.
type Config struct {
	// TargetSize is the ideal chunk size in runes.
	TargetSize int

	// MinTolerance and MaxTolerance express the accepted size band as
	// multiplicative factors of TargetSize. MinTolerance must be in (0,1),
	// MaxTolerance in (1,3).
	MinTolerance float64
	MaxTolerance float64

	// WarningThreshold flags chunks whose size exceeds
	// TargetSize*WarningThreshold. Must be >= MaxTolerance.
	WarningThreshold float64

	// SentenceTerminators is the ordered terminator set for boundary
	// detection. Must be non-empty.
	SentenceTerminators []string
}

// DefaultConfig returns the chunking configuration used when the caller
// does not override sizes.
func DefaultConfig() Config {
	cfg, _ := NewConfig(4000, 0.7, 1.3, 1.5, boundary.DefaultTerminators)
	return cfg
}

// NewConfig validates and builds a Config. Invalid parameters are fatal:
// the job is rejected before any chunking happens.
func NewConfig(targetSize int, minTol, maxTol, warnThreshold float64, terminators []string) (Config, error) {
	if targetSize <= 0 {
		return Config{}, fmt.Errorf("%w: target_size %d must be positive", ErrInvalidConfig, targetSize)
	}
	if minTol <= 0 || minTol >= 1 {
		return Config{}, fmt.Errorf("%w: min_tolerance %v must be in (0,1)", ErrInvalidConfig, minTol)
	}
	if maxTol <= 1 || maxTol >= 3 {
		return Config{}, fmt.Errorf("%w: max_tolerance %v must be in (1,3)", ErrInvalidConfig, maxTol)
	}
	if warnThreshold < maxTol {
		return Config{}, fmt.Errorf("%w: warning_threshold %v must be >= max_tolerance %v", ErrInvalidConfig, warnThreshold, maxTol)
	}
	if len(terminators) == 0 {
		return Config{}, fmt.Errorf("%w: sentence_terminators must not be empty", ErrInvalidConfig)
	}
	terms := make([]string, len(terminators))
	copy(terms, terminators)
	return Config{
		TargetSize:          targetSize,
		MinTolerance:        minTol,
		MaxTolerance:        maxTol,
		WarningThreshold:    warnThreshold,
		SentenceTerminators: terms,
	}, nil
}

// MinSize is the smallest acceptable chunk size.
func (c Config) MinSize() int { return int(float64(c.TargetSize) * c.MinTolerance) }

// MaxSize is the largest acceptable chunk size.
func (c Config) MaxSize() int { return int(float64(c.TargetSize) * c.MaxTolerance) }

// WarningSize is the size above which a chunk is logged as oversized.
func (c Config) WarningSize() int { return int(float64(c.TargetSize) * c.WarningThreshold) }
