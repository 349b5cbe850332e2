package chunker

import (
	"errors"
	"math"
	"sort"
)

// ErrNoChunks is returned when statistics are requested for an empty
// chunk set.
var ErrNoChunks = errors.New("no chunks to calculate statistics for")

// Statistics summarizes the size distribution of a chunking run. It is
// logged after chunking and persisted with the job for later inspection.
type Statistics struct {
	TotalChunks     int     `json:"total_chunks"`
	TotalCharacters int     `json:"total_characters"`
	MinSize         int     `json:"min_size"`
	MaxSize         int     `json:"max_size"`
	AvgSize         float64 `json:"avg_size"`
	MedianSize      float64 `json:"median_size"`
	StdDev          float64 `json:"std_dev"`

	// WithinTolerance counts chunks inside the configured size band. The
	// last chunk of each chapter is exempt from the minimum: a short tail
	// is expected, not a defect.
	WithinTolerance    int     `json:"within_tolerance"`
	WithinTolerancePct float64 `json:"within_tolerance_pct"`

	Oversized   int `json:"oversized"`
	WarningSize int `json:"warning_size"`

	ChunksPerChapter map[string]int `json:"chunks_per_chapter"`
}

// CalculateStatistics computes size statistics for chunks produced under
// cfg. Chunks may span multiple chapters.
func CalculateStatistics(chunks []TextChunk, cfg Config) (Statistics, error) {
	if len(chunks) == 0 {
		return Statistics{}, ErrNoChunks
	}

	minSize := cfg.MinSize()
	maxSize := cfg.MaxSize()
	warnSize := cfg.WarningSize()

	// The highest chunk index per chapter marks each chapter's tail chunk.
	lastIndex := make(map[string]int)
	for _, ch := range chunks {
		if idx, ok := lastIndex[ch.ChapterID]; !ok || ch.ChunkIndex > idx {
			lastIndex[ch.ChapterID] = ch.ChunkIndex
		}
	}

	sizes := make([]int, 0, len(chunks))
	stats := Statistics{
		TotalChunks:      len(chunks),
		MinSize:          math.MaxInt,
		ChunksPerChapter: make(map[string]int),
	}
	for _, ch := range chunks {
		n := ch.CharacterCount
		sizes = append(sizes, n)
		stats.TotalCharacters += n
		if n < stats.MinSize {
			stats.MinSize = n
		}
		if n > stats.MaxSize {
			stats.MaxSize = n
		}
		stats.ChunksPerChapter[ch.ChapterID]++

		isTail := ch.ChunkIndex == lastIndex[ch.ChapterID]
		if n <= maxSize && (n >= minSize || isTail) {
			stats.WithinTolerance++
		}
		if n > maxSize {
			stats.Oversized++
		}
		if n > warnSize {
			stats.WarningSize++
		}
	}

	stats.AvgSize = float64(stats.TotalCharacters) / float64(len(chunks))
	stats.WithinTolerancePct = 100 * float64(stats.WithinTolerance) / float64(len(chunks))

	sort.Ints(sizes)
	mid := len(sizes) / 2
	if len(sizes)%2 == 0 {
		stats.MedianSize = float64(sizes[mid-1]+sizes[mid]) / 2
	} else {
		stats.MedianSize = float64(sizes[mid])
	}

	var sumSq float64
	for _, n := range sizes {
		d := float64(n) - stats.AvgSize
		sumSq += d * d
	}
	stats.StdDev = math.Sqrt(sumSq / float64(len(sizes)))

	return stats, nil
}
