package timesync

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrInvalidConfig is returned by NewSynchronizer for unusable settings.
var ErrInvalidConfig = errors.New("timesync: invalid config")

// Strategy selects how a Synchronizer searches its buffer.
type Strategy int

const (
	// StrategyBinarySearch finds the global nearest sample in O(log n).
	StrategyBinarySearch Strategy = iota
	// StrategyWindowedCursor searches Window samples either side of the
	// previous match. Queries must be non-decreasing in time.
	StrategyWindowedCursor
)

// DefaultWindow is the historical half-width of the windowed search.
const DefaultWindow = 50

func (s Strategy) String() string {
	switch s {
	case StrategyBinarySearch:
		return "binary"
	case StrategyWindowedCursor:
		return "window"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy maps "binary" or "window" to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "binary", "binary_search":
		return StrategyBinarySearch, nil
	case "window", "windowed", "windowed_cursor":
		return StrategyWindowedCursor, nil
	}
	return 0, fmt.Errorf("%w: unknown lookup strategy %q", ErrInvalidConfig, s)
}

// Config controls matching tolerance and search behaviour.
type Config struct {
	// MaxTimeDelta is the largest accepted |sample - query| in seconds.
	MaxTimeDelta float64
	// Window is the half-width of the windowed search. Ignored by
	// StrategyBinarySearch. Zero means DefaultWindow.
	Window   int
	Strategy Strategy
}

// DefaultConfig returns a 0.1 s tolerance with binary search.
func DefaultConfig() Config {
	return Config{MaxTimeDelta: 0.1, Window: DefaultWindow, Strategy: StrategyBinarySearch}
}

// Match is a successful lookup.
type Match[T any] struct {
	Sample TimedSample[T]
	// Index of Sample within the buffer.
	Index int
	// Delta is |Sample.Timestamp - query| in seconds. Callers that track
	// total drift across a run sum this themselves.
	Delta float64
}

// Synchronizer performs nearest-time lookups against one buffer. It keeps a
// cursor at the index of the last searched sample and is not safe for
// concurrent use.
type Synchronizer[T any] struct {
	buf    *SampleBuffer[T]
	cfg    Config
	cursor int
}

// NewSynchronizer binds a buffer to a lookup configuration.
func NewSynchronizer[T any](buf *SampleBuffer[T], cfg Config) (*Synchronizer[T], error) {
	if !(cfg.MaxTimeDelta > 0) || math.IsInf(cfg.MaxTimeDelta, 0) {
		return nil, fmt.Errorf("%w: max_time_delta must be a positive finite number, got %v", ErrInvalidConfig, cfg.MaxTimeDelta)
	}
	if cfg.Window < 0 {
		return nil, fmt.Errorf("%w: window must be non-negative, got %d", ErrInvalidConfig, cfg.Window)
	}
	if cfg.Window == 0 {
		cfg.Window = DefaultWindow
	}
	switch cfg.Strategy {
	case StrategyBinarySearch, StrategyWindowedCursor:
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, cfg.Strategy)
	}
	if buf == nil {
		buf = &SampleBuffer[T]{}
	}
	return &Synchronizer[T]{buf: buf, cfg: cfg}, nil
}

// Buffer returns the underlying buffer.
func (s *Synchronizer[T]) Buffer() *SampleBuffer[T] { return s.buf }

// Cursor returns the index of the most recently searched sample.
func (s *Synchronizer[T]) Cursor() int { return s.cursor }

// Lookup returns the buffered sample nearest to queryTime, or false when the
// query is out of range or the nearest sample exceeds MaxTimeDelta.
//
// The cursor moves to the nearest sample found even when that sample is then
// rejected for exceeding the tolerance. Queries outside the buffer's range
// leave the cursor untouched.
func (s *Synchronizer[T]) Lookup(queryTime float64) (Match[T], bool) {
	n := s.buf.Len()
	if n == 0 {
		return Match[T]{}, false
	}
	first, last := s.buf.samples[0].Timestamp, s.buf.samples[n-1].Timestamp
	if queryTime < first-s.cfg.MaxTimeDelta || queryTime > last+s.cfg.MaxTimeDelta {
		return Match[T]{}, false
	}

	var idx int
	switch s.cfg.Strategy {
	case StrategyWindowedCursor:
		idx = s.searchWindow(queryTime)
	default:
		idx = s.searchBinary(queryTime)
	}
	s.cursor = idx

	sample := s.buf.samples[idx]
	delta := math.Abs(sample.Timestamp - queryTime)
	if delta > s.cfg.MaxTimeDelta {
		return Match[T]{}, false
	}
	return Match[T]{Sample: sample, Index: idx, Delta: delta}, true
}

// searchBinary returns the index of the global nearest sample. Ties go to
// the earlier sample.
func (s *Synchronizer[T]) searchBinary(q float64) int {
	samples := s.buf.samples
	i := sort.Search(len(samples), func(i int) bool { return samples[i].Timestamp >= q })
	if i == 0 {
		return 0
	}
	if i == len(samples) {
		return len(samples) - 1
	}
	if q-samples[i-1].Timestamp <= samples[i].Timestamp-q {
		return i - 1
	}
	return i
}

// searchWindow scans [cursor-Window, cursor+Window], clamped to the buffer.
// The first minimum wins ties.
func (s *Synchronizer[T]) searchWindow(q float64) int {
	samples := s.buf.samples
	lo := s.cursor - s.cfg.Window
	if lo < 0 {
		lo = 0
	}
	hi := s.cursor + s.cfg.Window
	if hi > len(samples)-1 {
		hi = len(samples) - 1
	}
	best := lo
	bestDelta := math.Abs(samples[lo].Timestamp - q)
	for i := lo + 1; i <= hi; i++ {
		if d := math.Abs(samples[i].Timestamp - q); d < bestDelta {
			best, bestDelta = i, d
		}
	}
	return best
}

// Reset moves the cursor back to the start of the buffer.
func (s *Synchronizer[T]) Reset() { s.cursor = 0 }
