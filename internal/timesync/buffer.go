package timesync

import (
	"errors"
	"fmt"
)

// ErrUnsorted is returned when samples are not in non-decreasing time order.
var ErrUnsorted = errors.New("timesync: samples not in non-decreasing time order")

// TimedSample is a single observation and the time (seconds) it was taken.
type TimedSample[T any] struct {
	Value     T
	Timestamp float64
}

// SampleBuffer is an immutable, time-ordered sequence of samples.
type SampleBuffer[T any] struct {
	samples []TimedSample[T]
}

// NewSampleBuffer validates ordering and takes ownership of samples.
func NewSampleBuffer[T any](samples []TimedSample[T]) (*SampleBuffer[T], error) {
	for i := 1; i < len(samples); i++ {
		if samples[i].Timestamp < samples[i-1].Timestamp {
			return nil, fmt.Errorf("%w: index %d (%.6f) precedes index %d (%.6f)",
				ErrUnsorted, i, samples[i].Timestamp, i-1, samples[i-1].Timestamp)
		}
	}
	return &SampleBuffer[T]{samples: samples}, nil
}

// BufferBuilder accumulates samples in log order and produces a SampleBuffer.
type BufferBuilder[T any] struct {
	samples []TimedSample[T]
}

// Add appends one sample.
func (b *BufferBuilder[T]) Add(value T, timestamp float64) {
	b.samples = append(b.samples, TimedSample[T]{Value: value, Timestamp: timestamp})
}

// Len returns the number of samples added so far.
func (b *BufferBuilder[T]) Len() int { return len(b.samples) }

// Build validates ordering and returns the buffer. The builder must not be
// reused afterwards.
func (b *BufferBuilder[T]) Build() (*SampleBuffer[T], error) {
	buf, err := NewSampleBuffer(b.samples)
	b.samples = nil
	return buf, err
}

// Len returns the number of samples.
func (b *SampleBuffer[T]) Len() int {
	if b == nil {
		return 0
	}
	return len(b.samples)
}

// At returns the sample at index i.
func (b *SampleBuffer[T]) At(i int) TimedSample[T] { return b.samples[i] }

// First returns the earliest sample and false if the buffer is empty.
func (b *SampleBuffer[T]) First() (TimedSample[T], bool) {
	if b.Len() == 0 {
		return TimedSample[T]{}, false
	}
	return b.samples[0], true
}

// Last returns the latest sample and false if the buffer is empty.
func (b *SampleBuffer[T]) Last() (TimedSample[T], bool) {
	if b.Len() == 0 {
		return TimedSample[T]{}, false
	}
	return b.samples[len(b.samples)-1], true
}
