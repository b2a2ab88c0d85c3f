package video

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the video path does not exist or cannot be stat'ed
	ErrNotFound = errors.New("video not found")
	// ErrOpenFailed is returned when the stream exists but cannot be decoded
	ErrOpenFailed = errors.New("video open failed")
	// ErrInvalidMetadata is returned when the stream reports unusable properties
	ErrInvalidMetadata = errors.New("invalid video metadata")
	// ErrOutOfRange is returned for frame indices outside [0, frame_count)
	ErrOutOfRange = errors.New("frame index out of range")
	// ErrDecode is returned when a valid index cannot be read
	ErrDecode = errors.New("frame decode error")
)

// RangeError reports the offending index together with the stream length
type RangeError struct {
	Index      int
	FrameCount int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%v: index %d, frame count %d", ErrOutOfRange, e.Index, e.FrameCount)
}

func (e *RangeError) Unwrap() error {
	return ErrOutOfRange
}
