package video

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"speedcam/frame"
	"speedcam/pkg/ffmpeg"

	"gocv.io/x/gocv"
)

// debugMsgFunc is set by the main package to use unified logging
var debugMsgFunc func(component, message string, sessionID ...string)

// SetDebugFunction allows main package to provide the debug logger
func SetDebugFunction(fn func(component, message string, sessionID ...string)) {
	debugMsgFunc = fn
}

func debugMsg(component, message string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message)
	}
}

// probeTimeout bounds the ffprobe fallback, which has to read the whole stream
const probeTimeout = 60 * time.Second

// Capture is the subset of *gocv.VideoCapture the Source depends on
type Capture interface {
	IsOpened() bool
	Get(prop gocv.VideoCaptureProperties) float64
	Set(prop gocv.VideoCaptureProperties, param float64)
	Read(m *gocv.Mat) bool
	Close() error
}

// FrameCounter supplies a frame count when the container does not report one
type FrameCounter func(path string) (int, error)

// Metadata describes a decoded video stream
type Metadata struct {
	FrameRate  float64 `json:"frame_rate"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FrameCount int     `json:"frame_count"`
}

// Duration returns the stream length in seconds
func (m Metadata) Duration() (float64, error) {
	if !(m.FrameRate > 0) || math.IsInf(m.FrameRate, 0) {
		return 0, fmt.Errorf("%w: frame rate %v", ErrInvalidMetadata, m.FrameRate)
	}
	return float64(m.FrameCount) / m.FrameRate, nil
}

// Source gives random access to the frames of one video stream.
// It holds a single read cursor and is not safe for concurrent use.
type Source struct {
	path         string
	capture      Capture
	frameCounter FrameCounter

	meta     *Metadata
	cursor   int
	lastRead time.Duration
}

// Open opens a video file for frame access
func Open(path string) (*Source, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}

	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpenFailed, path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: %s: stream could not be decoded", ErrOpenFailed, path)
	}

	src := NewSource(capture, path)
	if _, err := exec.LookPath("ffprobe"); err == nil {
		src.SetFrameCounter(probeFrameCount)
	}

	debugMsg("VIDEO", fmt.Sprintf("Opened %s", filepath.Base(path)))
	return src, nil
}

// NewSource wraps an already opened capture
func NewSource(capture Capture, path string) *Source {
	return &Source{
		path:    path,
		capture: capture,
	}
}

// SetFrameCounter installs the fallback used when the container reports no frame count
func (s *Source) SetFrameCounter(fc FrameCounter) {
	s.frameCounter = fc
}

// Path returns the path the source was opened from
func (s *Source) Path() string {
	return s.path
}

// Metadata reads the stream properties. The result is cached after the first call.
func (s *Source) Metadata() (Metadata, error) {
	if s.meta != nil {
		return *s.meta, nil
	}

	meta := Metadata{
		FrameRate:  s.capture.Get(gocv.VideoCaptureFPS),
		Width:      int(s.capture.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(s.capture.Get(gocv.VideoCaptureFrameHeight)),
		FrameCount: int(s.capture.Get(gocv.VideoCaptureFrameCount)),
	}

	if !(meta.FrameRate > 0) || math.IsInf(meta.FrameRate, 0) {
		return Metadata{}, fmt.Errorf("%w: frame rate %v", ErrInvalidMetadata, meta.FrameRate)
	}
	if meta.Width <= 0 || meta.Height <= 0 {
		return Metadata{}, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidMetadata, meta.Width, meta.Height)
	}

	if meta.FrameCount <= 0 {
		meta.FrameCount = 0
		if s.frameCounter != nil {
			count, err := s.frameCounter(s.path)
			if err != nil {
				debugMsg("VIDEO", fmt.Sprintf("Frame count fallback failed: %v", err))
			} else {
				debugMsg("VIDEO", fmt.Sprintf("Container reported no frame count, probed %d frames", count))
				meta.FrameCount = count
			}
		}
	}

	s.meta = &meta
	return meta, nil
}

// FrameAt decodes the frame at index. The caller owns the returned Mat and must Close it.
// Reading repositions the stream cursor.
func (s *Source) FrameAt(index int) (gocv.Mat, error) {
	meta, err := s.Metadata()
	if err != nil {
		return gocv.NewMat(), err
	}
	if index < 0 || index >= meta.FrameCount {
		return gocv.NewMat(), &RangeError{Index: index, FrameCount: meta.FrameCount}
	}

	start := time.Now()
	if index != s.cursor {
		s.capture.Set(gocv.VideoCapturePosFrames, float64(index))
	}

	img := gocv.NewMat()
	if ok := s.capture.Read(&img); !ok || !frame.IsValid(img) {
		img.Close()
		// Position is unknown after a failed read
		s.cursor = -1
		return gocv.NewMat(), fmt.Errorf("%w: frame %d of %s", ErrDecode, index, filepath.Base(s.path))
	}
	s.cursor = index + 1
	s.lastRead = time.Since(start)

	return img, nil
}

// LastReadDuration reports how long the most recent FrameAt took, seek included
func (s *Source) LastReadDuration() time.Duration {
	return s.lastRead
}

// Close releases the underlying capture
func (s *Source) Close() error {
	if s.capture == nil {
		return nil
	}
	err := s.capture.Close()
	s.capture = nil
	return err
}

func probeFrameCount(path string) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	info, err := ffmpeg.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return info.FrameCount, nil
}
