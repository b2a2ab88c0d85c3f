package video

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"
)

// fakeCapture serves synthetic frames whose pixels all equal the frame index modulo 256
type fakeCapture struct {
	width, height int
	fps           float64
	count         int
	reportedCount int

	pos       int
	seeks     int
	failReads bool
	closed    bool
}

func newFakeCapture(width, height int, fps float64, count int) *fakeCapture {
	return &fakeCapture{width: width, height: height, fps: fps, count: count, reportedCount: count}
}

func (f *fakeCapture) IsOpened() bool { return !f.closed }

func (f *fakeCapture) Get(prop gocv.VideoCaptureProperties) float64 {
	switch prop {
	case gocv.VideoCaptureFPS:
		return f.fps
	case gocv.VideoCaptureFrameWidth:
		return float64(f.width)
	case gocv.VideoCaptureFrameHeight:
		return float64(f.height)
	case gocv.VideoCaptureFrameCount:
		return float64(f.reportedCount)
	case gocv.VideoCapturePosFrames:
		return float64(f.pos)
	}
	return 0
}

func (f *fakeCapture) Set(prop gocv.VideoCaptureProperties, param float64) {
	if prop == gocv.VideoCapturePosFrames {
		f.pos = int(param)
		f.seeks++
	}
}

func (f *fakeCapture) Read(m *gocv.Mat) bool {
	if f.failReads || f.pos >= f.count {
		return false
	}
	v := float64(f.pos % 256)
	tmp := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, v, v, 0), f.height, f.width, gocv.MatTypeCV8UC3)
	defer tmp.Close()
	tmp.CopyTo(m)
	f.pos++
	return true
}

func (f *fakeCapture) Close() error {
	f.closed = true
	return nil
}

func TestMetadata(t *testing.T) {
	src := NewSource(newFakeCapture(100, 100, 25, 50), "synthetic.mp4")

	meta, err := src.Metadata()
	if err != nil {
		t.Fatalf("Metadata() error = %v", err)
	}
	want := Metadata{FrameRate: 25, Width: 100, Height: 100, FrameCount: 50}
	if meta != want {
		t.Errorf("Metadata() = %+v, want %+v", meta, want)
	}

	duration, err := meta.Duration()
	if err != nil {
		t.Fatalf("Duration() error = %v", err)
	}
	if duration != 2.0 {
		t.Errorf("Duration() = %v, want 2.0", duration)
	}
}

func TestMetadataInvalidFrameRate(t *testing.T) {
	for _, fps := range []float64{0, -25} {
		src := NewSource(newFakeCapture(100, 100, fps, 50), "bad.mp4")
		if _, err := src.Metadata(); !errors.Is(err, ErrInvalidMetadata) {
			t.Errorf("fps=%v: Metadata() error = %v, want ErrInvalidMetadata", fps, err)
		}
	}

	if _, err := (Metadata{FrameRate: 0, FrameCount: 10}).Duration(); !errors.Is(err, ErrInvalidMetadata) {
		t.Errorf("Duration() error = %v, want ErrInvalidMetadata", err)
	}
}

func TestMetadataFrameCountFallback(t *testing.T) {
	capture := newFakeCapture(64, 48, 30, 90)
	capture.reportedCount = -1

	src := NewSource(capture, "stream.mkv")
	src.SetFrameCounter(func(path string) (int, error) {
		if path != "stream.mkv" {
			t.Errorf("frame counter called with %q", path)
		}
		return 90, nil
	})

	meta, err := src.Metadata()
	if err != nil {
		t.Fatalf("Metadata() error = %v", err)
	}
	if meta.FrameCount != 90 {
		t.Errorf("FrameCount = %d, want 90", meta.FrameCount)
	}
}

func TestFrameAtBounds(t *testing.T) {
	tests := []struct {
		name    string
		index   int
		wantErr error
	}{
		{name: "first frame", index: 0},
		{name: "last frame", index: 49},
		{name: "middle frame", index: 17},
		{name: "negative index", index: -1, wantErr: ErrOutOfRange},
		{name: "index equals frame count", index: 50, wantErr: ErrOutOfRange},
	}

	src := NewSource(newFakeCapture(100, 100, 25, 50), "synthetic.mp4")
	defer src.Close()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := src.FrameAt(tt.index)
			defer img.Close()

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("FrameAt(%d) error = %v, want %v", tt.index, err, tt.wantErr)
				}
				var re *RangeError
				if !errors.As(err, &re) {
					t.Fatalf("expected *RangeError, got %T", err)
				}
				if re.Index != tt.index || re.FrameCount != 50 {
					t.Errorf("RangeError = %+v", re)
				}
				return
			}

			if err != nil {
				t.Fatalf("FrameAt(%d) error = %v", tt.index, err)
			}
			if img.Rows() != 100 || img.Cols() != 100 || img.Channels() != 3 {
				t.Errorf("frame shape = %dx%dx%d", img.Cols(), img.Rows(), img.Channels())
			}
			if got := int(img.GetUCharAt(0, 0)); got != tt.index {
				t.Errorf("frame content = %d, want %d", got, tt.index)
			}
		})
	}
}

func TestFrameAtSequentialReadsSkipSeek(t *testing.T) {
	capture := newFakeCapture(10, 10, 25, 10)
	src := NewSource(capture, "synthetic.mp4")

	for i := 0; i < 3; i++ {
		img, err := src.FrameAt(i)
		if err != nil {
			t.Fatalf("FrameAt(%d) error = %v", i, err)
		}
		img.Close()
	}
	if capture.seeks != 0 {
		t.Errorf("sequential reads seeked %d times, want 0", capture.seeks)
	}

	img, err := src.FrameAt(7)
	if err != nil {
		t.Fatalf("FrameAt(7) error = %v", err)
	}
	img.Close()
	if capture.seeks != 1 {
		t.Errorf("random access seeked %d times, want 1", capture.seeks)
	}
}

func TestFrameAtDecodeError(t *testing.T) {
	capture := newFakeCapture(10, 10, 25, 10)
	capture.failReads = true
	src := NewSource(capture, "corrupt.mp4")

	img, err := src.FrameAt(3)
	defer img.Close()
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("FrameAt() error = %v, want ErrDecode", err)
	}
}

func TestOpenNotFound(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.mp4"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Open() error = %v, want ErrNotFound", err)
	}
}

func TestOpenUndecodable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.mp4")
	if err := os.WriteFile(path, []byte("not a video"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Open(path)
	if !errors.Is(err, ErrOpenFailed) {
		t.Fatalf("Open() error = %v, want ErrOpenFailed", err)
	}
}

func TestExtractFrames(t *testing.T) {
	dir := t.TempDir()
	src := NewSource(newFakeCapture(16, 16, 25, 10), "synthetic.mp4")

	written, err := src.ExtractFrames(dir, 3)
	if err != nil {
		t.Fatalf("ExtractFrames() error = %v", err)
	}
	if written != 3 {
		t.Errorf("ExtractFrames() wrote %d, want 3", written)
	}
	for _, name := range []string{"frame_3.jpg", "frame_6.jpg", "frame_9.jpg"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}

	if _, err := src.ExtractFrames(dir, 0); err == nil {
		t.Error("ExtractFrames() with interval 0 should fail")
	}
}

// fakePreview records shown frames and presses quitKey on the quitAt-th poll
type fakePreview struct {
	shown  int
	polls  int
	quitAt int
}

func (p *fakePreview) IMShow(img gocv.Mat) { p.shown++ }

func (p *fakePreview) WaitKey(delay int) int {
	p.polls++
	if p.quitAt > 0 && p.polls == p.quitAt {
		return keyQuit
	}
	return -1
}

func TestExtractWritesVideo(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "copy.avi")
	src := NewSource(newFakeCapture(32, 32, 25, 12), "synthetic.mp4")

	res, err := src.Extract(ExtractOptions{VideoPath: out})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Read != 12 || res.Written != 0 || res.Stopped {
		t.Errorf("Extract() = %+v, want 12 frames read and no stills", res)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("output video missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("output video is empty")
	}
}

func TestExtractPreviewStopsOnQuit(t *testing.T) {
	dir := t.TempDir()
	preview := &fakePreview{quitAt: 5}
	src := NewSource(newFakeCapture(32, 32, 25, 40), "synthetic.mp4")

	res, err := src.Extract(ExtractOptions{
		Dir:       dir,
		Interval:  2,
		VideoPath: filepath.Join(dir, "copy.avi"),
		Preview:   preview,
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !res.Stopped || res.Read != 5 {
		t.Errorf("Extract() = %+v, want a stop after 5 frames", res)
	}
	if preview.shown != 5 {
		t.Errorf("preview showed %d frames, want 5", preview.shown)
	}
	if res.Written != 2 {
		t.Errorf("stills written = %d, want 2 (frames 2 and 4)", res.Written)
	}
	if _, err := os.Stat(filepath.Join(dir, "frame_6.jpg")); err == nil {
		t.Error("frame_6.jpg written after the stop")
	}
}

func TestExtractNeedsAnOutput(t *testing.T) {
	src := NewSource(newFakeCapture(32, 32, 25, 4), "synthetic.mp4")
	if _, err := src.Extract(ExtractOptions{}); err == nil {
		t.Error("Extract() without outputs should fail")
	}
}
