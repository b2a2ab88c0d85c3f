package video

import (
	"fmt"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"
)

// keyQuit stops a previewed extraction early
const keyQuit = 'q'

// Preview shows frames while they are extracted. *gocv.Window satisfies it.
type Preview interface {
	IMShow(img gocv.Mat)
	WaitKey(delay int) int
}

// ExtractOptions selects what Extract writes. At least one of Dir and VideoPath must be set.
type ExtractOptions struct {
	Dir       string // every Interval-th frame as frame_<n>.jpg
	Interval  int
	VideoPath string  // re-encoded copy of every frame (XVID)
	Preview   Preview // optional, 'q' stops early
}

// ExtractResult counts what an extraction did
type ExtractResult struct {
	Read    int  `json:"frames_read"`
	Written int  `json:"stills_written"`
	Stopped bool `json:"stopped_early"`
}

// ExtractFrames reads the stream from the start and writes every interval-th frame
// to dir as frame_<n>.jpg, n counting from 1. It returns the number of files written.
func (s *Source) ExtractFrames(dir string, interval int) (int, error) {
	res, err := s.Extract(ExtractOptions{Dir: dir, Interval: interval})
	return res.Written, err
}

// Extract reads the stream from the start, saving stills and a re-encoded copy
// as configured in opts, until the stream ends or the preview receives 'q'.
func (s *Source) Extract(opts ExtractOptions) (ExtractResult, error) {
	var res ExtractResult
	if opts.Dir == "" && opts.VideoPath == "" {
		return res, fmt.Errorf("extraction needs an output directory or an output video")
	}
	if opts.Dir != "" && opts.Interval <= 0 {
		return res, fmt.Errorf("extraction interval must be positive, got %d", opts.Interval)
	}
	meta, err := s.Metadata()
	if err != nil {
		return res, err
	}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return res, fmt.Errorf("failed to create output directory: %v", err)
		}
	}

	var writer *gocv.VideoWriter
	if opts.VideoPath != "" {
		writer, err = gocv.VideoWriterFile(opts.VideoPath, "XVID", meta.FrameRate, meta.Width, meta.Height, true)
		if err != nil {
			return res, fmt.Errorf("failed to open output video %s: %v", opts.VideoPath, err)
		}
		defer writer.Close()
		debugMsg("EXTRACT", fmt.Sprintf("Writing %s (%dx%d @ %.3f fps)", opts.VideoPath, meta.Width, meta.Height, meta.FrameRate))
	}

	s.capture.Set(gocv.VideoCapturePosFrames, 0)
	s.cursor = 0

	img := gocv.NewMat()
	defer img.Close()

	for s.capture.Read(&img) {
		if img.Empty() {
			break
		}
		res.Read++
		s.cursor = res.Read

		if writer != nil {
			if err := writer.Write(img); err != nil {
				return res, fmt.Errorf("failed to write frame %d to %s: %v", res.Read, opts.VideoPath, err)
			}
		}

		if opts.Dir != "" && res.Read%opts.Interval == 0 {
			name := filepath.Join(opts.Dir, fmt.Sprintf("frame_%d.jpg", res.Read))
			if ok := gocv.IMWrite(name, img); !ok {
				return res, fmt.Errorf("failed to write %s", name)
			}
			res.Written++
			debugMsg("EXTRACT", fmt.Sprintf("Saved %s", name))
		}

		if opts.Preview != nil {
			opts.Preview.IMShow(img)
			if key := opts.Preview.WaitKey(1); key >= 0 && key&0xFF == keyQuit {
				res.Stopped = true
				debugMsg("EXTRACT", fmt.Sprintf("Stopped from preview after %d frames", res.Read))
				break
			}
		}
	}

	debugMsg("EXTRACT", fmt.Sprintf("Read %d frames, wrote %d stills", res.Read, res.Written))
	return res, nil
}
