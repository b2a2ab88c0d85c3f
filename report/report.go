package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"speedcam/calibration"
	"speedcam/velocity"
	"speedcam/video"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// Report is the record of one measurement run
type Report struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Mode      string    `json:"mode"`

	VideoPath string          `json:"video_path,omitempty"`
	Video     *video.Metadata `json:"video,omitempty"`
	FrameA    int             `json:"frame_a"`
	FrameB    int             `json:"frame_b"`

	ElapsedSeconds float64  `json:"elapsed_seconds"`
	Similarity     *float64 `json:"similarity,omitempty"`

	Points      []calibration.MarkedPoint `json:"points"`
	Calibration *calibration.Result       `json:"calibration,omitempty"`

	DisplacementPixels float64          `json:"displacement_px"`
	DisplacementMeters float64          `json:"displacement_m"`
	Speed              *velocity.Result `json:"speed,omitempty"`

	CompositePath string `json:"composite_path,omitempty"`
	ThumbnailPath string `json:"thumbnail_path,omitempty"`
}

// New creates an empty report for the given mode
func New(mode string) *Report {
	return &Report{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		Mode:      mode,
		Points:    []calibration.MarkedPoint{},
	}
}

// SetSimilarity records the similarity score of the two frames
func (r *Report) SetSimilarity(score float64) {
	r.Similarity = &score
}

// WriteJSON saves the report as indented JSON
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// FileName is the default report file name inside an output directory
func (r *Report) FileName() string {
	return fmt.Sprintf("speedcam_%s_%s.json", r.CreatedAt.Format("20060102_150405"), r.ID[:8])
}

// PrintTable writes a human-readable summary
func (r *Report) PrintTable(w io.Writer) {
	fmt.Fprintf(w, "📋 MEASUREMENT %s\n", r.ID)
	fmt.Fprintf(w, "┌────────────────────────┬──────────────────────┐\n")
	row := func(name, value string) {
		fmt.Fprintf(w, "│ %-22s │ %20s │\n", name, value)
	}

	if r.Video != nil {
		row("Resolution", fmt.Sprintf("%dx%d", r.Video.Width, r.Video.Height))
		row("Frame rate", fmt.Sprintf("%.3f fps", r.Video.FrameRate))
		row("Frames", fmt.Sprintf("%d", r.Video.FrameCount))
	}
	if r.Mode != "speed" {
		row("Frame A / B", fmt.Sprintf("%d / %d", r.FrameA, r.FrameB))
	}
	if r.Similarity != nil {
		row("Similarity (NCC)", fmt.Sprintf("%.4f", *r.Similarity))
	}
	for _, p := range r.Points {
		row("Point "+p.Label.String(), fmt.Sprintf("(%d, %d)", p.X, p.Y))
	}
	if c := r.Calibration; c != nil {
		row("Reference", fmt.Sprintf("%.3f m", c.ReferenceMeters))
		row("Pixel distances", fmt.Sprintf("%.1f / %.1f", c.PixelDistance1, c.PixelDistance2))
		row("Scale", fmt.Sprintf("%.5f m/px", c.ScaleX))
		row("Pair disagreement", fmt.Sprintf("%.1f%%", c.Disagreement*100))
		row("Displacement", fmt.Sprintf("%.1f px = %.3f m", r.DisplacementPixels, r.DisplacementMeters))
	} else if r.Mode == "speed" {
		row("Distance", fmt.Sprintf("%.3f m", r.DisplacementMeters))
	}
	if r.ElapsedSeconds > 0 {
		row("Elapsed", fmt.Sprintf("%.3f s", r.ElapsedSeconds))
	}
	if r.Speed != nil {
		row("Speed", fmt.Sprintf("%.3f m/s", r.Speed.MetersPerSecond))
		row("Speed", fmt.Sprintf("%.2f km/h", r.Speed.KilometersPerHour))
	}
	fmt.Fprintf(w, "└────────────────────────┴──────────────────────┘\n")
}

// SaveComposite writes the annotated composite into dir, plus a JPEG thumbnail
// thumbWidth pixels wide when thumbWidth > 0.
func (r *Report) SaveComposite(img gocv.Mat, dir string, thumbWidth int) error {
	if img.Empty() {
		return fmt.Errorf("composite image is empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	base := r.ID[:8]
	compositePath := filepath.Join(dir, "composite_"+base+".png")
	if ok := gocv.IMWrite(compositePath, img); !ok {
		return fmt.Errorf("failed to write composite %s", compositePath)
	}
	r.CompositePath = compositePath

	if thumbWidth <= 0 {
		return nil
	}

	src, err := img.ToImage()
	if err != nil {
		return fmt.Errorf("failed to convert composite: %w", err)
	}
	if thumbWidth > src.Bounds().Dx() {
		thumbWidth = src.Bounds().Dx()
	}
	thumb := imaging.Resize(src, thumbWidth, 0, imaging.Lanczos)

	thumbPath := filepath.Join(dir, "thumb_"+base+".jpg")
	if err := imaging.Save(thumb, thumbPath, imaging.JPEGQuality(85)); err != nil {
		return fmt.Errorf("failed to write thumbnail: %w", err)
	}
	r.ThumbnailPath = thumbPath
	return nil
}
