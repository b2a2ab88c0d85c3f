package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"speedcam/annotation"
	"speedcam/calibration"
	"speedcam/metrics"
	"speedcam/overlay"
	"speedcam/report"
	"speedcam/similarity"
	"speedcam/velocity"
	"speedcam/video"

	"gocv.io/x/gocv"
)

var debugMsgFunc func(component, message string, sessionID ...string)

// SetDebugFunction sets the debug logging function for this package
func SetDebugFunction(fn func(component, message string, sessionID ...string)) {
	debugMsgFunc = fn
}

func debugMsg(component, message string, sessionID ...string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message, sessionID...)
	}
}

// Options parameterize one measurement
type Options struct {
	FrameA int
	FrameB int // < 0 selects the last frame

	ReferenceMeters float64
	ElapsedSeconds  float64 // overrides frame timing when > 0

	AlphaA float64
	AlphaB float64

	PollDelayMs    int
	OutputDir      string // empty skips writing files
	ThumbnailWidth int
}

// Pipeline runs frames → composite → marking → calibration → speed
type Pipeline struct {
	source   *video.Source
	metrics  *metrics.Metrics
	renderer *overlay.Renderer
	display  annotation.Display
	opts     Options
}

// New creates a pipeline over an opened source. A nil m records nothing.
func New(source *video.Source, m *metrics.Metrics, opts Options) *Pipeline {
	if m == nil {
		m = metrics.New()
	}
	return &Pipeline{
		source:   source,
		metrics:  m,
		renderer: overlay.NewRenderer(),
		opts:     opts,
	}
}

// SetDisplay shows the marking session in a window; without one input comes only from events
func (p *Pipeline) SetDisplay(d annotation.Display) {
	p.display = d
}

// Measure runs the full measurement. Marking input arrives on events.
// A cancelled marking session returns the partial report and an error matching
// annotation.ErrCancelled.
func (p *Pipeline) Measure(ctx context.Context, events <-chan annotation.Event) (*report.Report, error) {
	p.metrics.Runs.Add(1)
	rep := report.New("measure")
	rep.VideoPath = p.source.Path()

	started := time.Now()
	meta, err := p.source.Metadata()
	p.metrics.ObserveStage(metrics.StageOpen, started, err)
	if err != nil {
		return rep, fmt.Errorf("failed to read video metadata: %w", err)
	}
	rep.Video = &meta
	debugMsg("PIPELINE", fmt.Sprintf("Video %dx%d @ %.3f fps, %d frames", meta.Width, meta.Height, meta.FrameRate, meta.FrameCount), rep.ID)

	frameA, frameB := p.opts.FrameA, p.opts.FrameB
	if frameB < 0 {
		frameB = meta.FrameCount - 1
	}
	rep.FrameA, rep.FrameB = frameA, frameB

	imgA, err := p.decode(frameA)
	if err != nil {
		return rep, err
	}
	defer imgA.Close()
	imgB, err := p.decode(frameB)
	if err != nil {
		return rep, err
	}
	defer imgB.Close()

	started = time.Now()
	score, err := similarity.Score(imgA, imgB)
	p.metrics.ObserveStage(metrics.StageSimilarity, started, err)
	if err != nil {
		return rep, fmt.Errorf("failed to compare frames: %w", err)
	}
	rep.SetSimilarity(score)
	p.metrics.SetSimilarity(score)
	debugMsg("PIPELINE", fmt.Sprintf("Frame %d vs %d similarity %.4f", frameA, frameB, score), rep.ID)

	started = time.Now()
	caption := fmt.Sprintf("frames %d + %d", frameA, frameB)
	composite, err := p.renderer.Composite(imgA, p.opts.AlphaA, imgB, p.opts.AlphaB, caption)
	p.metrics.ObserveStage(metrics.StageOverlay, started, err)
	if err != nil {
		composite.Close()
		return rep, fmt.Errorf("failed to build composite: %w", err)
	}
	defer composite.Close()

	session := annotation.NewSession(composite, p.renderer)
	defer session.Close()
	if p.opts.PollDelayMs > 0 {
		session.SetPollDelay(p.opts.PollDelayMs)
	}

	started = time.Now()
	points, err := session.Run(ctx, events, p.display)
	p.metrics.ObserveStage(metrics.StageAnnotate, started, err)
	p.metrics.PointsMarked.Add(uint64(len(points)))
	p.metrics.ClicksIgnored.Add(uint64(session.Ignored()))
	rep.Points = points
	if err != nil {
		if errors.Is(err, annotation.ErrCancelled) {
			p.metrics.SessionsAborted.Add(1)
		}
		return rep, fmt.Errorf("marking session %s: %w", session.ID, err)
	}

	started = time.Now()
	cal, err := calibration.ComputeScale(points, p.opts.ReferenceMeters)
	p.metrics.ObserveStage(metrics.StageCalibrate, started, err)
	if err != nil {
		return rep, fmt.Errorf("calibration failed: %w", err)
	}
	rep.Calibration = &cal
	p.metrics.SetScale(cal.ScaleX)
	debugMsg("PIPELINE", fmt.Sprintf("Scale %.5f m/px (pair disagreement %.1f%%)", cal.ScaleX, cal.Disagreement*100), rep.ID)

	started = time.Now()
	speed, err := p.estimate(rep, points, cal, meta.FrameRate)
	p.metrics.ObserveStage(metrics.StageEstimate, started, err)
	if err != nil {
		return rep, err
	}
	rep.Speed = &speed
	p.metrics.SetSpeed(speed.KilometersPerHour)

	if p.opts.OutputDir != "" {
		started = time.Now()
		err := p.save(rep, session.Image())
		p.metrics.ObserveStage(metrics.StageReport, started, err)
		if err != nil {
			return rep, err
		}
	}

	return rep, nil
}

func (p *Pipeline) decode(index int) (gocv.Mat, error) {
	started := time.Now()
	img, err := p.source.FrameAt(index)
	p.metrics.ObserveStage(metrics.StageDecode, started, err)
	if err != nil {
		img.Close()
		return gocv.NewMat(), fmt.Errorf("failed to read frame: %w", err)
	}
	p.metrics.FramesDecoded.Add(1)
	debugMsg("PIPELINE", fmt.Sprintf("Decoded frame %d in %v", index, p.source.LastReadDuration()))
	return img, nil
}

func (p *Pipeline) estimate(rep *report.Report, points []calibration.MarkedPoint, cal calibration.Result, fps float64) (velocity.Result, error) {
	elapsed := p.opts.ElapsedSeconds
	if elapsed <= 0 {
		var err error
		elapsed, err = velocity.ElapsedBetweenFrames(rep.FrameA, rep.FrameB, fps)
		if err != nil {
			return velocity.Result{}, fmt.Errorf("failed to time frames: %w", err)
		}
	}
	rep.ElapsedSeconds = elapsed

	pixels, err := calibration.Displacement(points)
	if err != nil {
		return velocity.Result{}, fmt.Errorf("failed to measure displacement: %w", err)
	}
	rep.DisplacementPixels = pixels
	rep.DisplacementMeters = cal.Meters(pixels)

	speed, err := velocity.EstimateFromPixelDisplacement(pixels, cal, elapsed)
	if err != nil {
		return velocity.Result{}, fmt.Errorf("failed to estimate speed: %w", err)
	}
	return speed, nil
}

func (p *Pipeline) save(rep *report.Report, marked gocv.Mat) error {
	final := marked.Clone()
	defer final.Close()

	summary := fmt.Sprintf("%.3f m in %.3f s\n%.2f km/h", rep.DisplacementMeters, rep.ElapsedSeconds, rep.Speed.KilometersPerHour)
	p.renderer.Annotate(&final, summary, image.Point{X: 10, Y: final.Rows() - 40})

	if err := rep.SaveComposite(final, p.opts.OutputDir, p.opts.ThumbnailWidth); err != nil {
		return err
	}
	path := filepath.Join(p.opts.OutputDir, rep.FileName())
	if err := rep.WriteJSON(path); err != nil {
		return err
	}
	debugMsg("PIPELINE", "Report saved to "+path, rep.ID)
	return nil
}
