package pipeline

import (
	"fmt"
	"time"

	"speedcam/metrics"
	"speedcam/report"
	"speedcam/similarity"
	"speedcam/velocity"
	"speedcam/video"

	"gocv.io/x/gocv"
)

// CompareFiles scores two still images with normalized cross-correlation
func CompareFiles(pathA, pathB string, m *metrics.Metrics) (*report.Report, error) {
	if m == nil {
		m = metrics.New()
	}
	m.Runs.Add(1)
	rep := report.New("similarity")

	started := time.Now()
	a := gocv.IMRead(pathA, gocv.IMReadColor)
	defer a.Close()
	b := gocv.IMRead(pathB, gocv.IMReadColor)
	defer b.Close()
	if a.Empty() || b.Empty() {
		err := fmt.Errorf("failed to read images %s and %s", pathA, pathB)
		m.ObserveStage(metrics.StageDecode, started, err)
		return rep, err
	}
	m.ObserveStage(metrics.StageDecode, started, nil)

	started = time.Now()
	score, err := similarity.Score(a, b)
	m.ObserveStage(metrics.StageSimilarity, started, err)
	if err != nil {
		return rep, err
	}
	rep.SetSimilarity(score)
	m.SetSimilarity(score)
	return rep, nil
}

// KnownSpeed computes speed from a measured distance and time
func KnownSpeed(meters, seconds float64, m *metrics.Metrics) (*report.Report, error) {
	if m == nil {
		m = metrics.New()
	}
	m.Runs.Add(1)
	rep := report.New("speed")
	rep.DisplacementMeters = meters
	rep.ElapsedSeconds = seconds

	started := time.Now()
	speed, err := velocity.EstimateFromKnownDistance(meters, seconds)
	m.ObserveStage(metrics.StageEstimate, started, err)
	if err != nil {
		return rep, err
	}
	rep.Speed = &speed
	m.SetSpeed(speed.KilometersPerHour)
	return rep, nil
}

// Extract copies frames of the source as configured in opts
func Extract(source *video.Source, opts video.ExtractOptions, m *metrics.Metrics) (video.ExtractResult, error) {
	if m == nil {
		m = metrics.New()
	}
	m.Runs.Add(1)

	started := time.Now()
	res, err := source.Extract(opts)
	m.ObserveStage(metrics.StageExtract, started, err)
	m.FramesDecoded.Add(uint64(res.Read))
	if err != nil {
		return res, err
	}
	debugMsg("PIPELINE", fmt.Sprintf("Extracted %d stills from %d frames of %s", res.Written, res.Read, source.Path()))
	return res, nil
}
