// Package velocity turns a travelled distance and an elapsed time into a speed.
//
// There are two entry points on purpose. EstimateFromKnownDistance takes meters;
// EstimateFromPixelDisplacement takes pixels together with the calibration that
// converts them, so a pixel count can never be reported as meters.
package velocity

import (
	"errors"
	"fmt"
	"math"

	"speedcam/calibration"
)

var (
	// ErrInvalidDuration is returned when the elapsed time is not positive
	ErrInvalidDuration = errors.New("elapsed time must be greater than zero")
	// ErrInvalidDistance is returned for negative or non-finite distances
	ErrInvalidDistance = errors.New("distance must be a non-negative number")
)

// msToKmh converts meters per second to kilometers per hour
const msToKmh = 3.6

// Result is a speed in both unit systems
type Result struct {
	MetersPerSecond   float64 `json:"meters_per_second"`
	KilometersPerHour float64 `json:"kilometers_per_hour"`
}

// EstimateFromKnownDistance computes the average speed over meters travelled in elapsedSeconds
func EstimateFromKnownDistance(meters, elapsedSeconds float64) (Result, error) {
	return estimate(meters, elapsedSeconds)
}

// EstimateFromPixelDisplacement converts a pixel displacement with cal and computes the speed
func EstimateFromPixelDisplacement(pixels float64, cal calibration.Result, elapsedSeconds float64) (Result, error) {
	if !(pixels >= 0) || math.IsInf(pixels, 0) {
		return Result{}, fmt.Errorf("%w: %v px", ErrInvalidDistance, pixels)
	}
	if !(cal.ScaleX > 0) {
		return Result{}, fmt.Errorf("%w: %v m/px", calibration.ErrDegenerateCalibration, cal.ScaleX)
	}
	return estimate(cal.Meters(pixels), elapsedSeconds)
}

// ElapsedBetweenFrames returns the time between two frame indices of a stream
func ElapsedBetweenFrames(from, to int, frameRate float64) (float64, error) {
	if !(frameRate > 0) || math.IsInf(frameRate, 0) {
		return 0, fmt.Errorf("%w: frame rate %v", ErrInvalidDuration, frameRate)
	}
	frames := to - from
	if frames < 0 {
		frames = -frames
	}
	if frames == 0 {
		return 0, fmt.Errorf("%w: frames %d and %d are the same instant", ErrInvalidDuration, from, to)
	}
	return float64(frames) / frameRate, nil
}

func estimate(distance, elapsedSeconds float64) (Result, error) {
	if !(elapsedSeconds > 0) || math.IsInf(elapsedSeconds, 0) {
		return Result{}, fmt.Errorf("%w: %v s", ErrInvalidDuration, elapsedSeconds)
	}
	if !(distance >= 0) || math.IsInf(distance, 0) {
		return Result{}, fmt.Errorf("%w: %v m", ErrInvalidDistance, distance)
	}

	ms := distance / elapsedSeconds
	return Result{
		MetersPerSecond:   ms,
		KilometersPerHour: ms * msToKmh,
	}, nil
}
