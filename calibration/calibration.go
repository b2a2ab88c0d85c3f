// Package calibration converts user-marked pixel points into a pixel-to-metric scale.
//
// Four points are marked on a composite of two frames: the rear (T) and front (D)
// of an object of known length at the first instant (T1, D1) and again at the
// second instant (T2, D2). Each pair is an independent pixel measurement of the
// same real distance and the two are averaged.
package calibration

import (
	"errors"
	"fmt"
	"image"
	"math"
)

var (
	// ErrInvalidPointCount is returned unless exactly four points are supplied
	ErrInvalidPointCount = errors.New("calibration needs exactly 4 points")
	// ErrDegenerateCalibration is returned when every marked pair is coincident
	ErrDegenerateCalibration = errors.New("degenerate calibration: zero pixel distance")
	// ErrInvalidReferenceDistance is returned when the real distance is not a positive finite number
	ErrInvalidReferenceDistance = errors.New("reference distance must be a positive number of meters")
)

// RequiredPoints is the number of points a calibration consumes
const RequiredPoints = 4

// Label identifies a marked point
type Label int

const (
	T1 Label = iota
	D1
	T2
	D2
)

// Labels lists the labels in marking order
var Labels = [RequiredPoints]Label{T1, D1, T2, D2}

func (l Label) String() string {
	switch l {
	case T1:
		return "T1"
	case D1:
		return "D1"
	case T2:
		return "T2"
	case D2:
		return "D2"
	}
	return fmt.Sprintf("Label(%d)", int(l))
}

// MarshalText encodes the label by name
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a label name
func (l *Label) UnmarshalText(text []byte) error {
	for _, candidate := range Labels {
		if candidate.String() == string(text) {
			*l = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown point label %q", text)
}

// MarkedPoint is a pixel coordinate marked by the user
type MarkedPoint struct {
	Label Label `json:"label"`
	X     int   `json:"x"`
	Y     int   `json:"y"`
}

// Point returns the coordinate as an image.Point
func (p MarkedPoint) Point() image.Point {
	return image.Point{X: p.X, Y: p.Y}
}

// PointCountError reports how many points were actually supplied
type PointCountError struct {
	Count int
}

func (e *PointCountError) Error() string {
	return fmt.Sprintf("%v, got %d", ErrInvalidPointCount, e.Count)
}

func (e *PointCountError) Unwrap() error {
	return ErrInvalidPointCount
}

// Result is a pixel-to-metric scale. ScaleY always equals ScaleX: the calibration
// is treated as isotropic and no vertical ratio is measured.
type Result struct {
	ScaleX float64 `json:"scale_x_m_per_px"`
	ScaleY float64 `json:"scale_y_m_per_px"`

	ReferenceMeters float64 `json:"reference_meters"`
	PixelDistance1  float64 `json:"pixel_distance_1"`
	PixelDistance2  float64 `json:"pixel_distance_2"`
	// Disagreement is |d1-d2| relative to their mean, a marking-error indicator
	Disagreement float64 `json:"disagreement"`
}

// Meters converts a pixel length to meters
func (r Result) Meters(pixels float64) float64 {
	return pixels * r.ScaleX
}

// Distance returns the Euclidean pixel distance between two points
func Distance(a, b MarkedPoint) float64 {
	return math.Hypot(float64(b.X)-float64(a.X), float64(b.Y)-float64(a.Y))
}

// ComputeScale derives meters-per-pixel from the four points, read positionally as
// (T1, D1, T2, D2), and the real distance each pair spans.
func ComputeScale(points []MarkedPoint, realDistanceMeters float64) (Result, error) {
	if len(points) != RequiredPoints {
		return Result{}, &PointCountError{Count: len(points)}
	}
	if !(realDistanceMeters > 0) || math.IsInf(realDistanceMeters, 0) {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidReferenceDistance, realDistanceMeters)
	}

	d1 := Distance(points[0], points[1])
	d2 := Distance(points[2], points[3])
	if d1+d2 == 0 {
		return Result{}, fmt.Errorf("%w: %v-%v and %v-%v coincide", ErrDegenerateCalibration,
			points[0].Point(), points[1].Point(), points[2].Point(), points[3].Point())
	}

	mean := (d1 + d2) / 2
	scale := realDistanceMeters / mean

	return Result{
		ScaleX:          scale,
		ScaleY:          scale,
		ReferenceMeters: realDistanceMeters,
		PixelDistance1:  d1,
		PixelDistance2:  d2,
		Disagreement:    math.Abs(d1-d2) / mean,
	}, nil
}

// Displacement returns how far the marked object moved between the two instants,
// in pixels: the mean of the rear-to-rear (T1→T2) and front-to-front (D1→D2) shifts.
func Displacement(points []MarkedPoint) (float64, error) {
	if len(points) != RequiredPoints {
		return 0, &PointCountError{Count: len(points)}
	}
	rear := Distance(points[0], points[2])
	front := Distance(points[1], points[3])
	return (rear + front) / 2, nil
}
