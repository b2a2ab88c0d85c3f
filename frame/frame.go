package frame

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrShapeMismatch is returned when two frames that must match in size do not
var ErrShapeMismatch = errors.New("frame shape mismatch")

// Shape describes the dimensions of a frame
type Shape struct {
	Rows     int
	Cols     int
	Channels int
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Cols, s.Rows, s.Channels)
}

// ShapeOf returns the dimensions of a Mat
func ShapeOf(m gocv.Mat) Shape {
	return Shape{Rows: m.Rows(), Cols: m.Cols(), Channels: m.Channels()}
}

// ShapeError carries both shapes of a failed comparison
type ShapeError struct {
	Op string
	A  Shape
	B  Shape
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %v (%s vs %s)", e.Op, ErrShapeMismatch, e.A, e.B)
}

func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}

// CheckSize fails when a and b differ in width or height
func CheckSize(op string, a, b gocv.Mat) error {
	sa, sb := ShapeOf(a), ShapeOf(b)
	if sa.Rows != sb.Rows || sa.Cols != sb.Cols {
		return &ShapeError{Op: op, A: sa, B: sb}
	}
	return nil
}

// CheckShape fails when a and b differ in width, height or channel depth
func CheckShape(op string, a, b gocv.Mat) error {
	sa, sb := ShapeOf(a), ShapeOf(b)
	if sa != sb {
		return &ShapeError{Op: op, A: sa, B: sb}
	}
	return nil
}

// IsValid reports whether m holds pixel data
func IsValid(m gocv.Mat) bool {
	return !m.Empty() && m.Rows() > 0 && m.Cols() > 0
}

// ToGray returns a new single-channel luminance copy of m. The caller owns the result.
func ToGray(m gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	switch m.Channels() {
	case 1:
		m.CopyTo(&gray)
	case 4:
		gocv.CvtColor(m, &gray, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(m, &gray, gocv.ColorBGRToGray)
	}
	return gray
}
