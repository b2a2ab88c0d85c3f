package overlay

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"speedcam/frame"

	"gocv.io/x/gocv"
)

// ErrInvalidAlpha is returned for blend weights outside [0, 1]
var ErrInvalidAlpha = errors.New("alpha outside [0, 1]")

// debugMsgFunc is a function that will be set by main package to use unified logging
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

// Overlay blends two equally sized frames into a new one: alphaA*a + alphaB*b,
// saturated to the pixel range. The weights need not sum to 1.
func Overlay(a gocv.Mat, alphaA float64, b gocv.Mat, alphaB float64) (gocv.Mat, error) {
	if err := frame.CheckShape("overlay", a, b); err != nil {
		return gocv.NewMat(), err
	}
	if !(alphaA >= 0 && alphaA <= 1) || !(alphaB >= 0 && alphaB <= 1) {
		return gocv.NewMat(), fmt.Errorf("overlay: %w (%v, %v)", ErrInvalidAlpha, alphaA, alphaB)
	}

	blended := gocv.NewMat()
	gocv.AddWeighted(a, alphaA, b, alphaB, 0, &blended)
	return blended, nil
}

// Renderer draws annotations on frames owned by the caller
type Renderer struct {
	textColor    color.RGBA
	shadowColor  color.RGBA
	lineColor    color.RGBA
	fontFace     gocv.HersheyFont
	fontScale    float64
	thickness    int
	lineSpacing  int
	markerRadius int
	labelOffset  image.Point
}

// NewRenderer creates a renderer with the default palette
func NewRenderer() *Renderer {
	return &Renderer{
		textColor:    color.RGBA{R: 255, G: 255, B: 255, A: 255},
		shadowColor:  color.RGBA{R: 0, G: 0, B: 0, A: 255},
		lineColor:    color.RGBA{R: 0x11, G: 0x8a, B: 0x28, A: 255},
		fontFace:     gocv.FontHersheySimplex,
		fontScale:    0.6,
		thickness:    1,
		lineSpacing:  22,
		markerRadius: 5,
		labelOffset:  image.Point{X: 8, Y: -8},
	}
}

// Annotate draws text at origin. Lines separated by '\n' stack downwards.
func (r *Renderer) Annotate(img *gocv.Mat, text string, origin image.Point) {
	if img == nil || img.Empty() || text == "" {
		return
	}

	for i, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		pos := image.Point{X: origin.X, Y: origin.Y + i*r.lineSpacing}
		// Dark outline keeps the text readable on bright frames
		gocv.PutText(img, line, pos, r.fontFace, r.fontScale, r.shadowColor, r.thickness+2)
		gocv.PutText(img, line, pos, r.fontFace, r.fontScale, r.textColor, r.thickness)
	}
}

// MarkPoint draws a small filled circle at point and the label beside it
func (r *Renderer) MarkPoint(img *gocv.Mat, point image.Point, label string, c color.RGBA) {
	if img == nil || img.Empty() {
		return
	}

	gocv.Circle(img, point, r.markerRadius, c, -1)
	gocv.Circle(img, point, r.markerRadius+1, r.shadowColor, 1)

	if label != "" {
		gocv.PutText(img, label, point.Add(r.labelOffset), r.fontFace, 0.5, c, 1)
	}
}

// DrawSegment connects two marked points and prints the pixel length at the midpoint
func (r *Renderer) DrawSegment(img *gocv.Mat, from, to image.Point, length float64) {
	if img == nil || img.Empty() {
		return
	}

	gocv.Line(img, from, to, r.lineColor, 2)

	mid := image.Point{X: (from.X + to.X) / 2, Y: (from.Y + to.Y) / 2}
	gocv.PutText(img, fmt.Sprintf("%.1fpx", length), mid.Add(image.Point{X: 6, Y: 0}),
		r.fontFace, 0.4, r.lineColor, 1)
}

// LabelColor returns the marker color used for a point label. T points are
// orange, D points cyan, anything else white.
func LabelColor(label string) color.RGBA {
	switch {
	case strings.HasPrefix(label, "T"):
		return color.RGBA{R: 255, G: 140, B: 0, A: 255}
	case strings.HasPrefix(label, "D"):
		return color.RGBA{R: 0, G: 200, B: 255, A: 255}
	}
	return color.RGBA{R: 255, G: 255, B: 255, A: 255}
}

// Composite loads both frames into one blended working image with a caption
func (r *Renderer) Composite(a gocv.Mat, alphaA float64, b gocv.Mat, alphaB float64, caption string) (gocv.Mat, error) {
	blended, err := Overlay(a, alphaA, b, alphaB)
	if err != nil {
		return blended, err
	}
	r.Annotate(&blended, caption, image.Point{X: 10, Y: 25})
	debugMsg("OVERLAY", fmt.Sprintf("Composite %dx%d (alpha %.2f/%.2f)", blended.Cols(), blended.Rows(), alphaA, alphaB))
	return blended, nil
}
