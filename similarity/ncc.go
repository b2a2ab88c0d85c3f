// Package similarity scores how alike two still images are.
package similarity

import (
	"fmt"

	"speedcam/frame"

	"gocv.io/x/gocv"
)

// Score computes the normalized cross-correlation of the luminance of a and b.
// Identical images with any contrast score 1. An image with no contrast is only
// mean-centred, which keeps the score defined instead of dividing by zero.
// Inputs are not modified.
func Score(a, b gocv.Mat) (float64, error) {
	if err := frame.CheckSize("similarity score", a, b); err != nil {
		return 0, err
	}
	if !frame.IsValid(a) || !frame.IsValid(b) {
		return 0, fmt.Errorf("similarity score: empty image")
	}

	grayA := frame.ToGray(a)
	defer grayA.Close()
	grayB := frame.ToGray(b)
	defer grayB.Close()

	meanA, stdA := meanStdDev(grayA)
	meanB, stdB := meanStdDev(grayB)

	pixA, err := grayA.DataPtrUint8()
	if err != nil {
		return 0, fmt.Errorf("similarity score: %v", err)
	}
	pixB, err := grayB.DataPtrUint8()
	if err != nil {
		return 0, fmt.Errorf("similarity score: %v", err)
	}

	var sum float64
	for i := range pixA {
		sum += normalize(float64(pixA[i]), meanA, stdA) * normalize(float64(pixB[i]), meanB, stdB)
	}
	return sum / float64(len(pixA)), nil
}

func normalize(v, mean, stddev float64) float64 {
	if stddev == 0 {
		return v - mean
	}
	return (v - mean) / stddev
}

// meanStdDev returns the population mean and standard deviation of a single-channel Mat
func meanStdDev(gray gocv.Mat) (float64, float64) {
	mean := gocv.NewMat()
	defer mean.Close()
	stddev := gocv.NewMat()
	defer stddev.Close()

	gocv.MeanStdDev(gray, &mean, &stddev)
	return mean.GetDoubleAt(0, 0), stddev.GetDoubleAt(0, 0)
}
