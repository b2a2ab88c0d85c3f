package velocity

import (
	"errors"
	"math"
	"testing"

	"speedcam/calibration"
)

func TestEstimateFromKnownDistance(t *testing.T) {
	tests := []struct {
		name    string
		meters  float64
		seconds float64
		wantMS  float64
		wantKMH float64
		wantErr error
	}{
		{name: "hundred meters in ten seconds", meters: 100, seconds: 10, wantMS: 10, wantKMH: 36},
		{name: "standing still", meters: 0, seconds: 4, wantMS: 0, wantKMH: 0},
		{name: "zero duration", meters: 100, seconds: 0, wantErr: ErrInvalidDuration},
		{name: "negative duration", meters: 100, seconds: -2, wantErr: ErrInvalidDuration},
		{name: "NaN duration", meters: 100, seconds: math.NaN(), wantErr: ErrInvalidDuration},
		{name: "negative distance", meters: -5, seconds: 2, wantErr: ErrInvalidDistance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EstimateFromKnownDistance(tt.meters, tt.seconds)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got.MetersPerSecond-tt.wantMS) > 1e-12 {
				t.Errorf("MetersPerSecond = %v, want %v", got.MetersPerSecond, tt.wantMS)
			}
			if math.Abs(got.KilometersPerHour-tt.wantKMH) > 1e-12 {
				t.Errorf("KilometersPerHour = %v, want %v", got.KilometersPerHour, tt.wantKMH)
			}
		})
	}
}

func TestEstimateFromPixelDisplacement(t *testing.T) {
	cal := calibration.Result{ScaleX: 0.05, ScaleY: 0.05}

	got, err := EstimateFromPixelDisplacement(400, cal, 2)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got.MetersPerSecond-10) > 1e-12 {
		t.Errorf("MetersPerSecond = %v, want 10", got.MetersPerSecond)
	}
	if math.Abs(got.KilometersPerHour-36) > 1e-12 {
		t.Errorf("KilometersPerHour = %v, want 36", got.KilometersPerHour)
	}

	if _, err := EstimateFromPixelDisplacement(400, cal, 0); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("zero elapsed error = %v", err)
	}
	if _, err := EstimateFromPixelDisplacement(400, calibration.Result{}, 2); !errors.Is(err, calibration.ErrDegenerateCalibration) {
		t.Errorf("uncalibrated error = %v", err)
	}
	if _, err := EstimateFromPixelDisplacement(-1, cal, 2); !errors.Is(err, ErrInvalidDistance) {
		t.Errorf("negative pixels error = %v", err)
	}
}

func TestElapsedBetweenFrames(t *testing.T) {
	tests := []struct {
		from, to int
		fps      float64
		want     float64
		wantErr  bool
	}{
		{from: 0, to: 25, fps: 25, want: 1},
		{from: 40, to: 10, fps: 30, want: 1},
		{from: 5, to: 5, fps: 25, wantErr: true},
		{from: 0, to: 10, fps: 0, wantErr: true},
	}

	for _, tt := range tests {
		got, err := ElapsedBetweenFrames(tt.from, tt.to, tt.fps)
		if (err != nil) != tt.wantErr {
			t.Errorf("ElapsedBetweenFrames(%d, %d, %v) error = %v", tt.from, tt.to, tt.fps, err)
			continue
		}
		if err != nil {
			if !errors.Is(err, ErrInvalidDuration) {
				t.Errorf("error = %v, want ErrInvalidDuration", err)
			}
			continue
		}
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("ElapsedBetweenFrames(%d, %d, %v) = %v, want %v", tt.from, tt.to, tt.fps, got, tt.want)
		}
	}
}
