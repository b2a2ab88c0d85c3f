package config

import (
	"fmt"
	"math"
)

// Validate checks the configuration for the selected mode
func Validate(cfg *Config) error {
	switch cfg.Mode {
	case ModeMeasure:
		return validateMeasure(cfg)
	case ModeSimilarity:
		if cfg.Similarity.ImageA == "" || cfg.Similarity.ImageB == "" {
			return fmt.Errorf("similarity mode needs similarity.image_a and similarity.image_b")
		}
	case ModeSpeed:
		if !positive(cfg.Speed.TimeSeconds) {
			return fmt.Errorf("speed.time_seconds must be > 0")
		}
		if !(cfg.Speed.DistanceMeters >= 0) || math.IsInf(cfg.Speed.DistanceMeters, 0) {
			return fmt.Errorf("speed.distance_meters must be >= 0")
		}
	case ModeExtract:
		if cfg.Video.Path == "" {
			return fmt.Errorf("video.path is required")
		}
		if cfg.Video.ExtractInterval <= 0 && cfg.Video.ExtractOutput == "" {
			return fmt.Errorf("video.extract_interval must be > 0 unless video.extract_output is set")
		}
	default:
		return fmt.Errorf("unknown mode %q (want %s, %s, %s or %s)",
			cfg.Mode, ModeMeasure, ModeSimilarity, ModeSpeed, ModeExtract)
	}
	return nil
}

func validateMeasure(cfg *Config) error {
	if cfg.Video.Path == "" {
		return fmt.Errorf("video.path is required")
	}
	if cfg.Video.FrameA < 0 {
		return fmt.Errorf("video.frame_a must be >= 0")
	}
	// FrameB < 0 means "pick from the stream length" and is resolved later
	if cfg.Video.FrameB >= 0 && cfg.Video.FrameB == cfg.Video.FrameA && !positive(cfg.Calibration.ElapsedSeconds) {
		return fmt.Errorf("video.frame_a and video.frame_b are the same frame, time between them is zero")
	}
	if !positive(cfg.Calibration.ReferenceMeters) {
		return fmt.Errorf("calibration.reference_meters must be > 0")
	}
	if cfg.Calibration.ElapsedSeconds < 0 {
		return fmt.Errorf("calibration.elapsed_seconds must be >= 0")
	}
	for i, p := range cfg.Calibration.Points {
		if len(p) != 2 {
			return fmt.Errorf("calibration.points[%d]: want [x, y], got %d values", i, len(p))
		}
	}
	if err := validateAlpha("overlay.alpha_a", cfg.Overlay.AlphaA); err != nil {
		return err
	}
	if err := validateAlpha("overlay.alpha_b", cfg.Overlay.AlphaB); err != nil {
		return err
	}
	if cfg.Output.ThumbnailWidth < 0 {
		return fmt.Errorf("output.thumbnail_width must be >= 0")
	}
	return nil
}

func validateAlpha(name string, v float64) error {
	if !(v >= 0 && v <= 1) {
		return fmt.Errorf("%s must be within [0, 1], got %v", name, v)
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
