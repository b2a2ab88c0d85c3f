package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Run modes
const (
	ModeMeasure    = "measure"
	ModeSimilarity = "similarity"
	ModeSpeed      = "speed"
	ModeExtract    = "extract"
)

// Config represents the complete speedcam configuration
type Config struct {
	Mode        string            `yaml:"mode"`
	Video       VideoConfig       `yaml:"video"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Similarity  SimilarityConfig  `yaml:"similarity"`
	Speed       SpeedConfig       `yaml:"speed"`
	Overlay     OverlayConfig     `yaml:"overlay"`
	Display     DisplayConfig     `yaml:"display"`
	Output      OutputConfig      `yaml:"output"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// VideoConfig selects the input stream and the two reference frames
type VideoConfig struct {
	Path            string `yaml:"path"`
	FrameA          int    `yaml:"frame_a"`
	FrameB          int    `yaml:"frame_b"`
	ExtractInterval int    `yaml:"extract_interval"` // extract mode: save every N-th frame
	ExtractOutput   string `yaml:"extract_output"`   // extract mode: re-encoded copy of the stream
}

// CalibrationConfig holds the known real-world distance
type CalibrationConfig struct {
	ReferenceMeters float64 `yaml:"reference_meters"`
	ElapsedSeconds  float64 `yaml:"elapsed_seconds"` // overrides the frame-index timing when > 0
	Points          [][]int `yaml:"points"`          // optional pre-marked [[x, y], ...] in T1, D1, T2, D2 order
}

// SimilarityConfig names two still images to compare
type SimilarityConfig struct {
	ImageA string `yaml:"image_a"`
	ImageB string `yaml:"image_b"`
}

// SpeedConfig is the known distance + time input of speed mode
type SpeedConfig struct {
	DistanceMeters float64 `yaml:"distance_meters"`
	TimeSeconds    float64 `yaml:"time_seconds"`
}

// OverlayConfig sets the blend weights of the composite
type OverlayConfig struct {
	AlphaA float64 `yaml:"alpha_a"`
	AlphaB float64 `yaml:"alpha_b"`
}

// DisplayConfig controls the marking window
type DisplayConfig struct {
	Headless    bool   `yaml:"headless"`
	WindowName  string `yaml:"window_name"`
	PollDelayMs int    `yaml:"poll_delay_ms"`
}

// OutputConfig controls where results are written
type OutputConfig struct {
	Dir            string `yaml:"dir"`
	ThumbnailWidth int    `yaml:"thumbnail_width"`
}

// MetricsConfig controls Prometheus exposition
type MetricsConfig struct {
	Addr     string `yaml:"addr"`     // serve /metrics while running, e.g. ":9108"
	Textfile string `yaml:"textfile"` // write a .prom file at exit
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Mode: ModeMeasure,
		Video: VideoConfig{
			FrameA:          0,
			FrameB:          -1,
			ExtractInterval: 1000,
		},
		Overlay: OverlayConfig{
			AlphaA: 0.5,
			AlphaB: 0.5,
		},
		Display: DisplayConfig{
			WindowName:  "speedcam",
			PollDelayMs: 25,
		},
		Output: OutputConfig{
			Dir:            "output",
			ThumbnailWidth: 320,
		},
	}
}

// Load reads a YAML configuration file on top of the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}
