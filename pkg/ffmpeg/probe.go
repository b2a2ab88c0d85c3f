package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// ProbeBinary is the executable used by Probe
var ProbeBinary = "ffprobe"

// StreamInfo holds the properties ffprobe reports for the first video stream
type StreamInfo struct {
	Width      int
	Height     int
	FrameRate  float64
	FrameCount int
}

var (
	entryRegex = regexp.MustCompile(`^\s*([a-z_]+)=(.*)$`)
	rateRegex  = regexp.MustCompile(`^(\d+)(?:/(\d+))?$`)
)

// Probe counts the packets of the first video stream of path. This decodes the
// container index only, but still reads the whole file.
func Probe(ctx context.Context, path string) (StreamInfo, error) {
	cmd := exec.CommandContext(ctx, ProbeBinary,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=width,height,r_frame_rate,nb_read_packets",
		"-of", "default=noprint_wrappers=1",
		path,
	)

	var stdout bytes.Buffer
	stderr := NewOutputBuffer(20)
	cmd.Stdout = &stdout

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return StreamInfo{}, fmt.Errorf("failed to create stderr pipe: %v", err)
	}
	if err := cmd.Start(); err != nil {
		return StreamInfo{}, fmt.Errorf("failed to start %s: %v", ProbeBinary, err)
	}

	collectOutput(stderrPipe, stderr)

	if err := cmd.Wait(); err != nil {
		recent := stderr.GetRecent()
		if len(recent) > 0 {
			return StreamInfo{}, fmt.Errorf("%s failed: %v: %s", ProbeBinary, err, strings.Join(recent, "; "))
		}
		return StreamInfo{}, fmt.Errorf("%s failed: %v", ProbeBinary, err)
	}

	return ParseProbeOutput(&stdout)
}

// collectOutput copies every line of r into buffer until EOF
func collectOutput(r io.Reader, buffer *OutputBuffer) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		buffer.Add(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		buffer.Add(fmt.Sprintf("SCANNER_ERROR: %v", err))
	}
}

// ParseProbeOutput parses ffprobe "default=noprint_wrappers=1" key=value output
func ParseProbeOutput(r io.Reader) (StreamInfo, error) {
	var info StreamInfo
	seen := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		matches := entryRegex.FindStringSubmatch(scanner.Text())
		if len(matches) != 3 {
			continue
		}
		key, value := matches[1], strings.TrimSpace(matches[2])

		var err error
		switch key {
		case "width":
			info.Width, err = strconv.Atoi(value)
		case "height":
			info.Height, err = strconv.Atoi(value)
		case "r_frame_rate":
			info.FrameRate, err = parseRate(value)
		case "nb_read_packets", "nb_frames":
			if value == "N/A" {
				continue
			}
			info.FrameCount, err = strconv.Atoi(value)
		default:
			continue
		}
		if err != nil {
			return StreamInfo{}, fmt.Errorf("invalid %s value %q: %v", key, value, err)
		}
		seen = true
	}
	if err := scanner.Err(); err != nil {
		return StreamInfo{}, err
	}
	if !seen {
		return StreamInfo{}, fmt.Errorf("no video stream entries in probe output")
	}

	return info, nil
}

// parseRate parses "30000/1001" or "25"
func parseRate(value string) (float64, error) {
	matches := rateRegex.FindStringSubmatch(value)
	if matches == nil {
		return 0, fmt.Errorf("unrecognised rate")
	}

	num, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, err
	}
	if matches[2] == "" {
		return num, nil
	}

	den, err := strconv.ParseFloat(matches[2], 64)
	if err != nil {
		return 0, err
	}
	if den == 0 {
		return 0, nil
	}
	return num / den, nil
}
