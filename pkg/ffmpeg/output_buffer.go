package ffmpeg

import "strings"

// OutputBuffer keeps the last few non-empty lines a child process wrote,
// so a failed probe can report why it failed.
type OutputBuffer struct {
	lines []string
	next  int
	count int
}

// NewOutputBuffer creates a buffer holding at most maxLines lines
func NewOutputBuffer(maxLines int) *OutputBuffer {
	if maxLines <= 0 {
		maxLines = 1
	}
	return &OutputBuffer{lines: make([]string, maxLines)}
}

// Add stores a line, overwriting the oldest once the buffer is full
func (ob *OutputBuffer) Add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	ob.lines[ob.next] = line
	ob.next = (ob.next + 1) % len(ob.lines)
	if ob.count < len(ob.lines) {
		ob.count++
	}
}

// GetRecent returns the stored lines, oldest first
func (ob *OutputBuffer) GetRecent() []string {
	out := make([]string, 0, ob.count)
	start := (ob.next - ob.count + len(ob.lines)) % len(ob.lines)
	for i := 0; i < ob.count; i++ {
		out = append(out, ob.lines[(start+i)%len(ob.lines)])
	}
	return out
}

// Len returns the number of stored lines
func (ob *OutputBuffer) Len() int {
	return ob.count
}
