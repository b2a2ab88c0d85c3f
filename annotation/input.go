package annotation

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseEvent reads one line of typed input: "x y" or "x,y" is a click,
// "done" finishes, "undo" removes the last point and "esc" cancels.
func ParseEvent(line string) (Event, error) {
	line = strings.ToLower(strings.TrimSpace(line))

	switch line {
	case "done", "finish", "ok", "y", "yes":
		return Event{Kind: EventFinish}, nil
	case "esc", "cancel", "quit", "exit":
		return Event{Kind: EventCancel}, nil
	case "undo", "u":
		return Event{Kind: EventUndo}, nil
	case "":
		return Event{}, fmt.Errorf("empty input")
	}

	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == ',' || r == ';' || r == '\t'
	})
	if len(fields) != 2 {
		return Event{}, fmt.Errorf("expected \"x y\", got %q", line)
	}

	x, err := strconv.Atoi(fields[0])
	if err != nil {
		return Event{}, fmt.Errorf("invalid x coordinate %q", fields[0])
	}
	y, err := strconv.Atoi(fields[1])
	if err != nil {
		return Event{}, fmt.Errorf("invalid y coordinate %q", fields[1])
	}
	return Click(x, y), nil
}

// ScanEvents turns lines from r into events. Lines that do not parse are
// reported and skipped. The channel is closed at EOF, or when a line arrives
// after ctx has ended; a read blocked on r is not interrupted by ctx.
func ScanEvents(ctx context.Context, r io.Reader) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			text := scanner.Text()
			if strings.TrimSpace(text) == "" {
				continue
			}

			ev, err := ParseEvent(text)
			if err != nil {
				debugMsg("INPUT", fmt.Sprintf("❌ %v", err))
				continue
			}

			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			debugMsg("INPUT", fmt.Sprintf("Input scanner error: %v", err))
		}
	}()

	return events
}

// Replay returns a closed channel that yields events in order, for pre-marked points
func Replay(events ...Event) <-chan Event {
	ch := make(chan Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}
