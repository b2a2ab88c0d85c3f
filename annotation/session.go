// Package annotation owns the interactive marking of calibration points.
package annotation

import (
	"context"
	"errors"
	"fmt"

	"speedcam/calibration"
	"speedcam/overlay"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// debugMsgFunc is a function that will be set by main package to use unified logging
var debugMsgFunc func(component, message string, sessionID ...string)

// SetDebugFunction allows main package to provide the debug logger
func SetDebugFunction(fn func(component, message string, sessionID ...string)) {
	debugMsgFunc = fn
}

func debugMsg(component, message string, sessionID ...string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message, sessionID...)
	}
}

var (
	// ErrCancelled is returned by Run when the session ends on an escape signal
	ErrCancelled = errors.New("annotation cancelled")
	// ErrNotMarking is returned when events arrive outside the Marking state
	ErrNotMarking = errors.New("annotation session is not marking")
)

// State is the lifecycle stage of a Session
type State int

const (
	StateIdle State = iota
	StateMarking
	StateComplete
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMarking:
		return "marking"
	case StateComplete:
		return "complete"
	case StateCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// EventKind distinguishes input events
type EventKind int

const (
	EventClick EventKind = iota
	EventFinish
	EventCancel
	EventUndo
)

// Event is one input from the display/input collaborator
type Event struct {
	Kind EventKind
	X, Y int
}

// Click is a convenience constructor for a click event
func Click(x, y int) Event {
	return Event{Kind: EventClick, X: x, Y: y}
}

// Display is the window the working image is shown in. *gocv.Window satisfies it.
type Display interface {
	IMShow(img gocv.Mat)
	WaitKey(delay int) int
}

const (
	keyEnter    = 13
	keyNewline  = 10
	keyEscape   = 27
	keyUndo     = 'u'
	keyFinish   = 'q'
	defaultPoll = 25 // ms
)

var pointHints = map[calibration.Label]string{
	calibration.T1: "rear of the object, first instant",
	calibration.D1: "front of the object, first instant",
	calibration.T2: "rear of the object, second instant",
	calibration.D2: "front of the object, second instant",
}

// Session collects the four calibration points on a working copy of an image.
// It is driven from a single goroutine.
type Session struct {
	ID string

	renderer  *overlay.Renderer
	base      gocv.Mat
	working   gocv.Mat
	points    []calibration.MarkedPoint
	state     State
	ignored   int
	pollDelay int
}

// NewSession starts an idle session on a copy of img. The caller keeps ownership of img.
func NewSession(img gocv.Mat, renderer *overlay.Renderer) *Session {
	if renderer == nil {
		renderer = overlay.NewRenderer()
	}
	return &Session{
		ID:        uuid.New().String(),
		renderer:  renderer,
		base:      img.Clone(),
		working:   img.Clone(),
		points:    make([]calibration.MarkedPoint, 0, calibration.RequiredPoints),
		state:     StateIdle,
		pollDelay: defaultPoll,
	}
}

// SetPollDelay sets how long each display poll waits for a key, in milliseconds
func (s *Session) SetPollDelay(ms int) {
	if ms > 0 {
		s.pollDelay = ms
	}
}

// State returns the current lifecycle stage
func (s *Session) State() State {
	return s.state
}

// Points returns a copy of the points committed so far
func (s *Session) Points() []calibration.MarkedPoint {
	out := make([]calibration.MarkedPoint, len(s.points))
	copy(out, s.points)
	return out
}

// Ignored returns how many clicks arrived after all four points were placed
func (s *Session) Ignored() int {
	return s.ignored
}

// Image returns the working image with markers. It stays owned by the session.
func (s *Session) Image() gocv.Mat {
	return s.working
}

// Prompt describes what the user should do next
func (s *Session) Prompt() string {
	switch s.state {
	case StateIdle:
		return "session not started"
	case StateComplete:
		return "marking complete"
	case StateCancelled:
		return "marking cancelled"
	}
	if len(s.points) >= calibration.RequiredPoints {
		return "all points marked: press Enter or type 'done' to finish, 'undo' to replace the last point"
	}
	label := calibration.Labels[len(s.points)]
	return fmt.Sprintf("mark %s (%s)", label, pointHints[label])
}

// Start moves the session from Idle to Marking
func (s *Session) Start() error {
	if s.state != StateIdle {
		return fmt.Errorf("cannot start session in state %s", s.state)
	}
	s.state = StateMarking
	debugMsg("ANNOTATION", "Marking started: "+s.Prompt(), s.ID)
	return nil
}

// Handle applies one event. Clicks beyond the fourth are ignored.
func (s *Session) Handle(ev Event) error {
	if s.state != StateMarking {
		return fmt.Errorf("%w (state %s)", ErrNotMarking, s.state)
	}

	switch ev.Kind {
	case EventClick:
		if len(s.points) >= calibration.RequiredPoints {
			s.ignored++
			debugMsg("ANNOTATION", fmt.Sprintf("Ignoring click at (%d, %d): all %d points placed",
				ev.X, ev.Y, calibration.RequiredPoints), s.ID)
			return nil
		}
		p := calibration.MarkedPoint{Label: calibration.Labels[len(s.points)], X: ev.X, Y: ev.Y}
		s.points = append(s.points, p)
		s.redraw()
		debugMsg("ANNOTATION", fmt.Sprintf("%s at (%d, %d), next: %s", p.Label, p.X, p.Y, s.Prompt()), s.ID)

	case EventUndo:
		if len(s.points) == 0 {
			return nil
		}
		removed := s.points[len(s.points)-1]
		s.points = s.points[:len(s.points)-1]
		s.redraw()
		debugMsg("ANNOTATION", fmt.Sprintf("Removed %s, next: %s", removed.Label, s.Prompt()), s.ID)

	case EventFinish:
		s.state = StateComplete
		debugMsg("ANNOTATION", fmt.Sprintf("Marking finished with %d points", len(s.points)), s.ID)

	case EventCancel:
		s.state = StateCancelled
		debugMsg("ANNOTATION", fmt.Sprintf("Marking cancelled with %d points committed", len(s.points)), s.ID)

	default:
		return fmt.Errorf("unknown event kind %d", ev.Kind)
	}
	return nil
}

// Run drives the session until a finish or cancel signal. With a display it
// alternates between redrawing, polling keys and draining events; without one it
// blocks on events. A closed event channel without a display, or ctx ending,
// cancels the session. On cancellation the committed points are returned
// together with ErrCancelled.
func (s *Session) Run(ctx context.Context, events <-chan Event, display Display) ([]calibration.MarkedPoint, error) {
	if err := s.Start(); err != nil {
		return nil, err
	}

	var cause error
	for s.state == StateMarking {
		if display != nil {
			display.IMShow(s.working)
			if ev, ok := keyEvent(display.WaitKey(s.pollDelay)); ok {
				s.apply(ev)
				continue
			}
			select {
			case <-ctx.Done():
				cause = ctx.Err()
				s.apply(Event{Kind: EventCancel})
			case ev, ok := <-events:
				if !ok {
					// Keyboard input still works
					events = nil
					continue
				}
				s.apply(ev)
			default:
			}
			continue
		}

		select {
		case <-ctx.Done():
			cause = ctx.Err()
			s.apply(Event{Kind: EventCancel})
		case ev, ok := <-events:
			if !ok {
				cause = errors.New("input closed")
				s.apply(Event{Kind: EventCancel})
				continue
			}
			s.apply(ev)
		}
	}

	if s.state == StateCancelled {
		if cause != nil {
			return s.Points(), fmt.Errorf("%w: %v", ErrCancelled, cause)
		}
		return s.Points(), ErrCancelled
	}
	return s.Points(), nil
}

// apply hands an event from Run to Handle. Run keeps going on a rejected event.
func (s *Session) apply(ev Event) {
	if err := s.Handle(ev); err != nil {
		debugMsg("ANNOTATION", fmt.Sprintf("Dropped event %d: %v", ev.Kind, err), s.ID)
	}
}

// Close releases the session images
func (s *Session) Close() {
	s.base.Close()
	s.working.Close()
}

func (s *Session) redraw() {
	s.working.Close()
	s.working = s.base.Clone()

	for i, p := range s.points {
		// Pair each D point with the T point marked just before it
		if i%2 == 1 {
			prev := s.points[i-1]
			s.renderer.DrawSegment(&s.working, prev.Point(), p.Point(), calibration.Distance(prev, p))
		}
	}
	for _, p := range s.points {
		s.renderer.MarkPoint(&s.working, p.Point(), p.Label.String(), overlay.LabelColor(p.Label.String()))
	}
}

func keyEvent(key int) (Event, bool) {
	if key < 0 {
		return Event{}, false
	}
	switch key & 0xFF {
	case keyEnter, keyNewline, keyFinish:
		return Event{Kind: EventFinish}, true
	case keyEscape:
		return Event{Kind: EventCancel}, true
	case keyUndo:
		return Event{Kind: EventUndo}, true
	}
	return Event{}, false
}
