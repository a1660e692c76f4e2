// Package stopwatch measures wall-clock intervals and accumulates them
// under caller-chosen labels.
//
// A Stopwatch is owned by a single goroutine. It does no locking; callers
// sharing one across goroutines must serialize access themselves.
package stopwatch

import (
	"sort"

	"github.com/psantana5/regtimer/pkg/clock"
)

// DefaultLabelWidth is the label column width used by Report
const DefaultLabelWidth = 20

// Event describes one completed start/stop cycle.
type Event struct {
	Label   string
	Named   bool // false for Stop
	Start   clock.Timestamp
	Stop    clock.Timestamp
	Elapsed clock.Elapsed
}

// Observer is notified after every stop.
type Observer interface {
	ObserveStop(Event)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(Event)

// ObserveStop calls f
func (f ObserverFunc) ObserveStop(e Event) {
	f(e)
}

// Option configures a Stopwatch
type Option func(*Stopwatch)

// WithClock sets the time source. The default is clock.Monotonic().
func WithClock(c clock.Clock) Option {
	return func(s *Stopwatch) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithObserver registers an observer notified after every stop
func WithObserver(o Observer) Option {
	return func(s *Stopwatch) {
		s.observer = o
	}
}

// WithLabelWidth sets the label column width of Report
func WithLabelWidth(width int) Option {
	return func(s *Stopwatch) {
		if width > 0 {
			s.labelWidth = width
		}
	}
}

// Stopwatch records start/stop pairs and keeps the last elapsed seconds
// per label.
type Stopwatch struct {
	clock      clock.Clock
	observer   Observer
	labelWidth int

	state        State
	start        clock.Timestamp
	stop         clock.Timestamp
	measurements map[string]float64
}

// New creates an idle stopwatch
func New(opts ...Option) *Stopwatch {
	s := &Stopwatch{
		clock:        clock.Monotonic(),
		labelWidth:   DefaultLabelWidth,
		state:        Idle,
		measurements: make(map[string]float64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state
func (s *Stopwatch) State() State {
	return s.state
}

// Running reports whether a start is awaiting its stop
func (s *Stopwatch) Running() bool {
	return s.state == Running
}

// Start records now as the start timestamp. It panics with a *MisuseError
// when the stopwatch is already running.
func (s *Stopwatch) Start() {
	if err := s.TryStart(); err != nil {
		panic(err)
	}
}

// TryStart is Start returning the misuse instead of panicking.
func (s *Stopwatch) TryStart() error {
	if ValidateTransition(s.state, Running) != nil {
		return &MisuseError{Op: "start", State: s.state}
	}
	s.start = s.clock.Now()
	s.state = Running
	return nil
}

// Stop records now as the stop timestamp and returns the elapsed time since
// Start. It panics with a *MisuseError when the stopwatch is idle.
func (s *Stopwatch) Stop() clock.Elapsed {
	elapsed, err := s.TryStop()
	if err != nil {
		panic(err)
	}
	return elapsed
}

// TryStop is Stop returning the misuse instead of panicking.
func (s *Stopwatch) TryStop() (clock.Elapsed, error) {
	return s.stopAs("", false)
}

// StopNamed stops the stopwatch and stores the elapsed seconds under label,
// replacing any earlier value for that label. It panics like Stop.
func (s *Stopwatch) StopNamed(label string) {
	if _, err := s.stopAs(label, true); err != nil {
		panic(err)
	}
}

func (s *Stopwatch) stopAs(label string, named bool) (clock.Elapsed, error) {
	if ValidateTransition(s.state, Idle) != nil {
		return clock.Elapsed{}, &MisuseError{Op: "stop", State: s.state}
	}
	s.stop = s.clock.Now()
	s.state = Idle

	elapsed := clock.Since(s.start, s.stop)
	if named {
		s.measurements[label] = elapsed.Seconds()
	}

	if s.observer != nil {
		s.observer.ObserveStop(Event{
			Label:   label,
			Named:   named,
			Start:   s.start,
			Stop:    s.stop,
			Elapsed: elapsed,
		})
	}
	return elapsed, nil
}

// Measurement is one accumulated (label, seconds) pair.
type Measurement struct {
	Label   string  `json:"tag" yaml:"label"`
	Seconds float64 `json:"time" yaml:"seconds"`
}

// Measurements returns all accumulated pairs ordered by label
func (s *Stopwatch) Measurements() []Measurement {
	out := make([]Measurement, 0, len(s.measurements))
	for _, label := range s.labels() {
		out = append(out, Measurement{Label: label, Seconds: s.measurements[label]})
	}
	return out
}

// Get returns the seconds stored under label
func (s *Stopwatch) Get(label string) (float64, bool) {
	v, ok := s.measurements[label]
	return v, ok
}

// Len returns the number of distinct labels
func (s *Stopwatch) Len() int {
	return len(s.measurements)
}

// Total returns the sum of all stored values
func (s *Stopwatch) Total() float64 {
	return Sum(s.Measurements())
}

// Report renders the measurements and their total. See Format.
func (s *Stopwatch) Report() string {
	return Format(s.Measurements(), s.labelWidth)
}

func (s *Stopwatch) labels() []string {
	labels := make([]string, 0, len(s.measurements))
	for label := range s.measurements {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
