package clock

import (
	"fmt"
	"sync"
	"time"
)

const nanosPerSecond = int64(time.Second)

// Timestamp is a captured point in time split into whole seconds and
// the nanosecond remainder (0 <= Nsec < 1e9).
type Timestamp struct {
	Sec  int64
	Nsec int64
}

// FromTime converts a time.Time into a Timestamp
func FromTime(t time.Time) Timestamp {
	return Timestamp{Sec: t.Unix(), Nsec: int64(t.Nanosecond())}
}

// Time returns the wall-clock time the timestamp refers to
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Sec, ts.Nsec)
}

// Before reports whether ts is strictly earlier than other
func (ts Timestamp) Before(other Timestamp) bool {
	if ts.Sec != other.Sec {
		return ts.Sec < other.Sec
	}
	return ts.Nsec < other.Nsec
}

func (ts Timestamp) String() string {
	return fmt.Sprintf("%d.%09d", ts.Sec, ts.Nsec)
}

// Elapsed is a non-negative span between two timestamps.
type Elapsed struct {
	Sec  int64
	Nsec int64
}

// Since returns stop - start. When the nanosecond part of stop is smaller
// than the one of start, one second is borrowed. A stop earlier than start
// (realtime clock stepped back) yields a zero Elapsed.
func Since(start, stop Timestamp) Elapsed {
	if stop.Before(start) {
		return Elapsed{}
	}
	if stop.Nsec < start.Nsec {
		return Elapsed{
			Sec:  stop.Sec - start.Sec - 1,
			Nsec: nanosPerSecond + stop.Nsec - start.Nsec,
		}
	}
	return Elapsed{
		Sec:  stop.Sec - start.Sec,
		Nsec: stop.Nsec - start.Nsec,
	}
}

// Seconds returns the span as floating-point seconds
func (e Elapsed) Seconds() float64 {
	return float64(e.Sec) + float64(e.Nsec)/1e9
}

// Duration converts the span into a time.Duration
func (e Elapsed) Duration() time.Duration {
	return time.Duration(e.Sec)*time.Second + time.Duration(e.Nsec)
}

func (e Elapsed) String() string {
	return e.Duration().String()
}

// Clock is the time source used for measurements.
type Clock interface {
	Now() Timestamp
}

// Func adapts a function to the Clock interface
type Func func() Timestamp

// Now calls f
func (f Func) Now() Timestamp {
	return f()
}

type monotonic struct {
	base time.Time
}

// Monotonic returns a clock anchored to the wall time at construction and
// advanced by the runtime's monotonic reading, so wall clock adjustments
// after construction do not move it.
func Monotonic() Clock {
	return &monotonic{base: time.Now()}
}

func (m *monotonic) Now() Timestamp {
	return FromTime(m.base.Add(time.Since(m.base)))
}

type realtime struct{}

// Realtime returns the system wall clock. It can jump when the system
// time is adjusted.
func Realtime() Clock {
	return realtime{}
}

func (realtime) Now() Timestamp {
	return FromTime(time.Now().Round(0))
}

// Parse resolves a clock by name: "monotonic" (or empty) and "realtime".
func Parse(name string) (Clock, error) {
	switch name {
	case "", "monotonic":
		return Monotonic(), nil
	case "realtime":
		return Realtime(), nil
	default:
		return nil, fmt.Errorf("unknown clock %q (want monotonic or realtime)", name)
	}
}

// Fake is a manually driven clock for tests. It is safe for concurrent use.
type Fake struct {
	mu  sync.Mutex
	now Timestamp
}

// NewFake returns a fake clock reading ts
func NewFake(ts Timestamp) *Fake {
	return &Fake{now: ts}
}

// Now returns the current fake reading
func (f *Fake) Now() Timestamp {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the clock to ts, backwards included
func (f *Fake) Set(ts Timestamp) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = ts
}

// Advance moves the clock forward by d
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := f.now.Nsec + int64(d)
	f.now.Sec += total / nanosPerSecond
	f.now.Nsec = total % nanosPerSecond
	if f.now.Nsec < 0 {
		f.now.Sec--
		f.now.Nsec += nanosPerSecond
	}
}
