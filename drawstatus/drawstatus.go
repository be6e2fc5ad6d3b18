// Package drawstatus carries human-readable progress
// updates from long-running operations to whoever is
// watching them.
package drawstatus

import (
	"fmt"
	"log"
	"sync"
)

// NoProgress is passed as the progress of an update that
// carries only a message.
const NoProgress = -1.0

// A Reporter receives status updates.
//
// Progress is a percentage in [0, 100], or NoProgress.
// Updates are purely observational.
type Reporter interface {
	Report(message string, progress float64)
}

// An Update is one recorded status notification.
type Update struct {
	Message  string
	Progress float64
}

// HasProgress checks if the update carries a progress
// value.
func (u Update) HasProgress() bool {
	return u.Progress >= 0
}

// String formats the update for logs.
func (u Update) String() string {
	if !u.HasProgress() {
		return u.Message
	}
	return fmt.Sprintf("%s (%.0f%%)", u.Message, u.Progress)
}

// Func adapts a function to a Reporter.
type Func func(message string, progress float64)

// Report calls f.
func (f Func) Report(message string, progress float64) {
	f(message, progress)
}

// Discard is a Reporter which ignores every update.
var Discard Reporter = Func(func(string, float64) {})

// Log is a Reporter which prints every update with the
// standard logger.
var Log Reporter = &LogReporter{}

// A LogReporter prints updates to a *log.Logger.
type LogReporter struct {
	// Logger is used for output.
	// If nil, the standard logger is used.
	Logger *log.Logger
}

// Report logs the update.
func (l *LogReporter) Report(message string, progress float64) {
	line := Update{Message: message, Progress: progress}.String()
	if l.Logger == nil {
		log.Println(line)
	} else {
		l.Logger.Println(line)
	}
}

// Multi forwards every update to each of its Reporters,
// in order.
type Multi []Reporter

// Report forwards the update.
func (m Multi) Report(message string, progress float64) {
	for _, r := range m {
		r.Report(message, progress)
	}
}

// A Recorder keeps every update it receives.
// It is safe for concurrent use.
type Recorder struct {
	lock    sync.Mutex
	updates []Update
}

// Report records the update.
func (r *Recorder) Report(message string, progress float64) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.updates = append(r.updates, Update{Message: message, Progress: progress})
}

// Updates returns a copy of the recorded updates.
func (r *Recorder) Updates() []Update {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]Update{}, r.updates...)
}

// Last returns the most recent update, if there is one.
func (r *Recorder) Last() (Update, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if len(r.updates) == 0 {
		return Update{}, false
	}
	return r.updates[len(r.updates)-1], true
}

// OrDiscard returns r, or Discard if r is nil.
func OrDiscard(r Reporter) Reporter {
	if r == nil {
		return Discard
	}
	return r
}
