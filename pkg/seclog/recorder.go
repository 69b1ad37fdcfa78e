package seclog

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Recorder keeps security events in a circular in-memory buffer
type Recorder struct {
	events     []*Event
	bufferSize int
	index      int
	count      int
	total      int64
	sinks      []Sink
	mu         sync.RWMutex
}

// NewRecorder creates a new recorder with the specified buffer size
func NewRecorder(bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &Recorder{
		events:     make([]*Event, bufferSize),
		bufferSize: bufferSize,
	}
}

// AddSink attaches an additional sink; every logged event is forwarded to it.
// Sinks must be attached before the recorder is shared between goroutines.
func (r *Recorder) AddSink(sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, sink)
}

// Log records a security event
func (r *Recorder) Log(event *Event) error {
	if event == nil {
		return ErrInvalidEvent
	}

	r.mu.Lock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}

	r.events[r.index] = event
	r.index = (r.index + 1) % r.bufferSize
	if r.count < r.bufferSize {
		r.count++
	}
	r.total++

	sinks := r.sinks
	r.mu.Unlock()

	// Forward outside the lock; a slow sink must not block enforcement
	var firstErr error
	for _, sink := range sinks {
		if err := sink.Log(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// LogSecurity records a free-form security message with severity and data
func (r *Recorder) LogSecurity(message string, severity Severity, data map[string]any) error {
	return r.Log(&Event{
		Severity: severity,
		Message:  message,
		Data:     data,
	})
}

// EventCount returns the total number of events logged
func (r *Recorder) EventCount() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

// Query returns buffered events matching the filter, oldest first
func (r *Recorder) Query(filter *Filter) []*Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]*Event, 0)
	for i := 0; i < r.count; i++ {
		idx := i
		if r.count == r.bufferSize {
			idx = (r.index + i) % r.bufferSize
		}
		event := r.events[idx]
		if event == nil {
			continue
		}
		if filter == nil || filter.Matches(event) {
			results = append(results, event)
		}
	}
	return results
}

// Recent returns up to n most recent buffered events, newest first
func (r *Recorder) Recent(n int) []*Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || n > r.count {
		n = r.count
	}
	results := make([]*Event, 0, n)
	for i := 0; i < n; i++ {
		idx := (r.index - 1 - i + r.bufferSize) % r.bufferSize
		if r.events[idx] != nil {
			results = append(results, r.events[idx])
		}
	}
	return results
}
