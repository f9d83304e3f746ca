package recorder

import (
	"sync"
	"time"
)

// Stage of an export run as seen by listeners.
type Stage string

const (
	StageStarted   Stage = "started"
	StageProgress  Stage = "progress"
	StageFinishing Stage = "finishing"
	StageComplete  Stage = "complete"
	StageError     Stage = "error"
)

// Event is delivered to listeners on every state change of the recorder.
type Event struct {
	Stage     Stage
	Progress  int
	Message   string
	Location  string
	Err       error
	Timestamp time.Time
}

type listeners struct {
	mu  sync.RWMutex
	fns []func(Event)
}

func (l *listeners) add(fn func(Event)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fns = append(l.fns, fn)
}

func (l *listeners) notify(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, fn := range l.fns {
		fn(e)
	}
}
