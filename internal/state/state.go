// Package state persists the minimal record a supervisor needs to resume
// liveness tracking of a process it did not itself start.
package state

// State is the durable portion of a supervised job. The pid is serialized
// only while a process is believed to be running; an empty document means no
// process is tracked.
type State struct {
	PID int `json:"pid,omitempty"`
}

// Running reports whether the state refers to a live process.
func (s State) Running() bool {
	return s.PID != 0
}

// Store loads and saves job state. Saves must be durable before they return
// so that a restarted supervisor never observes a stale record for a process
// already confirmed dead.
type Store interface {
	Save(State) error
	Load() (State, error)
	Clear() error
}
