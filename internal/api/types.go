// Package api defines the managed-job contract the external hub drives and
// the report types exchanged over the control API.
package api

import (
	"context"
	"errors"
	"time"

	"github.com/chris-x86-64/rootlessspawner/internal/state"
)

var (
	ErrAlreadyRunning = errors.New("job already running")
	ErrUnknownJob     = errors.New("unknown job")
	ErrInvalidJobName = errors.New("invalid job name")
)

// Status is the outcome of a liveness poll for an exited process. A nil
// *Status means the process is still running. CodeKnown is false when the
// process was tracked only through a persisted pid, where no exit code is
// recoverable.
type Status struct {
	Code      int
	CodeKnown bool
}

// Endpoint is where a started service can be reached.
type Endpoint struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// StartRequest carries the launch parameters chosen by the hub.
type StartRequest struct {
	Command []string          `json:"command"`
	Env     map[string]string `json:"env,omitempty"`
	Workdir string            `json:"workdir,omitempty"`
}

// StopRequest controls a shutdown. Now skips the graceful interrupt tier.
type StopRequest struct {
	Now bool `json:"now"`
}

// JobReport describes one supervised job.
type JobReport struct {
	Name     string    `json:"name"`
	PID      int       `json:"pid,omitempty"`
	Running  bool      `json:"running"`
	ExitCode *int      `json:"exit_code,omitempty"`
	Endpoint *Endpoint `json:"endpoint,omitempty"`
}

// StatusReport aggregates all jobs known to the supervisor.
type StatusReport struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Jobs        map[string]JobReport `json:"jobs"`
}

// Job is the capability contract for one supervised child process. A Job owns
// exactly one process; multiplexing is composed outside of it.
type Job interface {
	// Start launches the command and returns the endpoint the service is
	// expected to listen on.
	Start(ctx context.Context, req StartRequest) (Endpoint, error)

	// Poll returns nil while the process runs and a Status once it has
	// exited. Observing an exit clears the job's state.
	Poll(ctx context.Context) (*Status, error)

	// Stop runs the escalating termination sequence. Escalation
	// exhaustion is not an error; the process is left behind as a zombie.
	Stop(ctx context.Context, now bool) error

	GetState() state.State
	LoadState(state.State)
	ClearState() error
}

// Manager exposes job operations to control surfaces such as the HTTP API.
type Manager interface {
	StartJob(ctx context.Context, name string, req StartRequest) (Endpoint, error)
	JobStatus(ctx context.Context, name string) (JobReport, error)
	StopJob(ctx context.Context, name string, req StopRequest) error

	// ClearJob forgets a job's persisted state without signalling the
	// process, e.g. after an exhausted stop left a zombie behind.
	ClearJob(ctx context.Context, name string) error

	Status(ctx context.Context) (StatusReport, error)
}
