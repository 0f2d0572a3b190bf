// Package spawner supervises a single externally requested child process:
// launching it in its own session, reporting liveness and shutting it down
// through an escalating, timeout-bounded signal sequence.
package spawner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chris-x86-64/rootlessspawner/internal/api"
	"github.com/chris-x86-64/rootlessspawner/internal/metrics"
	"github.com/chris-x86-64/rootlessspawner/internal/netutil"
	"github.com/chris-x86-64/rootlessspawner/internal/proc"
	"github.com/chris-x86-64/rootlessspawner/internal/state"
)

// Default escalation timeouts.
const (
	DefaultInterruptTimeout = 10 * time.Second
	DefaultTermTimeout      = 5 * time.Second
	DefaultKillTimeout      = 5 * time.Second

	DefaultHost       = "127.0.0.1"
	DefaultPortEnvVar = "PORT"

	defaultPollInterval = 100 * time.Millisecond
)

// Options configures a Spawner.
type Options struct {
	// Name identifies the job in logs and metrics.
	Name string

	// Host is the address reported back to the hub after a launch.
	Host string

	// PortEnvVar is the environment variable through which the chosen
	// port is handed to the child.
	PortEnvVar string

	// InterruptTimeout bounds the wait after SIGINT, TermTimeout the wait
	// after SIGTERM and KillTimeout the wait after SIGKILL.
	InterruptTimeout time.Duration
	TermTimeout      time.Duration
	KillTimeout      time.Duration

	// PollInterval is how often liveness is rechecked while waiting out a
	// tier timeout.
	PollInterval time.Duration

	// Store receives every state-affecting transition before the
	// operation that caused it returns. May be nil for callers that keep
	// state themselves via GetState/LoadState.
	Store state.Store

	Logger *zap.Logger
}

// Spawner owns exactly one child process. Mutating operations (Start, Stop)
// are serialized; Poll is safe to call concurrently with an in-flight Stop.
type Spawner struct {
	opts Options
	log  *zap.Logger

	// Seams for tests.
	startProc func(proc.StartSpec) (proc.Process, error)
	signalPID func(pid int, sig os.Signal) error
	alive     func(pid int) (bool, error)
	allocPort func() (int, error)
	sleep     func(ctx context.Context, d time.Duration) error

	opMu sync.Mutex

	mu   sync.Mutex
	proc proc.Process
	pid  int
	port int
}

var _ api.Job = (*Spawner)(nil)

// New constructs a Spawner, filling unset options with defaults.
func New(opts Options) *Spawner {
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	if opts.PortEnvVar == "" {
		opts.PortEnvVar = DefaultPortEnvVar
	}
	if opts.InterruptTimeout == 0 {
		opts.InterruptTimeout = DefaultInterruptTimeout
	}
	if opts.TermTimeout == 0 {
		opts.TermTimeout = DefaultTermTimeout
	}
	if opts.KillTimeout == 0 {
		opts.KillTimeout = DefaultKillTimeout
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = defaultPollInterval
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Name != "" {
		log = log.With(zap.String("job", opts.Name))
	}

	return &Spawner{
		opts:      opts,
		log:       log,
		startProc: proc.Start,
		signalPID: proc.SignalPID,
		alive:     proc.Alive,
		allocPort: netutil.UnusedPort,
		sleep:     sleepWithContext,
	}
}

// Start launches the requested command in a new session with a freshly
// allocated port exported through the configured environment variable, and
// records the resulting process handle.
func (s *Spawner) Start(ctx context.Context, req api.StartRequest) (api.Endpoint, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if len(req.Command) == 0 {
		return api.Endpoint{}, fmt.Errorf("start: command is required")
	}

	s.mu.Lock()
	tracked := s.pid != 0
	s.mu.Unlock()
	if tracked {
		// A tracked pid may be stale after resuming from persisted
		// state; only a live process blocks a new launch.
		st, err := s.Poll(ctx)
		if err != nil {
			return api.Endpoint{}, err
		}
		if st == nil {
			return api.Endpoint{}, api.ErrAlreadyRunning
		}
	}

	port, err := s.allocPort()
	if err != nil {
		return api.Endpoint{}, err
	}

	env := os.Environ()
	for k, v := range req.Env {
		env = append(env, k+"="+v)
	}
	env = append(env, fmt.Sprintf("%s=%d", s.opts.PortEnvVar, port))

	s.log.Info("spawning command",
		zap.Strings("command", req.Command),
		zap.Int("port", port),
		zap.String("workdir", req.Workdir))

	p, err := s.startProc(proc.StartSpec{Command: req.Command, Env: env, Dir: req.Workdir})
	if err != nil {
		metrics.IncSpawnFailure(s.opts.Name)
		return api.Endpoint{}, s.launchError(req.Command[0], err)
	}

	s.mu.Lock()
	s.proc = p
	s.pid = p.PID()
	s.port = port
	persistErr := s.persistLocked()
	s.mu.Unlock()
	if persistErr != nil {
		return api.Endpoint{}, fmt.Errorf("persist state after launch: %w", persistErr)
	}

	metrics.IncSpawn(s.opts.Name)
	s.log.Info("spawned process", zap.Int("pid", p.PID()))
	return api.Endpoint{Host: s.opts.Host, Port: port}, nil
}

// launchError decorates a permission or lookup failure with the resolved
// binary path and the requesting user. The original error stays wrapped so
// callers still observe the real failure.
func (s *Spawner) launchError(command string, err error) error {
	if !errors.Is(err, os.ErrPermission) && !errors.Is(err, exec.ErrNotFound) && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("spawn %s: %w", command, err)
	}

	resolved := command
	if path, lookErr := exec.LookPath(command); lookErr == nil {
		resolved = path
	}
	principal := "unknown"
	if u, userErr := user.Current(); userErr == nil {
		principal = u.Username
	}
	s.log.Error("cannot run command",
		zap.String("path", resolved),
		zap.String("user", principal),
		zap.Error(err))
	return fmt.Errorf("spawn %s as %s: %w", resolved, principal, err)
}

// Poll reports whether the process is still running. nil means running; a
// Status means exited, and the job state is cleared before returning. When
// the process was resumed from persisted state there is no handle to collect
// an exit code from, so Status.CodeKnown is false.
func (s *Spawner) Poll(ctx context.Context) (*api.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proc != nil {
		code, err := s.proc.Poll()
		if err != nil {
			return nil, err
		}
		if code == nil {
			return nil, nil
		}
		if err := s.clearLocked(); err != nil {
			return nil, err
		}
		return &api.Status{Code: *code, CodeKnown: true}, nil
	}

	if s.pid == 0 {
		// Nothing tracked; clearing is idempotent.
		if err := s.clearLocked(); err != nil {
			return nil, err
		}
		return &api.Status{}, nil
	}

	ok, err := s.alive(s.pid)
	if err != nil {
		return nil, fmt.Errorf("probe pid %d: %w", s.pid, err)
	}
	if ok {
		return nil, nil
	}
	if err := s.clearLocked(); err != nil {
		return nil, err
	}
	return &api.Status{}, nil
}

// Stop drives the termination state machine: SIGINT, SIGTERM, SIGKILL, each
// gated by its timeout, with a liveness check before every tier. When now is
// set the interrupt tier is skipped. Exhausting all tiers is reported as a
// warning, not an error; the process is left behind untracked.
func (s *Spawner) Stop(ctx context.Context, now bool) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if !now {
		st, err := s.Poll(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			return nil
		}
		s.log.Debug("interrupting process", zap.Int("pid", s.currentPID()))
		if err := s.signal(proc.SignalInterrupt, metrics.TierInterrupt); err != nil {
			return err
		}
		if exited, err := s.waitForExit(ctx, s.opts.InterruptTimeout); err != nil || exited {
			return err
		}
	}

	st, err := s.Poll(ctx)
	if err != nil {
		return err
	}
	if st != nil {
		return nil
	}
	s.log.Debug("terminating process", zap.Int("pid", s.currentPID()))
	if err := s.signal(proc.SignalTerminate, metrics.TierTerminate); err != nil {
		return err
	}
	if exited, err := s.waitForExit(ctx, s.opts.TermTimeout); err != nil || exited {
		return err
	}

	st, err = s.Poll(ctx)
	if err != nil {
		return err
	}
	if st != nil {
		return nil
	}
	s.log.Debug("killing process", zap.Int("pid", s.currentPID()))
	if err := s.signal(proc.SignalKill, metrics.TierKill); err != nil {
		return err
	}
	if exited, err := s.waitForExit(ctx, s.opts.KillTimeout); err != nil || exited {
		return err
	}

	st, err = s.Poll(ctx)
	if err != nil {
		return err
	}
	if st == nil {
		s.log.Warn("process never died", zap.Int("pid", s.currentPID()))
		metrics.IncStopExhausted(s.opts.Name)
	}
	return nil
}

// GetState returns the durable portion of the job.
func (s *Spawner) GetState() state.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return state.State{PID: s.pid}
}

// LoadState resumes tracking of a process started by a previous supervisor
// instance. Only the pid survives a restart; the in-memory handle does not.
func (s *Spawner) LoadState(st state.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.PID == 0 {
		return
	}
	if s.pid == 0 {
		metrics.JobResumed(s.opts.Name)
	}
	s.pid = st.PID
	s.proc = nil
	s.port = 0
}

// ClearState forgets the tracked process and persists the empty record.
func (s *Spawner) ClearState() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked()
}

// Endpoint returns the endpoint of the running process, when known. The port
// is only known within the supervisor instance that launched the process.
func (s *Spawner) Endpoint() (api.Endpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == 0 {
		return api.Endpoint{}, false
	}
	return api.Endpoint{Host: s.opts.Host, Port: s.port}, true
}

// PID returns the tracked process id, 0 when none.
func (s *Spawner) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pid
}

func (s *Spawner) currentPID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pid
}

// clearLocked empties the handle, persisting the transition before the
// in-memory fields change. A failed store write leaves the handle tracked so
// disk and memory never disagree. Callers must hold mu.
func (s *Spawner) clearLocked() error {
	if s.opts.Store != nil {
		if err := s.opts.Store.Save(state.State{}); err != nil {
			return err
		}
	}
	wasRunning := s.pid != 0
	s.proc = nil
	s.pid = 0
	s.port = 0
	if wasRunning {
		metrics.JobExited(s.opts.Name)
	}
	return nil
}

// persistLocked writes the current state. Callers must hold mu.
func (s *Spawner) persistLocked() error {
	if s.opts.Store == nil {
		return nil
	}
	return s.opts.Store.Save(state.State{PID: s.pid})
}

// signal delivers sig to the tracked process, preferring the live handle and
// falling back to the persisted pid. A target that vanished between the
// liveness check and the send is success-equivalent; any other delivery
// failure is fatal for the call.
func (s *Spawner) signal(sig os.Signal, tier string) error {
	s.mu.Lock()
	p := s.proc
	pid := s.pid
	s.mu.Unlock()

	if pid == 0 {
		return nil
	}

	var err error
	if p != nil {
		err = p.Signal(sig)
		if errors.Is(err, os.ErrProcessDone) {
			err = proc.ErrGone
		}
	} else {
		err = s.signalPID(pid, sig)
	}
	if errors.Is(err, proc.ErrGone) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}
	metrics.IncStopSignal(s.opts.Name, tier)
	return nil
}

// waitForExit polls liveness at the configured interval until the process
// exits or timeout elapses.
func (s *Spawner) waitForExit(ctx context.Context, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		st, err := s.Poll(ctx)
		if err != nil {
			return false, err
		}
		if st != nil {
			return true, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}
		wait := s.opts.PollInterval
		if remaining < wait {
			wait = remaining
		}
		if err := s.sleep(ctx, wait); err != nil {
			return false, err
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
