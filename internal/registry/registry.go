// Package registry composes one spawner per job name behind the api.Manager
// contract. Each spawner still owns exactly one child process; this is the
// only place where multiple jobs meet.
package registry

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chris-x86-64/rootlessspawner/internal/api"
	"github.com/chris-x86-64/rootlessspawner/internal/homedir"
	"github.com/chris-x86-64/rootlessspawner/internal/probe"
	"github.com/chris-x86-64/rootlessspawner/internal/spawner"
	"github.com/chris-x86-64/rootlessspawner/internal/state"
)

var jobNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// Options configures a Registry.
type Options struct {
	// StateDir holds one state file per job.
	StateDir string

	// HomeRoot, when set, provisions <HomeRoot>/<job> as the working
	// directory for jobs that do not request one, with a Shared symlink
	// into SharedDir when that is also set.
	HomeRoot  string
	SharedDir string

	Host       string
	PortEnvVar string

	InterruptTimeout time.Duration
	TermTimeout      time.Duration
	KillTimeout      time.Duration

	// ProbeDeadline, when positive, bounds a TCP readiness wait against
	// the endpoint returned by a launch.
	ProbeDeadline time.Duration
	ProbeInterval time.Duration

	Logger *zap.Logger
}

// Registry implements api.Manager over a set of named spawners.
type Registry struct {
	opts Options
	log  *zap.Logger

	mu   sync.Mutex
	jobs map[string]*spawner.Spawner
}

var _ api.Manager = (*Registry)(nil)

// New constructs an empty registry.
func New(opts Options) *Registry {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		opts: opts,
		log:  log,
		jobs: make(map[string]*spawner.Spawner),
	}
}

// job returns the spawner for name, creating it and resuming any persisted
// state on first use.
func (r *Registry) job(name string) (*spawner.Spawner, error) {
	if !jobNamePattern.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", api.ErrInvalidJobName, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if sp, ok := r.jobs[name]; ok {
		return sp, nil
	}

	store := state.NewFileStore(r.statePath(name))
	sp := spawner.New(spawner.Options{
		Name:             name,
		Host:             r.opts.Host,
		PortEnvVar:       r.opts.PortEnvVar,
		InterruptTimeout: r.opts.InterruptTimeout,
		TermTimeout:      r.opts.TermTimeout,
		KillTimeout:      r.opts.KillTimeout,
		Store:            store,
		Logger:           r.log,
	})

	st, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", name, err)
	}
	sp.LoadState(st)

	r.jobs[name] = sp
	return sp, nil
}

func (r *Registry) statePath(name string) string {
	return filepath.Join(r.opts.StateDir, name+".json")
}

// StartJob launches the job's command, provisioning its home directory when
// configured and optionally waiting for the endpoint to accept connections.
func (r *Registry) StartJob(ctx context.Context, name string, req api.StartRequest) (api.Endpoint, error) {
	sp, err := r.job(name)
	if err != nil {
		return api.Endpoint{}, err
	}

	if req.Workdir == "" && r.opts.HomeRoot != "" {
		home, err := homedir.Ensure(filepath.Join(r.opts.HomeRoot, name), r.opts.SharedDir)
		if err != nil {
			return api.Endpoint{}, fmt.Errorf("job %s: %w", name, err)
		}
		req.Workdir = home
	}

	ep, err := sp.Start(ctx, req)
	if err != nil {
		return api.Endpoint{}, err
	}

	if r.opts.ProbeDeadline > 0 {
		addr := net.JoinHostPort(ep.Host, strconv.Itoa(ep.Port))
		if err := probe.WaitReady(ctx, probe.NewTCP(addr), r.opts.ProbeDeadline, r.opts.ProbeInterval); err != nil {
			r.log.Warn("job endpoint not ready", zap.String("job", name), zap.String("addr", addr), zap.Error(err))
			return ep, fmt.Errorf("job %s started but %w", name, err)
		}
	}
	return ep, nil
}

// JobStatus polls the named job. Asking about a job this supervisor has never
// tracked is an error.
func (r *Registry) JobStatus(ctx context.Context, name string) (api.JobReport, error) {
	if !jobNamePattern.MatchString(name) {
		return api.JobReport{}, fmt.Errorf("%w: %q", api.ErrInvalidJobName, name)
	}

	r.mu.Lock()
	_, tracked := r.jobs[name]
	r.mu.Unlock()
	if !tracked {
		if _, err := os.Stat(r.statePath(name)); err != nil {
			return api.JobReport{}, fmt.Errorf("%w: %s", api.ErrUnknownJob, name)
		}
	}

	sp, err := r.job(name)
	if err != nil {
		return api.JobReport{}, err
	}
	return r.report(ctx, name, sp)
}

// StopJob runs the stop escalation for the named job. Stopping a job that is
// not running is a no-op.
func (r *Registry) StopJob(ctx context.Context, name string, req api.StopRequest) error {
	sp, err := r.job(name)
	if err != nil {
		return err
	}
	return sp.Stop(ctx, req.Now)
}

// ClearJob drops the named job's persisted state without touching the
// process. The hub uses this to forget a job after an exhausted stop.
func (r *Registry) ClearJob(ctx context.Context, name string) error {
	sp, err := r.job(name)
	if err != nil {
		return err
	}
	if err := sp.ClearState(); err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	if err := state.NewFileStore(r.statePath(name)).Clear(); err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	r.mu.Lock()
	delete(r.jobs, name)
	r.mu.Unlock()
	return nil
}

// Status polls every known job and aggregates the reports.
func (r *Registry) Status(ctx context.Context) (api.StatusReport, error) {
	r.mu.Lock()
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	r.mu.Unlock()

	out := api.StatusReport{
		GeneratedAt: time.Now(),
		Jobs:        make(map[string]api.JobReport, len(names)),
	}
	for _, name := range names {
		sp, err := r.job(name)
		if err != nil {
			return api.StatusReport{}, err
		}
		report, err := r.report(ctx, name, sp)
		if err != nil {
			return api.StatusReport{}, err
		}
		out.Jobs[name] = report
	}
	return out, nil
}

func (r *Registry) report(ctx context.Context, name string, sp *spawner.Spawner) (api.JobReport, error) {
	pid := sp.PID()
	st, err := sp.Poll(ctx)
	if err != nil {
		return api.JobReport{}, fmt.Errorf("job %s: %w", name, err)
	}

	report := api.JobReport{Name: name}
	if st == nil {
		report.Running = true
		report.PID = pid
		if ep, ok := sp.Endpoint(); ok {
			report.Endpoint = &ep
		}
		return report, nil
	}
	if st.CodeKnown {
		code := st.Code
		report.ExitCode = &code
	}
	return report, nil
}
