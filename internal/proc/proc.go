// Package proc wraps the operating system process primitives used by the
// spawner so lifecycle logic can be exercised against fakes.
package proc

import (
	"fmt"
	"os"
	"os/exec"
)

// Process is a live handle to a child started by this supervisor. It is only
// valid within the supervisor instance that created it; a restarted
// supervisor falls back to pid-based probing.
type Process interface {
	PID() int

	// Signal delivers sig to the process.
	Signal(sig os.Signal) error

	// Poll performs a non-blocking exit check. It returns a nil pointer
	// while the process is running and the exit code once it has exited.
	// Processes killed by a signal report code -1, matching
	// os.ProcessState.
	Poll() (*int, error)
}

// StartSpec describes a child process to launch.
type StartSpec struct {
	// Command is the argument vector. Arguments are passed verbatim with
	// no shell interpretation.
	Command []string

	// Env is the full environment for the child.
	Env []string

	// Dir is the working directory, empty for the caller's.
	Dir string
}

type osProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
	code int
}

// Start launches the command described by spec in its own session so that
// signals delivered to the supervisor's process group are not forwarded to
// the child. The child inherits the supervisor's stdout and stderr.
func Start(spec StartSpec) (Process, error) {
	if len(spec.Command) == 0 {
		return nil, fmt.Errorf("start process: empty command")
	}

	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	cmd.Env = spec.Env
	cmd.Dir = spec.Dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	configureCmdSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &osProcess{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	go func() {
		_ = cmd.Wait()
		// ProcessState is set by Wait before done is observable.
		p.code = cmd.ProcessState.ExitCode()
		close(p.done)
	}()
	return p, nil
}

func (p *osProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *osProcess) Signal(sig os.Signal) error {
	return p.cmd.Process.Signal(sig)
}

func (p *osProcess) Poll() (*int, error) {
	select {
	case <-p.done:
		code := p.code
		return &code, nil
	default:
		return nil, nil
	}
}
