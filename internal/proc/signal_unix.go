//go:build !windows

package proc

import (
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// Escalation signals in tier order.
var (
	SignalInterrupt os.Signal = syscall.SIGINT
	SignalTerminate os.Signal = syscall.SIGTERM
	SignalKill      os.Signal = syscall.SIGKILL
)

// ErrGone reports that a signal target no longer exists.
var ErrGone = errors.New("process does not exist")

// SignalPID delivers sig to a process known only by pid, for children
// recovered from persisted state. A vanished target is reported as ErrGone so
// callers can distinguish the benign race from real delivery failures.
func SignalPID(pid int, sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return errors.New("unsupported signal type")
	}
	err := unix.Kill(pid, s)
	if errors.Is(err, unix.ESRCH) {
		return ErrGone
	}
	return err
}

// Alive probes pid with the null signal. A process owned by another user
// (EPERM) still counts as alive; only ESRCH means gone. Any other delivery
// failure is returned as an error rather than guessed at.
//
// The null-signal probe is POSIX-specific; on other targets callers must rely
// on a live handle instead.
func Alive(pid int) (bool, error) {
	err := unix.Kill(pid, 0)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, unix.ESRCH):
		return false, nil
	case errors.Is(err, unix.EPERM):
		return true, nil
	default:
		return false, err
	}
}
