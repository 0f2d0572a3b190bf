//go:build windows

package proc

import (
	"errors"
	"os"
)

var (
	SignalInterrupt os.Signal = os.Interrupt
	SignalTerminate os.Signal = os.Kill
	SignalKill      os.Signal = os.Kill
)

var ErrGone = errors.New("process does not exist")

var errUnsupported = errors.New("pid signalling not supported on windows")

func SignalPID(pid int, sig os.Signal) error {
	return errUnsupported
}

// Alive is unavailable without a live handle on Windows; the null-signal
// probe has no equivalent here.
func Alive(pid int) (bool, error) {
	return false, errUnsupported
}
