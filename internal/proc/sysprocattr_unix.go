//go:build !windows

package proc

import (
	"os/exec"
	"syscall"
)

func configureCmdSysProcAttr(cmd *exec.Cmd) {
	// New session: the child must only ever be stopped through explicit
	// signalling by the supervisor, never by signals aimed at the
	// supervisor's own group.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
