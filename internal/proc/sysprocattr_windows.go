//go:build windows

package proc

import "os/exec"

func configureCmdSysProcAttr(cmd *exec.Cmd) {}
