//go:build !windows

package process

import (
	"os"
	"os/exec"
	"syscall"
)

func (e *Executor) command(name string, args ...string) *exec.Cmd {
	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd
}

func killGroup(cmd *exec.Cmd, sig os.Signal) {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return
	}
	syscall.Kill(-cmd.Process.Pid, s)
}
