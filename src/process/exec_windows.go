//go:build windows

package process

import (
	"os"
	"os/exec"
)

func (e *Executor) command(name string, args ...string) *exec.Cmd {
	return exec.Command(name, args...)
}

func killGroup(cmd *exec.Cmd, sig os.Signal) {
	if cmd.Process != nil {
		cmd.Process.Kill()
	}
}
