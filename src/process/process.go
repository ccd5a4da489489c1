// Package process runs the wrapped tool as a subprocess, capturing its exit code and
// standard streams for cache insertion. Adapted from the teacher's subprocess supervisor,
// dropping the build-progress and namespacing machinery that has no equivalent here, but
// keeping the same signal-based process-group cleanup discipline.
package process

import (
	"bytes"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	cli "github.com/LilithGames/buildcache/src/cli"
	logger "github.com/LilithGames/buildcache/src/cli/logging"
)

var log = logger.Log

// A Result carries the outcome of running a subprocess to completion.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// An Executor runs subprocesses and registers as a process-exit hook so any subprocess
// still running when this process is killed is terminated too.
type Executor struct {
	processes map[*exec.Cmd]struct{}
	mutex     sync.Mutex
}

// New returns a ready Executor.
func New() *Executor {
	e := &Executor{processes: map[*exec.Cmd]struct{}{}}
	cli.AtExit(e.killAll)
	return e
}

// Run executes argv[0] with argv[1:] as arguments in dir with env, capturing stdout and
// stderr independently and returning once the process has exited. A non-zero exit status
// is reported through Result.ExitCode, not through the returned error — err is reserved for
// failures to start or wait on the process at all.
func (e *Executor) Run(dir string, env []string, argv []string) (Result, error) {
	cmd := e.command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.track(cmd)
	defer e.untrack(cmd)

	err := cmd.Run()
	result := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	} else if err != nil {
		return result, err
	}
	result.ExitCode = 0
	return result, nil
}

func (e *Executor) track(cmd *exec.Cmd) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.processes[cmd] = struct{}{}
}

func (e *Executor) untrack(cmd *exec.Cmd) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	delete(e.processes, cmd)
}

// killAll terminates every subprocess this Executor has outstanding, first with SIGTERM
// and then, after a grace period, SIGKILL.
func (e *Executor) killAll() {
	e.mutex.Lock()
	cmds := make([]*exec.Cmd, 0, len(e.processes))
	for cmd := range e.processes {
		cmds = append(cmds, cmd)
	}
	e.mutex.Unlock()

	var wg sync.WaitGroup
	wg.Add(len(cmds))
	for _, cmd := range cmds {
		go func(cmd *exec.Cmd) {
			defer wg.Done()
			e.kill(cmd)
		}(cmd)
	}
	wg.Wait()
}

func (e *Executor) kill(cmd *exec.Cmd) {
	if !signalGroup(cmd, syscall.SIGTERM, 30*time.Millisecond) {
		if !signalGroup(cmd, syscall.SIGKILL, time.Second) {
			log.Error("Failed to kill subprocess %v", cmd.Args)
		}
	}
}

func signalGroup(cmd *exec.Cmd, sig os.Signal, timeout time.Duration) bool {
	if cmd.Process == nil {
		return false
	}
	killGroup(cmd, sig)
	ch := make(chan struct{})
	go func() { cmd.Wait(); close(ch) }()
	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return false
	}
}
