package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// StartOptions describes how a child process is spawned.
type StartOptions struct {
	Dir    string
	Env    []string
	Stdout *os.File
	Stderr *os.File
}

// Handle owns a running child process. The child is placed in its own process group
// so that signals reach any processes it spawns.
type Handle struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// Start spawns binary with args. The log files in opts are handed to the child and
// may be closed by the caller once Start returns.
func Start(binary string, args []string, opts StartOptions) (*Handle, error) {
	cmd := exec.Command(binary, args...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	if opts.Stdout != nil {
		cmd.Stdout = opts.Stdout
	}
	if opts.Stderr != nil {
		cmd.Stderr = opts.Stderr
	}
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", binary, err)
	}

	h := &Handle{cmd: cmd, done: make(chan struct{})}
	go func() {
		h.err = cmd.Wait()
		close(h.done)
	}()
	return h, nil
}

// Pid returns the child's process id.
func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// Done is closed once the child has exited and been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Exited reports whether the child has exited without blocking.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// ExitCode returns the child's exit code, -1 if it was terminated by a signal or is still running.
func (h *Handle) ExitCode() int {
	if !h.Exited() || h.cmd.ProcessState == nil {
		return -1
	}
	return h.cmd.ProcessState.ExitCode()
}

// ExitStatus describes how the child exited.
func (h *Handle) ExitStatus() string {
	if !h.Exited() {
		return "running"
	}
	if h.cmd.ProcessState == nil {
		return fmt.Sprintf("wait failed: %v", h.err)
	}
	return h.cmd.ProcessState.String()
}

// Signal delivers sig to the child's process group. Signalling an exited child is a no-op.
func (h *Handle) Signal(sig syscall.Signal) error {
	if h.Exited() {
		return nil
	}
	if err := signalGroup(h.cmd.Process, sig); err != nil && !h.Exited() {
		return fmt.Errorf("failed to signal process %d: %w", h.Pid(), err)
	}
	return nil
}

// Kill forcefully terminates the child's process group.
func (h *Handle) Kill() error {
	return h.Signal(syscall.SIGKILL)
}

// Wait blocks until the child exits or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for process %d to exit: %w", h.Pid(), ctx.Err())
	}
}
