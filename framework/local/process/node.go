package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StopFunc asks a process to shut down gracefully. It does not need to wait for exit.
type StopFunc func(ctx context.Context) error

// SpawnOptions describes the command a node runs and how its readiness is judged.
type SpawnOptions struct {
	Binary string
	Args   []string
	Env    []string
	// Criteria are the readiness patterns for this node kind.
	Criteria Criteria
	// AdditionalLog is an extra log file, written by the process itself, to monitor alongside stdout and stderr.
	AdditionalLog string
}

// Node is the lifecycle shared by every node kind: it owns the ephemeral directories,
// the child process and its captured logs. Concrete kinds embed it.
type Node struct {
	name     string
	id       string
	logger   *zap.Logger
	settings Settings
	dirs     Dirs

	configPath string
	dataDir    string
	graceful   StopFunc

	mu      sync.Mutex
	handle  *Handle
	stopped bool
	closed  bool
}

// NewNode allocates the ephemeral directories for a node of the given kind.
func NewNode(name string, settings Settings) (*Node, error) {
	settings = settings.WithDefaults()
	id := uuid.NewString()
	dirs, err := NewDirs(settings.TempRoot, fmt.Sprintf("%s-%s", name, id[:8]))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s directories: %w", name, err)
	}
	return &Node{
		name:     name,
		id:       id,
		settings: settings,
		logger:   settings.Logger.With(zap.String("process", name), zap.String("id", id[:8])),
		dirs:     dirs,
		dataDir:  dirs.Data,
	}, nil
}

// Name returns the node kind.
func (n *Node) Name() string { return n.name }

// ID returns the unique identifier of this node instance.
func (n *Node) ID() string { return n.id }

// Logger returns the node's logger.
func (n *Node) Logger() *zap.Logger { return n.logger }

// Settings returns the settings the node was created with, defaults applied.
func (n *Node) Settings() Settings { return n.settings }

// Dirs returns the node's ephemeral directories.
func (n *Node) Dirs() Dirs { return n.dirs }

func (n *Node) ConfigDir() string { return n.dirs.Config }

func (n *Node) ConfigPath() string { return n.configPath }

// SetConfigPath records the path of the generated configuration file.
func (n *Node) SetConfigPath(path string) { n.configPath = path }

func (n *Node) LogsDir() string { return n.dirs.Logs }

func (n *Node) DataDir() string { return n.dataDir }

// SetDataDir points the node at a data directory outside its ephemeral tree, such as a chain cache used in place.
func (n *Node) SetDataDir(dir string) { n.dataDir = dir }

// SetGracefulStop sets how Stop asks the process to shut down. The default sends SIGTERM.
func (n *Node) SetGracefulStop(fn StopFunc) { n.graceful = fn }

// Handle returns the child process handle, nil before Spawn.
func (n *Node) Handle() *Handle {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.handle
}

// Spawn starts the process with stdout and stderr redirected into the logs directory and
// blocks until the readiness monitor reaches a verdict. On failure the process is killed.
func (n *Node) Spawn(ctx context.Context, opts SpawnOptions) error {
	stdout, err := os.Create(n.dirs.StdoutPath())
	if err != nil {
		return fmt.Errorf("failed to create stdout log: %w", err)
	}
	defer stdout.Close()
	stderr, err := os.Create(n.dirs.StderrPath())
	if err != nil {
		return fmt.Errorf("failed to create stderr log: %w", err)
	}
	defer stderr.Close()

	n.logger.Info("launching", zap.String("binary", opts.Binary), zap.Strings("args", opts.Args))
	h, err := Start(opts.Binary, opts.Args, StartOptions{
		Dir:    n.dirs.Root,
		Env:    opts.Env,
		Stdout: stdout,
		Stderr: stderr,
	})
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.handle = h
	n.stopped = false
	n.mu.Unlock()

	monitor := &Monitor{
		Process:       n.name,
		Exiter:        h,
		Stdout:        n.dirs.StdoutPath(),
		Stderr:        n.dirs.StderrPath(),
		AdditionalLog: opts.AdditionalLog,
		Criteria:      opts.Criteria,
		PollInterval:  n.settings.PollInterval,
		Timeout:       n.settings.ReadinessTimeout,
		Logger:        n.logger,
	}
	if err := monitor.Wait(ctx); err != nil {
		n.kill()
		return err
	}
	n.logger.Info("launched", zap.Int("pid", h.Pid()))
	return nil
}

// Stop shuts the process down: the graceful stop first, then SIGKILL if that fails or
// the process does not exit within the stop timeout. Calling Stop again, or on a process
// that already exited, is a no-op.
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	h := n.handle
	if h == nil || n.stopped {
		return nil
	}
	n.stopped = true
	if h.Exited() {
		n.logger.Debug("process already exited", zap.String("status", h.ExitStatus()))
		return nil
	}

	stopCtx, cancel := context.WithTimeout(ctx, n.settings.StopTimeout)
	defer cancel()

	err := n.stopGracefully(stopCtx, h)
	if err == nil {
		err = h.Wait(stopCtx)
	}
	if err == nil {
		n.logger.Info("stopped")
		return nil
	}

	n.logger.Warn("graceful stop failed, killing process", zap.Error(err))
	if killErr := h.Kill(); killErr != nil {
		return errors.Join(err, killErr)
	}
	if waitErr := h.Wait(context.WithoutCancel(ctx)); waitErr != nil {
		return errors.Join(err, waitErr)
	}
	return nil
}

func (n *Node) stopGracefully(ctx context.Context, h *Handle) error {
	if n.graceful == nil {
		return h.Signal(syscall.SIGTERM)
	}
	if err := n.graceful(ctx); err != nil {
		return fmt.Errorf("graceful stop: %w", err)
	}
	return nil
}

func (n *Node) kill() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.handle == nil {
		return
	}
	n.stopped = true
	if err := n.handle.Kill(); err != nil {
		n.logger.Warn("failed to kill process", zap.Error(err))
		return
	}
	<-n.handle.Done()
}

// Close stops the process and removes the ephemeral directories unless they are kept.
func (n *Node) Close(ctx context.Context) error {
	stopErr := n.Stop(ctx)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return stopErr
	}
	n.closed = true
	if n.settings.KeepDirs {
		n.logger.Info("keeping directories", zap.String("root", n.dirs.Root))
		return stopErr
	}
	if err := n.dirs.Remove(); err != nil {
		return errors.Join(stopErr, fmt.Errorf("failed to remove %s: %w", n.dirs.Root, err))
	}
	return stopErr
}

// Stdout returns everything the process has written to standard output.
func (n *Node) Stdout() (string, error) {
	return readLog(n.dirs.StdoutPath())
}

// Stderr returns everything the process has written to standard error.
func (n *Node) Stderr() (string, error) {
	return readLog(n.dirs.StderrPath())
}

// PrintStdout writes the captured stdout to os.Stdout.
func (n *Node) PrintStdout() error {
	return PrintLog(os.Stdout, "stdout", n.dirs.StdoutPath())
}

// PrintStderr writes the captured stderr to os.Stdout.
func (n *Node) PrintStderr() error {
	return PrintLog(os.Stdout, "stderr", n.dirs.StderrPath())
}

// PrintLog copies the log at path to w under a heading.
func PrintLog(w io.Writer, heading, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s log: %w", heading, err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(w, "%s:\n", heading); err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

func readLog(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read log: %w", err)
	}
	return string(b), nil
}
