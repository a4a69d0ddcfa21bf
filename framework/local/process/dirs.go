package process

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

const (
	// StdoutLog is the name of the captured standard output log inside the logs directory.
	StdoutLog = "stdout.log"
	// StderrLog is the name of the captured standard error log inside the logs directory.
	StderrLog = "stderr.log"
)

// Dirs are the ephemeral directories owned by one node.
type Dirs struct {
	Root   string
	Config string
	Logs   string
	Data   string
}

var invalidDirChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// SanitizeName replaces characters that are awkward in paths, such as the slashes of subtest names,
// with underscores.
func SanitizeName(name string) string {
	return invalidDirChars.ReplaceAllLiteralString(name, "_")
}

// NewDirs creates a fresh root under parent (os.TempDir when empty) holding config, logs and data directories.
func NewDirs(parent, prefix string) (Dirs, error) {
	root, err := os.MkdirTemp(parent, SanitizeName(prefix)+"-")
	if err != nil {
		return Dirs{}, fmt.Errorf("failed to create temp dir: %w", err)
	}
	d := Dirs{
		Root:   root,
		Config: filepath.Join(root, "config"),
		Logs:   filepath.Join(root, "logs"),
		Data:   filepath.Join(root, "data"),
	}
	for _, dir := range []string{d.Config, d.Logs, d.Data} {
		if err := os.Mkdir(dir, 0o755); err != nil {
			_ = os.RemoveAll(root)
			return Dirs{}, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return d, nil
}

// StdoutPath returns the path of the captured stdout log.
func (d Dirs) StdoutPath() string {
	return filepath.Join(d.Logs, StdoutLog)
}

// StderrPath returns the path of the captured stderr log.
func (d Dirs) StderrPath() string {
	return filepath.Join(d.Logs, StderrLog)
}

// Remove deletes the root and everything below it.
func (d Dirs) Remove() error {
	if d.Root == "" {
		return nil
	}
	return os.RemoveAll(d.Root)
}
