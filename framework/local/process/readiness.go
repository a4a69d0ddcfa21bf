package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Criteria are the literal substrings that decide a launch.
type Criteria struct {
	// Success patterns mark the process as ready.
	Success []string
	// Errors patterns mark the launch as failed.
	Errors []string
	// Exclusions strip any line containing them before matching.
	Exclusions []string
}

// Exiter reports process termination without blocking.
type Exiter interface {
	Exited() bool
	ExitCode() int
	ExitStatus() string
}

// Monitor watches a starting process's logs until it is ready, fails, or exits.
type Monitor struct {
	Process string
	Exiter  Exiter
	Stdout  string
	Stderr  string
	// AdditionalLog is an optional process-specific log file. It may not exist yet when monitoring starts.
	AdditionalLog string
	Criteria      Criteria
	PollInterval  time.Duration
	Timeout       time.Duration
	Logger        *zap.Logger
}

type verdict int

const (
	pending verdict = iota
	ready
	failed
)

// Wait blocks until a success pattern appears in any stream (nil), an error pattern appears
// (*LaunchError wrapping ErrErrorPatternMatched), the process exits (ErrProcessExitedEarly)
// or the timeout or ctx expires (ErrReadinessTimedOut).
// Within a stream the earliest match decides, an error wins a tie, and an error in any stream
// takes precedence over a success in another.
func (m *Monitor) Wait(ctx context.Context) error {
	logger := m.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := m.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = DefaultReadinessTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	streams := []*tail{{path: m.Stdout}, {path: m.Stderr}}
	var extra *tail
	if m.AdditionalLog != "" {
		extra = &tail{path: m.AdditionalLog}
		streams = append(streams, extra)
	}
	defer func() {
		for _, s := range streams {
			s.close()
		}
	}()

	launchErr := func(reason error) *LaunchError {
		e := &LaunchError{
			Process:  m.Process,
			Reason:   reason,
			ExitCode: -1,
			Stdout:   streams[0].text.String(),
			Stderr:   streams[1].text.String(),
		}
		if extra != nil {
			e.AdditionalLog = extra.text.String()
		}
		return e
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		exited := m.Exiter != nil && m.Exiter.Exited()
		for _, s := range streams {
			if err := s.read(); err != nil {
				return fmt.Errorf("reading %s log %s: %w", m.Process, s.path, err)
			}
		}

		if exited {
			e := launchErr(ErrProcessExitedEarly)
			e.ExitCode = m.Exiter.ExitCode()
			e.ExitStatus = m.Exiter.ExitStatus()
			logger.Error("process exited before becoming ready", zap.String("status", e.ExitStatus))
			return e
		}

		var success bool
		for _, s := range streams {
			v, pattern := m.Criteria.evaluate(s.text.String())
			switch v {
			case failed:
				e := launchErr(ErrErrorPatternMatched)
				e.Pattern = pattern
				logger.Error("error pattern found in log", zap.String("pattern", pattern), zap.String("log", s.path))
				return e
			case ready:
				success = true
			}
		}
		if success {
			logger.Debug("process ready")
			return nil
		}

		select {
		case <-ctx.Done():
			e := launchErr(ErrReadinessTimedOut)
			e.Cause = ctx.Err()
			return e
		case <-ticker.C:
		}
	}
}

// evaluate applies the criteria to the accumulated text of one stream.
func (c Criteria) evaluate(text string) (verdict, string) {
	text = c.filter(text)
	errAt, errPattern := earliest(text, c.Errors)
	okAt, _ := earliest(text, c.Success)
	switch {
	case errAt >= 0 && (okAt < 0 || errAt <= okAt):
		return failed, errPattern
	case okAt >= 0:
		return ready, ""
	default:
		return pending, ""
	}
}

// filter drops every line containing an exclusion pattern.
func (c Criteria) filter(text string) string {
	if len(c.Exclusions) == 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !containsAny(line, c.Exclusions) {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func earliest(text string, patterns []string) (int, string) {
	at, match := -1, ""
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if i := strings.Index(text, p); i >= 0 && (at < 0 || i < at) {
			at, match = i, p
		}
	}
	return at, match
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// tail incrementally reads a file that another process is appending to.
type tail struct {
	path string
	f    *os.File
	text strings.Builder
}

func (t *tail) read() error {
	if t.f == nil {
		f, err := os.Open(t.path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		t.f = f
	}
	_, err := io.Copy(&t.text, t.f)
	return err
}

func (t *tail) close() {
	if t.f != nil {
		_ = t.f.Close()
	}
}
