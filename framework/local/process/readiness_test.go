package process

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeExiter struct {
	exited atomic.Bool
}

func (f *fakeExiter) Exited() bool       { return f.exited.Load() }
func (f *fakeExiter) ExitCode() int      { return 3 }
func (f *fakeExiter) ExitStatus() string { return "exit status 3" }

func writeLogs(t *testing.T, stdout, stderr string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	out := filepath.Join(dir, StdoutLog)
	errPath := filepath.Join(dir, StderrLog)
	require.NoError(t, os.WriteFile(out, []byte(stdout), 0o644))
	require.NoError(t, os.WriteFile(errPath, []byte(stderr), 0o644))
	return out, errPath
}

func newMonitor(t *testing.T, stdout, stderr string, c Criteria) *Monitor {
	out, errPath := writeLogs(t, stdout, stderr)
	return &Monitor{
		Process:      "testd",
		Exiter:       &fakeExiter{},
		Stdout:       out,
		Stderr:       errPath,
		Criteria:     c,
		PollInterval: 5 * time.Millisecond,
		Timeout:      200 * time.Millisecond,
		Logger:       zaptest.NewLogger(t),
	}
}

func TestMonitorWait(t *testing.T) {
	criteria := Criteria{
		Success:    []string{"Done loading"},
		Errors:     []string{"Error:"},
		Exclusions: []string{"Error: benign"},
	}
	ctx := context.Background()

	tests := []struct {
		name    string
		stdout  string
		stderr  string
		wantErr error
	}{
		{name: "success", stdout: "starting\ninit message: Done loading\n"},
		{name: "success on stderr", stderr: "Done loading\n"},
		{name: "success before error", stdout: "Done loading\nError: later\n"},
		{name: "error before success", stdout: "Error: bad\nDone loading\n", wantErr: ErrErrorPatternMatched},
		{name: "error on stderr wins", stdout: "Done loading\n", stderr: "Error: bad\n", wantErr: ErrErrorPatternMatched},
		{name: "excluded error ignored", stdout: "Error: benign warning\nDone loading\n"},
		{name: "excluded line never succeeds", stdout: "Error: benign Done loading\n", wantErr: ErrReadinessTimedOut},
		{name: "nothing matches", stdout: "still starting\n", wantErr: ErrReadinessTimedOut},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := newMonitor(t, tc.stdout, tc.stderr, criteria).Wait(ctx)
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
			var le *LaunchError
			require.ErrorAs(t, err, &le)
			require.Equal(t, tc.stdout, le.Stdout)
			require.Equal(t, tc.stderr, le.Stderr)
		})
	}
}

func TestMonitorWaitPatternSpansLines(t *testing.T) {
	m := newMonitor(t, "Release always valid\nin Testnet\n", "", Criteria{Success: []string{"valid\nin Testnet"}})
	require.NoError(t, m.Wait(context.Background()))
}

func TestMonitorWaitProcessExited(t *testing.T) {
	m := newMonitor(t, "partial output", "boom", Criteria{Success: []string{"ready"}})
	exiter := &fakeExiter{}
	exiter.exited.Store(true)
	m.Exiter = exiter

	err := m.Wait(context.Background())
	require.ErrorIs(t, err, ErrProcessExitedEarly)

	var le *LaunchError
	require.ErrorAs(t, err, &le)
	require.Equal(t, "partial output", le.Stdout)
	require.Equal(t, "boom", le.Stderr)
	require.Equal(t, 3, le.ExitCode)
	require.Contains(t, le.Error(), "exit status 3")
}

func TestMonitorWaitFollowsGrowingLogs(t *testing.T) {
	m := newMonitor(t, "", "", Criteria{Success: []string{"server started"}})
	m.Timeout = 5 * time.Second
	m.AdditionalLog = filepath.Join(t.TempDir(), "extra.log")

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = os.WriteFile(m.AdditionalLog, []byte("server "), 0o644)
		time.Sleep(30 * time.Millisecond)
		f, err := os.OpenFile(m.AdditionalLog, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return
		}
		_, _ = f.WriteString("started\n")
		_ = f.Close()
	}()

	require.NoError(t, m.Wait(context.Background()))
}

func TestMonitorWaitCancelled(t *testing.T) {
	m := newMonitor(t, "", "", Criteria{Success: []string{"ready"}})
	m.Timeout = time.Minute
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Wait(ctx)
	require.ErrorIs(t, err, ErrReadinessTimedOut)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCriteriaFilter(t *testing.T) {
	c := Criteria{Exclusions: []string{"name resolution"}}
	got := c.filter("a\nerror: Temporary failure in name resolution\nb")
	require.Equal(t, "a\nb", got)
}
