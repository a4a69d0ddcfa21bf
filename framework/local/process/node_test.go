package process

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testSettings(t *testing.T) Settings {
	return Settings{
		Logger:           zaptest.NewLogger(t),
		ReadinessTimeout: 10 * time.Second,
		PollInterval:     10 * time.Millisecond,
		StopTimeout:      5 * time.Second,
		TempRoot:         t.TempDir(),
	}
}

const readyScript = `
trap 'echo "shutting down"; exit 0' TERM
echo "booting"
echo "node ready"
while true; do sleep 1 & wait $!; done
`

func TestNodeLifecycle(t *testing.T) {
	ctx := context.Background()
	script := writeScript(t, readyScript)

	n, err := NewNode("testd", testSettings(t))
	require.NoError(t, err)
	for _, dir := range []string{n.ConfigDir(), n.LogsDir(), n.DataDir()} {
		require.DirExists(t, dir)
	}

	err = n.Spawn(ctx, SpawnOptions{Binary: script, Criteria: Criteria{Success: []string{"node ready"}}})
	require.NoError(t, err)
	require.False(t, n.Handle().Exited())

	out, err := n.Stdout()
	require.NoError(t, err)
	require.Contains(t, out, "booting")

	require.NoError(t, n.Stop(ctx))
	require.True(t, n.Handle().Exited())
	require.NoError(t, n.Stop(ctx), "stop must be idempotent")

	root := n.Dirs().Root
	require.NoError(t, n.Close(ctx))
	require.NoDirExists(t, root)
	require.NoError(t, n.Close(ctx))
}

func TestNodeSpawnExitedEarly(t *testing.T) {
	script := writeScript(t, "echo 'fatal: bad config' >&2\nexit 2\n")
	n, err := NewNode("testd", testSettings(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close(context.Background()) })

	err = n.Spawn(context.Background(), SpawnOptions{Binary: script, Criteria: Criteria{Success: []string{"ready"}}})
	require.ErrorIs(t, err, ErrProcessExitedEarly)

	var le *LaunchError
	require.ErrorAs(t, err, &le)
	require.Equal(t, 2, le.ExitCode)
	require.Equal(t, "fatal: bad config\n", le.Stderr)
}

func TestNodeSpawnErrorPatternKillsProcess(t *testing.T) {
	script := writeScript(t, "echo 'Error: cannot bind'\nwhile true; do sleep 1; done\n")
	n, err := NewNode("testd", testSettings(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close(context.Background()) })

	err = n.Spawn(context.Background(), SpawnOptions{
		Binary:   script,
		Criteria: Criteria{Success: []string{"ready"}, Errors: []string{"Error:"}},
	})
	require.ErrorIs(t, err, ErrErrorPatternMatched)
	require.True(t, n.Handle().Exited())
}

func TestNodeStopEscalatesToKill(t *testing.T) {
	script := writeScript(t, "trap '' TERM\necho ready\nwhile true; do sleep 1; done\n")
	settings := testSettings(t)
	settings.StopTimeout = 200 * time.Millisecond

	n, err := NewNode("stubborn", settings)
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close(context.Background()) })
	n.SetGracefulStop(func(context.Context) error { return errors.New("rpc unavailable") })

	require.NoError(t, n.Spawn(context.Background(), SpawnOptions{Binary: script, Criteria: Criteria{Success: []string{"ready"}}}))
	require.NoError(t, n.Stop(context.Background()))
	require.True(t, n.Handle().Exited())
}

func TestNodeCloseKeepsDirs(t *testing.T) {
	settings := testSettings(t)
	settings.KeepDirs = true
	n, err := NewNode("testd", settings)
	require.NoError(t, err)

	require.NoError(t, n.Close(context.Background()))
	require.DirExists(t, n.Dirs().Root)
}

func TestPrintLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.log")
	require.NoError(t, os.WriteFile(path, []byte("hello\n"), 0o644))

	var sb strings.Builder
	require.NoError(t, PrintLog(&sb, "stdout", path))
	require.Equal(t, "stdout:\nhello\n", sb.String())
}
