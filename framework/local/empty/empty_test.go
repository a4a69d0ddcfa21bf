package empty

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zingolabs/localnet/framework/local/indexer"
	"github.com/zingolabs/localnet/framework/local/process"
)

func TestEmpty(t *testing.T) {
	ctx := context.Background()
	n, err := Launch(ctx, Config{Settings: process.Settings{
		Logger:   zaptest.NewLogger(t),
		TempRoot: t.TempDir(),
	}})
	require.NoError(t, err)

	require.Zero(t, n.Port())
	require.Nil(t, n.Handle())
	require.DirExists(t, n.ConfigDir())
	require.DirExists(t, n.DataDir())

	out, err := n.Stdout()
	require.NoError(t, err)
	require.Empty(t, out)
	require.NoError(t, n.PrintStderr())

	_, err = n.Dial(ctx)
	require.ErrorIs(t, err, indexer.ErrNoListener)

	require.NoError(t, n.Stop(ctx))
	require.NoError(t, n.Close(ctx))
	_, err = os.Stat(n.Dirs().Root)
	require.True(t, os.IsNotExist(err))
}
