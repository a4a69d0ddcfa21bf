// Package empty provides an indexer that runs nothing, for networks that only need a validator.
package empty

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/grpc"

	"github.com/zingolabs/localnet/framework/local/indexer"
	"github.com/zingolabs/localnet/framework/local/process"
	"github.com/zingolabs/localnet/framework/types"
)

const Name = "empty"

type Config struct {
	Settings process.Settings
}

func DefaultConfig() Config {
	return Config{Settings: process.DefaultSettings()}
}

// Node owns directories but no process.
type Node struct {
	*process.Node
}

var _ types.Indexer = (*Node)(nil)

// Launch allocates the directories and empty logs of an indexer without starting anything.
func Launch(_ context.Context, cfg Config) (*Node, error) {
	pn, err := process.NewNode(Name, cfg.Settings)
	if err != nil {
		return nil, err
	}
	for _, path := range []string{pn.Dirs().StdoutPath(), pn.Dirs().StderrPath()} {
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			_ = pn.Dirs().Remove()
			return nil, fmt.Errorf("failed to create %s: %w", path, err)
		}
	}
	return &Node{Node: pn}, nil
}

func (n *Node) Port() uint16 { return 0 }

// Dial always fails with indexer.ErrNoListener.
func (n *Node) Dial(ctx context.Context) (*grpc.ClientConn, error) {
	return indexer.Dial(ctx, 0)
}

// LaunchIndexer launches the empty indexer; it does not use the validator.
func (c Config) LaunchIndexer(ctx context.Context, _ types.Validator) (*Node, error) {
	return Launch(ctx, c)
}
