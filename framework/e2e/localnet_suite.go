package e2e

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"

	"github.com/zingolabs/localnet/framework/local"
	"github.com/zingolabs/localnet/framework/local/fetcher"
	"github.com/zingolabs/localnet/framework/local/lightwalletd"
	"github.com/zingolabs/localnet/framework/local/zainod"
	"github.com/zingolabs/localnet/framework/local/zcashd"
	"github.com/zingolabs/localnet/framework/local/zebrad"
	"github.com/zingolabs/localnet/framework/types"
)

const (
	// BinDirEnv names the directory holding real node binaries as <dir>/<name>/<name>.
	BinDirEnv = "LOCALNET_BIN_DIR"
	// DefaultNetworkTimeout bounds suite setup and each helper wait.
	DefaultNetworkTimeout = 5 * time.Minute
)

// LocalNetTestSuite provides a reusable suite that runs one validator and one indexer from real
// binaries for the whole suite. It skips when BinDirEnv is unset or a binary is missing.
type LocalNetTestSuite struct {
	suite.Suite
	ctx    context.Context
	logger *zap.Logger

	// ValidatorKind and IndexerKind select the network; they default to zcashd and zainod.
	ValidatorKind string
	IndexerKind   string
	// Options tunes the network; Settings.Logger and Settings.Binaries are filled in by the suite.
	Options local.Options

	Net *local.Network
}

// SetupSuite resolves the binaries and launches the network.
func (s *LocalNetTestSuite) SetupSuite() {
	if testing.Short() {
		s.T().Skip("skipping e2e tests in short mode")
	}
	dir := os.Getenv(BinDirEnv)
	if dir == "" {
		s.T().Skipf("%s is not set", BinDirEnv)
	}
	if s.ValidatorKind == "" {
		s.ValidatorKind = zcashd.Name
	}
	if s.IndexerKind == "" {
		s.IndexerKind = zainod.Name
	}

	s.ctx = context.Background()
	s.logger = zaptest.NewLogger(s.T())

	resolver := fetcher.NewResolver(dir, "", s.logger)
	resolver.Expectations = nil
	for _, b := range requiredBinaries(s.ValidatorKind, s.IndexerKind) {
		if _, err := os.Stat(resolver.Path(b)); err != nil {
			s.T().Skipf("%s not found in %s", b, dir)
		}
	}

	s.Options.Settings.Logger = s.logger
	s.Options.Settings.Binaries = resolver

	ctx, cancel := context.WithTimeout(s.ctx, DefaultNetworkTimeout)
	defer cancel()
	net, err := s.Options.LaunchKinds(ctx, s.IndexerKind, s.ValidatorKind)
	s.Require().NoError(err)
	s.Net = net

	height, err := net.Validator().ChainHeight(ctx)
	s.Require().NoError(err)
	s.logger.Info("local network started",
		zap.String("validator", s.ValidatorKind),
		zap.String("indexer", s.IndexerKind),
		zap.Stringer("height", height))
}

// TearDownSuite stops the network and removes its directories.
func (s *LocalNetTestSuite) TearDownSuite() {
	if s.Net == nil {
		return
	}
	if s.T().Failed() {
		if err := s.Net.WriteLogs(s.ctx, os.Stdout); err != nil {
			s.T().Logf("Failed to write logs: %s", err)
		}
	}
	if err := s.Net.Close(s.ctx); err != nil {
		s.T().Logf("Failed to close network: %s", err)
	}
}

// Context returns the suite's background context.
func (s *LocalNetTestSuite) Context() context.Context { return s.ctx }

// GenerateBlocks produces n blocks and returns the new height.
func (s *LocalNetTestSuite) GenerateBlocks(n uint32) types.ChainHeight {
	ctx, cancel := context.WithTimeout(s.ctx, DefaultNetworkTimeout)
	defer cancel()
	v := s.Net.Validator()
	s.Require().NoError(v.GenerateBlocks(ctx, n))
	height, err := v.ChainHeight(ctx)
	s.Require().NoError(err)
	return height
}

// ConnectIndexer dials the indexer and waits until the connection is ready.
func (s *LocalNetTestSuite) ConnectIndexer(timeout time.Duration) (*grpc.ClientConn, error) {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	conn, err := s.Net.Indexer().Dial(ctx)
	if err != nil {
		return nil, err
	}
	if err := waitReady(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("indexer %s not ready: %w", s.Net.Indexer().Name(), err)
	}
	return conn, nil
}

func waitReady(ctx context.Context, conn *grpc.ClientConn) error {
	conn.Connect()
	for {
		state := conn.GetState()
		if state == connectivity.Ready {
			return nil
		}
		if !conn.WaitForStateChange(ctx, state) {
			return ctx.Err()
		}
	}
}

func requiredBinaries(validator, indexer string) []fetcher.Binary {
	var bins []fetcher.Binary
	switch validator {
	case zcashd.Name:
		bins = append(bins, fetcher.Zcashd, fetcher.ZcashCli)
	case zebrad.Name:
		bins = append(bins, fetcher.Zebrad)
	}
	switch indexer {
	case zainod.Name:
		bins = append(bins, fetcher.Zainod)
	case lightwalletd.Name:
		bins = append(bins, fetcher.Lightwalletd)
	}
	return bins
}
