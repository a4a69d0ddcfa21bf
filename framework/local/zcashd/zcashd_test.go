package zcashd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	"github.com/zingolabs/localnet/framework/local/process"
	"github.com/zingolabs/localnet/framework/testutil/fakes"
	"github.com/zingolabs/localnet/framework/types"
)

type ZcashdTestSuite struct {
	suite.Suite
	ctx context.Context
	cfg Config
}

func TestZcashdSuite(t *testing.T) {
	suite.Run(t, new(ZcashdTestSuite))
}

func (s *ZcashdTestSuite) SetupTest() {
	t := s.T()
	s.ctx = context.Background()
	s.cfg = DefaultConfig()
	s.cfg.ZcashdBin, s.cfg.ZcashCliBin = fakes.Zcashd(t)
	s.cfg.ActivationHeights = types.ActivationHeights{
		Overwinter: 1, Sapling: 2, Blossom: 3, Heartwood: 4, Canopy: 5, NU5: 6, NU6: 7,
	}
	s.cfg.CacheSettle = time.Millisecond
	s.cfg.Settings = process.Settings{
		Logger:           zaptest.NewLogger(t),
		ReadinessTimeout: 10 * time.Second,
		HeightTimeout:    5 * time.Second,
		PollInterval:     10 * time.Millisecond,
		StopTimeout:      5 * time.Second,
		TempRoot:         t.TempDir(),
	}
}

func (s *ZcashdTestSuite) launch(cfg Config) *Node {
	n, err := Launch(s.ctx, cfg)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = n.Close(context.Background()) })
	return n
}

func (s *ZcashdTestSuite) height(n *Node) types.ChainHeight {
	h, err := n.ChainHeight(s.ctx)
	s.Require().NoError(err)
	return h
}

func (s *ZcashdTestSuite) TestLaunchGeneratesGenesisThenBlocks() {
	n := s.launch(s.cfg)
	s.Require().Equal(types.ChainHeight(1), s.height(n))

	s.Require().NoError(n.GenerateBlocks(s.ctx, 5))
	s.Require().Equal(types.ChainHeight(6), s.height(n))
}

func (s *ZcashdTestSuite) TestConfigAndDirectories() {
	n := s.launch(s.cfg)

	conf, err := os.ReadFile(n.ConfigPath())
	s.Require().NoError(err)
	s.Require().Contains(string(conf), "nuparams=c8e71055:7 # NU6")
	s.Require().Contains(string(conf), "rpcport=")
	s.Require().Equal(n.ConfigPath(), n.ZcashConfPath())
	s.Require().Equal(filepath.Join(n.ConfigDir(), "zcash.conf"), n.ConfigPath())

	stdout, err := n.Stdout()
	s.Require().NoError(err)
	s.Require().Contains(stdout, "Done loading")
	s.Require().FileExists(filepath.Join(n.DataDir(), "regtest", "height"))
}

func (s *ZcashdTestSuite) TestExplicitRPCPort() {
	port, err := process.PickUnusedPort(s.ctx)
	s.Require().NoError(err)
	cfg := s.cfg
	cfg.RPCPort = port

	n := s.launch(cfg)
	s.Require().Equal(port, n.RPCPort())
}

func (s *ZcashdTestSuite) TestStopIsIdempotent() {
	n := s.launch(s.cfg)
	s.Require().NoError(n.Stop(s.ctx))
	s.Require().True(n.Handle().Exited())
	s.Require().NoError(n.Stop(s.ctx))

	stdout, err := n.Stdout()
	s.Require().NoError(err)
	s.Require().Contains(stdout, "shutting down", "zcash-cli stop should shut zcashd down gracefully")
}

func (s *ZcashdTestSuite) TestCacheChainTwice() {
	n := s.launch(s.cfg)
	s.Require().NoError(n.GenerateBlocks(s.ctx, 2))

	dest := filepath.Join(s.T().TempDir(), "chain")
	s.Require().NoError(n.CacheChain(s.ctx, dest))
	before, err := os.ReadFile(filepath.Join(dest, "regtest", "height"))
	s.Require().NoError(err)

	err = n.CacheChain(s.ctx, dest)
	s.Require().ErrorIs(err, types.ErrChainCacheExists)

	after, err := os.ReadFile(filepath.Join(dest, "regtest", "height"))
	s.Require().NoError(err)
	s.Require().Equal(before, after)
	s.Require().Equal("3\n", string(after))
}

func (s *ZcashdTestSuite) TestLaunchFromChainCache() {
	n := s.launch(s.cfg)
	s.Require().NoError(n.GenerateBlocks(s.ctx, 4))
	dest := filepath.Join(s.T().TempDir(), "chain")
	s.Require().NoError(n.CacheChain(s.ctx, dest))

	cfg := s.cfg
	cfg.ChainCache = dest
	cached := s.launch(cfg)
	s.Require().Equal(types.ChainHeight(5), s.height(cached), "a cached chain skips the genesis block")
}

func (s *ZcashdTestSuite) TestLaunchFailures() {
	s.Run("missing cache", func() {
		cfg := s.cfg
		cfg.ChainCache = s.T().TempDir()
		_, err := Launch(s.ctx, cfg)
		s.Require().ErrorIs(err, types.ErrChainCacheNotFound)
	})

	s.Run("process exits early", func() {
		cfg := s.cfg
		cfg.ZcashdBin = fakes.Failing(s.T(), "zcashd", "Cannot obtain a lock on data directory", 1)
		_, err := Launch(s.ctx, cfg)
		s.Require().ErrorIs(err, process.ErrProcessExitedEarly)

		var le *process.LaunchError
		s.Require().ErrorAs(err, &le)
		s.Require().Contains(le.Stderr, "Cannot obtain a lock")
	})

	s.Run("decreasing activation heights", func() {
		cfg := s.cfg
		cfg.ActivationHeights.NU6 = 2
		_, err := Launch(s.ctx, cfg)
		s.Require().ErrorIs(err, types.ErrInvalidActivationHeights)
	})
}

func TestCriteria(t *testing.T) {
	require.Equal(t, []string{"init message: Done loading"}, Criteria.Success)
	require.Equal(t, []string{"Error:"}, Criteria.Errors)
}
