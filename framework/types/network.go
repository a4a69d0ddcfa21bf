package types

import (
	"fmt"
	"strings"
)

// Network is the kind of chain a node is configured to follow.
type Network int

const (
	// Regtest is a throwaway, locally mined chain.
	Regtest Network = iota
	// Testnet is the public test network.
	Testnet
	// Mainnet is the public main network.
	Mainnet
)

// String returns the network name in the form the node configuration files expect.
func (n Network) String() string {
	switch n {
	case Mainnet:
		return "Mainnet"
	case Testnet:
		return "Testnet"
	default:
		return "Regtest"
	}
}

// ParseNetwork parses a case-insensitive network name.
func ParseNetwork(s string) (Network, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "regtest", "":
		return Regtest, nil
	case "testnet":
		return Testnet, nil
	case "mainnet":
		return Mainnet, nil
	default:
		return Regtest, fmt.Errorf("unknown network %q", s)
	}
}

// NetworkUpgrade identifies a protocol upgrade.
type NetworkUpgrade int

const (
	BeforeOverwinter NetworkUpgrade = iota
	Overwinter
	Sapling
	Blossom
	Heartwood
	Canopy
	NU5
	NU6
)

func (u NetworkUpgrade) String() string {
	switch u {
	case Overwinter:
		return "Overwinter"
	case Sapling:
		return "Sapling"
	case Blossom:
		return "Blossom"
	case Heartwood:
		return "Heartwood"
	case Canopy:
		return "Canopy"
	case NU5:
		return "NU5"
	case NU6:
		return "NU6"
	default:
		return "BeforeOverwinter"
	}
}

// ActivationHeights holds the height at which each network upgrade activates on a regtest chain.
type ActivationHeights struct {
	Overwinter ChainHeight
	Sapling    ChainHeight
	Blossom    ChainHeight
	Heartwood  ChainHeight
	Canopy     ChainHeight
	NU5        ChainHeight
	NU6        ChainHeight
}

// DefaultActivationHeights activates every upgrade at height 1.
func DefaultActivationHeights() ActivationHeights {
	return ActivationHeights{
		Overwinter: 1,
		Sapling:    1,
		Blossom:    1,
		Heartwood:  1,
		Canopy:     1,
		NU5:        1,
		NU6:        1,
	}
}

// Ordered returns the upgrades and their heights in activation order.
func (a ActivationHeights) Ordered() []UpgradeHeight {
	return []UpgradeHeight{
		{Overwinter, a.Overwinter},
		{Sapling, a.Sapling},
		{Blossom, a.Blossom},
		{Heartwood, a.Heartwood},
		{Canopy, a.Canopy},
		{NU5, a.NU5},
		{NU6, a.NU6},
	}
}

// UpgradeHeight pairs an upgrade with its activation height.
type UpgradeHeight struct {
	Upgrade NetworkUpgrade
	Height  ChainHeight
}

// Validate checks that activation heights never decrease in upgrade order.
func (a ActivationHeights) Validate() error {
	ordered := a.Ordered()
	for i := 1; i < len(ordered); i++ {
		prev, cur := ordered[i-1], ordered[i]
		if cur.Height < prev.Height {
			return fmt.Errorf("%w: %s (%d) activates before %s (%d)",
				ErrInvalidActivationHeights, cur.Upgrade, cur.Height, prev.Upgrade, prev.Height)
		}
	}
	return nil
}

// ActiveUpgrade returns the most recent upgrade among candidates that is active at height.
// Candidates are considered in ascending threshold order and the last one whose threshold
// is at or below height wins; the first candidate is returned when none match.
func ActiveUpgrade(height ChainHeight, candidates ...UpgradeHeight) NetworkUpgrade {
	if len(candidates) == 0 {
		return BeforeOverwinter
	}
	active := candidates[0].Upgrade
	for _, c := range candidates {
		if height >= c.Height {
			active = c.Upgrade
		}
	}
	return active
}
