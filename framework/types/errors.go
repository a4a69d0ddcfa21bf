package types

import "errors"

var (
	// ErrBlockProduction is returned when a validator fails to produce requested blocks.
	ErrBlockProduction = errors.New("block production failed")
	// ErrHeightQuery is returned when the chain height cannot be read from a validator.
	ErrHeightQuery = errors.New("chain height query failed")
	// ErrChainCacheExists is returned when caching a chain to a destination that already exists.
	ErrChainCacheExists = errors.New("chain cache already exists")
	// ErrChainCacheNotFound is returned when a chain cache lacks the expected state directory.
	ErrChainCacheNotFound = errors.New("chain cache state directory not found")
	// ErrChainCacheRequired is returned when a non-regtest validator is launched without a chain cache.
	ErrChainCacheRequired = errors.New("chain cache must be specified when not using a regtest network")
	// ErrInvalidActivationHeights is returned for activation heights a validator cannot run with.
	ErrInvalidActivationHeights = errors.New("invalid activation heights")
)
