package zebrad

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/zingolabs/localnet/framework/types"
)

// SolutionSize is the length of an Equihash (200, 9) solution.
const SolutionSize = 1344

// ErrUnsupportedUpgrade is returned when building a block for an upgrade whose header commitment is not supported.
var ErrUnsupportedUpgrade = errors.New("unsupported network upgrade for block proposals")

// SelectUpgrade returns the upgrade whose rules apply to a block at height. Canopy is the base
// because zebrad's regtest mode requires it from height 1, and NU5 and NU6 take over at their
// activation heights.
func SelectUpgrade(height types.ChainHeight, heights types.ActivationHeights) types.NetworkUpgrade {
	return types.ActiveUpgrade(height,
		types.UpgradeHeight{Upgrade: types.Canopy, Height: 0},
		types.UpgradeHeight{Upgrade: types.NU5, Height: heights.NU5},
		types.UpgradeHeight{Upgrade: types.NU6, Height: heights.NU6},
	)
}

// ProposalBlock builds a block from t with an all-zero nonce and solution, and returns its wire encoding.
func ProposalBlock(t *BlockTemplate, ts TimeSource, upgrade types.NetworkUpgrade, now time.Time) ([]byte, error) {
	prev, err := decodeHash("previousblockhash", t.PreviousBlockHash)
	if err != nil {
		return nil, err
	}
	merkle, err := decodeHash("merkleroot", t.DefaultRoots.MerkleRoot)
	if err != nil {
		return nil, err
	}
	commitments, err := headerCommitments(t, upgrade)
	if err != nil {
		return nil, err
	}
	bits, err := decodeBits(t.Bits)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	le := binary.LittleEndian
	_ = binary.Write(&buf, le, t.Version)
	buf.Write(prev[:])
	buf.Write(merkle[:])
	buf.Write(commitments[:])
	_ = binary.Write(&buf, le, ts.headerTime(t, now))
	_ = binary.Write(&buf, le, bits)
	buf.Write(make([]byte, 32))
	if err := wire.WriteVarInt(&buf, 0, SolutionSize); err != nil {
		return nil, err
	}
	buf.Write(make([]byte, SolutionSize))

	txs := append([]TemplateTx{t.CoinbaseTxn}, t.Transactions...)
	if err := wire.WriteVarInt(&buf, 0, uint64(len(txs))); err != nil {
		return nil, err
	}
	for i, tx := range txs {
		raw, err := hex.DecodeString(tx.Data)
		if err != nil {
			return nil, fmt.Errorf("invalid transaction %d data: %w", i, err)
		}
		if len(raw) == 0 {
			return nil, fmt.Errorf("transaction %d has no data", i)
		}
		buf.Write(raw)
	}
	return buf.Bytes(), nil
}

// headerCommitments returns the commitment field of the header for upgrade.
func headerCommitments(t *BlockTemplate, upgrade types.NetworkUpgrade) (chainhash.Hash, error) {
	switch upgrade {
	case types.Heartwood, types.Canopy:
		return decodeHash("chainhistoryroot", t.DefaultRoots.ChainHistoryRoot)
	case types.NU5, types.NU6:
		return decodeHash("blockcommitmentshash", t.DefaultRoots.BlockCommitmentsHash)
	default:
		return chainhash.Hash{}, fmt.Errorf("%w: %s", ErrUnsupportedUpgrade, upgrade)
	}
}

// decodeBits parses the compact difficulty, given as big-endian hex.
func decodeBits(s string) (uint32, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 4 {
		return 0, fmt.Errorf("invalid bits %q", s)
	}
	return binary.BigEndian.Uint32(raw), nil
}
