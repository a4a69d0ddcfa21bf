package zebrad

import (
	"encoding/binary"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zingolabs/localnet/framework/types"
)

func hexHash(b byte) string {
	h := make([]byte, 32)
	h[0] = b
	return hex.EncodeToString(h)
}

func testTemplate() *BlockTemplate {
	return &BlockTemplate{
		Version:           4,
		PreviousBlockHash: hexHash(0xaa),
		DefaultRoots: DefaultRoots{
			MerkleRoot:           hexHash(0xbb),
			ChainHistoryRoot:     hexHash(0xcc),
			BlockCommitmentsHash: hexHash(0xdd),
		},
		CoinbaseTxn:  TemplateTx{Data: "0102"},
		Transactions: []TemplateTx{{Data: "0304"}, {Data: "05"}},
		MinTime:      1000,
		CurTime:      1500,
		MaxTime:      2000,
		Bits:         "200f0f0f",
		Height:       7,
	}
}

func TestProposalBlockLayout(t *testing.T) {
	block, err := ProposalBlock(testTemplate(), CurTime, types.NU5, time.Unix(0, 0))
	require.NoError(t, err)

	le := binary.LittleEndian
	require.Equal(t, uint32(4), le.Uint32(block[0:4]))

	// display order hashes are reversed on the wire
	require.Equal(t, byte(0xaa), block[4+31])
	require.Equal(t, byte(0xbb), block[36+31])
	require.Equal(t, byte(0xdd), block[68+31], "NU5 commits to blockcommitmentshash")

	require.Equal(t, uint32(1500), le.Uint32(block[100:104]))
	require.Equal(t, uint32(0x200f0f0f), le.Uint32(block[104:108]))
	require.Equal(t, make([]byte, 32), block[108:140])

	require.Equal(t, []byte{0xfd, 0x40, 0x05}, block[140:143])
	require.Equal(t, make([]byte, SolutionSize), block[143:143+SolutionSize])

	txs := block[143+SolutionSize:]
	require.Equal(t, []byte{3, 0x01, 0x02, 0x03, 0x04, 0x05}, txs)
}

func TestProposalBlockCanopyCommitment(t *testing.T) {
	block, err := ProposalBlock(testTemplate(), CurTime, types.Canopy, time.Now())
	require.NoError(t, err)
	require.Equal(t, byte(0xcc), block[68+31])
}

func TestProposalBlockTimeSource(t *testing.T) {
	now := time.Unix(5000, 0)
	tests := []struct {
		source TimeSource
		want   uint32
	}{
		{CurTime, 1500},
		{MinTime, 1000},
		{MaxTime, 2000},
		{ClampedNow, 2000},
		{RawNow, 5000},
	}
	for _, tc := range tests {
		t.Run(tc.source.String(), func(t *testing.T) {
			block, err := ProposalBlock(testTemplate(), tc.source, types.NU6, now)
			require.NoError(t, err)
			require.Equal(t, tc.want, binary.LittleEndian.Uint32(block[100:104]))

			parsed, err := ParseTimeSource(tc.source.String())
			require.NoError(t, err)
			require.Equal(t, tc.source, parsed)
		})
	}
}

func TestProposalBlockErrors(t *testing.T) {
	t.Run("unsupported upgrade", func(t *testing.T) {
		_, err := ProposalBlock(testTemplate(), CurTime, types.Sapling, time.Now())
		require.ErrorIs(t, err, ErrUnsupportedUpgrade)
	})

	t.Run("short hash", func(t *testing.T) {
		tmpl := testTemplate()
		tmpl.PreviousBlockHash = "abcd"
		_, err := ProposalBlock(tmpl, CurTime, types.NU5, time.Now())
		require.Error(t, err)
	})

	t.Run("bad bits", func(t *testing.T) {
		tmpl := testTemplate()
		tmpl.Bits = "zz"
		_, err := ProposalBlock(tmpl, CurTime, types.NU5, time.Now())
		require.Error(t, err)
	})

	t.Run("bad transaction data", func(t *testing.T) {
		tmpl := testTemplate()
		tmpl.Transactions[0].Data = "xyz"
		_, err := ProposalBlock(tmpl, CurTime, types.NU5, time.Now())
		require.Error(t, err)
	})
}

func TestSelectUpgrade(t *testing.T) {
	heights := types.DefaultActivationHeights()
	heights.NU5 = 10
	heights.NU6 = 20

	tests := []struct {
		height types.ChainHeight
		want   types.NetworkUpgrade
	}{
		{1, types.Canopy},
		{9, types.Canopy},
		{10, types.NU5},
		{19, types.NU5},
		{20, types.NU6},
		{500, types.NU6},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, SelectUpgrade(tc.height, heights), "height %d", tc.height)
	}

	require.Equal(t, types.NU6, SelectUpgrade(1, types.DefaultActivationHeights()))
}
