package zebrad

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// BlockTemplate is the result of getblocktemplate. Hashes are hex in display order.
type BlockTemplate struct {
	Version              int32        `json:"version"`
	PreviousBlockHash    string       `json:"previousblockhash"`
	BlockCommitmentsHash string       `json:"blockcommitmentshash"`
	LightClientRootHash  string       `json:"lightclientroothash"`
	FinalSaplingRootHash string       `json:"finalsaplingroothash"`
	DefaultRoots         DefaultRoots `json:"defaultroots"`
	Transactions         []TemplateTx `json:"transactions"`
	CoinbaseTxn          TemplateTx   `json:"coinbasetxn"`
	LongPollID           string       `json:"longpollid"`
	Target               string       `json:"target"`
	MinTime              int64        `json:"mintime"`
	Mutable              []string     `json:"mutable"`
	NonceRange           string       `json:"noncerange"`
	SigOpLimit           int64        `json:"sigoplimit"`
	SizeLimit            int64        `json:"sizelimit"`
	CurTime              int64        `json:"curtime"`
	Bits                 string       `json:"bits"`
	Height               uint32       `json:"height"`
	MaxTime              int64        `json:"maxtime"`
	Capabilities         []string     `json:"capabilities,omitempty"`
	SubmitOld            *bool        `json:"submitold,omitempty"`
}

// DefaultRoots are the header commitments for a block containing exactly the template's transactions.
type DefaultRoots struct {
	MerkleRoot           string `json:"merkleroot"`
	ChainHistoryRoot     string `json:"chainhistoryroot"`
	AuthDataRoot         string `json:"authdataroot"`
	BlockCommitmentsHash string `json:"blockcommitmentshash"`
}

// TemplateTx is a transaction in a block template.
type TemplateTx struct {
	Data       string  `json:"data"`
	Hash       string  `json:"hash"`
	AuthDigest string  `json:"authdigest"`
	Depends    []int64 `json:"depends"`
	Fee        int64   `json:"fee"`
	SigOps     int64   `json:"sigops"`
	Required   bool    `json:"required"`
}

// TimeSource selects the header time of a proposal block.
type TimeSource int

const (
	// CurTime uses the template's curtime.
	CurTime TimeSource = iota
	// MinTime uses the template's mintime.
	MinTime
	// MaxTime uses the template's maxtime.
	MaxTime
	// ClampedNow uses the current time clamped to [mintime, maxtime].
	ClampedNow
	// RawNow uses the current time unmodified.
	RawNow
)

func (s TimeSource) String() string {
	switch s {
	case MinTime:
		return "mintime"
	case MaxTime:
		return "maxtime"
	case ClampedNow:
		return "clampednow"
	case RawNow:
		return "rawnow"
	default:
		return "curtime"
	}
}

// ParseTimeSource parses the names returned by TimeSource.String.
func ParseTimeSource(s string) (TimeSource, error) {
	for _, ts := range []TimeSource{CurTime, MinTime, MaxTime, ClampedNow, RawNow} {
		if ts.String() == s {
			return ts, nil
		}
	}
	return CurTime, fmt.Errorf("unknown time source %q", s)
}

// headerTime returns the header time for t, using now for the wall-clock sources.
func (s TimeSource) headerTime(t *BlockTemplate, now time.Time) uint32 {
	switch s {
	case MinTime:
		return uint32(t.MinTime)
	case MaxTime:
		return uint32(t.MaxTime)
	case ClampedNow:
		unix := now.Unix()
		unix = max(unix, t.MinTime)
		unix = min(unix, t.MaxTime)
		return uint32(unix)
	case RawNow:
		return uint32(now.Unix())
	default:
		return uint32(t.CurTime)
	}
}

// decodeHash parses a display-order hex hash into serialized byte order.
func decodeHash(field, s string) (chainhash.Hash, error) {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	if len(s) != chainhash.MaxHashStringSize {
		return chainhash.Hash{}, fmt.Errorf("invalid %s %q: want %d hex characters", field, s, chainhash.MaxHashStringSize)
	}
	return *h, nil
}
