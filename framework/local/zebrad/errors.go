package zebrad

import (
	"fmt"

	"github.com/zingolabs/localnet/framework/types"
)

// BlockRejectedError is returned when submitblock answers with anything other than acceptance.
type BlockRejectedError struct {
	Height  uint32
	Verdict string
}

func (e *BlockRejectedError) Error() string {
	return fmt.Sprintf("block at height %d was not accepted: %s", e.Height, e.Verdict)
}

func (e *BlockRejectedError) Unwrap() error {
	return types.ErrBlockProduction
}
