package types

import "strconv"

// ChainHeight is the height of a block in a validator's best chain.
type ChainHeight uint32

// Add returns the height n blocks above h.
func (h ChainHeight) Add(n uint32) ChainHeight {
	return h + ChainHeight(n)
}

func (h ChainHeight) String() string {
	return strconv.FormatUint(uint64(h), 10)
}
