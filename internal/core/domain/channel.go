package domain

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"
)

type Outpoint struct {
	Txid string
	VOut uint32
}

// FromString parses a funding outpoint in the txid:index form returned by lnd.
func (k *Outpoint) FromString(s string) error {
	op, err := wire.NewOutPointFromString(s)
	if err != nil {
		return fmt.Errorf("invalid outpoint string %q: %w", s, err)
	}
	k.Txid = op.Hash.String()
	k.VOut = op.Index
	return nil
}

func (k Outpoint) String() string {
	return fmt.Sprintf("%s:%d", k.Txid, k.VOut)
}

// Channel is the point-in-time view of an open channel fetched at every sweep.
type Channel struct {
	ChanId       uint64
	ChannelPoint string
	LocalBalance int64
	Capacity     int64
	RemotePubkey string
	Active       bool
}

// LiquidityRatio returns the share of the channel capacity owned locally,
// as a percentage. The caller must make sure capacity is not zero.
func (c Channel) LiquidityRatio() float64 {
	return LiquidityRatio(c.LocalBalance, c.Capacity)
}

func LiquidityRatio(localBalance, capacity int64) float64 {
	return float64(localBalance) / float64(capacity) * 100
}
