package domain

import "errors"

var ErrPolicyNotFound = errors.New("no policy advertised by this node for channel")

// Policy is the routing policy advertised by one side of a channel.
type Policy struct {
	BaseFeeMsat   int64
	FeeRatePpm    uint32
	TimeLockDelta uint32
	MaxHtlcMsat   uint64
}

// WithFees returns a copy of the policy carrying the fees of the given tier.
// Any other field is inherited as is, lnd replaces the whole policy on update
// and a zero time lock delta or max htlc would be applied verbatim.
func (p Policy) WithFees(tier Tier) Policy {
	target := p
	target.BaseFeeMsat = tier.BaseFeeMsat
	target.FeeRatePpm = tier.FeeRatePpm
	return target
}

func (p Policy) FeesEqual(other Policy) bool {
	return p.BaseFeeMsat == other.BaseFeeMsat && p.FeeRatePpm == other.FeeRatePpm
}

// PolicyPair holds both directions of a channel as seen in the graph.
// Either policy may be nil if the node never announced it.
type PolicyPair struct {
	Node1Pub    string
	Node1Policy *Policy
	Node2Pub    string
	Node2Policy *Policy
}

// PolicyFor returns the policy advertised by the given node.
func (p PolicyPair) PolicyFor(pubkey string) (*Policy, error) {
	if pubkey == "" {
		return nil, ErrPolicyNotFound
	}
	switch pubkey {
	case p.Node1Pub:
		if p.Node1Policy == nil {
			return nil, ErrPolicyNotFound
		}
		return p.Node1Policy, nil
	case p.Node2Pub:
		if p.Node2Policy == nil {
			return nil, ErrPolicyNotFound
		}
		return p.Node2Policy, nil
	default:
		return nil, ErrPolicyNotFound
	}
}
