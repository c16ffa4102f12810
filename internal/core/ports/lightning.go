package ports

import (
	"context"

	"github.com/arkade-os/feekeeper/internal/core/domain"
)

// LightningService is the subset of the node RPC interface the fee
// reconciliation relies on.
type LightningService interface {
	// GetIdentity returns the public key of the connected node.
	GetIdentity(ctx context.Context) (string, error)
	ListChannels(ctx context.Context) ([]domain.Channel, error)
	// GetChannelPolicyPair returns the policies currently advertised in the
	// graph by both ends of the given channel.
	GetChannelPolicyPair(ctx context.Context, chanId uint64) (*domain.PolicyPair, error)
	// UpdateChannelPolicy replaces the policy of the channel funded by the
	// given outpoint. The policy is applied as a whole.
	UpdateChannelPolicy(ctx context.Context, chanPoint domain.Outpoint, policy domain.Policy) error
	Close()
}
