package domain_test

import (
	"testing"

	"github.com/arkade-os/feekeeper/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestPolicyWithFees(t *testing.T) {
	t.Parallel()

	current := domain.Policy{
		BaseFeeMsat:   1,
		FeeRatePpm:    1,
		TimeLockDelta: 144,
		MaxHtlcMsat:   990_000_000,
	}

	for _, tier := range []domain.Tier{testTiers.Low, testTiers.Medium, testTiers.High} {
		target := current.WithFees(tier)
		require.Equal(t, tier.BaseFeeMsat, target.BaseFeeMsat)
		require.Equal(t, tier.FeeRatePpm, target.FeeRatePpm)
		require.Equal(t, current.TimeLockDelta, target.TimeLockDelta)
		require.Equal(t, current.MaxHtlcMsat, target.MaxHtlcMsat)
	}

	// The source policy is left untouched.
	require.Equal(t, int64(1), current.BaseFeeMsat)
	require.Equal(t, uint32(1), current.FeeRatePpm)
}

func TestPolicyFeesEqual(t *testing.T) {
	t.Parallel()

	p := domain.Policy{BaseFeeMsat: 1000, FeeRatePpm: 50, TimeLockDelta: 40, MaxHtlcMsat: 10}

	require.True(t, p.FeesEqual(domain.Policy{BaseFeeMsat: 1000, FeeRatePpm: 50}))
	require.False(t, p.FeesEqual(domain.Policy{BaseFeeMsat: 999, FeeRatePpm: 50}))
	require.False(t, p.FeesEqual(domain.Policy{BaseFeeMsat: 1000, FeeRatePpm: 51}))
}

func TestPolicyPairPolicyFor(t *testing.T) {
	t.Parallel()

	policy1 := &domain.Policy{FeeRatePpm: 1}
	policy2 := &domain.Policy{FeeRatePpm: 2}
	pair := domain.PolicyPair{
		Node1Pub:    "node1",
		Node1Policy: policy1,
		Node2Pub:    "node2",
		Node2Policy: policy2,
	}

	got, err := pair.PolicyFor("node1")
	require.NoError(t, err)
	require.Equal(t, policy1, got)

	got, err = pair.PolicyFor("node2")
	require.NoError(t, err)
	require.Equal(t, policy2, got)

	_, err = pair.PolicyFor("stranger")
	require.ErrorIs(t, err, domain.ErrPolicyNotFound)

	_, err = pair.PolicyFor("")
	require.ErrorIs(t, err, domain.ErrPolicyNotFound)

	pair.Node2Policy = nil
	_, err = pair.PolicyFor("node2")
	require.ErrorIs(t, err, domain.ErrPolicyNotFound)
}
