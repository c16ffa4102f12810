package ports

import (
	"context"

	"github.com/arkade-os/feekeeper/internal/core/domain"
)

const (
	FeePoliciesUpdated Topic = "Fee Policies Updated"
	SweepFailures      Topic = "Sweep Failures"
)

type Topic string

type Alerts interface {
	Publish(ctx context.Context, topic Topic, message interface{}) error
}

type PolicyUpdate struct {
	ChanId         uint64
	ChannelPoint   string
	LiquidityRatio float64
	Tier           string
	Old            domain.Policy
	New            domain.Policy
}

type FeePoliciesUpdatedAlert struct {
	SweepId string
	DryRun  bool
	Updates []PolicyUpdate
}

type SweepFailuresAlert struct {
	SweepId    string
	ListFailed bool
	Channels   int
	Failed     int
	Errors     []string
}
