package application

import (
	"context"
	"time"

	"github.com/arkade-os/feekeeper/internal/core/domain"
)

type Service interface {
	// Start resolves the identity of the connected node and begins sweeping.
	Start() error
	Stop()
	// Sweep reconciles the fee policy of every open channel once.
	Sweep(ctx context.Context) SweepReport
}

type Outcome string

const (
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeDryRun    Outcome = "dry-run"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

type ChannelResult struct {
	ChanId         uint64
	ChannelPoint   string
	LiquidityRatio float64
	Tier           domain.TierLevel
	Current        domain.Policy
	Target         domain.Policy
	Outcome        Outcome
}

type SweepReport struct {
	Id         string
	ListFailed bool
	Channels   int
	Updated    int
	Unchanged  int
	DryRun     int
	Skipped    int
	Failed     int
	Results    []ChannelResult
	Errors     []error
	Duration   time.Duration
}

func (r *SweepReport) add(result ChannelResult) {
	r.Results = append(r.Results, result)
	switch result.Outcome {
	case OutcomeUpdated:
		r.Updated++
	case OutcomeUnchanged:
		r.Unchanged++
	case OutcomeDryRun:
		r.DryRun++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
}
