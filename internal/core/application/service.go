package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arkade-os/feekeeper/internal/core/domain"
	"github.com/arkade-os/feekeeper/internal/core/ports"
	"github.com/arkade-os/feekeeper/pkg/errors"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type service struct {
	// services
	lnd       ports.LightningService
	scheduler ports.SchedulerService
	alerts    ports.Alerts

	// config
	tiers    domain.Tiers
	interval time.Duration
	dryRun   bool

	// set once at startup, never changes afterwards
	identity string

	instruments *instruments

	// held for the whole duration of a scheduled sweep
	sweepMtx *sync.Mutex

	stop func()
	ctx  context.Context
}

func NewService(
	lnd ports.LightningService, scheduler ports.SchedulerService, alerts ports.Alerts,
	tiers domain.Tiers, interval time.Duration, dryRun bool,
) (Service, error) {
	if lnd == nil {
		return nil, fmt.Errorf("missing lnd service")
	}
	if scheduler == nil {
		return nil, fmt.Errorf("missing scheduler service")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("invalid sweep interval %s, must be positive", interval)
	}

	return newService(lnd, scheduler, alerts, tiers, interval, dryRun), nil
}

func newService(
	lnd ports.LightningService, scheduler ports.SchedulerService, alerts ports.Alerts,
	tiers domain.Tiers, interval time.Duration, dryRun bool,
) *service {
	ctx, cancel := context.WithCancel(context.Background())
	return &service{
		lnd:         lnd,
		scheduler:   scheduler,
		alerts:      alerts,
		tiers:       tiers,
		interval:    interval,
		dryRun:      dryRun,
		instruments: newInstruments(),
		stop:        cancel,
		ctx:         ctx,
		sweepMtx:    &sync.Mutex{},
	}
}

func (s *service) Start() error {
	identity, err := s.lnd.GetIdentity(s.ctx)
	if err != nil {
		return fmt.Errorf("failed to get lnd info: %w", err)
	}
	s.identity = identity
	log.Infof("connected to lnd: %s", identity)
	if s.dryRun {
		log.Warn("dry run enabled, fee policies will not be updated")
	}

	s.scheduler.Start()

	go s.run()
	return nil
}

func (s *service) Stop() {
	s.stop()
	s.scheduler.Stop()
	// wait for the in-flight sweep, if any, to notice the cancellation
	s.sweepMtx.Lock()
	defer s.sweepMtx.Unlock()
	s.lnd.Close()
	log.Debug("stopped fee reconciliation")
}

// run sweeps and schedules the next sweep once this one is over, so that two
// sweeps never overlap.
func (s *service) run() {
	s.sweepMtx.Lock()
	defer s.sweepMtx.Unlock()

	if s.ctx.Err() != nil {
		return
	}

	s.Sweep(s.ctx)

	if s.ctx.Err() != nil {
		return
	}

	if err := s.scheduler.ScheduleTaskOnce(s.interval, s.run); err != nil {
		log.WithError(err).Warn("failed to schedule next sweep, falling back to timer")
		time.AfterFunc(s.interval, s.run)
	}
}

func (s *service) Sweep(ctx context.Context) SweepReport {
	start := time.Now()
	report := SweepReport{Id: uuid.New().String()}
	logger := log.WithField("sweep", report.Id)

	ctx, span := s.instruments.tracer.Start(
		ctx, "sweep", trace.WithAttributes(attribute.String("sweep.id", report.Id)),
	)
	defer span.End()

	channels, err := s.lnd.ListChannels(ctx)
	if err != nil {
		report.ListFailed = true
		report.Errors = append(report.Errors, err)
		errors.LIST_CHANNELS_FAILED.Wrap(err).
			WithMetadata(errors.SweepMetadata{SweepId: report.Id}).
			Log().Warn("failed to list channels, skipping sweep")
		span.SetStatus(codes.Error, err.Error())
		channels = nil
	}
	report.Channels = len(channels)

	for _, channel := range channels {
		result, err := s.reconcileChannel(ctx, channel)
		if err != nil {
			report.Errors = append(report.Errors, err)
			logChannelError(err, report.Id)
		}
		report.add(result)
		s.instruments.recordChannel(ctx, result)
	}

	report.Duration = time.Since(start)
	s.instruments.recordSweep(ctx, report)
	s.publishAlerts(ctx, report)

	logger.WithFields(log.Fields{
		"channels":  report.Channels,
		"updated":   report.Updated,
		"unchanged": report.Unchanged,
		"dry_run":   report.DryRun,
		"skipped":   report.Skipped,
		"failed":    report.Failed,
		"duration":  report.Duration.String(),
	}).Info("sweep completed")

	return report
}

// reconcileChannel brings the fees advertised for the channel in line with
// its liquidity. Any error is scoped to the channel and returned with a
// failed outcome, it must never stop the sweep.
func (s *service) reconcileChannel(
	ctx context.Context, channel domain.Channel,
) (ChannelResult, error) {
	result := ChannelResult{
		ChanId:       channel.ChanId,
		ChannelPoint: channel.ChannelPoint,
		Outcome:      OutcomeFailed,
	}
	metadata := func(operation string) errors.ChannelMetadata {
		return errors.ChannelMetadata{
			ChanId:       channel.ChanId,
			ChannelPoint: channel.ChannelPoint,
			Operation:    operation,
		}
	}

	var chanPoint domain.Outpoint
	if err := chanPoint.FromString(channel.ChannelPoint); err != nil {
		return result, errors.INVALID_CHANNEL_POINT.Wrap(err).
			WithMetadata(metadata("parse_channel_point"))
	}

	pair, err := s.lnd.GetChannelPolicyPair(ctx, channel.ChanId)
	if err != nil {
		return result, errors.POLICY_FETCH_FAILED.Wrap(err).
			WithMetadata(metadata("get_chan_info"))
	}
	current, err := pair.PolicyFor(s.identity)
	if err != nil {
		return result, errors.POLICY_NOT_FOUND.Wrap(err).
			WithMetadata(metadata("select_policy"))
	}
	result.Current = *current

	if channel.Capacity <= 0 {
		log.WithField("chan_id", channel.ChanId).Warnf(
			"channel %s has no capacity, skipping", channel.ChannelPoint,
		)
		result.Outcome = OutcomeSkipped
		return result, nil
	}

	result.LiquidityRatio = channel.LiquidityRatio()
	result.Tier = s.tiers.Level(result.LiquidityRatio)
	result.Target = result.Current.WithFees(s.tiers.Get(result.Tier))

	if result.Target.FeesEqual(result.Current) {
		result.Outcome = OutcomeUnchanged
		return result, nil
	}

	logger := log.WithFields(log.Fields{
		"chan_id":         channel.ChanId,
		"channel_point":   channel.ChannelPoint,
		"liquidity_ratio": fmt.Sprintf("%.2f", result.LiquidityRatio),
		"tier":            result.Tier.String(),
	})

	if s.dryRun {
		logger.Infof(
			"dry run: would update fees from %d msat + %d ppm to %d msat + %d ppm",
			result.Current.BaseFeeMsat, result.Current.FeeRatePpm,
			result.Target.BaseFeeMsat, result.Target.FeeRatePpm,
		)
		result.Outcome = OutcomeDryRun
		return result, nil
	}

	if err := s.lnd.UpdateChannelPolicy(ctx, chanPoint, result.Target); err != nil {
		return result, errors.POLICY_UPDATE_FAILED.Wrap(err).
			WithMetadata(metadata("update_channel_policy"))
	}

	logger.Infof(
		"updated fees from %d msat + %d ppm to %d msat + %d ppm",
		result.Current.BaseFeeMsat, result.Current.FeeRatePpm,
		result.Target.BaseFeeMsat, result.Target.FeeRatePpm,
	)
	result.Outcome = OutcomeUpdated
	return result, nil
}

func (s *service) publishAlerts(ctx context.Context, report SweepReport) {
	if s.alerts == nil {
		return
	}

	updates := make([]ports.PolicyUpdate, 0, report.Updated+report.DryRun)
	for _, r := range report.Results {
		if r.Outcome != OutcomeUpdated && r.Outcome != OutcomeDryRun {
			continue
		}
		updates = append(updates, ports.PolicyUpdate{
			ChanId:         r.ChanId,
			ChannelPoint:   r.ChannelPoint,
			LiquidityRatio: r.LiquidityRatio,
			Tier:           r.Tier.String(),
			Old:            r.Current,
			New:            r.Target,
		})
	}
	if len(updates) > 0 {
		if err := s.alerts.Publish(ctx, ports.FeePoliciesUpdated, ports.FeePoliciesUpdatedAlert{
			SweepId: report.Id,
			DryRun:  s.dryRun,
			Updates: updates,
		}); err != nil {
			log.WithError(err).Warn("failed to publish fee policies updated alert")
		}
	}

	if report.ListFailed || report.Failed > 0 {
		errs := make([]string, 0, len(report.Errors))
		for _, err := range report.Errors {
			errs = append(errs, err.Error())
		}
		if err := s.alerts.Publish(ctx, ports.SweepFailures, ports.SweepFailuresAlert{
			SweepId:    report.Id,
			ListFailed: report.ListFailed,
			Channels:   report.Channels,
			Failed:     report.Failed,
			Errors:     errs,
		}); err != nil {
			log.WithError(err).Warn("failed to publish sweep failures alert")
		}
	}
}

func logChannelError(err error, sweepId string) {
	typedErr, ok := err.(errors.Error)
	if !ok {
		log.WithError(err).WithField("sweep", sweepId).Warn("failed to reconcile channel")
		return
	}
	typedErr.Log().WithField("sweep", sweepId).Warn("failed to reconcile channel")
}
