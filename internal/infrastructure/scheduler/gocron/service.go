package timescheduler

import (
	"fmt"
	"time"

	"github.com/arkade-os/feekeeper/internal/core/ports"
	"github.com/go-co-op/gocron"
)

type service struct {
	scheduler *gocron.Scheduler
}

func NewScheduler() ports.SchedulerService {
	svc := gocron.NewScheduler(time.UTC)
	return &service{svc}
}

func (s *service) Start() {
	s.scheduler.StartAsync()
}

func (s *service) Stop() {
	s.scheduler.Stop()
}

// ScheduleTaskOnce registers a job that fires once after delay, the job is
// dropped by the scheduler after its only run.
func (s *service) ScheduleTaskOnce(delay time.Duration, task func()) error {
	if delay <= 0 {
		return fmt.Errorf("delay must be positive, got %s", delay)
	}

	_, err := s.scheduler.Every(delay).WaitForSchedule().LimitRunsTo(1).Do(task)
	return err
}
