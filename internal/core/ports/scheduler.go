package ports

import "time"

type SchedulerService interface {
	Start()
	Stop()
	// ScheduleTaskOnce runs the task once, after the given delay has elapsed.
	ScheduleTaskOnce(delay time.Duration, task func()) error
}
