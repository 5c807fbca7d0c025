package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// nextOccurrence returns the first HH:MM wall-clock time in loc strictly
// after now. Across a DST change the gap from today's occurrence is 23h or
// 25h, not 24h.
func nextOccurrence(timeOfDay string, now time.Time, loc *time.Location) (time.Time, error) {
	t, err := time.Parse("15:04", timeOfDay)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %v", ErrInvalidTimeOfDay, timeOfDay, err)
	}

	sched, err := cron.ParseStandard(fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %v", ErrInvalidTimeOfDay, timeOfDay, err)
	}
	if spec, ok := sched.(*cron.SpecSchedule); ok {
		spec.Location = loc
	}
	return sched.Next(now), nil
}
