package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// specParser accepts standard five-field expressions plus descriptors like
// @daily, matching what the cron trigger itself accepts.
var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSpec validates expr and returns its schedule.
func ParseSpec(expr string) (cron.Schedule, error) {
	sched, err := specParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return sched, nil
}

// NextFireTime returns the first firing time of expr strictly after now.
func NextFireTime(expr string, now time.Time) (time.Time, error) {
	sched, err := ParseSpec(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(now), nil
}

// lookback windows tried in order when searching for the previous firing
// time. The widest covers yearly schedules.
var lookbackWindows = []time.Duration{
	time.Hour,
	24 * time.Hour,
	7 * 24 * time.Hour,
	31 * 24 * time.Hour,
	366 * 24 * time.Hour,
}

// PrevFireTime returns the most recent firing time of expr strictly before
// now. The cron library only computes forward, so this walks Next from
// progressively wider lookback windows and keeps the last tick before now.
// Pure function of (expr, now).
func PrevFireTime(expr string, now time.Time) (time.Time, error) {
	sched, err := ParseSpec(expr)
	if err != nil {
		return time.Time{}, err
	}

	for _, window := range lookbackWindows {
		t := now.Add(-window)
		var prev time.Time
		found := false
		for {
			next := sched.Next(t)
			if next.IsZero() || !next.Before(now) {
				break
			}
			prev = next
			found = true
			t = next
		}
		if found {
			return prev, nil
		}
	}
	return time.Time{}, fmt.Errorf("no firing time of %q within the last year", expr)
}
