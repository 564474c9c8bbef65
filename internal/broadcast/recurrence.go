// ABOUTME: Recurrence rules for scheduled broadcasts evaluated in the tenant's timezone
// ABOUTME: Daily and weekly keep the time of day; custom picks the next configured weekday

package broadcast

import (
	"time"

	"github.com/2389/storefront-gateway/internal/store"
)

// NextRun returns when b should fire again after firing at firedAt, or nil
// when it should be deactivated. Times are computed as wall-clock times in
// loc so a 09:00 job stays at 09:00 across DST changes. The result is always
// after firedAt, so a late run never leaves the job due again immediately.
func NextRun(b *store.ScheduledBroadcast, firedAt time.Time, loc *time.Location) *time.Time {
	if loc == nil {
		loc = time.UTC
	}
	scheduled := b.ScheduledAt.In(loc)

	var next time.Time
	switch b.Recurrence {
	case store.RecurrenceDaily:
		next = stepUntilAfter(scheduled, firedAt, 1)
	case store.RecurrenceWeekly:
		next = stepUntilAfter(scheduled, firedAt, 7)
	case store.RecurrenceCustom:
		var ok bool
		next, ok = nextWeekday(scheduled, firedAt.In(loc), b.Weekdays)
		if !ok {
			return nil
		}
	default:
		return nil
	}
	return &next
}

// stepUntilAfter adds days to from, keeping its wall-clock time, until the
// result is after limit.
func stepUntilAfter(from, limit time.Time, days int) time.Time {
	next := from.AddDate(0, 0, days)
	for !next.After(limit) {
		next = next.AddDate(0, 0, days)
	}
	return next
}

// nextWeekday finds the first day strictly after today whose weekday is in
// days, at the time of day of scheduled. Seven days ahead is today's weekday
// next week, so any non-empty set resolves.
func nextWeekday(scheduled, today time.Time, days []time.Weekday) (time.Time, bool) {
	if len(days) == 0 {
		return time.Time{}, false
	}
	allowed := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		allowed[d] = true
	}

	loc := today.Location()
	for offset := 1; offset <= 7; offset++ {
		day := today.AddDate(0, 0, offset)
		if !allowed[day.Weekday()] {
			continue
		}
		return time.Date(day.Year(), day.Month(), day.Day(),
			scheduled.Hour(), scheduled.Minute(), scheduled.Second(), 0, loc), true
	}
	return time.Time{}, false
}
