package services

import (
	"fmt"
	"strings"
	"time"
)

type Window string

const (
	WindowLifetime Window = "lifetime"
	WindowDay      Window = "day"
	WindowWeek     Window = "week"
	WindowMonth    Window = "month"
)

var windowAliases = map[string]Window{
	"lifetime": WindowLifetime,
	"all":      WindowLifetime,
	"alltime":  WindowLifetime,
	"all_time": WindowLifetime,
	"day":      WindowDay,
	"daily":    WindowDay,
	"today":    WindowDay,
	"week":     WindowWeek,
	"weekly":   WindowWeek,
	"month":    WindowMonth,
	"monthly":  WindowMonth,
}

// ParseWindow normalizes colloquial names. Empty means lifetime.
func ParseWindow(raw string) (Window, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return WindowLifetime, nil
	}
	if w, ok := windowAliases[raw]; ok {
		return w, nil
	}
	return "", fmt.Errorf("%w: unknown window %q", ErrValidation, raw)
}

// Since returns the inclusive lower bound of w at now, in UTC. Bounds are
// calendar truncations in loc, not rolling durations. Lifetime returns the
// zero time.
func (w Window) Since(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	switch w {
	case WindowDay:
		return dayStart(local).UTC()
	case WindowWeek:
		return weekStart(local).UTC()
	case WindowMonth:
		return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc).UTC()
	default:
		return time.Time{}
	}
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// weekStart is Monday 00:00 of t's week.
func weekStart(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	d := dayStart(t)
	return d.AddDate(0, 0, -(weekday - 1))
}

// DayKey is the cap bucket for now in loc.
func DayKey(now time.Time, loc *time.Location) string {
	return now.In(loc).Format("2006-01-02")
}
