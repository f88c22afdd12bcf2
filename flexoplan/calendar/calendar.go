// Package calendar maps raw working durations onto configured shift
// schedules, skipping non-working periods.
package calendar

import (
	"time"
)

// Config defines the shift schedule of a plant. Weekdays are numbered
// 0=Monday .. 6=Sunday.
type Config struct {
	WeekdayShifts         int
	HoursPerWeekdayShift  int
	SaturdayShifts        int
	HoursPerSaturdayShift int
	WorkingDays           []int // nil means Monday through Saturday
	DayStartHour          int
}

// DefaultConfig is two 12-hour shifts Monday through Saturday starting
// at 07:00.
func DefaultConfig() Config {
	return Config{
		WeekdayShifts:         2,
		HoursPerWeekdayShift:  12,
		SaturdayShifts:        2,
		HoursPerSaturdayShift: 12,
		WorkingDays:           []int{0, 1, 2, 3, 4, 5},
		DayStartHour:          7,
	}
}

// Calendar resolves wall-clock timestamps for working durations. The
// working window of every working day begins at DayStartHour; capacity
// never carries over between days.
type Calendar struct {
	cfg        Config
	dayMinutes [7]float64 // working minutes per weekday, 0=Monday
}

// New precomputes the per-weekday working minutes for a config.
func New(cfg Config) *Calendar {
	if cfg.WorkingDays == nil {
		cfg.WorkingDays = []int{0, 1, 2, 3, 4, 5}
	}

	c := &Calendar{cfg: cfg}
	weekdayMinutes := float64(cfg.WeekdayShifts * cfg.HoursPerWeekdayShift * 60)
	saturdayMinutes := float64(cfg.SaturdayShifts * cfg.HoursPerSaturdayShift * 60)

	for _, day := range cfg.WorkingDays {
		if day < 0 || day > 6 {
			continue
		}
		if day == 5 {
			c.dayMinutes[day] = saturdayMinutes
		} else {
			c.dayMinutes[day] = weekdayMinutes
		}
	}
	return c
}

// DayMinutes returns the working minutes available on a weekday
// (0=Monday).
func (c *Calendar) DayMinutes(weekday int) float64 {
	if weekday < 0 || weekday > 6 {
		return 0
	}
	return c.dayMinutes[weekday]
}

// Advance returns the timestamp reached by consuming the given working
// minutes starting at start. Durations that are zero or negative leave
// the timestamp untouched.
func (c *Calendar) Advance(start time.Time, minutes float64) time.Time {
	if minutes <= 0 {
		return start
	}

	// 24/7 plants need no window walking.
	if c.roundTheClock() {
		return start.Add(minutesToDuration(minutes))
	}

	current := start
	remaining := minutes

	for remaining > 0 {
		day := weekdayIndex(current)
		available := c.dayMinutes[day]
		if available == 0 {
			current = c.nextDayStart(current)
			continue
		}

		dayStart := time.Date(current.Year(), current.Month(), current.Day(),
			c.cfg.DayStartHour, 0, 0, 0, current.Location())
		if current.Before(dayStart) {
			current = dayStart
		}

		dayEnd := dayStart.Add(minutesToDuration(available))
		window := dayEnd.Sub(current).Minutes()
		if window <= 0 {
			current = c.nextDayStart(current)
			continue
		}

		if remaining <= window {
			return current.Add(minutesToDuration(remaining))
		}
		remaining -= window
		current = c.nextDayStart(current)
	}
	return current
}

// nextDayStart returns DayStartHour of the next working day after t.
func (c *Calendar) nextDayStart(t time.Time) time.Time {
	next := time.Date(t.Year(), t.Month(), t.Day(),
		c.cfg.DayStartHour, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
	for c.dayMinutes[weekdayIndex(next)] == 0 {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (c *Calendar) roundTheClock() bool {
	for day := 0; day < 7; day++ {
		if c.dayMinutes[day] != 1440 {
			return false
		}
	}
	return true
}

// weekdayIndex converts Go's Sunday-based weekday to the Monday-based
// numbering used throughout the config.
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func minutesToDuration(minutes float64) time.Duration {
	return time.Duration(minutes * float64(time.Minute))
}
