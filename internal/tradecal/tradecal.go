package tradecal

import "time"

// Calendar answers trading-day questions for daily bars. Weekends are
// always closed; exchange holidays come from configuration since the
// list changes every year.
type Calendar struct {
	holidays map[string]bool
}

const dayKey = "2006-01-02"

// New builds a calendar from a holiday date list ("2006-01-02" format).
// Unparseable entries are ignored.
func New(holidays []string) *Calendar {
	set := make(map[string]bool, len(holidays))
	for _, h := range holidays {
		if d, err := time.Parse(dayKey, h); err == nil {
			set[d.Format(dayKey)] = true
		}
	}
	return &Calendar{holidays: set}
}

// IsWeekday reports whether t falls Mon-Fri.
func (c *Calendar) IsWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsHoliday reports whether t's date is a configured holiday.
func (c *Calendar) IsHoliday(t time.Time) bool {
	return c.holidays[t.Format(dayKey)]
}

// IsTradingDay reports whether t is a weekday and not a holiday.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	return c.IsWeekday(t) && !c.IsHoliday(t)
}

// TradingDays lists the trading days from start through end inclusive.
func (c *Calendar) TradingDays(start, end time.Time) []time.Time {
	var days []time.Time
	for d := dayOf(start); !d.After(dayOf(end)); d = d.AddDate(0, 0, 1) {
		if c.IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}

// CountTradingDays counts trading days from start through end inclusive.
func (c *Calendar) CountTradingDays(start, end time.Time) int {
	n := 0
	for d := dayOf(start); !d.After(dayOf(end)); d = d.AddDate(0, 0, 1) {
		if c.IsTradingDay(d) {
			n++
		}
	}
	return n
}

// NextTradingDay returns the first trading day strictly after t.
func (c *Calendar) NextTradingDay(t time.Time) time.Time {
	d := dayOf(t).AddDate(0, 0, 1)
	for !c.IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
