package tradecal

import (
	"testing"
	"time"
)

func d(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestCalendar_WeekendsClosed(t *testing.T) {
	c := New(nil)
	if c.IsTradingDay(d("2024-01-06")) { // Saturday
		t.Error("Saturday should not be a trading day")
	}
	if c.IsTradingDay(d("2024-01-07")) { // Sunday
		t.Error("Sunday should not be a trading day")
	}
	if !c.IsTradingDay(d("2024-01-08")) { // Monday
		t.Error("Monday should be a trading day")
	}
}

func TestCalendar_Holidays(t *testing.T) {
	c := New([]string{"2024-01-01", "garbage", "2024-02-12"})
	if c.IsTradingDay(d("2024-01-01")) {
		t.Error("configured holiday should not be a trading day")
	}
	if !c.IsTradingDay(d("2024-01-02")) {
		t.Error("day after holiday should be a trading day")
	}
}

func TestCalendar_CountTradingDays(t *testing.T) {
	c := New([]string{"2024-01-01"})
	// 2024-01-01 Mon (holiday) .. 2024-01-14 Sun: weekdays are Jan 1-5
	// and Jan 8-12, minus the holiday = 9.
	if got := c.CountTradingDays(d("2024-01-01"), d("2024-01-14")); got != 9 {
		t.Errorf("CountTradingDays = %d, want 9", got)
	}
	if got := len(c.TradingDays(d("2024-01-01"), d("2024-01-14"))); got != 9 {
		t.Errorf("TradingDays len = %d, want 9", got)
	}
}

func TestCalendar_NextTradingDay(t *testing.T) {
	c := New([]string{"2024-01-08"})
	// Friday Jan 5 -> weekend -> Monday Jan 8 is a holiday -> Tuesday Jan 9.
	got := c.NextTradingDay(d("2024-01-05"))
	if !got.Equal(d("2024-01-09")) {
		t.Errorf("NextTradingDay = %v, want 2024-01-09", got)
	}
}
