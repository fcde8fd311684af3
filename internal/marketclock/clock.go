// Package marketclock implements the pure date-time helpers the replay
// engine and strategies use to detect session boundaries: market hours,
// extended hours, and the next open/close, skipping weekends.
package marketclock

import (
	"fmt"
	"time"
)

// Hours configures a trading session in a single timezone.
type Hours struct {
	PreMarketStart time.Duration // offset from local midnight
	MarketOpen     time.Duration
	MarketClose    time.Duration
	AfterHoursEnd  time.Duration
	Location       *time.Location
}

// DefaultHours returns the standard US equities session: 04:00 pre-market,
// 09:30 open, 16:00 close, 20:00 after-hours end, America/New_York.
func DefaultHours() (Hours, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return Hours{}, fmt.Errorf("load default market timezone: %w", err)
	}
	return Hours{
		PreMarketStart: 4 * time.Hour,
		MarketOpen:     9*time.Hour + 30*time.Minute,
		MarketClose:    16 * time.Hour,
		AfterHoursEnd:  20 * time.Hour,
		Location:       loc,
	}, nil
}

func (h Hours) midnight(ts time.Time) time.Time {
	local := ts.In(h.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, h.Location)
}

func (h Hours) offsetOfDay(ts time.Time) time.Duration {
	local := ts.In(h.Location)
	return local.Sub(h.midnight(ts))
}

func isWeekend(ts time.Time, loc *time.Location) bool {
	wd := ts.In(loc).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsMarketHours reports whether ts falls within the primary session on a
// trading day (not Saturday/Sunday).
func (h Hours) IsMarketHours(ts time.Time) bool {
	if isWeekend(ts, h.Location) {
		return false
	}
	off := h.offsetOfDay(ts)
	return off >= h.MarketOpen && off < h.MarketClose
}

// IsExtendedHours reports whether ts falls in the pre-market or after-hours
// window, excluding the primary session, on a trading day.
func (h Hours) IsExtendedHours(ts time.Time) bool {
	if isWeekend(ts, h.Location) {
		return false
	}
	off := h.offsetOfDay(ts)
	preMarket := off >= h.PreMarketStart && off < h.MarketOpen
	afterHours := off >= h.MarketClose && off < h.AfterHoursEnd
	return preMarket || afterHours
}

// NextMarketOpen returns the next market-open instant strictly after ts,
// skipping weekends.
func (h Hours) NextMarketOpen(ts time.Time) time.Time {
	day := h.midnight(ts)
	candidate := day.Add(h.MarketOpen)
	if !candidate.After(ts) || isWeekend(day, h.Location) {
		day = day.AddDate(0, 0, 1)
		for isWeekend(day, h.Location) {
			day = day.AddDate(0, 0, 1)
		}
		return day.Add(h.MarketOpen)
	}
	return candidate
}

// NextMarketClose returns the next market-close instant strictly after ts,
// skipping weekends (if ts itself is past today's close, advances to the
// next trading day's close).
func (h Hours) NextMarketClose(ts time.Time) time.Time {
	day := h.midnight(ts)
	if isWeekend(day, h.Location) {
		for isWeekend(day, h.Location) {
			day = day.AddDate(0, 0, 1)
		}
		return day.Add(h.MarketClose)
	}
	candidate := day.Add(h.MarketClose)
	if candidate.After(ts) {
		return candidate
	}
	day = day.AddDate(0, 0, 1)
	for isWeekend(day, h.Location) {
		day = day.AddDate(0, 0, 1)
	}
	return day.Add(h.MarketClose)
}

// MinutesToClose returns the minutes remaining until the session containing
// ts closes, for use in exit-before-close policies.
func (h Hours) MinutesToClose(ts time.Time) float64 {
	return h.NextMarketClose(ts).Sub(ts).Minutes()
}

// SessionDate returns the calendar date (in the session's timezone) that ts
// belongs to, used by the engine to detect session boundaries between bars.
func (h Hours) SessionDate(ts time.Time) time.Time {
	return h.midnight(ts)
}
