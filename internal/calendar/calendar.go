package calendar

import (
	"time"
)

// 거래일 = 월~금. 거래소 휴장일은 모델링하지 않음
const (
	DefaultCloseHour   = 15
	DefaultCloseMinute = 30
	LabelLayout        = "Jan 02"
)

// Calendar 거래일 계산기
// ⭐ SSOT: 거래일/장마감 경계 계산은 이 구조체에서만
type Calendar struct {
	loc         *time.Location
	closeHour   int
	closeMinute int
	now         func() time.Time
}

// Option configures a Calendar
type Option func(*Calendar)

// WithClock overrides the wall clock (simulated elapsed time in tests)
func WithClock(now func() time.Time) Option {
	return func(c *Calendar) {
		c.now = now
	}
}

// WithMarketClose overrides the 15:30 session close
func WithMarketClose(hour, minute int) Option {
	return func(c *Calendar) {
		c.closeHour = hour
		c.closeMinute = minute
	}
}

// New creates a calendar for the market timezone
func New(loc *time.Location, opts ...Option) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	c := &Calendar{
		loc:         loc,
		closeHour:   DefaultCloseHour,
		closeMinute: DefaultCloseMinute,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Location returns the market timezone
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Now returns the current time in the market timezone
func (c *Calendar) Now() time.Time {
	return c.now().In(c.loc)
}

// Today returns today's civil date in the market timezone
func (c *Calendar) Today() time.Time {
	return DateOf(c.Now())
}

// DateOf truncates t to its civil date, expressed as UTC midnight
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsTradingDay reports whether the civil date falls on Monday..Friday
func IsTradingDay(d time.Time) bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// TradingDays counts weekdays from start (inclusive) up to end (exclusive),
// comparing civil dates only. Identical or inverted ranges yield 0.
func TradingDays(start, end time.Time) int {
	from := DateOf(start)
	to := DateOf(end)

	count := 0
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		if IsTradingDay(d) {
			count++
		}
	}
	return count
}

// TradingDates returns n consecutive trading dates starting at anchor
// (anchor itself included when it is a weekday)
func TradingDates(anchor time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	dates := make([]time.Time, 0, n)
	for d := DateOf(anchor); len(dates) < n; d = d.AddDate(0, 0, 1) {
		if IsTradingDay(d) {
			dates = append(dates, d)
		}
	}
	return dates
}

// Labels formats n trading dates from anchor as "Jan 02"
func Labels(anchor time.Time, n int) []string {
	dates := TradingDates(anchor, n)
	labels := make([]string, len(dates))
	for i, d := range dates {
		labels[i] = d.Format(LabelLayout)
	}
	return labels
}

// TradingDaysSince counts elapsed trading days from anchor to now
func (c *Calendar) TradingDaysSince(anchor time.Time) int {
	return TradingDays(anchor, c.Today())
}

// IsMarketOpenToday reports whether today is a weekday
func (c *Calendar) IsMarketOpenToday() bool {
	return IsTradingDay(c.Today())
}

// closeOn returns the session close instant on the civil date of t
func (c *Calendar) closeOn(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, c.closeHour, c.closeMinute, 0, 0, c.loc)
}

// MarketClosed reports whether the current session is over:
// local time at or after the close, or a weekend
func (c *Calendar) MarketClosed() bool {
	now := c.Now()
	if !IsTradingDay(DateOf(now)) {
		return true
	}
	return !now.Before(c.closeOn(now))
}

// NextMarketClose returns today's close if still ahead on a trading day,
// otherwise the next weekday's close
func (c *Calendar) NextMarketClose() time.Time {
	now := c.Now()
	if IsTradingDay(DateOf(now)) {
		if closeAt := c.closeOn(now); now.Before(closeAt) {
			return closeAt
		}
	}

	next := now.AddDate(0, 0, 1)
	for !IsTradingDay(DateOf(next)) {
		next = next.AddDate(0, 0, 1)
	}
	return c.closeOn(next)
}

// LastSessionDate returns the civil date of the most recent completed session
func (c *Calendar) LastSessionDate() time.Time {
	now := c.Now()
	d := DateOf(now)
	if IsTradingDay(d) && !now.Before(c.closeOn(now)) {
		return d
	}
	d = d.AddDate(0, 0, -1)
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
