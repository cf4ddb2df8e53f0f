package calendar

import (
	"time"

	"cloud.google.com/go/civil"
)

// Calendar is an immutable business-day calendar. It is safe for concurrent use.
type Calendar struct {
	name     string
	holidays map[civil.Date]string
}

// New builds a calendar from a literal holiday set. The map is copied.
func New(name string, holidays map[civil.Date]string) *Calendar {
	h := make(map[civil.Date]string, len(holidays))
	for d, n := range holidays {
		h[d] = n
	}
	return &Calendar{name: name, holidays: h}
}

// WeekendsOnly treats every weekday as a business day.
func WeekendsOnly() *Calendar {
	return New("weekends", nil)
}

func (c *Calendar) Name() string {
	return c.name
}

func (c *Calendar) HasHolidays() bool {
	return len(c.holidays) > 0
}

// Holiday returns the holiday name for d, if d is a listed holiday.
func (c *Calendar) Holiday(d civil.Date) (string, bool) {
	n, ok := c.holidays[d]
	return n, ok
}

// IsBusinessDay checks weekends and the holiday set.
func (c *Calendar) IsBusinessDay(d civil.Date) bool {
	switch weekday(d) {
	case time.Saturday, time.Sunday:
		return false
	}
	_, ok := c.holidays[d]
	return !ok
}

// AddBusinessDays steps one calendar day at a time, counting only steps that
// land on a business day, until |n| have been counted. n can be negative; n=0
// returns d unchanged even when d is not a business day.
func (c *Calendar) AddBusinessDays(d civil.Date, n int) civil.Date {
	step := 1
	if n < 0 {
		step = -1
	}
	for n != 0 {
		d = d.AddDays(step)
		if c.IsBusinessDay(d) {
			n -= step
		}
	}
	return d
}

func weekday(d civil.Date) time.Weekday {
	return d.In(time.UTC).Weekday()
}
