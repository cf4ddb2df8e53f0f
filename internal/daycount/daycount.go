package daycount

import (
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
)

type Convention string

const (
	Thirty360E Convention = "30E/360"
	Act360     Convention = "ACT/360"
	Act365F    Convention = "ACT/365F"
)

var ErrUnsupportedConvention = fmt.Errorf("unsupported day count convention")

func ParseConvention(s string) (Convention, error) {
	switch c := Convention(strings.ToUpper(strings.TrimSpace(s))); c {
	case Thirty360E, Act360, Act365F:
		return c, nil
	case "30/360":
		return Thirty360E, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedConvention, s)
}

// Days counts the days between start and end under the convention. The result
// is negative when end is before start.
func Days(start, end civil.Date, convention Convention) int {
	switch convention {
	case Thirty360E:
		// Eurobond basis: D1 and D2 capped at 30
		d1 := min(start.Day, 30)
		d2 := min(end.Day, 30)
		return 360*(end.Year-start.Year) + 30*(int(end.Month)-int(start.Month)) + (d2 - d1)
	default:
		return end.DaysSince(start)
	}
}

// YearFraction computes the year fraction between two dates.
//
// Parameters:
//
//	start:      accrual start date.
//	end:        accrual end date.
//	convention: one of 30E/360, ACT/360, ACT/365F. Anything else is ACT/365F.
//
// Returns:
//
//	The fraction of a year, negative when end is before start.
func YearFraction(start, end civil.Date, convention Convention) float64 {
	days := float64(Days(start, end, convention))
	switch convention {
	case Thirty360E, Act360:
		return days / 360.0
	default:
		return days / 365.0
	}
}
