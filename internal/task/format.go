package task

import (
	"math"
	"strconv"
	"strings"
	"time"
)

var durationUnits = []struct {
	suffix string
	size   time.Duration
}{
	{"d", 24 * time.Hour},
	{"h", time.Hour},
	{"m", time.Minute},
}

// FormatDuration renders d as "1d 3h", "2h 30m" or "45m". Minutes are
// dropped once the span reaches a day, and anything under a minute is "0m".
func FormatDuration(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign, d = "-", -d
	}
	var parts []string
	days := d >= 24*time.Hour
	for _, u := range durationUnits {
		n := d / u.size
		d -= n * u.size
		if n == 0 || (u.suffix == "m" && days) {
			continue
		}
		parts = append(parts, strconv.FormatInt(int64(n), 10)+u.suffix)
	}
	if len(parts) == 0 {
		return "0m"
	}
	return sign + strings.Join(parts, " ")
}

// FormatDue describes a due date relative to now, like "in 2d 4h" or
// "3h overdue". A missing date is "-".
func FormatDue(due *time.Time, now time.Time) string {
	switch {
	case due == nil:
		return "-"
	case due.Before(now):
		return FormatDuration(now.Sub(*due)) + " overdue"
	}
	return "in " + FormatDuration(due.Sub(now))
}

// FormatHours renders an hour count with at most one decimal: "4h", "2.5h".
func FormatHours(h float64) string {
	return strconv.FormatFloat(math.Round(h*10)/10, 'f', -1, 64) + "h"
}
