// Package recurrence derives task instances from recurring templates.
package recurrence

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	deskerrors "github.com/randalmurphal/hrdesk/internal/errors"
	"github.com/randalmurphal/hrdesk/internal/task"
)

// Next returns the due time one interval after from.
//
// Calendar rules follow time.AddDate, so Jan 31 plus one month lands on
// Mar 3 (or Mar 2 in a leap year). Custom rules fire at the first cron
// time strictly after from.
func Next(from time.Time, typ task.RecurringType, interval int, cronExpr string) (time.Time, error) {
	if typ != task.RecurCustom && interval < 1 {
		return time.Time{}, deskerrors.ErrRecurrenceInvalid("interval must be a positive integer")
	}

	switch typ {
	case task.RecurDaily:
		return from.AddDate(0, 0, interval), nil
	case task.RecurWeekly:
		return from.AddDate(0, 0, 7*interval), nil
	case task.RecurMonthly:
		return from.AddDate(0, interval, 0), nil
	case task.RecurQuarterly:
		return from.AddDate(0, 3*interval, 0), nil
	case task.RecurYearly:
		return from.AddDate(interval, 0, 0), nil
	case task.RecurCustom:
		sched, err := ParseCron(cronExpr)
		if err != nil {
			return time.Time{}, err
		}
		next := sched.Next(from)
		if next.IsZero() {
			return time.Time{}, deskerrors.ErrRecurrenceInvalid("cron expression " + cronExpr + " never fires")
		}
		return next, nil
	default:
		return time.Time{}, deskerrors.ErrRecurrenceInvalid("unknown recurrence type " + string(typ))
	}
}

// ParseCron parses a standard five-field cron expression. Descriptors such
// as @weekly are accepted.
func ParseCron(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, deskerrors.ErrRecurrenceInvalid("custom recurrence requires a cron expression")
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, deskerrors.ErrRecurrenceInvalid("invalid cron expression " + expr).WithCause(err)
	}
	return sched, nil
}
