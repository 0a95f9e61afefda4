package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/djlord-it/jobadmin/internal/domain"
)

var (
	ErrInvalidSchedule     = errors.New("invalid schedule expression")
	ErrUnsupportedSchedule = errors.New("unsupported schedule type")
)

// Calculator computes next fire times. It is pure and deterministic: the
// reference time is always supplied by the caller.
type Calculator struct {
	parser cron.Parser
}

// NewCalculator returns a Calculator accepting five-field cron expressions
// with an optional leading seconds field (so both "0/5 * * * *" and
// "0 0/5 * * * ?" parse).
func NewCalculator() *Calculator {
	return &Calculator{
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// Next returns the first fire time strictly after the given reference time.
// The second return is false when the schedule never fires again (NONE, or a
// cron expression with no future occurrence).
func (c *Calculator) Next(scheduleType domain.ScheduleType, expr string, after time.Time) (time.Time, bool, error) {
	switch scheduleType {
	case domain.ScheduleTypeNone:
		return time.Time{}, false, nil

	case domain.ScheduleTypeCron:
		sched, err := c.parser.Parse(strings.TrimSpace(expr))
		if err != nil {
			return time.Time{}, false, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}
		next := sched.Next(after)
		if next.IsZero() {
			return time.Time{}, false, nil
		}
		return next, true, nil

	case domain.ScheduleTypeFixedRate, domain.ScheduleTypeFixedDelay:
		// Both types advance from the reference time the caller chooses;
		// the calculator never sees completion times.
		seconds, err := strconv.ParseUint(strings.TrimSpace(expr), 10, 32)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("%w: interval must be a non-negative integer, got %q", ErrInvalidSchedule, expr)
		}
		return after.Add(time.Duration(seconds) * time.Second), true, nil

	default:
		return time.Time{}, false, fmt.Errorf("%w: %q", ErrUnsupportedSchedule, scheduleType)
	}
}

// Preview returns up to n upcoming fire times starting from `from`, feeding
// each result back in as the next reference time.
func (c *Calculator) Preview(scheduleType domain.ScheduleType, expr string, from time.Time, n int) ([]time.Time, error) {
	var result []time.Time
	last := from
	for i := 0; i < n; i++ {
		next, ok, err := c.Next(scheduleType, expr, last)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		result = append(result, next)
		last = next
	}
	return result, nil
}

// Validate reports whether the expression is acceptable for the schedule type
// without computing anything.
func (c *Calculator) Validate(scheduleType domain.ScheduleType, expr string) error {
	_, _, err := c.Next(scheduleType, expr, time.Now())
	return err
}
