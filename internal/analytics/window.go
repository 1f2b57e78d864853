package analytics

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrValidation = errors.New("validation error")

type Period string

const (
	PeriodToday  Period = "today"
	PeriodWeek   Period = "week"
	PeriodMonth  Period = "month"
	PeriodYear   Period = "year"
	PeriodAll    Period = "all"
	PeriodCustom Period = "custom"
)

// Window is a half-open time range [Start, End). PeriodAll has zero bounds and also admits
// orders without a timestamp.
type Window struct {
	Period Period    `json:"period"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// NewWindow resolves a named period against now, in now's location. Week is the rolling
// seven days ending today; month and year are calendar periods.
func NewWindow(p Period, now time.Time) (Window, error) {
	today := midnight(now)
	switch p {
	case PeriodToday:
		return Window{Period: p, Start: today, End: today.AddDate(0, 0, 1)}, nil
	case PeriodWeek:
		return Window{Period: p, Start: today.AddDate(0, 0, -6), End: today.AddDate(0, 0, 1)}, nil
	case PeriodMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return Window{Period: p, Start: start, End: start.AddDate(0, 1, 0)}, nil
	case PeriodYear:
		start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
		return Window{Period: p, Start: start, End: start.AddDate(1, 0, 0)}, nil
	case PeriodAll:
		return Window{Period: p}, nil
	case PeriodCustom:
		return Window{}, fmt.Errorf("%w: custom window needs start and end dates", ErrValidation)
	}
	return Window{}, fmt.Errorf("%w: unknown window %q", ErrValidation, p)
}

func CustomWindow(start, end time.Time) (Window, error) {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return Window{}, fmt.Errorf("%w: custom window must end after it starts", ErrValidation)
	}
	return Window{Period: PeriodCustom, Start: start, End: end}, nil
}

// ParseWindow builds a window from request parameters. Custom dates are YYYY-MM-DD in now's
// location and both days are included.
func ParseWindow(period, start, end string, now time.Time) (Window, error) {
	p := Period(strings.ToLower(strings.TrimSpace(period)))
	if p == "" {
		p = PeriodMonth
	}
	if p != PeriodCustom {
		return NewWindow(p, now)
	}
	from, err := time.ParseInLocation(time.DateOnly, start, now.Location())
	if err != nil {
		return Window{}, fmt.Errorf("%w: start date: %s", ErrValidation, err.Error())
	}
	to, err := time.ParseInLocation(time.DateOnly, end, now.Location())
	if err != nil {
		return Window{}, fmt.Errorf("%w: end date: %s", ErrValidation, err.Error())
	}
	return CustomWindow(from, to.AddDate(0, 0, 1))
}

func (w Window) Bounded() bool {
	return w.Period != PeriodAll
}

// Contains reports whether t falls inside the window. A zero t is only inside PeriodAll.
func (w Window) Contains(t time.Time) bool {
	if !w.Bounded() {
		return true
	}
	if t.IsZero() {
		return false
	}
	return !t.Before(w.Start) && t.Before(w.End)
}
