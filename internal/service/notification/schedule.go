package notification

import (
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/notifier/internal/model"
	apperrors "github.com/jwalitptl/notifier/pkg/errors"
)

var (
	ErrNoAllowedDays   = errors.New("rule allows no days of the week")
	ErrInvalidInterval = errors.New("rule has an invalid check interval")
)

// NextRun computes when a rule is due again after from.
//
// Timer rules add the interval; Daily rules take the configured time of day on
// from's date, even when that moment is already past. Either way the result is
// then moved forward a day at a time until it lands on an allowed weekday. The
// result keeps from's location.
func NextRun(rule *model.NotificationRule, from time.Time) (time.Time, error) {
	if rule.DaysOfWeek.Empty() {
		return time.Time{}, apperrors.Configuration(fmt.Sprintf("cannot schedule rule %s", rule.ID), ErrNoAllowedDays)
	}

	var next time.Time
	switch rule.IntervalKind {
	case model.IntervalTimer:
		if rule.IntervalMinutes <= 0 {
			return time.Time{}, apperrors.Configuration(fmt.Sprintf("cannot schedule rule %s", rule.ID), ErrInvalidInterval)
		}
		next = from.Add(time.Duration(rule.IntervalMinutes) * time.Minute)
	case model.IntervalDaily:
		tod := rule.TimeOfDay
		if tod < 0 || tod >= 24*60 {
			return time.Time{}, apperrors.Configuration(fmt.Sprintf("cannot schedule rule %s", rule.ID), ErrInvalidInterval)
		}
		next = time.Date(from.Year(), from.Month(), from.Day(), tod.Hour(), tod.Minute(), 0, 0, from.Location())
	default:
		return time.Time{}, apperrors.Configuration(fmt.Sprintf("rule %s has unknown interval kind %q", rule.ID, rule.IntervalKind), ErrInvalidInterval)
	}

	// A non-empty set guarantees a match within a week.
	for i := 0; i < 7 && !rule.DaysOfWeek.Has(next.Weekday()); i++ {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}
