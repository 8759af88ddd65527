package notification

import (
	"strings"
	"time"
)

// Literals a rule query may embed. Each is replaced by a quoted timestamp.
const (
	LiteralLastChecked = ":LastChecked"
	LiteralToday       = ":Today"
	LiteralYesterday   = ":Yesterday"
	LiteralTomorrow    = ":Tomorrow"
)

const queryTimeLayout = "2006-01-02 15:04:05"

// Parameterize substitutes the query literals. Dates are taken from the UTC
// calendar day of ref; a rule that was never checked uses the Unix epoch.
// The result is not checked for syntax.
func Parameterize(query string, lastChecked *time.Time, ref time.Time) string {
	if query == "" {
		return query
	}

	last := time.Unix(0, 0).UTC()
	if lastChecked != nil {
		last = lastChecked.UTC()
	}

	u := ref.UTC()
	today := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)

	return strings.NewReplacer(
		LiteralLastChecked, quote(last),
		LiteralToday, quote(today),
		LiteralTomorrow, quote(today.AddDate(0, 0, 1)),
		LiteralYesterday, quote(today.AddDate(0, 0, -1)),
	).Replace(query)
}

func quote(t time.Time) string {
	return "'" + t.Format(queryTimeLayout) + "'"
}
