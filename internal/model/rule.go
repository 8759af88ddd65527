package model

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type IntervalKind string

const (
	IntervalTimer IntervalKind = "Timer"
	IntervalDaily IntervalKind = "Daily"
)

type OwnerType string

const (
	OwnerUser       OwnerType = "User"
	OwnerTeam       OwnerType = "Team"
	OwnerDepartment OwnerType = "Department"
)

// NotificationRule is a time-driven query whose matches are turned into delivery items.
type NotificationRule struct {
	ID               uuid.UUID    `db:"id" json:"id"`
	Name             string       `db:"name" json:"name"`
	Query            string       `db:"query" json:"query" validate:"required"`
	EntityName       string       `db:"entity_name" json:"entity_name" validate:"required"`
	Digest           bool         `db:"digest" json:"digest"`
	DynamicTargeting bool         `db:"dynamic_targeting" json:"dynamic_targeting"`
	DynamicField     string       `db:"dynamic_field" json:"dynamic_field,omitempty" validate:"required_if=DynamicTargeting true"`
	IntervalKind     IntervalKind `db:"interval_kind" json:"interval_kind" validate:"oneof=Timer Daily"`
	IntervalMinutes  int          `db:"interval_minutes" json:"interval_minutes" validate:"gte=0"`
	TimeOfDay        TimeOfDay    `db:"time_of_day" json:"time_of_day" validate:"gte=0,lt=1440"`
	DaysOfWeek       DaySet       `db:"days_of_week" json:"days_of_week" validate:"gt=0"`
	SubjectTemplate  string       `db:"subject_template" json:"subject_template"`
	BodyTemplate     string       `db:"body_template" json:"body_template"`
	DeliverySystemID uuid.UUID    `db:"delivery_system_id" json:"delivery_system_id" validate:"required"`
	Enabled          bool         `db:"enabled" json:"enabled"`
	LastChecked      *time.Time   `db:"last_checked" json:"last_checked,omitempty"`
	NextCheck        time.Time    `db:"next_check" json:"next_check"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updated_at"`

	Targets []NotificationTarget `db:"-" json:"targets,omitempty"`
}

// IsDue reports whether the rule should be picked up by an evaluation at now.
func (r *NotificationRule) IsDue(now time.Time) bool {
	return r.Enabled && !r.NextCheck.After(now)
}

// NotificationTarget is a static recipient attached to a rule.
type NotificationTarget struct {
	ID        uuid.UUID `db:"id" json:"id"`
	RuleID    uuid.UUID `db:"rule_id" json:"rule_id"`
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	OwnerType OwnerType `db:"owner_type" json:"owner_type"`
}

// DaySet is the set of weekdays a rule may run on.
type DaySet uint8

// dayNames are the stored spellings, indexed by time.Weekday.
var dayNames = [7]string{"Sun", "Mon", "Tues", "Wed", "Thurs", "Fri", "Sat"}

func NewDaySet(days ...time.Weekday) DaySet {
	var s DaySet
	for _, d := range days {
		s |= 1 << uint(d)
	}
	return s
}

// EveryDay allows all seven weekdays.
const EveryDay DaySet = 0x7f

func (s DaySet) Has(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

func (s DaySet) Empty() bool {
	return s&EveryDay == 0
}

func (s DaySet) String() string {
	var parts []string
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			parts = append(parts, dayNames[d])
		}
	}
	return strings.Join(parts, ",")
}

// ParseDaySet accepts the stored names as well as three-letter abbreviations,
// separated by commas or spaces.
func ParseDaySet(raw string) (DaySet, error) {
	var s DaySet
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' || r == ';' })
	for _, f := range fields {
		d, ok := parseDay(f)
		if !ok {
			return 0, fmt.Errorf("unknown weekday %q", f)
		}
		s |= 1 << uint(d)
	}
	return s, nil
}

func parseDay(name string) (time.Weekday, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if len(n) < 2 {
		return 0, false
	}
	for d, full := range []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"} {
		if strings.HasPrefix(full, n) {
			return time.Weekday(d), true
		}
	}
	return 0, false
}

func (s *DaySet) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = 0
		return nil
	case string:
		parsed, err := ParseDaySet(v)
		*s = parsed
		return err
	case []byte:
		parsed, err := ParseDaySet(string(v))
		*s = parsed
		return err
	default:
		return fmt.Errorf("cannot scan %T into DaySet", src)
	}
}

func (s DaySet) Value() (driver.Value, error) {
	return s.String(), nil
}

// TimeOfDay is minutes after midnight.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q", raw)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return NewTimeOfDay(h, m), nil
}

func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*t = 0
		return nil
	case time.Time:
		*t = NewTimeOfDay(v.Hour(), v.Minute())
		return nil
	case string:
		parsed, err := ParseTimeOfDay(v)
		*t = parsed
		return err
	case []byte:
		parsed, err := ParseTimeOfDay(string(v))
		*t = parsed
		return err
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
}

func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String() + ":00", nil
}
