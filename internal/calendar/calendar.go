// Package calendar maps UTC instants onto a client's local calendar days.
//
// An Offset follows the browser Date.getTimezoneOffset convention: the number
// of minutes to add to local wall-clock time to obtain UTC. A client at UTC-5
// sends 300; a client at UTC+2 sends -120. Every stored timestamp is UTC and
// this package is the only place an offset is applied.
package calendar

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	maxOffsetMinutes = math.MaxInt64 / int64(time.Minute)
	dateLayout       = "2006-01-02"
)

var ErrInvalidOffset = errors.New("calendar: offset must be an integer number of minutes")

// Offset is a client's UTC offset in minutes, UTC minus local.
type Offset int

// ParseOffset parses the decimal form sent by clients.
func ParseOffset(raw string) (Offset, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, ErrInvalidOffset
	}
	return NewOffset(value)
}

// NewOffset accepts any offset whose duration fits in a time.Duration.
func NewOffset(minutes int) (Offset, error) {
	if int64(minutes) < -maxOffsetMinutes || int64(minutes) > maxOffsetMinutes {
		return 0, ErrInvalidOffset
	}
	return Offset(minutes), nil
}

// Duration returns the offset as a time.Duration.
func (o Offset) Duration() time.Duration {
	return time.Duration(o) * time.Minute
}

// Day is one local calendar day as a half-open UTC interval.
type Day struct {
	Start  time.Time
	End    time.Time
	offset Offset
}

// DayOf returns the local day containing instant.
func DayOf(instant time.Time, offset Offset) Day {
	local := instant.UTC().Add(-offset.Duration())
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	start := midnight.Add(offset.Duration())
	return Day{Start: start, End: start.Add(24 * time.Hour), offset: offset}
}

// Contains reports whether instant falls within [Start, End).
func (d Day) Contains(instant time.Time) bool {
	return !instant.Before(d.Start) && instant.Before(d.End)
}

// Date returns the day's local date in YYYY-MM-DD form.
func (d Day) Date() string {
	return LocalDate(d.Start, d.offset)
}

// Previous returns the local day before d.
func (d Day) Previous() Day {
	return Day{Start: d.Start.Add(-24 * time.Hour), End: d.Start, offset: d.offset}
}

// AddDays shifts d by n local days.
func (d Day) AddDays(n int) Day {
	shift := time.Duration(n) * 24 * time.Hour
	return Day{Start: d.Start.Add(shift), End: d.End.Add(shift), offset: d.offset}
}

// Weekday returns the local weekday of d.
func (d Day) Weekday() time.Weekday {
	return d.Start.Add(-d.offset.Duration()).Weekday()
}

// LocalDate returns the local date of instant in YYYY-MM-DD form.
func LocalDate(instant time.Time, offset Offset) string {
	return instant.UTC().Add(-offset.Duration()).Format(dateLayout)
}

// ParseDate parses a YYYY-MM-DD local date into its Day.
func ParseDate(value string, offset Offset) (Day, error) {
	midnight, err := time.Parse(dateLayout, value)
	if err != nil {
		return Day{}, err
	}
	start := midnight.Add(offset.Duration())
	return Day{Start: start, End: start.Add(24 * time.Hour), offset: offset}, nil
}
