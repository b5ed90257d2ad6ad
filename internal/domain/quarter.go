package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Quarter is a fiscal quarter code
type Quarter string

const (
	QuarterQ1 Quarter = "Q1"
	QuarterQ2 Quarter = "Q2"
	QuarterQ3 Quarter = "Q3"
	QuarterQ4 Quarter = "Q4"
)

// Quarters lists the valid quarter codes in calendar order
var Quarters = []Quarter{QuarterQ1, QuarterQ2, QuarterQ3, QuarterQ4}

// quarterSpan holds the fixed month/day boundaries of a quarter
type quarterSpan struct {
	startMonth time.Month
	startDay   int
	endMonth   time.Month
	endDay     int
}

var quarterSpans = map[Quarter]quarterSpan{
	QuarterQ1: {time.January, 1, time.March, 31},
	QuarterQ2: {time.April, 1, time.June, 30},
	QuarterQ3: {time.July, 1, time.September, 30},
	QuarterQ4: {time.October, 1, time.December, 31},
}

// IsValid reports whether q is one of Q1..Q4
func (q Quarter) IsValid() bool {
	_, ok := quarterSpans[q]
	return ok
}

// ParseQuarter accepts only the literal codes Q1, Q2, Q3 and Q4
func ParseQuarter(s string) (Quarter, error) {
	q := Quarter(s)
	if !q.IsValid() {
		return "", &InvalidQuarterError{Quarter: s}
	}
	return q, nil
}

// ParsePeriod parses a "Q1/2024" period as rendered by QuarterRange.String
func ParsePeriod(s string) (Quarter, int, error) {
	code, yearText, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return "", 0, fmt.Errorf("invalid period %q: expected QUARTER/YEAR, e.g. Q1/2024", s)
	}
	q, err := ParseQuarter(code)
	if err != nil {
		return "", 0, err
	}
	year, err := strconv.Atoi(yearText)
	if err != nil {
		return "", 0, fmt.Errorf("invalid year in period %q: %w", s, err)
	}
	return q, year, nil
}

// DateRange is an inclusive span of calendar days in UTC.
// Start is midnight of the first day, End is midnight of the last day.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Until returns the first instant after the range, so that every moment of
// the last day is covered by `ts < Until()`.
func (r DateRange) Until() time.Time {
	return r.End.AddDate(0, 0, 1)
}

// Contains reports whether t falls on any day of the range
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.Until())
}

func (r DateRange) String() string {
	return r.Start.Format(time.DateOnly) + ".." + r.End.Format(time.DateOnly)
}

// ResolveQuarter maps a quarter and year to its calendar span
func ResolveQuarter(q Quarter, year int) (DateRange, error) {
	span, ok := quarterSpans[q]
	if !ok {
		return DateRange{}, &InvalidQuarterError{Quarter: string(q)}
	}
	return DateRange{
		Start: time.Date(year, span.startMonth, span.startDay, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year, span.endMonth, span.endDay, 0, 0, 0, 0, time.UTC),
	}, nil
}

// QuarterRange is the natural key of a Report
type QuarterRange struct {
	QuarterFrom Quarter `json:"quarterFrom" validate:"required,oneof=Q1 Q2 Q3 Q4"`
	YearFrom    int     `json:"yearFrom" validate:"gte=1900,lte=9999"`
	QuarterTo   Quarter `json:"quarterTo" validate:"required,oneof=Q1 Q2 Q3 Q4"`
	YearTo      int     `json:"yearTo" validate:"gte=1900,lte=9999"`
}

// SingleQuarter returns the range covering exactly one quarter
func SingleQuarter(q Quarter, year int) QuarterRange {
	return QuarterRange{QuarterFrom: q, YearFrom: year, QuarterTo: q, YearTo: year}
}

// CurrentQuarter returns the quarter containing t
func CurrentQuarter(t time.Time) (Quarter, int) {
	t = t.UTC()
	return Quarters[(int(t.Month())-1)/3], t.Year()
}

func (k QuarterRange) String() string {
	return fmt.Sprintf("%s/%d - %s/%d", k.QuarterFrom, k.YearFrom, k.QuarterTo, k.YearTo)
}

// Key returns a compact identifier, e.g. for lock names
func (k QuarterRange) Key() string {
	return strings.ToLower(fmt.Sprintf("%s-%d_%s-%d", k.QuarterFrom, k.YearFrom, k.QuarterTo, k.YearTo))
}

// ResolveRange resolves both ends independently and spans the earliest start
// to the latest end. A "from" after "to" is normalized rather than rejected.
func ResolveRange(k QuarterRange) (DateRange, error) {
	from, err := ResolveQuarter(k.QuarterFrom, k.YearFrom)
	if err != nil {
		return DateRange{}, err
	}
	to, err := ResolveQuarter(k.QuarterTo, k.YearTo)
	if err != nil {
		return DateRange{}, err
	}

	r := DateRange{Start: from.Start, End: from.End}
	if to.Start.Before(r.Start) {
		r.Start = to.Start
	}
	if to.End.After(r.End) {
		r.End = to.End
	}
	return r, nil
}
