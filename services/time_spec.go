package services

import (
	"fmt"
	"time"
)

// TimeSpec is either a date plus time of day in the restaurant's time zone,
// or an RFC3339 start with an optional end.
type TimeSpec struct {
	Date  string `json:"date" form:"date"`
	Time  string `json:"time" form:"time"`
	Start string `json:"start" form:"start"`
	End   string `json:"end" form:"end"`
}

func (s TimeSpec) IsZero() bool {
	return s.Date == "" && s.Time == "" && s.Start == "" && s.End == ""
}

// Interval is a half-open [Start, End) span in UTC, truncated to the minute.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Resolve turns the spec into an interval. Requests for the past are
// rejected when allowPast is false.
func (p Policy) Resolve(spec TimeSpec, now time.Time, allowPast bool) (Interval, error) {
	var start, end time.Time

	switch {
	case spec.Start != "":
		if spec.Date != "" || spec.Time != "" {
			return Interval{}, fmt.Errorf("%w: give either date and time or start and end", ErrValidation)
		}
		var err error
		if start, err = time.Parse(time.RFC3339, spec.Start); err != nil {
			return Interval{}, fmt.Errorf("%w: start must be RFC3339", ErrValidation)
		}
		if spec.End != "" {
			if end, err = time.Parse(time.RFC3339, spec.End); err != nil {
				return Interval{}, fmt.Errorf("%w: end must be RFC3339", ErrValidation)
			}
		}
	case spec.Date != "" && spec.Time != "":
		if spec.End != "" {
			return Interval{}, fmt.Errorf("%w: end requires start", ErrValidation)
		}
		var err error
		start, err = time.ParseInLocation("2006-01-02 15:04", spec.Date+" "+spec.Time, p.location())
		if err != nil {
			return Interval{}, fmt.Errorf("%w: date must be YYYY-MM-DD and time HH:MM", ErrValidation)
		}
	default:
		return Interval{}, fmt.Errorf("%w: date and time are required", ErrValidation)
	}

	if end.IsZero() {
		end = start.Add(p.DefaultDuration)
	}

	iv := Interval{
		Start: start.UTC().Truncate(time.Minute),
		End:   end.UTC().Truncate(time.Minute),
	}
	if !iv.End.After(iv.Start) {
		return Interval{}, fmt.Errorf("%w: end must be after start", ErrValidation)
	}
	if p.MaxDuration > 0 && iv.Duration() > p.MaxDuration {
		return Interval{}, fmt.Errorf("%w: reservation may not exceed %s", ErrValidation, p.MaxDuration)
	}
	if !allowPast && iv.Start.Before(now.UTC().Truncate(time.Minute)) {
		return Interval{}, fmt.Errorf("%w: start time is in the past", ErrValidation)
	}
	return iv, nil
}

// DayBounds returns the UTC interval of the restaurant-local day named by date.
func (p Policy) DayBounds(date string) (Interval, error) {
	day, err := time.ParseInLocation("2006-01-02", date, p.location())
	if err != nil {
		return Interval{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	}
	return Interval{Start: day.UTC(), End: day.AddDate(0, 0, 1).UTC()}, nil
}
