package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDateAndTimeUsesDefaultDuration(t *testing.T) {
	p := DefaultPolicy()

	iv, err := p.Resolve(TimeSpec{Date: "2026-10-18", Time: "18:30"}, testNow, false)
	require.NoError(t, err)

	assert.Equal(t, at(18, 30), iv.Start)
	assert.Equal(t, at(20, 30), iv.End)
}

func TestResolveDateAndTimeInRestaurantZone(t *testing.T) {
	p := DefaultPolicy()
	p.Location = time.FixedZone("UTC+7", 7*3600)

	iv, err := p.Resolve(TimeSpec{Date: "2026-10-18", Time: "19:00"}, testNow, false)
	require.NoError(t, err)

	assert.Equal(t, at(12, 0), iv.Start)
	assert.Equal(t, time.UTC, iv.Start.Location())
}

func TestResolveStartAndEnd(t *testing.T) {
	p := DefaultPolicy()

	iv, err := p.Resolve(TimeSpec{Start: "2026-10-18T18:00:45Z", End: "2026-10-18T19:30:00Z"}, testNow, false)
	require.NoError(t, err)

	assert.Equal(t, at(18, 0), iv.Start, "truncated to the minute")
	assert.Equal(t, at(19, 30), iv.End)
}

func TestResolveRejectsMalformedSpecs(t *testing.T) {
	p := DefaultPolicy()

	cases := map[string]TimeSpec{
		"empty":           {},
		"date only":       {Date: "2026-10-18"},
		"bad time":        {Date: "2026-10-18", Time: "7pm"},
		"bad date":        {Date: "18/10/2026", Time: "19:00"},
		"bad start":       {Start: "tomorrow"},
		"bad end":         {Start: "2026-10-18T18:00:00Z", End: "later"},
		"both forms":      {Date: "2026-10-18", Time: "19:00", Start: "2026-10-18T18:00:00Z"},
		"end before":      {Start: "2026-10-18T18:00:00Z", End: "2026-10-18T17:00:00Z"},
		"zero length":     {Start: "2026-10-18T18:00:00Z", End: "2026-10-18T18:00:00Z"},
		"too long":        {Start: "2026-10-18T13:00:00Z", End: "2026-10-19T13:00:00Z"},
		"end without day": {Date: "2026-10-18", Time: "19:00", End: "2026-10-18T21:00:00Z"},
	}
	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := p.Resolve(spec, testNow, false)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestResolvePastStart(t *testing.T) {
	p := DefaultPolicy()
	past := TimeSpec{Start: "2026-10-18T09:00:00Z"}

	_, err := p.Resolve(past, testNow, false)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = p.Resolve(past, testNow, true)
	assert.NoError(t, err)
}

func TestIntervalOverlapIsHalfOpen(t *testing.T) {
	a := Interval{Start: at(18, 0), End: at(20, 0)}

	assert.True(t, a.Overlaps(Interval{Start: at(19, 0), End: at(21, 0)}))
	assert.True(t, a.Overlaps(Interval{Start: at(17, 0), End: at(18, 1)}))
	assert.True(t, a.Overlaps(Interval{Start: at(18, 30), End: at(19, 0)}))
	assert.False(t, a.Overlaps(Interval{Start: at(20, 0), End: at(22, 0)}))
	assert.False(t, a.Overlaps(Interval{Start: at(16, 0), End: at(18, 0)}))
}

func TestDayBounds(t *testing.T) {
	p := DefaultPolicy()
	p.Location = time.FixedZone("UTC+7", 7*3600)

	day, err := p.DayBounds("2026-10-18")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 17, 17, 0, 0, 0, time.UTC), day.Start)
	assert.Equal(t, 24*time.Hour, day.Duration())

	_, err = p.DayBounds("yesterday")
	assert.ErrorIs(t, err, ErrValidation)
}
