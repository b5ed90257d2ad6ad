package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveQuarter(t *testing.T) {
	tests := []struct {
		quarter Quarter
		year    int
		start   string
		end     string
	}{
		{QuarterQ1, 2024, "2024-01-01", "2024-03-31"},
		{QuarterQ2, 2024, "2024-04-01", "2024-06-30"},
		{QuarterQ3, 2024, "2024-07-01", "2024-09-30"},
		{QuarterQ4, 2024, "2024-10-01", "2024-12-31"},
		{QuarterQ1, 2023, "2023-01-01", "2023-03-31"},
	}

	for _, tt := range tests {
		t.Run(string(tt.quarter), func(t *testing.T) {
			dr, err := ResolveQuarter(tt.quarter, tt.year)
			require.NoError(t, err)
			assert.Equal(t, tt.start, dr.Start.Format(time.DateOnly))
			assert.Equal(t, tt.end, dr.End.Format(time.DateOnly))
			assert.Equal(t, time.UTC, dr.Start.Location())
		})
	}
}

func TestResolveQuarter_Invalid(t *testing.T) {
	for _, code := range []string{"Q0", "Q5", "q1", "", "Q1 "} {
		_, err := ResolveQuarter(Quarter(code), 2024)
		require.Error(t, err, code)
		assert.True(t, errors.Is(err, ErrInvalidQuarter))

		var qe *InvalidQuarterError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, code, qe.Quarter)
	}
}

func TestParseQuarter(t *testing.T) {
	q, err := ParseQuarter("Q3")
	require.NoError(t, err)
	assert.Equal(t, QuarterQ3, q)

	_, err = ParseQuarter("Q7")
	assert.ErrorIs(t, err, ErrInvalidQuarter)
	assert.Contains(t, err.Error(), "'Q1', 'Q2', 'Q3' or 'Q4'")
}

func TestDateRange_ContainsWholeLastDay(t *testing.T) {
	dr, err := ResolveQuarter(QuarterQ1, 2024)
	require.NoError(t, err)

	assert.True(t, dr.Contains(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, dr.Contains(time.Date(2024, time.March, 31, 23, 59, 59, 0, time.UTC)))
	assert.False(t, dr.Contains(time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, dr.Contains(time.Date(2023, time.December, 31, 23, 59, 59, 0, time.UTC)))
	assert.Equal(t, "2024-01-01..2024-03-31", dr.String())
}

func TestResolveRange(t *testing.T) {
	dr, err := ResolveRange(QuarterRange{QuarterFrom: QuarterQ2, YearFrom: 2023, QuarterTo: QuarterQ1, YearTo: 2024})
	require.NoError(t, err)
	assert.Equal(t, "2023-04-01", dr.Start.Format(time.DateOnly))
	assert.Equal(t, "2024-03-31", dr.End.Format(time.DateOnly))
}

func TestResolveRange_ReversedIsNormalized(t *testing.T) {
	forward, err := ResolveRange(QuarterRange{QuarterFrom: QuarterQ1, YearFrom: 2024, QuarterTo: QuarterQ3, YearTo: 2024})
	require.NoError(t, err)
	reversed, err := ResolveRange(QuarterRange{QuarterFrom: QuarterQ3, YearFrom: 2024, QuarterTo: QuarterQ1, YearTo: 2024})
	require.NoError(t, err)
	assert.Equal(t, forward, reversed)
}

func TestResolveRange_InvalidEnd(t *testing.T) {
	_, err := ResolveRange(QuarterRange{QuarterFrom: QuarterQ1, YearFrom: 2024, QuarterTo: "Q8", YearTo: 2024})
	assert.ErrorIs(t, err, ErrInvalidQuarter)
}

func TestCurrentQuarter(t *testing.T) {
	tests := []struct {
		month   time.Month
		quarter Quarter
	}{
		{time.January, QuarterQ1},
		{time.March, QuarterQ1},
		{time.April, QuarterQ2},
		{time.September, QuarterQ3},
		{time.December, QuarterQ4},
	}
	for _, tt := range tests {
		q, year := CurrentQuarter(time.Date(2025, tt.month, 15, 12, 0, 0, 0, time.UTC))
		assert.Equal(t, tt.quarter, q, tt.month.String())
		assert.Equal(t, 2025, year)
	}
}

func TestQuarterRange_Format(t *testing.T) {
	key := QuarterRange{QuarterFrom: QuarterQ1, YearFrom: 2024, QuarterTo: QuarterQ2, YearTo: 2024}
	assert.Equal(t, "Q1/2024 - Q2/2024", key.String())
	assert.Equal(t, "q1-2024_q2-2024", key.Key())
}

func TestParsePeriod(t *testing.T) {
	q, year, err := ParsePeriod("Q2/2024")
	require.NoError(t, err)
	assert.Equal(t, QuarterQ2, q)
	assert.Equal(t, 2024, year)

	_, _, err = ParsePeriod("Q5/2024")
	assert.ErrorIs(t, err, ErrInvalidQuarter)

	for _, bad := range []string{"Q1-2024", "Q1/", "Q1/twenty"} {
		_, _, err = ParsePeriod(bad)
		assert.Error(t, err, bad)
	}
}
