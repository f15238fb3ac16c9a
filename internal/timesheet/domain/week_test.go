package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2024-01-15", "2024-01-15"},
		{"2024-01-17", "2024-01-15"},
		{"2024-01-19", "2024-01-15"},
		{"2024-01-21", "2024-01-15"},
		{"2024-01-22", "2024-01-22"},
		{"2024-03-01", "2024-02-26"},
		{"2025-01-01", "2024-12-30"},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			assert.Equal(t, day(tt.want), WeekStart(day(tt.date)))
		})
	}
}

func TestWeekStart_Properties(t *testing.T) {
	start := day("2023-12-01")
	for i := 0; i < 400; i++ {
		d := start.AddDate(0, 0, i).Add(13*time.Hour + 45*time.Minute)
		ws := WeekStart(d)

		assert.Equal(t, time.Monday, ws.Weekday())
		diff := Date(d).Sub(ws)
		assert.GreaterOrEqual(t, diff, time.Duration(0))
		assert.LessOrEqual(t, diff, 6*24*time.Hour)
		assert.Equal(t, ws, WeekStart(ws))
		assert.Equal(t, ws.AddDate(0, 0, 6), WeekEnd(d))
	}
}

func TestSameDay(t *testing.T) {
	assert.True(t, SameDay(day("2024-01-15").Add(time.Hour), day("2024-01-15").Add(23*time.Hour)))
	assert.False(t, SameDay(day("2024-01-15").Add(23*time.Hour), day("2024-01-16")))
}
