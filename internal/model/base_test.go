package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayBounds(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	start, end := DayBounds(day, ist)
	assert.Equal(t, time.Date(2026, 3, 13, 18, 30, 0, 0, time.UTC), start.UTC())
	assert.Equal(t, 24*time.Hour, end.Sub(start))

	// Late evening local time still belongs to the same business day.
	evening := time.Date(2026, 3, 14, 23, 45, 0, 0, ist)
	assert.False(t, evening.Before(start))
	assert.True(t, evening.Before(end))
	assert.False(t, end.Before(end))
}
