package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDateKey(t *testing.T) {
	assert.Equal(t, "2026-08-29", DateKey(time.Date(2026, 8, 29, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, "2026-01-05", DateKey(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)))
}

func TestMonthKey(t *testing.T) {
	assert.Equal(t, "2026-08", MonthKey(time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)))
}

func TestPrevMonthKey(t *testing.T) {
	// Обычный случай и граница года
	assert.Equal(t, "2026-08", PrevMonthKey(time.Date(2026, 9, 1, 0, 5, 0, 0, time.UTC)))
	assert.Equal(t, "2025-12", PrevMonthKey(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)))
	// 31-е число не должно перескочить короткий месяц
	assert.Equal(t, "2026-02", PrevMonthKey(time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)))
}

func TestSameDate(t *testing.T) {
	now := time.Date(2026, 8, 29, 15, 0, 0, 0, time.UTC)

	sameDay := time.Date(2026, 8, 29, 1, 0, 0, 0, time.UTC)
	prevDay := time.Date(2026, 8, 28, 23, 59, 0, 0, time.UTC)

	assert.True(t, SameDate(&sameDay, now))
	assert.False(t, SameDate(&prevDay, now))
	assert.False(t, SameDate(nil, now))
}
