package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDueDateClampsToMonthEnd(t *testing.T) {
	cases := []struct {
		name  string
		start time.Time
		n     int
		want  time.Time
	}{
		{name: "jan 31 plus one in leap year", start: date(2024, 1, 31), n: 1, want: date(2024, 2, 29)},
		{name: "jan 31 plus two", start: date(2024, 1, 31), n: 2, want: date(2024, 3, 31)},
		{name: "jan 31 plus three", start: date(2024, 1, 31), n: 3, want: date(2024, 4, 30)},
		{name: "jan 31 plus one in common year", start: date(2023, 1, 31), n: 1, want: date(2023, 2, 28)},
		{name: "feb 29 plus twelve", start: date(2024, 2, 29), n: 12, want: date(2025, 2, 28)},
		{name: "feb 29 plus one", start: date(2024, 2, 29), n: 1, want: date(2024, 3, 29)},
		{name: "dec 31 plus two crosses year", start: date(2024, 12, 31), n: 2, want: date(2025, 2, 28)},
		{name: "dec 31 plus one", start: date(2024, 12, 31), n: 1, want: date(2025, 1, 31)},
		{name: "mid month unchanged", start: date(2024, 1, 15), n: 3, want: date(2024, 4, 15)},
		{name: "zero months", start: date(2024, 1, 31), n: 0, want: date(2024, 1, 31)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DueDate(tc.start, tc.n))
		})
	}
}

func TestDueDateKeepsTimeOfDay(t *testing.T) {
	start := time.Date(2024, 1, 31, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 2, 29, 9, 30, 0, 0, time.UTC), DueDate(start, 1))
}

func TestLoanDaysFromMonthEndStart(t *testing.T) {
	start := date(2024, 1, 31)
	assert.Equal(t, 90, LoanDays(start, DueDate(start, 3)))
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
