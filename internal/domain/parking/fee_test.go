package parking

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRates() RateTable {
	return RateTable{
		"Java":    decimal.NewFromInt(3),
		"Azure":   decimal.NewFromInt(8),
		"Jakarta": decimal.NewFromInt(10),
	}
}

func closedSession(street string, from, to time.Time) Session {
	return Session{
		LicencePlate:   "PB12X9002",
		StreetName:     street,
		RegisteredAt:   from,
		DeregisteredAt: &to,
		Status:         StatusDeRegistered,
	}
}

func TestComputeFee(t *testing.T) {
	tests := []struct {
		name    string
		street  string
		from    time.Time
		to      time.Time
		minutes int64
		amount  string
	}{
		{"five minutes on Java", "Java", at(2023, 11, 20, 11, 0, 1), at(2023, 11, 20, 11, 5, 1), 5, "0.15"},
		{"eight minutes on Jakarta", "Jakarta", at(2023, 11, 20, 11, 0, 1), at(2023, 11, 20, 11, 8, 1), 8, "0.8"},
		{"twenty five minutes on Azure", "Azure", at(2023, 11, 20, 11, 0, 1), at(2023, 11, 20, 11, 25, 1), 25, "2"},
		{"same sunday", "Azure", at(2023, 11, 19, 7, 0, 1), at(2023, 11, 19, 11, 0, 1), 0, "0"},
		{"saturday to sunday", "Azure", at(2023, 11, 18, 7, 0, 1), at(2023, 11, 19, 11, 0, 1), 780, "62.4"},
		{"sunday to monday", "Azure", at(2023, 11, 19, 7, 0, 1), at(2023, 11, 20, 11, 0, 1), 180, "14.4"},
		{"sunday to next sunday", "Azure", at(2023, 11, 5, 7, 0, 1), at(2023, 11, 12, 11, 0, 1), 4680, "374.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ComputeFee(closedSession(tt.street, tt.from, tt.to), testRates())
			require.NoError(t, err)

			assert.Equal(t, tt.minutes, result.BillableMinutes)
			assert.True(t, decimal.RequireFromString(tt.amount).Equal(result.Amount),
				"amount = %s, want %s", result.Amount, tt.amount)
			assert.Equal(t, tt.amount, result.Amount.String())
			assert.Contains(t, result.Message, "Total Time : ")
			assert.Equal(t, tt.street, result.StreetName)
		})
	}
}

func TestComputeFee_RateNotFound(t *testing.T) {
	s := closedSession("Kotlin", at(2023, 11, 20, 11, 0, 1), at(2023, 11, 20, 11, 5, 1))

	_, err := ComputeFee(s, testRates())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateNotFound)
}

func TestComputeFee_OpenSession(t *testing.T) {
	s := NewSession("PB12X9002", "Java", at(2023, 11, 20, 11, 0, 1))

	_, err := ComputeFee(*s, testRates())

	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestComputeFee_FractionalRate(t *testing.T) {
	rates := RateTable{"Java": decimal.RequireFromString("2.5")}
	s := closedSession("Java", at(2023, 11, 20, 11, 0, 0), at(2023, 11, 20, 11, 3, 0))

	result, err := ComputeFee(s, rates)
	require.NoError(t, err)

	assert.Equal(t, "0.075", result.Amount.String())
}
