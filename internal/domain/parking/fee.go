package parking

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RateTable maps a street name to its rate in cents per minute.
type RateTable map[string]decimal.Decimal

func (rt RateTable) Rate(street string) (decimal.Decimal, error) {
	rate, ok := rt[street]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: street %q", ErrRateNotFound, street)
	}
	return rate, nil
}

// ComputeFee prices a closed session. Rates are in cents, the amount is in
// currency units.
func ComputeFee(s Session, rates RateTable) (*FeeResult, error) {
	if s.Status != StatusDeRegistered || s.DeregisteredAt == nil {
		return nil, fmt.Errorf("%w: session for %s is still open", ErrInvalidTransition, s.LicencePlate)
	}

	rate, err := rates.Rate(s.StreetName)
	if err != nil {
		return nil, err
	}

	minutes := BillableMinutes(s.RegisteredAt, *s.DeregisteredAt)
	amount := rate.Mul(decimal.NewFromInt(minutes)).Shift(-2)

	return &FeeResult{
		Message:         fmt.Sprintf("You have successfully De-Registered your vehicle. Total Time : %d min", minutes),
		Amount:          amount,
		BillableMinutes: minutes,
		LicencePlate:    s.LicencePlate,
		StreetName:      s.StreetName,
		RegisteredAt:    s.RegisteredAt,
		DeregisteredAt:  s.DeregisteredAt.Truncate(time.Second),
	}, nil
}
