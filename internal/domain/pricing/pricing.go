package pricing

import (
	"errors"

	"bookingledger/internal/domain/shared/daterange"
	"bookingledger/internal/domain/shared/money"
)

var (
	ErrInvalidPrice   = errors.New("pricing: nightly price must be positive")
	ErrInvalidFeeRate = errors.New("pricing: fee percent must be between 0 and 100")
	ErrCurrencyUnset  = errors.New("pricing: currency must be defined")
)

// DefaultPlatformFeePercent is the marketplace cut taken from every charge.
const DefaultPlatformFeePercent = 5

// Breakdown is the quote shown to the guest and sent to the payment processor.
type Breakdown struct {
	Nights      int
	Nightly     money.Money
	Total       money.Money
	PlatformFee money.Money
}

// ComputeTotal charges every occupied night of r, checkout day included.
func ComputeTotal(nightly money.Money, r daterange.DateRange) (money.Money, error) {
	if nightly.Amount <= 0 {
		return money.Money{}, ErrInvalidPrice
	}
	if nightly.Currency == "" {
		return money.Money{}, ErrCurrencyUnset
	}
	if err := r.Validate(); err != nil {
		return money.Money{}, err
	}
	return nightly.Multiply(int64(r.Nights()))
}

// Quote computes the total and the platform fee for a stay.
func Quote(nightly money.Money, r daterange.DateRange, feePercent int) (Breakdown, error) {
	if feePercent < 0 || feePercent > 100 {
		return Breakdown{}, ErrInvalidFeeRate
	}
	total, err := ComputeTotal(nightly, r)
	if err != nil {
		return Breakdown{}, err
	}
	return Breakdown{
		Nights:      r.Nights(),
		Nightly:     nightly,
		Total:       total,
		PlatformFee: PercentOf(total, feePercent),
	}, nil
}

// PercentOf takes percent of m rounded half-up to the smallest unit.
func PercentOf(m money.Money, percent int) money.Money {
	if percent <= 0 || m.Amount <= 0 {
		return money.Money{Amount: 0, Currency: m.Currency}
	}
	return money.Money{Amount: roundHalfUp(m.Amount, int64(percent), 100), Currency: m.Currency}
}

// roundHalfUp returns amount*num/den rounded half-up for non-negative inputs,
// splitting the amount first so the product cannot overflow.
func roundHalfUp(amount, num, den int64) int64 {
	q, r := amount/den, amount%den
	whole := q * num
	frac := r * num
	return whole + (2*frac+den)/(2*den)
}
