package daterange

import (
	"errors"
)

var (
	ErrInvalidRange = errors.New("daterange: checkout must not be before checkin")
)

// DateRange is an inclusive span of days: both CheckIn and CheckOut are
// occupied nights.
type DateRange struct {
	CheckIn  Date
	CheckOut Date
}

func New(checkIn, checkOut Date) (DateRange, error) {
	dr := DateRange{CheckIn: checkIn, CheckOut: checkOut}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

func (dr DateRange) Validate() error {
	if dr.CheckIn.IsZero() || dr.CheckOut.IsZero() {
		return ErrInvalidRange
	}
	if dr.CheckOut.Before(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

// Nights counts occupied nights, checkout day included.
func (dr DateRange) Nights() int {
	return dr.CheckIn.DaysUntil(dr.CheckOut) + 1
}

// Each calls fn for every day of the range in ascending order until fn
// returns false.
func (dr DateRange) Each(fn func(Date) bool) {
	if dr.Validate() != nil {
		return
	}
	for d := dr.CheckIn; !d.After(dr.CheckOut); d = d.Next() {
		if !fn(d) {
			return
		}
	}
}

func (dr DateRange) Days() []Date {
	out := make([]Date, 0, max(dr.Nights(), 0))
	dr.Each(func(d Date) bool {
		out = append(out, d)
		return true
	})
	return out
}

func (dr DateRange) ContainsDate(d Date) bool {
	return !d.Before(dr.CheckIn) && !d.After(dr.CheckOut)
}

func (dr DateRange) Overlaps(other DateRange) bool {
	return !dr.CheckOut.Before(other.CheckIn) && !other.CheckOut.Before(dr.CheckIn)
}

func (dr DateRange) String() string {
	return dr.CheckIn.String() + ".." + dr.CheckOut.String()
}
