package availability

import (
	"fmt"
	"sort"
	"time"

	"bookingledger/internal/domain/shared/daterange"
)

// DateConflictError reports the first already-booked day met while booking a range.
type DateConflictError struct {
	Date daterange.Date
}

func (e *DateConflictError) Error() string {
	return fmt.Sprintf("availability: listing already booked for %s", e.Date)
}

// Index is the sparse set of booked days of one listing, keyed
// year -> month (1-based) -> day. A missing key at any level means free.
//
// Index values are never mutated after construction; WithRangeBooked returns
// a new value and leaves the receiver untouched, so an Index can be shared
// between goroutines.
type Index struct {
	days map[int]map[time.Month]map[int]bool
}

// FromDates builds an index with the given days booked.
func FromDates(dates ...daterange.Date) Index {
	ix := Index{days: make(map[int]map[time.Month]map[int]bool)}
	for _, d := range dates {
		ix.mark(d)
	}
	return ix
}

func (ix Index) IsBooked(d daterange.Date) bool {
	months, ok := ix.days[d.Year]
	if !ok {
		return false
	}
	days, ok := months[d.Month]
	if !ok {
		return false
	}
	return days[d.Day]
}

// FirstConflict returns the earliest booked day inside r.
func (ix Index) FirstConflict(r daterange.DateRange) (daterange.Date, bool) {
	var (
		conflict daterange.Date
		found    bool
	)
	r.Each(func(d daterange.Date) bool {
		if ix.IsBooked(d) {
			conflict, found = d, true
			return false
		}
		return true
	})
	return conflict, found
}

// WithRangeBooked returns a copy of the index with every day of r booked.
// It fails with *DateConflictError on the first day that is already booked
// and never applies a partial range.
func (ix Index) WithRangeBooked(r daterange.DateRange) (Index, error) {
	if err := r.Validate(); err != nil {
		return Index{}, err
	}
	if d, ok := ix.FirstConflict(r); ok {
		return Index{}, &DateConflictError{Date: d}
	}
	next := ix.clone()
	r.Each(func(d daterange.Date) bool {
		next.mark(d)
		return true
	})
	return next, nil
}

// BookedDates lists booked days in ascending order.
func (ix Index) BookedDates() []daterange.Date {
	out := make([]daterange.Date, 0, ix.BookedNights())
	for year, months := range ix.days {
		for month, days := range months {
			for day, booked := range days {
				if booked {
					out = append(out, daterange.Date{Year: year, Month: month, Day: day})
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// BookedBetween lists booked days inside the window r in ascending order.
func (ix Index) BookedBetween(r daterange.DateRange) []daterange.Date {
	var out []daterange.Date
	r.Each(func(d daterange.Date) bool {
		if ix.IsBooked(d) {
			out = append(out, d)
		}
		return true
	})
	return out
}

func (ix Index) BookedNights() int {
	n := 0
	for _, months := range ix.days {
		for _, days := range months {
			for _, booked := range days {
				if booked {
					n++
				}
			}
		}
	}
	return n
}

// Equal reports whether both indexes book exactly the same days.
func (ix Index) Equal(other Index) bool {
	if ix.BookedNights() != other.BookedNights() {
		return false
	}
	for _, d := range ix.BookedDates() {
		if !other.IsBooked(d) {
			return false
		}
	}
	return true
}

func (ix Index) clone() Index {
	out := Index{days: make(map[int]map[time.Month]map[int]bool, len(ix.days))}
	for year, months := range ix.days {
		mm := make(map[time.Month]map[int]bool, len(months))
		for month, days := range months {
			dd := make(map[int]bool, len(days))
			for day, booked := range days {
				dd[day] = booked
			}
			mm[month] = dd
		}
		out.days[year] = mm
	}
	return out
}

// mark is only called on indexes under construction.
func (ix *Index) mark(d daterange.Date) {
	if ix.days == nil {
		ix.days = make(map[int]map[time.Month]map[int]bool)
	}
	months, ok := ix.days[d.Year]
	if !ok {
		months = make(map[time.Month]map[int]bool)
		ix.days[d.Year] = months
	}
	days, ok := months[d.Month]
	if !ok {
		days = make(map[int]bool)
		months[d.Month] = days
	}
	days[d.Day] = true
}
