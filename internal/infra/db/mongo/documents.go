package mongo

import (
	"strconv"
	"time"

	"bookingledger/internal/domain/shared/daterange"
	"bookingledger/internal/domain/shared/money"
)

type moneyDocument struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

func newMoneyDocument(m money.Money) moneyDocument {
	return moneyDocument{Amount: m.Amount, Currency: m.Currency}
}

func (d moneyDocument) toMoney() money.Money {
	return money.Money{Amount: d.Amount, Currency: d.Currency}
}

// rangeDocument stores civil dates as YYYY-MM-DD so they sort as strings.
type rangeDocument struct {
	CheckIn  string `bson:"check_in"`
	CheckOut string `bson:"check_out"`
}

func newRangeDocument(r daterange.DateRange) rangeDocument {
	return rangeDocument{CheckIn: r.CheckIn.String(), CheckOut: r.CheckOut.String()}
}

func (d rangeDocument) toRange() (daterange.DateRange, error) {
	in, err := daterange.ParseDate(d.CheckIn)
	if err != nil {
		return daterange.DateRange{}, err
	}
	out, err := daterange.ParseDate(d.CheckOut)
	if err != nil {
		return daterange.DateRange{}, err
	}
	return daterange.DateRange{CheckIn: in, CheckOut: out}, nil
}

// indexDocument mirrors the availability index: year -> month -> day.
type indexDocument map[string]map[string]map[string]bool

func newIndexDocument(dates []daterange.Date) indexDocument {
	doc := make(indexDocument)
	for _, d := range dates {
		y, m := strconv.Itoa(d.Year), strconv.Itoa(int(d.Month))
		if doc[y] == nil {
			doc[y] = make(map[string]map[string]bool)
		}
		if doc[y][m] == nil {
			doc[y][m] = make(map[string]bool)
		}
		doc[y][m][strconv.Itoa(d.Day)] = true
	}
	return doc
}

func (d indexDocument) dates() ([]daterange.Date, error) {
	var out []daterange.Date
	for ys, months := range d {
		y, err := strconv.Atoi(ys)
		if err != nil {
			return nil, err
		}
		for ms, days := range months {
			m, err := strconv.Atoi(ms)
			if err != nil {
				return nil, err
			}
			for ds, booked := range days {
				if !booked {
					continue
				}
				day, err := strconv.Atoi(ds)
				if err != nil {
					return nil, err
				}
				out = append(out, daterange.NewDate(y, time.Month(m), day))
			}
		}
	}
	return out, nil
}
