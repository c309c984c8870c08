package dto

import (
	"bookingledger/internal/domain/availability"
	"bookingledger/internal/domain/shared/daterange"
)

// Calendar lists the booked days of a listing inside [From, To].
type Calendar struct {
	ListingID string   `json:"listing_id"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	Booked    []string `json:"booked"`
}

func MapCalendar(listingID string, window daterange.DateRange, index availability.Index) Calendar {
	days := index.BookedBetween(window)
	booked := make([]string, 0, len(days))
	for _, d := range days {
		booked = append(booked, d.String())
	}
	return Calendar{
		ListingID: listingID,
		From:      window.CheckIn.String(),
		To:        window.CheckOut.String(),
		Booked:    booked,
	}
}
