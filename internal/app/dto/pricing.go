package dto

import "bookingledger/internal/domain/pricing"

type Quote struct {
	ListingID    string   `json:"listing_id"`
	CheckIn      string   `json:"check_in"`
	CheckOut     string   `json:"check_out"`
	Nights       int      `json:"nights"`
	Nightly      MoneyDTO `json:"nightly"`
	Total        MoneyDTO `json:"total"`
	PlatformFee  MoneyDTO `json:"platform_fee"`
	Available    bool     `json:"available"`
	ConflictDate string   `json:"conflict_date,omitempty"`
}

func MapQuote(listingID, checkIn, checkOut string, b pricing.Breakdown) Quote {
	return Quote{
		ListingID:   listingID,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		Nights:      b.Nights,
		Nightly:     MapMoney(b.Nightly),
		Total:       MapMoney(b.Total),
		PlatformFee: MapMoney(b.PlatformFee),
		Available:   true,
	}
}
