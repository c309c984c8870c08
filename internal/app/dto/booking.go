package dto

import (
	"time"

	domainbooking "bookingledger/internal/domain/booking"
	"bookingledger/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type Booking struct {
	ID          string    `json:"id"`
	ListingID   string    `json:"listing_id"`
	GuestID     string    `json:"guest_id"`
	CheckIn     string    `json:"check_in"`
	CheckOut    string    `json:"check_out"`
	Nights      int       `json:"nights"`
	Total       MoneyDTO  `json:"total"`
	PlatformFee MoneyDTO  `json:"platform_fee"`
	ChargeRef   string    `json:"charge_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type BookingPage struct {
	Items []Booking `json:"items"`
	Total int       `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{
		Amount:   value.Amount,
		Currency: value.Currency,
	}
}

func MapBooking(b *domainbooking.Booking) Booking {
	if b == nil {
		return Booking{}
	}
	return Booking{
		ID:          string(b.ID),
		ListingID:   string(b.ListingID),
		GuestID:     b.GuestID,
		CheckIn:     b.Range.CheckIn.String(),
		CheckOut:    b.Range.CheckOut.String(),
		Nights:      b.Nights(),
		Total:       MapMoney(b.Total),
		PlatformFee: MapMoney(b.PlatformFee),
		ChargeRef:   b.ChargeRef,
		CreatedAt:   b.CreatedAt,
	}
}
