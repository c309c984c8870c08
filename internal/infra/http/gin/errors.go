package ginserver

import (
	"errors"
	"net/http"

	gin "github.com/gin-gonic/gin"

	availabilityapp "bookingledger/internal/app/handlers/availability"
	bookingapp "bookingledger/internal/app/handlers/booking"
	pricingapp "bookingledger/internal/app/handlers/pricing"
	reconciliationapp "bookingledger/internal/app/handlers/reconciliation"
	"bookingledger/internal/app/middleware"
	"bookingledger/internal/app/reservation"
	domainbooking "bookingledger/internal/domain/booking"
	domainlistings "bookingledger/internal/domain/listings"
	domainpricing "bookingledger/internal/domain/pricing"
	domainreconciliation "bookingledger/internal/domain/reconciliation"
	"bookingledger/internal/domain/shared/daterange"
	"bookingledger/internal/infra/validation"
)

// writeError renders err with the status its kind maps to. The CommitFailure
// check comes first because it unwraps to the rejection that caused it.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	status, body := describeError(err)
	c.AbortWithStatusJSON(status, body)
}

func describeError(err error) (int, gin.H) {
	body := gin.H{"error": err.Error()}

	var commitErr *reservation.CommitFailure
	if errors.As(err, &commitErr) {
		body["state"] = reservation.StateCommitFailed
		if commitErr.Obligation != nil {
			body["obligation_id"] = string(commitErr.Obligation.ID)
		}
		body["refund_recorded"] = commitErr.ObligationRecorded()
		return http.StatusBadGateway, body
	}
	var chargeErr *reservation.ChargeFailure
	if errors.As(err, &chargeErr) {
		body["state"] = reservation.StateChargeFailed
		body["declined"] = chargeErr.Declined
		body["timed_out"] = chargeErr.TimedOut
		return http.StatusPaymentRequired, body
	}
	var vErr *domainbooking.ValidationError
	if errors.As(err, &vErr) {
		body["state"] = reservation.StateRejected
		body["reason"] = vErr.Reason
		if vErr.Reason == domainbooking.ReasonDateConflict {
			if !vErr.ConflictDate.IsZero() {
				body["conflict_date"] = vErr.ConflictDate.String()
			}
			return http.StatusConflict, body
		}
		return http.StatusUnprocessableEntity, body
	}
	var rejected *middleware.RejectedError
	if errors.As(err, &rejected) {
		body["rejected"] = rejected.Key
	}
	var fieldErr *validation.Error
	if errors.As(err, &fieldErr) {
		body["fields"] = fieldErr.Fields
		return http.StatusBadRequest, body
	}
	var replayed *middleware.ReplayedError
	if errors.As(err, &replayed) {
		body["replayed"] = true
		return http.StatusConflict, body
	}

	switch {
	case errors.Is(err, middleware.ErrRequestInFlight):
		return http.StatusConflict, body
	case errors.Is(err, daterange.ErrInvalidDate), errors.Is(err, validation.ErrInvalidInput):
		return http.StatusBadRequest, body
	case errors.Is(err, daterange.ErrInvalidRange), errors.Is(err, availabilityapp.ErrWindowTooLarge),
		errors.Is(err, pricingapp.ErrQuoteTooLong),
		errors.Is(err, domainpricing.ErrInvalidPrice), errors.Is(err, domainpricing.ErrCurrencyUnset):
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, domainlistings.ErrListingNotFound), errors.Is(err, domainbooking.ErrBookingNotFound),
		errors.Is(err, domainreconciliation.ErrNotFound):
		return http.StatusNotFound, body
	case errors.Is(err, middleware.ErrViewerRequired):
		return http.StatusUnauthorized, body
	case errors.Is(err, bookingapp.ErrNotListingHost):
		return http.StatusForbidden, body
	case errors.Is(err, reconciliationapp.ErrRefundFailed):
		return http.StatusBadGateway, body
	case errors.Is(err, reservation.ErrListingUnavailable):
		body["state"] = reservation.StateFailed
		return http.StatusServiceUnavailable, body
	}
	return http.StatusInternalServerError, gin.H{"error": "internal error"}
}
