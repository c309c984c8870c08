package ginserver

import (
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"bookingledger/internal/app/commands"
	"bookingledger/internal/app/dto"
	bookingapp "bookingledger/internal/app/handlers/booking"
	"bookingledger/internal/domain/shared/daterange"
)

type BookingHandler struct {
	Commands commands.Bus
}

type createBookingRequest struct {
	ListingID string         `json:"listing_id"`
	Source    string         `json:"source"`
	CheckIn   daterange.Date `json:"check_in"`
	CheckOut  daterange.Date `json:"check_out"`
}

func (h BookingHandler) Create(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Commands == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "commands unavailable"})
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := bookingapp.ReserveCommand{
		RequesterID:     user.ID,
		ListingID:       strings.TrimSpace(req.ListingID),
		Source:          strings.TrimSpace(req.Source),
		CheckIn:         req.CheckIn,
		CheckOut:        req.CheckOut,
		IdempotencyKeyV: strings.TrimSpace(c.GetHeader(IdempotencyHeader)),
	}
	result, err := commands.Dispatch[bookingapp.ReserveCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

var _ BookingHTTP = BookingHandler{}
