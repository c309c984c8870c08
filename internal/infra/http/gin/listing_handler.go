package ginserver

import (
	"net/http"
	"strconv"
	"time"

	gin "github.com/gin-gonic/gin"

	"bookingledger/internal/app/dto"
	availabilityapp "bookingledger/internal/app/handlers/availability"
	bookingapp "bookingledger/internal/app/handlers/booking"
	pricingapp "bookingledger/internal/app/handlers/pricing"
	"bookingledger/internal/app/queries"
	"bookingledger/internal/domain/shared/daterange"
)

// defaultCalendarDays is the window served when the caller omits "to".
const defaultCalendarDays = 90

type ListingHandler struct {
	Queries queries.Bus
	Now     func() time.Time
}

func (h ListingHandler) Calendar(c *gin.Context) {
	from, ok := dateQuery(c, "from")
	if !ok {
		return
	}
	to, ok := dateQuery(c, "to")
	if !ok {
		return
	}
	if from.IsZero() {
		from = daterange.DateOf(h.now())
	}
	if to.IsZero() {
		to = from.AddDays(defaultCalendarDays - 1)
	}
	query := availabilityapp.GetCalendarQuery{ListingID: c.Param("id"), From: from, To: to}
	result, err := queries.Ask[availabilityapp.GetCalendarQuery, dto.Calendar](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ListingHandler) Quote(c *gin.Context) {
	checkIn, ok := dateQuery(c, "check_in")
	if !ok {
		return
	}
	checkOut, ok := dateQuery(c, "check_out")
	if !ok {
		return
	}
	query := pricingapp.QuoteQuery{ListingID: c.Param("id"), CheckIn: checkIn, CheckOut: checkOut}
	result, err := queries.Ask[pricingapp.QuoteQuery, dto.Quote](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ListingHandler) Bookings(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	query := bookingapp.ListListingBookingsQuery{ViewerIDV: user.ID, ListingID: c.Param("id"), Limit: limit, Page: page}
	result, err := queries.Ask[bookingapp.ListListingBookingsQuery, dto.BookingPage](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ListingHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

// dateQuery parses an optional YYYY-MM-DD query parameter.
func dateQuery(c *gin.Context, name string) (daterange.Date, bool) {
	raw := c.Query(name)
	if raw == "" {
		return daterange.Date{}, true
	}
	d, err := daterange.ParseDate(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "param": name})
		return daterange.Date{}, false
	}
	return d, true
}

var _ ListingHTTP = ListingHandler{}
