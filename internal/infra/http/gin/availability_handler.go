package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"rentfleet/internal/app/commands"
	"rentfleet/internal/app/dto"
	availabilityapp "rentfleet/internal/app/handlers/availability"
	"rentfleet/internal/app/queries"
	domainavailability "rentfleet/internal/domain/availability"
	"rentfleet/internal/domain/shared/daterange"
)

type AvailabilityHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createBlockRequest struct {
	ListingType string `json:"listing_type"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Reason      string `json:"reason"`
	CreatedBy   string `json:"created_by"`
}

func (h AvailabilityHandler) CreateBlock(c *gin.Context) {
	var req createBlockRequest
	if !h.bind(c, &req) {
		return
	}
	start, end, err := parseSpan("start_date", req.StartDate, "end_date", req.EndDate)
	if err != nil {
		h.fail(c, err)
		return
	}
	listingType, err := parseListingType(req.ListingType)
	if err != nil {
		h.fail(c, err)
		return
	}
	cmd := availabilityapp.CreateBlockCommand{
		ListingID:       c.Param("id"),
		ListingType:     listingType,
		StartDate:       start,
		EndDate:         end,
		Reason:          req.Reason,
		CreatedBy:       createdBy(c, req.CreatedBy),
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[availabilityapp.CreateBlockCommand, *dto.Block](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h AvailabilityHandler) ListBlocks(c *gin.Context) {
	from, to, err := parseSpan("from", c.Query("from"), "to", c.Query("to"))
	if err != nil {
		h.fail(c, err)
		return
	}
	query := availabilityapp.ListBlocksQuery{ListingID: c.Param("id"), From: from, To: to}
	result, err := queries.Ask[availabilityapp.ListBlocksQuery, dto.Calendar](c.Request.Context(), h.Queries, query)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type createRecurringRequest struct {
	ListingType string  `json:"listing_type"`
	DaysOfWeek  []int   `json:"days_of_week"`
	StartDate   string  `json:"start_date"`
	EndDate     *string `json:"end_date"`
	Reason      string  `json:"reason"`
	CreatedBy   string  `json:"created_by"`
}

func (h AvailabilityHandler) CreateRecurringBlock(c *gin.Context) {
	var req createRecurringRequest
	if !h.bind(c, &req) {
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		h.fail(c, err)
		return
	}
	end, err := parseOptionalDate("end_date", req.EndDate)
	if err != nil {
		h.fail(c, err)
		return
	}
	listingType, err := parseListingType(req.ListingType)
	if err != nil {
		h.fail(c, err)
		return
	}
	cmd := availabilityapp.CreateRecurringBlockCommand{
		ListingID:   c.Param("id"),
		ListingType: listingType,
		DaysOfWeek:  req.DaysOfWeek,
		StartDate:   start,
		EndDate:     end,
		Reason:      req.Reason,
		CreatedBy:   createdBy(c, req.CreatedBy),
	}
	result, err := commands.Dispatch[availabilityapp.CreateRecurringBlockCommand, *dto.RecurringBlock](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type updateRecurringRequest struct {
	Scope        string  `json:"scope"`
	UpdateDate   string  `json:"update_date"`
	DaysOfWeek   []int   `json:"days_of_week"`
	StartDate    *string `json:"start_date"`
	EndDate      *string `json:"end_date"`
	ClearEndDate bool    `json:"clear_end_date"`
	Reason       *string `json:"reason"`
}

func (h AvailabilityHandler) UpdateRecurringBlock(c *gin.Context) {
	var req updateRecurringRequest
	if !h.bind(c, &req) {
		return
	}
	scope := firstNonEmpty(req.Scope, c.Query("scope"))
	updateDate, err := parseDate("update_date", firstNonEmpty(req.UpdateDate, c.Query("date")))
	if err != nil {
		h.fail(c, err)
		return
	}
	start, err := parseOptionalDate("start_date", req.StartDate)
	if err != nil {
		h.fail(c, err)
		return
	}
	end, err := parseOptionalDate("end_date", req.EndDate)
	if err != nil {
		h.fail(c, err)
		return
	}
	cmd := availabilityapp.UpdateRecurringBlockCommand{
		ID:           c.Param("id"),
		Scope:        strings.ToLower(strings.TrimSpace(scope)),
		UpdateDate:   updateDate,
		DaysOfWeek:   req.DaysOfWeek,
		StartDate:    start,
		EndDate:      end,
		ClearEndDate: req.ClearEndDate,
		Reason:       req.Reason,
	}
	result, err := commands.Dispatch[availabilityapp.UpdateRecurringBlockCommand, *dto.RecurringBlock](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) DeleteRecurringBlock(c *gin.Context) {
	deleteDate, err := parseDate("date", c.Query("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	cmd := availabilityapp.DeleteRecurringBlockCommand{
		ID:         c.Param("id"),
		Scope:      strings.ToLower(strings.TrimSpace(c.Query("scope"))),
		DeleteDate: deleteDate,
	}
	result, err := commands.Dispatch[availabilityapp.DeleteRecurringBlockCommand, *dto.RecurringDeleted](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) RecurringInstances(c *gin.Context) {
	from, to, err := parseSpan("from", c.Query("from"), "to", c.Query("to"))
	if err != nil {
		h.fail(c, err)
		return
	}
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			h.fail(c, domainavailability.InvalidRequest("limit must be a non-negative integer"))
			return
		}
	}
	query := availabilityapp.RecurringInstancesQuery{ID: c.Param("id"), From: from, To: to, Limit: limit}
	result, err := queries.Ask[availabilityapp.RecurringInstancesQuery, []dto.Block](c.Request.Context(), h.Queries, query)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recurring_block_id": query.ID, "instances": result})
}

type bulkBlocksRequest struct {
	ListingIDs  []string `json:"listing_ids"`
	ListingType string   `json:"listing_type"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Reason      string   `json:"reason"`
	CreatedBy   string   `json:"created_by"`
}

func (h AvailabilityHandler) CreateBulkBlocks(c *gin.Context) {
	var req bulkBlocksRequest
	if !h.bind(c, &req) {
		return
	}
	start, end, err := parseSpan("start_date", req.StartDate, "end_date", req.EndDate)
	if err != nil {
		h.fail(c, err)
		return
	}
	listingType, err := parseListingType(req.ListingType)
	if err != nil {
		h.fail(c, err)
		return
	}
	cmd := availabilityapp.CreateBulkBlocksCommand{
		ListingIDs:      req.ListingIDs,
		ListingType:     listingType,
		StartDate:       start,
		EndDate:         end,
		Reason:          req.Reason,
		CreatedBy:       createdBy(c, req.CreatedBy),
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[availabilityapp.CreateBulkBlocksCommand, *dto.BulkResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.fail(c, err)
		return
	}
	status := http.StatusCreated
	if len(result.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, result)
}

func (h AvailabilityHandler) Conflicts(c *gin.Context) {
	from, to, err := parseSpan("from", c.Query("from"), "to", c.Query("to"))
	if err != nil {
		h.fail(c, err)
		return
	}
	query := availabilityapp.CheckOverlapQuery{
		ListingID:      c.Param("id"),
		From:           from,
		To:             to,
		ExcludeBlockID: strings.TrimSpace(c.Query("exclude")),
	}
	switch strings.ToLower(strings.TrimSpace(c.Query("only"))) {
	case "bookings":
		query.BookingsOnly = true
	case "blocks":
		query.BlocksOnly = true
	}
	result, err := queries.Ask[availabilityapp.CheckOverlapQuery, []dto.Conflict](c.Request.Context(), h.Queries, query)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"listing_id":   query.ListingID,
		"has_conflict": len(result) > 0,
		"conflicts":    result,
	})
}

type availabilityCheckRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (h AvailabilityHandler) CheckAvailability(c *gin.Context) {
	var req availabilityCheckRequest
	if !h.bind(c, &req) {
		return
	}
	start, end, err := parseSpan("start_date", req.StartDate, "end_date", req.EndDate)
	if err != nil {
		h.fail(c, err)
		return
	}
	query := availabilityapp.CheckAvailabilityQuery{ListingID: c.Param("id"), StartDate: start, EndDate: end}
	result, err := queries.Ask[availabilityapp.CheckAvailabilityQuery, *dto.AvailabilityCheck](c.Request.Context(), h.Queries, query)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type recordBookingRequest struct {
	BookingNumber string `json:"booking_number"`
	RenterID      string `json:"renter_id"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	Status        string `json:"status"`
}

// RecordBooking upserts a booking under the listing lock. A range that is
// no longer free answers 409 VEHICLE_NOT_AVAILABLE and nothing is stored.
func (h AvailabilityHandler) RecordBooking(c *gin.Context) {
	var req recordBookingRequest
	if !h.bind(c, &req) {
		return
	}
	start, end, err := parseSpan("start_date", req.StartDate, "end_date", req.EndDate)
	if err != nil {
		h.fail(c, err)
		return
	}
	cmd := availabilityapp.RecordBookingCommand{
		ListingID:     c.Param("id"),
		BookingID:     c.Param("booking_id"),
		BookingNumber: req.BookingNumber,
		RenterID:      req.RenterID,
		StartDate:     start,
		EndDate:       end,
		Status:        req.Status,
	}
	result, err := commands.Dispatch[availabilityapp.RecordBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.fail(c, domainavailability.InvalidRequest("malformed body: %v", err))
		return false
	}
	return true
}

func (h AvailabilityHandler) fail(c *gin.Context, err error) {
	respondWithError(c, h.Logger, err)
}

// parseDate accepts YYYY-MM-DD or an RFC 3339 timestamp, normalized to its
// UTC day. Empty input yields the zero time for the validator to report.
func parseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := daterange.ParseDay(raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return daterange.Day(t.UTC()), nil
	}
	return time.Time{}, domainavailability.InvalidRequest("%s must be a date in %s format", field, daterange.Layout)
}

func parseOptionalDate(field string, raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := parseDate(field, *raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseSpan(startField, startRaw, endField, endRaw string) (time.Time, time.Time, error) {
	start, err := parseDate(startField, startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDate(endField, endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// parseListingType leaves an empty value for the command validator to report.
func parseListingType(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	t, ok := domainavailability.ParseListingType(raw)
	if !ok {
		return "", domainavailability.InvalidRequest("listing_type must be %s or %s", domainavailability.ListingVehicle, domainavailability.ListingDriver)
	}
	return string(t), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var _ AvailabilityHTTP = AvailabilityHandler{}
