package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/zeromonos/internal/domain"
	"github.com/Domenick1991/zeromonos/internal/receipt"
	"github.com/Domenick1991/zeromonos/internal/service/booking"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service  booking.BookingUseCase
	receipts *receipt.Generator
}

type createBookingRequest struct {
	Municipality  string `json:"municipality" binding:"required,max=100"`
	Description   string `json:"description" binding:"required,max=2000"`
	RequestedDate string `json:"requestedDate" binding:"required"`
	TimeSlot      string `json:"timeSlot" binding:"required"`
}

type bookingResponse struct {
	Token         string `json:"token"`
	Municipality  string `json:"municipality"`
	Description   string `json:"description"`
	RequestedDate string `json:"requestedDate"`
	TimeSlot      string `json:"timeSlot"`
	Status        string `json:"status"`
}

type statusChangeResponse struct {
	Status    string `json:"status"`
	ChangedAt string `json:"changedAt"`
}

func NewBookingHandler(service booking.BookingUseCase, receipts *receipt.Generator) *BookingHandler {
	return &BookingHandler{service: service, receipts: receipts}
}

// Register mounts the booking routes. The mutating middlewares only wrap the
// citizen create and cancel routes.
func (h *BookingHandler) Register(router *gin.RouterGroup, mutating ...gin.HandlerFunc) {
	router.POST("", withMiddleware(mutating, h.create)...)
	router.GET("", h.list)
	router.GET("/:token", h.lookup)
	router.DELETE("/:token", withMiddleware(mutating, h.cancel)...)
	router.PUT("/:token", h.advance)
	router.GET("/:token/history", h.history)
	router.GET("/:token/receipt", h.receipt)
	router.GET("/:token/qr", h.qr)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err, &req))
		return
	}

	created, err := h.service.SubmitBooking(c.Request.Context(), booking.SubmitBookingInput{
		Municipality:  req.Municipality,
		Description:   req.Description,
		RequestedDate: req.RequestedDate,
		TimeSlot:      req.TimeSlot,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toBookingResponse(created))
}

func (h *BookingHandler) lookup(c *gin.Context) {
	found, err := h.service.LookupBooking(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(found))
}

func (h *BookingHandler) list(c *gin.Context) {
	bookings, err := h.service.ListBookings(c.Request.Context(), c.Query("municipality"))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		resp = append(resp, toBookingResponse(&bookings[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *BookingHandler) cancel(c *gin.Context) {
	cancelled, err := h.service.CancelBooking(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(cancelled))
}

func (h *BookingHandler) advance(c *gin.Context) {
	status := c.Query("status")
	if status == "" {
		writeTextError(c, domain.NewValidationError("status", "is required"))
		return
	}

	updated, err := h.service.AdvanceStatus(c.Request.Context(), c.Param("token"), domain.BookingStatus(status))
	if err != nil {
		writeTextError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(updated))
}

func (h *BookingHandler) history(c *gin.Context) {
	changes, err := h.service.BookingHistory(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]statusChangeResponse, 0, len(changes))
	for _, change := range changes {
		resp = append(resp, statusChangeResponse{
			Status:    string(change.Status),
			ChangedAt: change.ChangedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *BookingHandler) receipt(c *gin.Context) {
	ctx := c.Request.Context()
	found, err := h.service.LookupBooking(ctx, c.Param("token"))
	if err != nil {
		writeError(c, err)
		return
	}
	changes, err := h.service.BookingHistory(ctx, found.Token)
	if err != nil {
		writeError(c, err)
		return
	}

	doc, err := h.receipts.PDF(found, changes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="booking-`+found.Token+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", doc)
}

func (h *BookingHandler) qr(c *gin.Context) {
	found, err := h.service.LookupBooking(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeError(c, err)
		return
	}

	png, err := h.receipts.QRCode(found.Token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	return bookingResponse{
		Token:         b.Token,
		Municipality:  b.Municipality,
		Description:   b.Description,
		RequestedDate: b.RequestedDate.Format(domain.DateLayout),
		TimeSlot:      string(b.TimeSlot),
		Status:        string(b.Status),
	}
}

func withMiddleware(middleware []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	chain := make([]gin.HandlerFunc, 0, len(middleware)+1)
	chain = append(chain, middleware...)
	return append(chain, handler)
}
