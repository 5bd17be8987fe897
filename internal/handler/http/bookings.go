package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pbengoa/Tourline-front-sub001/internal/api"
	"github.com/pbengoa/Tourline-front-sub001/internal/connectivity"
	"github.com/pbengoa/Tourline-front-sub001/pkg/httputil"
	"github.com/pbengoa/Tourline-front-sub001/pkg/pagination"
)

// BookingHandler handles the /v1/bookings endpoints. Writes go through the
// connectivity monitor so they survive an outage.
type BookingHandler struct {
	bookings BookingService
	monitor  ConnectivityService
	logger   *slog.Logger
}

// NewBookingHandler creates a bookings HTTP handler.
func NewBookingHandler(bookings BookingService, monitor ConnectivityService, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, monitor: monitor, logger: logger}
}

// CreateBookingRequest is the body of POST /v1/bookings.
type CreateBookingRequest struct {
	TourID       string `json:"tourId" validate:"required"`
	Date         string `json:"date" validate:"required,datetime=2006-01-02"`
	Participants int    `json:"participants" validate:"required,gte=1,lte=50"`
	Notes        string `json:"notes" validate:"max=1000"`
}

type queuedView struct {
	Queued     bool `json:"queued"`
	QueueDepth int  `json:"queueDepth"`
}

// List handles GET /v1/bookings
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.FromRequest(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	items, page, err := h.bookings.List(r.Context(), params.Page, params.Limit)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	total := -1
	if page != nil {
		total = page.Total
	}
	httputil.WriteData(w, http.StatusOK, pagination.NewResult(items, total, params))
}

// Create handles POST /v1/bookings
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	body := api.BookingRequest{
		TourID:       req.TourID,
		Date:         req.Date,
		Participants: req.Participants,
		Notes:        req.Notes,
	}
	var created *api.Booking
	err := h.monitor.RunOrQueue(r.Context(), h.logged("create booking", func(ctx context.Context) error {
		b, err := h.bookings.Create(ctx, body)
		created = b
		return err
	}))
	h.respond(w, r, err, http.StatusCreated, func() any { return created })
}

// Cancel handles POST /v1/bookings/{id}/cancel
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.monitor.RunOrQueue(r.Context(), h.logged("cancel booking", func(ctx context.Context) error {
		return h.bookings.Cancel(ctx, id)
	}))
	h.respond(w, r, err, http.StatusOK, func() any { return map[string]string{"id": id, "status": "cancelled"} })
}

func (h *BookingHandler) respond(w http.ResponseWriter, r *http.Request, err error, status int, data func() any) {
	switch {
	case err == nil:
		httputil.WriteData(w, status, data())
	case errors.Is(err, connectivity.ErrQueued):
		httputil.WriteData(w, http.StatusAccepted, queuedView{Queued: true, QueueDepth: h.monitor.QueueLen()})
	default:
		writeError(w, r, err, h.logger)
	}
}

// logged reports the outcome of op when it is replayed after an outage.
func (h *BookingHandler) logged(name string, op connectivity.Operation) connectivity.Operation {
	var attempts int
	return func(ctx context.Context) error {
		attempts++
		err := op(ctx)
		if attempts > 1 {
			if err != nil {
				h.logger.WarnContext(ctx, "replayed operation failed",
					slog.String("operation", name),
					slog.String("error", err.Error()),
				)
			} else {
				h.logger.InfoContext(ctx, "replayed operation succeeded", slog.String("operation", name))
			}
		}
		return err
	}
}
