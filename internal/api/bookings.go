package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pbengoa/Tourline-front-sub001/pkg/httpclient"
)

// Booking is a tour reservation as returned by the backend.
type Booking struct {
	ID           string     `json:"id"`
	TourID       string     `json:"tourId"`
	GuideID      string     `json:"guideId,omitempty"`
	Date         string     `json:"date"`
	Participants int        `json:"participants"`
	Status       string     `json:"status"`
	TotalPrice   float64    `json:"totalPrice"`
	Currency     string     `json:"currency,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
}

// BookingRequest is the body of a new booking.
type BookingRequest struct {
	TourID       string `json:"tourId"`
	Date         string `json:"date"`
	Participants int    `json:"participants"`
	Notes        string `json:"notes,omitempty"`
}

// BookingsAPI wraps the bookings endpoints.
type BookingsAPI struct {
	client *httpclient.Client
}

// NewBookingsAPI creates a BookingsAPI on top of the shared HTTP client.
func NewBookingsAPI(client *httpclient.Client) *BookingsAPI {
	return &BookingsAPI{client: client}
}

// List returns one page of the current user's bookings.
func (b *BookingsAPI) List(ctx context.Context, page, limit int) ([]Booking, *httpclient.Pagination, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	env, err := httpclient.DoJSON[[]Booking](ctx, b.client, httpclient.Request{
		Method: http.MethodGet,
		Path:   "/bookings",
		Query:  q,
	})
	if err != nil {
		return nil, nil, err
	}
	if env.Data == nil {
		env.Data = []Booking{}
	}
	return env.Data, env.Pagination, nil
}

// Create books a tour.
func (b *BookingsAPI) Create(ctx context.Context, req BookingRequest) (*Booking, error) {
	var booking Booking
	if err := b.client.Post(ctx, "/bookings", req, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

// Cancel cancels a booking by id.
func (b *BookingsAPI) Cancel(ctx context.Context, id string) error {
	return b.client.Patch(ctx, "/bookings/"+url.PathEscape(id)+"/cancel", nil, nil)
}
