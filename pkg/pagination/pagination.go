package pagination

import (
	"fmt"
	"net/http"
	"strconv"

	apperrors "github.com/pbengoa/Tourline-front-sub001/pkg/errors"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds the page and limit query parameters.
type Params struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// DefaultParams returns the first page with the default limit.
func DefaultParams() Params {
	return Params{Page: 1, Limit: DefaultLimit}
}

// FromRequest reads ?page= and ?limit=. Absent values take defaults; values
// that are not positive integers are rejected. Limit is capped at MaxLimit.
func FromRequest(r *http.Request) (Params, error) {
	p := DefaultParams()
	q := r.URL.Query()

	if raw := q.Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return p, apperrors.InvalidInput(fmt.Sprintf("page must be a positive integer, got %q", raw))
		}
		p.Page = v
	}
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return p, apperrors.InvalidInput(fmt.Sprintf("limit must be a positive integer, got %q", raw))
		}
		p.Limit = min(v, MaxLimit)
	}
	return p, nil
}

// Result wraps one page of items for the agent's clients.
type Result[T any] struct {
	Data       []T  `json:"data"`
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// NewResult builds a Result. A negative total means the backend did not
// report one; the page is then assumed to be the last unless it is full.
func NewResult[T any](data []T, total int, params Params) Result[T] {
	if data == nil {
		data = []T{}
	}
	res := Result[T]{
		Data:    data,
		Page:    params.Page,
		Limit:   params.Limit,
		Total:   total,
		HasPrev: params.Page > 1,
	}
	if total < 0 {
		res.Total = (params.Page-1)*params.Limit + len(data)
		res.HasNext = len(data) == params.Limit
		res.TotalPages = params.Page
		if res.HasNext {
			res.TotalPages++
		}
		return res
	}

	res.TotalPages = total / params.Limit
	if total%params.Limit > 0 {
		res.TotalPages++
	}
	res.HasNext = params.Page < res.TotalPages
	return res
}
