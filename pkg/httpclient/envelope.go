package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	apperrors "github.com/pbengoa/Tourline-front-sub001/pkg/errors"
)

// Pagination is the optional paging block of list responses.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Envelope is the backend success envelope: {success, data, pagination?}.
type Envelope[T any] struct {
	Success    bool        `json:"success"`
	Data       T           `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Message    string      `json:"message,omitempty"`
}

// DoJSON sends req and decodes the envelope's data member into T.
// A 2xx answer with success=false is reported as a generic AppError.
func DoJSON[T any](ctx context.Context, c *Client, req Request) (*Envelope[T], error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	var env Envelope[T]
	if len(resp.Body) == 0 {
		env.Success = true
		return &env, nil
	}
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, fmt.Errorf("decode %s %s envelope: %w", req.Method, req.Path, err)
	}
	if !env.Success && hasSuccessField(resp.Body) {
		appErr := ParseResponseError(resp.StatusCode, resp.Body)
		appErr.Kind = apperrors.KindGeneric
		if appErr.Message == "" || appErr.Message == http.StatusText(resp.StatusCode) {
			appErr.Message = env.Message
		}
		return nil, appErr
	}
	return &env, nil
}

func hasSuccessField(body []byte) bool {
	var probe struct {
		Success *bool `json:"success"`
	}
	return json.Unmarshal(body, &probe) == nil && probe.Success != nil
}

// Get performs a GET and decodes the envelope data into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.call(ctx, Request{Method: http.MethodGet, Path: path}, out)
}

// Post performs a POST with a JSON body and decodes the envelope data into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Put performs a PUT with a JSON body and decodes the envelope data into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

// Patch performs a PATCH with a JSON body and decodes the envelope data into out.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, Request{Method: http.MethodPatch, Path: path, Body: body}, out)
}

// Delete performs a DELETE and decodes the envelope data into out.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.call(ctx, Request{Method: http.MethodDelete, Path: path}, out)
}

func (c *Client) call(ctx context.Context, req Request, out any) error {
	env, err := DoJSON[json.RawMessage](ctx, c, req)
	if err != nil {
		return err
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s data: %w", req.Method, req.Path, err)
	}
	return nil
}
