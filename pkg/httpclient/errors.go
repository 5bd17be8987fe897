package httpclient

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	apperrors "github.com/pbengoa/Tourline-front-sub001/pkg/errors"
)

// backendErrorResponse covers the error body shapes the backend emits:
// {"error":{"code":"..","message":".."}}, {"error":".."} and {"message":".."}.
type backendErrorResponse struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
}

type backendErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParseResponseError translates a non-2xx status and body into an AppError.
// Structured {code, message} pairs are preserved; anything else falls back to
// the raw body text (truncated) as the message.
func ParseResponseError(status int, body []byte) *apperrors.AppError {
	code, message := extractError(body)
	return apperrors.FromResponse(status, code, message)
}

func extractError(body []byte) (code, message string) {
	var resp backendErrorResponse
	if len(body) == 0 {
		return "", ""
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", truncate(strings.TrimSpace(string(body)), 200)
	}

	if len(resp.Error) > 0 {
		var detail backendErrorDetail
		if json.Unmarshal(resp.Error, &detail) == nil && (detail.Code != "" || detail.Message != "") {
			return detail.Code, detail.Message
		}
		var text string
		if json.Unmarshal(resp.Error, &text) == nil && text != "" {
			return resp.Code, text
		}
	}
	return resp.Code, resp.Message
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
