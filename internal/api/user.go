package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pbengoa/Tourline-front-sub001/internal/domain"
)

// userPayload accepts both camelCase and snake_case user documents.
type userPayload struct {
	ID                 json.RawMessage `json:"id"`
	MongoID            string          `json:"_id"`
	Email              string          `json:"email"`
	FirstName          *string         `json:"firstName"`
	FirstNameSnake     *string         `json:"first_name"`
	LastName           *string         `json:"lastName"`
	LastNameSnake      *string         `json:"last_name"`
	Role               string          `json:"role"`
	EmailVerified      *bool           `json:"emailVerified"`
	EmailVerifiedSnake *bool           `json:"email_verified"`
	IsVerified         *bool           `json:"isVerified"`
	Phone              string          `json:"phone"`
	AvatarURL          *string         `json:"avatarUrl"`
	AvatarURLSnake     *string         `json:"avatar_url"`
	CompanyName        *string         `json:"companyName"`
	CompanyNameSnake   *string         `json:"company_name"`
	CompanyID          json.RawMessage `json:"companyId"`
	CompanyIDSnake     json.RawMessage `json:"company_id"`
	CreatedAt          *time.Time      `json:"createdAt"`
	CreatedAtSnake     *time.Time      `json:"created_at"`
	UpdatedAt          *time.Time      `json:"updatedAt"`
	UpdatedAtSnake     *time.Time      `json:"updated_at"`
}

// NormalizeUser decodes a backend user document into a UserSnapshot.
func NormalizeUser(data []byte) (*domain.UserSnapshot, error) {
	var p userPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return p.snapshot()
}

func (p userPayload) snapshot() (*domain.UserSnapshot, error) {
	id := idString(p.ID)
	if id == "" {
		id = p.MongoID
	}
	if id == "" {
		return nil, fmt.Errorf("decode user: missing id")
	}

	return &domain.UserSnapshot{
		ID:            id,
		Email:         p.Email,
		FirstName:     firstString(p.FirstName, p.FirstNameSnake),
		LastName:      firstString(p.LastName, p.LastNameSnake),
		Role:          domain.NormalizeRole(p.Role),
		EmailVerified: firstBool(p.EmailVerified, p.EmailVerifiedSnake, p.IsVerified),
		Phone:         p.Phone,
		AvatarURL:     firstString(p.AvatarURL, p.AvatarURLSnake),
		CompanyName:   firstString(p.CompanyName, p.CompanyNameSnake),
		CompanyID:     firstNonEmpty(idString(p.CompanyID), idString(p.CompanyIDSnake)),
		CreatedAt:     firstTime(p.CreatedAt, p.CreatedAtSnake),
		UpdatedAt:     firstTime(p.UpdatedAt, p.UpdatedAtSnake),
	}, nil
}

// idString accepts string and numeric identifiers.
func idString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}

func firstString(vals ...*string) string {
	for _, v := range vals {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstBool(vals ...*bool) bool {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return false
}

func firstTime(vals ...*time.Time) *time.Time {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}
