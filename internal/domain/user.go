package domain

import "time"

// UserSnapshot is the last-known user profile as returned by the backend
// after normalization. It is replaced wholesale, never merged.
type UserSnapshot struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	Role          Role       `json:"role"`
	EmailVerified bool       `json:"emailVerified"`
	Phone         string     `json:"phone,omitempty"`
	AvatarURL     string     `json:"avatarUrl,omitempty"`
	CompanyName   string     `json:"companyName,omitempty"`
	CompanyID     string     `json:"companyId,omitempty"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

// FullName joins first and last name.
func (u *UserSnapshot) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// IsAdmin reports whether the user holds the admin role.
func (u *UserSnapshot) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }

// IsGuide reports whether the user holds the guide role.
func (u *UserSnapshot) IsGuide() bool { return u != nil && u.Role == RoleGuide }

// IsTourist reports whether the user holds the tourist role.
func (u *UserSnapshot) IsTourist() bool { return u != nil && u.Role == RoleTourist }

// IsProvider reports whether the user holds the provider role.
func (u *UserSnapshot) IsProvider() bool { return u != nil && u.Role == RoleProvider }

// Credential is the persisted {token, user} pair of a signed-in session.
type Credential struct {
	Token string        `json:"token"`
	User  *UserSnapshot `json:"user"`
}

// Valid reports whether both halves of the pair are present.
func (c Credential) Valid() bool {
	return c.Token != "" && c.User != nil
}
