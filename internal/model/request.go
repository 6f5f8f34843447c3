package model

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *SignupRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = NormalizeEmail(r.Email)
}

// Validate returns the offending field name and a message, or empty strings.
func (r SignupRequest) Validate() (string, string) {
	if msg := checkLength(r.Username, 5, 16); msg != "" {
		return "username", msg
	}
	if !IsValidEmail(r.Email) {
		return "email", "must be a valid email address"
	}
	// bcrypt only looks at the first 72 bytes.
	if len(r.Password) < 6 || len(r.Password) > 72 {
		return "password", "must be between 6 and 72 bytes"
	}
	return "", ""
}

type LoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Identifier returns the login key. Form logins carry the email in "username".
func (r LoginRequest) Identifier() string {
	if strings.TrimSpace(r.Email) != "" {
		return NormalizeEmail(r.Email)
	}
	return NormalizeEmail(r.Username)
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

type ContactRequest struct {
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Birthday string `json:"birthday"`
	City     string `json:"city"`
	Notes    string `json:"notes"`
}

func (r *ContactRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Surname = strings.TrimSpace(r.Surname)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Birthday = strings.TrimSpace(r.Birthday)
	r.City = strings.TrimSpace(r.City)
	r.Notes = strings.TrimSpace(r.Notes)
}

func (r ContactRequest) Validate() (string, string) {
	checks := []struct {
		field    string
		value    string
		min, max int
	}{
		{"name", r.Name, 3, 50},
		{"surname", r.Surname, 3, 100},
		{"email", r.Email, 3, 50},
		{"phone", r.Phone, 5, 20},
		{"city", r.City, 3, 50},
		{"notes", r.Notes, 3, 300},
	}
	for _, c := range checks {
		if msg := checkLength(c.value, c.min, c.max); msg != "" {
			return c.field, msg
		}
	}
	if _, err := time.Parse(time.DateOnly, r.Birthday); err != nil {
		return "birthday", "must be a date in YYYY-MM-DD format"
	}
	return "", ""
}

func (r ContactRequest) ToContact(userID int64) Contact {
	return Contact{
		UserID:   userID,
		Name:     r.Name,
		Surname:  r.Surname,
		Email:    r.Email,
		Phone:    r.Phone,
		Birthday: r.Birthday,
		City:     r.City,
		Notes:    r.Notes,
	}
}

func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func IsValidEmail(raw string) bool {
	addr, err := mail.ParseAddress(raw)
	return err == nil && addr.Address == raw
}

func checkLength(value string, min int, max int) string {
	n := utf8.RuneCountInString(value)
	if n < min || n > max {
		return fmt.Sprintf("must be between %d and %d characters", min, max)
	}
	return ""
}
