package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignupRequestValidate(t *testing.T) {
	t.Parallel()

	valid := SignupRequest{Username: "ironman", Email: "ironman@ex.com", Password: "123456"}
	field, _ := valid.Validate()
	assert.Empty(t, field)

	short := valid
	short.Username = "tony"
	field, msg := short.Validate()
	assert.Equal(t, "username", field)
	assert.Contains(t, msg, "between 5 and 16")

	badEmail := valid
	badEmail.Email = "not-an-email"
	field, _ = badEmail.Validate()
	assert.Equal(t, "email", field)

	named := valid
	named.Email = "Tony <ironman@ex.com>"
	field, _ = named.Validate()
	assert.Equal(t, "email", field)

	weak := valid
	weak.Password = "123"
	field, _ = weak.Validate()
	assert.Equal(t, "password", field)
}

func TestLoginRequestIdentifier(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a@x.com", LoginRequest{Email: " A@x.com "}.Identifier())
	assert.Equal(t, "a@x.com", LoginRequest{Username: "A@X.com"}.Identifier())
}

func TestContactRequestValidate(t *testing.T) {
	t.Parallel()

	req := ContactRequest{
		Name:     "Peter",
		Surname:  "Parker",
		Email:    "peter@dailybugle.com",
		Phone:    "+380501234567",
		Birthday: "2001-08-10",
		City:     "New York",
		Notes:    "friendly neighbour",
	}
	field, _ := req.Validate()
	assert.Empty(t, field)

	req.Birthday = "10.08.2001"
	field, _ = req.Validate()
	assert.Equal(t, "birthday", field)

	req.Birthday = "2001-08-10"
	req.Phone = "123"
	field, _ = req.Validate()
	assert.Equal(t, "phone", field)
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	role, ok := ParseRole(" Moderator ")
	assert.True(t, ok)
	assert.Equal(t, RoleModerator, role)

	_, ok = ParseRole("editor")
	assert.False(t, ok)
}
