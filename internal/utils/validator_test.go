package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Username string `json:"username" validate:"required,max=150,username"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func TestRequestValidator(t *testing.T) {
	rv := NewRequestValidator()

	assert.NoError(t, rv.Validate(&signup{Username: "imam.ali", Email: "a@b.org", Password: "long-enough"}))

	err := rv.Validate(&signup{Username: "a@b", Email: "nope", Password: "short"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, map[string]string{
		"username": "may contain only letters, digits and . _ + -",
		"email":    "must be a valid email address",
		"password": "must be at least 8 characters long",
	}, verr.Fields)
	assert.Equal(t, "validation failed: email: must be a valid email address, password: must be at least 8 characters long, username: may contain only letters, digits and . _ + -", err.Error())
}

func TestRequestValidator_Required(t *testing.T) {
	err := NewRequestValidator().Validate(&signup{})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "is required", verr.Fields["email"])
}
