package server

import (
	"errors"
	"net/http"
	"testing"

	authdomain "github.com/market-dot-dev/studio-sub000/internal/auth/domain"
	"github.com/market-dot-dev/studio-sub000/internal/authorization"
	"github.com/market-dot-dev/studio-sub000/internal/config"
	organizationdomain "github.com/market-dot-dev/studio-sub000/internal/organization/domain"
	paymentdomain "github.com/market-dot-dev/studio-sub000/internal/payment/domain"
	subscriptiondomain "github.com/market-dot-dev/studio-sub000/internal/subscription/domain"
	tierdomain "github.com/market-dot-dev/studio-sub000/internal/tier/domain"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{ErrUnauthorized, http.StatusUnauthorized},
		{authdomain.ErrSessionExpired, http.StatusUnauthorized},
		{authorization.ErrForbidden, http.StatusForbidden},
		{organizationdomain.ErrOwnerRemoval, http.StatusForbidden},
		{tierdomain.ErrTierNotFound, http.StatusNotFound},
		{subscriptiondomain.ErrSubscriptionNotFound, http.StatusNotFound},
		{organizationdomain.ErrSlugTaken, http.StatusConflict},
		{subscriptiondomain.ErrAlreadySubscribed, http.StatusConflict},
		{paymentdomain.ErrDuplicateEvent, http.StatusConflict},
		{tierdomain.ErrInvalidPrice, http.StatusBadRequest},
		{subscriptiondomain.ErrNotCancellable, http.StatusBadRequest},
		{paymentdomain.ErrMalformedEvent, http.StatusBadRequest},
		{errors.New("database on fire"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			status, _ := mapError(tc.err)
			assert.Equal(t, tc.status, status)
		})
	}
}

func TestMapErrorValidation(t *testing.T) {
	status, payload := mapError(invalidRequestError())
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", payload.Type)
	assert.Len(t, payload.Errors, 1)
}

func TestMapErrorNeverLeaksInternalDetail(t *testing.T) {
	_, payload := mapError(errors.New("pq: connection refused at 10.0.0.3"))
	assert.Equal(t, "internal server error", payload.Message)
}

func TestSlugFromHost(t *testing.T) {
	s := &Server{cfg: config.Config{RootDomain: "market.dev"}}

	assert.Equal(t, "acme", s.slugFromHost("acme.market.dev"))
	assert.Equal(t, "acme", s.slugFromHost("ACME.market.dev:8080"))
	assert.Equal(t, "", s.slugFromHost("market.dev"))
	assert.Equal(t, "", s.slugFromHost("a.b.market.dev"))
	assert.Equal(t, "", s.slugFromHost("evil.com"))

	bare := &Server{cfg: config.Config{}}
	assert.Equal(t, "", bare.slugFromHost("acme.market.dev"))
}
