package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	authdomain "github.com/market-dot-dev/studio-sub000/internal/auth/domain"
	"github.com/market-dot-dev/studio-sub000/internal/authorization"
	chargedomain "github.com/market-dot-dev/studio-sub000/internal/charge/domain"
	organizationdomain "github.com/market-dot-dev/studio-sub000/internal/organization/domain"
	paymentdomain "github.com/market-dot-dev/studio-sub000/internal/payment/domain"
	prospectdomain "github.com/market-dot-dev/studio-sub000/internal/prospect/domain"
	subscriptiondomain "github.com/market-dot-dev/studio-sub000/internal/subscription/domain"
	tierdomain "github.com/market-dot-dev/studio-sub000/internal/tier/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: err.Error()}

	case errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, organizationdomain.ErrNotOwner),
		errors.Is(err, organizationdomain.ErrOwnerRemoval):
		return http.StatusForbidden, errorPayload{Type: "forbidden", Message: err.Error()}

	case errors.Is(err, organizationdomain.ErrOrganizationNotFound),
		errors.Is(err, organizationdomain.ErrMemberNotFound),
		errors.Is(err, organizationdomain.ErrInviteNotFound),
		errors.Is(err, authdomain.ErrUserNotFound),
		errors.Is(err, tierdomain.ErrTierNotFound),
		errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, chargedomain.ErrChargeNotFound):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: err.Error()}

	case errors.Is(err, organizationdomain.ErrSlugTaken),
		errors.Is(err, organizationdomain.ErrMemberExists),
		errors.Is(err, authdomain.ErrEmailTaken),
		errors.Is(err, subscriptiondomain.ErrAlreadySubscribed),
		errors.Is(err, paymentdomain.ErrDuplicateEvent):
		return http.StatusConflict, errorPayload{Type: "conflict", Message: err.Error()}

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, organizationdomain.ErrInvalidRole),
		errors.Is(err, organizationdomain.ErrNoConnectedAccount),
		errors.Is(err, tierdomain.ErrInvalidCadence),
		errors.Is(err, tierdomain.ErrInvalidPrice),
		errors.Is(err, tierdomain.ErrNotPublished),
		errors.Is(err, subscriptiondomain.ErrNotCancellable),
		errors.Is(err, subscriptiondomain.ErrNotReactivatable),
		errors.Is(err, subscriptiondomain.ErrTierNotSellable),
		errors.Is(err, subscriptiondomain.ErrOneTimeTier),
		errors.Is(err, chargedomain.ErrNotOneTimeTier),
		errors.Is(err, chargedomain.ErrTierNotSellable),
		errors.Is(err, prospectdomain.ErrInvalidEmail),
		errors.Is(err, paymentdomain.ErrMalformedEvent):
		return http.StatusBadRequest, errorPayload{Type: "invalid_request", Message: err.Error()}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}
