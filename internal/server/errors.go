package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/filmbilling/internal/auth"
	"github.com/smallbiznis/filmbilling/internal/authorization"
	billingdomain "github.com/smallbiznis/filmbilling/internal/billing/domain"
	entitlementdomain "github.com/smallbiznis/filmbilling/internal/entitlement/domain"
	gatewaydomain "github.com/smallbiznis/filmbilling/internal/gateway/domain"
	"github.com/smallbiznis/filmbilling/internal/ratelimit"
	"github.com/smallbiznis/filmbilling/pkg/db/pagination"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Detail string `json:"detail"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrUntrustedHost      = errors.New("untrusted_host")

	// errWatchTargetNotFound carries the mark-as-watched wording of a
	// missing entitlement.
	errWatchTargetNotFound = errors.New("watch_target_not_found")
)

const (
	detailInternal           = "Internal server error."
	detailInvalidRequest     = "Invalid request."
	detailNotAuthenticated   = "Not authenticated."
	detailInvalidCredentials = "Incorrect username or password."
	detailNotAllowed         = "Not allowed."
	detailInvalidSignature   = "Invalid signature."
	detailTooManyRequests    = "Too many requests."
	detailInvalidHost        = "Invalid host header."
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
		if errors.Is(lastErr.Err, ErrInvalidCredentials) {
			c.Header("WWW-Authenticate", `Basic realm="internal"`)
		}
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, payload)
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorResponse) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, errorResponse{Detail: detailInternal}

	case isValidationError(err):
		return http.StatusUnprocessableEntity, errorResponse{Detail: detailInvalidRequest}
	case errors.Is(err, ErrUntrustedHost):
		return http.StatusBadRequest, errorResponse{Detail: detailInvalidHost}

	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, errorResponse{Detail: detailNotAuthenticated}
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{Detail: detailInvalidCredentials}
	case errors.Is(err, gatewaydomain.ErrInvalidSignature),
		errors.Is(err, gatewaydomain.ErrSignatureExpired):
		return http.StatusUnauthorized, errorResponse{Detail: detailInvalidSignature}
	case errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorResponse{Detail: detailNotAllowed}

	case errors.Is(err, billingdomain.ErrPermissionDenied):
		return http.StatusForbidden, errorResponse{Detail: "Permission denied."}
	case errors.Is(err, billingdomain.ErrTransactionNotFound):
		return http.StatusNotFound, errorResponse{Detail: "Unknown transaction."}
	case errors.Is(err, errWatchTargetNotFound):
		return http.StatusNotFound, errorResponse{Detail: "Film not found for user specified"}
	case errors.Is(err, entitlementdomain.ErrNotFound):
		return http.StatusNotFound, errorResponse{Detail: "User film not found."}
	case errors.Is(err, billingdomain.ErrIncorrectTransactionStatus):
		return http.StatusBadRequest, errorResponse{Detail: "Incorrect transaction status."}
	case errors.Is(err, billingdomain.ErrNotAvailableForRefund):
		return http.StatusBadRequest, errorResponse{Detail: "Not available for refund."}
	case errors.Is(err, billingdomain.ErrAlreadyWatched):
		return http.StatusBadRequest, errorResponse{Detail: "Not available because the film has already been watched."}

	case errors.Is(err, billingdomain.ErrCatalogUnavailable):
		return http.StatusFailedDependency, errorResponse{Detail: "Async API service error."}
	case errors.Is(err, billingdomain.ErrGatewayRefundRejected):
		return http.StatusFailedDependency, errorResponse{Detail: "Operation rejected. Please contact technical support."}
	case errors.Is(err, billingdomain.ErrGatewayUnavailable):
		return http.StatusFailedDependency, errorResponse{Detail: "Yookassa service error."}

	case errors.Is(err, ratelimit.ErrRateLimited),
		errors.Is(err, ratelimit.ErrBusy):
		return http.StatusTooManyRequests, errorResponse{Detail: detailTooManyRequests}

	default:
		return http.StatusInternalServerError, errorResponse{Detail: detailInternal}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, billingdomain.ErrInvalidPaymentMethod),
		errors.Is(err, billingdomain.ErrInvalidIdempotencyKey),
		errors.Is(err, billingdomain.ErrInvalidExtID),
		errors.Is(err, pagination.ErrInvalidPageToken):
		return true
	default:
		return false
	}
}

// classifyErrorForLog reports the error family and its stable code for the
// request log line.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	status, _ := mapError(err)
	if status >= http.StatusInternalServerError {
		return "internal_error", "internal"
	}

	code := err.Error()
	if unwrapped := errors.Unwrap(err); unwrapped != nil {
		code = unwrapped.Error()
	}

	switch {
	case status == http.StatusFailedDependency:
		return "dependency_error", code
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return "auth_error", code
	case status == http.StatusTooManyRequests:
		return "rate_limited", code
	default:
		return "client_error", code
	}
}
