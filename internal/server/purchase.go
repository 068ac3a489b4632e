package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	billingdomain "github.com/smallbiznis/filmbilling/internal/billing/domain"
	ledgerdomain "github.com/smallbiznis/filmbilling/internal/ledger/domain"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	// headerIdempotenceKey is the spelling older clients send.
	headerIdempotenceKey = "Idempotence-Key"
)

func (s *Server) PurchaseFilm(c *gin.Context) {
	userID, err := userIDFromContext(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	filmID, err := parseUUIDParam(c, "film_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	idempotencyKey, err := idempotencyKeyFromHeader(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req purchaseRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}
	paymentType := strings.TrimSpace(req.PaymentType)
	if paymentType == "" {
		paymentType = string(ledgerdomain.PaymentMethodCard)
	}

	result, err := s.billingSvc.Purchase(c.Request.Context(), billingdomain.PurchaseRequest{
		UserID:         userID,
		FilmID:         filmID,
		PaymentMethod:  ledgerdomain.PaymentMethod(paymentType),
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, purchaseResponse{ConfirmationURL: result.ConfirmationURL})
}

func idempotencyKeyFromHeader(c *gin.Context) (string, error) {
	raw := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	if raw == "" {
		raw = strings.TrimSpace(c.GetHeader(headerIdempotenceKey))
	}
	key, err := uuid.Parse(raw)
	if err != nil {
		return "", billingdomain.ErrInvalidIdempotencyKey
	}
	return key.String(), nil
}
