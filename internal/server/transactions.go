package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	billingdomain "github.com/smallbiznis/filmbilling/internal/billing/domain"
	gatewaydomain "github.com/smallbiznis/filmbilling/internal/gateway/domain"
	"github.com/smallbiznis/filmbilling/pkg/db/pagination"
)

func (s *Server) RefundTransaction(c *gin.Context) {
	userID, err := userIDFromContext(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	transactionID, err := parseTransactionID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	idempotencyKey, err := idempotencyKeyFromHeader(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	refund, err := s.billingSvc.Refund(c.Request.Context(), billingdomain.RefundRequest{
		TransactionID:  transactionID,
		UserID:         userID,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTransactionResponse(*refund))
}

// ListUserTransactions lists the caller's own transactions, newest first.
func (s *Server) ListUserTransactions(c *gin.Context) {
	userID, err := userIDFromContext(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.listTransactions(c, &userID)
}

// GetSignedTransaction serves the page the gateway redirects to after
// payment. The link is authenticated by its signature instead of a token.
func (s *Server) GetSignedTransaction(c *gin.Context) {
	transactionID, err := parseTransactionID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	issuedAt, err := strconv.ParseInt(strings.TrimSpace(c.Query("date")), 10, 64)
	if err != nil {
		AbortWithError(c, gatewaydomain.ErrInvalidSignature)
		return
	}
	if err := s.signer.Verify(transactionID, c.Query("signature"), issuedAt); err != nil {
		AbortWithError(c, err)
		return
	}

	details, err := s.billingSvc.GetTransaction(c.Request.Context(), transactionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransactionDetailsResponse(details))
}

func (s *Server) AdminListTransactions(c *gin.Context) {
	s.listTransactions(c, nil)
}

func (s *Server) AdminGetTransaction(c *gin.Context) {
	transactionID, err := parseTransactionID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	details, err := s.billingSvc.GetTransaction(c.Request.Context(), transactionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransactionDetailsResponse(details))
}

func (s *Server) listTransactions(c *gin.Context, userID *uuid.UUID) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	res, err := s.billingSvc.ListTransactions(c.Request.Context(), billingdomain.ListTransactionsRequest{
		UserID:    userID,
		PageToken: page.PageToken,
		PageSize:  page.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toListTransactionsResponse(res))
}

func parseTransactionID(c *gin.Context) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("transaction_id")))
	if err != nil || id <= 0 {
		return 0, ErrInvalidRequest
	}
	return id, nil
}
