package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HandleYookassaWebhook reconciles the payment named in the callback. The
// body is not signed, so its status is ignored and the payment is re-read
// from the gateway.
func (s *Server) HandleYookassaWebhook(c *gin.Context) {
	var notification yookassaNotification
	if err := c.ShouldBindJSON(&notification); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	extID := strings.TrimSpace(notification.Object.ID)
	if extID == "" {
		s.log.Debug("notification without payment id ignored",
			zap.String("event", notification.Event),
		)
		c.Status(http.StatusOK)
		return
	}

	if err := s.billingSvc.ReconcilePayment(c.Request.Context(), extID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
