package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	billingdomain "github.com/smallbiznis/filmbilling/internal/billing/domain"
	entitlementdomain "github.com/smallbiznis/filmbilling/internal/entitlement/domain"
	gatewaydomain "github.com/smallbiznis/filmbilling/internal/gateway/domain"
	ledgerdomain "github.com/smallbiznis/filmbilling/internal/ledger/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) Refund(ctx context.Context, req billingdomain.RefundRequest) (*ledgerdomain.Transaction, error) {
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if req.IdempotencyKey == "" {
		return nil, billingdomain.ErrInvalidIdempotencyKey
	}

	release, err := s.guard.LockRefund(ctx, req.TransactionID)
	if err != nil {
		s.obsMetrics.RecordRefund(ctx, "busy")
		return nil, err
	}
	defer release()

	payment, err := s.ledger.FindTransactionByID(ctx, s.db, req.TransactionID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, billingdomain.ErrTransactionNotFound
	}

	var userFilm *entitlementdomain.UserFilm
	if payment.Type == ledgerdomain.TransactionTypePayment {
		userFilm, err = s.entitlements.FindByTransaction(ctx, s.db, payment.ID)
		if err != nil {
			return nil, err
		}
	}
	if err := validateRefund(payment, userFilm, req.UserID); err != nil {
		s.obsMetrics.RecordRefund(ctx, "rejected_locally")
		return nil, err
	}

	originals, err := s.ledger.ListReceiptsByTransaction(ctx, s.db, payment.ID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	refund := &ledgerdomain.Transaction{
		ID:            s.genID.Generate(),
		UserID:        payment.UserID,
		Amount:        payment.Amount,
		Type:          ledgerdomain.TransactionTypeRefund,
		Status:        ledgerdomain.TransactionStatusCreated,
		PaymentMethod: payment.PaymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	receipt := &ledgerdomain.Receipt{
		ID:            s.genID.Generate(),
		TransactionID: &refund.ID,
		Status:        ledgerdomain.ReceiptStatusCreated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	items := make([]ledgerdomain.ReceiptItem, 0)
	for _, original := range originals {
		for _, item := range original.Items {
			items = append(items, ledgerdomain.ReceiptItem{
				ID:          s.genID.Generate(),
				ReceiptID:   receipt.ID,
				Description: item.Description,
				Quantity:    item.Quantity,
				Amount:      item.Amount,
				Type:        item.Type,
				CreatedAt:   now,
			})
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.insertLedger(ctx, tx, refund, receipt, items)
	})
	if err != nil {
		s.obsMetrics.RecordRefund(ctx, "error")
		return nil, err
	}

	log := s.logger(ctx).With(
		zap.String("transaction_id", payment.ID.String()),
		zap.String("refund_transaction_id", refund.ID.String()),
	)

	result, err := s.gateway.Refund(ctx, ToMajorUnits(refund.Amount), *payment.ExtID, req.IdempotencyKey)
	if err != nil {
		log.Warn("refund not initiated", zap.Error(err))
		s.obsMetrics.RecordRefund(ctx, "gateway_unavailable")
		return nil, fmt.Errorf("%w: %v", billingdomain.ErrGatewayUnavailable, err)
	}
	if result.Status == gatewaydomain.StatusCanceled {
		log.Warn("refund rejected by gateway", zap.String("reason", result.CancellationReason))
		s.obsMetrics.RecordRefund(ctx, "rejected")
		return nil, billingdomain.ErrGatewayRefundRejected
	}

	refund.Status = result.Status.TransactionStatus()
	refund.UpdatedAt = s.clock.Now()
	if result.ID != "" {
		extID := result.ID
		refund.ExtID = &extID
	}

	s.persistAfterGateway(ctx, "refund.apply", func(tx *gorm.DB) error {
		if refund.ExtID != nil {
			if err := s.ledger.SetTransactionExtID(ctx, tx, refund.ID, *refund.ExtID, refund.UpdatedAt); err != nil {
				return err
			}
		}
		if err := s.ledger.UpdateTransactionStatus(ctx, tx, refund.ID, refund.Status, refund.UpdatedAt); err != nil {
			return err
		}
		if err := s.ledger.UpdateReceiptStatusByTransaction(ctx, tx, refund.ID, ledgerdomain.ReceiptStatusFor(refund.Status), refund.UpdatedAt); err != nil {
			return err
		}
		// the entitlement follows the refund so a late payment webhook
		// cannot reactivate it
		if err := s.entitlements.SetTransaction(ctx, tx, userFilm.ID, refund.ID, refund.UpdatedAt); err != nil {
			return err
		}
		return s.entitlements.SetActive(ctx, tx, userFilm.ID, false, refund.UpdatedAt)
	})

	log.Info("refund accepted", zap.String("status", string(refund.Status)))
	s.obsMetrics.RecordRefund(ctx, string(refund.Status))
	return refund, nil
}

// validateRefund applies the refund checks in a fixed order; the first
// failure wins.
func validateRefund(payment *ledgerdomain.Transaction, userFilm *entitlementdomain.UserFilm, userID uuid.UUID) error {
	if payment.UserID != userID {
		return billingdomain.ErrPermissionDenied
	}
	if payment.Status != ledgerdomain.TransactionStatusSucceeded {
		return billingdomain.ErrIncorrectTransactionStatus
	}
	if payment.ExtID == nil || strings.TrimSpace(*payment.ExtID) == "" || userFilm == nil || !userFilm.IsActive {
		return billingdomain.ErrNotAvailableForRefund
	}
	if userFilm.Watched {
		return billingdomain.ErrAlreadyWatched
	}
	return nil
}
