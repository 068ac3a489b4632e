package service

import (
	"context"
	"fmt"
	"strings"

	billingdomain "github.com/smallbiznis/filmbilling/internal/billing/domain"
	ledgerdomain "github.com/smallbiznis/filmbilling/internal/ledger/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) ReconcilePayment(ctx context.Context, extID string) error {
	extID = strings.TrimSpace(extID)
	if extID == "" {
		return billingdomain.ErrInvalidExtID
	}
	log := s.logger(ctx).With(zap.String("ext_id", extID))

	payment, err := s.gateway.GetPayment(ctx, extID)
	if err != nil {
		s.obsMetrics.RecordWebhookEvent(ctx, "gateway_unavailable", "")
		return fmt.Errorf("%w: %v", billingdomain.ErrGatewayUnavailable, err)
	}

	transaction, err := s.ledger.FindTransactionByExtID(ctx, s.db, extID)
	if err != nil {
		return err
	}
	if transaction == nil {
		log.Warn("webhook for unknown transaction ignored", zap.String("gateway_status", string(payment.Status)))
		s.obsMetrics.RecordWebhookEvent(ctx, "unknown_transaction", string(payment.Status))
		return nil
	}

	status := payment.Status.TransactionStatus()
	activated := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		if err := s.ledger.UpdateTransactionStatus(ctx, tx, transaction.ID, status, now); err != nil {
			return err
		}
		if err := s.ledger.UpdateReceiptStatusByTransaction(ctx, tx, transaction.ID, ledgerdomain.ReceiptStatusFor(status), now); err != nil {
			return err
		}
		if status != ledgerdomain.TransactionStatusSucceeded || transaction.Type != ledgerdomain.TransactionTypePayment {
			return nil
		}

		userFilm, err := s.entitlements.FindByTransaction(ctx, tx, transaction.ID)
		if err != nil {
			return err
		}
		if userFilm == nil {
			log.Warn("succeeded payment has no linked entitlement", zap.String("transaction_id", transaction.ID.String()))
			return nil
		}
		if userFilm.IsActive {
			return nil
		}
		activated = true
		return s.entitlements.SetActive(ctx, tx, userFilm.ID, true, now)
	})
	if err != nil {
		s.obsMetrics.RecordWebhookEvent(ctx, "error", string(payment.Status))
		return err
	}

	log.Info("payment reconciled",
		zap.String("transaction_id", transaction.ID.String()),
		zap.String("status", string(status)),
		zap.Bool("entitlement_activated", activated),
	)
	s.obsMetrics.RecordWebhookEvent(ctx, "applied", string(payment.Status))
	return nil
}
