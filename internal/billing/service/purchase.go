package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	billingdomain "github.com/smallbiznis/filmbilling/internal/billing/domain"
	entitlementdomain "github.com/smallbiznis/filmbilling/internal/entitlement/domain"
	ledgerdomain "github.com/smallbiznis/filmbilling/internal/ledger/domain"
	pkgdb "github.com/smallbiznis/filmbilling/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) Purchase(ctx context.Context, req billingdomain.PurchaseRequest) (billingdomain.PurchaseResult, error) {
	if !req.PaymentMethod.Valid() {
		return billingdomain.PurchaseResult{}, billingdomain.ErrInvalidPaymentMethod
	}
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if req.IdempotencyKey == "" {
		return billingdomain.PurchaseResult{}, billingdomain.ErrInvalidIdempotencyKey
	}

	if err := s.guard.AllowPurchase(ctx, req.UserID); err != nil {
		s.obsMetrics.RecordPurchase(ctx, "rate_limited")
		return billingdomain.PurchaseResult{}, err
	}
	release, err := s.guard.LockPurchase(ctx, req.UserID, req.FilmID)
	if err != nil {
		s.obsMetrics.RecordPurchase(ctx, "busy")
		return billingdomain.PurchaseResult{}, err
	}
	defer release()

	log := s.logger(ctx).With(
		zap.String("user_id", req.UserID.String()),
		zap.String("film_id", req.FilmID.String()),
	)

	userFilm, owned, err := s.getOrCreateUserFilm(ctx, req.UserID, req.FilmID)
	if err != nil {
		return billingdomain.PurchaseResult{}, err
	}
	if owned {
		log.Info("film already purchased")
		s.obsMetrics.RecordPurchase(ctx, "already_purchased")
		return billingdomain.PurchaseResult{}, nil
	}

	film, err := s.catalog.GetFilm(ctx, req.FilmID)
	if err != nil {
		s.obsMetrics.RecordPurchase(ctx, "catalog_unavailable")
		return billingdomain.PurchaseResult{}, fmt.Errorf("%w: %v", billingdomain.ErrCatalogUnavailable, err)
	}
	if film.Price <= 0 {
		log.Info("free film, skipping gateway")
		s.obsMetrics.RecordPurchase(ctx, "free")
		return billingdomain.PurchaseResult{}, nil
	}

	now := s.clock.Now()
	price := decimal.NewFromInt(film.Price)
	transaction := &ledgerdomain.Transaction{
		ID:            s.genID.Generate(),
		UserID:        req.UserID,
		Amount:        price,
		Type:          ledgerdomain.TransactionTypePayment,
		Status:        ledgerdomain.TransactionStatusCreated,
		PaymentMethod: req.PaymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	receipt := &ledgerdomain.Receipt{
		ID:            s.genID.Generate(),
		TransactionID: &transaction.ID,
		Status:        ledgerdomain.ReceiptStatusCreated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	items := []ledgerdomain.ReceiptItem{{
		ID:          s.genID.Generate(),
		ReceiptID:   receipt.ID,
		Description: film.Title,
		Quantity:    decimal.NewFromInt(1),
		Amount:      price,
		Type:        ledgerdomain.ItemTypeFilm,
		CreatedAt:   now,
	}}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.insertLedger(ctx, tx, transaction, receipt, items)
	})
	if err != nil {
		s.obsMetrics.RecordPurchase(ctx, "error")
		return billingdomain.PurchaseResult{}, err
	}

	payment, err := s.gateway.Pay(ctx, ToMajorUnits(price), transaction.ID, req.IdempotencyKey)
	if err != nil {
		log.Warn("payment not initiated", zap.String("transaction_id", transaction.ID.String()), zap.Error(err))
		s.obsMetrics.RecordPurchase(ctx, "gateway_unavailable")
		return billingdomain.PurchaseResult{}, fmt.Errorf("%w: %v", billingdomain.ErrGatewayUnavailable, err)
	}

	s.persistAfterGateway(ctx, "purchase.link_payment", func(tx *gorm.DB) error {
		updatedAt := s.clock.Now()
		if err := s.ledger.SetTransactionExtID(ctx, tx, transaction.ID, payment.ID, updatedAt); err != nil {
			return err
		}
		return s.entitlements.SetTransaction(ctx, tx, userFilm.ID, transaction.ID, updatedAt)
	})

	log.Info("payment initiated",
		zap.String("transaction_id", transaction.ID.String()),
		zap.String("ext_id", payment.ID),
	)
	s.obsMetrics.RecordPurchase(ctx, "initiated")

	result := billingdomain.PurchaseResult{TransactionID: &transaction.ID}
	if payment.ConfirmationURL != "" {
		confirmationURL := payment.ConfirmationURL
		result.ConfirmationURL = &confirmationURL
	}
	return result, nil
}

// getOrCreateUserFilm reports owned=true when the entitlement is already
// active, or when a concurrent purchase inserted it first.
func (s *Service) getOrCreateUserFilm(ctx context.Context, userID, filmID uuid.UUID) (*entitlementdomain.UserFilm, bool, error) {
	userFilm, err := s.entitlements.Find(ctx, s.db, userID, filmID)
	if err != nil {
		return nil, false, err
	}
	if userFilm != nil {
		return userFilm, userFilm.IsActive, nil
	}

	now := s.clock.Now()
	userFilm = &entitlementdomain.UserFilm{
		ID:        s.genID.Generate(),
		UserID:    userID,
		FilmID:    filmID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.entitlements.Insert(ctx, s.db, userFilm); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			s.logger(ctx).Info("concurrent purchase detected",
				zap.String("user_id", userID.String()),
				zap.String("film_id", filmID.String()),
			)
			return nil, true, nil
		}
		return nil, false, err
	}
	return userFilm, false, nil
}
