package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cenkalti/backoff/v5"
	billingdomain "github.com/smallbiznis/filmbilling/internal/billing/domain"
	catalogdomain "github.com/smallbiznis/filmbilling/internal/catalog/domain"
	"github.com/smallbiznis/filmbilling/internal/clock"
	"github.com/smallbiznis/filmbilling/internal/config"
	entitlementdomain "github.com/smallbiznis/filmbilling/internal/entitlement/domain"
	gatewaydomain "github.com/smallbiznis/filmbilling/internal/gateway/domain"
	ledgerdomain "github.com/smallbiznis/filmbilling/internal/ledger/domain"
	obslogger "github.com/smallbiznis/filmbilling/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/filmbilling/internal/observability/metrics"
	"github.com/smallbiznis/filmbilling/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Ledger       ledgerdomain.Repository
	Entitlements entitlementdomain.Repository
	Catalog      catalogdomain.Client
	Gateway      gatewaydomain.Gateway
	Guard        *ratelimit.PurchaseGuard  `optional:"true"`
	Retry        *config.RetryPolicyHolder `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics       `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	ledger       ledgerdomain.Repository
	entitlements entitlementdomain.Repository
	catalog      catalogdomain.Client
	gateway      gatewaydomain.Gateway
	guard        *ratelimit.PurchaseGuard
	retry        *config.RetryPolicyHolder
	obsMetrics   *obsmetrics.Metrics
}

func New(p Params) billingdomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("billing.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		ledger:       p.Ledger,
		entitlements: p.Entitlements,
		catalog:      p.Catalog,
		gateway:      p.Gateway,
		guard:        p.Guard,
		retry:        p.Retry,
		obsMetrics:   p.ObsMetrics,
	}
}

func (s *Service) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

// insertLedger writes a transaction with one receipt and its items. The
// caller owns the unit of work.
func (s *Service) insertLedger(ctx context.Context, tx *gorm.DB, transaction *ledgerdomain.Transaction, receipt *ledgerdomain.Receipt, items []ledgerdomain.ReceiptItem) error {
	if err := s.ledger.InsertTransaction(ctx, tx, transaction); err != nil {
		return err
	}
	if err := s.ledger.InsertReceipt(ctx, tx, receipt); err != nil {
		return err
	}
	return s.ledger.InsertReceiptItems(ctx, tx, items)
}

// persistAfterGateway commits writes that follow a successful gateway
// call. Money has already moved, so a failure is retried and then logged
// instead of being surfaced to the caller.
func (s *Service) persistAfterGateway(ctx context.Context, operation string, fn func(tx *gorm.DB) error) {
	ctx = context.WithoutCancel(ctx)
	policy := s.retry.Get()

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = policy.InitialInterval
	expo.Multiplier = policy.Multiplier
	expo.MaxInterval = policy.MaxInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := s.db.WithContext(ctx).Transaction(fn)
		if errors.Is(err, ledgerdomain.ErrNoRowsUpdated) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(expo),
		backoff.WithMaxElapsedTime(policy.MaxElapsedTime),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger(ctx).Warn("retrying post-gateway write",
				zap.String("operation", operation),
				zap.Duration("next", next),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		s.logger(ctx).Error("post-gateway write lost",
			zap.String("operation", operation),
			zap.Error(err),
		)
	}
}
