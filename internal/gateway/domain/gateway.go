package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/filmbilling/internal/ledger/domain"
)

var (
	ErrUnavailable      = errors.New("gateway_unavailable")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrSignatureExpired = errors.New("signature_expired")
	ErrInvalidConfig    = errors.New("invalid_gateway_config")
)

// Status values reported by the payment gateway.
type Status string

const (
	StatusPending           Status = "pending"
	StatusWaitingForCapture Status = "waiting_for_capture"
	StatusSucceeded         Status = "succeeded"
	StatusCanceled          Status = "canceled"
)

// TransactionStatus maps a gateway status onto the ledger. Anything the
// gateway invents later is treated as failed.
func (s Status) TransactionStatus() ledgerdomain.TransactionStatus {
	switch s {
	case StatusPending:
		return ledgerdomain.TransactionStatusPending
	case StatusWaitingForCapture:
		return ledgerdomain.TransactionStatusWaitingForCapture
	case StatusSucceeded:
		return ledgerdomain.TransactionStatusSucceeded
	case StatusCanceled:
		return ledgerdomain.TransactionStatusCanceled
	default:
		return ledgerdomain.TransactionStatusFailed
	}
}

type Payment struct {
	ID              string
	Status          Status
	Paid            bool
	ConfirmationURL string
}

type Refund struct {
	ID                 string
	Status             Status
	CancellationReason string
}

// Gateway is the outbound payment provider. Amounts are in major units.
type Gateway interface {
	Pay(ctx context.Context, amount decimal.Decimal, transactionID snowflake.ID, idempotencyKey string) (Payment, error)
	GetPayment(ctx context.Context, extID string) (Payment, error)
	Refund(ctx context.Context, amount decimal.Decimal, paymentExtID string, idempotencyKey string) (Refund, error)
}
