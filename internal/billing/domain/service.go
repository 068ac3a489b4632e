package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	entitlementdomain "github.com/smallbiznis/filmbilling/internal/entitlement/domain"
	ledgerdomain "github.com/smallbiznis/filmbilling/internal/ledger/domain"
	"github.com/smallbiznis/filmbilling/pkg/db/pagination"
)

type PurchaseRequest struct {
	UserID         uuid.UUID
	FilmID         uuid.UUID
	PaymentMethod  ledgerdomain.PaymentMethod
	IdempotencyKey string
}

// PurchaseResult carries no confirmation URL when the film is already
// owned or free.
type PurchaseResult struct {
	ConfirmationURL *string
	TransactionID   *snowflake.ID
}

type RefundRequest struct {
	TransactionID  snowflake.ID
	UserID         uuid.UUID
	IdempotencyKey string
}

// TransactionDetails is a transaction with its receipts and the
// entitlement it currently backs, if any.
type TransactionDetails struct {
	Transaction ledgerdomain.Transaction
	Receipts    []ledgerdomain.ReceiptWithItems
	UserFilm    *entitlementdomain.UserFilm
}

// ListTransactionsRequest lists every user's transactions when UserID is nil.
type ListTransactionsRequest struct {
	UserID    *uuid.UUID
	PageToken string
	PageSize  int
}

type ListTransactionsResponse struct {
	Transactions []ledgerdomain.Transaction
	PageInfo     pagination.PageInfo
}

// Service is the only writer of ledger rows and entitlement activation.
type Service interface {
	Purchase(ctx context.Context, req PurchaseRequest) (PurchaseResult, error)
	Refund(ctx context.Context, req RefundRequest) (*ledgerdomain.Transaction, error)
	// ReconcilePayment re-reads the payment from the gateway and applies
	// its status. Unknown ids are acknowledged without changes.
	ReconcilePayment(ctx context.Context, extID string) error

	GetTransaction(ctx context.Context, id snowflake.ID) (*TransactionDetails, error)
	ListTransactions(ctx context.Context, req ListTransactionsRequest) (ListTransactionsResponse, error)
}
