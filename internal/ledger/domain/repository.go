package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrInvalidType   = errors.New("invalid_transaction_type")
	ErrNoRowsUpdated = errors.New("no_rows_updated")
)

// TransactionFilter narrows a newest-first listing. AfterID is the last id
// of the previous page.
type TransactionFilter struct {
	UserID  *uuid.UUID
	AfterID *snowflake.ID
}

// Repository persists ledger rows. It holds no business rules; every
// method runs on the handle it is given so callers decide the unit of work.
type Repository interface {
	InsertTransaction(ctx context.Context, db *gorm.DB, tx *Transaction) error
	InsertReceipt(ctx context.Context, db *gorm.DB, receipt *Receipt) error
	InsertReceiptItems(ctx context.Context, db *gorm.DB, items []ReceiptItem) error

	FindTransactionByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Transaction, error)
	FindTransactionByExtID(ctx context.Context, db *gorm.DB, extID string) (*Transaction, error)
	ListReceiptsByTransaction(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) ([]ReceiptWithItems, error)
	ListTransactions(ctx context.Context, db *gorm.DB, filter TransactionFilter, limit int) ([]Transaction, error)

	// ListStalePayments returns payments registered at the gateway that are
	// not final and were last touched before updatedBefore, oldest first.
	ListStalePayments(ctx context.Context, db *gorm.DB, updatedBefore, createdAfter time.Time, limit int) ([]Transaction, error)
	SetTransactionExtID(ctx context.Context, db *gorm.DB, id snowflake.ID, extID string, updatedAt time.Time) error
	UpdateTransactionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status TransactionStatus, updatedAt time.Time) error
	UpdateReceiptStatusByTransaction(ctx context.Context, db *gorm.DB, transactionID snowflake.ID, status ReceiptStatus, updatedAt time.Time) error
}
