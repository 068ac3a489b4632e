package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType separates money collected from money returned.
type TransactionType string

const (
	TransactionTypePayment TransactionType = "payment"
	TransactionTypeRefund  TransactionType = "refund"
)

// TransactionStatus is the lifecycle state of a Transaction. Created and
// failed are assigned locally, everything else mirrors the gateway.
type TransactionStatus string

const (
	TransactionStatusCreated           TransactionStatus = "created"
	TransactionStatusFailed            TransactionStatus = "failed"
	TransactionStatusPending           TransactionStatus = "pending"
	TransactionStatusWaitingForCapture TransactionStatus = "waiting_for_capture"
	TransactionStatusSucceeded         TransactionStatus = "succeeded"
	TransactionStatusCanceled          TransactionStatus = "canceled"
)

type PaymentMethod string

const (
	PaymentMethodCard      PaymentMethod = "card"
	PaymentMethodApplePay  PaymentMethod = "applepay"
	PaymentMethodGooglePay PaymentMethod = "googlepay"
	PaymentMethodQRCode    PaymentMethod = "QR-code"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodApplePay, PaymentMethodGooglePay, PaymentMethodQRCode:
		return true
	default:
		return false
	}
}

type ReceiptStatus string

const (
	ReceiptStatusCreated   ReceiptStatus = "created"
	ReceiptStatusFailed    ReceiptStatus = "failed"
	ReceiptStatusPending   ReceiptStatus = "pending"
	ReceiptStatusSucceeded ReceiptStatus = "succeeded"
	ReceiptStatusCanceled  ReceiptStatus = "canceled"
)

// ReceiptStatusFor projects a transaction status onto the receipt states.
func ReceiptStatusFor(status TransactionStatus) ReceiptStatus {
	switch status {
	case TransactionStatusPending, TransactionStatusWaitingForCapture:
		return ReceiptStatusPending
	case TransactionStatusSucceeded:
		return ReceiptStatusSucceeded
	case TransactionStatusCanceled:
		return ReceiptStatusCanceled
	case TransactionStatusFailed:
		return ReceiptStatusFailed
	default:
		return ReceiptStatusCreated
	}
}

type ItemType string

const (
	ItemTypeFilm         ItemType = "film"
	ItemTypeSubscription ItemType = "subscription"
)

// Transaction is a single money movement against the gateway.
type Transaction struct {
	ID            snowflake.ID      `json:"id" gorm:"primaryKey"`
	ExtID         *string           `json:"ext_id" gorm:"column:ext_id;type:text;uniqueIndex"`
	UserID        uuid.UUID         `json:"user_id" gorm:"type:uuid;not null;index"`
	Amount        decimal.Decimal   `json:"amount" gorm:"type:numeric(14,3);not null"`
	Type          TransactionType   `json:"type" gorm:"type:text;not null"`
	Status        TransactionStatus `json:"status" gorm:"type:text;not null"`
	PaymentMethod PaymentMethod     `json:"payment_method" gorm:"type:text;not null"`
	CreatedAt     time.Time         `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time         `json:"updated_at" gorm:"not null"`
}

func (Transaction) TableName() string { return "transactions" }

// Receipt groups the items billed under one transaction.
type Receipt struct {
	ID            snowflake.ID  `json:"id" gorm:"primaryKey"`
	ExtID         *string       `json:"ext_id" gorm:"column:ext_id;type:text"`
	TransactionID *snowflake.ID `json:"transaction_id" gorm:"index"`
	Status        ReceiptStatus `json:"status" gorm:"type:text;not null"`
	CreatedAt     time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time     `json:"updated_at" gorm:"not null"`
}

func (Receipt) TableName() string { return "receipts" }

// ReceiptItem is immutable once written.
type ReceiptItem struct {
	ID          snowflake.ID    `json:"id" gorm:"primaryKey"`
	ReceiptID   snowflake.ID    `json:"receipt_id" gorm:"not null;index"`
	Description string          `json:"description" gorm:"type:varchar(4096);not null"`
	Quantity    decimal.Decimal `json:"quantity" gorm:"type:numeric(14,3);not null"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:numeric(14,3);not null"`
	Type        ItemType        `json:"type" gorm:"type:text;not null"`
	CreatedAt   time.Time       `json:"created_at" gorm:"not null"`
}

func (ReceiptItem) TableName() string { return "receipt_items" }

// ReceiptWithItems is a receipt together with its lines.
type ReceiptWithItems struct {
	Receipt
	Items []ReceiptItem
}
