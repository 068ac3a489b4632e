package server

import (
	"time"

	"github.com/shopspring/decimal"
	billingdomain "github.com/smallbiznis/filmbilling/internal/billing/domain"
	entitlementdomain "github.com/smallbiznis/filmbilling/internal/entitlement/domain"
	ledgerdomain "github.com/smallbiznis/filmbilling/internal/ledger/domain"
	"github.com/smallbiznis/filmbilling/pkg/db/pagination"
)

type purchaseRequest struct {
	PaymentType string `json:"payment_type"`
}

type purchaseResponse struct {
	ConfirmationURL *string `json:"confirmation_url"`
}

// yookassaNotification is the gateway callback body. Only object.id is
// trusted; the status is re-read from the gateway.
type yookassaNotification struct {
	Type   string `json:"type"`
	Event  string `json:"event"`
	Object struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Paid   bool   `json:"paid"`
	} `json:"object"`
}

// Amounts are minor currency units.
type transactionResponse struct {
	ID            string    `json:"id"`
	ExtID         *string   `json:"ext_id"`
	UserID        string    `json:"user_id"`
	Amount        int64     `json:"amount"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
	PaymentMethod string    `json:"payment_type"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type receiptItemResponse struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Amount      int64           `json:"amount"`
	Type        string          `json:"type"`
}

type receiptResponse struct {
	ID     string                `json:"id"`
	Status string                `json:"status"`
	Items  []receiptItemResponse `json:"items"`
}

type userFilmResponse struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	FilmID   string `json:"film_id"`
	Watched  bool   `json:"watched"`
	IsActive bool   `json:"is_active"`
}

type transactionDetailsResponse struct {
	transactionResponse
	Receipts []receiptResponse `json:"receipts"`
	UserFilm *userFilmResponse `json:"user_film"`
}

type listTransactionsResponse struct {
	Data     []transactionResponse `json:"data"`
	PageInfo pagination.PageInfo   `json:"page_info"`
}

func toTransactionResponse(t ledgerdomain.Transaction) transactionResponse {
	return transactionResponse{
		ID:            t.ID.String(),
		ExtID:         t.ExtID,
		UserID:        t.UserID.String(),
		Amount:        t.Amount.IntPart(),
		Type:          string(t.Type),
		Status:        string(t.Status),
		PaymentMethod: string(t.PaymentMethod),
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func toReceiptResponse(r ledgerdomain.ReceiptWithItems) receiptResponse {
	items := make([]receiptItemResponse, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, receiptItemResponse{
			ID:          item.ID.String(),
			Description: item.Description,
			Quantity:    item.Quantity,
			Amount:      item.Amount.IntPart(),
			Type:        string(item.Type),
		})
	}
	return receiptResponse{
		ID:     r.ID.String(),
		Status: string(r.Status),
		Items:  items,
	}
}

func toUserFilmResponse(u *entitlementdomain.UserFilm) *userFilmResponse {
	if u == nil {
		return nil
	}
	return &userFilmResponse{
		ID:       u.ID.String(),
		UserID:   u.UserID.String(),
		FilmID:   u.FilmID.String(),
		Watched:  u.Watched,
		IsActive: u.IsActive,
	}
}

func toTransactionDetailsResponse(d *billingdomain.TransactionDetails) transactionDetailsResponse {
	receipts := make([]receiptResponse, 0, len(d.Receipts))
	for _, receipt := range d.Receipts {
		receipts = append(receipts, toReceiptResponse(receipt))
	}
	return transactionDetailsResponse{
		transactionResponse: toTransactionResponse(d.Transaction),
		Receipts:            receipts,
		UserFilm:            toUserFilmResponse(d.UserFilm),
	}
}

func toListTransactionsResponse(res billingdomain.ListTransactionsResponse) listTransactionsResponse {
	data := make([]transactionResponse, 0, len(res.Transactions))
	for _, t := range res.Transactions {
		data = append(data, toTransactionResponse(t))
	}
	return listTransactionsResponse{Data: data, PageInfo: res.PageInfo}
}
