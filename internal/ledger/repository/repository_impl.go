package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/filmbilling/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, tx *domain.Transaction) error {
	if !tx.Amount.IsPositive() {
		return domain.ErrInvalidAmount
	}
	if tx.Type != domain.TransactionTypePayment && tx.Type != domain.TransactionTypeRefund {
		return domain.ErrInvalidType
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO transactions (
			id, ext_id, user_id, amount, type, status, payment_method, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		tx.ExtID,
		tx.UserID,
		tx.Amount,
		tx.Type,
		tx.Status,
		tx.PaymentMethod,
		tx.CreatedAt,
		tx.UpdatedAt,
	).Error
}

func (r *repo) InsertReceipt(ctx context.Context, db *gorm.DB, receipt *domain.Receipt) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO receipts (id, ext_id, transaction_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		receipt.ID,
		receipt.ExtID,
		receipt.TransactionID,
		receipt.Status,
		receipt.CreatedAt,
		receipt.UpdatedAt,
	).Error
}

func (r *repo) InsertReceiptItems(ctx context.Context, db *gorm.DB, items []domain.ReceiptItem) error {
	for _, item := range items {
		err := db.WithContext(ctx).Exec(
			`INSERT INTO receipt_items (id, receipt_id, description, quantity, amount, type, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.ID,
			item.ReceiptID,
			item.Description,
			item.Quantity,
			item.Amount,
			item.Type,
			item.CreatedAt,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

const transactionColumns = `id, ext_id, user_id, amount, type, status, payment_method, created_at, updated_at`

func (r *repo) FindTransactionByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Transaction, error) {
	var item domain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT `+transactionColumns+`
		 FROM transactions
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindTransactionByExtID(ctx context.Context, db *gorm.DB, extID string) (*domain.Transaction, error) {
	var item domain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT `+transactionColumns+`
		 FROM transactions
		 WHERE ext_id = ?
		 LIMIT 1`,
		extID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListReceiptsByTransaction(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) ([]domain.ReceiptWithItems, error) {
	var receipts []domain.Receipt
	err := db.WithContext(ctx).Raw(
		`SELECT id, ext_id, transaction_id, status, created_at, updated_at
		 FROM receipts
		 WHERE transaction_id = ?
		 ORDER BY id ASC`,
		transactionID,
	).Scan(&receipts).Error
	if err != nil {
		return nil, err
	}
	if len(receipts) == 0 {
		return nil, nil
	}

	ids := make([]snowflake.ID, 0, len(receipts))
	for _, receipt := range receipts {
		ids = append(ids, receipt.ID)
	}

	var items []domain.ReceiptItem
	err = db.WithContext(ctx).Raw(
		`SELECT id, receipt_id, description, quantity, amount, type, created_at
		 FROM receipt_items
		 WHERE receipt_id IN ?
		 ORDER BY id ASC`,
		ids,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}

	byReceipt := make(map[snowflake.ID][]domain.ReceiptItem, len(receipts))
	for _, item := range items {
		byReceipt[item.ReceiptID] = append(byReceipt[item.ReceiptID], item)
	}

	out := make([]domain.ReceiptWithItems, 0, len(receipts))
	for _, receipt := range receipts {
		out = append(out, domain.ReceiptWithItems{
			Receipt: receipt,
			Items:   byReceipt[receipt.ID],
		})
	}
	return out, nil
}

func (r *repo) ListTransactions(ctx context.Context, db *gorm.DB, filter domain.TransactionFilter, limit int) ([]domain.Transaction, error) {
	query := db.WithContext(ctx).Table("transactions").Select(transactionColumns)
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.AfterID != nil {
		query = query.Where("id < ?", *filter.AfterID)
	}

	var items []domain.Transaction
	if err := query.Order("id DESC").Limit(limit).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListStalePayments(ctx context.Context, db *gorm.DB, updatedBefore, createdAfter time.Time, limit int) ([]domain.Transaction, error) {
	var items []domain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT `+transactionColumns+`
		 FROM transactions
		 WHERE type = ?
		   AND status IN ?
		   AND ext_id IS NOT NULL
		   AND updated_at < ?
		   AND created_at > ?
		 ORDER BY updated_at ASC
		 LIMIT ?`,
		domain.TransactionTypePayment,
		[]domain.TransactionStatus{
			domain.TransactionStatusCreated,
			domain.TransactionStatusPending,
			domain.TransactionStatusWaitingForCapture,
		},
		updatedBefore,
		createdAfter,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SetTransactionExtID(ctx context.Context, db *gorm.DB, id snowflake.ID, extID string, updatedAt time.Time) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE transactions
		 SET ext_id = ?, updated_at = ?
		 WHERE id = ? AND (ext_id IS NULL OR ext_id = ?)`,
		extID,
		updatedAt,
		id,
		extID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNoRowsUpdated
	}
	return nil
}

func (r *repo) UpdateTransactionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.TransactionStatus, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE transactions
		 SET status = ?, updated_at = ?
		 WHERE id = ?`,
		status,
		updatedAt,
		id,
	).Error
}

func (r *repo) UpdateReceiptStatusByTransaction(ctx context.Context, db *gorm.DB, transactionID snowflake.ID, status domain.ReceiptStatus, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE receipts
		 SET status = ?, updated_at = ?
		 WHERE transaction_id = ?`,
		status,
		updatedAt,
		transactionID,
	).Error
}
