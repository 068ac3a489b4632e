package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/filmbilling/internal/billing/domain"
	ledgerdomain "github.com/smallbiznis/filmbilling/internal/ledger/domain"
	"github.com/smallbiznis/filmbilling/pkg/db/pagination"
)

const (
	defaultPageSize = 20
	maxPageSize     = 250
)

func (s *Service) GetTransaction(ctx context.Context, id snowflake.ID) (*billingdomain.TransactionDetails, error) {
	transaction, err := s.ledger.FindTransactionByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if transaction == nil {
		return nil, billingdomain.ErrTransactionNotFound
	}

	receipts, err := s.ledger.ListReceiptsByTransaction(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	userFilm, err := s.entitlements.FindByTransaction(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return &billingdomain.TransactionDetails{
		Transaction: *transaction,
		Receipts:    receipts,
		UserFilm:    userFilm,
	}, nil
}

func (s *Service) ListTransactions(ctx context.Context, req billingdomain.ListTransactionsRequest) (billingdomain.ListTransactionsResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return billingdomain.ListTransactionsResponse{}, err
	}
	var afterID *snowflake.ID
	if cursor != nil {
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return billingdomain.ListTransactionsResponse{}, pagination.ErrInvalidPageToken
		}
		afterID = &id
	}

	items, err := s.ledger.ListTransactions(ctx, s.db, ledgerdomain.TransactionFilter{
		UserID:  req.UserID,
		AfterID: afterID,
	}, pageSize+1)
	if err != nil {
		return billingdomain.ListTransactionsResponse{}, err
	}

	page, info, err := pagination.Trim(items, pageSize, func(t ledgerdomain.Transaction) pagination.Cursor {
		return pagination.Cursor{ID: t.ID.String()}
	})
	if err != nil {
		return billingdomain.ListTransactionsResponse{}, err
	}
	return billingdomain.ListTransactionsResponse{
		Transactions: page,
		PageInfo:     info,
	}, nil
}
