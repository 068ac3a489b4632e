package domain

import "errors"

var (
	ErrCatalogUnavailable         = errors.New("catalog_unavailable")
	ErrGatewayUnavailable         = errors.New("gateway_unavailable")
	ErrGatewayRefundRejected      = errors.New("gateway_refund_rejected")
	ErrTransactionNotFound        = errors.New("transaction_not_found")
	ErrPermissionDenied           = errors.New("permission_denied")
	ErrIncorrectTransactionStatus = errors.New("incorrect_transaction_status")
	ErrNotAvailableForRefund      = errors.New("not_available_for_refund")
	ErrAlreadyWatched             = errors.New("already_watched")

	ErrInvalidPaymentMethod  = errors.New("invalid_payment_method")
	ErrInvalidIdempotencyKey = errors.New("invalid_idempotency_key")
	ErrInvalidExtID          = errors.New("invalid_ext_id")
)
