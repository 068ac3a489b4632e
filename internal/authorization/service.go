package authorization

import (
	"context"
	"errors"
)

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)

const (
	ObjectTransaction = "transaction"

	ActionTransactionList = "transaction.list"
	ActionTransactionView = "transaction.view"
)

const (
	RoleAdmin     = "admin"
	RoleSuperuser = "superuser"
)

// Service decides whether any of the caller's roles may act on an object.
type Service interface {
	Authorize(ctx context.Context, roles []string, object string, action string) error
}
