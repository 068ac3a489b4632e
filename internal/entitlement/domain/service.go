package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("entitlement_not_found")

// Service exposes entitlement reads and the watched flag. Activation and
// deactivation belong to the billing orchestrator.
type Service interface {
	Get(ctx context.Context, userID, filmID uuid.UUID) (*UserFilm, error)
	MarkAsWatched(ctx context.Context, userID, filmID uuid.UUID) (*UserFilm, error)
}
