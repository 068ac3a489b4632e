package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrUnavailable = errors.New("catalog_unavailable")

// Film is the slice of catalog data billing needs. Price is in minor units.
type Film struct {
	ID    uuid.UUID
	Title string
	Price int64
}

type Client interface {
	GetFilm(ctx context.Context, filmID uuid.UUID) (Film, error)
}
