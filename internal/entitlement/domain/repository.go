package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, userID, filmID uuid.UUID) (*UserFilm, error)
	FindByTransaction(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) (*UserFilm, error)
	// Insert surfaces the unique (user_id, film_id) violation unchanged.
	Insert(ctx context.Context, db *gorm.DB, userFilm *UserFilm) error
	SetTransaction(ctx context.Context, db *gorm.DB, id snowflake.ID, transactionID snowflake.ID, updatedAt time.Time) error
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, updatedAt time.Time) error
	SetWatched(ctx context.Context, db *gorm.DB, userID, filmID uuid.UUID, updatedAt time.Time) (bool, error)
}
