package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// UserFilm records whether a user may watch a film. IsActive is true only
// while a succeeded, non-refunded payment backs it.
type UserFilm struct {
	ID            snowflake.ID  `json:"id" gorm:"primaryKey"`
	UserID        uuid.UUID     `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:ux_users_films_user_film,priority:1"`
	FilmID        uuid.UUID     `json:"film_id" gorm:"type:uuid;not null;uniqueIndex:ux_users_films_user_film,priority:2"`
	Watched       bool          `json:"watched" gorm:"not null;default:false"`
	IsActive      bool          `json:"is_active" gorm:"not null;default:false"`
	TransactionID *snowflake.ID `json:"transaction_id" gorm:"index"`
	CreatedAt     time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time     `json:"updated_at" gorm:"not null"`
}

func (UserFilm) TableName() string { return "users_films" }
