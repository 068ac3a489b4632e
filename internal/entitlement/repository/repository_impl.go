package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/filmbilling/internal/entitlement/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const userFilmColumns = `id, user_id, film_id, watched, is_active, transaction_id, created_at, updated_at`

func (r *repo) Find(ctx context.Context, db *gorm.DB, userID, filmID uuid.UUID) (*domain.UserFilm, error) {
	var item domain.UserFilm
	err := db.WithContext(ctx).Raw(
		`SELECT `+userFilmColumns+`
		 FROM users_films
		 WHERE user_id = ? AND film_id = ?
		 LIMIT 1`,
		userID,
		filmID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByTransaction(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) (*domain.UserFilm, error) {
	var item domain.UserFilm
	err := db.WithContext(ctx).Raw(
		`SELECT `+userFilmColumns+`
		 FROM users_films
		 WHERE transaction_id = ?
		 LIMIT 1`,
		transactionID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, userFilm *domain.UserFilm) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO users_films (`+userFilmColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userFilm.ID,
		userFilm.UserID,
		userFilm.FilmID,
		userFilm.Watched,
		userFilm.IsActive,
		userFilm.TransactionID,
		userFilm.CreatedAt,
		userFilm.UpdatedAt,
	).Error
}

func (r *repo) SetTransaction(ctx context.Context, db *gorm.DB, id snowflake.ID, transactionID snowflake.ID, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users_films
		 SET transaction_id = ?, updated_at = ?
		 WHERE id = ?`,
		transactionID,
		updatedAt,
		id,
	).Error
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users_films
		 SET is_active = ?, updated_at = ?
		 WHERE id = ?`,
		active,
		updatedAt,
		id,
	).Error
}

func (r *repo) SetWatched(ctx context.Context, db *gorm.DB, userID, filmID uuid.UUID, updatedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE users_films
		 SET watched = ?, updated_at = ?
		 WHERE user_id = ? AND film_id = ?`,
		true,
		updatedAt,
		userID,
		filmID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
