package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/smallbiznis/filmbilling/internal/clock"
	"github.com/smallbiznis/filmbilling/internal/entitlement/domain"
	obslogger "github.com/smallbiznis/filmbilling/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("entitlement.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Get(ctx context.Context, userID, filmID uuid.UUID) (*domain.UserFilm, error) {
	item, err := s.repo.Find(ctx, s.db, userID, filmID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func (s *Service) MarkAsWatched(ctx context.Context, userID, filmID uuid.UUID) (*domain.UserFilm, error) {
	updated, err := s.repo.SetWatched(ctx, s.db, userID, filmID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, domain.ErrNotFound
	}

	obslogger.WithContext(ctx, s.log).Info("film marked as watched",
		zap.String("user_id", userID.String()),
		zap.String("film_id", filmID.String()),
	)
	return s.Get(ctx, userID, filmID)
}
