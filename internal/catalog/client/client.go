package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/filmbilling/internal/catalog/domain"
	"github.com/smallbiznis/filmbilling/internal/config"
	"github.com/smallbiznis/filmbilling/pkg/httpclient"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	Retry *config.RetryPolicyHolder `optional:"true"`
}

type filmResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Price *int64 `json:"price"`
}

type Client struct {
	http *httpclient.Client
	log  *zap.Logger
}

func New(p Params) domain.Client {
	log := p.Log.Named("catalog.client")
	return &Client{
		http: httpclient.New(httpclient.Options{
			Name:    "catalog",
			BaseURL: p.Cfg.Catalog.BaseURL,
			Timeout: time.Duration(p.Cfg.Catalog.TimeoutSec) * time.Second,
			Backoff: p.Retry.Backoff,
		}, log),
		log: log,
	}
}

func (c *Client) GetFilm(ctx context.Context, filmID uuid.UUID) (domain.Film, error) {
	var resp filmResponse
	err := c.http.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		Path:   "/api/v1/films/" + filmID.String(),
	}, &resp)
	if err != nil {
		c.log.Warn("get film failed", zap.String("film_id", filmID.String()), zap.Error(err))
		return domain.Film{}, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	if resp.Price == nil || strings.TrimSpace(resp.Title) == "" {
		return domain.Film{}, fmt.Errorf("%w: malformed film %s", domain.ErrUnavailable, filmID)
	}
	return domain.Film{
		ID:    filmID,
		Title: resp.Title,
		Price: *resp.Price,
	}, nil
}
