package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/filmbilling/internal/auth"
	"github.com/smallbiznis/filmbilling/internal/authorization"
	billingdomain "github.com/smallbiznis/filmbilling/internal/billing/domain"
	"github.com/smallbiznis/filmbilling/internal/config"
	entitlementdomain "github.com/smallbiznis/filmbilling/internal/entitlement/domain"
	"github.com/smallbiznis/filmbilling/internal/gateway/signature"
	"github.com/smallbiznis/filmbilling/internal/observability"
	obsmiddleware "github.com/smallbiznis/filmbilling/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/filmbilling/internal/observability/metrics"
	obstracing "github.com/smallbiznis/filmbilling/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) {
		s.RegisterPublicRoutes()
		s.RegisterInternalRoutes()
		s.RegisterAdminRoutes()
	}),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())
	r.Use(TrustedHosts(cfg.TrustedHosts))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	log            *zap.Logger
	billingSvc     billingdomain.Service
	entitlementSvc entitlementdomain.Service
	authzSvc       authorization.Service
	verifier       *auth.Verifier
	signer         *signature.Signer
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Log            *zap.Logger
	BillingSvc     billingdomain.Service
	EntitlementSvc entitlementdomain.Service
	AuthzSvc       authorization.Service
	Verifier       *auth.Verifier
	Signer         *signature.Signer
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		log:            p.Log.Named("http.server"),
		billingSvc:     p.BillingSvc,
		entitlementSvc: p.EntitlementSvc,
		authzSvc:       p.AuthzSvc,
		verifier:       p.Verifier,
		signer:         p.Signer,
	}
}

// RegisterPublicRoutes mounts the user-facing API and the gateway callback.
func (s *Server) RegisterPublicRoutes() {
	public := s.engine.Group("/api/public")

	v1 := public.Group("/v1")
	v1.POST("/yookassa/on-after-payment", s.HandleYookassaWebhook)

	user := v1.Group("", s.JWTRequired())
	user.POST("/films/:film_id/purchase", s.PurchaseFilm)
	user.GET("/transactions", s.ListUserTransactions)
	user.POST("/transactions/:transaction_id/refund", s.RefundTransaction)

	v2 := public.Group("/v2")
	v2.GET("/transactions/:transaction_id", s.GetSignedTransaction)
}

// RegisterInternalRoutes mounts the service-to-service API.
func (s *Server) RegisterInternalRoutes() {
	internal := s.engine.Group("/api/internal/v1", s.BasicAuthRequired())
	internal.GET("/users/:user_id/films/:film_id", s.GetUserFilm)
	internal.PUT("/users/:user_id/films/:film_id/mark-as-watched", s.MarkFilmAsWatched)
}

func (s *Server) RegisterAdminRoutes() {
	admin := s.engine.Group("/api/admin/v1", s.JWTRequired())
	admin.GET("/transactions",
		s.authorizeAction(authorization.ObjectTransaction, authorization.ActionTransactionList),
		s.AdminListTransactions,
	)
	admin.GET("/transactions/:transaction_id",
		s.authorizeAction(authorization.ObjectTransaction, authorization.ActionTransactionView),
		s.AdminGetTransaction,
	)
}
