package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/smallbiznis/filmbilling/internal/auth"
	"github.com/smallbiznis/filmbilling/internal/authorization"
	billingservice "github.com/smallbiznis/filmbilling/internal/billing/service"
	catalogclient "github.com/smallbiznis/filmbilling/internal/catalog/client"
	"github.com/smallbiznis/filmbilling/internal/clock"
	"github.com/smallbiznis/filmbilling/internal/config"
	entitlementrepo "github.com/smallbiznis/filmbilling/internal/entitlement/repository"
	entitlementservice "github.com/smallbiznis/filmbilling/internal/entitlement/service"
	"github.com/smallbiznis/filmbilling/internal/gateway/signature"
	"github.com/smallbiznis/filmbilling/internal/gateway/yookassa"
	ledgerrepo "github.com/smallbiznis/filmbilling/internal/ledger/repository"
	"github.com/smallbiznis/filmbilling/internal/scheduler"
	"github.com/smallbiznis/filmbilling/internal/server"
	"github.com/smallbiznis/filmbilling/internal/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const filmPrice = 30000

// fakeYookassa keeps payment state the way the real gateway reports it.
type fakeYookassa struct {
	mu         sync.Mutex
	statuses   map[string]string
	returnURLs map[string]string
	refunds    int
}

func (g *fakeYookassa) setStatus(id, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[id] = status
}

func (g *fakeYookassa) returnURL(id string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.returnURLs[id]
}

func (g *fakeYookassa) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v3/payments", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Confirmation struct {
				ReturnURL string `json:"return_url"`
			} `json:"confirmation"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		g.mu.Lock()
		id := "pay-" + r.Header.Get("Idempotence-Key")
		g.statuses[id] = "pending"
		g.returnURLs[id] = body.Confirmation.ReturnURL
		g.mu.Unlock()

		writeJSON(w, map[string]any{
			"id":     id,
			"status": "pending",
			"paid":   false,
			"confirmation": map[string]string{
				"confirmation_url": "https://yoomoney.example/checkout/" + id,
			},
		})
	})
	mux.HandleFunc("GET /v3/payments/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		g.mu.Lock()
		status, ok := g.statuses[id]
		g.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{"id": id, "status": status, "paid": status == "succeeded"})
	})
	mux.HandleFunc("POST /v3/refunds", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.refunds++
		g.mu.Unlock()
		writeJSON(w, map[string]any{"id": "refund-" + uuid.NewString(), "status": "succeeded"})
	})
	return mux
}

func catalogHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/films/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": r.PathValue("id"), "title": "Stalker", "price": filmPrice})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

type testEnv struct {
	baseURL   string
	gateway   *fakeYookassa
	verifier  *auth.Verifier
	clock     *clock.FakeClock
	scheduler *scheduler.Scheduler
}

func startEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gateway := &fakeYookassa{statuses: map[string]string{}, returnURLs: map[string]string{}}
	gatewaySrv := httptest.NewServer(gateway.handler())
	t.Cleanup(gatewaySrv.Close)
	catalogSrv := httptest.NewServer(catalogHandler())
	t.Cleanup(catalogSrv.Close)

	cfg := config.Config{
		Auth: config.AuthConfig{
			JWTSecret:         "e2e-secret",
			JWTAlgorithm:      "HS256",
			BasicAuthUsername: "billing",
			BasicAuthPassword: "internal",
		},
		Catalog: config.CatalogConfig{BaseURL: catalogSrv.URL, TimeoutSec: 5},
		Gateway: config.GatewayConfig{
			BaseURL:                  gatewaySrv.URL,
			TimeoutSec:               5,
			ShopID:                   "shop",
			SecretKey:                "key",
			SignatureSecret:          "return-secret",
			SignatureExpirationHours: 24,
			ReturnURLPattern:         "https://films.example/transactions/{transaction_id}?signature={signature}&date={date}",
		},
	}

	log := zap.NewNop()
	db := testsupport.NewDB(t)
	fakeClock := clock.NewFakeClock(time.Now().UTC().Truncate(time.Second))
	retry := config.NewStaticRetryPolicyHolder(config.RetryPolicy{
		InitialInterval: time.Millisecond,
		Multiplier:      1,
		MaxInterval:     time.Millisecond,
		MaxElapsedTime:  10 * time.Millisecond,
	})
	signer, err := signature.New(cfg, fakeClock)
	require.NoError(t, err)
	ledger := ledgerrepo.Provide()
	entitlements := entitlementrepo.Provide()

	billingSvc := billingservice.New(billingservice.Params{
		DB:           db,
		Log:          log,
		GenID:        testsupport.NewNode(t),
		Clock:        fakeClock,
		Ledger:       ledger,
		Entitlements: entitlements,
		Catalog:      catalogclient.New(catalogclient.Params{Cfg: cfg, Log: log, Retry: retry}),
		Gateway:      yookassa.New(yookassa.Params{Cfg: cfg, Log: log, Signer: signer, Retry: retry}),
		Retry:        retry,
	})
	entitlementSvc := entitlementservice.New(entitlementservice.Params{
		DB:    db,
		Log:   log,
		Clock: fakeClock,
		Repo:  entitlements,
	})

	verifier, err := auth.NewVerifier(cfg)
	require.NoError(t, err)
	enforcer, err := authorization.NewEnforcer()
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(server.ErrorHandlingMiddleware())
	srv := server.NewServer(server.ServerParams{
		Gin:            engine,
		Cfg:            cfg,
		Log:            log,
		BillingSvc:     billingSvc,
		EntitlementSvc: entitlementSvc,
		AuthzSvc:       authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer}),
		Verifier:       verifier,
		Signer:         signer,
	})
	srv.RegisterPublicRoutes()
	srv.RegisterInternalRoutes()
	srv.RegisterAdminRoutes()

	httpSrv := httptest.NewServer(engine)
	t.Cleanup(httpSrv.Close)

	sched, err := scheduler.New(scheduler.Params{
		DB:         db,
		Log:        log,
		Clock:      fakeClock,
		Ledger:     ledger,
		BillingSvc: billingSvc,
		Config:     scheduler.Config{StaleAfter: 10 * time.Minute},
	})
	require.NoError(t, err)

	return &testEnv{
		baseURL:   httpSrv.URL,
		gateway:   gateway,
		verifier:  verifier,
		clock:     fakeClock,
		scheduler: sched,
	}
}

func (e *testEnv) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	raw, err := e.verifier.Sign(auth.Claims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	require.NoError(t, err)
	return raw
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.baseURL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	decoded := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded
}

func (e *testEnv) purchase(t *testing.T, userID, filmID uuid.UUID, key string) (string, string) {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/api/public/v1/films/"+filmID.String()+"/purchase", nil, map[string]string{
		"Authorization":   "Bearer " + e.token(t, userID),
		"Idempotency-Key": key,
	})
	require.Equal(t, http.StatusOK, status, body)

	extID := "pay-" + key
	require.Equal(t, "https://yoomoney.example/checkout/"+extID, body["confirmation_url"])
	return extID, e.gateway.returnURL(extID)
}

func (e *testEnv) notify(t *testing.T, extID string) {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/api/public/v1/yookassa/on-after-payment", map[string]any{
		"type":   "notification",
		"event":  "payment.succeeded",
		"object": map[string]any{"id": extID, "status": "succeeded", "paid": true},
	}, nil)
	require.Equal(t, http.StatusOK, status, body)
}

func (e *testEnv) internalUserFilm(t *testing.T, userID, filmID uuid.UUID) (int, map[string]any) {
	t.Helper()
	return e.do(t, http.MethodGet, "/api/internal/v1/users/"+userID.String()+"/films/"+filmID.String(), nil, map[string]string{
		"Authorization": basicAuth("billing", "internal"),
	})
}

func basicAuth(user, pass string) string {
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth(user, pass)
	return req.Header.Get("Authorization")
}

// signedPath turns the gateway return URL into a request against the API.
func signedPath(t *testing.T, returnURL string) string {
	t.Helper()
	parsed, err := url.Parse(returnURL)
	require.NoError(t, err)
	id := strings.TrimPrefix(parsed.Path, "/transactions/")
	return "/api/public/v2/transactions/" + id + "?" + parsed.RawQuery
}

func TestE2E_PurchaseWebhookRefund(t *testing.T) {
	env := startEnv(t)
	userID, filmID := uuid.New(), uuid.New()

	extID, returnURL := env.purchase(t, userID, filmID, uuid.NewString())
	require.NotEmpty(t, returnURL)

	env.gateway.setStatus(extID, "succeeded")
	env.notify(t, extID)
	// duplicate deliveries are acknowledged
	env.notify(t, extID)

	status, film := env.internalUserFilm(t, userID, filmID)
	require.Equal(t, http.StatusOK, status, film)
	assert.Equal(t, true, film["is_active"])
	assert.Equal(t, false, film["watched"])

	status, details := env.do(t, http.MethodGet, signedPath(t, returnURL), nil, nil)
	require.Equal(t, http.StatusOK, status, details)
	assert.Equal(t, "succeeded", details["status"])
	assert.Equal(t, "payment", details["type"])
	assert.EqualValues(t, filmPrice, details["amount"])
	require.NotNil(t, details["user_film"])
	assert.Equal(t, true, details["user_film"].(map[string]any)["is_active"])

	transactionID := details["id"].(string)

	// owning the film makes a second purchase a no-op
	status, body := env.do(t, http.MethodPost, "/api/public/v1/films/"+filmID.String()+"/purchase", nil, map[string]string{
		"Authorization":   "Bearer " + env.token(t, userID),
		"Idempotency-Key": uuid.NewString(),
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Nil(t, body["confirmation_url"])

	status, refund := env.do(t, http.MethodPost, "/api/public/v1/transactions/"+transactionID+"/refund", nil, map[string]string{
		"Authorization":   "Bearer " + env.token(t, userID),
		"Idempotency-Key": uuid.NewString(),
	})
	require.Equal(t, http.StatusOK, status, refund)
	assert.Equal(t, "refund", refund["type"])
	assert.Equal(t, "succeeded", refund["status"])
	assert.EqualValues(t, filmPrice, refund["amount"])

	status, film = env.internalUserFilm(t, userID, filmID)
	require.Equal(t, http.StatusOK, status, film)
	assert.Equal(t, false, film["is_active"])

	status, listed := env.do(t, http.MethodGet, "/api/public/v1/transactions", nil, map[string]string{
		"Authorization": "Bearer " + env.token(t, userID),
	})
	require.Equal(t, http.StatusOK, status, listed)
	assert.Len(t, listed["data"], 2)
}

func TestE2E_WatchedFilmCannotBeRefunded(t *testing.T) {
	env := startEnv(t)
	userID, filmID := uuid.New(), uuid.New()

	extID, returnURL := env.purchase(t, userID, filmID, uuid.NewString())
	env.gateway.setStatus(extID, "succeeded")
	env.notify(t, extID)

	status, body := env.do(t, http.MethodPut, "/api/internal/v1/users/"+userID.String()+"/films/"+filmID.String()+"/mark-as-watched", nil, map[string]string{
		"Authorization": basicAuth("billing", "internal"),
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["watched"])

	_, details := env.do(t, http.MethodGet, signedPath(t, returnURL), nil, nil)
	status, body = env.do(t, http.MethodPost, "/api/public/v1/transactions/"+details["id"].(string)+"/refund", nil, map[string]string{
		"Authorization":   "Bearer " + env.token(t, userID),
		"Idempotency-Key": uuid.NewString(),
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Not available because the film has already been watched.", body["detail"])
	assert.Zero(t, env.gateway.refunds)
}

func TestE2E_SweepActivatesWhenNotificationIsLost(t *testing.T) {
	env := startEnv(t)
	userID, filmID := uuid.New(), uuid.New()

	extID, _ := env.purchase(t, userID, filmID, uuid.NewString())
	env.gateway.setStatus(extID, "succeeded")

	status, film := env.internalUserFilm(t, userID, filmID)
	if status == http.StatusOK {
		require.Equal(t, false, film["is_active"])
	}

	env.clock.Advance(15 * time.Minute)
	require.NoError(t, env.scheduler.RunOnce(context.Background()))

	status, film = env.internalUserFilm(t, userID, filmID)
	require.Equal(t, http.StatusOK, status, film)
	assert.Equal(t, true, film["is_active"])
}

func TestE2E_AuthBoundaries(t *testing.T) {
	env := startEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/public/v1/transactions", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Not authenticated.", body["detail"])

	status, body = env.do(t, http.MethodGet, "/api/internal/v1/users/"+uuid.NewString()+"/films/"+uuid.NewString(), nil, map[string]string{
		"Authorization": basicAuth("billing", "wrong"),
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Incorrect username or password.", body["detail"])

	status, body = env.do(t, http.MethodGet, "/api/admin/v1/transactions", nil, map[string]string{
		"Authorization": "Bearer " + env.token(t, uuid.New()),
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Not allowed.", body["detail"])
}
