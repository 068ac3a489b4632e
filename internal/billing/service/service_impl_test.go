package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	billingdomain "github.com/smallbiznis/filmbilling/internal/billing/domain"
	catalogdomain "github.com/smallbiznis/filmbilling/internal/catalog/domain"
	"github.com/smallbiznis/filmbilling/internal/clock"
	"github.com/smallbiznis/filmbilling/internal/config"
	entitlementdomain "github.com/smallbiznis/filmbilling/internal/entitlement/domain"
	entitlementrepo "github.com/smallbiznis/filmbilling/internal/entitlement/repository"
	gatewaydomain "github.com/smallbiznis/filmbilling/internal/gateway/domain"
	ledgerdomain "github.com/smallbiznis/filmbilling/internal/ledger/domain"
	ledgerrepo "github.com/smallbiznis/filmbilling/internal/ledger/repository"
	"github.com/smallbiznis/filmbilling/internal/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// -- Mocks --

type catalogMock struct {
	mock.Mock
}

func (m *catalogMock) GetFilm(ctx context.Context, filmID uuid.UUID) (catalogdomain.Film, error) {
	args := m.Called(ctx, filmID)
	return args.Get(0).(catalogdomain.Film), args.Error(1)
}

type gatewayMock struct {
	mock.Mock
}

func (m *gatewayMock) Pay(ctx context.Context, amount decimal.Decimal, transactionID snowflake.ID, idempotencyKey string) (gatewaydomain.Payment, error) {
	args := m.Called(ctx, amount, transactionID, idempotencyKey)
	return args.Get(0).(gatewaydomain.Payment), args.Error(1)
}

func (m *gatewayMock) GetPayment(ctx context.Context, extID string) (gatewaydomain.Payment, error) {
	args := m.Called(ctx, extID)
	return args.Get(0).(gatewaydomain.Payment), args.Error(1)
}

func (m *gatewayMock) Refund(ctx context.Context, amount decimal.Decimal, paymentExtID string, idempotencyKey string) (gatewaydomain.Refund, error) {
	args := m.Called(ctx, amount, paymentExtID, idempotencyKey)
	return args.Get(0).(gatewaydomain.Refund), args.Error(1)
}

// racingEntitlements hides existing rows from Find, as if a concurrent
// request inserted between the read and the write.
type racingEntitlements struct {
	entitlementdomain.Repository
}

func (r racingEntitlements) Find(context.Context, *gorm.DB, uuid.UUID, uuid.UUID) (*entitlementdomain.UserFilm, error) {
	return nil, nil
}

// -- Fixture --

type fixture struct {
	svc          *Service
	db           *gorm.DB
	catalog      *catalogMock
	gateway      *gatewayMock
	ledger       ledgerdomain.Repository
	entitlements entitlementdomain.Repository
	clock        *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testsupport.NewDB(t)
	f := &fixture{
		db:           db,
		catalog:      &catalogMock{},
		gateway:      &gatewayMock{},
		ledger:       ledgerrepo.Provide(),
		entitlements: entitlementrepo.Provide(),
		clock:        clock.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.svc = New(Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        testsupport.NewNode(t),
		Clock:        f.clock,
		Ledger:       f.ledger,
		Entitlements: f.entitlements,
		Catalog:      f.catalog,
		Gateway:      f.gateway,
		Retry: config.NewStaticRetryPolicyHolder(config.RetryPolicy{
			InitialInterval: time.Millisecond,
			Multiplier:      1,
			MaxInterval:     time.Millisecond,
			MaxElapsedTime:  10 * time.Millisecond,
		}),
	}).(*Service)
	return f
}

func purchaseRequest(userID, filmID uuid.UUID) billingdomain.PurchaseRequest {
	return billingdomain.PurchaseRequest{
		UserID:         userID,
		FilmID:         filmID,
		PaymentMethod:  ledgerdomain.PaymentMethodCard,
		IdempotencyKey: uuid.NewString(),
	}
}

func majorUnits(value string) interface{} {
	return mock.MatchedBy(func(amount decimal.Decimal) bool {
		return amount.StringFixed(2) == value
	})
}

// purchaseSucceeded runs a paid purchase and a succeeded webhook.
func (f *fixture) purchaseSucceeded(t *testing.T, userID, filmID uuid.UUID, extID string) *ledgerdomain.Transaction {
	t.Helper()
	ctx := context.Background()

	f.catalog.On("GetFilm", mock.Anything, filmID).Return(catalogdomain.Film{ID: filmID, Title: "Stalker", Price: 30000}, nil).Once()
	f.gateway.On("Pay", mock.Anything, majorUnits("300.00"), mock.Anything, mock.Anything).
		Return(gatewaydomain.Payment{ID: extID, Status: gatewaydomain.StatusPending, ConfirmationURL: "https://pay.example/" + extID}, nil).Once()
	f.gateway.On("GetPayment", mock.Anything, extID).
		Return(gatewaydomain.Payment{ID: extID, Status: gatewaydomain.StatusSucceeded, Paid: true}, nil)

	_, err := f.svc.Purchase(ctx, purchaseRequest(userID, filmID))
	require.NoError(t, err)
	require.NoError(t, f.svc.ReconcilePayment(ctx, extID))

	tx, err := f.ledger.FindTransactionByExtID(ctx, f.db, extID)
	require.NoError(t, err)
	require.NotNil(t, tx)
	return tx
}

// -- Tests --

func TestToMajorUnits(t *testing.T) {
	tests := map[string]string{
		"30000":   "300.00",
		"15050":   "150.50",
		"1":       "0.01",
		"12345.5": "123.46",
		"12344.5": "123.45",
		"99":      "0.99",
	}
	for minor, want := range tests {
		got := ToMajorUnits(decimal.RequireFromString(minor))
		assert.Equal(t, want, got.StringFixed(2), minor)
	}
}

func TestPurchaseCreatesLedgerAndWaitsForWebhook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID, filmID := uuid.New(), uuid.New()
	req := purchaseRequest(userID, filmID)

	f.catalog.On("GetFilm", mock.Anything, filmID).Return(catalogdomain.Film{ID: filmID, Title: "Solaris", Price: 30000}, nil).Once()
	f.gateway.On("Pay", mock.Anything, majorUnits("300.00"), mock.Anything, req.IdempotencyKey).
		Return(gatewaydomain.Payment{ID: "pay-1", Status: gatewaydomain.StatusPending, ConfirmationURL: "https://pay.example/1"}, nil).Once()

	res, err := f.svc.Purchase(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, res.ConfirmationURL)
	assert.Equal(t, "https://pay.example/1", *res.ConfirmationURL)
	require.NotNil(t, res.TransactionID)

	assert.Equal(t, int64(1), testsupport.Count(t, f.db, `SELECT COUNT(*) FROM transactions WHERE type = ?`, "payment"))
	assert.Equal(t, int64(1), testsupport.Count(t, f.db, `SELECT COUNT(*) FROM receipts WHERE transaction_id = ?`, *res.TransactionID))
	assert.Equal(t, int64(1), testsupport.Count(t, f.db, `SELECT COUNT(*) FROM receipt_items`))

	tx, err := f.ledger.FindTransactionByID(ctx, f.db, *res.TransactionID)
	require.NoError(t, err)
	require.NotNil(t, tx.ExtID)
	assert.Equal(t, "pay-1", *tx.ExtID)
	assert.Equal(t, ledgerdomain.TransactionStatusCreated, tx.Status)
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(30000)))

	userFilm, err := f.entitlements.Find(ctx, f.db, userID, filmID)
	require.NoError(t, err)
	require.NotNil(t, userFilm.TransactionID)
	assert.Equal(t, tx.ID, *userFilm.TransactionID)
	assert.False(t, userFilm.IsActive)

	receipts, err := f.ledger.ListReceiptsByTransaction(ctx, f.db, tx.ID)
	require.NoError(t, err)
	require.Len(t, receipts[0].Items, 1)
	assert.Equal(t, "Solaris", receipts[0].Items[0].Description)
	assert.Equal(t, ledgerdomain.ItemTypeFilm, receipts[0].Items[0].Type)

	f.catalog.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
}

func TestReconcileActivatesAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID, filmID := uuid.New(), uuid.New()

	tx := f.purchaseSucceeded(t, userID, filmID, "pay-2")
	assert.Equal(t, ledgerdomain.TransactionStatusSucceeded, tx.Status)

	first, err := f.entitlements.Find(ctx, f.db, userID, filmID)
	require.NoError(t, err)
	assert.True(t, first.IsActive)

	require.NoError(t, f.svc.ReconcilePayment(ctx, "pay-2"))

	second, err := f.entitlements.Find(ctx, f.db, userID, filmID)
	require.NoError(t, err)
	assert.Equal(t, first.IsActive, second.IsActive)
	assert.Equal(t, first.TransactionID, second.TransactionID)

	receipts, err := f.ledger.ListReceiptsByTransaction(ctx, f.db, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.ReceiptStatusSucceeded, receipts[0].Status)
}

func TestReconcileCanceledDoesNotActivate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID, filmID := uuid.New(), uuid.New()

	f.catalog.On("GetFilm", mock.Anything, filmID).Return(catalogdomain.Film{Title: "Mirror", Price: 100}, nil).Once()
	f.gateway.On("Pay", mock.Anything, majorUnits("1.00"), mock.Anything, mock.Anything).
		Return(gatewaydomain.Payment{ID: "pay-c", Status: gatewaydomain.StatusPending}, nil).Once()
	f.gateway.On("GetPayment", mock.Anything, "pay-c").
		Return(gatewaydomain.Payment{ID: "pay-c", Status: gatewaydomain.StatusCanceled}, nil).Once()

	res, err := f.svc.Purchase(ctx, purchaseRequest(userID, filmID))
	require.NoError(t, err)
	assert.Nil(t, res.ConfirmationURL)
	require.NoError(t, f.svc.ReconcilePayment(ctx, "pay-c"))

	tx, err := f.ledger.FindTransactionByExtID(ctx, f.db, "pay-c")
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.TransactionStatusCanceled, tx.Status)

	userFilm, err := f.entitlements.Find(ctx, f.db, userID, filmID)
	require.NoError(t, err)
	assert.False(t, userFilm.IsActive)
}

func TestPurchaseAlreadyActiveSkipsCatalogAndGateway(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID, filmID := uuid.New(), uuid.New()
	now := f.clock.Now()

	require.NoError(t, f.entitlements.Insert(ctx, f.db, &entitlementdomain.UserFilm{
		ID: 1, UserID: userID, FilmID: filmID, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}))

	res, err := f.svc.Purchase(ctx, purchaseRequest(userID, filmID))
	require.NoError(t, err)
	assert.Nil(t, res.ConfirmationURL)

	f.catalog.AssertNotCalled(t, "GetFilm", mock.Anything, mock.Anything)
	f.gateway.AssertNotCalled(t, "Pay", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Zero(t, testsupport.Count(t, f.db, `SELECT COUNT(*) FROM transactions`))
}

func TestPurchaseFreeFilmSkipsGateway(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID, filmID := uuid.New(), uuid.New()

	f.catalog.On("GetFilm", mock.Anything, filmID).Return(catalogdomain.Film{Title: "Free", Price: 0}, nil).Once()

	res, err := f.svc.Purchase(ctx, purchaseRequest(userID, filmID))
	require.NoError(t, err)
	assert.Nil(t, res.ConfirmationURL)

	f.catalog.AssertExpectations(t)
	f.gateway.AssertNotCalled(t, "Pay", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Zero(t, testsupport.Count(t, f.db, `SELECT COUNT(*) FROM transactions`))
	assert.Equal(t, int64(1), testsupport.Count(t, f.db, `SELECT COUNT(*) FROM users_films`))
}

func TestPurchaseConcurrentInsertIsAlreadyPurchased(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID, filmID := uuid.New(), uuid.New()
	now := f.clock.Now()

	require.NoError(t, f.entitlements.Insert(ctx, f.db, &entitlementdomain.UserFilm{
		ID: 1, UserID: userID, FilmID: filmID, CreatedAt: now, UpdatedAt: now,
	}))
	f.svc.entitlements = racingEntitlements{Repository: f.entitlements}

	res, err := f.svc.Purchase(ctx, purchaseRequest(userID, filmID))
	require.NoError(t, err)
	assert.Nil(t, res.ConfirmationURL)
	f.catalog.AssertNotCalled(t, "GetFilm", mock.Anything, mock.Anything)
}

func TestPurchaseDependencyFailures(t *testing.T) {
	t.Run("catalog", func(t *testing.T) {
		f := newFixture(t)
		filmID := uuid.New()
		f.catalog.On("GetFilm", mock.Anything, filmID).Return(catalogdomain.Film{}, catalogdomain.ErrUnavailable).Once()

		_, err := f.svc.Purchase(context.Background(), purchaseRequest(uuid.New(), filmID))
		assert.ErrorIs(t, err, billingdomain.ErrCatalogUnavailable)
		assert.Zero(t, testsupport.Count(t, f.db, `SELECT COUNT(*) FROM transactions`))
	})

	t.Run("gateway", func(t *testing.T) {
		f := newFixture(t)
		filmID := uuid.New()
		f.catalog.On("GetFilm", mock.Anything, filmID).Return(catalogdomain.Film{Title: "Nostalghia", Price: 500}, nil).Once()
		f.gateway.On("Pay", mock.Anything, majorUnits("5.00"), mock.Anything, mock.Anything).
			Return(gatewaydomain.Payment{}, gatewaydomain.ErrUnavailable).Once()

		_, err := f.svc.Purchase(context.Background(), purchaseRequest(uuid.New(), filmID))
		assert.ErrorIs(t, err, billingdomain.ErrGatewayUnavailable)
		assert.Equal(t, int64(1), testsupport.Count(t, f.db, `SELECT COUNT(*) FROM transactions WHERE status = ? AND ext_id IS NULL`, "created"))
	})
}

func TestPurchaseValidatesInput(t *testing.T) {
	f := newFixture(t)
	req := purchaseRequest(uuid.New(), uuid.New())
	req.PaymentMethod = "cash"
	_, err := f.svc.Purchase(context.Background(), req)
	assert.ErrorIs(t, err, billingdomain.ErrInvalidPaymentMethod)

	req = purchaseRequest(uuid.New(), uuid.New())
	req.IdempotencyKey = " "
	_, err = f.svc.Purchase(context.Background(), req)
	assert.ErrorIs(t, err, billingdomain.ErrInvalidIdempotencyKey)
}

func TestRefundDuplicatesReceiptAndDeactivates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID, filmID := uuid.New(), uuid.New()
	payment := f.purchaseSucceeded(t, userID, filmID, "pay-r")

	idem := uuid.NewString()
	f.gateway.On("Refund", mock.Anything, majorUnits("300.00"), "pay-r", idem).
		Return(gatewaydomain.Refund{ID: "ref-1", Status: gatewaydomain.StatusSucceeded}, nil).Once()

	refund, err := f.svc.Refund(ctx, billingdomain.RefundRequest{TransactionID: payment.ID, UserID: userID, IdempotencyKey: idem})
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.TransactionTypeRefund, refund.Type)
	assert.Equal(t, ledgerdomain.TransactionStatusSucceeded, refund.Status)
	assert.True(t, refund.Amount.Equal(payment.Amount))
	assert.Equal(t, payment.PaymentMethod, refund.PaymentMethod)

	stored, err := f.ledger.FindTransactionByID(ctx, f.db, refund.ID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.TransactionStatusSucceeded, stored.Status)
	require.NotNil(t, stored.ExtID)
	assert.Equal(t, "ref-1", *stored.ExtID)

	original, err := f.ledger.ListReceiptsByTransaction(ctx, f.db, payment.ID)
	require.NoError(t, err)
	copied, err := f.ledger.ListReceiptsByTransaction(ctx, f.db, refund.ID)
	require.NoError(t, err)
	require.Len(t, copied, 1)
	require.Len(t, copied[0].Items, len(original[0].Items))
	for i, item := range copied[0].Items {
		want := original[0].Items[i]
		assert.NotEqual(t, want.ID, item.ID)
		assert.Equal(t, want.Description, item.Description)
		assert.True(t, want.Quantity.Equal(item.Quantity))
		assert.True(t, want.Amount.Equal(item.Amount))
		assert.Equal(t, want.Type, item.Type)
	}

	userFilm, err := f.entitlements.Find(ctx, f.db, userID, filmID)
	require.NoError(t, err)
	assert.False(t, userFilm.IsActive)
	require.NotNil(t, userFilm.TransactionID)
	assert.Equal(t, refund.ID, *userFilm.TransactionID)

	// a replayed payment webhook must not bring the film back
	require.NoError(t, f.svc.ReconcilePayment(ctx, "pay-r"))
	userFilm, err = f.entitlements.Find(ctx, f.db, userID, filmID)
	require.NoError(t, err)
	assert.False(t, userFilm.IsActive)
}

func TestRefundRejectedByGatewayKeepsEntitlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID, filmID := uuid.New(), uuid.New()
	payment := f.purchaseSucceeded(t, userID, filmID, "pay-x")

	f.gateway.On("Refund", mock.Anything, mock.Anything, "pay-x", mock.Anything).
		Return(gatewaydomain.Refund{ID: "ref-x", Status: gatewaydomain.StatusCanceled, CancellationReason: "rejected_by_payee"}, nil).Once()

	_, err := f.svc.Refund(ctx, billingdomain.RefundRequest{TransactionID: payment.ID, UserID: userID, IdempotencyKey: uuid.NewString()})
	assert.ErrorIs(t, err, billingdomain.ErrGatewayRefundRejected)

	userFilm, err := f.entitlements.Find(ctx, f.db, userID, filmID)
	require.NoError(t, err)
	assert.True(t, userFilm.IsActive)
	assert.Equal(t, payment.ID, *userFilm.TransactionID)
}

func TestRefundGatewayUnavailableLeavesCreatedRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID, filmID := uuid.New(), uuid.New()
	payment := f.purchaseSucceeded(t, userID, filmID, "pay-u")

	f.gateway.On("Refund", mock.Anything, mock.Anything, "pay-u", mock.Anything).
		Return(gatewaydomain.Refund{}, errors.New("boom")).Once()

	_, err := f.svc.Refund(ctx, billingdomain.RefundRequest{TransactionID: payment.ID, UserID: userID, IdempotencyKey: uuid.NewString()})
	assert.ErrorIs(t, err, billingdomain.ErrGatewayUnavailable)
	assert.Equal(t, int64(1), testsupport.Count(t, f.db, `SELECT COUNT(*) FROM transactions WHERE type = ? AND status = ?`, "refund", "created"))

	userFilm, err := f.entitlements.Find(ctx, f.db, userID, filmID)
	require.NoError(t, err)
	assert.True(t, userFilm.IsActive)
}

func TestRefundValidationOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID, filmID := uuid.New(), uuid.New()
	payment := f.purchaseSucceeded(t, userID, filmID, "pay-v")
	before := testsupport.Count(t, f.db, `SELECT COUNT(*) FROM transactions`)

	_, err := f.svc.Refund(ctx, billingdomain.RefundRequest{TransactionID: 999, UserID: userID, IdempotencyKey: "k"})
	assert.ErrorIs(t, err, billingdomain.ErrTransactionNotFound)

	_, err = f.svc.Refund(ctx, billingdomain.RefundRequest{TransactionID: payment.ID, UserID: uuid.New(), IdempotencyKey: "k"})
	assert.ErrorIs(t, err, billingdomain.ErrPermissionDenied)

	updated, err := f.entitlements.SetWatched(ctx, f.db, userID, filmID, f.clock.Now())
	require.NoError(t, err)
	require.True(t, updated)
	_, err = f.svc.Refund(ctx, billingdomain.RefundRequest{TransactionID: payment.ID, UserID: userID, IdempotencyKey: "k"})
	assert.ErrorIs(t, err, billingdomain.ErrAlreadyWatched)

	assert.Equal(t, before, testsupport.Count(t, f.db, `SELECT COUNT(*) FROM transactions`))
	f.gateway.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestValidateRefund(t *testing.T) {
	owner := uuid.New()
	extID := "pay"
	succeeded := &ledgerdomain.Transaction{UserID: owner, Status: ledgerdomain.TransactionStatusSucceeded, ExtID: &extID}
	pending := &ledgerdomain.Transaction{UserID: owner, Status: ledgerdomain.TransactionStatusPending, ExtID: &extID}
	noExt := &ledgerdomain.Transaction{UserID: owner, Status: ledgerdomain.TransactionStatusSucceeded}
	active := &entitlementdomain.UserFilm{IsActive: true}
	watched := &entitlementdomain.UserFilm{IsActive: true, Watched: true}
	inactive := &entitlementdomain.UserFilm{}

	tests := []struct {
		name     string
		tx       *ledgerdomain.Transaction
		userFilm *entitlementdomain.UserFilm
		user     uuid.UUID
		want     error
	}{
		{"ok", succeeded, active, owner, nil},
		{"other user wins over status", pending, watched, uuid.New(), billingdomain.ErrPermissionDenied},
		{"status wins over watched", pending, watched, owner, billingdomain.ErrIncorrectTransactionStatus},
		{"missing ext id", noExt, active, owner, billingdomain.ErrNotAvailableForRefund},
		{"missing entitlement", succeeded, nil, owner, billingdomain.ErrNotAvailableForRefund},
		{"inactive entitlement", succeeded, inactive, owner, billingdomain.ErrNotAvailableForRefund},
		{"watched", succeeded, watched, owner, billingdomain.ErrAlreadyWatched},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRefund(tt.tx, tt.userFilm, tt.user)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReconcileUnknownExtIDIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.gateway.On("GetPayment", mock.Anything, "ghost").
		Return(gatewaydomain.Payment{ID: "ghost", Status: gatewaydomain.StatusSucceeded}, nil).Once()

	assert.NoError(t, f.svc.ReconcilePayment(context.Background(), "ghost"))
	assert.Zero(t, testsupport.Count(t, f.db, `SELECT COUNT(*) FROM transactions`))
}

func TestReconcileGatewayFailure(t *testing.T) {
	f := newFixture(t)
	f.gateway.On("GetPayment", mock.Anything, "pay-z").
		Return(gatewaydomain.Payment{}, gatewaydomain.ErrUnavailable).Once()

	err := f.svc.ReconcilePayment(context.Background(), "pay-z")
	assert.ErrorIs(t, err, billingdomain.ErrGatewayUnavailable)
	assert.ErrorIs(t, f.svc.ReconcilePayment(context.Background(), " "), billingdomain.ErrInvalidExtID)
}

func TestListTransactionsPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var last *ledgerdomain.Transaction
	for _, ext := range []string{"p1", "p2", "p3"} {
		last = f.purchaseSucceeded(t, uuid.New(), uuid.New(), ext)
	}

	first, err := f.svc.ListTransactions(ctx, billingdomain.ListTransactionsRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Transactions, 2)
	assert.True(t, first.PageInfo.HasMore)
	assert.True(t, first.Transactions[0].ID > first.Transactions[1].ID)

	second, err := f.svc.ListTransactions(ctx, billingdomain.ListTransactionsRequest{PageSize: 2, PageToken: first.PageInfo.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.Transactions, 1)
	assert.False(t, second.PageInfo.HasMore)

	own, err := f.svc.ListTransactions(ctx, billingdomain.ListTransactionsRequest{UserID: &last.UserID})
	require.NoError(t, err)
	require.Len(t, own.Transactions, 1)
	assert.Equal(t, last.ID, own.Transactions[0].ID)

	_, err = f.svc.ListTransactions(ctx, billingdomain.ListTransactionsRequest{PageToken: "%%%"})
	assert.Error(t, err)
}

func TestGetTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payment := f.purchaseSucceeded(t, uuid.New(), uuid.New(), "p-get")

	details, err := f.svc.GetTransaction(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, details.Transaction.ID)
	require.Len(t, details.Receipts, 1)
	require.NotNil(t, details.UserFilm)
	assert.True(t, details.UserFilm.IsActive)

	_, err = f.svc.GetTransaction(ctx, 12345)
	assert.ErrorIs(t, err, billingdomain.ErrTransactionNotFound)
}
