package query

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/eaglebank/ledger/internal/ledger"
	"github.com/eaglebank/ledger/internal/repository"
	"github.com/eaglebank/ledger/internal/repository/memory"
	"github.com/eaglebank/ledger/internal/repository/postgres"
	"github.com/eaglebank/ledger/shared/cqrs"
	"github.com/eaglebank/ledger/shared/events"
	"github.com/eaglebank/ledger/shared/models"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type history struct {
	store  *memory.Store
	svc    *TransactionQueryService
	alice  *models.Account
	bob    *models.Account
	result *ledger.Result
}

func newHistory(t *testing.T) *history {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	engine := ledger.New(store, store, store, ledger.DefaultConfig())

	alice, err := store.CreateAccount(ctx, "usr-alice", models.AccountTypeChecking, "GBP")
	require.NoError(t, err)
	bob, err := store.CreateAccount(ctx, "usr-bob", models.AccountTypeChecking, "GBP")
	require.NoError(t, err)

	_, err = engine.ExecuteTransfer(ctx, ledger.Intent{
		Kind:        models.KindAdminDeposit,
		Destination: ledger.Destination{AccountID: alice.ID},
		Amount:      decimal.NewFromInt(100),
		Caller:      ledger.Caller{UserID: "usr-admin", Role: ledger.RoleAdmin},
	})
	require.NoError(t, err)
	res, err := engine.ExecuteTransfer(ctx, ledger.Intent{
		Kind:            models.KindTransfer,
		SourceAccountID: alice.ID,
		Destination:     ledger.Destination{AccountID: bob.ID},
		Amount:          decimal.NewFromInt(30),
		Caller:          ledger.Caller{UserID: "usr-alice", Role: ledger.RoleCustomer},
	})
	require.NoError(t, err)

	return &history{store: store, svc: NewTransactionQueryService(store, store), alice: alice, bob: bob, result: res}
}

func TestListAccountTransactions(t *testing.T) {
	h := newHistory(t)
	ctx := context.Background()

	views, err := h.svc.ListAccountTransactions(ctx, cqrs.ListAccountTransactionsQuery{AccountID: h.alice.ID, UserID: "usr-alice"})
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, h.result.TransactionID, views[0].ID)
	assert.Equal(t, models.KindAdminDeposit, views[1].Type)

	_, err = h.svc.ListAccountTransactions(ctx, cqrs.ListAccountTransactionsQuery{AccountID: h.alice.ID, UserID: "usr-bob"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.svc.ListAccountTransactions(ctx, cqrs.ListAccountTransactionsQuery{AccountID: "missing", UserID: "usr-bob"})
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
}

func TestHistoryReadsDoNotChangeBalances(t *testing.T) {
	h := newHistory(t)
	ctx := context.Background()
	q := cqrs.ListUserTransactionsQuery{UserID: "usr-bob", Limit: 1000}

	first, err := h.svc.ListUserTransactions(ctx, q)
	require.NoError(t, err)
	second, err := h.svc.ListUserTransactions(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.Len(t, first, 1)

	acc, err := h.store.Get(ctx, h.bob.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(30).Equal(acc.Balance))
}

func TestGetTransactionScopedToAccount(t *testing.T) {
	h := newHistory(t)
	ctx := context.Background()

	view, err := h.svc.GetTransaction(ctx, cqrs.GetTransactionQuery{
		TransactionID: h.result.TransactionID, AccountID: h.bob.ID, UserID: "usr-bob",
	})
	require.NoError(t, err)
	assert.Equal(t, h.alice.AccountNumber, view.FromAccountNumber)

	other, err := h.store.CreateAccount(ctx, "usr-bob", models.AccountTypeSavings, "GBP")
	require.NoError(t, err)
	_, err = h.svc.GetTransaction(ctx, cqrs.GetTransactionQuery{
		TransactionID: h.result.TransactionID, AccountID: other.ID, UserID: "usr-bob",
	})
	assert.ErrorIs(t, err, repository.ErrTransactionNotFound)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, DefaultLimit, clamp(0))
	assert.Equal(t, 7, clamp(7))
	assert.Equal(t, MaxLimit, clamp(500))
}

func completedEvent(t *testing.T, payload events.TransactionCompletedEvent) events.Event {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return events.Event{Type: events.TransactionCompleted, Timestamp: time.Now(), Data: data}
}

func TestHistoryProjectorCachesViews(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	// Every read below is served from the cache, so no database is needed.
	readRepo := postgres.NewTransactionReadRepository(nil, client)
	projector := NewHistoryProjector(readRepo)
	ctx := context.Background()

	created := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	err := projector.Handle(ctx, completedEvent(t, events.TransactionCompletedEvent{
		TransactionID:           "tx-main",
		CommissionTransactionID: "tx-fee",
		Type:                    models.KindExternalTransfer,
		Amount:                  decimal.NewFromInt(1000),
		Commission:              decimal.NewFromInt(10),
		Currency:                "GBP",
		FromAccountID:           "acc-1",
		FromAccountNumber:       "01234567",
		Counterparty:            "J. Smith / Northern Bank / GB00",
		CreatedAt:               created,
	}))
	require.NoError(t, err)

	mainView, err := readRepo.GetByID(ctx, "tx-main")
	require.NoError(t, err)
	assert.Equal(t, "J. Smith / Northern Bank / GB00", mainView.Counterparty)
	assert.True(t, created.Equal(mainView.CreatedAt))

	fee, err := readRepo.GetByID(ctx, "tx-fee")
	require.NoError(t, err)
	assert.Equal(t, models.KindCommission, fee.Type)
	assert.True(t, decimal.NewFromInt(10).Equal(fee.Amount))
	assert.Equal(t, "Commission for external transfer tx-main", fee.Description)
}

func TestHistoryProjectorSkipsOtherEvents(t *testing.T) {
	var cached []*models.TransactionView
	projector := NewHistoryProjector(cacherFunc(func(_ context.Context, v *models.TransactionView) {
		cached = append(cached, v)
	}))

	require.NoError(t, projector.Handle(context.Background(), events.Event{Type: "account.created"}))
	assert.Empty(t, cached)

	err := projector.Handle(context.Background(), events.Event{Type: events.TransactionCompleted, Data: []byte("{")})
	assert.Error(t, err)
}

type cacherFunc func(ctx context.Context, view *models.TransactionView)

func (f cacherFunc) CacheTransactionView(ctx context.Context, view *models.TransactionView) {
	f(ctx, view)
}
