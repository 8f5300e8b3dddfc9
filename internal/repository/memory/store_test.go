package memory

import (
	"context"
	"testing"
	"time"

	"github.com/eaglebank/ledger/internal/repository"
	"github.com/eaglebank/ledger/shared/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccount(t *testing.T, s *Store, owner string) *models.Account {
	t.Helper()
	acc, err := s.CreateAccount(context.Background(), owner, models.AccountTypeChecking, "GBP")
	require.NoError(t, err)
	return acc
}

func fund(t *testing.T, s *Store, id string, amount string) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = s.LockForUpdate(ctx, tx, id)
	require.NoError(t, err)
	require.NoError(t, s.ApplyDelta(ctx, tx, id, decimal.RequireFromString(amount)))
	require.NoError(t, tx.Commit())
}

func TestCreateAccountStartsEmpty(t *testing.T) {
	s := NewStore()
	acc := newAccount(t, s, "usr-1")

	assert.True(t, acc.Balance.IsZero())
	assert.True(t, acc.IsActive)
	assert.Len(t, acc.AccountNumber, 8)

	byNumber, err := s.GetByNumber(context.Background(), nil, acc.AccountNumber)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, byNumber.ID)
}

func TestDeltasInvisibleUntilCommit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	acc := newAccount(t, s, "usr-1")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = s.LockForUpdate(ctx, tx, acc.ID)
	require.NoError(t, err)
	require.NoError(t, s.ApplyDelta(ctx, tx, acc.ID, decimal.NewFromInt(50)))

	outside, err := s.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, outside.Balance.IsZero())

	inside, err := s.LockForUpdate(ctx, tx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "50", inside.Balance.String())

	require.NoError(t, tx.Commit())
	after, err := s.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "50", after.Balance.String())
}

func TestRollbackDiscardsEverything(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	acc := newAccount(t, s, "usr-1")
	fund(t, s, acc.ID, "100")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = s.LockForUpdate(ctx, tx, acc.ID)
	require.NoError(t, err)
	require.NoError(t, s.ApplyDelta(ctx, tx, acc.ID, decimal.NewFromInt(-40)))
	require.NoError(t, s.Append(ctx, tx, &models.Transaction{
		FromAccountID: &acc.ID, Amount: decimal.NewFromInt(40), Kind: models.KindServicePayment,
		Status: models.StatusCompleted, CreatedAt: time.Now(),
	}))
	require.NoError(t, tx.Rollback())
	require.NoError(t, tx.Rollback())

	after, err := s.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "100", after.Balance.String())
	assert.Empty(t, s.Transactions())
	assert.ErrorIs(t, tx.Commit(), repository.ErrTxDone)
}

func TestApplyDeltaRequiresLock(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	acc := newAccount(t, s, "usr-1")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	err = s.ApplyDelta(ctx, tx, acc.ID, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, repository.ErrNotLocked)
}

func TestLockWaitTimesOut(t *testing.T) {
	ctx := context.Background()
	s := NewStore(WithLockTimeout(20 * time.Millisecond))
	acc := newAccount(t, s, "usr-1")

	holder, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = s.LockForUpdate(ctx, holder, acc.ID)
	require.NoError(t, err)

	waiter, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = s.LockForUpdate(ctx, waiter, acc.ID)
	assert.ErrorIs(t, err, repository.ErrLockTimeout)
	require.NoError(t, waiter.Rollback())

	require.NoError(t, holder.Rollback())

	again, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = s.LockForUpdate(ctx, again, acc.ID)
	assert.NoError(t, err)
	require.NoError(t, again.Rollback())
}

func TestLockWaiterSeesWinnersCommit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	acc := newAccount(t, s, "usr-1")
	fund(t, s, acc.ID, "100")

	holder, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = s.LockForUpdate(ctx, holder, acc.ID)
	require.NoError(t, err)

	seen := make(chan decimal.Decimal, 1)
	go func() {
		tx, _ := s.Begin(ctx)
		defer tx.Rollback()
		a, err := s.LockForUpdate(ctx, tx, acc.ID)
		if err != nil {
			seen <- decimal.NewFromInt(-1)
			return
		}
		seen <- a.Balance
	}()

	require.NoError(t, s.ApplyDelta(ctx, holder, acc.ID, decimal.NewFromInt(-30)))
	require.NoError(t, holder.Commit())

	select {
	case bal := <-seen:
		assert.Equal(t, "70", bal.String())
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never acquired the lock")
	}
}

func TestCommitRefusesNegativeNonCreditBalance(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	acc := newAccount(t, s, "usr-1")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = s.LockForUpdate(ctx, tx, acc.ID)
	require.NoError(t, err)
	require.NoError(t, s.ApplyDelta(ctx, tx, acc.ID, decimal.NewFromInt(-1)))

	assert.ErrorIs(t, tx.Commit(), repository.ErrBalanceConstraint)
	after, _ := s.Get(ctx, acc.ID)
	assert.True(t, after.Balance.IsZero())
}

func TestSumCompletedDebitsWindow(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	acc := newAccount(t, s, "usr-1")
	other := newAccount(t, s, "usr-2")
	day := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	seed, _ := s.Begin(ctx)
	entries := []models.Transaction{
		{FromAccountID: &acc.ID, Amount: decimal.NewFromInt(100), Status: models.StatusCompleted, CreatedAt: day.Add(time.Hour)},
		{FromAccountID: &acc.ID, Amount: decimal.NewFromInt(50), Status: models.StatusCompleted, CreatedAt: day.Add(-time.Minute)},
		{FromAccountID: &acc.ID, Amount: decimal.NewFromInt(25), Status: models.StatusFailed, CreatedAt: day.Add(2 * time.Hour)},
		{ToAccountID: &acc.ID, Amount: decimal.NewFromInt(500), Status: models.StatusCompleted, CreatedAt: day.Add(time.Hour)},
		{FromAccountID: &other.ID, Amount: decimal.NewFromInt(7), Status: models.StatusCompleted, CreatedAt: day.Add(time.Hour)},
	}
	for i := range entries {
		require.NoError(t, s.Append(ctx, seed, &entries[i]))
	}
	require.NoError(t, seed.Commit())

	tx, _ := s.Begin(ctx)
	defer tx.Rollback()
	total, err := s.SumCompletedDebits(ctx, tx, acc.ID, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "100", total.String())
}

func TestListByAccountNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a := newAccount(t, s, "usr-1")
	b := newAccount(t, s, "usr-2")
	base := time.Now().UTC()

	tx, _ := s.Begin(ctx)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Append(ctx, tx, &models.Transaction{
			FromAccountID: &a.ID, ToAccountID: &b.ID, Amount: decimal.NewFromInt(int64(i + 1)),
			Kind: models.KindTransfer, Status: models.StatusCompleted, CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, tx.Commit())

	views, err := s.ListByAccount(ctx, b.ID, 2)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "3", views[0].Amount.String())
	assert.Equal(t, a.AccountNumber, views[0].FromAccountNumber)
	assert.Equal(t, b.AccountNumber, views[0].ToAccountNumber)

	owned, err := s.ListByOwner(ctx, "usr-1", 0)
	require.NoError(t, err)
	assert.Len(t, owned, 3)
}

func TestGetByIDAndAuditAndAPIKeys(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a := newAccount(t, s, "usr-1")

	tx, _ := s.Begin(ctx)
	entry := &models.Transaction{ToAccountID: &a.ID, Amount: decimal.NewFromInt(10),
		Kind: models.KindAdminDeposit, Status: models.StatusCompleted, CreatedAt: time.Now()}
	require.NoError(t, s.Append(ctx, tx, entry))
	require.NoError(t, tx.Commit())

	view, err := s.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, a.AccountNumber, view.ToAccountNumber)
	_, err = s.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrTransactionNotFound)

	require.NoError(t, s.RecordAdminAction(ctx, "adm-1", "ADD_BALANCE", a.ID, "Added 10 GBP"))
	require.Len(t, s.AuditEntries(), 1)
	assert.Equal(t, "adm-1", s.AuditEntries()[0].AdminID)

	s.AddAPIKey("secret", models.APIKey{UserID: "usr-1", IsActive: true, Permissions: []string{"create:transfer"}})
	key, err := s.ResolveAPIKey(ctx, "secret")
	require.NoError(t, err)
	assert.Equal(t, "usr-1", key.UserID)
	_, err = s.ResolveAPIKey(ctx, "nope")
	assert.ErrorIs(t, err, repository.ErrAPIKeyNotFound)
	// the middleware matches on the shared sentinel
	assert.ErrorIs(t, err, models.ErrAPIKeyNotFound)
}
