package command

import (
	"context"
	"errors"
	"testing"

	"github.com/eaglebank/ledger/internal/ledger"
	"github.com/eaglebank/ledger/internal/repository/memory"
	"github.com/eaglebank/ledger/shared/cqrs"
	"github.com/eaglebank/ledger/shared/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockExecutor struct {
	executeFn func(ctx context.Context, in ledger.Intent) (*ledger.Result, error)
	intents   []ledger.Intent
}

func (m *mockExecutor) ExecuteTransfer(ctx context.Context, in ledger.Intent) (*ledger.Result, error) {
	m.intents = append(m.intents, in)
	if m.executeFn != nil {
		return m.executeFn(ctx, in)
	}
	return &ledger.Result{TransactionID: "tx-1", Kind: in.Kind}, nil
}

func TestTransferBuildsIntent(t *testing.T) {
	exec := &mockExecutor{}
	svc := NewTransferCommandService(exec)

	_, err := svc.Transfer(context.Background(), cqrs.TransferCommand{
		UserID:          "usr-1",
		Role:            "customer",
		FromAccountID:   "acc-1",
		ToAccountNumber: "01234567",
		Amount:          decimal.RequireFromString("12.5"),
		PIN:             "1234",
	})
	require.NoError(t, err)
	require.Len(t, exec.intents, 1)

	in := exec.intents[0]
	assert.Equal(t, models.KindTransfer, in.Kind)
	assert.Equal(t, "acc-1", in.SourceAccountID)
	assert.Equal(t, "01234567", in.Destination.AccountNumber)
	assert.Empty(t, in.Destination.AccountID)
	assert.Equal(t, "Internal transfer", in.Description)
	assert.Equal(t, ledger.Caller{UserID: "usr-1", Role: ledger.RoleCustomer}, in.Caller)
	assert.Equal(t, "1234", in.PIN)
}

func TestPaymentsCarryCounterparty(t *testing.T) {
	exec := &mockExecutor{}
	svc := NewTransferCommandService(exec)
	ctx := context.Background()

	_, err := svc.ExternalPayment(ctx, cqrs.ExternalPaymentCommand{
		UserID:        "usr-1",
		Role:          "customer",
		FromAccountID: "acc-1",
		BankName:      "Northern Bank",
		AccountNumber: "GB00NRTH1234",
		RecipientName: "J. Smith",
		Amount:        decimal.RequireFromString("1000"),
	})
	require.NoError(t, err)

	_, err = svc.ServicePayment(ctx, cqrs.ServicePaymentCommand{
		UserID:          "usr-1",
		Role:            "customer",
		FromAccountID:   "acc-1",
		ServiceType:     "electricity",
		ServiceProvider: "PowerCo",
		AccountNumber:   "PC-778",
		Amount:          decimal.RequireFromString("42"),
		Description:     "March",
	})
	require.NoError(t, err)
	require.Len(t, exec.intents, 2)

	ext := exec.intents[0]
	assert.Equal(t, models.KindExternalTransfer, ext.Kind)
	require.NotNil(t, ext.Destination.External)
	assert.Equal(t, "GB00NRTH1234", ext.Destination.External.AccountNumber)
	assert.Equal(t, "External transfer to Northern Bank account GB00NRTH1234 (J. Smith).", ext.Description)

	svcPay := exec.intents[1]
	assert.Equal(t, models.KindServicePayment, svcPay.Kind)
	assert.Equal(t, "PowerCo / electricity / PC-778", svcPay.Destination.External.String())
	assert.Equal(t, "Service payment: electricity (PowerCo), payer account PC-778. March", svcPay.Description)
}

func TestAdminAndAPIRolesAreFixed(t *testing.T) {
	exec := &mockExecutor{}
	svc := NewTransferCommandService(exec)
	ctx := context.Background()

	_, err := svc.AdminDeposit(ctx, cqrs.AdminDepositCommand{AdminID: "adm-1", AccountID: "acc-2", Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)
	_, err = svc.APITransfer(ctx, cqrs.APITransferCommand{
		UserID: "usr-7", APIKeyID: "key-1", FromAccountID: "acc-1", ToAccountID: "acc-2", Amount: decimal.NewFromInt(5),
	})
	require.NoError(t, err)

	assert.Equal(t, ledger.RoleAdmin, exec.intents[0].Caller.Role)
	assert.Empty(t, exec.intents[0].SourceAccountID)
	assert.Equal(t, "acc-2", exec.intents[0].Destination.AccountID)
	assert.Equal(t, ledger.RoleAPIKey, exec.intents[1].Caller.Role)
	assert.Equal(t, "key-1", exec.intents[1].Caller.APIKeyID)
	assert.Equal(t, "API transfer", exec.intents[1].Description)
}

func TestEngineErrorsPassThrough(t *testing.T) {
	busy := &ledger.Error{Kind: ledger.ErrBusy, Message: "retry"}
	svc := NewTransferCommandService(&mockExecutor{executeFn: func(context.Context, ledger.Intent) (*ledger.Result, error) {
		return nil, busy
	}})

	_, err := svc.SelfTransfer(context.Background(), cqrs.SelfTransferCommand{UserID: "usr-1", Role: "customer"})
	assert.True(t, errors.Is(err, ledger.ErrBusy))
}

func TestExternalPaymentAgainstEngine(t *testing.T) {
	store := memory.NewStore()
	engine := ledger.New(store, store, store, ledger.DefaultConfig())
	svc := NewTransferCommandService(engine)
	ctx := context.Background()

	acc, err := store.CreateAccount(ctx, "usr-1", models.AccountTypeChecking, "GBP")
	require.NoError(t, err)
	_, err = svc.AdminDeposit(ctx, cqrs.AdminDepositCommand{AdminID: "adm-1", AccountID: acc.ID, Amount: decimal.NewFromInt(2000)})
	require.NoError(t, err)

	res, err := svc.ExternalPayment(ctx, cqrs.ExternalPaymentCommand{
		UserID:        "usr-1",
		Role:          "customer",
		FromAccountID: acc.ID,
		BankName:      "Northern Bank",
		AccountNumber: "GB00NRTH1234",
		RecipientName: "J. Smith",
		Amount:        decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	engine.Wait()

	assert.True(t, decimal.NewFromInt(10).Equal(res.Commission))
	assert.True(t, decimal.NewFromInt(1010).Equal(res.TotalDebited))
	got, err := store.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(990).Equal(got.Balance))
}
