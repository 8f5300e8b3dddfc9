package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/eaglebank/ledger/internal/ledger"
	"github.com/eaglebank/ledger/shared/cqrs"
	"github.com/eaglebank/ledger/shared/models"
)

// Executor runs one money movement atomically.
type Executor interface {
	ExecuteTransfer(ctx context.Context, in ledger.Intent) (*ledger.Result, error)
}

// TransferCommandService turns request commands into ledger intents. It holds no
// rules of its own; every check happens inside the engine.
type TransferCommandService struct {
	engine Executor
}

func NewTransferCommandService(engine Executor) *TransferCommandService {
	return &TransferCommandService{engine: engine}
}

func (s *TransferCommandService) Transfer(ctx context.Context, cmd cqrs.TransferCommand) (*ledger.Result, error) {
	return s.engine.ExecuteTransfer(ctx, ledger.Intent{
		Kind:            models.KindTransfer,
		SourceAccountID: cmd.FromAccountID,
		Destination: ledger.Destination{
			AccountID:     cmd.ToAccountID,
			AccountNumber: cmd.ToAccountNumber,
		},
		Amount:      cmd.Amount,
		Description: orDefault(cmd.Description, "Internal transfer"),
		Caller:      ledger.Caller{UserID: cmd.UserID, Role: ledger.Role(cmd.Role)},
		PIN:         cmd.PIN,
	})
}

func (s *TransferCommandService) SelfTransfer(ctx context.Context, cmd cqrs.SelfTransferCommand) (*ledger.Result, error) {
	return s.engine.ExecuteTransfer(ctx, ledger.Intent{
		Kind:            models.KindSelfTransfer,
		SourceAccountID: cmd.FromAccountID,
		Destination:     ledger.Destination{AccountID: cmd.ToAccountID},
		Amount:          cmd.Amount,
		Description:     orDefault(cmd.Description, "Transfer between own accounts"),
		Caller:          ledger.Caller{UserID: cmd.UserID, Role: ledger.Role(cmd.Role)},
		PIN:             cmd.PIN,
	})
}

func (s *TransferCommandService) ExternalPayment(ctx context.Context, cmd cqrs.ExternalPaymentCommand) (*ledger.Result, error) {
	description := fmt.Sprintf("External transfer to %s account %s (%s). %s",
		cmd.BankName, cmd.AccountNumber, cmd.RecipientName, cmd.Description)

	return s.engine.ExecuteTransfer(ctx, ledger.Intent{
		Kind:            models.KindExternalTransfer,
		SourceAccountID: cmd.FromAccountID,
		Destination: ledger.Destination{External: &ledger.ExternalParty{
			BankName:      cmd.BankName,
			AccountNumber: cmd.AccountNumber,
			Name:          cmd.RecipientName,
		}},
		Amount:      cmd.Amount,
		Description: strings.TrimSpace(description),
		Caller:      ledger.Caller{UserID: cmd.UserID, Role: ledger.Role(cmd.Role)},
		PIN:         cmd.PIN,
	})
}

func (s *TransferCommandService) ServicePayment(ctx context.Context, cmd cqrs.ServicePaymentCommand) (*ledger.Result, error) {
	description := fmt.Sprintf("Service payment: %s (%s), payer account %s. %s",
		cmd.ServiceType, cmd.ServiceProvider, cmd.AccountNumber, cmd.Description)

	return s.engine.ExecuteTransfer(ctx, ledger.Intent{
		Kind:            models.KindServicePayment,
		SourceAccountID: cmd.FromAccountID,
		Destination: ledger.Destination{External: &ledger.ExternalParty{
			BankName:      cmd.ServiceType,
			AccountNumber: cmd.AccountNumber,
			Name:          cmd.ServiceProvider,
		}},
		Amount:      cmd.Amount,
		Description: strings.TrimSpace(description),
		Caller:      ledger.Caller{UserID: cmd.UserID, Role: ledger.Role(cmd.Role)},
		PIN:         cmd.PIN,
	})
}

func (s *TransferCommandService) AdminDeposit(ctx context.Context, cmd cqrs.AdminDepositCommand) (*ledger.Result, error) {
	return s.engine.ExecuteTransfer(ctx, ledger.Intent{
		Kind:        models.KindAdminDeposit,
		Destination: ledger.Destination{AccountID: cmd.AccountID},
		Amount:      cmd.Amount,
		Description: orDefault(cmd.Description, "Balance top-up by administrator"),
		Caller:      ledger.Caller{UserID: cmd.AdminID, Role: ledger.RoleAdmin},
	})
}

func (s *TransferCommandService) APITransfer(ctx context.Context, cmd cqrs.APITransferCommand) (*ledger.Result, error) {
	return s.engine.ExecuteTransfer(ctx, ledger.Intent{
		Kind:            models.KindAPITransfer,
		SourceAccountID: cmd.FromAccountID,
		Destination: ledger.Destination{
			AccountID:     cmd.ToAccountID,
			AccountNumber: cmd.ToAccountNumber,
		},
		Amount:      cmd.Amount,
		Description: orDefault(cmd.Description, "API transfer"),
		Caller:      ledger.Caller{UserID: cmd.UserID, Role: ledger.RoleAPIKey, APIKeyID: cmd.APIKeyID},
	})
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}
