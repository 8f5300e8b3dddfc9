package command

import (
	"context"
	"errors"

	"github.com/eaglebank/ledger/internal/repository"
	"github.com/eaglebank/ledger/shared/cqrs"
	"github.com/eaglebank/ledger/shared/logger"
	"github.com/eaglebank/ledger/shared/models"
	"github.com/eaglebank/ledger/shared/utils"
	"github.com/shopspring/decimal"
)

const minPINLength = 4

var (
	ErrInvalidLimit = errors.New("daily limit must be greater than zero")
	ErrPINRequired  = errors.New("current PIN is required")
	ErrPINMismatch  = errors.New("current PIN is incorrect")
	ErrPINTooShort  = errors.New("PIN must contain at least 4 digits")
)

// AccountSettingsStore writes the per-account settings the engine enforces.
type AccountSettingsStore interface {
	Get(ctx context.Context, id string) (*models.Account, error)
	SetDailyLimit(ctx context.Context, id string, limit decimal.NullDecimal) error
	SetFrozen(ctx context.Context, id string, frozen bool) error
	SetPIN(ctx context.Context, id, pin string) error
}

// AccountCommandService changes account settings on behalf of the owner. Accounts
// of other users are reported as not found.
type AccountCommandService struct {
	accounts AccountSettingsStore
}

func NewAccountCommandService(accounts AccountSettingsStore) *AccountCommandService {
	return &AccountCommandService{accounts: accounts}
}

func (s *AccountCommandService) SetDailyLimit(ctx context.Context, cmd cqrs.SetDailyLimitCommand) error {
	if cmd.DailyLimit.Valid && !cmd.DailyLimit.Decimal.IsPositive() {
		return ErrInvalidLimit
	}
	if _, err := s.owned(ctx, cmd.UserID, cmd.AccountID); err != nil {
		return err
	}
	if err := s.accounts.SetDailyLimit(ctx, cmd.AccountID, cmd.DailyLimit); err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	evt := log.Info().Str("account_id", cmd.AccountID)
	if cmd.DailyLimit.Valid {
		evt = evt.Str("daily_limit", cmd.DailyLimit.Decimal.String())
	}
	evt.Msg("daily limit updated")
	return nil
}

func (s *AccountCommandService) SetFrozen(ctx context.Context, cmd cqrs.FreezeAccountCommand) error {
	if _, err := s.owned(ctx, cmd.UserID, cmd.AccountID); err != nil {
		return err
	}
	if err := s.accounts.SetFrozen(ctx, cmd.AccountID, cmd.Freeze); err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	log.Info().Str("account_id", cmd.AccountID).Bool("frozen", cmd.Freeze).Msg("account freeze changed")
	return nil
}

func (s *AccountCommandService) ChangePIN(ctx context.Context, cmd cqrs.ChangePINCommand) error {
	if len(cmd.NewPIN) < minPINLength {
		return ErrPINTooShort
	}
	account, err := s.owned(ctx, cmd.UserID, cmd.AccountID)
	if err != nil {
		return err
	}
	if account.PINHash != "" {
		if cmd.OldPIN == "" {
			return ErrPINRequired
		}
		if !utils.CheckPIN(cmd.OldPIN, account.PINHash) {
			return ErrPINMismatch
		}
	}
	return s.accounts.SetPIN(ctx, cmd.AccountID, cmd.NewPIN)
}

func (s *AccountCommandService) owned(ctx context.Context, userID, accountID string) (*models.Account, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.OwnerID != userID {
		return nil, repository.ErrAccountNotFound
	}
	return account, nil
}
