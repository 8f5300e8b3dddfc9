package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/eaglebank/ledger/internal/repository"
	"github.com/eaglebank/ledger/shared/cqrs"
	"github.com/eaglebank/ledger/shared/models"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

var ErrForbidden = errors.New("forbidden")

// AccountReader is the part of the account store the query side needs.
type AccountReader interface {
	Get(ctx context.Context, id string) (*models.Account, error)
}

// TransactionQueryService serves transaction history. Ownership is always checked
// before returning results; reads never touch balances.
type TransactionQueryService struct {
	history  repository.HistoryReader
	accounts AccountReader
}

func NewTransactionQueryService(history repository.HistoryReader, accounts AccountReader) *TransactionQueryService {
	return &TransactionQueryService{history: history, accounts: accounts}
}

func (s *TransactionQueryService) GetTransaction(ctx context.Context, q cqrs.GetTransactionQuery) (*models.TransactionView, error) {
	if err := s.checkOwner(ctx, q.AccountID, q.UserID); err != nil {
		return nil, err
	}
	view, err := s.history.GetByID(ctx, q.TransactionID)
	if err != nil {
		return nil, err
	}
	// Ids are not secret, so a transaction of another account reads as missing.
	if !view.Involves(q.AccountID) {
		return nil, repository.ErrTransactionNotFound
	}
	return view, nil
}

// ListAccountTransactions returns the newest transactions touching one of the caller's accounts.
func (s *TransactionQueryService) ListAccountTransactions(ctx context.Context, q cqrs.ListAccountTransactionsQuery) ([]models.TransactionView, error) {
	if err := s.checkOwner(ctx, q.AccountID, q.UserID); err != nil {
		return nil, err
	}
	return s.history.ListByAccount(ctx, q.AccountID, clamp(q.Limit))
}

// ListUserTransactions returns the newest transactions across all accounts of the caller.
func (s *TransactionQueryService) ListUserTransactions(ctx context.Context, q cqrs.ListUserTransactionsQuery) ([]models.TransactionView, error) {
	return s.history.ListByOwner(ctx, q.UserID, clamp(q.Limit))
}

func (s *TransactionQueryService) checkOwner(ctx context.Context, accountID, userID string) error {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return err
		}
		return fmt.Errorf("failed to load account: %w", err)
	}
	if account.OwnerID != userID {
		return ErrForbidden
	}
	return nil
}

func clamp(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
