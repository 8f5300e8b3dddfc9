// Package memory is an embedded account and ledger store.
//
// Row locks are per-account semaphores held for the lifetime of a unit of work.
// Balance deltas and appended entries are staged on the unit of work and become
// visible to other readers only on Commit.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/eaglebank/ledger/internal/repository"
	"github.com/eaglebank/ledger/shared/models"
	"github.com/eaglebank/ledger/shared/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultLockTimeout = 3 * time.Second

type Store struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
	byNumber map[string]string
	entries  []entry
	audit    []AuditEntry
	apiKeys  map[string]models.APIKey

	lockMu      sync.Mutex
	locks       map[string]chan struct{}
	lockTimeout time.Duration

	now func() time.Time
}

type entry struct {
	seq int64
	tx  models.Transaction
}

type Option func(*Store)

// WithLockTimeout bounds how long LockForUpdate waits for a held row.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

// WithClock replaces the time source used for account timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		accounts:    make(map[string]*models.Account),
		byNumber:    make(map[string]string),
		apiKeys:     make(map[string]models.APIKey),
		locks:       make(map[string]chan struct{}),
		lockTimeout: defaultLockTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type memTx struct {
	store    *Store
	held     map[string]struct{}
	deltas   map[string]decimal.Decimal
	appended []models.Transaction
	done     bool
}

func (s *Store) Begin(ctx context.Context) (repository.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memTx{
		store:  s,
		held:   make(map[string]struct{}),
		deltas: make(map[string]decimal.Decimal),
	}, nil
}

func (t *memTx) Commit() error {
	if t.done {
		return repository.ErrTxDone
	}
	s := t.store
	s.mu.Lock()
	for id, delta := range t.deltas {
		acc := s.accounts[id]
		if acc.AccountType != models.AccountTypeCredit && acc.Balance.Add(delta).IsNegative() {
			s.mu.Unlock()
			t.release()
			return fmt.Errorf("account %s: %w", id, repository.ErrBalanceConstraint)
		}
	}
	now := s.now()
	for id, delta := range t.deltas {
		acc := s.accounts[id]
		acc.Balance = acc.Balance.Add(delta)
		acc.UpdatedAt = now
	}
	for _, tx := range t.appended {
		s.entries = append(s.entries, entry{seq: int64(len(s.entries)), tx: tx})
	}
	s.mu.Unlock()
	t.release()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.release()
	return nil
}

func (t *memTx) release() {
	t.done = true
	for id := range t.held {
		t.store.unlock(id)
	}
	t.held = nil
}

func (s *Store) own(tx repository.Tx) (*memTx, error) {
	mt, ok := tx.(*memTx)
	if !ok || mt.store != s {
		return nil, repository.ErrForeignTx
	}
	if mt.done {
		return nil, repository.ErrTxDone
	}
	return mt, nil
}

func (s *Store) lockChan(id string) chan struct{} {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}
	return ch
}

func (s *Store) unlock(id string) {
	<-s.lockChan(id)
}

func (s *Store) LockForUpdate(ctx context.Context, tx repository.Tx, id string) (*models.Account, error) {
	mt, err := s.own(tx)
	if err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if _, held := mt.held[id]; !held {
		timer := time.NewTimer(s.lockTimeout)
		defer timer.Stop()
		select {
		case s.lockChan(id) <- struct{}{}:
			mt.held[id] = struct{}{}
		case <-timer.C:
			return nil, fmt.Errorf("account %s: %w", id, repository.ErrLockTimeout)
		case <-ctx.Done():
			return nil, fmt.Errorf("account %s: %w: %w", id, repository.ErrLockTimeout, ctx.Err())
		}
	}
	acc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	acc.Balance = acc.Balance.Add(mt.deltas[id])
	return acc, nil
}

func (s *Store) Get(_ context.Context, id string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	cp := *acc
	return &cp, nil
}

func (s *Store) GetByNumber(ctx context.Context, _ repository.Tx, accountNumber string) (*models.Account, error) {
	s.mu.RLock()
	id, ok := s.byNumber[accountNumber]
	s.mu.RUnlock()
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return s.Get(ctx, id)
}

func (s *Store) ApplyDelta(_ context.Context, tx repository.Tx, id string, delta decimal.Decimal) error {
	mt, err := s.own(tx)
	if err != nil {
		return err
	}
	if _, held := mt.held[id]; !held {
		return fmt.Errorf("account %s: %w", id, repository.ErrNotLocked)
	}
	mt.deltas[id] = mt.deltas[id].Add(delta)
	return nil
}

func (s *Store) IsOwnedBy(ctx context.Context, id, ownerID string) (bool, error) {
	acc, err := s.Get(ctx, id)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return acc.OwnerID == ownerID, nil
}

func (s *Store) Append(_ context.Context, tx repository.Tx, t *models.Transaction) error {
	mt, err := s.own(tx)
	if err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	mt.appended = append(mt.appended, *t)
	return nil
}

func (s *Store) SumCompletedDebits(_ context.Context, tx repository.Tx, accountID string, from, to time.Time) (decimal.Decimal, error) {
	mt, err := s.own(tx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	add := func(t *models.Transaction) {
		if t.Status == models.StatusCompleted && t.IsDebitOf(accountID) &&
			!t.CreatedAt.Before(from) && t.CreatedAt.Before(to) {
			total = total.Add(t.Amount)
		}
	}
	s.mu.RLock()
	for i := range s.entries {
		add(&s.entries[i].tx)
	}
	s.mu.RUnlock()
	for i := range mt.appended {
		add(&mt.appended[i])
	}
	return total, nil
}

// CreateAccount opens a zero-balance active account for ownerID.
func (s *Store) CreateAccount(_ context.Context, ownerID, accountType, currency string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	number := utils.GenerateAccountNumber()
	for s.byNumber[number] != "" {
		number = utils.GenerateAccountNumber()
	}
	now := s.now()
	acc := &models.Account{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		AccountNumber: number,
		AccountType:   accountType,
		Balance:       decimal.Zero,
		Currency:      currency,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.accounts[acc.ID] = acc
	s.byNumber[number] = acc.ID
	cp := *acc
	return &cp, nil
}

func (s *Store) update(id string, fn func(*models.Account) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	if err := fn(acc); err != nil {
		return err
	}
	acc.UpdatedAt = s.now()
	return nil
}

func (s *Store) SetFrozen(_ context.Context, id string, frozen bool) error {
	return s.update(id, func(a *models.Account) error { a.IsFrozen = frozen; return nil })
}

func (s *Store) SetActive(_ context.Context, id string, active bool) error {
	return s.update(id, func(a *models.Account) error { a.IsActive = active; return nil })
}

func (s *Store) SetDailyLimit(_ context.Context, id string, limit decimal.NullDecimal) error {
	return s.update(id, func(a *models.Account) error { a.DailyLimit = limit; return nil })
}

func (s *Store) SetPIN(_ context.Context, id, pin string) error {
	hash, err := utils.HashPIN(pin)
	if err != nil {
		return err
	}
	return s.update(id, func(a *models.Account) error { a.PINHash = hash; return nil })
}

// Transactions returns every committed entry in append order.
func (s *Store) Transactions() []models.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Transaction, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.tx
	}
	return out
}

// GetByID returns a committed entry as a view.
func (s *Store) GetByID(_ context.Context, id string) (*models.TransactionView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.entries {
		if s.entries[i].tx.ID == id {
			v := s.view(&s.entries[i].tx)
			return &v, nil
		}
	}
	return nil, repository.ErrTransactionNotFound
}

// ListByAccount returns up to limit entries touching accountID, newest first.
func (s *Store) ListByAccount(_ context.Context, accountID string, limit int) ([]models.TransactionView, error) {
	return s.list(limit, func(t *models.Transaction) bool {
		return t.IsDebitOf(accountID) || (t.ToAccountID != nil && *t.ToAccountID == accountID)
	}), nil
}

// ListByOwner returns up to limit entries touching any account of ownerID, newest first.
func (s *Store) ListByOwner(_ context.Context, ownerID string, limit int) ([]models.TransactionView, error) {
	s.mu.RLock()
	owned := make(map[string]bool)
	for id, acc := range s.accounts {
		if acc.OwnerID == ownerID {
			owned[id] = true
		}
	}
	s.mu.RUnlock()
	return s.list(limit, func(t *models.Transaction) bool {
		return (t.FromAccountID != nil && owned[*t.FromAccountID]) || (t.ToAccountID != nil && owned[*t.ToAccountID])
	}), nil
}

func (s *Store) list(limit int, match func(*models.Transaction) bool) []models.TransactionView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var picked []entry
	for _, e := range s.entries {
		if match(&e.tx) {
			picked = append(picked, e)
		}
	}
	sort.SliceStable(picked, func(i, j int) bool {
		if !picked[i].tx.CreatedAt.Equal(picked[j].tx.CreatedAt) {
			return picked[i].tx.CreatedAt.After(picked[j].tx.CreatedAt)
		}
		return picked[i].seq > picked[j].seq
	})
	if limit > 0 && len(picked) > limit {
		picked = picked[:limit]
	}
	views := make([]models.TransactionView, 0, len(picked))
	for _, e := range picked {
		views = append(views, s.view(&e.tx))
	}
	return views
}

func (s *Store) view(t *models.Transaction) models.TransactionView {
	v := models.TransactionView{
		ID:           t.ID,
		Amount:       t.Amount,
		Currency:     t.Currency,
		Type:         t.Kind,
		Description:  t.Description,
		Counterparty: t.Counterparty,
		Status:       t.Status,
		CreatedAt:    t.CreatedAt,
	}
	if t.FromAccountID != nil {
		v.FromAccountID = *t.FromAccountID
		if acc, ok := s.accounts[v.FromAccountID]; ok {
			v.FromAccountNumber = acc.AccountNumber
		}
	}
	if t.ToAccountID != nil {
		v.ToAccountID = *t.ToAccountID
		if acc, ok := s.accounts[v.ToAccountID]; ok {
			v.ToAccountNumber = acc.AccountNumber
		}
	}
	return v
}

// AuditEntry is one recorded administrative action.
type AuditEntry struct {
	AdminID         string
	Action          string
	TargetAccountID string
	Details         string
	CreatedAt       time.Time
}

func (s *Store) RecordAdminAction(_ context.Context, adminID, action, targetAccountID, details string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, AuditEntry{
		AdminID:         adminID,
		Action:          action,
		TargetAccountID: targetAccountID,
		Details:         details,
		CreatedAt:       s.now(),
	})
	return nil
}

func (s *Store) AuditEntries() []AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]AuditEntry(nil), s.audit...)
}

// AddAPIKey registers a partner key under the hash of rawKey.
func (s *Store) AddAPIKey(rawKey string, key models.APIKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key.ID == "" {
		key.ID = uuid.NewString()
	}
	s.apiKeys[utils.HashAPIKey(rawKey)] = key
}

func (s *Store) ResolveAPIKey(_ context.Context, rawKey string) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.apiKeys[utils.HashAPIKey(rawKey)]
	if !ok {
		return nil, repository.ErrAPIKeyNotFound
	}
	return &key, nil
}
