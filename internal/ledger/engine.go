// Package ledger moves money between accounts.
//
// Every operation runs in one unit of work: participants are locked in ascending
// account-id order, validated against the locked rows, mutated with relative
// deltas and recorded as completed transactions before a single commit. Any
// failure before commit rolls everything back.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/eaglebank/ledger/internal/limit"
	"github.com/eaglebank/ledger/internal/repository"
	"github.com/eaglebank/ledger/shared/models"
	"github.com/eaglebank/ledger/shared/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/eaglebank/ledger/internal/ledger"

// AuditAddBalance is the admin action written to the audit log for deposits.
const AuditAddBalance = "ADD_BALANCE"

type Config struct {
	CommissionRate decimal.Decimal
	CommissionMin  decimal.Decimal
	// Timeout bounds one whole unit of work, lock waits included.
	Timeout       time.Duration
	NotifyTimeout time.Duration
	// Location defines the calendar day used for daily limits.
	Location *time.Location
}

func DefaultConfig() Config {
	return Config{
		CommissionRate: decimal.RequireFromString("0.01"),
		CommissionMin:  decimal.NewFromInt(10),
		Timeout:        5 * time.Second,
		NotifyTimeout:  5 * time.Second,
		Location:       time.UTC,
	}
}

// Commission returns the fee charged on an external transfer of amount.
func (c Config) Commission(amount decimal.Decimal, currency string) decimal.Decimal {
	fee := amount.Mul(c.CommissionRate)
	if fee.LessThan(c.CommissionMin) {
		fee = c.CommissionMin
	}
	return fee.Round(models.MinorUnits(currency))
}

// Notification describes a committed operation.
type Notification struct {
	TransactionID           string
	CommissionTransactionID string
	Kind                    string
	Amount                  decimal.Decimal
	Commission              decimal.Decimal
	Currency                string
	FromAccountID           string
	FromAccountNumber       string
	ToAccountID             string
	ToAccountNumber         string
	Counterparty            string
	// SourceOwnerID and DestinationOwnerID are empty for external sides.
	SourceOwnerID      string
	DestinationOwnerID string
	Description        string
	// APIKeyID is set for operations requested through a partner key.
	APIKeyID  string
	CreatedAt time.Time
}

// Notifier is told about every committed operation. It runs after commit on its
// own goroutine; its errors are logged and dropped.
type Notifier interface {
	TransactionCommitted(ctx context.Context, n Notification) error
}

type Engine struct {
	uow          repository.UnitOfWork
	accounts     repository.AccountStore
	transactions repository.TransactionStore
	cfg          Config

	notifier Notifier
	auditor  repository.AuditLog
	tracer   trace.Tracer
	log      zerolog.Logger
	now      func() time.Time

	inflight sync.WaitGroup
}

type Option func(*Engine)

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func WithAuditor(a repository.AuditLog) Option {
	return func(e *Engine) { e.auditor = a }
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(uow repository.UnitOfWork, accounts repository.AccountStore, transactions repository.TransactionStore, cfg Config, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.CommissionRate.IsZero() && cfg.CommissionMin.IsZero() {
		cfg.CommissionRate, cfg.CommissionMin = def.CommissionRate, def.CommissionMin
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = def.NotifyTimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	e := &Engine{
		uow:          uow,
		accounts:     accounts,
		transactions: transactions,
		cfg:          cfg,
		tracer:       otel.Tracer(tracerName),
		log:          zerolog.Nop(),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Wait blocks until every dispatched notification has returned.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

// participants holds the locked rows of one operation. Nil means the row does not exist.
type participants struct {
	source *models.Account
	dest   *models.Account
}

func (e *Engine) ExecuteTransfer(ctx context.Context, in Intent) (_ *Result, err error) {
	ctx, span := e.tracer.Start(ctx, "ledger.ExecuteTransfer",
		trace.WithAttributes(attribute.String("ledger.kind", in.Kind)))
	defer func() {
		if err != nil {
			outcome := ErrInternal.Error()
			if le, ok := AsError(err); ok {
				outcome = le.Kind.Error()
			}
			span.SetAttributes(attribute.String("ledger.outcome", outcome))
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetAttributes(attribute.String("ledger.outcome", models.StatusCompleted))
		}
		span.End()
	}()

	r, verr := checkShape(in)
	if verr != nil {
		return nil, verr
	}

	opCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	tx, err := e.uow.Begin(opCtx)
	if err != nil {
		return nil, e.storeFailure(opCtx, "begin", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil {
			e.log.Error().Err(rbErr).Str("kind", in.Kind).Msg("rollback failed")
		}
	}()

	p, err := e.lock(opCtx, tx, in)
	if err != nil {
		return nil, err
	}

	currency, err := e.checkSource(in, r, p)
	if err != nil {
		return nil, err
	}

	commission := decimal.Zero
	if r.commission {
		commission = e.cfg.Commission(in.Amount, currency)
	}
	debit := in.Amount.Add(commission)

	if p.source != nil {
		if err := e.checkFunds(opCtx, tx, p.source, debit); err != nil {
			return nil, err
		}
	}

	if r.internalDest {
		if currency, err = e.checkDestination(in, r, p, currency); err != nil {
			return nil, err
		}
	}

	now := e.now()
	entry := &models.Transaction{
		Amount:      in.Amount,
		Currency:    currency,
		Kind:        in.Kind,
		Description: in.Description,
		Status:      models.StatusCompleted,
		CreatedAt:   now,
	}
	if p.source != nil {
		entry.FromAccountID = &p.source.ID
	}
	if p.dest != nil {
		entry.ToAccountID = &p.dest.ID
	}
	if in.Destination.External != nil {
		entry.Counterparty = in.Destination.External.String()
	}

	if p.source != nil {
		if err := e.accounts.ApplyDelta(opCtx, tx, p.source.ID, debit.Neg()); err != nil {
			return nil, e.storeFailure(opCtx, "debit source", err)
		}
	}
	if p.dest != nil {
		if err := e.accounts.ApplyDelta(opCtx, tx, p.dest.ID, in.Amount); err != nil {
			return nil, e.storeFailure(opCtx, "credit destination", err)
		}
	}
	if err := e.transactions.Append(opCtx, tx, entry); err != nil {
		return nil, e.storeFailure(opCtx, "append transaction", err)
	}

	var fee *models.Transaction
	if commission.IsPositive() {
		fee = &models.Transaction{
			FromAccountID: &p.source.ID,
			Amount:        commission,
			Currency:      currency,
			Kind:          models.KindCommission,
			Description:   fmt.Sprintf("Commission for external transfer %s", entry.ID),
			Status:        models.StatusCompleted,
			CreatedAt:     now,
		}
		if err := e.transactions.Append(opCtx, tx, fee); err != nil {
			return nil, e.storeFailure(opCtx, "append commission", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, e.storeFailure(opCtx, "commit", err)
	}

	res := &Result{
		TransactionID: entry.ID,
		Kind:          in.Kind,
		Amount:        in.Amount,
		Commission:    commission,
		Currency:      currency,
		Status:        models.StatusCompleted,
		CreatedAt:     now,
	}
	if p.source != nil {
		res.TotalDebited = debit
		res.FromAccountID = p.source.ID
		res.FromAccountNumber = p.source.AccountNumber
	}
	if p.dest != nil {
		res.ToAccountID = p.dest.ID
		res.ToAccountNumber = p.dest.AccountNumber
	}
	if fee != nil {
		res.CommissionTransactionID = fee.ID
	}
	span.SetAttributes(attribute.String("ledger.transaction_id", res.TransactionID))

	evt := e.log.Info().
		Str("transaction_id", res.TransactionID).
		Str("kind", res.Kind).
		Str("amount", res.Amount.String()).
		Str("commission", commission.String()).
		Str("currency", currency)
	if in.Caller.APIKeyID != "" {
		evt = evt.Str("api_key_id", in.Caller.APIKeyID)
	}
	evt.Msg("transaction committed")

	e.afterCommit(ctx, in, res, p)
	return res, nil
}

// lock resolves the destination and locks every participant in ascending id order.
// An unknown destination number leaves p.dest nil, as a missing row does, so the
// source checks still run first.
func (e *Engine) lock(ctx context.Context, tx repository.Tx, in Intent) (*participants, error) {
	destID := in.Destination.AccountID
	if destID == "" && in.Destination.AccountNumber != "" {
		acc, err := e.accounts.GetByNumber(ctx, tx, in.Destination.AccountNumber)
		switch {
		case errors.Is(err, repository.ErrAccountNotFound):
		case err != nil:
			return nil, e.storeFailure(ctx, "resolve destination", err)
		default:
			destID = acc.ID
		}
	}
	if in.SourceAccountID != "" && in.SourceAccountID == destID {
		return nil, invalid("source and destination must differ")
	}

	ids := make([]string, 0, 2)
	for _, id := range []string{in.SourceAccountID, destID} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	locked := make(map[string]*models.Account, len(ids))
	for _, id := range ids {
		acc, err := e.accounts.LockForUpdate(ctx, tx, id)
		if errors.Is(err, repository.ErrAccountNotFound) {
			locked[id] = nil
			continue
		}
		if err != nil {
			return nil, e.storeFailure(ctx, "lock account", err)
		}
		locked[id] = acc
	}

	p := &participants{}
	if in.SourceAccountID != "" {
		p.source = locked[in.SourceAccountID]
	}
	if destID != "" {
		p.dest = locked[destID]
	}
	return p, nil
}

// checkSource validates the locked source row and returns its currency.
func (e *Engine) checkSource(in Intent, r rule, p *participants) (string, error) {
	if !r.source {
		return "", nil
	}
	src := p.source
	if src == nil || (r.ownsSource && src.OwnerID != in.Caller.UserID) {
		return "", unavailable("source account not found")
	}
	if !src.IsActive {
		return "", unavailable("source account is closed")
	}
	if src.IsFrozen {
		return "", unavailable("source account is frozen")
	}
	if src.PINHash != "" && in.PIN != "" && !utils.CheckPIN(in.PIN, src.PINHash) {
		return "", invalid("invalid PIN")
	}
	if err := checkPrecision(in.Amount, src.Currency); err != nil {
		return "", err
	}
	return src.Currency, nil
}

// checkDestination validates the locked destination row. currency is the source
// currency, empty when the operation has no source.
func (e *Engine) checkDestination(in Intent, r rule, p *participants, currency string) (string, error) {
	dst := p.dest
	if dst == nil || (r.ownsDest && dst.OwnerID != in.Caller.UserID) {
		return "", recipientUnavailable("destination account not found")
	}
	if !dst.IsActive {
		return "", recipientUnavailable("destination account is closed")
	}
	if currency == "" {
		if err := checkPrecision(in.Amount, dst.Currency); err != nil {
			return "", err
		}
		return dst.Currency, nil
	}
	if dst.Currency != currency {
		return "", invalid("source and destination currencies differ")
	}
	return currency, nil
}

func checkPrecision(amount decimal.Decimal, currency string) error {
	if models.FitsCurrency(amount, currency) {
		return nil
	}
	return invalid(fmt.Sprintf("amount has more than %d decimal places for %s", models.MinorUnits(currency), currency))
}

// checkFunds enforces the daily limit and then the balance for a debit of total.
func (e *Engine) checkFunds(ctx context.Context, tx repository.Tx, src *models.Account, total decimal.Decimal) error {
	if src.DailyLimit.Valid {
		from, to := limit.DayWindow(e.now(), e.cfg.Location)
		today, err := e.transactions.SumCompletedDebits(ctx, tx, src.ID, from, to)
		if err != nil {
			return e.storeFailure(ctx, "sum daily debits", err)
		}
		if !limit.Allows(src.DailyLimit, today, total) {
			headroom, _ := limit.Headroom(src.DailyLimit, today)
			return &Error{
				Kind:     ErrLimitExceeded,
				Message:  fmt.Sprintf("remaining daily limit is %s %s", headroom.String(), src.Currency),
				Headroom: headroom,
			}
		}
	}
	if src.Balance.LessThan(total) {
		shortfall := total.Sub(src.Balance)
		return &Error{
			Kind:      ErrInsufficientFunds,
			Message:   fmt.Sprintf("short by %s %s", shortfall.String(), src.Currency),
			Shortfall: shortfall,
		}
	}
	return nil
}

// storeFailure converts a store error into Busy or Internal.
func (e *Engine) storeFailure(ctx context.Context, op string, err error) error {
	if errors.Is(err, repository.ErrLockTimeout) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) || ctx.Err() != nil {
		e.log.Warn().Err(err).Str("op", op).Msg("ledger operation timed out")
		return &Error{Kind: ErrBusy, Message: op + " timed out", cause: err}
	}
	e.log.Error().Err(err).Str("op", op).Msg("ledger store failure")
	return &Error{Kind: ErrInternal, cause: err}
}

// afterCommit runs the best-effort collaborators. Nothing here can fail the operation.
func (e *Engine) afterCommit(ctx context.Context, in Intent, res *Result, p *participants) {
	detached := context.WithoutCancel(ctx)

	if e.auditor != nil && in.Kind == models.KindAdminDeposit {
		actx, cancel := context.WithTimeout(detached, e.cfg.NotifyTimeout)
		details := fmt.Sprintf("%s %s %s (transaction %s)", AuditAddBalance, res.Amount.String(), res.Currency, res.TransactionID)
		if err := e.auditor.RecordAdminAction(actx, in.Caller.UserID, AuditAddBalance, res.ToAccountID, details); err != nil {
			e.log.Warn().Err(err).Str("transaction_id", res.TransactionID).Msg("audit log write failed")
		}
		cancel()
	}

	if e.notifier == nil {
		return
	}
	n := Notification{
		TransactionID:           res.TransactionID,
		CommissionTransactionID: res.CommissionTransactionID,
		Kind:                    res.Kind,
		Amount:                  res.Amount,
		Commission:              res.Commission,
		Currency:                res.Currency,
		FromAccountID:           res.FromAccountID,
		FromAccountNumber:       res.FromAccountNumber,
		ToAccountID:             res.ToAccountID,
		ToAccountNumber:         res.ToAccountNumber,
		Description:             in.Description,
		APIKeyID:                in.Caller.APIKeyID,
		CreatedAt:               res.CreatedAt,
	}
	if in.Destination.External != nil {
		n.Counterparty = in.Destination.External.String()
	}
	if p.source != nil {
		n.SourceOwnerID = p.source.OwnerID
	}
	if p.dest != nil {
		n.DestinationOwnerID = p.dest.OwnerID
	}

	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		nctx, cancel := context.WithTimeout(detached, e.cfg.NotifyTimeout)
		defer cancel()
		if err := e.notifier.TransactionCommitted(nctx, n); err != nil {
			e.log.Warn().Err(err).Str("transaction_id", n.TransactionID).Msg("notification dispatch failed")
		}
	}()
}
