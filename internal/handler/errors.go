package handler

import (
	"errors"
	"net/http"

	"github.com/eaglebank/ledger/internal/command"
	"github.com/eaglebank/ledger/internal/ledger"
	"github.com/eaglebank/ledger/internal/query"
	"github.com/eaglebank/ledger/internal/repository"
	"github.com/eaglebank/ledger/shared/logger"
	"github.com/eaglebank/ledger/shared/middleware"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// RetryAfterSeconds is sent with 503 responses when the ledger is busy.
const RetryAfterSeconds = "1"

type LimitExceededResponse struct {
	Message  string          `json:"message"`
	Headroom decimal.Decimal `json:"headroom"`
}

type InsufficientFundsResponse struct {
	Message   string          `json:"message"`
	Shortfall decimal.Decimal `json:"shortfall"`
}

// respondLedgerError maps an engine failure onto an HTTP response. Internal
// causes are logged, never returned.
func respondLedgerError(c *gin.Context, err error) {
	le, ok := ledger.AsError(err)
	if !ok {
		le = &ledger.Error{Kind: ledger.ErrInternal}
	}

	switch le.Kind {
	case ledger.ErrInvalidRequest:
		middleware.RespondWithError(c, http.StatusBadRequest, le.Error())
	case ledger.ErrAccountUnavailable:
		middleware.RespondWithError(c, http.StatusNotFound, "Account not found or unavailable")
	case ledger.ErrRecipientUnavailable:
		middleware.RespondWithError(c, http.StatusNotFound, "Recipient account not found or unavailable")
	case ledger.ErrLimitExceeded:
		c.JSON(http.StatusUnprocessableEntity, LimitExceededResponse{
			Message:  "Daily limit exceeded",
			Headroom: le.Headroom,
		})
	case ledger.ErrInsufficientFunds:
		c.JSON(http.StatusUnprocessableEntity, InsufficientFundsResponse{
			Message:   "Insufficient funds",
			Shortfall: le.Shortfall,
		})
	case ledger.ErrBusy:
		c.Header("Retry-After", RetryAfterSeconds)
		middleware.RespondWithError(c, http.StatusServiceUnavailable, "Service busy, please retry")
	default:
		log := logger.FromContext(c.Request.Context())
		log.Error().Err(err).Msg("transfer failed")
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to process transaction")
	}
}

// respondAccountError maps account settings failures.
func respondAccountError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrAccountNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "Account not found")
	case errors.Is(err, command.ErrInvalidLimit),
		errors.Is(err, command.ErrPINRequired),
		errors.Is(err, command.ErrPINMismatch),
		errors.Is(err, command.ErrPINTooShort):
		middleware.RespondWithError(c, http.StatusBadRequest, err.Error())
	default:
		log := logger.FromContext(c.Request.Context())
		log.Error().Err(err).Msg("account update failed")
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to update account")
	}
}

// respondQueryError maps history read failures.
func respondQueryError(c *gin.Context, err error, forbiddenMsg string) {
	switch {
	case errors.Is(err, repository.ErrAccountNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "Account not found")
	case errors.Is(err, repository.ErrTransactionNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "Transaction not found")
	case errors.Is(err, query.ErrForbidden):
		middleware.RespondWithError(c, http.StatusForbidden, forbiddenMsg)
	default:
		log := logger.FromContext(c.Request.Context())
		log.Error().Err(err).Msg("history read failed")
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to load transactions")
	}
}
