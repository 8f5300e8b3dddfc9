package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/eaglebank/ledger/shared/cqrs"
	"github.com/eaglebank/ledger/shared/middleware"
	"github.com/eaglebank/ledger/shared/models"
	"github.com/gin-gonic/gin"
)

// TransactionQuerier defines the read-side operations used by TransactionHandler.
type TransactionQuerier interface {
	GetTransaction(context.Context, cqrs.GetTransactionQuery) (*models.TransactionView, error)
	ListAccountTransactions(context.Context, cqrs.ListAccountTransactionsQuery) ([]models.TransactionView, error)
	ListUserTransactions(context.Context, cqrs.ListUserTransactionsQuery) ([]models.TransactionView, error)
}

type TransactionHandler struct {
	queries TransactionQuerier
}

type ListTransactionsResponse struct {
	Transactions []models.TransactionView `json:"transactions"`
}

func NewTransactionHandler(queries TransactionQuerier) *TransactionHandler {
	return &TransactionHandler{queries: queries}
}

// limitParam reads ?limit=; clamping to the allowed range happens in the query service.
func limitParam(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		middleware.RespondWithError(c, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return n, true
}

func (h *TransactionHandler) ListAccountTransactions(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	limit, ok := limitParam(c)
	if !ok {
		return
	}

	views, err := h.queries.ListAccountTransactions(c.Request.Context(), cqrs.ListAccountTransactionsQuery{
		AccountID: c.Param("accountId"),
		UserID:    userID,
		Limit:     limit,
	})
	if err != nil {
		respondQueryError(c, err, "You can only view transactions for your own accounts")
		return
	}
	if views == nil {
		views = []models.TransactionView{}
	}
	c.JSON(http.StatusOK, ListTransactionsResponse{Transactions: views})
}

func (h *TransactionHandler) ListUserTransactions(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	limit, ok := limitParam(c)
	if !ok {
		return
	}

	views, err := h.queries.ListUserTransactions(c.Request.Context(), cqrs.ListUserTransactionsQuery{
		UserID: userID,
		Limit:  limit,
	})
	if err != nil {
		respondQueryError(c, err, "You can only view your own transactions")
		return
	}
	if views == nil {
		views = []models.TransactionView{}
	}
	c.JSON(http.StatusOK, ListTransactionsResponse{Transactions: views})
}

func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	view, err := h.queries.GetTransaction(c.Request.Context(), cqrs.GetTransactionQuery{
		TransactionID: c.Param("transactionId"),
		AccountID:     c.Param("accountId"),
		UserID:        userID,
	})
	if err != nil {
		respondQueryError(c, err, "You can only view your own transactions")
		return
	}
	c.JSON(http.StatusOK, view)
}
