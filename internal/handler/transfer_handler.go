package handler

import (
	"context"
	"net/http"

	"github.com/eaglebank/ledger/internal/ledger"
	"github.com/eaglebank/ledger/shared/cqrs"
	"github.com/eaglebank/ledger/shared/middleware"
	"github.com/eaglebank/ledger/shared/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// TransferCommander defines the write-side operations used by TransferHandler.
type TransferCommander interface {
	Transfer(context.Context, cqrs.TransferCommand) (*ledger.Result, error)
	SelfTransfer(context.Context, cqrs.SelfTransferCommand) (*ledger.Result, error)
	ExternalPayment(context.Context, cqrs.ExternalPaymentCommand) (*ledger.Result, error)
	ServicePayment(context.Context, cqrs.ServicePaymentCommand) (*ledger.Result, error)
	AdminDeposit(context.Context, cqrs.AdminDepositCommand) (*ledger.Result, error)
	APITransfer(context.Context, cqrs.APITransferCommand) (*ledger.Result, error)
}

type TransferHandler struct {
	commands TransferCommander
}

type TransferRequest struct {
	FromAccountID   string          `json:"fromAccountId" validate:"required"`
	ToAccountID     string          `json:"toAccountId" validate:"required_without=ToAccountNumber,excluded_with=ToAccountNumber"`
	ToAccountNumber string          `json:"toAccountNumber" validate:"omitempty,len=8,numeric"`
	Amount          decimal.Decimal `json:"amount" validate:"gt=0"`
	Description     string          `json:"description" validate:"max=255"`
	PIN             string          `json:"pin" validate:"omitempty,min=4,max=6,numeric"`
}

type SelfTransferRequest struct {
	FromAccountID string          `json:"fromAccountId" validate:"required"`
	ToAccountID   string          `json:"toAccountId" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	Description   string          `json:"description" validate:"max=255"`
	PIN           string          `json:"pin" validate:"omitempty,min=4,max=6,numeric"`
}

type ExternalPaymentRequest struct {
	FromAccountID string          `json:"fromAccountId" validate:"required"`
	BankName      string          `json:"bankName" validate:"required,max=100"`
	AccountNumber string          `json:"accountNumber" validate:"required,max=34"`
	RecipientName string          `json:"recipientName" validate:"required,max=100"`
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	Description   string          `json:"description" validate:"max=255"`
	PIN           string          `json:"pin" validate:"omitempty,min=4,max=6,numeric"`
}

type ServicePaymentRequest struct {
	FromAccountID   string          `json:"fromAccountId" validate:"required"`
	ServiceType     string          `json:"serviceType" validate:"required,max=50"`
	ServiceProvider string          `json:"serviceProvider" validate:"required,max=100"`
	AccountNumber   string          `json:"accountNumber" validate:"required,max=50"`
	Amount          decimal.Decimal `json:"amount" validate:"gt=0"`
	Description     string          `json:"description" validate:"max=255"`
	PIN             string          `json:"pin" validate:"omitempty,min=4,max=6,numeric"`
}

type AdminDepositRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Description string          `json:"description" validate:"max=255"`
}

type APITransferRequest struct {
	FromAccountID   string          `json:"fromAccountId" validate:"required"`
	ToAccountID     string          `json:"toAccountId" validate:"required_without=ToAccountNumber,excluded_with=ToAccountNumber"`
	ToAccountNumber string          `json:"toAccountNumber" validate:"omitempty,len=8,numeric"`
	Amount          decimal.Decimal `json:"amount" validate:"gt=0"`
	Description     string          `json:"description" validate:"max=255"`
}

func NewTransferHandler(commands TransferCommander) *TransferHandler {
	return &TransferHandler{commands: commands}
}

// bind decodes and validates the request body, writing the 400 itself on failure.
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return false
	}
	return true
}

func validRecipientNumber(c *gin.Context, number string) bool {
	if number != "" && !utils.ValidateAccountNumber(number) {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid recipient account number")
		return false
	}
	return true
}

func (h *TransferHandler) Transfer(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req TransferRequest
	if !bind(c, &req) || !validRecipientNumber(c, req.ToAccountNumber) {
		return
	}

	result, err := h.commands.Transfer(c.Request.Context(), cqrs.TransferCommand{
		UserID:          userID,
		Role:            middleware.GetRole(c),
		FromAccountID:   req.FromAccountID,
		ToAccountID:     req.ToAccountID,
		ToAccountNumber: req.ToAccountNumber,
		Amount:          req.Amount,
		Description:     req.Description,
		PIN:             req.PIN,
	})
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *TransferHandler) SelfTransfer(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req SelfTransferRequest
	if !bind(c, &req) {
		return
	}

	result, err := h.commands.SelfTransfer(c.Request.Context(), cqrs.SelfTransferCommand{
		UserID:        userID,
		Role:          middleware.GetRole(c),
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
		Description:   req.Description,
		PIN:           req.PIN,
	})
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *TransferHandler) ExternalPayment(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req ExternalPaymentRequest
	if !bind(c, &req) {
		return
	}

	result, err := h.commands.ExternalPayment(c.Request.Context(), cqrs.ExternalPaymentCommand{
		UserID:        userID,
		Role:          middleware.GetRole(c),
		FromAccountID: req.FromAccountID,
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
		RecipientName: req.RecipientName,
		Amount:        req.Amount,
		Description:   req.Description,
		PIN:           req.PIN,
	})
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *TransferHandler) ServicePayment(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req ServicePaymentRequest
	if !bind(c, &req) {
		return
	}

	result, err := h.commands.ServicePayment(c.Request.Context(), cqrs.ServicePaymentCommand{
		UserID:          userID,
		Role:            middleware.GetRole(c),
		FromAccountID:   req.FromAccountID,
		ServiceType:     req.ServiceType,
		ServiceProvider: req.ServiceProvider,
		AccountNumber:   req.AccountNumber,
		Amount:          req.Amount,
		Description:     req.Description,
		PIN:             req.PIN,
	})
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// AdminDeposit credits an account. Route must sit behind RequireRole(admin).
func (h *TransferHandler) AdminDeposit(c *gin.Context) {
	adminID, _ := middleware.GetUserID(c)

	var req AdminDepositRequest
	if !bind(c, &req) {
		return
	}

	result, err := h.commands.AdminDeposit(c.Request.Context(), cqrs.AdminDepositCommand{
		AdminID:     adminID,
		AccountID:   c.Param("accountId"),
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// APITransfer serves partners authenticated by APIKeyMiddleware.
func (h *TransferHandler) APITransfer(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req APITransferRequest
	if !bind(c, &req) || !validRecipientNumber(c, req.ToAccountNumber) {
		return
	}

	result, err := h.commands.APITransfer(c.Request.Context(), cqrs.APITransferCommand{
		UserID:          userID,
		APIKeyID:        c.GetString("apiKeyId"),
		FromAccountID:   req.FromAccountID,
		ToAccountID:     req.ToAccountID,
		ToAccountNumber: req.ToAccountNumber,
		Amount:          req.Amount,
		Description:     req.Description,
	})
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
