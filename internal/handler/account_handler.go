package handler

import (
	"context"
	"net/http"

	"github.com/eaglebank/ledger/shared/cqrs"
	"github.com/eaglebank/ledger/shared/middleware"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AccountCommander defines the account settings operations used by AccountHandler.
type AccountCommander interface {
	SetDailyLimit(context.Context, cqrs.SetDailyLimitCommand) error
	SetFrozen(context.Context, cqrs.FreezeAccountCommand) error
	ChangePIN(context.Context, cqrs.ChangePINCommand) error
}

type AccountHandler struct {
	commands AccountCommander
}

// DailyLimitRequest sets the limit; a null or missing dailyLimit removes it.
type DailyLimitRequest struct {
	DailyLimit decimal.NullDecimal `json:"dailyLimit"`
}

type FreezeRequest struct {
	Freeze *bool `json:"freeze" validate:"required"`
}

type ChangePINRequest struct {
	OldPIN string `json:"oldPin" validate:"omitempty,min=4,max=6,numeric"`
	NewPIN string `json:"newPin" validate:"required,min=4,max=6,numeric"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func NewAccountHandler(commands AccountCommander) *AccountHandler {
	return &AccountHandler{commands: commands}
}

func (h *AccountHandler) SetDailyLimit(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req DailyLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.commands.SetDailyLimit(c.Request.Context(), cqrs.SetDailyLimitCommand{
		UserID:     userID,
		AccountID:  c.Param("accountId"),
		DailyLimit: req.DailyLimit,
	})
	if err != nil {
		respondAccountError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Daily limit updated"})
}

func (h *AccountHandler) SetFrozen(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req FreezeRequest
	if !bind(c, &req) {
		return
	}

	err := h.commands.SetFrozen(c.Request.Context(), cqrs.FreezeAccountCommand{
		UserID:    userID,
		AccountID: c.Param("accountId"),
		Freeze:    *req.Freeze,
	})
	if err != nil {
		respondAccountError(c, err)
		return
	}
	msg := "Account unfrozen"
	if *req.Freeze {
		msg = "Account frozen"
	}
	c.JSON(http.StatusOK, MessageResponse{Message: msg})
}

func (h *AccountHandler) ChangePIN(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req ChangePINRequest
	if !bind(c, &req) {
		return
	}

	err := h.commands.ChangePIN(c.Request.Context(), cqrs.ChangePINCommand{
		UserID:    userID,
		AccountID: c.Param("accountId"),
		OldPIN:    req.OldPIN,
		NewPIN:    req.NewPIN,
	})
	if err != nil {
		respondAccountError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "PIN updated"})
}
