package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "centavo/internal/errors"
	"centavo/internal/services"
)

// BudgetHandler exposes the envelope budget ledger over HTTP.
type BudgetHandler struct {
	ledger services.LedgerServicer
}

// NewBudgetHandler creates a new BudgetHandler.
func NewBudgetHandler(ledger services.LedgerServicer) *BudgetHandler {
	return &BudgetHandler{ledger: ledger}
}

// AssignRequest represents the request payload for assigning money to a
// category for a month.
type AssignRequest struct {
	Assigned *int64 `json:"assigned" binding:"required,min=0"`
}

// RepairRequest represents the request payload for a chain repair.
type RepairRequest struct {
	CategoryID string `json:"category_id" binding:"omitempty,uuid"`
	StartMonth string `json:"start_month" binding:"required,budget_month"`
	EndMonth   string `json:"end_month" binding:"required,budget_month"`
}

// GetMonth returns every category's budget row for a month together with the
// global ready-to-assign figure.
func (h *BudgetHandler) GetMonth(c *gin.Context) {
	m, err := parsePathMonth(c, "month")
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgets, err := h.ledger.GetBudgetsForMonth(c.Request.Context(), m)
	if err != nil {
		respondWithError(c, err)
		return
	}
	ready, err := h.ledger.CalculateReadyToAssign(c.Request.Context(), m)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"month":           m,
		"budgets":         budgets,
		"ready_to_assign": ready,
	})
}

// Assign sets the assigned amount for a category's month.
func (h *BudgetHandler) Assign(c *gin.Context) {
	m, err := parsePathMonth(c, "month")
	if err != nil {
		respondWithError(c, err)
		return
	}
	categoryID, err := parsePathUUID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	budget, err := h.ledger.AssignToBudget(c.Request.Context(), categoryID, m, *req.Assigned)
	if err != nil {
		respondWithError(c, err)
		return
	}

	ready, err := h.ledger.CalculateReadyToAssign(c.Request.Context(), m)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"budget":          budget,
		"ready_to_assign": ready,
	})
}

// GetReadyToAssign returns the ready-to-assign figure for a month.
func (h *BudgetHandler) GetReadyToAssign(c *gin.Context) {
	m, err := parsePathMonth(c, "month")
	if err != nil {
		respondWithError(c, err)
		return
	}

	ready, err := h.ledger.CalculateReadyToAssign(c.Request.Context(), m)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"month": m, "ready_to_assign": ready})
}

// Repair recomputes a range of months from the transaction ledger, for one
// category or for all of them.
func (h *BudgetHandler) Repair(c *gin.Context) {
	var req RepairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	ctx := c.Request.Context()
	var err error
	if req.CategoryID != "" {
		err = h.ledger.RepairChain(ctx, req.CategoryID, req.StartMonth, req.EndMonth)
	} else {
		err = h.ledger.RepairAllChains(ctx, req.StartMonth, req.EndMonth)
	}
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"repaired":    true,
		"start_month": req.StartMonth,
		"end_month":   req.EndMonth,
	})
}
