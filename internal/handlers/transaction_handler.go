package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "centavo/internal/errors"
	"centavo/internal/models"
	"centavo/internal/pagination"
	"centavo/internal/services"
)

// TransactionHandler handles transaction-related requests.
type TransactionHandler struct {
	transactionService services.TransactionServicer
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(transactionService services.TransactionServicer) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService}
}

// TransactionRequest represents the request payload for creating or updating
// a transaction.
type TransactionRequest struct {
	AccountID         string                 `json:"account_id" binding:"required,uuid"`
	CategoryID        *string                `json:"category_id" binding:"omitempty,uuid"`
	TransferAccountID *string                `json:"transfer_account_id" binding:"omitempty,uuid"`
	Type              models.TransactionType `json:"type" binding:"required,transaction_type"`
	Amount            int64                  `json:"amount" binding:"required,gt=0"`
	Date              time.Time              `json:"date"`
	Payee             string                 `json:"payee" binding:"omitempty,max=200"`
	Notes             string                 `json:"notes" binding:"omitempty,max=1000"`
}

func (r *TransactionRequest) input() services.TransactionInput {
	return services.TransactionInput{
		AccountID:         r.AccountID,
		CategoryID:        r.CategoryID,
		TransferAccountID: r.TransferAccountID,
		Type:              r.Type,
		Amount:            r.Amount,
		Date:              r.Date,
		Payee:             r.Payee,
		Notes:             r.Notes,
	}
}

// CreateTransaction handles recording a new transaction.
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	txn, err := h.transactionService.CreateTransaction(c.Request.Context(), req.input())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"transaction": txn})
}

// UpdateTransaction handles rewriting an existing transaction.
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	id, err := parsePathUUID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	txn, err := h.transactionService.UpdateTransaction(c.Request.Context(), id, req.input())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": txn})
}

// DeleteTransaction handles deleting a transaction.
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	id, err := parsePathUUID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.transactionService.DeleteTransaction(c.Request.Context(), id); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// GetTransactionByID handles fetching a single transaction.
func (h *TransactionHandler) GetTransactionByID(c *gin.Context) {
	id, err := parsePathUUID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	txn, err := h.transactionService.GetTransactionByID(c.Request.Context(), id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": txn})
}

// GetTransactions handles listing transactions with optional filters.
func (h *TransactionHandler) GetTransactions(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var filter services.TransactionFilter
	if v := c.Query("account_id"); v != "" {
		filter.AccountID = &v
	}
	if v := c.Query("category_id"); v != "" {
		filter.CategoryID = &v
	}
	if v := c.Query("type"); v != "" {
		t := models.TransactionType(v)
		filter.Type = &t
	}
	if v := c.Query("from_month"); v != "" {
		filter.FromMonth = &v
	}
	if v := c.Query("to_month"); v != "" {
		filter.ToMonth = &v
	}

	result, err := h.transactionService.GetTransactions(c.Request.Context(), page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
