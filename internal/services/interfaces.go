package services

import (
	"context"
	"time"

	"centavo/internal/models"
	"centavo/internal/pagination"
)

// LedgerServicer is the envelope budget ledger engine. Every mutation keeps
// the budget chain consistent: each month's available amount is derived from
// its starting balance, assignment, and activity, and changes ripple forward
// through materialized future months.
type LedgerServicer interface {
	// GetOrCreateBudget returns the budget row for (category, month),
	// lazily building the chain back to the category's floor month when it
	// does not exist yet.
	GetOrCreateBudget(ctx context.Context, categoryID, month string) (*models.CategoryBudget, error)

	// AssignToBudget sets the amount assigned to a category for a month
	// and propagates the new available amount forward.
	AssignToBudget(ctx context.Context, categoryID, month string, amount int64) (*models.CategoryBudget, error)

	// RecordTransactionImpact applies the budget effect of an expense
	// transaction mutation. txn is the transaction's new state (nil on
	// delete); oldTxn its previous state (nil on create). Returns the
	// budget row of the transaction's month, or nil when the mutation has
	// no budget effect.
	RecordTransactionImpact(ctx context.Context, txn, oldTxn *models.Transaction) (*models.CategoryBudget, error)

	// CalculateReadyToAssign derives the global unassigned figure for a
	// month from account balances and assignments. Pure recomputation,
	// never incrementally patched.
	CalculateReadyToAssign(ctx context.Context, month string) (int64, error)

	// GetBudgetsForMonth ensures every category has a budget row for the
	// month and returns the rows sorted by category name.
	GetBudgetsForMonth(ctx context.Context, month string) ([]models.CategoryBudget, error)

	// RepairChain recomputes a category's months from the transaction
	// ledger, healing any drift in the cached activity and chain links.
	RepairChain(ctx context.Context, categoryID, startMonth, endMonth string) error

	// RepairAllChains runs RepairChain for every category.
	RepairAllChains(ctx context.Context, startMonth, endMonth string) error
}

// AccountServicer defines the contract for account-related business logic.
type AccountServicer interface {
	CreateAccount(ctx context.Context, name string, accountType models.AccountType, initialBalance int64) (*models.Account, error)
	GetAccounts(ctx context.Context) ([]models.Account, error)
	GetAccountByID(ctx context.Context, accountID string) (*models.Account, error)
	UpdateAccount(ctx context.Context, accountID, name string) (*models.Account, error)
	// RecalculateBalance rebuilds CurrentBalance from the transaction
	// ledger, the account-side analogue of RepairChain.
	RecalculateBalance(ctx context.Context, accountID string) (*models.Account, error)
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	CreateCategory(ctx context.Context, name, icon, color string) (*models.Category, error)
	GetCategories(ctx context.Context) ([]models.Category, error)
	GetCategoryByID(ctx context.Context, categoryID string) (*models.Category, error)
	UpdateCategory(ctx context.Context, categoryID, name, icon, color string) (*models.Category, error)
	// DeleteCategory removes a category and cascades its budget rows.
	// Blocked while any transaction still references the category.
	DeleteCategory(ctx context.Context, categoryID string) error
}

// TransactionInput carries the fields of a transaction mutation.
type TransactionInput struct {
	AccountID         string
	CategoryID        *string
	TransferAccountID *string
	Type              models.TransactionType
	Amount            int64
	Date              time.Time
	Payee             string
	Notes             string
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	AccountID  *string
	CategoryID *string
	Type       *models.TransactionType
	FromMonth  *string
	ToMonth    *string
}

// TransactionServicer defines the contract for transaction-related business
// logic. Every mutation updates account balances and feeds the ledger engine.
type TransactionServicer interface {
	CreateTransaction(ctx context.Context, in TransactionInput) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, transactionID string, in TransactionInput) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, transactionID string) error
	GetTransactionByID(ctx context.Context, transactionID string) (*models.Transaction, error)
	GetTransactions(ctx context.Context, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
}
