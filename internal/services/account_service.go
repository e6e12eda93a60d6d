package services

import (
	"context"

	apperrors "centavo/internal/errors"
	"centavo/internal/models"
	"centavo/internal/store"
)

// accountService handles account-related business logic.
type accountService struct {
	store *store.Store
}

// NewAccountService creates a new AccountServicer.
func NewAccountService(st *store.Store) AccountServicer {
	return &accountService{store: st}
}

// CreateAccount creates a new account. The current balance starts equal to
// the initial balance; transactions move it from there.
func (s *accountService) CreateAccount(ctx context.Context, name string, accountType models.AccountType, initialBalance int64) (*models.Account, error) {
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name is required")
	}
	switch accountType {
	case models.AccountTypeChecking, models.AccountTypeSavings, models.AccountTypeCredit, models.AccountTypeCash:
	default:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown account type")
	}

	account := &models.Account{
		Name:           name,
		Type:           accountType,
		InitialBalance: initialBalance,
		CurrentBalance: initialBalance,
	}
	if err := store.Create(ctx, s.store, account); err != nil {
		return nil, err
	}
	return account, nil
}

// GetAccounts returns all accounts ordered by name.
func (s *accountService) GetAccounts(ctx context.Context) ([]models.Account, error) {
	return store.Where[models.Account](ctx, s.store, "name ASC", "1 = 1")
}

// GetAccountByID returns an account by ID.
func (s *accountService) GetAccountByID(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := store.Find[models.Account](ctx, s.store, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, apperrors.ErrAccountNotFound
	}
	return account, nil
}

// UpdateAccount renames an account.
func (s *accountService) UpdateAccount(ctx context.Context, accountID, name string) (*models.Account, error) {
	account, err := s.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return account, nil
	}

	if err := store.Updates(ctx, s.store, account, map[string]interface{}{"name": name}); err != nil {
		return nil, err
	}
	account.Name = name
	return account, nil
}

// RecalculateBalance rebuilds CurrentBalance from the transaction ledger:
// initial balance plus income, minus expenses, plus transfers in, minus
// transfers out.
func (s *accountService) RecalculateBalance(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := s.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	income, err := store.SumInt64[models.Transaction](ctx, s.store, "amount",
		"account_id = ? AND type = ?", accountID, models.TransactionTypeIncome)
	if err != nil {
		return nil, err
	}
	expenses, err := store.SumInt64[models.Transaction](ctx, s.store, "amount",
		"account_id = ? AND type = ?", accountID, models.TransactionTypeExpense)
	if err != nil {
		return nil, err
	}
	transfersOut, err := store.SumInt64[models.Transaction](ctx, s.store, "amount",
		"account_id = ? AND type = ?", accountID, models.TransactionTypeTransfer)
	if err != nil {
		return nil, err
	}
	transfersIn, err := store.SumInt64[models.Transaction](ctx, s.store, "amount",
		"transfer_account_id = ? AND type = ?", accountID, models.TransactionTypeTransfer)
	if err != nil {
		return nil, err
	}

	balance := account.InitialBalance + income - expenses - transfersOut + transfersIn
	if balance != account.CurrentBalance {
		if err := store.Updates(ctx, s.store, account, map[string]interface{}{"current_balance": balance}); err != nil {
			return nil, err
		}
		account.CurrentBalance = balance
	}
	return account, nil
}

// applyBalanceEffect shifts an account's balance by the given signed amount
// inside an open store transaction.
func applyBalanceEffect(ctx context.Context, tx *store.Store, accountID string, change int64) error {
	account, err := store.Find[models.Account](ctx, tx, accountID)
	if err != nil {
		return err
	}
	if account == nil {
		return apperrors.ErrAccountNotFound
	}
	return store.Updates(ctx, tx, account, map[string]interface{}{
		"current_balance": account.CurrentBalance + change,
	})
}
