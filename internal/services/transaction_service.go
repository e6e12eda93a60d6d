package services

import (
	"context"
	"time"

	apperrors "centavo/internal/errors"
	"centavo/internal/models"
	"centavo/internal/month"
	"centavo/internal/pagination"
	"centavo/internal/store"
)

// transactionService handles transaction-related business logic. Every
// mutation adjusts account balances in the same store transaction as the
// record write, then hands the change to the ledger engine. The ledger write
// is deliberately a separate unit: if it is interrupted, the affected months
// are healed by RepairChain rather than by unwinding the account write.
type transactionService struct {
	store  *store.Store
	ledger LedgerServicer
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(st *store.Store, ledger LedgerServicer) TransactionServicer {
	return &transactionService{store: st, ledger: ledger}
}

// validate checks a transaction input's structural rules.
func (s *transactionService) validate(ctx context.Context, in *TransactionInput) error {
	if in.Amount <= 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if in.AccountID == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "account ID is required")
	}
	if in.Date.IsZero() {
		in.Date = time.Now()
	}

	account, err := store.Find[models.Account](ctx, s.store, in.AccountID)
	if err != nil {
		return err
	}
	if account == nil {
		return apperrors.ErrAccountNotFound
	}

	switch in.Type {
	case models.TransactionTypeIncome:
		in.CategoryID = nil
		in.TransferAccountID = nil

	case models.TransactionTypeExpense:
		if in.CategoryID == nil || *in.CategoryID == "" {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "expense transactions require a category")
		}
		category, err := store.Find[models.Category](ctx, s.store, *in.CategoryID)
		if err != nil {
			return err
		}
		if category == nil {
			return apperrors.ErrCategoryNotFound
		}
		in.TransferAccountID = nil

	case models.TransactionTypeTransfer:
		if in.TransferAccountID == nil || *in.TransferAccountID == "" {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "transfer transactions require a destination account")
		}
		if *in.TransferAccountID == in.AccountID {
			return apperrors.ErrSameAccountTransfer
		}
		dest, err := store.Find[models.Account](ctx, s.store, *in.TransferAccountID)
		if err != nil {
			return err
		}
		if dest == nil {
			return apperrors.ErrAccountNotFound
		}
		in.CategoryID = nil

	default:
		return apperrors.ErrInvalidTransactionType
	}
	return nil
}

// applyEffects adjusts account balances for a transaction. sign is +1 to
// apply and -1 to reverse.
func applyEffects(ctx context.Context, tx *store.Store, txn *models.Transaction, sign int64) error {
	switch txn.Type {
	case models.TransactionTypeIncome:
		return applyBalanceEffect(ctx, tx, txn.AccountID, sign*txn.Amount)
	case models.TransactionTypeExpense:
		return applyBalanceEffect(ctx, tx, txn.AccountID, -sign*txn.Amount)
	case models.TransactionTypeTransfer:
		if err := applyBalanceEffect(ctx, tx, txn.AccountID, -sign*txn.Amount); err != nil {
			return err
		}
		return applyBalanceEffect(ctx, tx, *txn.TransferAccountID, sign*txn.Amount)
	default:
		return apperrors.ErrInvalidTransactionType
	}
}

// CreateTransaction records a transaction, adjusts account balances, and
// posts its effect to the budget ledger.
func (s *transactionService) CreateTransaction(ctx context.Context, in TransactionInput) (*models.Transaction, error) {
	if err := s.validate(ctx, &in); err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		AccountID:         in.AccountID,
		CategoryID:        in.CategoryID,
		TransferAccountID: in.TransferAccountID,
		Type:              in.Type,
		Amount:            in.Amount,
		Date:              in.Date,
		Payee:             in.Payee,
		Notes:             in.Notes,
	}

	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		if err := store.Create(ctx, tx, txn); err != nil {
			return err
		}
		return applyEffects(ctx, tx, txn, +1)
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.ledger.RecordTransactionImpact(ctx, txn, nil); err != nil {
		return nil, err
	}
	return txn, nil
}

// UpdateTransaction rewrites a transaction. The old balance effects are
// reversed and the new ones applied in one store transaction; the ledger then
// sees both states so month or category moves settle correctly.
func (s *transactionService) UpdateTransaction(ctx context.Context, transactionID string, in TransactionInput) (*models.Transaction, error) {
	old, err := s.GetTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, &in); err != nil {
		return nil, err
	}

	updated := *old
	updated.AccountID = in.AccountID
	updated.CategoryID = in.CategoryID
	updated.TransferAccountID = in.TransferAccountID
	updated.Type = in.Type
	updated.Amount = in.Amount
	updated.Date = in.Date
	updated.Payee = in.Payee
	updated.Notes = in.Notes

	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		if err := applyEffects(ctx, tx, old, -1); err != nil {
			return err
		}
		if err := store.Updates(ctx, tx, &updated, map[string]interface{}{
			"account_id":          updated.AccountID,
			"category_id":         updated.CategoryID,
			"transfer_account_id": updated.TransferAccountID,
			"type":                updated.Type,
			"amount":              updated.Amount,
			"date":                updated.Date,
			"payee":               updated.Payee,
			"notes":               updated.Notes,
		}); err != nil {
			return err
		}
		return applyEffects(ctx, tx, &updated, +1)
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.ledger.RecordTransactionImpact(ctx, &updated, old); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteTransaction removes a transaction, reversing its balance and ledger
// effects.
func (s *transactionService) DeleteTransaction(ctx context.Context, transactionID string) error {
	txn, err := s.GetTransactionByID(ctx, transactionID)
	if err != nil {
		return err
	}

	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		if err := store.Delete(ctx, tx, txn); err != nil {
			return err
		}
		return applyEffects(ctx, tx, txn, -1)
	})
	if err != nil {
		return err
	}

	_, err = s.ledger.RecordTransactionImpact(ctx, nil, txn)
	return err
}

// GetTransactionByID retrieves a transaction by ID.
func (s *transactionService) GetTransactionByID(ctx context.Context, transactionID string) (*models.Transaction, error) {
	txn, err := store.Find[models.Transaction](ctx, s.store, transactionID)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, apperrors.ErrTransactionNotFound
	}
	return txn, nil
}

// GetTransactions retrieves a paginated, filtered list of transactions,
// newest first.
func (s *transactionService) GetTransactions(ctx context.Context, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()

	query, args := buildTransactionFilter(filter)
	transactions, totalItems, err := store.Page[models.Transaction](ctx, s.store, page, "date DESC", query, args...)
	if err != nil {
		return nil, err
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func buildTransactionFilter(f TransactionFilter) (string, []interface{}) {
	query := "1 = 1"
	var args []interface{}

	if f.AccountID != nil {
		query += " AND account_id = ?"
		args = append(args, *f.AccountID)
	}
	if f.CategoryID != nil {
		query += " AND category_id = ?"
		args = append(args, *f.CategoryID)
	}
	if f.Type != nil {
		query += " AND type = ?"
		args = append(args, *f.Type)
	}
	if f.FromMonth != nil && month.IsValid(*f.FromMonth) {
		from, _ := monthBounds(*f.FromMonth)
		query += " AND date >= ?"
		args = append(args, from)
	}
	if f.ToMonth != nil && month.IsValid(*f.ToMonth) {
		_, to := monthBounds(*f.ToMonth)
		query += " AND date < ?"
		args = append(args, to)
	}
	return query, args
}
