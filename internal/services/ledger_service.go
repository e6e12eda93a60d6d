package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"centavo/internal/cache"
	"centavo/internal/config"
	apperrors "centavo/internal/errors"
	"centavo/internal/models"
	"centavo/internal/month"
	"centavo/internal/store"
)

// repairConcurrency bounds how many category chains are repaired in parallel.
const repairConcurrency = 4

// budgetKey identifies one ledger entry in the snapshot cache.
type budgetKey struct {
	CategoryID string
	Month      string
}

// ledgerService implements the envelope budget ledger engine.
//
// Mutations on the same category are serialized through a per-category mutex:
// every ledger operation (resolve, mutate, propagate) runs as one unit under
// its category's lock, and its writes go through a single store transaction
// ordered source month first. Operations on different categories run in
// parallel.
//
// The snapshot cache is owned by this instance and only ever updated under
// the category lock; mutations invalidate exactly the months they touched,
// after the store transaction settles.
type ledgerService struct {
	store *store.Store
	cfg   *config.Config
	cache *cache.LRU[budgetKey, models.CategoryBudget]
	locks sync.Map // categoryID -> *sync.Mutex
}

// NewLedgerService creates a new LedgerServicer.
func NewLedgerService(st *store.Store, cfg *config.Config) LedgerServicer {
	return &ledgerService{
		store: st,
		cfg:   cfg,
		cache: cache.NewLRU[budgetKey, models.CategoryBudget](cfg.CacheSize, cfg.CacheTTL),
	}
}

// lockCategory acquires the category's mutation lock and returns the unlock.
func (s *ledgerService) lockCategory(categoryID string) func() {
	v, _ := s.locks.LoadOrStore(categoryID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// lockCategories acquires several category locks in a stable order so
// two-category operations cannot deadlock each other.
func (s *ledgerService) lockCategories(categoryIDs ...string) func() {
	sort.Strings(categoryIDs)
	unlocks := make([]func(), 0, len(categoryIDs))
	for i, id := range categoryIDs {
		if i > 0 && categoryIDs[i-1] == id {
			continue
		}
		unlocks = append(unlocks, s.lockCategory(id))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// invalidate drops the cache entries for the given months of a category.
func (s *ledgerService) invalidate(categoryID string, months []string) {
	for _, m := range months {
		s.cache.Delete(budgetKey{CategoryID: categoryID, Month: m})
	}
}

func (s *ledgerService) category(ctx context.Context, categoryID string) (*models.Category, error) {
	cat, err := store.Find[models.Category](ctx, s.store, categoryID)
	if err != nil {
		return nil, err
	}
	if cat == nil {
		return nil, apperrors.ErrCategoryNotFound
	}
	return cat, nil
}

// floorFor returns the chain floor for a category: its creation month when
// recorded, else the configured epoch.
func (s *ledgerService) floorFor(cat *models.Category) string {
	if month.IsValid(cat.FloorMonth) {
		return cat.FloorMonth
	}
	return s.cfg.EpochMonth
}

// GetOrCreateBudget returns the budget row for (category, month), building
// the missing stretch of the chain when necessary.
func (s *ledgerService) GetOrCreateBudget(ctx context.Context, categoryID, m string) (*models.CategoryBudget, error) {
	m, err := month.Parse(m)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}
	cat, err := s.category(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockCategory(categoryID)
	defer unlock()
	return s.getOrCreateLocked(ctx, cat, m)
}

// getOrCreateLocked is the chain resolver. Callers must hold the category
// lock.
//
// Missing chains are built iteratively: find the latest materialized
// predecessor (or fall back to the floor), then create every month up to and
// including the requested one, carrying the available amount forward. Each
// created row starts with zero assigned and activity, so its available equals
// its starting balance.
func (s *ledgerService) getOrCreateLocked(ctx context.Context, cat *models.Category, m string) (*models.CategoryBudget, error) {
	key := budgetKey{CategoryID: cat.ID, Month: m}
	if snap, ok := s.cache.Get(key); ok {
		b := snap
		return &b, nil
	}

	existing, err := store.First[models.CategoryBudget](ctx, s.store, "category_id = ? AND month = ?", cat.ID, m)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.cache.Set(key, *existing)
		return existing, nil
	}

	floor := s.floorFor(cat)
	if month.Compare(m, floor) < 0 {
		// Requests before the floor anchor at zero rather than extending
		// the chain backward.
		floor = m
	}

	buildFrom := floor
	var carry int64
	preds, err := store.Where[models.CategoryBudget](ctx, s.store, "month DESC", "category_id = ? AND month < ?", cat.ID, m)
	if err != nil {
		return nil, err
	}
	if len(preds) > 0 {
		buildFrom = month.Next(preds[0].Month)
		carry = preds[0].Available
	}

	if n := month.Between(buildFrom, m) + 1; n > s.cfg.MaxChainDepth {
		return nil, apperrors.WithMessage(apperrors.ErrChainUnbounded,
			fmt.Sprintf("resolving %s requires %d months, cap is %d", m, n, s.cfg.MaxChainDepth))
	}

	months := month.Range(buildFrom, m)
	created := make([]models.CategoryBudget, 0, len(months))
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		for _, mm := range months {
			b := models.CategoryBudget{CategoryID: cat.ID, Month: mm, StartingBalance: carry}
			b.Recompute()
			if err := store.Create(ctx, tx, &b); err != nil {
				return err
			}
			created = append(created, b)
			carry = b.Available
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, b := range created {
		s.cache.Set(budgetKey{CategoryID: cat.ID, Month: b.Month}, b)
	}
	last := created[len(created)-1]
	return &last, nil
}

// checkAccessible enforces the planning policy: months up to the current one
// are always open; beyond that, assignment may reach at most PlanningHorizon
// months past the latest month holding any nonzero assignment. With no
// assignments anywhere the current month stands in as the latest.
func (s *ledgerService) checkAccessible(ctx context.Context, m string) error {
	current := month.Current()
	if month.Compare(m, current) <= 0 {
		return nil
	}

	latest, err := store.MaxString[models.CategoryBudget](ctx, s.store, "month", "assigned > 0")
	if err != nil {
		return err
	}
	if latest == "" {
		latest = current
	}
	limit := month.Add(latest, s.cfg.PlanningHorizon)
	if month.Compare(m, limit) > 0 {
		return apperrors.WithMessage(apperrors.ErrInaccessibleMonth,
			fmt.Sprintf("%s is beyond the planning limit %s", m, limit))
	}
	return nil
}

// AssignToBudget sets the assigned amount for (category, month) and walks the
// new available amount forward through materialized months.
func (s *ledgerService) AssignToBudget(ctx context.Context, categoryID, m string, amount int64) (*models.CategoryBudget, error) {
	m, err := month.Parse(m)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}
	if amount < 0 {
		return nil, apperrors.ErrNegativeAssignment
	}
	cat, err := s.category(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if err := s.checkAccessible(ctx, m); err != nil {
		return nil, err
	}

	unlock := s.lockCategory(categoryID)
	defer unlock()

	b, err := s.getOrCreateLocked(ctx, cat, m)
	if err != nil {
		return nil, err
	}

	var touched []string
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		b.Assigned = amount
		// Recomputed from the invariant, never patched by delta, so a
		// repeated assignment cannot accumulate drift.
		b.Recompute()
		if err := store.Updates(ctx, tx, b, map[string]interface{}{
			"assigned":  b.Assigned,
			"available": b.Available,
		}); err != nil {
			return err
		}
		touched = append(touched, b.Month)

		more, err := s.propagateLocked(ctx, tx, cat.ID, b.Month, b.Available)
		touched = append(touched, more...)
		return err
	})
	s.invalidate(cat.ID, touched)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// propagateLocked walks forward from fromMonth, rewriting each materialized
// successor's starting balance and recomputing its available amount. It stops
// at the first gap: unmaterialized months pick up the correct starting
// balance at creation time. Running it twice with the same inputs is a no-op
// the second time.
//
// Returns the months it rewrote, in order, for cache invalidation. Callers
// must hold the category lock.
func (s *ledgerService) propagateLocked(ctx context.Context, tx *store.Store, categoryID, fromMonth string, available int64) ([]string, error) {
	var touched []string
	carry := available
	for m := month.Next(fromMonth); ; m = month.Next(m) {
		next, err := store.First[models.CategoryBudget](ctx, tx, "category_id = ? AND month = ?", categoryID, m)
		if err != nil {
			return touched, err
		}
		if next == nil {
			break
		}
		next.StartingBalance = carry
		next.Recompute()
		if err := store.Updates(ctx, tx, next, map[string]interface{}{
			"starting_balance": next.StartingBalance,
			"available":        next.Available,
		}); err != nil {
			return touched, err
		}
		touched = append(touched, m)
		carry = next.Available
	}
	return touched, nil
}

// relevantExpense reports whether a transaction affects the budget ledger.
func relevantExpense(t *models.Transaction) bool {
	return t != nil && t.Type == models.TransactionTypeExpense && t.CategoryID != nil && *t.CategoryID != ""
}

// RecordTransactionImpact applies a transaction mutation to the ledger.
// A move between months (or categories) reverses the old effect first; a
// same-bucket edit applies only the amount delta. Each touched month's
// available is recomputed from the invariant and propagated forward.
func (s *ledgerService) RecordTransactionImpact(ctx context.Context, txn, oldTxn *models.Transaction) (*models.CategoryBudget, error) {
	newRel := relevantExpense(txn)
	oldRel := relevantExpense(oldTxn)
	if !newRel && !oldRel {
		return nil, nil
	}

	sameBucket := newRel && oldRel &&
		*txn.CategoryID == *oldTxn.CategoryID &&
		month.Of(txn.Date) == month.Of(oldTxn.Date)

	var categoryIDs []string
	if newRel {
		categoryIDs = append(categoryIDs, *txn.CategoryID)
	}
	if oldRel {
		categoryIDs = append(categoryIDs, *oldTxn.CategoryID)
	}
	unlock := s.lockCategories(categoryIDs...)
	defer unlock()

	// Reverse the old month first so its chain settles before the new
	// month is written.
	if oldRel && !sameBucket {
		if err := s.applyActivityLocked(ctx, *oldTxn.CategoryID, month.Of(oldTxn.Date), oldTxn.Amount); err != nil {
			return nil, err
		}
	}

	if !newRel {
		return nil, nil
	}

	delta := txn.Amount
	if sameBucket {
		delta -= oldTxn.Amount
	}
	m := month.Of(txn.Date)
	if err := s.applyActivityLocked(ctx, *txn.CategoryID, m, -delta); err != nil {
		return nil, err
	}

	b, err := store.First[models.CategoryBudget](ctx, s.store, "category_id = ? AND month = ?", *txn.CategoryID, m)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// applyActivityLocked shifts a month's activity by change, recomputes its
// available amount, and propagates forward. Callers must hold the category
// lock.
func (s *ledgerService) applyActivityLocked(ctx context.Context, categoryID, m string, change int64) error {
	cat, err := s.category(ctx, categoryID)
	if err != nil {
		return err
	}
	b, err := s.getOrCreateLocked(ctx, cat, m)
	if err != nil {
		return err
	}

	var touched []string
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		b.Activity += change
		b.Recompute()
		if err := store.Updates(ctx, tx, b, map[string]interface{}{
			"activity":  b.Activity,
			"available": b.Available,
		}); err != nil {
			return err
		}
		touched = append(touched, b.Month)

		more, err := s.propagateLocked(ctx, tx, categoryID, b.Month, b.Available)
		touched = append(touched, more...)
		return err
	})
	s.invalidate(categoryID, touched)
	return err
}

// CalculateReadyToAssign derives the unassigned pool for a month: the sum of
// all account balances minus everything assigned through that month, floored
// at zero. Always recomputed from source data.
func (s *ledgerService) CalculateReadyToAssign(ctx context.Context, m string) (int64, error) {
	m, err := month.Parse(m)
	if err != nil {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}

	totalBalance, err := store.SumInt64[models.Account](ctx, s.store, "current_balance", "")
	if err != nil {
		return 0, err
	}
	totalAssigned, err := store.SumInt64[models.CategoryBudget](ctx, s.store, "assigned", "month <= ?", m)
	if err != nil {
		return 0, err
	}

	ready := totalBalance - totalAssigned
	if ready < 0 {
		ready = 0
	}
	return ready, nil
}

// GetBudgetsForMonth materializes a budget row for every category in the
// given month and returns them sorted by category name.
func (s *ledgerService) GetBudgetsForMonth(ctx context.Context, m string) ([]models.CategoryBudget, error) {
	m, err := month.Parse(m)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}

	cats, err := store.Where[models.Category](ctx, s.store, "name ASC", "1 = 1")
	if err != nil {
		return nil, err
	}

	budgets := make([]models.CategoryBudget, 0, len(cats))
	for i := range cats {
		cat := &cats[i]
		unlock := s.lockCategory(cat.ID)
		b, err := s.getOrCreateLocked(ctx, cat, m)
		unlock()
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, *b)
	}
	return budgets, nil
}

// monthBounds returns the [start, end) time window of a month.
func monthBounds(m string) (time.Time, time.Time) {
	t, _ := time.Parse("2006-01", m)
	return t, t.AddDate(0, 1, 0)
}

// RepairChain rebuilds a category's ledger rows for the given month range
// directly from the transaction ledger, ignoring accumulated activity fields.
// The starting balance carries forward from the last row before startMonth
// (or zero), and any materialized months past endMonth are settled by a final
// forward propagation.
func (s *ledgerService) RepairChain(ctx context.Context, categoryID, startMonth, endMonth string) error {
	startMonth, err := month.Parse(startMonth)
	if err != nil {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}
	endMonth, err = month.Parse(endMonth)
	if err != nil {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}
	if month.Compare(startMonth, endMonth) > 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "start month is after end month")
	}
	if _, err := s.category(ctx, categoryID); err != nil {
		return err
	}

	unlock := s.lockCategory(categoryID)
	defer unlock()

	var carry int64
	preds, err := store.Where[models.CategoryBudget](ctx, s.store, "month DESC", "category_id = ? AND month < ?", categoryID, startMonth)
	if err != nil {
		return err
	}
	if len(preds) > 0 {
		carry = preds[0].Available
	}

	var touched []string
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		for _, m := range month.Range(startMonth, endMonth) {
			from, to := monthBounds(m)
			spent, err := store.SumInt64[models.Transaction](ctx, tx, "amount",
				"category_id = ? AND type = ? AND date >= ? AND date < ?",
				categoryID, models.TransactionTypeExpense, from, to)
			if err != nil {
				return err
			}

			b, err := store.First[models.CategoryBudget](ctx, tx, "category_id = ? AND month = ?", categoryID, m)
			if err != nil {
				return err
			}
			if b == nil {
				b = &models.CategoryBudget{CategoryID: categoryID, Month: m}
			}

			b.StartingBalance = carry
			b.Activity = -spent
			b.Recompute()

			if b.ID == "" {
				if err := store.Create(ctx, tx, b); err != nil {
					return err
				}
			} else if err := store.Updates(ctx, tx, b, map[string]interface{}{
				"starting_balance": b.StartingBalance,
				"activity":         b.Activity,
				"available":        b.Available,
			}); err != nil {
				return err
			}
			touched = append(touched, m)
			carry = b.Available
		}

		more, err := s.propagateLocked(ctx, tx, categoryID, endMonth, carry)
		touched = append(touched, more...)
		return err
	})
	s.invalidate(categoryID, touched)
	return err
}

// RepairAllChains repairs every category's chain over the given range.
// Categories are independent, so repairs run in parallel.
func (s *ledgerService) RepairAllChains(ctx context.Context, startMonth, endMonth string) error {
	cats, err := store.All[models.Category](ctx, s.store)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(repairConcurrency)
	for _, cat := range cats {
		g.Go(func() error {
			return s.RepairChain(ctx, cat.ID, startMonth, endMonth)
		})
	}
	return g.Wait()
}
