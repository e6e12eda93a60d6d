package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"centavo/internal/models"
	"centavo/internal/month"
	"centavo/internal/testutil"
)

func setupLedger(t *testing.T) (LedgerServicer, *gorm.DB) {
	t.Helper()
	st, db := testutil.SetupTestStore(t)
	return NewLedgerService(st, testutil.TestConfig()), db
}

func TestGetOrCreateBudget(t *testing.T) {
	ctx := context.Background()

	t.Run("builds_chain_from_floor", func(t *testing.T) {
		svc, db := setupLedger(t)
		cat := testutil.CreateTestCategory(t, db, "2023-12")

		budget, err := svc.GetOrCreateBudget(ctx, cat.ID, "2024-03")
		testutil.AssertNoError(t, err)
		testutil.AssertBudget(t, budget, 0, 0, 0, 0)

		// Exactly the floor..requested stretch is materialized.
		if n := testutil.CountBudgetRows(t, db, cat.ID); n != 4 {
			t.Errorf("expected 4 budget rows, got %d", n)
		}
		for _, m := range []string{"2023-12", "2024-01", "2024-02", "2024-03"} {
			row := testutil.GetBudgetRow(t, db, cat.ID, m)
			testutil.AssertBudget(t, row, 0, 0, 0, 0)
		}
		testutil.AssertChainConsistent(t, db, cat.ID)
	})

	t.Run("returns_existing_row", func(t *testing.T) {
		svc, db := setupLedger(t)
		cat := testutil.CreateTestCategory(t, db, "2024-01")

		first, err := svc.GetOrCreateBudget(ctx, cat.ID, "2024-02")
		testutil.AssertNoError(t, err)
		second, err := svc.GetOrCreateBudget(ctx, cat.ID, "2024-02")
		testutil.AssertNoError(t, err)

		if first.ID != second.ID {
			t.Errorf("expected the same row, got %s and %s", first.ID, second.ID)
		}
		if n := testutil.CountBudgetRows(t, db, cat.ID); n != 2 {
			t.Errorf("expected 2 budget rows, got %d", n)
		}
	})

	t.Run("anchors_on_materialized_predecessor", func(t *testing.T) {
		svc, db := setupLedger(t)
		cat := testutil.CreateTestCategory(t, db, "2024-01")

		_, err := svc.AssignToBudget(ctx, cat.ID, "2024-02", 300)
		testutil.AssertNoError(t, err)

		budget, err := svc.GetOrCreateBudget(ctx, cat.ID, "2024-05")
		testutil.AssertNoError(t, err)
		testutil.AssertBudget(t, budget, 0, 300, 0, 300)
		testutil.AssertChainConsistent(t, db, cat.ID)
	})

	t.Run("month_before_floor_anchors_at_zero", func(t *testing.T) {
		svc, db := setupLedger(t)
		cat := testutil.CreateTestCategory(t, db, "2024-06")

		budget, err := svc.GetOrCreateBudget(ctx, cat.ID, "2024-02")
		testutil.AssertNoError(t, err)
		testutil.AssertBudget(t, budget, 0, 0, 0, 0)
		if n := testutil.CountBudgetRows(t, db, cat.ID); n != 1 {
			t.Errorf("expected 1 budget row, got %d", n)
		}
	})

	t.Run("depth_cap", func(t *testing.T) {
		st, db := testutil.SetupTestStore(t)
		cfg := testutil.TestConfig()
		cfg.MaxChainDepth = 12
		svc := NewLedgerService(st, cfg)
		// No floor month recorded: the configured epoch (2020-01) anchors
		// the chain, far deeper than the cap allows.
		cat := testutil.CreateTestCategory(t, db, "")

		_, err := svc.GetOrCreateBudget(ctx, cat.ID, "2021-06")
		testutil.AssertAppError(t, err, "CHAIN_UNBOUNDED")
	})

	t.Run("unknown_category", func(t *testing.T) {
		svc, _ := setupLedger(t)
		_, err := svc.GetOrCreateBudget(ctx, "0d9aa217-1e2c-7b59-9e4e-0a4f0e1d2c3b", "2024-03")
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})

	t.Run("invalid_month", func(t *testing.T) {
		svc, db := setupLedger(t)
		cat := testutil.CreateTestCategory(t, db, "2024-01")
		_, err := svc.GetOrCreateBudget(ctx, cat.ID, "2024-13")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestAssignToBudget(t *testing.T) {
	ctx := context.Background()

	t.Run("carries_forward_into_auto_created_month", func(t *testing.T) {
		svc, db := setupLedger(t)
		cat := testutil.CreateTestCategory(t, db, "2024-01")

		_, err := svc.AssignToBudget(ctx, cat.ID, "2024-03", 100)
		testutil.AssertNoError(t, err)
		b04, err := svc.AssignToBudget(ctx, cat.ID, "2024-04", 0)
		testutil.AssertNoError(t, err)

		testutil.AssertBudget(t, b04, 0, 100, 0, 100)
		testutil.AssertChainConsistent(t, db, cat.ID)
	})

	t.Run("propagates_through_existing_future_months", func(t *testing.T) {
		svc, db := setupLedger(t)
		cat := testutil.CreateTestCategory(t, db, "2024-01")

		// Materialize 2024-01..2024-06 first.
		_, err := svc.GetOrCreateBudget(ctx, cat.ID, "2024-06")
		testutil.AssertNoError(t, err)

		_, err = svc.AssignToBudget(ctx, cat.ID, "2024-02", 250)
		testutil.AssertNoError(t, err)

		for _, m := range []string{"2024-03", "2024-04", "2024-05", "2024-06"} {
			row := testutil.GetBudgetRow(t, db, cat.ID, m)
			testutil.AssertBudget(t, row, 0, 250, 0, 250)
		}
		testutil.AssertChainConsistent(t, db, cat.ID)
	})

	t.Run("reassignment_recomputes_instead_of_accumulating", func(t *testing.T) {
		svc, db := setupLedger(t)
		cat := testutil.CreateTestCategory(t, db, "2024-01")

		_, err := svc.AssignToBudget(ctx, cat.ID, "2024-02", 100)
		testutil.AssertNoError(t, err)
		b, err := svc.AssignToBudget(ctx, cat.ID, "2024-02", 40)
		testutil.AssertNoError(t, err)

		testutil.AssertBudget(t, b, 40, 0, 0, 40)
		testutil.AssertChainConsistent(t, db, cat.ID)
	})

	t.Run("repeat_assignment_is_idempotent", func(t *testing.T) {
		svc, db := setupLedger(t)
		cat := testutil.CreateTestCategory(t, db, "2024-01")

		_, err := svc.GetOrCreateBudget(ctx, cat.ID, "2024-05")
		testutil.AssertNoError(t, err)

		_, err = svc.AssignToBudget(ctx, cat.ID, "2024-02", 75)
		testutil.AssertNoError(t, err)
		var first []models.CategoryBudget
		testutil.AssertNoError(t, db.Where("category_id = ?", cat.ID).Order("month ASC").Find(&first).Error)

		_, err = svc.AssignToBudget(ctx, cat.ID, "2024-02", 75)
		testutil.AssertNoError(t, err)
		var second []models.CategoryBudget
		testutil.AssertNoError(t, db.Where("category_id = ?", cat.ID).Order("month ASC").Find(&second).Error)

		if len(first) != len(second) {
			t.Fatalf("row count changed from %d to %d", len(first), len(second))
		}
		for i := range first {
			if first[i].Month != second[i].Month ||
				first[i].Assigned != second[i].Assigned ||
				first[i].StartingBalance != second[i].StartingBalance ||
				first[i].Activity != second[i].Activity ||
				first[i].Available != second[i].Available {
				t.Errorf("month %s changed between identical runs", first[i].Month)
			}
		}
	})

	t.Run("negative_amount", func(t *testing.T) {
		svc, db := setupLedger(t)
		cat := testutil.CreateTestCategory(t, db, "2024-01")
		_, err := svc.AssignToBudget(ctx, cat.ID, "2024-02", -5)
		testutil.AssertAppError(t, err, "NEGATIVE_ASSIGNMENT")
	})

	t.Run("month_beyond_planning_limit", func(t *testing.T) {
		svc, db := setupLedger(t)
		cat := testutil.CreateTestCategory(t, db, month.Current())

		_, err := svc.AssignToBudget(ctx, cat.ID, month.Add(month.Current(), 3), 10)
		testutil.AssertAppError(t, err, "INACCESSIBLE_MONTH")
	})

	t.Run("one_month_ahead_is_open", func(t *testing.T) {
		svc, db := setupLedger(t)
		cat := testutil.CreateTestCategory(t, db, month.Current())

		_, err := svc.AssignToBudget(ctx, cat.ID, month.Next(month.Current()), 10)
		testutil.AssertNoError(t, err)
	})

	t.Run("assignment_ratchets_the_limit_forward", func(t *testing.T) {
		svc, db := setupLedger(t)
		cat := testutil.CreateTestCategory(t, db, month.Current())

		next := month.Next(month.Current())
		_, err := svc.AssignToBudget(ctx, cat.ID, next, 10)
		testutil.AssertNoError(t, err)

		// With a nonzero assignment in next, one month further opens up.
		_, err = svc.AssignToBudget(ctx, cat.ID, month.Next(next), 10)
		testutil.AssertNoError(t, err)
	})
}

func TestRecordTransactionImpact(t *testing.T) {
	ctx := context.Background()

	t.Run("expense_reduces_available_and_propagates", func(t *testing.T) {
		svc, db := setupLedger(t)
		acct := testutil.CreateTestAccount(t, db, 50000)
		cat := testutil.CreateTestCategory(t, db, "2024-01")

		_, err := svc.AssignToBudget(ctx, cat.ID, "2024-03", 100)
		testutil.AssertNoError(t, err)
		_, err = svc.AssignToBudget(ctx, cat.ID, "2024-04", 0)
		testutil.AssertNoError(t, err)

		txn := testutil.CreateTestExpense(t, db, acct.ID, cat.ID, "2024-03", 30)
		budget, err := svc.RecordTransactionImpact(ctx, txn, nil)
		testutil.AssertNoError(t, err)

		testutil.AssertBudget(t, budget, 100, 0, -30, 70)
		b04 := testutil.GetBudgetRow(t, db, cat.ID, "2024-04")
		testutil.AssertBudget(t, b04, 0, 70, 0, 70)
		testutil.AssertChainConsistent(t, db, cat.ID)
	})

	t.Run("amount_edit_applies_delta", func(t *testing.T) {
		svc, db := setupLedger(t)
		acct := testutil.CreateTestAccount(t, db, 50000)
		cat := testutil.CreateTestCategory(t, db, "2024-01")

		_, err := svc.AssignToBudget(ctx, cat.ID, "2024-03", 100)
		testutil.AssertNoError(t, err)
		_, err = svc.AssignToBudget(ctx, cat.ID, "2024-04", 0)
		testutil.AssertNoError(t, err)

		txn := testutil.CreateTestExpense(t, db, acct.ID, cat.ID, "2024-03", 30)
		_, err = svc.RecordTransactionImpact(ctx, txn, nil)
		testutil.AssertNoError(t, err)

		old := *txn
		txn.Amount = 50
		testutil.AssertNoError(t, db.Model(txn).Update("amount", 50).Error)

		budget, err := svc.RecordTransactionImpact(ctx, txn, &old)
		testutil.AssertNoError(t, err)

		testutil.AssertBudget(t, budget, 100, 0, -50, 50)
		b04 := testutil.GetBudgetRow(t, db, cat.ID, "2024-04")
		testutil.AssertBudget(t, b04, 0, 50, 0, 50)
		testutil.AssertChainConsistent(t, db, cat.ID)
	})

	t.Run("month_move_reverses_old_month_first", func(t *testing.T) {
		svc, db := setupLedger(t)
		acct := testutil.CreateTestAccount(t, db, 50000)
		cat := testutil.CreateTestCategory(t, db, "2024-01")

		_, err := svc.AssignToBudget(ctx, cat.ID, "2024-03", 100)
		testutil.AssertNoError(t, err)

		txn := testutil.CreateTestExpense(t, db, acct.ID, cat.ID, "2024-03", 30)
		_, err = svc.RecordTransactionImpact(ctx, txn, nil)
		testutil.AssertNoError(t, err)

		old := *txn
		moved, _ := parseMonthDate(t, "2024-04")
		txn.Date = moved
		testutil.AssertNoError(t, db.Model(txn).Update("date", moved).Error)

		budget, err := svc.RecordTransactionImpact(ctx, txn, &old)
		testutil.AssertNoError(t, err)

		b03 := testutil.GetBudgetRow(t, db, cat.ID, "2024-03")
		testutil.AssertBudget(t, b03, 100, 0, 0, 100)
		testutil.AssertBudget(t, budget, 0, 100, -30, 70)
		testutil.AssertChainConsistent(t, db, cat.ID)
	})

	t.Run("category_move_settles_both_chains", func(t *testing.T) {
		svc, db := setupLedger(t)
		acct := testutil.CreateTestAccount(t, db, 50000)
		catA := testutil.CreateTestCategory(t, db, "2024-01")
		catB := testutil.CreateTestCategory(t, db, "2024-01")

		txn := testutil.CreateTestExpense(t, db, acct.ID, catA.ID, "2024-03", 30)
		_, err := svc.RecordTransactionImpact(ctx, txn, nil)
		testutil.AssertNoError(t, err)

		old := *txn
		txn.CategoryID = &catB.ID
		testutil.AssertNoError(t, db.Model(txn).Update("category_id", catB.ID).Error)

		budget, err := svc.RecordTransactionImpact(ctx, txn, &old)
		testutil.AssertNoError(t, err)

		a03 := testutil.GetBudgetRow(t, db, catA.ID, "2024-03")
		testutil.AssertBudget(t, a03, 0, 0, 0, 0)
		testutil.AssertBudget(t, budget, 0, 0, -30, -30)
		testutil.AssertChainConsistent(t, db, catA.ID)
		testutil.AssertChainConsistent(t, db, catB.ID)
	})

	t.Run("delete_reverses_fully", func(t *testing.T) {
		svc, db := setupLedger(t)
		acct := testutil.CreateTestAccount(t, db, 50000)
		cat := testutil.CreateTestCategory(t, db, "2024-01")

		txn := testutil.CreateTestExpense(t, db, acct.ID, cat.ID, "2024-03", 30)
		_, err := svc.RecordTransactionImpact(ctx, txn, nil)
		testutil.AssertNoError(t, err)

		_, err = svc.RecordTransactionImpact(ctx, nil, txn)
		testutil.AssertNoError(t, err)

		b03 := testutil.GetBudgetRow(t, db, cat.ID, "2024-03")
		testutil.AssertBudget(t, b03, 0, 0, 0, 0)
		testutil.AssertChainConsistent(t, db, cat.ID)
	})

	t.Run("non_expense_is_a_no_op", func(t *testing.T) {
		svc, db := setupLedger(t)
		acct := testutil.CreateTestAccount(t, db, 50000)
		testutil.CreateTestCategory(t, db, "2024-01")

		income := &models.Transaction{
			AccountID: acct.ID,
			Type:      models.TransactionTypeIncome,
			Amount:    100,
		}
		budget, err := svc.RecordTransactionImpact(ctx, income, nil)
		testutil.AssertNoError(t, err)
		if budget != nil {
			t.Errorf("expected nil budget for income, got %+v", budget)
		}
	})
}

func TestCalculateReadyToAssign(t *testing.T) {
	ctx := context.Background()

	t.Run("balances_minus_assignments", func(t *testing.T) {
		svc, db := setupLedger(t)
		testutil.CreateTestAccount(t, db, 500)
		testutil.CreateTestAccount(t, db, 200)
		cat := testutil.CreateTestCategory(t, db, month.Current())

		_, err := svc.AssignToBudget(ctx, cat.ID, month.Current(), 100)
		testutil.AssertNoError(t, err)

		ready, err := svc.CalculateReadyToAssign(ctx, month.Current())
		testutil.AssertNoError(t, err)
		if ready != 600 {
			t.Errorf("expected 600, got %d", ready)
		}
	})

	t.Run("never_negative", func(t *testing.T) {
		svc, db := setupLedger(t)
		testutil.CreateTestAccount(t, db, 50)
		cat := testutil.CreateTestCategory(t, db, month.Current())

		_, err := svc.AssignToBudget(ctx, cat.ID, month.Current(), 100)
		testutil.AssertNoError(t, err)

		ready, err := svc.CalculateReadyToAssign(ctx, month.Current())
		testutil.AssertNoError(t, err)
		if ready != 0 {
			t.Errorf("expected 0, got %d", ready)
		}
	})

	t.Run("excludes_future_assignments", func(t *testing.T) {
		svc, db := setupLedger(t)
		testutil.CreateTestAccount(t, db, 1000)
		cat := testutil.CreateTestCategory(t, db, "2024-01")

		_, err := svc.AssignToBudget(ctx, cat.ID, "2024-02", 100)
		testutil.AssertNoError(t, err)
		_, err = svc.AssignToBudget(ctx, cat.ID, "2024-04", 300)
		testutil.AssertNoError(t, err)

		ready, err := svc.CalculateReadyToAssign(ctx, "2024-03")
		testutil.AssertNoError(t, err)
		if ready != 900 {
			t.Errorf("expected 900, got %d", ready)
		}
	})
}

func TestGetBudgetsForMonth(t *testing.T) {
	ctx := context.Background()

	svc, db := setupLedger(t)
	catB := testutil.CreateTestCategory(t, db, "2024-01")
	catA := testutil.CreateTestCategory(t, db, "2024-01")
	testutil.AssertNoError(t, db.Model(catA).Update("name", "Appliances").Error)
	testutil.AssertNoError(t, db.Model(catB).Update("name", "Zoo Trips").Error)

	budgets, err := svc.GetBudgetsForMonth(ctx, "2024-03")
	testutil.AssertNoError(t, err)

	if len(budgets) != 2 {
		t.Fatalf("expected 2 budgets, got %d", len(budgets))
	}
	if budgets[0].CategoryID != catA.ID || budgets[1].CategoryID != catB.ID {
		t.Error("expected budgets sorted by category name")
	}
	for _, cat := range []string{catA.ID, catB.ID} {
		if n := testutil.CountBudgetRows(t, db, cat); n != 3 {
			t.Errorf("expected 3 materialized rows for category, got %d", n)
		}
	}
}

func TestRepairChain(t *testing.T) {
	ctx := context.Background()

	t.Run("rebuilds_activity_from_ledger", func(t *testing.T) {
		svc, db := setupLedger(t)
		acct := testutil.CreateTestAccount(t, db, 50000)
		cat := testutil.CreateTestCategory(t, db, "2024-01")

		_, err := svc.AssignToBudget(ctx, cat.ID, "2024-02", 200)
		testutil.AssertNoError(t, err)
		testutil.CreateTestExpense(t, db, acct.ID, cat.ID, "2024-02", 60)
		testutil.CreateTestExpense(t, db, acct.ID, cat.ID, "2024-03", 40)

		// Corrupt the stored rows: the expenses above were never posted
		// through the engine, so activity and available have drifted.
		testutil.AssertNoError(t, svc.RepairChain(ctx, cat.ID, "2024-01", "2024-04"))

		b02 := testutil.GetBudgetRow(t, db, cat.ID, "2024-02")
		testutil.AssertBudget(t, b02, 200, 0, -60, 140)
		b03 := testutil.GetBudgetRow(t, db, cat.ID, "2024-03")
		testutil.AssertBudget(t, b03, 0, 140, -40, 100)
		b04 := testutil.GetBudgetRow(t, db, cat.ID, "2024-04")
		testutil.AssertBudget(t, b04, 0, 100, 0, 100)
		testutil.AssertChainConsistent(t, db, cat.ID)
	})

	t.Run("heals_corrupted_fields", func(t *testing.T) {
		svc, db := setupLedger(t)
		acct := testutil.CreateTestAccount(t, db, 50000)
		cat := testutil.CreateTestCategory(t, db, "2024-01")

		_, err := svc.AssignToBudget(ctx, cat.ID, "2024-02", 500)
		testutil.AssertNoError(t, err)
		txn := testutil.CreateTestExpense(t, db, acct.ID, cat.ID, "2024-02", 120)
		_, err = svc.RecordTransactionImpact(ctx, txn, nil)
		testutil.AssertNoError(t, err)

		// Simulate drift: assigned > 0 but available forced to zero.
		testutil.AssertNoError(t, db.Model(&models.CategoryBudget{}).
			Where("category_id = ? AND month = ?", cat.ID, "2024-02").
			Updates(map[string]interface{}{"available": 0, "activity": 0}).Error)

		testutil.AssertNoError(t, svc.RepairChain(ctx, cat.ID, "2024-02", "2024-02"))

		b02 := testutil.GetBudgetRow(t, db, cat.ID, "2024-02")
		testutil.AssertBudget(t, b02, 500, 0, -120, 380)
		testutil.AssertChainConsistent(t, db, cat.ID)
	})

	t.Run("settles_months_beyond_repaired_range", func(t *testing.T) {
		svc, db := setupLedger(t)
		acct := testutil.CreateTestAccount(t, db, 50000)
		cat := testutil.CreateTestCategory(t, db, "2024-01")

		_, err := svc.AssignToBudget(ctx, cat.ID, "2024-02", 100)
		testutil.AssertNoError(t, err)
		_, err = svc.GetOrCreateBudget(ctx, cat.ID, "2024-06")
		testutil.AssertNoError(t, err)

		testutil.CreateTestExpense(t, db, acct.ID, cat.ID, "2024-02", 25)
		testutil.AssertNoError(t, svc.RepairChain(ctx, cat.ID, "2024-02", "2024-03"))

		b06 := testutil.GetBudgetRow(t, db, cat.ID, "2024-06")
		testutil.AssertBudget(t, b06, 0, 75, 0, 75)
		testutil.AssertChainConsistent(t, db, cat.ID)
	})

	t.Run("invalid_range", func(t *testing.T) {
		svc, db := setupLedger(t)
		cat := testutil.CreateTestCategory(t, db, "2024-01")
		err := svc.RepairChain(ctx, cat.ID, "2024-05", "2024-02")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestRepairAllChains(t *testing.T) {
	ctx := context.Background()

	svc, db := setupLedger(t)
	acct := testutil.CreateTestAccount(t, db, 50000)
	catA := testutil.CreateTestCategory(t, db, "2024-01")
	catB := testutil.CreateTestCategory(t, db, "2024-01")

	testutil.CreateTestExpense(t, db, acct.ID, catA.ID, "2024-02", 10)
	testutil.CreateTestExpense(t, db, acct.ID, catB.ID, "2024-03", 20)

	testutil.AssertNoError(t, svc.RepairAllChains(ctx, "2024-01", "2024-04"))

	a02 := testutil.GetBudgetRow(t, db, catA.ID, "2024-02")
	testutil.AssertBudget(t, a02, 0, 0, -10, -10)
	b03 := testutil.GetBudgetRow(t, db, catB.ID, "2024-03")
	testutil.AssertBudget(t, b03, 0, 0, -20, -20)
	testutil.AssertChainConsistent(t, db, catA.ID)
	testutil.AssertChainConsistent(t, db, catB.ID)
}

func TestConcurrentMutationsStayConsistent(t *testing.T) {
	ctx := context.Background()

	svc, db := setupLedger(t)
	acct := testutil.CreateTestAccount(t, db, 100000)
	cat := testutil.CreateTestCategory(t, db, "2024-01")

	_, err := svc.GetOrCreateBudget(ctx, cat.ID, "2024-06")
	testutil.AssertNoError(t, err)

	txns := make([]*models.Transaction, 8)
	for i := range txns {
		txns[i] = testutil.CreateTestExpense(t, db, acct.ID, cat.ID, "2024-03", int64(i+1))
	}

	var wg sync.WaitGroup
	for _, txn := range txns {
		wg.Add(1)
		go func(txn *models.Transaction) {
			defer wg.Done()
			if _, err := svc.RecordTransactionImpact(ctx, txn, nil); err != nil {
				t.Errorf("impact failed: %v", err)
			}
		}(txn)
	}
	wg.Wait()

	// 1+2+...+8 spent in 2024-03, carried through the chain.
	b03 := testutil.GetBudgetRow(t, db, cat.ID, "2024-03")
	if b03.Activity != -36 {
		t.Errorf("expected activity -36, got %d", b03.Activity)
	}
	testutil.AssertChainConsistent(t, db, cat.ID)
}

func parseMonthDate(t *testing.T, m string) (time.Time, time.Time) {
	t.Helper()
	return monthBounds(m)
}
