package testutil

import (
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	apperrors "centavo/internal/errors"
	"centavo/internal/models"
)

func parseMonth(s string) (time.Time, error) {
	return time.Parse("2006-01", s)
}

// AssertNoError fails the test when err is non-nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertAppError checks that err is an *AppError with the expected error code.
func AssertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected AppError with code %s, got nil", expectedCode)
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError with code %s, got %T: %v", expectedCode, err, err)
	}
	if appErr.Code != expectedCode {
		t.Fatalf("expected error code %s, got %s", expectedCode, appErr.Code)
	}
}

// AssertBudget checks a budget row's assigned, starting balance, activity,
// and available amounts.
func AssertBudget(t *testing.T, b *models.CategoryBudget, assigned, startingBalance, activity, available int64) {
	t.Helper()

	if b.Assigned != assigned {
		t.Errorf("assigned: expected %d, got %d", assigned, b.Assigned)
	}
	if b.StartingBalance != startingBalance {
		t.Errorf("starting balance: expected %d, got %d", startingBalance, b.StartingBalance)
	}
	if b.Activity != activity {
		t.Errorf("activity: expected %d, got %d", activity, b.Activity)
	}
	if b.Available != available {
		t.Errorf("available: expected %d, got %d", available, b.Available)
	}
}

// AssertChainConsistent verifies the ledger invariants for every stored
// budget row of a category: each row's available equals starting balance plus
// assigned plus activity, and each adjacent pair of months links starting
// balance to the predecessor's available.
func AssertChainConsistent(t *testing.T, db *gorm.DB, categoryID string) {
	t.Helper()

	var budgets []models.CategoryBudget
	if err := db.Where("category_id = ?", categoryID).Order("month ASC").Find(&budgets).Error; err != nil {
		t.Fatalf("failed to load budget chain: %v", err)
	}

	for i, b := range budgets {
		if !b.Consistent() {
			t.Errorf("month %s: available %d != starting %d + assigned %d + activity %d",
				b.Month, b.Available, b.StartingBalance, b.Assigned, b.Activity)
		}
		if i > 0 && adjacentMonths(budgets[i-1].Month, b.Month) && b.StartingBalance != budgets[i-1].Available {
			t.Errorf("month %s: starting balance %d != previous month's available %d",
				b.Month, b.StartingBalance, budgets[i-1].Available)
		}
	}
}

func adjacentMonths(a, b string) bool {
	ta, errA := parseMonth(a)
	tb, errB := parseMonth(b)
	if errA != nil || errB != nil {
		return false
	}
	return ta.AddDate(0, 1, 0).Equal(tb)
}
