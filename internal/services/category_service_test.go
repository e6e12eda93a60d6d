package services

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"centavo/internal/models"
	"centavo/internal/month"
	"centavo/internal/testutil"
)

func setupCategories(t *testing.T) (CategoryServicer, *gorm.DB) {
	t.Helper()
	st, db := testutil.SetupTestStore(t)
	return NewCategoryService(st), db
}

func mustParseDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("invalid date %q: %v", s, err)
	}
	return d
}

func TestCreateCategory(t *testing.T) {
	ctx := context.Background()

	t.Run("floor_anchors_at_creation_month", func(t *testing.T) {
		svc, _ := setupCategories(t)

		category, err := svc.CreateCategory(ctx, "Groceries", "cart", "#22c55e")
		testutil.AssertNoError(t, err)

		if category.FloorMonth != month.Current() {
			t.Errorf("expected floor month %s, got %s", month.Current(), category.FloorMonth)
		}
	})

	t.Run("duplicate_name", func(t *testing.T) {
		svc, _ := setupCategories(t)

		_, err := svc.CreateCategory(ctx, "Groceries", "", "")
		testutil.AssertNoError(t, err)
		_, err = svc.CreateCategory(ctx, "Groceries", "", "")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("empty_name", func(t *testing.T) {
		svc, _ := setupCategories(t)
		_, err := svc.CreateCategory(ctx, "", "", "")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestGetCategories(t *testing.T) {
	ctx := context.Background()
	svc, db := setupCategories(t)

	testutil.CreateTestCategory(t, db, "2024-01")
	testutil.CreateTestCategory(t, db, "2024-01")

	categories, err := svc.GetCategories(ctx)
	testutil.AssertNoError(t, err)
	if len(categories) != 2 {
		t.Errorf("expected 2 categories, got %d", len(categories))
	}
}

func TestUpdateCategory(t *testing.T) {
	ctx := context.Background()
	svc, db := setupCategories(t)
	cat := testutil.CreateTestCategory(t, db, "2024-01")

	updated, err := svc.UpdateCategory(ctx, cat.ID, "Dining Out", "utensils", "#ef4444")
	testutil.AssertNoError(t, err)
	if updated.Name != "Dining Out" || updated.Icon != "utensils" || updated.Color != "#ef4444" {
		t.Errorf("unexpected updated category: %+v", updated)
	}
	if updated.FloorMonth != "2024-01" {
		t.Errorf("floor month must not change on update, got %s", updated.FloorMonth)
	}
}

func TestDeleteCategory(t *testing.T) {
	ctx := context.Background()

	t.Run("cascades_budget_rows", func(t *testing.T) {
		svc, db := setupCategories(t)
		cat := testutil.CreateTestCategory(t, db, "2024-01")
		budget := &models.CategoryBudget{CategoryID: cat.ID, Month: "2024-02"}
		testutil.AssertNoError(t, db.Create(budget).Error)

		testutil.AssertNoError(t, svc.DeleteCategory(ctx, cat.ID))

		if n := testutil.CountBudgetRows(t, db, cat.ID); n != 0 {
			t.Errorf("expected budget rows removed, found %d", n)
		}
		var count int64
		testutil.AssertNoError(t, db.Model(&models.Category{}).Where("id = ?", cat.ID).Count(&count).Error)
		if count != 0 {
			t.Errorf("expected category removed")
		}
	})

	t.Run("blocked_while_referenced", func(t *testing.T) {
		svc, db := setupCategories(t)
		acct := testutil.CreateTestAccount(t, db, 1000)
		cat := testutil.CreateTestCategory(t, db, "2024-01")
		testutil.CreateTestExpense(t, db, acct.ID, cat.ID, "2024-02", 10)

		err := svc.DeleteCategory(ctx, cat.ID)
		testutil.AssertAppError(t, err, "CATEGORY_IN_USE")
	})

	t.Run("unknown_category", func(t *testing.T) {
		svc, _ := setupCategories(t)
		err := svc.DeleteCategory(ctx, "018e5a2b-0000-7000-8000-000000000000")
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})
}
