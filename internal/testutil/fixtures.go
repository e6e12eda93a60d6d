package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"centavo/internal/models"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestAccount creates a checking account with the given balance (in cents).
func CreateTestAccount(t *testing.T, db *gorm.DB, balance int64) *models.Account {
	t.Helper()

	account := &models.Account{
		Name:           fmt.Sprintf("Test Account %d", nextID()),
		Type:           models.AccountTypeChecking,
		InitialBalance: balance,
		CurrentBalance: balance,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}

// CreateTestCategory creates a category whose budget chain floor is the given
// month.
func CreateTestCategory(t *testing.T, db *gorm.DB, floorMonth string) *models.Category {
	t.Helper()

	category := &models.Category{
		Name:       fmt.Sprintf("Test Category %d", nextID()),
		FloorMonth: floorMonth,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestExpense creates an expense transaction dated inside the given
// month, bypassing the service layer.
func CreateTestExpense(t *testing.T, db *gorm.DB, accountID, categoryID, month string, amount int64) *models.Transaction {
	t.Helper()

	date, err := time.Parse("2006-01", month)
	if err != nil {
		t.Fatalf("invalid month %q: %v", month, err)
	}

	txn := &models.Transaction{
		AccountID:  accountID,
		CategoryID: &categoryID,
		Type:       models.TransactionTypeExpense,
		Amount:     amount,
		Date:       date.AddDate(0, 0, 14),
		Payee:      fmt.Sprintf("Test Payee %d", nextID()),
	}
	if err := db.Create(txn).Error; err != nil {
		t.Fatalf("failed to create test expense: %v", err)
	}
	return txn
}

// GetBudgetRow fetches the stored budget row for (category, month) directly
// from the database, bypassing the engine's cache.
func GetBudgetRow(t *testing.T, db *gorm.DB, categoryID, month string) *models.CategoryBudget {
	t.Helper()

	var budget models.CategoryBudget
	err := db.Where("category_id = ? AND month = ?", categoryID, month).First(&budget).Error
	if err != nil {
		t.Fatalf("failed to fetch budget row %s/%s: %v", categoryID, month, err)
	}
	return &budget
}

// CountBudgetRows counts the stored budget rows for a category.
func CountBudgetRows(t *testing.T, db *gorm.DB, categoryID string) int64 {
	t.Helper()

	var n int64
	if err := db.Model(&models.CategoryBudget{}).Where("category_id = ?", categoryID).Count(&n).Error; err != nil {
		t.Fatalf("failed to count budget rows: %v", err)
	}
	return n
}
