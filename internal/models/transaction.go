package models

import "time"

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeIncome   TransactionType = "income"
	TransactionTypeExpense  TransactionType = "expense"
	TransactionTypeTransfer TransactionType = "transfer"
)

// Transaction represents a financial transaction in the system.
// Amount is always a positive magnitude; Type determines the sign of its
// effect on account balances and category activity.
type Transaction struct {
	Base
	AccountID  string          `gorm:"type:uuid;not null" json:"account_id"`
	CategoryID *string         `gorm:"type:uuid" json:"category_id,omitempty"` // required iff type=expense
	Type       TransactionType `gorm:"not null" json:"type"`
	Amount     int64           `gorm:"type:bigint;not null" json:"amount"`
	Date       time.Time       `gorm:"not null" json:"date"`
	Payee      string          `json:"payee"`
	Notes      string          `json:"notes"`

	// For transfers
	TransferAccountID *string `gorm:"type:uuid" json:"transfer_account_id,omitempty"`

	// Relationships
	Account         Account   `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	TransferAccount *Account  `gorm:"foreignKey:TransferAccountID" json:"transfer_account,omitempty"`
	Category        *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
