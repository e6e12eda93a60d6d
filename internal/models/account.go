package models

// AccountType represents the type of account
type AccountType string

const (
	AccountTypeChecking AccountType = "checking"
	AccountTypeSavings  AccountType = "savings"
	AccountTypeCredit   AccountType = "credit"
	AccountTypeCash     AccountType = "cash"
)

// Account represents a financial account in the system. Amounts are in cents.
//
// CurrentBalance always equals InitialBalance plus the net effect of every
// transaction posted against this account. It is maintained by the
// transaction service and can be rebuilt from the ledger with
// AccountServicer.RecalculateBalance.
type Account struct {
	Base
	Name           string      `gorm:"not null" json:"name"`
	Type           AccountType `gorm:"not null" json:"type"`
	InitialBalance int64       `gorm:"type:bigint;not null;default:0" json:"initial_balance"`
	CurrentBalance int64       `gorm:"type:bigint;not null;default:0" json:"current_balance"`

	// Relationships
	Transactions []Transaction `gorm:"foreignKey:AccountID" json:"transactions,omitempty"`
}
