package models

// CategoryBudget is the ledger entry for one (category, month) pair.
// Month is "YYYY-MM", unique per category. Amounts are in cents.
//
// Available is derived and must always satisfy
//
//	Available == StartingBalance + Assigned + Activity
//
// It is never written independently; use Recompute after changing any input.
// Activity is the signed sum of expense transactions posted against the
// category in this month and is stored as a negative number.
type CategoryBudget struct {
	Base
	CategoryID      string `gorm:"type:uuid;not null;uniqueIndex:idx_category_month" json:"category_id"`
	Month           string `gorm:"not null;uniqueIndex:idx_category_month" json:"month"`
	Assigned        int64  `gorm:"type:bigint;not null;default:0" json:"assigned"`
	StartingBalance int64  `gorm:"type:bigint;not null;default:0" json:"starting_balance"`
	Activity        int64  `gorm:"type:bigint;not null;default:0" json:"activity"`
	Available       int64  `gorm:"type:bigint;not null;default:0" json:"available"`

	// Relationships
	Category Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

// Recompute derives Available from the ledger invariant.
func (b *CategoryBudget) Recompute() {
	b.Available = b.StartingBalance + b.Assigned + b.Activity
}

// Consistent reports whether the row satisfies the ledger invariant.
func (b *CategoryBudget) Consistent() bool {
	return b.Available == b.StartingBalance+b.Assigned+b.Activity
}
