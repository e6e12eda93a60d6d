package models

// Category represents a spending envelope. FloorMonth is the month the
// category was created in; budget chains never extend before it.
type Category struct {
	Base
	Name       string `gorm:"not null" json:"name"`
	Icon       string `json:"icon"`
	Color      string `json:"color"`
	FloorMonth string `gorm:"not null" json:"floor_month"`

	// Relationships
	Budgets      []CategoryBudget `gorm:"foreignKey:CategoryID" json:"budgets,omitempty"`
	Transactions []Transaction    `gorm:"foreignKey:CategoryID" json:"transactions,omitempty"`
}
