package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payment holds the payment instructions printed on an invoice.
type Payment struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	InvoiceID string `gorm:"size:36;uniqueIndex;not null" json:"invoice_id"`

	BankAccountNumber  string     `gorm:"size:100" json:"bank_account_number,omitempty"`
	BIC                string     `gorm:"column:bic;size:20" json:"bic,omitempty"`
	AccountName        string     `gorm:"size:255" json:"account_name,omitempty"`
	PaymentTerms       string     `gorm:"type:text" json:"payment_terms,omitempty"`
	NetDays            int        `gorm:"default:0" json:"net_days"`
	DiscountPercentage *float64   `json:"discount_percentage,omitempty"`
	DiscountDays       int        `gorm:"default:0" json:"discount_days"`
	DiscountDueDate    *time.Time `json:"discount_due_date,omitempty"`
	DiscountedTotal    *float64   `json:"discounted_total,omitempty"`
}

func (p *Payment) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
