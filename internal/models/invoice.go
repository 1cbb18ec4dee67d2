package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Invoice statuses found in the document export.
const (
	InvoiceStatusProcessed = "processed"
	InvoiceStatusPending   = "pending"
	InvoiceStatusRejected  = "rejected"
)

// OutstandingStatuses are the statuses that still produce a cash outflow.
var OutstandingStatuses = []string{InvoiceStatusProcessed, InvoiceStatusPending}

// Invoice is the extracted invoice of a document.
// InvoiceTotal is signed as stored in the source; credits are negative.
// Anything user-facing goes through money.Abs.
type Invoice struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DocumentID string `gorm:"size:64;uniqueIndex;not null" json:"document_id"`

	VendorID string  `gorm:"size:36;index;not null" json:"vendor_id"`
	Vendor   *Vendor `gorm:"foreignKey:VendorID" json:"vendor,omitempty"`

	CustomerID string    `gorm:"size:36;index;not null" json:"customer_id"`
	Customer   *Customer `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`

	InvoiceNumber  string     `gorm:"size:100;index" json:"invoice_number"`
	InvoiceDate    time.Time  `gorm:"index;not null" json:"invoice_date"`
	DeliveryDate   *time.Time `json:"delivery_date,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	SubTotal       float64    `gorm:"not null;default:0" json:"sub_total"`
	TotalTax       float64    `gorm:"not null;default:0" json:"total_tax"`
	InvoiceTotal   float64    `gorm:"not null;default:0" json:"invoice_total"`
	CurrencySymbol string     `gorm:"size:10;default:'EUR'" json:"currency_symbol"`
	Status         string     `gorm:"size:50;index" json:"status"`

	Payment   *Payment   `gorm:"foreignKey:InvoiceID" json:"payment,omitempty"`
	LineItems []LineItem `gorm:"foreignKey:InvoiceID" json:"line_items,omitempty"`
}

func (i *Invoice) BeforeCreate(_ *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// OutflowDate is the day the invoice is expected to be paid:
// the due date when known, the invoice date otherwise.
func (i *Invoice) OutflowDate() time.Time {
	if i.DueDate != nil && !i.DueDate.IsZero() {
		return *i.DueDate
	}
	return i.InvoiceDate
}

// IsOutstanding reports whether the invoice still counts towards cash outflow.
func (i *Invoice) IsOutstanding() bool {
	for _, s := range OutstandingStatuses {
		if i.Status == s {
			return true
		}
	}
	return false
}

// LineItem is a single position of an invoice.
type LineItem struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	InvoiceID string `gorm:"size:36;index;not null" json:"invoice_id"`

	SrNo         int     `gorm:"default:0" json:"sr_no"`
	Description  string  `gorm:"type:text" json:"description"`
	Quantity     float64 `gorm:"not null;default:0" json:"quantity"`
	UnitPrice    float64 `gorm:"not null;default:0" json:"unit_price"`
	TotalPrice   float64 `gorm:"not null;default:0" json:"total_price"`
	Sachkonto    *string `gorm:"size:20" json:"sachkonto,omitempty"`
	BUSchluessel *string `gorm:"column:bu_schluessel;size:20" json:"bu_schluessel,omitempty"`
	Category     *string `gorm:"size:100;index" json:"category,omitempty"`
}

func (l *LineItem) BeforeCreate(_ *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
