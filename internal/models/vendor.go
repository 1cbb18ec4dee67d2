package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Vendor is a supplier issuing invoices.
// A vendor is unique by (name, tax id); a missing tax id is stored as "".
type Vendor struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name        string `gorm:"size:255;not null;uniqueIndex:idx_vendor_name_tax" json:"name"`
	TaxID       string `gorm:"size:50;not null;default:'';uniqueIndex:idx_vendor_name_tax" json:"tax_id,omitempty"`
	PartyNumber string `gorm:"size:100" json:"party_number,omitempty"`
	Address     string `gorm:"type:text" json:"address,omitempty"`

	Invoices []Invoice `gorm:"foreignKey:VendorID" json:"invoices,omitempty"`
}

func (v *Vendor) BeforeCreate(_ *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

// Customer is the billed party of an invoice.
type Customer struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name    string `gorm:"size:255;not null;index" json:"name"`
	Address string `gorm:"type:text" json:"address,omitempty"`

	Invoices []Invoice `gorm:"foreignKey:CustomerID" json:"invoices,omitempty"`
}

func (c *Customer) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
