package models

import (
	"testing"
	"time"
)

func TestInvoice_OutflowDate(t *testing.T) {
	issued := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	due := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	zero := time.Time{}

	tests := []struct {
		name    string
		invoice Invoice
		want    time.Time
	}{
		{"due date set", Invoice{InvoiceDate: issued, DueDate: &due}, due},
		{"no due date", Invoice{InvoiceDate: issued}, issued},
		{"zero due date", Invoice{InvoiceDate: issued, DueDate: &zero}, issued},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.invoice.OutflowDate(); !got.Equal(tt.want) {
				t.Errorf("OutflowDate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInvoice_IsOutstanding(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{InvoiceStatusProcessed, true},
		{InvoiceStatusPending, true},
		{InvoiceStatusRejected, false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			inv := &Invoice{Status: tt.status}
			if got := inv.IsOutstanding(); got != tt.want {
				t.Errorf("IsOutstanding() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBeforeCreate_AssignsIDs(t *testing.T) {
	v := &Vendor{Name: "ACME"}
	if err := v.BeforeCreate(nil); err != nil {
		t.Fatal(err)
	}
	if len(v.ID) != 36 {
		t.Errorf("vendor ID = %q, want a UUID", v.ID)
	}

	d := &Document{ID: "64f1c2aa9e0b1d2c3e4f5a6b"}
	if err := d.BeforeCreate(nil); err != nil {
		t.Fatal(err)
	}
	if d.ID != "64f1c2aa9e0b1d2c3e4f5a6b" {
		t.Errorf("document ID overwritten: %q", d.ID)
	}
}

func TestAll_ListsEveryModel(t *testing.T) {
	if got := len(All()); got != 6 {
		t.Errorf("All() returned %d models, want 6", got)
	}
}
