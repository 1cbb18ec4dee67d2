package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/invoice-analytics/internal/chat"
	"github.com/diewo77/invoice-analytics/internal/models"
	"github.com/diewo77/invoice-analytics/internal/money"
)

const trailingWindow = 90 * 24 * time.Hour

// ChatStore answers classified chat queries against the relational store.
type ChatStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewChatStore(db *gorm.DB) *ChatStore {
	return &ChatStore{db: db, now: time.Now}
}

// WithClock sets the clock the trailing window is measured from.
func (s *ChatStore) WithClock(now func() time.Time) *ChatStore {
	s.now = now
	return s
}

// Run executes the aggregate named by plan.Intent.
func (s *ChatStore) Run(ctx context.Context, plan chat.Plan) ([]chat.Row, error) {
	db := s.db.WithContext(ctx)
	switch plan.Intent {
	case chat.IntentVendorTotals:
		return s.vendorTotals(db)
	case chat.IntentTopVendors:
		return s.topVendors(db, plan.Limit)
	case chat.IntentLargestInvoices:
		return s.largestInvoices(db, plan.Limit)
	case chat.IntentCategorySpend:
		return s.categorySpend(db)
	case chat.IntentMonthlyTotals:
		return s.monthlyTotals(db)
	case chat.IntentTrailing90Days:
		return s.trailing(db)
	case chat.IntentRecentInvoices:
		return s.recentInvoices(db, plan.Limit)
	default:
		return nil, fmt.Errorf("unknown intent %q", plan.Intent)
	}
}

type groupTotal struct {
	Label string
	Count int64
	Total float64
}

func vendorGroups(db *gorm.DB) *gorm.DB {
	return db.Table("invoices").
		Select("vendors.name AS label, COUNT(invoices.id) AS count, COALESCE(SUM(ABS(invoices.invoice_total)), 0) AS total").
		Joins("JOIN vendors ON vendors.id = invoices.vendor_id").
		Group("vendors.name").
		Order("total DESC, vendors.name ASC")
}

func (s *ChatStore) vendorTotals(db *gorm.DB) ([]chat.Row, error) {
	var groups []groupTotal
	if err := vendorGroups(db).Scan(&groups).Error; err != nil {
		return nil, err
	}
	rows := make([]chat.Row, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, chat.Row{"vendor": g.Label, "invoice_count": g.Count, "total_amount": money.Round(g.Total)})
	}
	return rows, nil
}

// topVendors returns no rows for a limit of zero.
func (s *ChatStore) topVendors(db *gorm.DB, limit int) ([]chat.Row, error) {
	if limit <= 0 {
		return []chat.Row{}, nil
	}
	var groups []groupTotal
	if err := vendorGroups(db).Limit(limit).Scan(&groups).Error; err != nil {
		return nil, err
	}
	rows := make([]chat.Row, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, chat.Row{"vendor": g.Label, "total_spend": money.Round(g.Total), "invoice_count": g.Count})
	}
	return rows, nil
}

func (s *ChatStore) largestInvoices(db *gorm.DB, limit int) ([]chat.Row, error) {
	if limit <= 0 {
		return []chat.Row{}, nil
	}
	var invoices []models.Invoice
	err := db.Preload("Vendor").Preload("Customer").
		Order("ABS(invoice_total) DESC").
		Order("invoice_date DESC").
		Limit(limit).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	rows := make([]chat.Row, 0, len(invoices))
	for i := range invoices {
		inv := &invoices[i]
		rows = append(rows, chat.Row{
			"invoice_number": inv.InvoiceNumber,
			"vendor":         vendorName(inv),
			"customer":       customerName(inv),
			"amount":         money.Abs(inv.InvoiceTotal),
			"date":           inv.InvoiceDate.UTC().Format(time.DateOnly),
		})
	}
	return rows, nil
}

func (s *ChatStore) categorySpend(db *gorm.DB) ([]chat.Row, error) {
	var groups []groupTotal
	err := db.Model(&models.LineItem{}).
		Select("category AS label, COUNT(*) AS count, COALESCE(SUM(ABS(total_price)), 0) AS total").
		Where("category IS NOT NULL").
		Group("category").
		Order("total DESC, category ASC").
		Scan(&groups).Error
	if err != nil {
		return nil, err
	}
	rows := make([]chat.Row, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, chat.Row{"category": g.Label, "item_count": g.Count, "total_amount": money.Round(g.Total)})
	}
	return rows, nil
}

func (s *ChatStore) monthlyTotals(db *gorm.DB) ([]chat.Row, error) {
	month := monthKey(db, "invoice_date")
	var groups []groupTotal
	err := db.Model(&models.Invoice{}).
		Select(month + " AS label, COUNT(*) AS count, COALESCE(SUM(ABS(invoice_total)), 0) AS total").
		Group(month).
		Order("label DESC").
		Scan(&groups).Error
	if err != nil {
		return nil, err
	}
	rows := make([]chat.Row, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, chat.Row{"month": g.Label, "invoice_count": g.Count, "total_amount": money.Round(g.Total)})
	}
	return rows, nil
}

// trailing always returns exactly one row; an empty window sums to zero.
func (s *ChatStore) trailing(db *gorm.DB) ([]chat.Row, error) {
	since := s.now().Add(-trailingWindow).UTC().Truncate(time.Second)
	var res struct {
		Count int64
		Total float64
	}
	err := db.Model(&models.Invoice{}).
		Select("COUNT(*) AS count, COALESCE(SUM(ABS(invoice_total)), 0) AS total").
		Where("invoice_date >= ?", since).
		Scan(&res).Error
	if err != nil {
		return nil, err
	}
	return []chat.Row{{"total_spend": money.Round(res.Total), "invoice_count": res.Count}}, nil
}

func (s *ChatStore) recentInvoices(db *gorm.DB, limit int) ([]chat.Row, error) {
	if limit <= 0 {
		return []chat.Row{}, nil
	}
	var invoices []models.Invoice
	err := db.Preload("Vendor").
		Order("invoice_date DESC").
		Order("invoice_number ASC").
		Limit(limit).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	rows := make([]chat.Row, 0, len(invoices))
	for i := range invoices {
		inv := &invoices[i]
		rows = append(rows, chat.Row{
			"invoice_number": inv.InvoiceNumber,
			"vendor":         vendorName(inv),
			"amount":         money.Abs(inv.InvoiceTotal),
			"date":           inv.InvoiceDate.UTC().Format(time.DateOnly),
			"status":         inv.Status,
		})
	}
	return rows, nil
}

func vendorName(inv *models.Invoice) string {
	if inv.Vendor == nil {
		return ""
	}
	return inv.Vendor.Name
}

func customerName(inv *models.Invoice) string {
	if inv.Customer == nil {
		return ""
	}
	return inv.Customer.Name
}
