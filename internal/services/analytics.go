// Package services holds the read-side queries behind the dashboard and the
// chat endpoint.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/diewo77/invoice-analytics/internal/cache"
	applog "github.com/diewo77/invoice-analytics/internal/log"
	"github.com/diewo77/invoice-analytics/internal/models"
	"github.com/diewo77/invoice-analytics/internal/money"
	"github.com/diewo77/invoice-analytics/validation"
)

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 500
	// MaxExportRows caps an invoice export.
	MaxExportRows = 10000

	topVendorsLimit  = 10
	aggregateTimeout = 30 * time.Second
)

// ErrInvalidFilter matches every *FilterError.
var ErrInvalidFilter = errors.New("services: invalid filter")

// FilterError lists the invalid listing parameters.
type FilterError struct {
	Violations validation.Violations
}

func (e *FilterError) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for f, v := range e.Violations {
		fields = append(fields, f+": "+v)
	}
	sort.Strings(fields)
	return "invalid filter: " + strings.Join(fields, ", ")
}

func (e *FilterError) Is(target error) bool { return target == ErrInvalidFilter }

// Stats are the overview cards of the dashboard.
type Stats struct {
	TotalSpend          float64 `json:"totalSpend"`
	TotalInvoices       int64   `json:"totalInvoices"`
	DocumentsUploaded   int64   `json:"documentsUploaded"`
	AverageInvoiceValue float64 `json:"averageInvoiceValue"`
}

type TrendPoint struct {
	Month string  `json:"month"`
	Count int64   `json:"count"`
	Total float64 `json:"total"`
}

type VendorSpend struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	TotalSpend float64 `json:"totalSpend"`
}

type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

type OutflowPoint struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

// InvoiceFilter selects a page of the invoice listing.
type InvoiceFilter struct {
	Search string
	Status string
	Limit  int
	Offset int
}

// Validate fills defaults and reports invalid pagination.
func (f *InvoiceFilter) Validate() validation.Violations {
	v := validation.Violations{}
	if f.Limit == 0 {
		f.Limit = DefaultPageLimit
	}
	validation.RangeInt("limit", f.Limit, 1, MaxPageLimit, v)
	if f.Offset < 0 {
		v["offset"] = "must_not_be_negative"
	}
	return v
}

// InvoiceRow is one line of the invoice listing.
type InvoiceRow struct {
	ID            string     `json:"id"`
	InvoiceNumber string     `json:"invoiceNumber"`
	InvoiceDate   time.Time  `json:"invoiceDate"`
	VendorName    string     `json:"vendorName"`
	CustomerName  string     `json:"customerName"`
	Amount        float64    `json:"amount"`
	Status        string     `json:"status"`
	DueDate       *time.Time `json:"dueDate"`
}

// InvoiceColumns is the export column order for InvoiceRow.Record.
var InvoiceColumns = []string{
	"invoiceNumber", "invoiceDate", "vendorName", "customerName", "amount", "status", "dueDate",
}

// Record returns the row keyed by InvoiceColumns.
func (r InvoiceRow) Record() map[string]any {
	var due any
	if r.DueDate != nil {
		due = *r.DueDate
	}
	return map[string]any{
		"invoiceNumber": r.InvoiceNumber,
		"invoiceDate":   r.InvoiceDate,
		"vendorName":    r.VendorName,
		"customerName":  r.CustomerName,
		"amount":        r.Amount,
		"status":        r.Status,
		"dueDate":       due,
	}
}

type InvoicePage struct {
	Data   []InvoiceRow `json:"data"`
	Total  int64        `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// AnalyticsService computes the dashboard aggregates. Aggregates are cached;
// the invoice listing is not.
type AnalyticsService struct {
	db    *gorm.DB
	cache *cache.LRUCache[any]
	now   func() time.Time
	log   *applog.Logger
}

// AnalyticsOption configures an AnalyticsService.
type AnalyticsOption func(*AnalyticsService)

// WithCache caches aggregates in c.
func WithCache(c *cache.LRUCache[any]) AnalyticsOption {
	return func(s *AnalyticsService) { s.cache = c }
}

// WithClock sets the evaluation clock used for year-to-date figures.
func WithClock(now func() time.Time) AnalyticsOption {
	return func(s *AnalyticsService) { s.now = now }
}

func WithLogger(l *applog.Logger) AnalyticsOption {
	return func(s *AnalyticsService) { s.log = l }
}

func NewAnalyticsService(db *gorm.DB, opts ...AnalyticsOption) *AnalyticsService {
	s := &AnalyticsService{db: db, now: time.Now, log: applog.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithComponent(applog.ComponentAnalytics)
	return s
}

// InvalidateCache drops every cached aggregate and returns how many were dropped.
func (s *AnalyticsService) InvalidateCache() int {
	if s.cache == nil {
		return 0
	}
	return s.cache.Purge()
}

// cached returns the value stored under key or computes it with load.
// A cached load is shared by concurrent callers: it ignores the caller's
// cancellation and is bounded by aggregateTimeout.
func cached[T any](ctx context.Context, s *AnalyticsService, key string, load func(context.Context) (T, error)) (T, error) {
	if s.cache == nil {
		return load(ctx)
	}
	v, err := s.cache.GetOrLoad(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), aggregateTimeout)
		defer cancel()
		return load(lctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Stats returns year-to-date spend and invoice count, the lifetime document
// count and the average invoice value. The four reads run concurrently.
func (s *AnalyticsService) Stats(ctx context.Context) (*Stats, error) {
	now := s.now().UTC()
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	key := fmt.Sprintf("stats:%d", now.Year())

	return cached(ctx, s, key, func(ctx context.Context) (*Stats, error) {
		var st Stats
		g, gctx := errgroup.WithContext(ctx)
		db := s.db.WithContext(gctx)

		g.Go(func() error {
			var total float64
			err := db.Model(&models.Invoice{}).
				Where("invoice_date >= ?", yearStart).
				Select("COALESCE(SUM(ABS(invoice_total)), 0)").
				Scan(&total).Error
			st.TotalSpend = money.Round(total)
			return err
		})
		g.Go(func() error {
			return db.Model(&models.Invoice{}).
				Where("invoice_date >= ?", yearStart).
				Count(&st.TotalInvoices).Error
		})
		g.Go(func() error {
			return db.Model(&models.Document{}).Count(&st.DocumentsUploaded).Error
		})
		g.Go(func() error {
			var avg float64
			err := db.Model(&models.Invoice{}).
				Select("COALESCE(AVG(ABS(invoice_total)), 0)").
				Scan(&avg).Error
			st.AverageInvoiceValue = money.Round(avg)
			return err
		})

		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
		return &st, nil
	})
}

// InvoiceTrends returns invoice count and spend per calendar month, oldest first.
func (s *AnalyticsService) InvoiceTrends(ctx context.Context) ([]TrendPoint, error) {
	return cached(ctx, s, "invoice-trends", func(ctx context.Context) ([]TrendPoint, error) {
		month := monthKey(s.db, "invoice_date")
		var rows []TrendPoint
		err := s.db.WithContext(ctx).Model(&models.Invoice{}).
			Select(month + " AS month, COUNT(*) AS count, COALESCE(SUM(ABS(invoice_total)), 0) AS total").
			Group(month).
			Order("month ASC").
			Scan(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("invoice trends: %w", err)
		}
		for i := range rows {
			rows[i].Total = money.Round(rows[i].Total)
		}
		return nonNil(rows), nil
	})
}

// TopVendors returns the ten vendors with the highest spend. Vendors without
// invoices count as zero.
func (s *AnalyticsService) TopVendors(ctx context.Context) ([]VendorSpend, error) {
	return cached(ctx, s, "top-vendors", func(ctx context.Context) ([]VendorSpend, error) {
		var rows []VendorSpend
		err := s.db.WithContext(ctx).Table("vendors").
			Select("vendors.id AS id, vendors.name AS name, COALESCE(SUM(ABS(invoices.invoice_total)), 0) AS total_spend").
			Joins("LEFT JOIN invoices ON invoices.vendor_id = vendors.id").
			Group("vendors.id, vendors.name").
			Order("total_spend DESC, vendors.name ASC").
			Limit(topVendorsLimit).
			Scan(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("top vendors: %w", err)
		}
		for i := range rows {
			rows[i].TotalSpend = money.Round(rows[i].TotalSpend)
		}
		return nonNil(rows), nil
	})
}

// CategorySpend returns line-item spend per category, highest first.
func (s *AnalyticsService) CategorySpend(ctx context.Context) ([]CategoryTotal, error) {
	return cached(ctx, s, "category-spend", func(ctx context.Context) ([]CategoryTotal, error) {
		var rows []CategoryTotal
		err := s.db.WithContext(ctx).Model(&models.LineItem{}).
			Select("category, COALESCE(SUM(ABS(total_price)), 0) AS total").
			Where("category IS NOT NULL").
			Group("category").
			Order("total DESC, category ASC").
			Scan(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("category spend: %w", err)
		}
		for i := range rows {
			rows[i].Total = money.Round(rows[i].Total)
		}
		return nonNil(rows), nil
	})
}

// CashOutflow returns the expected payments per day for invoices that are
// still outstanding, bucketed by due date or, without one, invoice date.
func (s *AnalyticsService) CashOutflow(ctx context.Context) ([]OutflowPoint, error) {
	return cached(ctx, s, "cash-outflow", func(ctx context.Context) ([]OutflowPoint, error) {
		var invoices []models.Invoice
		err := s.db.WithContext(ctx).
			Select("id", "invoice_date", "due_date", "invoice_total", "status").
			Where("status IN ?", models.OutstandingStatuses).
			Find(&invoices).Error
		if err != nil {
			return nil, fmt.Errorf("cash outflow: %w", err)
		}

		byDay := map[string]*money.Accumulator{}
		for i := range invoices {
			inv := &invoices[i]
			if !inv.IsOutstanding() {
				continue
			}
			day := inv.OutflowDate().UTC().Format(time.DateOnly)
			acc, ok := byDay[day]
			if !ok {
				acc = &money.Accumulator{}
				byDay[day] = acc
			}
			acc.Add(inv.InvoiceTotal)
		}

		points := make([]OutflowPoint, 0, len(byDay))
		for day, acc := range byDay {
			points = append(points, OutflowPoint{Date: day, Amount: acc.Total()})
		}
		sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
		return points, nil
	})
}

// ListInvoices returns one page of invoices, newest first.
func (s *AnalyticsService) ListInvoices(ctx context.Context, f InvoiceFilter) (*InvoicePage, error) {
	if v := f.Validate(); !v.Empty() {
		return nil, &FilterError{Violations: v}
	}

	var total int64
	if err := s.invoiceQuery(ctx, f).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count invoices: %w", err)
	}
	rows, err := s.invoiceRows(ctx, f, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	return &InvoicePage{Data: rows, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// ExportInvoices returns every invoice matching the filter's search and
// status, newest first, up to MaxExportRows. Pagination is ignored.
func (s *AnalyticsService) ExportInvoices(ctx context.Context, f InvoiceFilter) ([]InvoiceRow, error) {
	return s.invoiceRows(ctx, f, MaxExportRows, 0)
}

func (s *AnalyticsService) invoiceQuery(ctx context.Context, f InvoiceFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Invoice{}).
		Joins("LEFT JOIN vendors ON vendors.id = invoices.vendor_id")
	if search := strings.TrimSpace(f.Search); search != "" {
		pat := likePattern(strings.ToLower(search))
		q = q.Where(`LOWER(invoices.invoice_number) LIKE ? ESCAPE '\' OR LOWER(vendors.name) LIKE ? ESCAPE '\'`, pat, pat)
	}
	if status := strings.TrimSpace(f.Status); status != "" {
		q = q.Where("invoices.status = ?", status)
	}
	return q
}

func (s *AnalyticsService) invoiceRows(ctx context.Context, f InvoiceFilter, limit, offset int) ([]InvoiceRow, error) {
	var invoices []models.Invoice
	err := s.invoiceQuery(ctx, f).
		Preload("Vendor").
		Preload("Customer").
		Order("invoices.invoice_date DESC").
		Order("invoices.id ASC").
		Limit(limit).
		Offset(offset).
		Find(&invoices).Error
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}

	rows := make([]InvoiceRow, 0, len(invoices))
	for i := range invoices {
		inv := &invoices[i]
		rows = append(rows, InvoiceRow{
			ID:            inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			InvoiceDate:   inv.InvoiceDate,
			VendorName:    vendorName(inv),
			CustomerName:  customerName(inv),
			Amount:        money.Abs(inv.InvoiceTotal),
			Status:        inv.Status,
			DueDate:       inv.DueDate,
		})
	}
	return rows, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Refresh drops the cached aggregates and computes them again.
func (s *AnalyticsService) Refresh(ctx context.Context) error {
	dropped := s.InvalidateCache()
	_, err := s.Stats(ctx)
	if err == nil {
		_, err = s.InvoiceTrends(ctx)
	}
	if err == nil {
		_, err = s.TopVendors(ctx)
	}
	if err == nil {
		_, err = s.CategorySpend(ctx)
	}
	if err == nil {
		_, err = s.CashOutflow(ctx)
	}
	if err != nil {
		return fmt.Errorf("refresh aggregates: %w", err)
	}
	s.log.Debug("aggregates refreshed", applog.FieldOperation, applog.OpRefresh, "dropped", dropped)
	return nil
}
