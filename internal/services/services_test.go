package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/invoice-analytics/internal/cache"
	"github.com/diewo77/invoice-analytics/internal/db"
	"github.com/diewo77/invoice-analytics/internal/models"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dayPtr(s string) *time.Time {
	t := day(s)
	return &t
}

func strPtr(s string) *string { return &s }

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Migrate(gdb, false, ""); err != nil {
		t.Fatal(err)
	}
	return gdb
}

// seed writes three vendors (one without invoices), one customer and five
// invoices spanning December 2024 to June 2025. One invoice is a credit.
func seed(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	vendors := []models.Vendor{
		{ID: "v-acme", Name: "ACME GmbH", TaxID: "DE1"},
		{ID: "v-beta", Name: "Beta Supplies", TaxID: "DE2"},
		{ID: "v-gamma", Name: "Gamma Idle"},
	}
	customer := models.Customer{ID: "c-1", Name: "Flowbit AG"}
	invoices := []models.Invoice{
		{ID: "i1", InvoiceNumber: "INV-100", VendorID: "v-acme", InvoiceDate: day("2025-01-10"), InvoiceTotal: -200, Status: models.InvoiceStatusProcessed, DueDate: dayPtr("2025-02-10")},
		{ID: "i2", InvoiceNumber: "INV-101", VendorID: "v-acme", InvoiceDate: day("2025-05-20"), InvoiceTotal: 300, Status: models.InvoiceStatusPending},
		{ID: "i3", InvoiceNumber: "INV-200", VendorID: "v-beta", InvoiceDate: day("2025-05-25"), InvoiceTotal: 150.5, Status: models.InvoiceStatusRejected},
		{ID: "i4", InvoiceNumber: "INV-300", VendorID: "v-beta", InvoiceDate: day("2024-12-05"), InvoiceTotal: 1000, Status: models.InvoiceStatusProcessed, DueDate: dayPtr("2025-01-05")},
		{ID: "i5", InvoiceNumber: "50%_OFF", VendorID: "v-beta", InvoiceDate: day("2025-06-01"), InvoiceTotal: 10, Status: models.InvoiceStatusProcessed, DueDate: dayPtr("2025-02-10")},
	}
	items := []models.LineItem{
		{InvoiceID: "i1", Description: "Consulting", TotalPrice: -50, Category: strPtr("Services")},
		{InvoiceID: "i1", Description: "Cable", TotalPrice: 20, Category: strPtr("Materials")},
		{InvoiceID: "i2", Description: "Support", TotalPrice: 30, Category: strPtr("Services")},
		{InvoiceID: "i2", Description: "Unclassified", TotalPrice: 999},
	}

	if err := gdb.Create(&vendors).Error; err != nil {
		t.Fatal(err)
	}
	if err := gdb.Create(&customer).Error; err != nil {
		t.Fatal(err)
	}
	for i := range invoices {
		doc := models.Document{ID: "doc-" + invoices[i].ID, Name: invoices[i].InvoiceNumber + ".pdf", Status: invoices[i].Status}
		if err := gdb.Create(&doc).Error; err != nil {
			t.Fatal(err)
		}
		invoices[i].DocumentID = doc.ID
		invoices[i].CustomerID = customer.ID
	}
	if err := gdb.Create(&invoices).Error; err != nil {
		t.Fatal(err)
	}
	if err := gdb.Create(&items).Error; err != nil {
		t.Fatal(err)
	}
}

func newAnalytics(t *testing.T, opts ...AnalyticsOption) (*AnalyticsService, *gorm.DB) {
	t.Helper()
	gdb := openTestDB(t)
	seed(t, gdb)
	return NewAnalyticsService(gdb, append([]AnalyticsOption{WithClock(clock)}, opts...)...), gdb
}

func TestAnalytics_Stats(t *testing.T) {
	svc, _ := newAnalytics(t)

	st, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := Stats{TotalSpend: 660.5, TotalInvoices: 4, DocumentsUploaded: 5, AverageInvoiceValue: 332.1}
	if *st != want {
		t.Errorf("Stats() = %+v, want %+v", *st, want)
	}
}

func TestAnalytics_StatsEmptyStore(t *testing.T) {
	svc := NewAnalyticsService(openTestDB(t), WithClock(clock))

	st, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if *st != (Stats{}) {
		t.Errorf("Stats() on empty store = %+v, want zero values", *st)
	}
}

// Year to date starts on January 1st UTC whatever the clock's zone.
func TestAnalytics_StatsYearStartInUTC(t *testing.T) {
	gdb := openTestDB(t)
	seed(t, gdb)
	doc := models.Document{ID: "doc-newyear", Name: "newyear.pdf"}
	if err := gdb.Create(&doc).Error; err != nil {
		t.Fatal(err)
	}
	inv := models.Invoice{
		ID: "i-newyear", InvoiceNumber: "INV-NY", DocumentID: doc.ID, VendorID: "v-acme", CustomerID: "c-1",
		InvoiceDate: day("2025-01-01"), InvoiceTotal: 100, Status: models.InvoiceStatusProcessed,
	}
	if err := gdb.Create(&inv).Error; err != nil {
		t.Fatal(err)
	}

	east := time.FixedZone("UTC+5", 5*60*60)
	svc := NewAnalyticsService(gdb, WithClock(func() time.Time { return fixedNow.In(east) }))
	st, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.TotalInvoices != 5 || st.TotalSpend != 760.5 {
		t.Errorf("Stats() = %+v, want 5 invoices and 760.5 year to date", *st)
	}
}

func TestAnalytics_InvoiceTrends(t *testing.T) {
	svc, _ := newAnalytics(t)

	got, err := svc.InvoiceTrends(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []TrendPoint{
		{Month: "2024-12", Count: 1, Total: 1000},
		{Month: "2025-01", Count: 1, Total: 200},
		{Month: "2025-05", Count: 2, Total: 450.5},
		{Month: "2025-06", Count: 1, Total: 10},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d months, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("month %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestAnalytics_TopVendors(t *testing.T) {
	svc, _ := newAnalytics(t)

	got, err := svc.TopVendors(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []VendorSpend{
		{ID: "v-beta", Name: "Beta Supplies", TotalSpend: 1160.5},
		{ID: "v-acme", Name: "ACME GmbH", TotalSpend: 500},
		{ID: "v-gamma", Name: "Gamma Idle", TotalSpend: 0},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("vendor %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestAnalytics_CategorySpend(t *testing.T) {
	svc, _ := newAnalytics(t)

	got, err := svc.CategorySpend(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []CategoryTotal{{Category: "Services", Total: 80}, {Category: "Materials", Total: 20}}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v (uncategorized items excluded)", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("category %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestAnalytics_CashOutflow(t *testing.T) {
	svc, _ := newAnalytics(t)

	got, err := svc.CashOutflow(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// The rejected invoice is excluded; i1 and i5 share a due date.
	want := []OutflowPoint{
		{Date: "2025-01-05", Amount: 1000},
		{Date: "2025-02-10", Amount: 210},
		{Date: "2025-05-20", Amount: 300},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("point %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestAnalytics_EmptyAggregatesAreNotNil(t *testing.T) {
	svc := NewAnalyticsService(openTestDB(t))
	ctx := context.Background()

	trends, err := svc.InvoiceTrends(ctx)
	if err != nil || trends == nil {
		t.Errorf("InvoiceTrends() = %v, %v; want empty slice", trends, err)
	}
	vendors, err := svc.TopVendors(ctx)
	if err != nil || vendors == nil {
		t.Errorf("TopVendors() = %v, %v; want empty slice", vendors, err)
	}
	outflow, err := svc.CashOutflow(ctx)
	if err != nil || outflow == nil {
		t.Errorf("CashOutflow() = %v, %v; want empty slice", outflow, err)
	}
}

func TestAnalytics_CacheAndInvalidate(t *testing.T) {
	c := cache.NewLRUCache[any](16, time.Hour)
	svc, gdb := newAnalytics(t, WithCache(c))
	ctx := context.Background()

	first, err := svc.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := gdb.Create(&models.Document{ID: "doc-extra", Name: "extra.pdf"}).Error; err != nil {
		t.Fatal(err)
	}

	cached, _ := svc.Stats(ctx)
	if cached.DocumentsUploaded != first.DocumentsUploaded {
		t.Errorf("expected cached stats, documents = %d", cached.DocumentsUploaded)
	}

	if n := svc.InvalidateCache(); n != 1 {
		t.Errorf("InvalidateCache() = %d, want 1", n)
	}
	fresh, _ := svc.Stats(ctx)
	if fresh.DocumentsUploaded != first.DocumentsUploaded+1 {
		t.Errorf("documents after invalidation = %d, want %d", fresh.DocumentsUploaded, first.DocumentsUploaded+1)
	}
}

func TestAnalytics_SharedLoadIgnoresCallerCancel(t *testing.T) {
	svc, gdb := newAnalytics(t, WithCache(cache.NewLRUCache[any](16, time.Hour)))

	started := make(chan struct{})
	var once sync.Once
	err := gdb.Callback().Row().Before("gorm:row").Register("test:slow_row", func(*gorm.DB) {
		once.Do(func() { close(started) })
		time.Sleep(100 * time.Millisecond)
	})
	if err != nil {
		t.Fatal(err)
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	errA := make(chan error, 1)
	go func() {
		_, err := svc.InvoiceTrends(ctxA)
		errA <- err
	}()

	<-started
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancelA()
	}()
	trends, err := svc.InvoiceTrends(context.Background())
	if err != nil {
		t.Fatalf("InvoiceTrends() for a caller that never cancelled: %v", err)
	}
	if len(trends) != 4 {
		t.Errorf("got %d trend points, want 4", len(trends))
	}
	if err := <-errA; err != nil {
		t.Errorf("first caller got %v; the shared load should not see its cancellation", err)
	}
}

func TestAnalytics_ListInvoices(t *testing.T) {
	svc, _ := newAnalytics(t)
	ctx := context.Background()

	page, err := svc.ListInvoices(ctx, InvoiceFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 5 || page.Limit != DefaultPageLimit || page.Offset != 0 {
		t.Errorf("page meta = total %d limit %d offset %d", page.Total, page.Limit, page.Offset)
	}
	wantOrder := []string{"50%_OFF", "INV-200", "INV-101", "INV-100", "INV-300"}
	for i, n := range wantOrder {
		if page.Data[i].InvoiceNumber != n {
			t.Errorf("row %d = %s, want %s", i, page.Data[i].InvoiceNumber, n)
		}
	}
	credit := page.Data[3]
	if credit.Amount != 200 || credit.VendorName != "ACME GmbH" || credit.CustomerName != "Flowbit AG" {
		t.Errorf("credit row = %+v", credit)
	}
	if credit.DueDate == nil || !credit.DueDate.Equal(day("2025-02-10")) {
		t.Errorf("due date = %v", credit.DueDate)
	}
}

func TestAnalytics_ListInvoicesFilters(t *testing.T) {
	svc, _ := newAnalytics(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter InvoiceFilter
		total  int64
		first  string
		rows   int
	}{
		{"vendor search is case-insensitive", InvoiceFilter{Search: "acme"}, 2, "INV-101", 2},
		{"invoice number search", InvoiceFilter{Search: "inv-2"}, 1, "INV-200", 1},
		{"percent is literal", InvoiceFilter{Search: "%"}, 1, "50%_OFF", 1},
		{"underscore is literal", InvoiceFilter{Search: "_"}, 1, "50%_OFF", 1},
		{"status", InvoiceFilter{Status: "processed"}, 3, "50%_OFF", 3},
		{"pagination", InvoiceFilter{Limit: 2, Offset: 1}, 5, "INV-200", 2},
		{"offset past the end", InvoiceFilter{Offset: 50}, 5, "", 0},
	}

	for _, tt := range tests {
		page, err := svc.ListInvoices(ctx, tt.filter)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if page.Total != tt.total || len(page.Data) != tt.rows {
			t.Errorf("%s: total %d rows %d, want %d/%d", tt.name, page.Total, len(page.Data), tt.total, tt.rows)
			continue
		}
		if tt.rows > 0 && page.Data[0].InvoiceNumber != tt.first {
			t.Errorf("%s: first row %s, want %s", tt.name, page.Data[0].InvoiceNumber, tt.first)
		}
	}
}

func TestAnalytics_ListInvoicesInvalidFilter(t *testing.T) {
	svc, _ := newAnalytics(t)

	_, err := svc.ListInvoices(context.Background(), InvoiceFilter{Limit: MaxPageLimit + 1, Offset: -1})
	if !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
	var fe *FilterError
	if !errors.As(err, &fe) {
		t.Fatal("expected *FilterError")
	}
	if fe.Violations["limit"] != "out_of_range" || fe.Violations["offset"] != "must_not_be_negative" {
		t.Errorf("violations = %v", fe.Violations)
	}
}

func TestAnalytics_ExportInvoicesIgnoresPagination(t *testing.T) {
	svc, _ := newAnalytics(t)

	rows, err := svc.ExportInvoices(context.Background(), InvoiceFilter{Search: "beta", Limit: 1, Offset: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("exported %d rows, want 3", len(rows))
	}
	rec := rows[0].Record()
	for _, col := range InvoiceColumns {
		if _, ok := rec[col]; !ok {
			t.Errorf("record misses column %q", col)
		}
	}
}

func TestLikePattern(t *testing.T) {
	tests := map[string]string{
		"acme":   "%acme%",
		"50%":    `%50\%%`,
		"a_b":    `%a\_b%`,
		`back\s`: `%back\\s%`,
	}
	for in, want := range tests {
		if got := likePattern(in); got != want {
			t.Errorf("likePattern(%q) = %q, want %q", in, got, want)
		}
	}
}
