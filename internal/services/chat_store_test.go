package services

import (
	"context"
	"testing"

	"github.com/diewo77/invoice-analytics/internal/chat"
)

func newChatStore(t *testing.T) *ChatStore {
	t.Helper()
	gdb := openTestDB(t)
	seed(t, gdb)
	return NewChatStore(gdb).WithClock(clock)
}

func runQuery(t *testing.T, s *ChatStore, query string) []chat.Row {
	t.Helper()
	rows, err := s.Run(context.Background(), chat.Classify(query))
	if err != nil {
		t.Fatalf("Run(%q): %v", query, err)
	}
	return rows
}

func TestChatStore_VendorTotals(t *testing.T) {
	rows := runQuery(t, newChatStore(t), "total spend per vendor")
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (vendors without invoices are not listed)", len(rows))
	}
	if rows[0]["vendor"] != "Beta Supplies" || rows[0]["total_amount"] != 1160.5 || rows[0]["invoice_count"] != int64(3) {
		t.Errorf("first row = %v", rows[0])
	}
	if rows[1]["vendor"] != "ACME GmbH" || rows[1]["total_amount"] != 500.0 {
		t.Errorf("credit not counted as absolute value: %v", rows[1])
	}
}

func TestChatStore_TopVendors(t *testing.T) {
	s := newChatStore(t)

	rows := runQuery(t, s, "top 1 vendors")
	if len(rows) != 1 || rows[0]["vendor"] != "Beta Supplies" || rows[0]["total_spend"] != 1160.5 {
		t.Errorf("rows = %v", rows)
	}
	if rows := runQuery(t, s, "top 0 suppliers"); len(rows) != 0 {
		t.Errorf("limit 0 returned %d rows", len(rows))
	}
}

func TestChatStore_LargestInvoices(t *testing.T) {
	rows := runQuery(t, newChatStore(t), "show the 2 largest invoices")
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0]["invoice_number"] != "INV-300" || rows[0]["amount"] != 1000.0 || rows[0]["customer"] != "Flowbit AG" {
		t.Errorf("first row = %v", rows[0])
	}
	if rows[1]["invoice_number"] != "INV-101" || rows[1]["date"] != "2025-05-20" {
		t.Errorf("second row = %v", rows[1])
	}
}

func TestChatStore_CategorySpend(t *testing.T) {
	rows := runQuery(t, newChatStore(t), "spend by category")
	if len(rows) != 2 {
		t.Fatalf("got %v", rows)
	}
	if rows[0]["category"] != "Services" || rows[0]["item_count"] != int64(2) || rows[0]["total_amount"] != 80.0 {
		t.Errorf("first row = %v", rows[0])
	}
}

func TestChatStore_MonthlyTotals(t *testing.T) {
	rows := runQuery(t, newChatStore(t), "monthly spend")
	if len(rows) != 4 {
		t.Fatalf("got %d months", len(rows))
	}
	if rows[0]["month"] != "2025-06" || rows[3]["month"] != "2024-12" {
		t.Errorf("months not newest first: %v ... %v", rows[0], rows[3])
	}
	if rows[1]["invoice_count"] != int64(2) || rows[1]["total_amount"] != 450.5 {
		t.Errorf("May = %v", rows[1])
	}
}

func TestChatStore_Trailing90Days(t *testing.T) {
	rows := runQuery(t, newChatStore(t), "what did we spend in the last 90 days")
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want exactly 1", len(rows))
	}
	if rows[0]["total_spend"] != 460.5 || rows[0]["invoice_count"] != int64(3) {
		t.Errorf("row = %v", rows[0])
	}
}

func TestChatStore_Trailing90DaysEmptyWindow(t *testing.T) {
	s := NewChatStore(openTestDB(t)).WithClock(clock)
	rows := runQuery(t, s, "last 90 days")
	if len(rows) != 1 || rows[0]["total_spend"] != 0.0 || rows[0]["invoice_count"] != int64(0) {
		t.Errorf("rows = %v", rows)
	}
}

func TestChatStore_RecentInvoicesFallback(t *testing.T) {
	rows := runQuery(t, newChatStore(t), "hello there")
	if len(rows) != 5 {
		t.Fatalf("got %d rows", len(rows))
	}
	first := rows[0]
	if first["invoice_number"] != "50%_OFF" || first["status"] != "processed" || first["vendor"] != "Beta Supplies" {
		t.Errorf("first row = %v", first)
	}
}

func TestChatStore_UnknownIntent(t *testing.T) {
	s := NewChatStore(openTestDB(t))
	if _, err := s.Run(context.Background(), chat.Plan{Intent: "nope"}); err == nil {
		t.Fatal("expected error for unknown intent")
	}
}
