package chat

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Intent names a canned aggregate the dispatcher can answer with.
type Intent string

const (
	IntentVendorTotals    Intent = "vendor_totals"
	IntentTopVendors      Intent = "top_vendors"
	IntentLargestInvoices Intent = "largest_invoices"
	IntentCategorySpend   Intent = "category_spend"
	IntentMonthlyTotals   Intent = "monthly_totals"
	IntentTrailing90Days  Intent = "trailing_90_days"
	IntentRecentInvoices  Intent = "recent_invoices"
)

const (
	defaultLimit = 10
	recentLimit  = 20
	// MaxLimit caps the row count a query can ask for.
	MaxLimit = 1000
)

// Plan is the outcome of classifying a query. It carries everything the
// store needs to answer it and the SQL text shown to the user.
type Plan struct {
	Intent  Intent
	Limit   int
	SQL     string
	Columns []string
}

type rule struct {
	intent   Intent
	match    func(q string) bool
	template string
	// limit is the default row limit; zero means the template takes none.
	limit   int
	columns []string
}

// rules are evaluated top-down and the first match wins.
// Overlapping keywords are resolved by position only.
var rules = []rule{
	{
		intent:   IntentVendorTotals,
		match:    func(q string) bool { return has(q, "total") && hasAny(q, "vendor", "supplier") },
		template: "SELECT vendor, COUNT(*), SUM(ABS(invoiceTotal)) FROM Invoice JOIN Vendor GROUP BY vendor ORDER BY SUM(ABS(invoiceTotal)) DESC",
		columns:  []string{"vendor", "invoice_count", "total_amount"},
	},
	{
		intent:   IntentTopVendors,
		match:    func(q string) bool { return has(q, "top") && hasAny(q, "vendor", "supplier") },
		template: "SELECT vendor, SUM(ABS(invoiceTotal)), COUNT(*) FROM Invoice JOIN Vendor GROUP BY vendor ORDER BY SUM(ABS(invoiceTotal)) DESC LIMIT %d",
		limit:    defaultLimit,
		columns:  []string{"vendor", "total_spend", "invoice_count"},
	},
	{
		intent:   IntentLargestInvoices,
		match:    func(q string) bool { return hasAny(q, "expensive", "highest", "largest") },
		template: "SELECT * FROM Invoice ORDER BY ABS(invoiceTotal) DESC LIMIT %d",
		limit:    defaultLimit,
		columns:  []string{"invoice_number", "vendor", "customer", "amount", "date"},
	},
	{
		intent:   IntentCategorySpend,
		match:    func(q string) bool { return hasAny(q, "category", "categories") },
		template: "SELECT category, COUNT(*), SUM(ABS(totalPrice)) FROM LineItem WHERE category IS NOT NULL GROUP BY category ORDER BY SUM(ABS(totalPrice)) DESC",
		columns:  []string{"category", "item_count", "total_amount"},
	},
	{
		intent:   IntentMonthlyTotals,
		match:    func(q string) bool { return hasAny(q, "month", "monthly") },
		template: "SELECT month, COUNT(*), SUM(ABS(invoiceTotal)) FROM Invoice GROUP BY month ORDER BY month DESC",
		columns:  []string{"month", "invoice_count", "total_amount"},
	},
	{
		intent:   IntentTrailing90Days,
		match:    func(q string) bool { return hasAny(q, "90 days", "last 90") },
		template: "SELECT SUM(ABS(invoiceTotal)), COUNT(*) FROM Invoice WHERE invoiceDate >= NOW() - INTERVAL '90 days'",
		columns:  []string{"total_spend", "invoice_count"},
	},
}

// fallback answers every query no rule matched.
var fallback = rule{
	intent:   IntentRecentInvoices,
	template: "SELECT * FROM Invoice ORDER BY invoiceDate DESC LIMIT %d",
	limit:    recentLimit,
	columns:  []string{"invoice_number", "vendor", "amount", "date", "status"},
}

// Classify maps a query to a Plan. It does no I/O.
func Classify(query string) Plan {
	q := strings.ToLower(query)
	for _, r := range rules {
		if r.match(q) {
			return r.plan(q)
		}
	}
	return fallback.plan(q)
}

func (r rule) plan(q string) Plan {
	p := Plan{
		Intent:  r.intent,
		SQL:     r.template,
		Columns: append([]string(nil), r.columns...),
	}
	if r.limit > 0 {
		p.Limit = r.limit
		if r.intent != IntentRecentInvoices {
			p.Limit = ExtractLimit(q, r.limit)
		}
		p.SQL = fmt.Sprintf(r.template, p.Limit)
	}
	return p
}

var digits = regexp.MustCompile(`[0-9]+`)

// ExtractLimit returns the first run of decimal digits in q, or def when
// there is none or it does not fit an int. Values above MaxLimit are capped.
func ExtractLimit(q string, def int) int {
	m := digits.FindString(q)
	if m == "" {
		return def
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return def
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

func has(q, sub string) bool { return strings.Contains(q, sub) }

func hasAny(q string, subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(q, s) {
			return true
		}
	}
	return false
}
