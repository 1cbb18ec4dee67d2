package db

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// exportDocument is one entry of the document-store JSON export.
type exportDocument struct {
	ID             oid        `json:"_id"`
	Name           string     `json:"name"`
	FilePath       string     `json:"filePath"`
	FileSize       numberLong `json:"fileSize"`
	FileType       string     `json:"fileType"`
	Status         string     `json:"status"`
	OrganizationID string     `json:"organizationId"`
	DepartmentID   string     `json:"departmentId"`
	UploadedByID   string     `json:"uploadedById"`
	CreatedAt      mongoDate  `json:"createdAt"`
	UpdatedAt      mongoDate  `json:"updatedAt"`
	ExtractedData  *struct {
		LLMData *llmData `json:"llmData"`
	} `json:"extractedData"`
}

func (d *exportDocument) llm() *llmData {
	if d.ExtractedData == nil {
		return nil
	}
	return d.ExtractedData.LLMData
}

// section is an extracted object wrapped as {"value": {...}}.
type section[T any] struct {
	Value *T `json:"value"`
}

func (s *section[T]) get() *T {
	if s == nil {
		return nil
	}
	return s.Value
}

type llmData struct {
	Invoice   *section[invoiceFields]  `json:"invoice"`
	Vendor    *section[vendorFields]   `json:"vendor"`
	Payment   *section[paymentFields]  `json:"payment"`
	Summary   *section[summaryFields]  `json:"summary"`
	Customer  *section[customerFields] `json:"customer"`
	LineItems *section[lineItemsField] `json:"lineItems"`
}

type invoiceFields struct {
	InvoiceID    *field `json:"invoiceId"`
	InvoiceDate  *field `json:"invoiceDate"`
	DeliveryDate *field `json:"deliveryDate"`
}

type vendorFields struct {
	VendorName        *field `json:"vendorName"`
	VendorTaxID       *field `json:"vendorTaxId"`
	VendorPartyNumber *field `json:"vendorPartyNumber"`
	VendorAddress     *field `json:"vendorAddress"`
}

type customerFields struct {
	CustomerName    *field `json:"customerName"`
	CustomerAddress *field `json:"customerAddress"`
}

type summaryFields struct {
	SubTotal       *field `json:"subTotal"`
	TotalTax       *field `json:"totalTax"`
	InvoiceTotal   *field `json:"invoiceTotal"`
	CurrencySymbol *field `json:"currencySymbol"`
}

type paymentFields struct {
	DueDate            *field `json:"dueDate"`
	BankAccountNumber  *field `json:"bankAccountNumber"`
	BIC                *field `json:"BIC"`
	AccountName        *field `json:"accountName"`
	PaymentTerms       *field `json:"paymentTerms"`
	NetDays            *field `json:"netDays"`
	DiscountPercentage *field `json:"discountPercentage"`
	DiscountDays       *field `json:"discountDays"`
	DiscountDueDate    *field `json:"discountDueDate"`
	DiscountedTotal    *field `json:"discountedTotal"`
}

type lineItemsField struct {
	Items *section[[]lineItemFields] `json:"items"`
}

// Both spellings of the accounting keys occur in the export.
type lineItemFields struct {
	SrNo              *field `json:"srNo"`
	Description       *field `json:"description"`
	Quantity          *field `json:"quantity"`
	UnitPrice         *field `json:"unitPrice"`
	TotalPrice        *field `json:"totalPrice"`
	Sachkonto         *field `json:"Sachkonto"`
	SachkontoLower    *field `json:"sachkonto"`
	BUSchluessel      *field `json:"BUSchluessel"`
	BUSchluesselLower *field `json:"buSchluessel"`
}

func (l *lineItemFields) sachkonto() string {
	if s := l.Sachkonto.String(); s != "" {
		return s
	}
	return l.SachkontoLower.String()
}

func (l *lineItemFields) buSchluessel() string {
	if s := l.BUSchluessel.String(); s != "" {
		return s
	}
	return l.BUSchluesselLower.String()
}

// field is an extracted leaf: {"value": <string|number|bool|null>}.
// All accessors are nil-safe and return the zero value for absent data.
type field struct {
	Value json.RawMessage `json:"value"`
}

func (f *field) raw() string {
	if f == nil || len(f.Value) == 0 {
		return ""
	}
	v := bytes.TrimSpace(f.Value)
	if bytes.Equal(v, []byte("null")) {
		return ""
	}
	if len(v) > 0 && v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	}
	return string(v)
}

// String returns the leaf as text; numbers keep their JSON spelling.
func (f *field) String() string {
	s := f.raw()
	if s == "false" {
		return ""
	}
	return s
}

// Decimal parses the leaf as a decimal number. ok is false when the leaf is
// absent, empty or not numeric.
func (f *field) Decimal() (d decimal.Decimal, ok bool) {
	s := f.raw()
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Float returns the numeric value or 0.
func (f *field) Float() float64 {
	d, _ := f.Decimal()
	return d.InexactFloat64()
}

// FloatPtr returns the numeric value, or nil when absent or zero.
func (f *field) FloatPtr() *float64 {
	d, ok := f.Decimal()
	if !ok || d.IsZero() {
		return nil
	}
	v := d.InexactFloat64()
	return &v
}

// Int returns the integer part of the numeric value or 0.
func (f *field) Int() int {
	d, _ := f.Decimal()
	return int(d.IntPart())
}

// Time parses the leaf as a date. nil when absent or unparseable.
func (f *field) Time() *time.Time {
	s := f.String()
	if s == "" {
		return nil
	}
	t, err := parseDate(s)
	if err != nil {
		return nil
	}
	return &t
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// oid accepts a plain string or {"$oid": "..."}.
type oid string

func (o *oid) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*o = oid(s)
		return nil
	}
	var wrapped struct {
		OID string `json:"$oid"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return fmt.Errorf("document id: %w", err)
	}
	*o = oid(wrapped.OID)
	return nil
}

// numberLong accepts {"$numberLong": "123"}, a JSON number or a numeric string.
type numberLong int64

func (n *numberLong) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	switch b[0] {
	case '{':
		var wrapped struct {
			Value string `json:"$numberLong"`
		}
		if err := json.Unmarshal(b, &wrapped); err != nil {
			return err
		}
		s = wrapped.Value
	case '"':
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	default:
		s = string(b)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return fmt.Errorf("numberLong %q: %w", s, err)
	}
	*n = numberLong(v)
	return nil
}

// mongoDate accepts {"$date": "<iso>"}, {"$date": {"$numberLong": "<ms>"}}
// or a bare ISO string.
type mongoDate struct {
	time.Time
}

func (d *mongoDate) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		t, err := parseDate(s)
		if err != nil {
			return err
		}
		d.Time = t
		return nil
	}
	var wrapped struct {
		Date json.RawMessage `json:"$date"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return err
	}
	if len(wrapped.Date) == 0 {
		return nil
	}
	if wrapped.Date[0] == '"' {
		return d.UnmarshalJSON(wrapped.Date)
	}
	var ms numberLong
	if err := ms.UnmarshalJSON(wrapped.Date); err != nil {
		return fmt.Errorf("$date: %w", err)
	}
	d.Time = time.UnixMilli(int64(ms)).UTC()
	return nil
}
