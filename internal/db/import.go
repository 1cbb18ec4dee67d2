package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gorm.io/gorm"

	applog "github.com/diewo77/invoice-analytics/internal/log"
	"github.com/diewo77/invoice-analytics/internal/models"
)

const (
	unknownVendor   = "Unknown Vendor"
	unknownCustomer = "Unknown Customer"
	noDescription   = "No description"
	defaultCurrency = "EUR"
	defaultCategory = "General"
)

// categoryBySachkonto maps the booking account of a line item to its spend category.
var categoryBySachkonto = map[string]string{
	"4400": "Services",
	"4300": "Materials",
	"4500": "Shipping",
	"4600": "Utilities",
	"4700": "Office Supplies",
}

// CategoryFor returns the spend category for a booking account.
func CategoryFor(sachkonto string) string {
	if c, ok := categoryBySachkonto[sachkonto]; ok {
		return c
	}
	return defaultCategory
}

// ImportReport summarizes an import run. The entity counts are read back
// from the store once all documents have been processed.
type ImportReport struct {
	Processed int   `json:"processed"`
	Failed    int   `json:"failed"`
	Documents int64 `json:"documents"`
	Invoices  int64 `json:"invoices"`
	Vendors   int64 `json:"vendors"`
	Customers int64 `json:"customers"`
	LineItems int64 `json:"line_items"`
}

// ImportFile loads the JSON export at path. See Import.
func ImportFile(ctx context.Context, gdb *gorm.DB, path string, log *applog.Logger) (*ImportReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()
	return Import(ctx, gdb, f, log)
}

// Import replaces the store content with the documents of a JSON export.
// Existing rows are cleared first. Each document is written in its own
// transaction; a failing document is logged and counted, and the run goes on.
func Import(ctx context.Context, gdb *gorm.DB, r io.Reader, log *applog.Logger) (*ImportReport, error) {
	log = log.WithComponent(applog.ComponentImport)

	var docs []exportDocument
	if err := json.NewDecoder(r).Decode(&docs); err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}
	log.Info("documents to process", "count", len(docs))

	gdb = gdb.WithContext(ctx)
	if err := clearAll(gdb); err != nil {
		return nil, fmt.Errorf("clear existing data: %w", err)
	}

	report := &ImportReport{}
	for i := range docs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		doc := &docs[i]
		err := gdb.Transaction(func(tx *gorm.DB) error {
			return importDocument(tx, doc)
		})
		if err != nil {
			report.Failed++
			log.Error("document import failed", applog.FieldDocumentID, string(doc.ID), applog.FieldError, err)
			continue
		}
		report.Processed++
		if report.Processed%10 == 0 {
			log.Info("import progress", "processed", report.Processed, "total", len(docs))
		}
	}

	if err := report.countRows(gdb); err != nil {
		return report, err
	}
	log.Info("import completed",
		"processed", report.Processed,
		"failed", report.Failed,
		"documents", report.Documents,
		"invoices", report.Invoices,
		"vendors", report.Vendors,
		"customers", report.Customers,
		"line_items", report.LineItems,
	)
	return report, nil
}

// clearAll deletes every row, children first.
func clearAll(gdb *gorm.DB) error {
	return gdb.Transaction(func(tx *gorm.DB) error {
		all := models.All()
		for i := len(all) - 1; i >= 0; i-- {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(all[i]).Error; err != nil {
				return fmt.Errorf("delete %T: %w", all[i], err)
			}
		}
		return nil
	})
}

func importDocument(tx *gorm.DB, doc *exportDocument) error {
	if doc.ID == "" {
		return errors.New("document has no id")
	}
	document := models.Document{
		ID:             string(doc.ID),
		Name:           doc.Name,
		FilePath:       doc.FilePath,
		FileSize:       int64(doc.FileSize),
		FileType:       doc.FileType,
		Status:         doc.Status,
		OrganizationID: doc.OrganizationID,
		DepartmentID:   doc.DepartmentID,
		UploadedByID:   doc.UploadedByID,
		CreatedAt:      doc.CreatedAt.Time,
		UpdatedAt:      doc.UpdatedAt.Time,
	}
	if err := tx.Create(&document).Error; err != nil {
		return fmt.Errorf("create document: %w", err)
	}

	llm := doc.llm()
	if llm == nil {
		return nil
	}

	vendor, err := upsertVendor(tx, llm.Vendor.get())
	if err != nil {
		return err
	}
	customer, err := findOrCreateCustomer(tx, llm.Customer.get())
	if err != nil {
		return err
	}

	inv := llm.Invoice.get()
	if inv == nil {
		inv = &invoiceFields{}
	}
	summary := llm.Summary.get()
	if summary == nil {
		summary = &summaryFields{}
	}
	payment := llm.Payment.get()

	number := inv.InvoiceID.String()
	if number == "" {
		number = string(doc.ID)
		if len(number) > 8 {
			number = number[:8]
		}
	}
	invoiceDate := doc.CreatedAt.Time
	if t := inv.InvoiceDate.Time(); t != nil {
		invoiceDate = *t
	}
	currency := summary.CurrencySymbol.String()
	if currency == "" {
		currency = defaultCurrency
	}

	invoice := models.Invoice{
		DocumentID:     document.ID,
		VendorID:       vendor.ID,
		CustomerID:     customer.ID,
		InvoiceNumber:  number,
		InvoiceDate:    invoiceDate,
		DeliveryDate:   inv.DeliveryDate.Time(),
		SubTotal:       summary.SubTotal.Float(),
		TotalTax:       summary.TotalTax.Float(),
		InvoiceTotal:   summary.InvoiceTotal.Float(),
		CurrencySymbol: currency,
		Status:         doc.Status,
	}
	if payment != nil {
		invoice.DueDate = payment.DueDate.Time()
	}
	if err := tx.Create(&invoice).Error; err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}

	if payment != nil {
		p := models.Payment{
			InvoiceID:          invoice.ID,
			BankAccountNumber:  payment.BankAccountNumber.String(),
			BIC:                payment.BIC.String(),
			AccountName:        payment.AccountName.String(),
			PaymentTerms:       payment.PaymentTerms.String(),
			NetDays:            payment.NetDays.Int(),
			DiscountPercentage: payment.DiscountPercentage.FloatPtr(),
			DiscountDays:       payment.DiscountDays.Int(),
			DiscountDueDate:    payment.DiscountDueDate.Time(),
			DiscountedTotal:    payment.DiscountedTotal.FloatPtr(),
		}
		if err := tx.Create(&p).Error; err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
	}

	var items []lineItemFields
	if li := llm.LineItems.get(); li != nil {
		if v := li.Items.get(); v != nil {
			items = *v
		}
	}
	for i := range items {
		item := &items[i]
		description := item.Description.String()
		if description == "" {
			description = noDescription
		}
		sachkonto := item.sachkonto()
		category := CategoryFor(sachkonto)
		li := models.LineItem{
			InvoiceID:    invoice.ID,
			SrNo:         item.SrNo.Int(),
			Description:  description,
			Quantity:     item.Quantity.Float(),
			UnitPrice:    item.UnitPrice.Float(),
			TotalPrice:   item.TotalPrice.Float(),
			Sachkonto:    optional(sachkonto),
			BUSchluessel: optional(item.buSchluessel()),
			Category:     &category,
		}
		if err := tx.Create(&li).Error; err != nil {
			return fmt.Errorf("create line item %d: %w", i+1, err)
		}
	}
	return nil
}

func upsertVendor(tx *gorm.DB, v *vendorFields) (*models.Vendor, error) {
	if v == nil {
		v = &vendorFields{}
	}
	name := v.VendorName.String()
	if name == "" {
		name = unknownVendor
	}
	taxID := v.VendorTaxID.String()

	var vendor models.Vendor
	err := tx.Where("name = ? AND tax_id = ?", name, taxID).First(&vendor).Error
	if err == nil {
		return &vendor, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find vendor: %w", err)
	}
	vendor = models.Vendor{
		Name:        name,
		TaxID:       taxID,
		PartyNumber: v.VendorPartyNumber.String(),
		Address:     v.VendorAddress.String(),
	}
	if err := tx.Create(&vendor).Error; err != nil {
		return nil, fmt.Errorf("create vendor: %w", err)
	}
	return &vendor, nil
}

func findOrCreateCustomer(tx *gorm.DB, c *customerFields) (*models.Customer, error) {
	if c == nil {
		c = &customerFields{}
	}
	name := c.CustomerName.String()
	if name == "" {
		name = unknownCustomer
	}

	var customer models.Customer
	err := tx.Where("name = ?", name).First(&customer).Error
	if err == nil {
		return &customer, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find customer: %w", err)
	}
	customer = models.Customer{Name: name, Address: c.CustomerAddress.String()}
	if err := tx.Create(&customer).Error; err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return &customer, nil
}

func (r *ImportReport) countRows(gdb *gorm.DB) error {
	counts := []struct {
		model any
		dst   *int64
	}{
		{&models.Document{}, &r.Documents},
		{&models.Invoice{}, &r.Invoices},
		{&models.Vendor{}, &r.Vendors},
		{&models.Customer{}, &r.Customers},
		{&models.LineItem{}, &r.LineItems},
	}
	for _, c := range counts {
		if err := gdb.Model(c.model).Count(c.dst).Error; err != nil {
			return fmt.Errorf("count %T: %w", c.model, err)
		}
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
