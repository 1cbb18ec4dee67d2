// Package models defines the relational schema of the analytics store.
package models

// All lists every model in dependency order, for migrations and wipes.
func All() []any {
	return []any{
		&Document{},
		&Vendor{},
		&Customer{},
		&Invoice{},
		&Payment{},
		&LineItem{},
	}
}
