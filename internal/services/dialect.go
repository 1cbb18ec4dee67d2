package services

import "gorm.io/gorm"

// monthKey returns a SQL expression formatting the timestamp column col as
// YYYY-MM in the store's dialect.
func monthKey(db *gorm.DB, col string) string {
	if db.Dialector.Name() == "sqlite" {
		return "strftime('%Y-%m', " + col + ")"
	}
	return "to_char(date_trunc('month', " + col + "), 'YYYY-MM')"
}

// likePattern builds a case-insensitive substring pattern for LIKE ... ESCAPE '\'.
func likePattern(s string) string {
	r := make([]rune, 0, len(s)+2)
	r = append(r, '%')
	for _, c := range s {
		switch c {
		case '%', '_', '\\':
			r = append(r, '\\')
		}
		r = append(r, c)
	}
	r = append(r, '%')
	return string(r)
}
