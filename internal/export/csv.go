// Package export writes tabular results as CSV or XLSX.
//
// A table is a list of records keyed by column name. The column order is
// given by the caller, or taken from the sorted keys of the first record.
package export

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrNoRows is returned when there is nothing to export.
var ErrNoRows = errors.New("export: no rows")

// Columns returns columns, or the sorted keys of the first row when columns is empty.
func Columns[R ~map[string]any](columns []string, rows []R) []string {
	if len(columns) > 0 || len(rows) == 0 {
		return columns
	}
	keys := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WriteCSV writes a header line and one line per row, separated by "\n".
// Fields containing a comma, a double quote, CR or LF are quoted with
// embedded quotes doubled.
func WriteCSV[R ~map[string]any](w io.Writer, columns []string, rows []R) error {
	if len(rows) == 0 {
		return ErrNoRows
	}
	columns = Columns(columns, rows)

	bw := bufio.NewWriter(w)
	line := make([]string, len(columns))
	for i, c := range columns {
		line[i] = quote(c)
	}
	bw.WriteString(strings.Join(line, ","))

	for _, row := range rows {
		for i, c := range columns {
			line[i] = quote(FormatValue(row[c]))
		}
		bw.WriteByte('\n')
		bw.WriteString(strings.Join(line, ","))
	}
	return bw.Flush()
}

func quote(s string) string {
	if !strings.ContainsAny(s, ",\"\r\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// FormatValue renders a cell: nil is empty, time is RFC 3339, maps, slices
// and structs are JSON, anything else goes through fmt.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	case *time.Time:
		if x == nil {
			return ""
		}
		return x.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case json.RawMessage:
		return string(x)
	case fmt.Stringer:
		return x.String()
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return ""
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
	return fmt.Sprint(rv.Interface())
}
