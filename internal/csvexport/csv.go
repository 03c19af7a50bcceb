// Package csvexport converts tabular data into CSV text.
package csvexport

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ContentType is the MIME type of the encoded blob.
const ContentType = "text/csv"

// TimeLayout is used for time.Time cells: ISO-8601 in UTC with milliseconds.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Encode renders the header line followed by one line per row, joined by "\n".
// Values containing a double quote, comma or newline are quoted, inner quotes doubled.
// Encode never fails: nil becomes an empty cell, anything else is stringified.
func Encode(headers []string, rows [][]any) string {
	lines := make([]string, 0, len(rows)+1)

	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = escape(h)
	}
	lines = append(lines, strings.Join(cells, ","))

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = escape(stringify(v))
		}
		lines = append(lines, strings.Join(cells, ","))
	}

	return strings.Join(lines, "\n")
}

func escape(s string) string {
	if !strings.ContainsAny(s, "\",\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case *string:
		if val == nil {
			return ""
		}
		return *val
	case []byte:
		return string(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.UTC().Format(TimeLayout)
	case *time.Time:
		if val == nil {
			return ""
		}
		return val.UTC().Format(TimeLayout)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
