package render

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/bgricker/crewreport/internal/catalog"
)

const timestampLayout = "2006-01-02 15:04:05"

// FormatValue renders one scanned column value as table text.
func FormatValue(v any, format string) string {
	if v == nil {
		return ""
	}
	switch format {
	case catalog.FormatHours:
		if f, ok := toFloat(v); ok {
			return strconv.FormatFloat(f, 'f', 2, 64)
		}
	case catalog.FormatTimestamp:
		if s, ok := v.(string); ok {
			if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return ts.Format(timestampLayout)
			}
		}
	}

	switch x := v.(type) {
	case time.Time:
		return x.Format(timestampLayout)
	case []byte:
		return string(x)
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		// bit columns read as True/False in the generated documents.
		if x {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(x)
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case int:
		return float64(x), true
	case []byte:
		return parseFloat(string(x))
	case string:
		return parseFloat(x)
	case fmt.Stringer:
		return parseFloat(x.String())
	}
	return 0, false
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	// Exact decimals such as pgtype.Numeric text or "1/3" rationals.
	if r, ok := new(big.Rat).SetString(s); ok {
		f, _ := r.Float64()
		return f, true
	}
	return 0, false
}
