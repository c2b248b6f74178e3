package render

import (
	"testing"
	"time"

	"github.com/bgricker/crewreport/internal/catalog"
)

func TestFormatValue(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	cases := []struct {
		name   string
		value  any
		format string
		want   string
	}{
		{"nil", nil, "", ""},
		{"nil hours", nil, catalog.FormatHours, ""},
		{"hours float", 7.5, catalog.FormatHours, "7.50"},
		{"hours int", int64(8), catalog.FormatHours, "8.00"},
		{"hours decimal bytes", []byte("12.345000"), catalog.FormatHours, "12.35"},
		{"hours decimal string", "0.1", catalog.FormatHours, "0.10"},
		{"hours not numeric", "n/a", catalog.FormatHours, "n/a"},
		{"time", ts, "", "2025-03-14 09:26:53"},
		{"timestamp string", "2025-03-14T09:26:53Z", catalog.FormatTimestamp, "2025-03-14 09:26:53"},
		{"timestamp passthrough", "2025-03-14 09:26:53", catalog.FormatTimestamp, "2025-03-14 09:26:53"},
		{"bytes", []byte("Burlington"), "", "Burlington"},
		{"int", int64(42), "", "42"},
		{"float", 2.25, "", "2.25"},
		{"bool true", true, "", "True"},
		{"bool false", false, "", "False"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatValue(tc.value, tc.format); got != tc.want {
				t.Fatalf("FormatValue(%v, %q) = %q, want %q", tc.value, tc.format, got, tc.want)
			}
		})
	}
}
