package util

import (
	"strconv"
	"strings"
	"time"
)

// KST is the zone government portals publish dates in.
var KST = time.FixedZone("KST", 9*60*60)

// NormalizeDate keeps the first 8 digits of the input, dropping separators.
// "2024-01-02 14:30" and "20240102" both become "20240102".
func NormalizeDate(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			if b.Len() == 8 {
				break
			}
		}
	}
	return b.String()
}

// DateNum returns the normalized date as an integer for floor comparisons,
// or 0 when no digits are present.
func DateNum(s string) int {
	d := NormalizeDate(s)
	if d == "" {
		return 0
	}
	n, err := strconv.Atoi(d)
	if err != nil {
		return 0
	}
	return n
}

// ISOFromDate turns an 8-digit date into a midnight-UTC ISO-8601 timestamp by
// slicing, e.g. "20230601" -> "2023-06-01T00:00:00Z". Anything that does not
// normalize to 8 digits yields the fallback.
func ISOFromDate(yyyymmdd, fallback string) string {
	d := NormalizeDate(yyyymmdd)
	if len(d) != 8 {
		return fallback
	}
	return d[0:4] + "-" + d[4:6] + "-" + d[6:8] + "T00:00:00Z"
}

// DateFromISO extracts the 8-digit date from an ISO timestamp.
func DateFromISO(iso string) string {
	return NormalizeDate(iso)
}

func NowUTCISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

func NowKSTISO() string {
	return time.Now().In(KST).Format("2006-01-02T15:04:05.000-07:00")
}
