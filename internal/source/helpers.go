package source

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jinsu133/airpermit-law-alert/internal/util"
)

// pickVal returns the first non-empty value among the given keys, stringified.
// Government APIs flip between string and numeric encodings for the same field.
func pickVal(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprint(v))
		if s != "" {
			return s
		}
	}
	return ""
}

// coerceSlice normalizes the single-object-vs-array ambiguity: a one-hit
// search comes back as a bare object, multi-hit as an array. Both become a
// slice of maps; anything else is empty.
func coerceSlice(v any) []map[string]any {
	switch t := v.(type) {
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, it := range t {
			if m, ok := it.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]any:
		return []map[string]any{t}
	}
	return nil
}

// compositeID joins version-identifying parts into a stable per-source id,
// trimming empty edges so a missing leading field does not shift the key.
func compositeID(parts ...string) string {
	return strings.Trim(strings.Join(parts, "|"), "|")
}

// currentAssemblyAge derives the legislative term in effect at the given
// time. The 21st assembly opened 2020-05-30; terms run four years.
func currentAssemblyAge(now time.Time) string {
	t := now.In(util.KST)
	base := time.Date(2020, time.May, 30, 0, 0, 0, 0, util.KST)
	if t.Before(base) {
		return "21"
	}
	years := t.Year() - base.Year()
	if t.Month() < base.Month() || (t.Month() == base.Month() && t.Day() < base.Day()) {
		years--
	}
	return strconv.Itoa(21 + years/4)
}
