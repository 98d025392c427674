// Package publish writes the JSON documents the static site consumes.
package publish

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jinsu133/airpermit-law-alert/internal/model"
)

// UpdatesPayload is updates.json: the current watch pass.
type UpdatesPayload struct {
	GeneratedAtKST string              `json:"generated_at_kst"`
	GeneratedAtUTC string              `json:"generated_at_utc"`
	Stats          UpdatesStats        `json:"stats"`
	Items          []model.ChangeEvent `json:"items"`
}

type UpdatesStats struct {
	CountByKind       map[model.Kind]int `json:"count_by_kind"`
	Fallback          map[string]bool    `json:"fallback"`
	DeltaCountThisRun int                `json:"delta_count_this_run"`
	CumulativeTotal   int                `json:"cumulative_history_total"`
	HistoryStartYMD   string             `json:"history_start_yyyymmdd"`
}

// ChangesPayload is changes.json / changelog.json: the cumulative history.
type ChangesPayload struct {
	GeneratedAtKST string              `json:"generated_at_kst"`
	GeneratedAtUTC string              `json:"generated_at_utc"`
	RangeStartYMD  string              `json:"range_start_yyyymmdd"`
	Stats          ChangesStats        `json:"stats"`
	Items          []model.ChangeEvent `json:"items"`
}

type ChangesStats struct {
	CountByKind       map[model.Kind]int `json:"count_by_kind"`
	DeltaCountThisRun int                `json:"delta_count_this_run"`
	TotalCumulative   int                `json:"total_cumulative"`
	SeededNow         bool               `json:"seeded_now"`
}

type Health struct {
	LastSuccessKST string `json:"last_success_kst"`
	LastSuccessUTC string `json:"last_success_utc"`
}

// CountByKind tallies items per kind, always reporting all three kinds.
func CountByKind(items []model.ChangeEvent) map[model.Kind]int {
	out := map[model.Kind]int{model.KindLaw: 0, model.KindRule: 0, model.KindBill: 0}
	for _, it := range items {
		if _, ok := out[it.Kind]; ok {
			out[it.Kind]++
		}
	}
	return out
}

// Writer publishes documents into one output directory.
type Writer struct {
	Dir string
}

func (w Writer) WriteUpdates(p UpdatesPayload) error {
	return writeJSON(filepath.Join(w.Dir, "updates.json"), p)
}

// WriteChanges writes both changes.json and the legacy changelog.json name.
func (w Writer) WriteChanges(p ChangesPayload) error {
	if err := writeJSON(filepath.Join(w.Dir, "changes.json"), p); err != nil {
		return err
	}
	return writeJSON(filepath.Join(w.Dir, "changelog.json"), p)
}

func (w Writer) WriteHealth(h Health) error {
	return writeJSON(filepath.Join(w.Dir, "health.json"), h)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("publish %s: %w", path, err)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("publish %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("publish %s: %w", path, err)
	}
	return nil
}
