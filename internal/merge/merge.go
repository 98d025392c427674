// Package merge combines freshly fetched change events with previously
// persisted ones. It is pure: no I/O, deterministic output.
package merge

import (
	"sort"

	"github.com/jinsu133/airpermit-law-alert/internal/model"
	"github.com/jinsu133/airpermit-law-alert/internal/util"
)

// Events deduplicates fresh and prior events on the (id, date) key. Fresh
// events take precedence on collision; within the fresh pass the first write
// wins, so catalog accumulation order settles same-run duplicates. Prior
// events only fill keys fresh data did not produce, which makes the merge
// non-destructive: a fact recorded once is never dropped by a later run that
// fails to refetch it. The result is sorted most recent first.
func Events(fresh, prior []model.ChangeEvent) []model.ChangeEvent {
	byKey := make(map[string]model.ChangeEvent, len(fresh)+len(prior))
	for _, e := range fresh {
		if _, ok := byKey[e.Key()]; !ok {
			byKey[e.Key()] = e
		}
	}
	for _, e := range prior {
		if _, ok := byKey[e.Key()]; !ok {
			byKey[e.Key()] = e
		}
	}

	out := make([]model.ChangeEvent, 0, len(byKey))
	for _, e := range byKey {
		out = append(out, e)
	}
	// Lexicographic comparison is sufficient for the fixed ISO-8601 format;
	// the remaining keys only settle ties deterministically.
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DetectedAtUTC != b.DetectedAtUTC {
			return a.DetectedAtUTC > b.DetectedAtUTC
		}
		if an, bn := util.DateNum(a.Date), util.DateNum(b.Date); an != bn {
			return an > bn
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Title < b.Title
	})
	return out
}
