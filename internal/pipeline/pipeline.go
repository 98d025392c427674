// Package pipeline drives one full run: credential gate, watch pass, history
// seeding/backfill, merge, publish, state save.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jinsu133/airpermit-law-alert/internal/config"
	"github.com/jinsu133/airpermit-law-alert/internal/filter"
	"github.com/jinsu133/airpermit-law-alert/internal/merge"
	"github.com/jinsu133/airpermit-law-alert/internal/metrics"
	"github.com/jinsu133/airpermit-law-alert/internal/model"
	"github.com/jinsu133/airpermit-law-alert/internal/publish"
	"github.com/jinsu133/airpermit-law-alert/internal/source"
	"github.com/jinsu133/airpermit-law-alert/internal/store"
	"github.com/jinsu133/airpermit-law-alert/internal/util"
)

type Pipeline struct {
	cfg     config.Config
	creds   config.Credentials
	flt     *filter.Engine
	sources []source.Source
	verbose bool
}

func New(cfg config.Config, creds config.Credentials, flt *filter.Engine, sources []source.Source, verbose bool) *Pipeline {
	return &Pipeline{cfg: cfg, creds: creds, flt: flt, sources: sources, verbose: verbose}
}

// Run executes one cycle. Credential absence and persistence write failures
// are the only hard errors; every per-query problem degrades to fewer items.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.creds.Validate(); err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	genUTC := util.NowUTCISO()
	genKST := util.NowKSTISO()

	statePath := filepath.Join(p.cfg.Paths.DataDir, "state.json")
	historyPath := filepath.Join(p.cfg.Paths.DataDir, "history.json")
	legacyPath := filepath.Join(p.cfg.Paths.OutDir, "changelog.json")

	st := store.LoadState(statePath)

	var items []model.ChangeEvent
	fallback := map[string]bool{"laws": false, "admruls": false}

	for _, src := range p.sources {
		snaps := src.Snapshots(ctx)
		stateMap := st.ByKind(src.Kind())
		kindItems, seen := p.watch(src, snaps, stateMap, genUTC)
		if len(snaps) == 0 && len(stateMap) > 0 {
			fb := p.fallbackItems(src.Kind(), stateMap, seen)
			if len(fb) > 0 {
				kindItems = append(kindItems, fb...)
				switch src.Kind() {
				case model.KindLaw:
					fallback["laws"] = true
				case model.KindRule:
					fallback["admruls"] = true
				}
			}
		}
		if p.verbose {
			log.Printf("%s: %d watch item(s)", src.Name(), len(kindItems))
		}
		items = append(items, kindItems...)
	}

	items = sortItems(dedupeItems(items))
	var delta []model.ChangeEvent
	for _, it := range items {
		if it.Status == model.StatusNew || it.Status == model.StatusMod {
			delta = append(delta, it)
		}
	}

	cutoff := util.NormalizeDate(p.cfg.CutoffDate)
	hist := store.LoadHistory(historyPath, legacyPath)
	seededNow := false
	if p.needsSeed(hist, cutoff) {
		log.Printf("seeding history: accumulating changes since %s", cutoff)
		seed := p.collect(ctx)
		var base []model.ChangeEvent
		if hist.SeededFrom != "" {
			base = hist.Items
		}
		hist.Items = merge.Events(seed, base)
		hist.SeededFrom = cutoff
		seededNow = true
	}

	hist.Items = merge.Events(p.historyEntries(delta, cutoff), hist.Items)
	if hist.SeededFrom == "" {
		hist.SeededFrom = cutoff
	}
	hist.LastGeneratedUTC = genUTC
	if err := store.SaveHistory(historyPath, hist); err != nil {
		return err
	}

	w := publish.Writer{Dir: p.cfg.Paths.OutDir}
	if err := w.WriteUpdates(publish.UpdatesPayload{
		GeneratedAtKST: genKST,
		GeneratedAtUTC: genUTC,
		Stats: publish.UpdatesStats{
			CountByKind:       publish.CountByKind(items),
			Fallback:          fallback,
			DeltaCountThisRun: len(delta),
			CumulativeTotal:   len(hist.Items),
			HistoryStartYMD:   cutoff,
		},
		Items: items,
	}); err != nil {
		return err
	}
	if err := w.WriteChanges(publish.ChangesPayload{
		GeneratedAtKST: genKST,
		GeneratedAtUTC: genUTC,
		RangeStartYMD:  cutoff,
		Stats: publish.ChangesStats{
			CountByKind:       publish.CountByKind(hist.Items),
			DeltaCountThisRun: len(delta),
			TotalCumulative:   len(hist.Items),
			SeededNow:         seededNow,
		},
		Items: hist.Items,
	}); err != nil {
		return err
	}
	if err := w.WriteHealth(publish.Health{LastSuccessKST: genKST, LastSuccessUTC: genUTC}); err != nil {
		return err
	}

	st.LastRun = genKST
	if err := store.SaveState(statePath, st); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	metrics.LastSuccess.SetToCurrentTime()
	metrics.ChangelogItems.Set(float64(len(hist.Items)))
	log.Printf("run complete: %d watch item(s), %d changed, changelog total %d",
		len(items), len(delta), len(hist.Items))
	return nil
}

// needsSeed reports whether the backfill catalog must run: no history yet, or
// the floor moved earlier than the range already seeded.
func (p *Pipeline) needsSeed(hist model.Changelog, cutoff string) bool {
	if len(hist.Items) == 0 || hist.SeededFrom == "" {
		return true
	}
	return util.DateNum(hist.SeededFrom) > util.DateNum(cutoff)
}

// collect is the backfill orchestrator: the fixed task catalog, sequential,
// fail-soft per query.
func (p *Pipeline) collect(ctx context.Context) []model.ChangeEvent {
	var all []model.ChangeEvent
	for _, src := range p.sources {
		for _, t := range src.Tasks() {
			evs, err := src.FetchVersions(ctx, t.Query, t.Extra)
			if err != nil {
				log.Printf("warn: backfill %s %q: %v", src.Name(), t.Query, err)
				continue
			}
			if p.verbose {
				log.Printf("backfill %s %q: %d event(s)", src.Name(), t.Query, len(evs))
			}
			all = append(all, evs...)
		}
	}
	return all
}

// watch turns snapshots into status-tagged items, updating state in place.
func (p *Pipeline) watch(src source.Source, snaps []model.Snapshot, stateMap map[string]store.Entry, genUTC string) ([]model.ChangeEvent, map[string]bool) {
	out := make([]model.ChangeEvent, 0, len(snaps))
	seen := make(map[string]bool, len(snaps))
	for _, sn := range snaps {
		prev, had := stateMap[sn.Key]
		status := model.StatusNew
		if had {
			if prev.StatusKey != sn.StatusKey {
				status = model.StatusMod
			} else {
				status = model.StatusOK
			}
		}
		seen[sn.Key] = true

		du := sn.DiffURL
		ev := model.ChangeEvent{
			Status:        status,
			StatusKo:      status.Korean(),
			Kind:          src.Kind(),
			Title:         sn.Title,
			Date:          sn.Date,
			ID:            sn.ID,
			DiffURL:       &du,
			Source:        "delta",
			DetectedAtUTC: detectedAt(src.Kind(), sn.Date, genUTC),
		}
		if status != model.StatusOK {
			ev.ChangeSummary = changeSummary(prev.Fields, sn.Fields, src.SummaryFields(), had)
		}
		out = append(out, ev)
		stateMap[sn.Key] = store.Entry{StatusKey: sn.StatusKey, Fields: sn.Fields}
	}
	return out, seen
}

// detectedAt anchors statutes and rules to their promulgation date; bill rows
// carry processing-state changes not reflected in the proposal date, so they
// use the run timestamp.
func detectedAt(kind model.Kind, date, genUTC string) string {
	if kind == model.KindBill {
		return genUTC
	}
	return util.ISOFromDate(date, genUTC)
}

func changeSummary(prev, cur map[string]string, fields []source.FieldLabel, hadPrev bool) string {
	if !hadPrev {
		return "신규 감지"
	}
	var diffs []string
	for _, f := range fields {
		oldVal := strings.TrimSpace(prev[f.Key])
		newVal := strings.TrimSpace(cur[f.Key])
		if oldVal != newVal {
			diffs = append(diffs, fmt.Sprintf("%s: %s -> %s", f.Label, orDash(oldVal), orDash(newVal)))
		}
	}
	if len(diffs) == 0 {
		return "변경 없음"
	}
	return strings.Join(diffs, "; ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// fallbackItems reconstructs OK items from prior state when a source's watch
// pass returned nothing at all, so an API outage does not blank the page.
func (p *Pipeline) fallbackItems(kind model.Kind, stateMap map[string]store.Entry, seen map[string]bool) []model.ChangeEvent {
	var out []model.ChangeEvent
	switch kind {
	case model.KindLaw:
		for key, prev := range stateMap {
			if key == "" || seen[key] || !p.flt.MatchLawSeed(key) {
				continue
			}
			f := prev.Fields
			id := compositeOr(key, f["ln"], f["ld"], f["reform_type"])
			du := source.LawDiffURL(key, f)
			out = append(out, model.ChangeEvent{
				Status:        model.StatusOK,
				StatusKo:      model.StatusOK.Korean(),
				Kind:          model.KindLaw,
				Title:         key,
				Date:          f["ld"],
				ID:            id,
				DiffURL:       &du,
				Source:        "delta",
				Note:          "법령 API 응답 누락으로 이전 성공 데이터를 표시합니다.",
				DetectedAtUTC: util.ISOFromDate(f["ld"], util.NowUTCISO()),
			})
		}
	case model.KindRule:
		for key, prev := range stateMap {
			if key == "" || seen[key] {
				continue
			}
			f := prev.Fields
			title := f["title"]
			if title == "" {
				continue
			}
			date := f["promulgation_date"]
			if date == "" {
				date = f["enforce_date"]
			}
			id := compositeOr(key, f["num"], f["promulgation_date"], f["enforce_date"])
			du := source.AdmrulDiffURL(title, f)
			out = append(out, model.ChangeEvent{
				Status:        model.StatusOK,
				StatusKo:      model.StatusOK.Korean(),
				Kind:          model.KindRule,
				Title:         title,
				Date:          date,
				ID:            id,
				DiffURL:       &du,
				Source:        "delta",
				Note:          "고시 API 응답 누락으로 이전 성공 데이터를 표시합니다.",
				DetectedAtUTC: util.ISOFromDate(date, util.NowUTCISO()),
			})
		}
	}
	return out
}

func compositeOr(fallback string, parts ...string) string {
	id := strings.Trim(strings.Join(parts, "|"), "|")
	if id == "" {
		return fallback
	}
	return id
}

// historyEntries prepares NEW/MOD watch items for the cumulative merge,
// dropping anything older than the floor.
func (p *Pipeline) historyEntries(delta []model.ChangeEvent, cutoff string) []model.ChangeEvent {
	floor := util.DateNum(cutoff)
	out := make([]model.ChangeEvent, 0, len(delta))
	for _, it := range delta {
		dn := util.DateNum(it.Date)
		if dn == 0 {
			dn = util.DateNum(util.DateFromISO(it.DetectedAtUTC))
		}
		if dn != 0 && dn < floor {
			continue
		}
		out = append(out, it)
	}
	return out
}

// dedupeItems collapses display items sharing kind::title::id, keeping the
// most significant status (NEW over MOD over OK).
func dedupeItems(items []model.ChangeEvent) []model.ChangeEvent {
	merged := make(map[string]model.ChangeEvent, len(items))
	var order []string
	for _, it := range items {
		key := string(it.Kind) + "::" + it.Title + "::" + it.ID
		prev, ok := merged[key]
		if !ok {
			merged[key] = it
			order = append(order, key)
			continue
		}
		if it.Status.Rank() > prev.Status.Rank() {
			merged[key] = it
		}
	}
	out := make([]model.ChangeEvent, 0, len(merged))
	for _, key := range order {
		out = append(out, merged[key])
	}
	return out
}

// sortItems orders the published watch items: statutes, rules, bills; newest
// first inside each kind.
func sortItems(items []model.ChangeEvent) []model.ChangeEvent {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Kind.Order() != b.Kind.Order() {
			return a.Kind.Order() < b.Kind.Order()
		}
		if an, bn := util.DateNum(a.Date), util.DateNum(b.Date); an != bn {
			return an > bn
		}
		return a.Title < b.Title
	})
	return items
}
