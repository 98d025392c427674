package source

import (
	"context"
	"log"
	"net/http"
	"net/url"

	"github.com/jinsu133/airpermit-law-alert/internal/config"
	"github.com/jinsu133/airpermit-law-alert/internal/metrics"
	"github.com/jinsu133/airpermit-law-alert/internal/model"
	"github.com/jinsu133/airpermit-law-alert/internal/util"
)

// lawSource tracks statute versions through the law.go.kr DRF search API.
type lawSource struct {
	cfg    config.LawConfig
	http   config.HTTPConfig
	oc     string
	cutoff string
	client *http.Client
}

func NewLaw(cfg config.Config, oc string, client *http.Client) *lawSource {
	return &lawSource{cfg: cfg.Law, http: cfg.HTTP, oc: oc, cutoff: cfg.CutoffDate, client: client}
}

func (l *lawSource) Name() string     { return "law" }
func (l *lawSource) Kind() model.Kind { return model.KindLaw }

func (l *lawSource) Tasks() []Task {
	out := make([]Task, 0, len(l.cfg.Names))
	for _, name := range l.cfg.Names {
		out = append(out, Task{Query: name})
	}
	return out
}

func (l *lawSource) SummaryFields() []FieldLabel {
	return []FieldLabel{
		{Label: "공포일자", Key: "ld"},
		{Label: "공포번호", Key: "ln"},
		{Label: "제개정구분", Key: "reform_type"},
	}
}

// FetchVersions lists every promulgated version of the named statute at or
// after the date floor, one event per version.
func (l *lawSource) FetchVersions(ctx context.Context, query string, _ map[string]string) ([]model.ChangeEvent, error) {
	data, err := lawSearchRequest(ctx, l.client, l.cfg.Bases, l.http.UserAgent, l.Name(),
		lawSearchParams(l.oc, "law", query, "100"))
	if err != nil {
		return nil, err
	}

	container, _ := data["LawSearch"].(map[string]any)
	items := coerceSlice(container["law"])

	floor := util.DateNum(l.cutoff)
	out := make([]model.ChangeEvent, 0, len(items))
	for _, item := range items {
		ld := util.NormalizeDate(pickVal(item, "공포일자"))
		if ld == "" || util.DateNum(ld) < floor {
			continue
		}
		title := pickVal(item, "법령명한글")
		if title == "" {
			title = query
		}
		ln := pickVal(item, "공포번호")
		reform := pickVal(item, "제개정구분명")
		id := compositeID(ln, ld, reform)
		if id == "" {
			id = title
		}
		out = append(out, model.ChangeEvent{
			Status:        model.StatusMod,
			StatusKo:      model.StatusMod.Korean(),
			Kind:          model.KindLaw,
			Title:         title,
			Date:          ld,
			ID:            id,
			DiffURL:       nil,
			ChangeSummary: backfillSummary(l.cutoff),
			Source:        "backfill",
			DetectedAtUTC: util.ISOFromDate(ld, util.NowUTCISO()),
		})
	}
	metrics.Events.WithLabelValues(l.Name()).Add(float64(len(out)))
	return out, nil
}

// Snapshots resolves the current (latest) version of each tracked statute.
// The search is sorted by promulgation date descending, so the first hit is
// the version in force.
func (l *lawSource) Snapshots(ctx context.Context) []model.Snapshot {
	out := make([]model.Snapshot, 0, len(l.cfg.Names))
	for _, name := range l.cfg.Names {
		data, err := lawSearchRequest(ctx, l.client, l.cfg.Bases, l.http.UserAgent, l.Name(),
			lawSearchParams(l.oc, "law", name, "30"))
		if err != nil {
			log.Printf("warn: law snapshot %q: %v", name, err)
			continue
		}
		container, _ := data["LawSearch"].(map[string]any)
		items := coerceSlice(container["law"])
		if len(items) == 0 {
			continue
		}
		first := items[0]

		title := pickVal(first, "법령명한글")
		if title == "" {
			title = name
		}
		fields := map[string]string{
			"ld":          util.NormalizeDate(pickVal(first, "공포일자")),
			"ln":          pickVal(first, "공포번호"),
			"reform_type": pickVal(first, "제개정구분명"),
			"law_id":      pickVal(first, "법령일련번호", "법령ID"),
		}
		id := compositeID(fields["ln"], fields["ld"], fields["reform_type"])
		if id == "" {
			id = title
		}
		out = append(out, model.Snapshot{
			Key:       title,
			StatusKey: fields["ld"] + "|" + fields["ln"] + "|" + fields["reform_type"],
			Title:     title,
			Date:      fields["ld"],
			ID:        id,
			DiffURL:   LawDiffURL(title, fields),
			Fields:    fields,
		})
	}
	return out
}

// LawDiffURL deep-links the statute's portal page when the serial number is
// known, otherwise a portal search for the title.
func LawDiffURL(title string, fields map[string]string) string {
	if id := fields["law_id"]; id != "" {
		return "https://www.law.go.kr/LSW/lsInfoP.do?lsiSeq=" + url.QueryEscape(id) + "&efYd=" + url.QueryEscape(fields["ld"])
	}
	return "https://www.law.go.kr/LSW/lsSc.do?menuId=1&query=" + url.QueryEscape(title)
}
