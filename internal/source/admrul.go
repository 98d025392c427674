package source

import (
	"context"
	"log"
	"net/http"
	"net/url"

	"github.com/jinsu133/airpermit-law-alert/internal/config"
	"github.com/jinsu133/airpermit-law-alert/internal/filter"
	"github.com/jinsu133/airpermit-law-alert/internal/metrics"
	"github.com/jinsu133/airpermit-law-alert/internal/model"
	"github.com/jinsu133/airpermit-law-alert/internal/util"
)

// admrulSource tracks administrative rules (고시) through the same DRF search
// endpoint as statutes, with target=admrul and its own field names.
type admrulSource struct {
	cfg    config.AdmrulConfig
	law    config.LawConfig // shares the DRF bases
	http   config.HTTPConfig
	oc     string
	cutoff string
	flt    *filter.Engine
	client *http.Client
}

func NewAdmrul(cfg config.Config, oc string, flt *filter.Engine, client *http.Client) *admrulSource {
	return &admrulSource{
		cfg:    cfg.Admrul,
		law:    cfg.Law,
		http:   cfg.HTTP,
		oc:     oc,
		cutoff: cfg.CutoffDate,
		flt:    flt,
		client: client,
	}
}

func (a *admrulSource) Name() string     { return "admrul" }
func (a *admrulSource) Kind() model.Kind { return model.KindRule }

func (a *admrulSource) Tasks() []Task {
	out := make([]Task, 0, len(a.cfg.Keywords))
	for _, kw := range a.cfg.Keywords {
		out = append(out, Task{Query: kw})
	}
	return out
}

func (a *admrulSource) SummaryFields() []FieldLabel {
	return []FieldLabel{
		{Label: "발령일자", Key: "promulgation_date"},
		{Label: "시행일자", Key: "enforce_date"},
		{Label: "발령번호", Key: "num"},
	}
}

// admrulContainer tolerates the casing drift the API shows for the search
// wrapper key.
func admrulContainer(data map[string]any) map[string]any {
	for _, key := range []string{"AdmRulSearch", "AdmrulSearch", "admRulSearch"} {
		if m, ok := data[key].(map[string]any); ok {
			return m
		}
	}
	return nil
}

func (a *admrulSource) search(ctx context.Context, keyword, display string) ([]map[string]any, error) {
	data, err := lawSearchRequest(ctx, a.client, a.law.Bases, a.http.UserAgent, a.Name(),
		lawSearchParams(a.oc, "admrul", keyword, display))
	if err != nil {
		return nil, err
	}
	return coerceSlice(admrulContainer(data)["admrul"]), nil
}

func (a *admrulSource) FetchVersions(ctx context.Context, query string, _ map[string]string) ([]model.ChangeEvent, error) {
	items, err := a.search(ctx, query, "100")
	if err != nil {
		return nil, err
	}

	floor := util.DateNum(a.cutoff)
	out := make([]model.ChangeEvent, 0, len(items))
	for _, item := range items {
		title := pickVal(item, "행정규칙명")
		if !a.flt.AllowDepartment(pickVal(item, "소관부처명")) {
			continue
		}
		date := util.NormalizeDate(pickVal(item, "발령일자", "공포일자"))
		if date == "" || util.DateNum(date) < floor {
			continue
		}
		num := pickVal(item, "발령번호", "고시번호", "행정규칙ID")
		enforce := util.NormalizeDate(pickVal(item, "시행일자"))
		id := compositeID(num, date, enforce)
		if id == "" {
			id = title
		}
		out = append(out, model.ChangeEvent{
			Status:        model.StatusMod,
			StatusKo:      model.StatusMod.Korean(),
			Kind:          model.KindRule,
			Title:         title,
			Date:          date,
			ID:            id,
			DiffURL:       nil,
			ChangeSummary: backfillSummary(a.cutoff),
			Source:        "backfill",
			DetectedAtUTC: util.ISOFromDate(date, util.NowUTCISO()),
		})
	}
	metrics.Events.WithLabelValues(a.Name()).Add(float64(len(out)))
	return out, nil
}

// Snapshots lists the rules currently matching every keyword, deduplicated by
// title::number across keywords.
func (a *admrulSource) Snapshots(ctx context.Context) []model.Snapshot {
	var out []model.Snapshot
	seen := map[string]bool{}
	for _, kw := range a.cfg.Keywords {
		items, err := a.search(ctx, kw, "20")
		if err != nil {
			log.Printf("warn: admrul snapshot %q: %v", kw, err)
			continue
		}
		for _, item := range items {
			title := pickVal(item, "행정규칙명")
			if title == "" || !a.flt.AllowDepartment(pickVal(item, "소관부처명")) {
				continue
			}
			fields := map[string]string{
				"title":             title,
				"num":               pickVal(item, "발령번호", "고시번호", "행정규칙ID"),
				"promulgation_date": util.NormalizeDate(pickVal(item, "발령일자", "공포일자")),
				"enforce_date":      util.NormalizeDate(pickVal(item, "시행일자")),
				"admrul_id":         pickVal(item, "행정규칙일련번호", "행정규칙ID"),
			}
			key := title + "::" + fields["num"]
			if seen[key] {
				continue
			}
			seen[key] = true

			date := fields["promulgation_date"]
			if date == "" {
				date = fields["enforce_date"]
			}
			id := compositeID(fields["num"], fields["promulgation_date"], fields["enforce_date"])
			if id == "" {
				id = key
			}
			out = append(out, model.Snapshot{
				Key:       key,
				StatusKey: fields["promulgation_date"] + "|" + fields["enforce_date"] + "|" + fields["num"],
				Title:     title,
				Date:      date,
				ID:        id,
				DiffURL:   AdmrulDiffURL(title, fields),
				Fields:    fields,
			})
		}
	}
	return out
}

func AdmrulDiffURL(title string, fields map[string]string) string {
	if id := fields["admrul_id"]; id != "" {
		return "https://www.law.go.kr/LSW/admRulLsInfoP.do?admRulSeq=" + url.QueryEscape(id)
	}
	return "https://www.law.go.kr/LSW/lsSc.do?menuId=1&query=" + url.QueryEscape(title)
}
