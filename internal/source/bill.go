package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/jinsu133/airpermit-law-alert/internal/config"
	"github.com/jinsu133/airpermit-law-alert/internal/filter"
	"github.com/jinsu133/airpermit-law-alert/internal/metrics"
	"github.com/jinsu133/airpermit-law-alert/internal/model"
	"github.com/jinsu133/airpermit-law-alert/internal/util"
)

// billSource tracks legislative bills through the open-assembly API. Its
// responses are positional: a 2-element array of head metadata plus rows.
type billSource struct {
	cfg    config.BillConfig
	http   config.HTTPConfig
	base   string
	key    string
	cutoff string
	flt    *filter.Engine
	client *http.Client
}

func NewBill(cfg config.Config, key string, flt *filter.Engine, client *http.Client) *billSource {
	return &billSource{
		cfg:    cfg.Bill,
		http:   cfg.HTTP,
		base:   cfg.Bill.BaseURL,
		key:    key,
		cutoff: cfg.CutoffDate,
		flt:    flt,
		client: client,
	}
}

func (b *billSource) Name() string     { return "bill" }
func (b *billSource) Kind() model.Kind { return model.KindBill }

// Tasks crosses the statute keywords with the configured legislative sessions.
func (b *billSource) Tasks() []Task {
	out := make([]Task, 0, len(b.cfg.Ages)*len(b.cfg.LawKeywords))
	for _, age := range b.cfg.Ages {
		for _, kw := range b.cfg.LawKeywords {
			out = append(out, Task{Query: kw, Extra: map[string]string{"age": age}})
		}
	}
	return out
}

func (b *billSource) SummaryFields() []FieldLabel {
	return []FieldLabel{
		{Label: "의안번호", Key: "bill_no"},
		{Label: "처리결과", Key: "proc_result"},
		{Label: "제안일", Key: "propose_dt"},
	}
}

func (b *billSource) call(ctx context.Context, service string, params map[string]string) (map[string]any, error) {
	v := url.Values{}
	v.Set("KEY", b.key)
	v.Set("Type", "json")
	v.Set("pIndex", "1")
	for k, val := range params {
		v.Set(k, val)
	}
	u := strings.TrimRight(b.base, "/") + "/" + service + "?" + v.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if b.http.UserAgent != "" {
		req.Header.Set("User-Agent", b.http.UserAgent)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		metrics.FetchRequests.WithLabelValues(b.Name(), "error").Inc()
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	resp.Body.Close()
	if err != nil {
		metrics.FetchRequests.WithLabelValues(b.Name(), "error").Inc()
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		metrics.FetchRequests.WithLabelValues(b.Name(), "error").Inc()
		return nil, fmt.Errorf("assembly %s: status %d: %s", service, resp.StatusCode, strings.TrimSpace(string(body[:min(len(body), 256)])))
	}
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		metrics.FetchRequests.WithLabelValues(b.Name(), "error").Inc()
		return nil, fmt.Errorf("assembly %s: decode: %w", service, err)
	}
	metrics.FetchRequests.WithLabelValues(b.Name(), "ok").Inc()
	return data, nil
}

// extractRows digs the row array out of the positional response shape
// {"SERVICE": [{"head": [...]}, {"row": [...]}]}. A single-row response comes
// back as a bare object instead of an array.
func extractRows(data map[string]any) []map[string]any {
	for _, v := range data {
		arr, ok := v.([]any)
		if !ok {
			continue
		}
		for _, elem := range arr {
			m, ok := elem.(map[string]any)
			if !ok {
				continue
			}
			rows, ok := m["row"]
			if !ok {
				continue
			}
			return coerceSlice(rows)
		}
	}
	return nil
}

// FetchVersions searches one bill keyword within one legislative session
// (extra["age"]) and returns every in-scope proposal at or after the floor.
func (b *billSource) FetchVersions(ctx context.Context, query string, extra map[string]string) ([]model.ChangeEvent, error) {
	params := map[string]string{"BILL_NM": query, "pSize": "100"}
	if age := extra["age"]; age != "" {
		params["AGE"] = age
	}
	data, err := b.call(ctx, b.cfg.Service, params)
	if err != nil {
		return nil, err
	}

	floor := util.DateNum(b.cutoff)
	seen := map[string]bool{}
	var out []model.ChangeEvent
	for _, row := range extractRows(data) {
		billID := pickVal(row, "BILL_ID", "billId")
		if billID == "" {
			continue
		}
		title := pickVal(row, "BILL_NAME", "TITLE")
		if !b.flt.KeepBill(title) {
			continue
		}
		propose := util.NormalizeDate(pickVal(row, "PROPOSE_DT", "RST_PROPOSE_DT"))
		if propose == "" || util.DateNum(propose) < floor {
			continue
		}
		key := billID + "|" + propose
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, model.ChangeEvent{
			Status:        model.StatusMod,
			StatusKo:      model.StatusMod.Korean(),
			Kind:          model.KindBill,
			Title:         title,
			Date:          propose,
			ID:            billID,
			DiffURL:       nil,
			ChangeSummary: backfillSummary(b.cutoff),
			Source:        "backfill",
			DetectedAtUTC: util.ISOFromDate(propose, util.NowUTCISO()),
		})
	}
	metrics.Events.WithLabelValues(b.Name()).Add(float64(len(out)))
	return out, nil
}

// Snapshots runs two passes over the current session: a direct name search
// per tracked statute, then the recent-bill services under the strict keyword
// filter. Deduplicated by bill id, newest proposals first, capped.
func (b *billSource) Snapshots(ctx context.Context) []model.Snapshot {
	age := b.cfg.Age
	if age == "" || strings.EqualFold(age, "auto") {
		age = currentAssemblyAge(time.Now())
	}

	var out []model.Snapshot
	seen := map[string]bool{}

	add := func(row map[string]any) {
		billID := pickVal(row, "BILL_ID", "billId")
		if billID == "" || seen[billID] {
			return
		}
		title := pickVal(row, "BILL_NAME", "TITLE", "billName")
		if !b.flt.KeepBill(title) {
			return
		}
		fields := map[string]string{
			"bill_no":     pickVal(row, "BILL_NO", "BILLNO", "billNo"),
			"bill_name":   title,
			"propose_dt":  util.NormalizeDate(pickVal(row, "PROPOSE_DT", "proposeDt", "RST_PROPOSE_DT")),
			"proc_result": pickVal(row, "PROC_RESULT", "PROC_RESULT_CD"),
		}
		seen[billID] = true
		out = append(out, model.Snapshot{
			Key:       billID,
			StatusKey: fields["bill_no"] + "|" + fields["proc_result"] + "|" + fields["propose_dt"],
			Title:     title,
			Date:      fields["propose_dt"],
			ID:        billID,
			DiffURL:   BillDiffURL(billID),
			Fields:    fields,
		})
	}

	for _, kw := range b.cfg.LawKeywords {
		data, err := b.call(ctx, b.cfg.Service, map[string]string{"BILL_NM": kw, "pSize": "50", "AGE": age})
		if err != nil {
			log.Printf("warn: bill search %q: %v", kw, err)
			continue
		}
		for _, row := range extractRows(data) {
			add(row)
		}
	}

	for _, svc := range b.cfg.Recent {
		size := svc.PageSize
		if size <= 0 {
			size = 100
		}
		data, err := b.call(ctx, svc.Service, map[string]string{"pSize": fmt.Sprint(size)})
		if err != nil {
			log.Printf("warn: bill recent %q: %v", svc.Label, err)
			continue
		}
		for _, row := range extractRows(data) {
			add(row)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return util.DateNum(out[i].Date) > util.DateNum(out[j].Date)
	})
	if len(out) > b.cfg.MaxItems {
		out = out[:b.cfg.MaxItems]
	}
	return out
}

func BillDiffURL(billID string) string {
	return "https://likms.assembly.go.kr/bill/billDetail.do?billId=" + url.QueryEscape(billID)
}
