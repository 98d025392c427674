package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jinsu133/airpermit-law-alert/internal/metrics"
	"github.com/jinsu133/airpermit-law-alert/internal/util"
)

// lawSearchRequest issues one lawSearch.do query against the configured DRF
// bases in order, returning the first decodable 2xx response. Each attempt is
// a single shot bounded by the client timeout; exhausting every base is the
// caller's per-query soft failure.
func lawSearchRequest(ctx context.Context, client *http.Client, bases []string, ua, source string, params url.Values) (map[string]any, error) {
	var errs []string
	for _, base := range bases {
		u := strings.TrimRight(base, "/") + "/lawSearch.do?" + params.Encode()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		if ua != "" {
			req.Header.Set("User-Agent", ua)
		}
		resp, err := client.Do(req)
		if err != nil {
			metrics.FetchRequests.WithLabelValues(source, "error").Inc()
			errs = append(errs, fmt.Sprintf("%s -> %v", u, err))
			continue
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		resp.Body.Close()
		if err != nil {
			metrics.FetchRequests.WithLabelValues(source, "error").Inc()
			errs = append(errs, fmt.Sprintf("%s -> read: %v", u, err))
			continue
		}
		if resp.StatusCode/100 != 2 {
			metrics.FetchRequests.WithLabelValues(source, "error").Inc()
			errs = append(errs, fmt.Sprintf("%s -> status %d", u, resp.StatusCode))
			continue
		}
		var data map[string]any
		if err := json.Unmarshal(body, &data); err != nil {
			metrics.FetchRequests.WithLabelValues(source, "error").Inc()
			errs = append(errs, fmt.Sprintf("%s -> decode: %v", u, err))
			continue
		}
		metrics.FetchRequests.WithLabelValues(source, "ok").Inc()
		return data, nil
	}
	return nil, fmt.Errorf("law api: all bases failed: %s", strings.Join(errs, "; "))
}

func lawSearchParams(oc, target, query, display string) url.Values {
	v := url.Values{}
	v.Set("OC", oc)
	v.Set("target", target)
	v.Set("type", "JSON")
	v.Set("query", query)
	v.Set("display", display)
	v.Set("sort", "ddes")
	return v
}

// backfillSummary is the fixed change_summary carried by backfilled events.
func backfillSummary(cutoff string) string {
	d := util.NormalizeDate(cutoff)
	if len(d) == 8 {
		d = d[0:4] + "-" + d[4:6] + "-" + d[6:8]
	}
	return fmt.Sprintf("기준일(%s) 이후 누적 백필", d)
}
