package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinsu133/airpermit-law-alert/internal/config"
	"github.com/jinsu133/airpermit-law-alert/internal/filter"
	"github.com/jinsu133/airpermit-law-alert/internal/model"
	"github.com/jinsu133/airpermit-law-alert/internal/publish"
	"github.com/jinsu133/airpermit-law-alert/internal/source"
	"github.com/jinsu133/airpermit-law-alert/internal/store"
)

type fakeSource struct {
	name    string
	kind    model.Kind
	tasks   []source.Task
	fetch   func(query string, extra map[string]string) ([]model.ChangeEvent, error)
	snaps   []model.Snapshot
	queried []string
}

func (f *fakeSource) Name() string     { return f.name }
func (f *fakeSource) Kind() model.Kind { return f.kind }
func (f *fakeSource) Tasks() []source.Task {
	return f.tasks
}
func (f *fakeSource) FetchVersions(_ context.Context, query string, extra map[string]string) ([]model.ChangeEvent, error) {
	f.queried = append(f.queried, query)
	if f.fetch == nil {
		return nil, nil
	}
	return f.fetch(query, extra)
}
func (f *fakeSource) Snapshots(context.Context) []model.Snapshot { return f.snaps }
func (f *fakeSource) SummaryFields() []source.FieldLabel {
	return []source.FieldLabel{
		{Label: "공포일자", Key: "ld"},
		{Label: "공포번호", Key: "ln"},
	}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		CutoffDate: "20200101",
		Law:        config.LawConfig{Names: []string{"대기환경보전법"}},
		Paths: config.PathsConfig{
			DataDir: filepath.Join(dir, "data"),
			OutDir:  filepath.Join(dir, "public"),
		},
	}
}

func testCreds() config.Credentials {
	return config.Credentials{LawOC: "oc", AssemblyKey: "key"}
}

func backfillEvent(id, date string) model.ChangeEvent {
	return model.ChangeEvent{
		Status:        model.StatusMod,
		Kind:          model.KindLaw,
		Title:         "대기환경보전법",
		Date:          date,
		ID:            id,
		Source:        "backfill",
		DetectedAtUTC: date[0:4] + "-" + date[4:6] + "-" + date[6:8] + "T00:00:00Z",
	}
}

func readChanges(t *testing.T, cfg config.Config) publish.ChangesPayload {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(cfg.Paths.OutDir, "changes.json"))
	require.NoError(t, err)
	var p publish.ChangesPayload
	require.NoError(t, json.Unmarshal(b, &p))
	return p
}

func readUpdates(t *testing.T, cfg config.Config) publish.UpdatesPayload {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(cfg.Paths.OutDir, "updates.json"))
	require.NoError(t, err)
	var p publish.UpdatesPayload
	require.NoError(t, json.Unmarshal(b, &p))
	return p
}

func TestRunAbortsWithoutCredentials(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, config.Credentials{}, filter.New(cfg), nil, false)

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LAW_OC")
	_, statErr := os.Stat(filepath.Join(cfg.Paths.OutDir, "updates.json"))
	assert.True(t, os.IsNotExist(statErr), "no partial run is attempted")
}

func TestRunFailSoftAcrossQueries(t *testing.T) {
	cfg := testConfig(t)
	broken := &fakeSource{
		name: "law", kind: model.KindLaw,
		tasks: []source.Task{{Query: "q1"}, {Query: "q2"}},
		fetch: func(string, map[string]string) ([]model.ChangeEvent, error) {
			return nil, errors.New("connection refused")
		},
	}
	healthy := &fakeSource{
		name: "bill", kind: model.KindBill,
		tasks: []source.Task{{Query: "q3"}},
		fetch: func(string, map[string]string) ([]model.ChangeEvent, error) {
			ev := backfillEvent("PRC_B2", "20230601")
			ev.Kind = model.KindBill
			return []model.ChangeEvent{ev}, nil
		},
	}

	p := New(cfg, testCreds(), filter.New(cfg), []source.Source{broken, healthy}, false)
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, []string{"q1", "q2"}, broken.queried, "a failing query never aborts the batch")
	assert.Equal(t, []string{"q3"}, healthy.queried)

	changes := readChanges(t, cfg)
	require.Len(t, changes.Items, 1)
	assert.Equal(t, "PRC_B2", changes.Items[0].ID)
}

func TestRunSeedsOnceThenMergesDeltas(t *testing.T) {
	cfg := testConfig(t)
	src := &fakeSource{
		name: "law", kind: model.KindLaw,
		tasks: []source.Task{{Query: "대기환경보전법"}},
		fetch: func(string, map[string]string) ([]model.ChangeEvent, error) {
			return []model.ChangeEvent{backfillEvent("18469|20211231|일부개정", "20211231")}, nil
		},
		snaps: []model.Snapshot{{
			Key:       "대기환경보전법",
			StatusKey: "20211231|18469|일부개정",
			Title:     "대기환경보전법",
			Date:      "20211231",
			ID:        "18469|20211231|일부개정",
			Fields:    map[string]string{"ld": "20211231", "ln": "18469"},
		}},
	}

	p := New(cfg, testCreds(), filter.New(cfg), []source.Source{src}, false)
	require.NoError(t, p.Run(context.Background()))

	changes := readChanges(t, cfg)
	assert.True(t, changes.Stats.SeededNow)
	assert.Equal(t, "20200101", changes.RangeStartYMD)
	require.Len(t, changes.Items, 1)

	updates := readUpdates(t, cfg)
	require.Len(t, updates.Items, 1)
	assert.Equal(t, model.StatusNew, updates.Items[0].Status)
	assert.Equal(t, "신규 감지", updates.Items[0].ChangeSummary)

	// Second run, nothing changed: no reseed, no growth, status settles to OK.
	require.NoError(t, p.Run(context.Background()))
	changes = readChanges(t, cfg)
	assert.False(t, changes.Stats.SeededNow)
	assert.Len(t, changes.Items, 1, "idempotent: rerunning never duplicates history")

	updates = readUpdates(t, cfg)
	require.Len(t, updates.Items, 1)
	assert.Equal(t, model.StatusOK, updates.Items[0].Status)
	assert.Equal(t, 0, updates.Stats.DeltaCountThisRun)
}

func TestRunDetectsModification(t *testing.T) {
	cfg := testConfig(t)
	src := &fakeSource{
		name: "law", kind: model.KindLaw,
		snaps: []model.Snapshot{{
			Key:       "대기환경보전법",
			StatusKey: "20211231|18469|일부개정",
			Title:     "대기환경보전법",
			Date:      "20211231",
			ID:        "18469|20211231|일부개정",
			Fields:    map[string]string{"ld": "20211231", "ln": "18469"},
		}},
	}
	p := New(cfg, testCreds(), filter.New(cfg), []source.Source{src}, false)
	require.NoError(t, p.Run(context.Background()))

	// A new promulgation shows up.
	src.snaps = []model.Snapshot{{
		Key:       "대기환경보전법",
		StatusKey: "20230601|19000|일부개정",
		Title:     "대기환경보전법",
		Date:      "20230601",
		ID:        "19000|20230601|일부개정",
		Fields:    map[string]string{"ld": "20230601", "ln": "19000"},
	}}
	require.NoError(t, p.Run(context.Background()))

	updates := readUpdates(t, cfg)
	require.Len(t, updates.Items, 1)
	assert.Equal(t, model.StatusMod, updates.Items[0].Status)
	assert.Contains(t, updates.Items[0].ChangeSummary, "공포일자: 20211231 -> 20230601")
	assert.Contains(t, updates.Items[0].ChangeSummary, "공포번호: 18469 -> 19000")

	// Both versions are now historical facts.
	changes := readChanges(t, cfg)
	assert.Len(t, changes.Items, 2)
	assert.Equal(t, "19000|20230601|일부개정", changes.Items[0].ID, "newest first")
}

func TestRunNonDestructiveWhenSourceGoesQuiet(t *testing.T) {
	cfg := testConfig(t)
	src := &fakeSource{
		name: "law", kind: model.KindLaw,
		tasks: []source.Task{{Query: "대기환경보전법"}},
		fetch: func(string, map[string]string) ([]model.ChangeEvent, error) {
			return []model.ChangeEvent{backfillEvent("18469|20211231|일부개정", "20211231")}, nil
		},
	}
	p := New(cfg, testCreds(), filter.New(cfg), []source.Source{src}, false)
	require.NoError(t, p.Run(context.Background()))
	require.Len(t, readChanges(t, cfg).Items, 1)

	// The source returns nothing from now on; the recorded fact must survive.
	src.fetch = func(string, map[string]string) ([]model.ChangeEvent, error) { return nil, nil }
	require.NoError(t, p.Run(context.Background()))

	changes := readChanges(t, cfg)
	require.Len(t, changes.Items, 1)
	assert.Equal(t, "18469|20211231|일부개정", changes.Items[0].ID)
}

func TestRunFallbackItemsWhenWatchGoesDark(t *testing.T) {
	cfg := testConfig(t)
	// Seed prior state by hand, as if an earlier run had succeeded.
	st := store.LoadState(filepath.Join(cfg.Paths.DataDir, "state.json"))
	st.Laws["대기환경보전법"] = store.Entry{
		StatusKey: "20211231|18469|일부개정",
		Fields:    map[string]string{"ld": "20211231", "ln": "18469", "reform_type": "일부개정", "law_id": "230123"},
	}
	require.NoError(t, store.SaveState(filepath.Join(cfg.Paths.DataDir, "state.json"), st))

	src := &fakeSource{name: "law", kind: model.KindLaw} // no snapshots: API is dark
	p := New(cfg, testCreds(), filter.New(cfg), []source.Source{src}, false)
	require.NoError(t, p.Run(context.Background()))

	updates := readUpdates(t, cfg)
	assert.True(t, updates.Stats.Fallback["laws"])
	require.Len(t, updates.Items, 1)
	assert.Equal(t, model.StatusOK, updates.Items[0].Status)
	assert.Equal(t, "대기환경보전법", updates.Items[0].Title)
	assert.NotEmpty(t, updates.Items[0].Note)
	require.NotNil(t, updates.Items[0].DiffURL)
	assert.Contains(t, *updates.Items[0].DiffURL, "lsInfoP.do")
}

func TestRunReportsTotals(t *testing.T) {
	cfg := testConfig(t)
	src := &fakeSource{
		name: "law", kind: model.KindLaw,
		tasks: []source.Task{{Query: "대기환경보전법"}},
		fetch: func(string, map[string]string) ([]model.ChangeEvent, error) {
			return []model.ChangeEvent{
				backfillEvent("a", "20210101"),
				backfillEvent("b", "20230505"),
				backfillEvent("c", "20200601"),
			}, nil
		},
	}
	p := New(cfg, testCreds(), filter.New(cfg), []source.Source{src}, false)
	require.NoError(t, p.Run(context.Background()))

	changes := readChanges(t, cfg)
	assert.Equal(t, 3, changes.Stats.TotalCumulative)
	assert.Equal(t, 3, changes.Stats.CountByKind[model.KindLaw])
	require.Len(t, changes.Items, 3)
	assert.Equal(t, "2023-05-05T00:00:00Z", changes.Items[0].DetectedAtUTC)
	assert.Equal(t, "2021-01-01T00:00:00Z", changes.Items[1].DetectedAtUTC)
	assert.Equal(t, "2020-06-01T00:00:00Z", changes.Items[2].DetectedAtUTC)

	var h publish.Health
	b, err := os.ReadFile(filepath.Join(cfg.Paths.OutDir, "health.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &h))
	assert.NotEmpty(t, h.LastSuccessKST)
	assert.NotEmpty(t, h.LastSuccessUTC)
}
