package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinsu133/airpermit-law-alert/internal/model"
)

func TestLoadHistoryMissingFile(t *testing.T) {
	cl := LoadHistory(filepath.Join(t.TempDir(), "nope.json"), "")
	assert.Empty(t, cl.Items)
	assert.Empty(t, cl.SeededFrom)
}

func TestLoadHistoryCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	cl := LoadHistory(path, "")
	assert.Empty(t, cl.Items, "corrupt prior state degrades to empty, never fatal")
}

func TestLoadHistoryLegacyBareArray(t *testing.T) {
	dir := t.TempDir()
	legacy := filepath.Join(dir, "changelog.json")
	require.NoError(t, os.WriteFile(legacy, []byte(`[{"id":"A1","date":"20200101","diff_url":null,"detected_at_utc":"2020-01-01T00:00:00Z"}]`), 0o644))

	cl := LoadHistory(filepath.Join(dir, "history.json"), legacy)
	require.Len(t, cl.Items, 1)
	assert.Equal(t, "A1", cl.Items[0].ID)
}

func TestSaveHistoryRoundTripCreatesDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "history.json")
	cl := model.Changelog{
		SeededFrom: "20200101",
		Items: []model.ChangeEvent{{
			Status:        model.StatusMod,
			Kind:          model.KindLaw,
			Title:         "대기환경보전법",
			Date:          "20211231",
			ID:            "18469|20211231|일부개정",
			DetectedAtUTC: "2021-12-31T00:00:00Z",
		}},
	}
	require.NoError(t, SaveHistory(path, cl))

	got := LoadHistory(path, "")
	assert.Equal(t, cl.SeededFrom, got.SeededFrom)
	require.Len(t, got.Items, 1)
	assert.Equal(t, cl.Items[0], got.Items[0])
}

func TestSaveHistoryOverwritesWholesale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, SaveHistory(path, model.Changelog{Items: []model.ChangeEvent{{ID: "old", Date: "20200101"}}}))
	require.NoError(t, SaveHistory(path, model.Changelog{Items: []model.ChangeEvent{{ID: "new", Date: "20230601"}}}))

	got := LoadHistory(path, "")
	require.Len(t, got.Items, 1)
	assert.Equal(t, "new", got.Items[0].ID)
}

func TestStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "state.json")
	s := LoadState(path)
	require.NotNil(t, s.Laws)
	require.NotNil(t, s.Bills)

	s.Laws["대기환경보전법"] = Entry{
		StatusKey: "20211231|18469|일부개정",
		Fields:    map[string]string{"ld": "20211231", "ln": "18469"},
	}
	s.LastRun = "2026-08-31T09:00:00.000+09:00"
	require.NoError(t, SaveState(path, s))

	got := LoadState(path)
	assert.Equal(t, s.Laws["대기환경보전법"], got.Laws["대기환경보전법"])
	assert.Equal(t, s.LastRun, got.LastRun)
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")
}

func TestLoadStateCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("???"), 0o644))

	s := LoadState(path)
	assert.Empty(t, s.Laws)
	assert.NotNil(t, s.Admruls, "maps are initialized even after a bad read")
}

func TestStateByKind(t *testing.T) {
	s := LoadState(filepath.Join(t.TempDir(), "state.json"))
	s.Bills["PRC_A1"] = Entry{StatusKey: "x"}
	assert.Len(t, s.ByKind(model.KindBill), 1)
	assert.Empty(t, s.ByKind(model.KindLaw))
	assert.Nil(t, s.ByKind(model.Kind("기타")))
}
