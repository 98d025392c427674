package source

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jinsu133/airpermit-law-alert/internal/config"
	"github.com/jinsu133/airpermit-law-alert/internal/filter"
	"github.com/jinsu133/airpermit-law-alert/internal/model"
)

// Task is one backfill query for a source: a free-text query plus
// source-specific extra parameters (e.g. the legislative session for bills).
type Task struct {
	Query string
	Extra map[string]string
}

// FieldLabel pairs a display label with a snapshot field key for building
// change summaries.
type FieldLabel struct {
	Label string
	Key   string
}

type Source interface {
	Name() string
	Kind() model.Kind
	// Tasks enumerates the source's fixed backfill catalog.
	Tasks() []Task
	// FetchVersions runs one backfill query and returns the historical
	// versions at or after the date floor. A failed query returns an error;
	// the driver logs it and moves on, it never aborts the batch.
	FetchVersions(ctx context.Context, query string, extra map[string]string) ([]model.ChangeEvent, error)
	// Snapshots observes the current state of every tracked document for
	// delta detection. Per-query failures are logged and skipped inside.
	Snapshots(ctx context.Context) []model.Snapshot
	// SummaryFields lists the fields compared when building change summaries.
	SummaryFields() []FieldLabel
}

func NewFromConfig(name string, cfg config.Config, creds config.Credentials, flt *filter.Engine, client *http.Client) (Source, error) {
	switch name {
	case "law":
		return NewLaw(cfg, creds.LawOC, client), nil
	case "admrul":
		return NewAdmrul(cfg, creds.LawOC, flt, client), nil
	case "bill":
		return NewBill(cfg, creds.AssemblyKey, flt, client), nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", name)
	}
}
