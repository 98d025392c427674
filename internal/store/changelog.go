package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/jinsu133/airpermit-law-alert/internal/model"
)

// LoadHistory reads the cumulative changelog. A missing or corrupt file is
// never fatal: losing the ability to append recent data would be worse than
// re-deriving it, so parse failures degrade to empty prior state with a
// warning. When the history file is absent, the legacy published changelog is
// accepted as seed input, including its old bare-array form.
func LoadHistory(path, legacyPath string) model.Changelog {
	b, err := os.ReadFile(path)
	if err != nil {
		if legacyPath != "" {
			if lb, lerr := os.ReadFile(legacyPath); lerr == nil {
				b = lb
			}
		}
		if b == nil {
			return model.Changelog{}
		}
	}

	var cl model.Changelog
	if err := json.Unmarshal(b, &cl); err == nil {
		return cl
	}
	var items []model.ChangeEvent
	if err := json.Unmarshal(b, &items); err == nil {
		return model.Changelog{Items: items}
	}
	log.Printf("warn: changelog unreadable, starting from empty state: %s", path)
	return model.Changelog{}
}

// SaveHistory overwrites the changelog in full. The destructive overwrite is
// safe only because the merge already folded prior data in. A failed write is
// surfaced to the caller; it must fail the run.
func SaveHistory(path string, cl model.Changelog) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("save changelog: %w", err)
	}
	b, err := marshalJSON(cl)
	if err != nil {
		return fmt.Errorf("save changelog: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("save changelog: %w", err)
	}
	return nil
}

func marshalJSON(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
