package store

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"

	"github.com/jinsu133/airpermit-law-alert/internal/model"
)

// Entry is the last observed version of one tracked document.
type Entry struct {
	StatusKey string            `json:"status_key"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// State is the per-kind watch state used for NEW/MOD/OK delta detection.
type State struct {
	Laws    map[string]Entry `json:"laws"`
	Admruls map[string]Entry `json:"admruls"`
	Bills   map[string]Entry `json:"bills"`
	LastRun string           `json:"last_run,omitempty"`
}

// ByKind returns the mutable state map for a source kind.
func (s *State) ByKind(k model.Kind) map[string]Entry {
	switch k {
	case model.KindLaw:
		return s.Laws
	case model.KindRule:
		return s.Admruls
	case model.KindBill:
		return s.Bills
	}
	return nil
}

func (s *State) init() {
	if s.Laws == nil {
		s.Laws = map[string]Entry{}
	}
	if s.Admruls == nil {
		s.Admruls = map[string]Entry{}
	}
	if s.Bills == nil {
		s.Bills = map[string]Entry{}
	}
}

// LoadState soft-fails to an empty state on a missing or corrupt file.
func LoadState(path string) State {
	var s State
	b, err := os.ReadFile(path)
	if err == nil {
		if uerr := json.Unmarshal(b, &s); uerr != nil {
			log.Printf("warn: state unreadable, starting fresh: %s: %v", path, uerr)
			s = State{}
		}
	}
	s.init()
	return s
}

// SaveState writes through a temp file so a crash mid-write cannot corrupt
// the previous state.
func SaveState(path string, s State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := marshalJSON(s)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
