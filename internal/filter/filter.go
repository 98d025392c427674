package filter

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/jinsu133/airpermit-law-alert/internal/config"
)

// Engine evaluates the keyword rules that decide which source records belong
// to the tracked air-quality scope.
type Engine struct {
	lawSeeds     []string // statute names, normalized
	billKeywords []string // law + strict + extra keywords, normalized
	departments  []string // admrul owning-department substrings
}

func New(cfg config.Config) *Engine {
	e := &Engine{departments: cfg.Admrul.Departments}
	for _, s := range cfg.Law.Names {
		if n := Fold(s); n != "" {
			e.lawSeeds = append(e.lawSeeds, n)
		}
	}
	for _, group := range [][]string{cfg.Bill.LawKeywords, cfg.Bill.StrictKeywords, cfg.Bill.ExtraKeywords} {
		for _, s := range group {
			if n := Fold(s); n != "" {
				e.billKeywords = append(e.billKeywords, n)
			}
		}
	}
	return e
}

// Fold normalizes Korean text for comparison: NFC composition, whitespace
// removed, and the hangul middle dot unified (법률명 appear with either ㆍ or ·
// depending on the API).
func Fold(s string) string {
	s = norm.NFC.String(s)
	return strings.NewReplacer(" ", "", "\t", "", "ㆍ", "·").Replace(s)
}

// KeepBill reports whether a bill title falls inside the tracked scope.
func (e *Engine) KeepBill(title string) bool {
	t := Fold(title)
	if t == "" {
		return false
	}
	for _, kw := range e.billKeywords {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}

// AllowDepartment keeps rules owned by the configured ministry family.
// Records without a department are kept; an empty allowlist keeps everything.
func (e *Engine) AllowDepartment(dept string) bool {
	if dept == "" || len(e.departments) == 0 {
		return true
	}
	for _, d := range e.departments {
		if strings.Contains(dept, d) {
			return true
		}
	}
	return false
}

// MatchLawSeed reports whether a stored title belongs to one of the tracked
// statutes, used when reconstructing fallback items from prior state.
func (e *Engine) MatchLawSeed(title string) bool {
	t := Fold(title)
	for _, seed := range e.lawSeeds {
		if strings.HasPrefix(t, seed) {
			return true
		}
	}
	return false
}
