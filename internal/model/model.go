package model

// Status is the lifecycle tag of a document relative to previously known state.
type Status string

const (
	StatusNew Status = "NEW"
	StatusMod Status = "MOD"
	StatusOK  Status = "OK"
)

// Korean returns the display label used in the published documents.
func (s Status) Korean() string {
	switch s {
	case StatusNew:
		return "신규"
	case StatusMod:
		return "변경"
	case StatusOK:
		return "유지"
	}
	return string(s)
}

// Rank orders statuses for display dedup: NEW > MOD > OK.
func (s Status) Rank() int {
	switch s {
	case StatusNew:
		return 3
	case StatusMod:
		return 2
	case StatusOK:
		return 1
	}
	return 0
}

// Kind is the source category, fixed per adapter.
type Kind string

const (
	KindLaw  Kind = "법령" // statute
	KindRule Kind = "고시" // administrative rule / notice
	KindBill Kind = "의안" // legislative bill
)

// Order positions kinds for the published item ordering.
func (k Kind) Order() int {
	switch k {
	case KindLaw:
		return 0
	case KindRule:
		return 1
	case KindBill:
		return 2
	}
	return 9
}

// ChangeEvent is the normalized record for all sources. Events never mutate
// after creation.
type ChangeEvent struct {
	Status        Status  `json:"status"`
	StatusKo      string  `json:"status_ko,omitempty"`
	Kind          Kind    `json:"kind"`
	Title         string  `json:"title"`
	Date          string  `json:"date"` // YYYYMMDD, promulgation/proposal date
	ID            string  `json:"id"`   // stable within its source's ID space
	DiffURL       *string `json:"diff_url"`
	ChangeSummary string  `json:"change_summary,omitempty"`
	Source        string  `json:"source,omitempty"` // "backfill" or "delta"
	Note          string  `json:"note,omitempty"`
	DetectedAtUTC string  `json:"detected_at_utc"` // ISO-8601 UTC, the sort key
}

// Key is the deduplication identity: two events with the same (id, date) are
// the same historical fact regardless of which fetch produced them.
func (e ChangeEvent) Key() string {
	return e.ID + "|" + e.Date
}

// Changelog is the persisted aggregate, sorted descending by detected_at_utc.
type Changelog struct {
	SeededFrom       string        `json:"seeded_from,omitempty"`
	LastGeneratedUTC string        `json:"last_generated_at_utc,omitempty"`
	Items            []ChangeEvent `json:"items"`
}

// Snapshot is one source record observed during a watch pass, before any
// status decision. Fields carries the raw values used for change summaries
// and state tracking.
type Snapshot struct {
	Key       string // state map key (title, title::num, or bill id)
	StatusKey string // composite of the version-identifying fields
	Title     string
	Date      string // YYYYMMDD
	ID        string
	DiffURL   string
	Fields    map[string]string
}
