package domain

import "time"

// Generation identifies one logical search. Exactly one is current at a time.
type Generation uint64

type SessionState string

const (
	StateIdle     SessionState = "idle"
	StateCounting SessionState = "counting"
	StateFetching SessionState = "fetching"
	StateDraining SessionState = "draining"
	StateComplete SessionState = "complete"
	StateAborted  SessionState = "aborted"
)

// Terminal reports whether no further transitions happen for this generation.
func (s SessionState) Terminal() bool {
	return s == StateComplete || s == StateAborted
}

// Snapshot is an immutable view of the session published after every mutation.
type Snapshot struct {
	RunID        string           `json:"run_id,omitempty"`
	Generation   Generation       `json:"generation"`
	State        SessionState     `json:"state"`
	Degraded     bool             `json:"degraded"`
	Query        SearchQuery      `json:"query"`
	Total        int              `json:"total"`
	Pages        int              `json:"pages"`
	PagesSettled int              `json:"pages_settled"`
	PagesFailed  int              `json:"pages_failed"`
	Sort         *SortConfig      `json:"sort,omitempty"`
	Settings     CashflowSettings `json:"settings"`
	Properties   []Property       `json:"properties"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// SearchRun is the journal record of one generation.
type SearchRun struct {
	ID         string       `json:"id"`
	Generation Generation   `json:"generation"`
	Query      SearchQuery  `json:"query"`
	State      SessionState `json:"state"`
	Total      int          `json:"total"`
	Received   int          `json:"received"`
	Degraded   bool         `json:"degraded"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}
