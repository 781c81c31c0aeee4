package core

import "time"

const (
	DeskUserAgent = "deskbot/" + DeskVersion
	DeskVersion   = "0.1.0"
)

type Identity struct {
	UserID    int64     `json:"user_id"`
	Phone     string    `json:"phone"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	UpdatedAt time.Time `json:"updated_at"`
}

type FAQEntry struct {
	ID       int64  `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// FAQRow is a single row of a bulk FAQ source, in file order.
// Line is the 1-based source line, used only for error reporting.
type FAQRow struct {
	Line     int
	Question string
	Answer   string
}

type MergeMode string

const (
	MergeModeMerge MergeMode = "merge"
	MergeModeSkip  MergeMode = "skip"
)

type UpsertResult int

const (
	Inserted UpsertResult = iota + 1
	Updated
)

type MergeResult struct {
	Inserted int
	Updated  int
	Skipped  int
	Errors   []error
}

type EscalationMode string

const (
	EscalationPassive EscalationMode = "passive"
	EscalationActive  EscalationMode = "active"
)

type OutcomeKind string

const (
	OutcomeNotified      OutcomeKind = "notified"
	OutcomeTicketCreated OutcomeKind = "ticket_created"
	OutcomeFailed        OutcomeKind = "failed"
)

type Outcome struct {
	Kind     OutcomeKind
	TicketID string
	Err      error
}

type Escalation struct {
	ID        int64
	UserID    int64
	Question  string
	Mode      EscalationMode
	Status    OutcomeKind
	TicketID  string
	Error     string
	CreatedAt time.Time
}

type Category struct {
	Code string `json:"code"`
	ID   int64  `json:"id"`
}

type Ticket struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
	ClientID    string `json:"client_id"`
	CategoryID  int64  `json:"category_id"`
}
