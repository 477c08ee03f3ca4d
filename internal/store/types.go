package store

import "time"

// Project is a row of the projects table: one per archived codebase root.
type Project struct {
	ID        int64
	HumanKey  string
	Slug      string
	CreatedTs time.Time
}

// Agent is a row of the agents table: one registered participant per project.
type Agent struct {
	ID                 int64
	ProjectID          int64
	Name               string
	Program            string
	Model              string
	Task               string
	AttachmentsPolicy  string
	ContactPolicy      string
	InceptionTs        time.Time
	LastActiveTs       time.Time
}

// Message is a row of the messages table.
type Message struct {
	ID              int64
	ExternalID      string
	ProjectID       int64
	ThreadID        string
	Subject         string
	BodyMD          string
	SenderID        int64
	CreatedTs       time.Time
	Importance      string
	AckRequired     bool
	AttachmentsJSON string
}

// RecipientKind distinguishes to/cc/bcc fan-out.
type RecipientKind string

const (
	RecipientTo  RecipientKind = "to"
	RecipientCC  RecipientKind = "cc"
	RecipientBCC RecipientKind = "bcc"
)

// Recipient is a row of the message_recipients table.
type Recipient struct {
	MessageID int64
	AgentID   int64
	Kind      RecipientKind
	ReadTs    time.Time
	AckTs     time.Time
}

// Reservation is a row of the reservations table: an advisory file-path
// lease held by one agent.
type Reservation struct {
	ID          int64
	ProjectID   int64
	AgentID     int64
	PathPattern string
	Exclusive   bool
	Reason      string
	CreatedTs   time.Time
	ExpiresTs   time.Time
	ReleasedTs  time.Time
}

// Active reports whether the reservation is neither released nor expired as
// of now.
func (r Reservation) Active(now time.Time) bool {
	return r.ReleasedTs.IsZero() && now.Before(r.ExpiresTs)
}

// ContactState is the lifecycle state of a contact link between two agents.
type ContactState string

const (
	ContactPending  ContactState = "pending"
	ContactApproved ContactState = "approved"
	ContactDenied   ContactState = "denied"
	ContactExpired  ContactState = "expired"
)

// Contact is a row of the contacts table, keyed by the ordered pair
// (agent_a, agent_b) with agent_a < agent_b by convention.
type Contact struct {
	ProjectID int64
	AgentA    int64
	AgentB    int64
	State     ContactState
	CreatedTs time.Time
	DecidedTs time.Time
	ExpiresTs time.Time
}

// Build is a row of the builds table, recording a build/test run reported by
// an agent via record_build.
type Build struct {
	ID          int64
	ProjectID   int64
	StartedTs   time.Time
	FinishedTs  time.Time
	Status      string
	SummaryJSON string
}

// OrderedPair returns (a, b) sorted ascending, matching the contacts table's
// (agent_a, agent_b) convention so a pair is stored exactly once regardless
// of which agent initiated the request.
func OrderedPair(x, y int64) (int64, int64) {
	if x <= y {
		return x, y
	}
	return y, x
}
