package archive

import (
	"encoding/json"
	"fmt"
	"time"
)

// ProfileArtifact mirrors the Agent entity (minus its surrogate id) for
// agents/<name>/profile.json.
type ProfileArtifact struct {
	Name              string    `json:"name"`
	Program           string    `json:"program,omitempty"`
	Model             string    `json:"model,omitempty"`
	Task              string    `json:"task,omitempty"`
	AttachmentsPolicy string    `json:"attachments_policy"`
	ContactPolicy     string    `json:"contact_policy"`
	InceptionTs       time.Time `json:"inception_ts"`
	LastActiveTs      time.Time `json:"last_active_ts"`
}

// WriteProfile atomically (re)writes an agent's profile.json. Plain JSON,
// matching the other *.json archive artifacts — only *.md files carry a
// `---json` frontmatter block.
func (t Tree) WriteProfile(p ProfileArtifact) (string, error) {
	data, err := json.MarshalIndent(struct {
		ProfileArtifact
		Type string `json:"type"`
	}{p, "profile"}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal profile artifact: %w", err)
	}
	path := t.ProfilePath(p.Name)
	if err := WriteFileAtomic(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// AttachmentDescriptor mirrors the spec's Attachment Descriptor.
type AttachmentDescriptor struct {
	Type      string `json:"type"` // file | inline
	MediaType string `json:"media_type"`
	Path      string `json:"path,omitempty"`
	DataURI   string `json:"data_uri,omitempty"`
	Bytes     int64  `json:"bytes"`
	SHA1      string `json:"sha1,omitempty"`
	Original  string `json:"original,omitempty"`
	// ConversionFailed is set when the image could not be transcoded to
	// WebP and was kept inline/on-disk as its original media type instead.
	ConversionFailed bool `json:"conversion_failed,omitempty"`
}

// MessageFrontmatter mirrors the Message entity for the canonical
// messages/YYYY/MM/<id>.md artifact and its inbox/outbox mirror copies.
type MessageFrontmatter struct {
	ExternalID  string                 `json:"id"`
	ThreadID    string                 `json:"thread_id,omitempty"`
	Subject     string                 `json:"subject"`
	Sender      string                 `json:"sender"`
	To          []string               `json:"to,omitempty"`
	CC          []string               `json:"cc,omitempty"`
	BCC         []string               `json:"bcc,omitempty"`
	CreatedTs   time.Time              `json:"created_ts"`
	Importance  string                 `json:"importance"`
	AckRequired bool                   `json:"ack_required"`
	Attachments []AttachmentDescriptor `json:"attachments,omitempty"`
}

// WriteMessageBody renders fm with bodyMD as the Markdown body and writes
// the canonical artifact plus outbox/inbox mirrors, all atomically.
func (t Tree) WriteMessageBody(fm MessageFrontmatter, bodyMD string, recipients []string) (canonicalPath string, err error) {
	doc, err := RenderFrontmatter(fm, bodyMD)
	if err != nil {
		return "", err
	}

	canonicalPath = t.CanonicalMessagePath(fm.CreatedTs, fm.ExternalID)
	if err := WriteFileAtomic(canonicalPath, doc, 0o644); err != nil {
		return "", fmt.Errorf("write canonical message: %w", err)
	}

	outbox := t.OutboxMessagePath(fm.Sender, fm.CreatedTs, fm.ExternalID)
	if err := WriteFileAtomic(outbox, doc, 0o644); err != nil {
		return "", fmt.Errorf("write outbox mirror: %w", err)
	}

	for _, recipient := range recipients {
		inbox := t.InboxMessagePath(recipient, fm.CreatedTs, fm.ExternalID)
		if err := WriteFileAtomic(inbox, doc, 0o644); err != nil {
			return "", fmt.Errorf("write inbox mirror for %s: %w", recipient, err)
		}
	}
	return canonicalPath, nil
}

// ReservationArtifact mirrors a Reservation for claims/<sha1(pattern)>.json.
// Field names/JSON tags match spec.md §6.4's literal artifact shape
// ({agent, path_pattern, exclusive, reason, created, expires}) plus
// `released`, since the guard hook (internal/guardhook) greps these exact
// keys out of the file with sed rather than a JSON decoder. ReleasedTs is a
// pointer so it round-trips as absent (not a zero time.Time, which
// encoding/json's omitempty cannot suppress on a struct) while the
// reservation is still active.
type ReservationArtifact struct {
	Agent      string     `json:"agent"`
	Pattern    string     `json:"path_pattern"`
	Exclusive  bool       `json:"exclusive"`
	Reason     string     `json:"reason,omitempty"`
	CreatedTs  time.Time  `json:"created"`
	ExpiresTs  time.Time  `json:"expires"`
	ReleasedTs *time.Time `json:"released,omitempty"`
}

// WriteClaim atomically writes a reservation artifact keyed by the sha1 of
// its path pattern. Unlike message artifacts this is plain JSON, not
// `---json` frontmatter over a Markdown body — a reservation has no body.
func (t Tree) WriteClaim(r ReservationArtifact) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal reservation artifact: %w", err)
	}
	path := t.ClaimPath(r.Pattern)
	if err := WriteFileAtomic(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
