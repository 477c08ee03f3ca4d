// Package messaging implements the Messaging Engine: compose/fan-out/
// thread/reply with read and acknowledge receipts, composing the Contact
// Policy Engine, Attachment Pipeline, Archive Filesystem Layer, and Git
// Commit Coordinator under the project's advisory lock.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/Dicklesworthstone/agentmail/internal/apperr"
	"github.com/Dicklesworthstone/agentmail/internal/archive"
	"github.com/Dicklesworthstone/agentmail/internal/attachments"
	"github.com/Dicklesworthstone/agentmail/internal/contacts"
	"github.com/Dicklesworthstone/agentmail/internal/gitrepo"
	"github.com/Dicklesworthstone/agentmail/internal/ids"
	"github.com/Dicklesworthstone/agentmail/internal/lockfile"
	"github.com/Dicklesworthstone/agentmail/internal/store"
)

// Engine composes the collaborators needed to send and retrieve messages.
type Engine struct {
	Store      *store.Store
	Tree       archive.Tree
	Repo       *gitrepo.Coordinator
	Contacts   *contacts.Engine
	Pipeline   *attachments.Pipeline
	AutoContactIfBlocked bool
}

// RecipientSpec names recipients by agent name, grouped by to/cc/bcc.
type RecipientSpec struct {
	To, CC, BCC []string
}

// SendRequest is the input to Send.
type SendRequest struct {
	ProjectID       int64
	Sender          store.Agent
	Recipients      RecipientSpec
	Subject         string
	BodyMD          string
	Importance      string
	AckRequired     bool
	ThreadID        string
	AttachmentPaths []string
	EmbedPolicy     attachments.EmbedPolicy
	// Bypass skips the Contact Policy Engine check entirely. Set by
	// request_contact's ack-required intro message, which by definition must
	// reach a recipient whose policy would otherwise block the sender, and by
	// send_message when contact enforcement is turned off in the config.
	Bypass bool
}

// Delivery reports the outcome for a single recipient.
type Delivery struct {
	AgentName string
	Delivered bool
}

// SendResult is the output of Send.
type SendResult struct {
	Message     store.Message
	Deliveries  []Delivery
	Blocked     []string
	Attachments []archive.AttachmentDescriptor
}

// Send implements send_message (§4.8 steps 1-7).
func (e *Engine) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	if req.Importance == "" {
		req.Importance = "normal"
	}

	if err := e.Store.TouchAgent(ctx, req.Sender.ID); err != nil {
		return SendResult{}, err
	}

	named := dedupeNames(req.Recipients)
	if len(named) == 0 {
		return SendResult{}, apperr.New(apperr.Validation, "send_message requires at least one recipient across to/cc/bcc")
	}

	if strings.TrimSpace(req.Subject) == "" && strings.TrimSpace(req.BodyMD) == "" && len(req.AttachmentPaths) == 0 {
		return SendResult{}, apperr.New(apperr.Validation, "send_message requires a subject, a body, or at least one attachment")
	}

	var recipientInputs []store.RecipientInput
	var delivered []string
	var blocked []string
	for _, nr := range named {
		agent, err := e.Store.AgentByName(ctx, req.ProjectID, nr.name)
		if err != nil {
			blocked = append(blocked, nr.name)
			continue
		}
		if !req.Bypass {
			if err := e.Contacts.Allow(ctx, req.ProjectID, req.Sender, agent, req.ThreadID); err != nil {
				blocked = append(blocked, nr.name)
				if e.AutoContactIfBlocked {
					_, _ = e.Contacts.RequestContact(ctx, req.ProjectID, req.Sender.ID, agent.ID)
				}
				continue
			}
		}
		recipientInputs = append(recipientInputs, store.RecipientInput{AgentID: agent.ID, Kind: nr.kind})
		delivered = append(delivered, nr.name)
	}

	if len(recipientInputs) == 0 {
		return SendResult{Blocked: blocked}, apperr.New(apperr.ContactConsent, "no recipient accepted this message")
	}

	pipelineResult, err := e.Pipeline.Run(ctx, req.BodyMD, req.AttachmentPaths)
	if err != nil {
		return SendResult{}, fmt.Errorf("attachment pipeline: %w", err)
	}

	now := store.Now()
	msgID := ids.NewMessageID(now)
	threadID := req.ThreadID

	attachmentsJSON := encodeAttachments(pipelineResult.Attachments)
	msg, err := e.Store.InsertMessage(ctx, store.Message{
		ExternalID: msgID, ProjectID: req.ProjectID, ThreadID: threadID, Subject: req.Subject,
		BodyMD: pipelineResult.BodyMD, SenderID: req.Sender.ID, Importance: req.Importance,
		AckRequired: req.AckRequired, AttachmentsJSON: attachmentsJSON,
	}, recipientInputs)
	if err != nil {
		return SendResult{}, fmt.Errorf("insert message: %w", err)
	}

	if err := e.commitArtifacts(ctx, msg, req.Sender.Name, delivered, pipelineResult); err != nil {
		return SendResult{}, err
	}

	var deliveries []Delivery
	for _, name := range delivered {
		deliveries = append(deliveries, Delivery{AgentName: name, Delivered: true})
	}
	return SendResult{Message: msg, Deliveries: deliveries, Blocked: blocked, Attachments: pipelineResult.Attachments}, nil
}

func (e *Engine) commitArtifacts(ctx context.Context, msg store.Message, senderName string, recipients []string, pr attachments.Result) error {
	lockPath := fmt.Sprintf("%s/.am.lock", e.Tree.Root)
	lock, err := lockfile.Acquire(ctx, lockPath)
	if err != nil {
		return apperr.Wrap(apperr.ArchiveCommitFailed, err, "acquire project lock")
	}
	defer lock.Release()

	fm := archive.MessageFrontmatter{
		ExternalID: msg.ExternalID, ThreadID: msg.ThreadID, Subject: msg.Subject, Sender: senderName,
		To: recipients, CreatedTs: msg.CreatedTs, Importance: msg.Importance, AckRequired: msg.AckRequired,
		Attachments: pr.Attachments,
	}
	canonical, err := e.Tree.WriteMessageBody(fm, msg.BodyMD, recipients)
	if err != nil {
		return apperr.Wrap(apperr.ArchiveCommitFailed, err, "write message artifacts")
	}

	paths := []string{canonical}
	pre, err := e.Repo.CapturePreImage(paths)
	if err != nil {
		return apperr.Wrap(apperr.ArchiveCommitFailed, err, "capture pre-image")
	}

	kind := gitrepo.KindSend
	summary := fmt.Sprintf("send %s: %s", msg.ExternalID, msg.Subject)
	if n := len(pr.Attachments); n > 0 {
		var total int64
		for _, a := range pr.Attachments {
			total += a.Bytes
		}
		summary = fmt.Sprintf("%s (+%d attachment(s), %s)", summary, n, humanize.Bytes(uint64(total)))
	}
	if _, err := e.Repo.Commit(paths, summary, gitrepo.Trailers{
		Agent: senderName, Thread: msg.ThreadID, MessageID: msg.ExternalID, Kind: kind,
	}); err != nil {
		if restoreErr := pre.Restore(); restoreErr != nil {
			return apperr.Wrap(apperr.ArchiveCommitFailed, restoreErr, "restore pre-image after commit failure")
		}
		return err
	}
	return nil
}

type namedRecipient struct {
	name string
	kind store.RecipientKind
}

// dedupeNames applies to > cc > bcc precedence over recipient names before
// they are resolved to agent ids.
func dedupeNames(spec RecipientSpec) []namedRecipient {
	rank := map[store.RecipientKind]int{store.RecipientTo: 0, store.RecipientCC: 1, store.RecipientBCC: 2}
	best := make(map[string]namedRecipient)
	var order []string
	add := func(name string, kind store.RecipientKind) {
		if name == "" {
			return
		}
		prev, ok := best[name]
		if !ok {
			order = append(order, name)
			best[name] = namedRecipient{name: name, kind: kind}
			return
		}
		if rank[kind] < rank[prev.kind] {
			best[name] = namedRecipient{name: name, kind: kind}
		}
	}
	for _, n := range spec.To {
		add(n, store.RecipientTo)
	}
	for _, n := range spec.CC {
		add(n, store.RecipientCC)
	}
	for _, n := range spec.BCC {
		add(n, store.RecipientBCC)
	}
	out := make([]namedRecipient, 0, len(order))
	for _, n := range order {
		out = append(out, best[n])
	}
	return out
}

func encodeAttachments(descs []archive.AttachmentDescriptor) string {
	if len(descs) == 0 {
		return "[]"
	}
	b, err := json.Marshal(descs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// ReplyRequest is the input to Reply.
type ReplyRequest struct {
	ProjectID     int64
	Sender        store.Agent
	ParentMsgID   string
	BodyMD        string
	Recipients    RecipientSpec
	SubjectPrefix string
	Importance    string
	AckRequired   *bool
}

// Reply implements reply_message: inherit thread, subject prefix, and
// importance/ack_required from the parent unless overridden, then delegate
// to Send.
func (e *Engine) Reply(ctx context.Context, req ReplyRequest) (SendResult, error) {
	parent, err := e.Store.MessageByExternalID(ctx, req.ParentMsgID)
	if err != nil {
		return SendResult{}, apperr.Wrap(apperr.NotFound, err, "parent message %s not found", req.ParentMsgID)
	}

	threadID := parent.ThreadID
	if threadID == "" {
		threadID = parent.ExternalID
	}

	prefix := req.SubjectPrefix
	if prefix == "" {
		prefix = "Re:"
	}
	subject := parent.Subject
	if !strings.HasPrefix(strings.TrimSpace(subject), strings.TrimSpace(prefix)) {
		subject = prefix + " " + subject
	}

	importance := req.Importance
	if importance == "" {
		importance = parent.Importance
	}
	ackRequired := parent.AckRequired
	if req.AckRequired != nil {
		ackRequired = *req.AckRequired
	}

	return e.Send(ctx, SendRequest{
		ProjectID: req.ProjectID, Sender: req.Sender, Recipients: req.Recipients, Subject: subject,
		BodyMD: req.BodyMD, Importance: importance, AckRequired: ackRequired, ThreadID: threadID,
	})
}

// Inbox implements fetch_inbox.
func (e *Engine) Inbox(ctx context.Context, agentID int64, f store.InboxFilter) ([]store.Message, error) {
	return e.Store.Inbox(ctx, agentID, f)
}

// MarkRead implements mark_message_read: idempotent.
func (e *Engine) MarkRead(ctx context.Context, messageID, agentID int64) error {
	return e.Store.MarkRead(ctx, messageID, agentID)
}

// Acknowledge implements acknowledge_message: also marks read if unread.
func (e *Engine) Acknowledge(ctx context.Context, messageID, agentID int64) error {
	if err := e.Store.MarkRead(ctx, messageID, agentID); err != nil {
		return err
	}
	return e.Store.Acknowledge(ctx, messageID, agentID)
}
