package tools

import (
	"context"
	"encoding/json"

	"github.com/Dicklesworthstone/agentmail/internal/apperr"
	"github.com/Dicklesworthstone/agentmail/internal/mcp"
	"github.com/Dicklesworthstone/agentmail/internal/messaging"
	"github.com/Dicklesworthstone/agentmail/internal/store"
)

// SendMessage implements send_message (§4.8 steps 1-7).
type SendMessage struct {
	Deps *Deps
}

func (t *SendMessage) Name() string { return "send_message" }
func (t *SendMessage) Writer() bool { return true }
func (t *SendMessage) Description() string {
	return "Compose and deliver a message to one or more agents across to/cc/bcc, running the " +
		"Contact Policy Engine and Attachment Pipeline before committing the archive artifacts."
}

func (t *SendMessage) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "required": ["project", "sender", "subject", "body_md"],
  "properties": {
    "project": {"type": "string"},
    "sender": {"type": "string"},
    "to": {"type": "array", "items": {"type": "string"}},
    "cc": {"type": "array", "items": {"type": "string"}},
    "bcc": {"type": "array", "items": {"type": "string"}},
    "subject": {"type": "string"},
    "body_md": {"type": "string"},
    "importance": {"type": "string", "enum": ["low", "normal", "high", "urgent"]},
    "ack_required": {"type": "boolean"},
    "thread_id": {"type": "string"},
    "attachment_paths": {"type": "array", "items": {"type": "string"}},
    "image_embed_policy": {"type": "string", "enum": ["auto", "file", "inline"]},
    "inline_max_bytes": {"type": "integer"},
    "auto_contact_if_blocked": {"type": "boolean"}
  }
}`)
}

type sendMessageParams struct {
	Project              string   `json:"project"`
	Sender               string   `json:"sender"`
	To                   []string `json:"to,omitempty"`
	CC                   []string `json:"cc,omitempty"`
	BCC                  []string `json:"bcc,omitempty"`
	Subject              string   `json:"subject"`
	BodyMD               string   `json:"body_md"`
	Importance           string   `json:"importance,omitempty"`
	AckRequired          bool     `json:"ack_required,omitempty"`
	ThreadID             string   `json:"thread_id,omitempty"`
	AttachmentPaths      []string `json:"attachment_paths,omitempty"`
	ImageEmbedPolicy     string   `json:"image_embed_policy,omitempty"`
	InlineMaxBytes       int64    `json:"inline_max_bytes,omitempty"`
	AutoContactIfBlocked bool     `json:"auto_contact_if_blocked,omitempty"`
}

func (t *SendMessage) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p sendMessageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return badParams(err)
	}

	project, err := t.Deps.resolveProject(ctx, p.Project)
	if err != nil {
		return result(err)
	}
	sender, err := t.Deps.resolveAgent(ctx, project.ID, p.Sender)
	if err != nil {
		return result(err)
	}

	policy := effectiveEmbedPolicy(p.ImageEmbedPolicy, sender.AttachmentsPolicy)
	engine, err := t.Deps.messagingEngine(project.Slug, policy, p.InlineMaxBytes, p.AutoContactIfBlocked)
	if err != nil {
		return result(err)
	}

	out, err := engine.Send(ctx, messaging.SendRequest{
		ProjectID:       project.ID,
		Sender:          sender,
		Recipients:      messaging.RecipientSpec{To: p.To, CC: p.CC, BCC: p.BCC},
		Subject:         p.Subject,
		BodyMD:          p.BodyMD,
		Importance:      p.Importance,
		AckRequired:     p.AckRequired,
		ThreadID:        p.ThreadID,
		AttachmentPaths: p.AttachmentPaths,
		Bypass:          !t.Deps.Cfg.Contacts.EnforcementEnabled,
	})
	if err != nil {
		return result(err)
	}
	return mcp.JSONResult(out)
}

// ReplyMessage implements reply_message.
type ReplyMessage struct {
	Deps *Deps
}

func (t *ReplyMessage) Name() string { return "reply_message" }
func (t *ReplyMessage) Writer() bool { return true }
func (t *ReplyMessage) Description() string {
	return "Reply to an existing message, inheriting its thread, subject prefix, importance, " +
		"and ack_required unless explicitly overridden."
}

func (t *ReplyMessage) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "required": ["project", "message_id", "sender", "body_md"],
  "properties": {
    "project": {"type": "string"},
    "message_id": {"type": "string"},
    "sender": {"type": "string"},
    "body_md": {"type": "string"},
    "to": {"type": "array", "items": {"type": "string"}},
    "cc": {"type": "array", "items": {"type": "string"}},
    "bcc": {"type": "array", "items": {"type": "string"}},
    "subject_prefix": {"type": "string"},
    "importance": {"type": "string", "enum": ["low", "normal", "high", "urgent"]},
    "ack_required": {"type": "boolean"}
  }
}`)
}

type replyMessageParams struct {
	Project       string   `json:"project"`
	MessageID     string   `json:"message_id"`
	Sender        string   `json:"sender"`
	BodyMD        string   `json:"body_md"`
	To            []string `json:"to,omitempty"`
	CC            []string `json:"cc,omitempty"`
	BCC           []string `json:"bcc,omitempty"`
	SubjectPrefix string   `json:"subject_prefix,omitempty"`
	Importance    string   `json:"importance,omitempty"`
	AckRequired   *bool    `json:"ack_required,omitempty"`
}

func (t *ReplyMessage) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p replyMessageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return badParams(err)
	}

	project, err := t.Deps.resolveProject(ctx, p.Project)
	if err != nil {
		return result(err)
	}
	sender, err := t.Deps.resolveAgent(ctx, project.ID, p.Sender)
	if err != nil {
		return result(err)
	}

	engine, err := t.Deps.messagingEngine(project.Slug, effectiveEmbedPolicy("", sender.AttachmentsPolicy), 0, false)
	if err != nil {
		return result(err)
	}

	out, err := engine.Reply(ctx, messaging.ReplyRequest{
		ProjectID:     project.ID,
		Sender:        sender,
		ParentMsgID:   p.MessageID,
		BodyMD:        p.BodyMD,
		Recipients:    messaging.RecipientSpec{To: p.To, CC: p.CC, BCC: p.BCC},
		SubjectPrefix: p.SubjectPrefix,
		Importance:    p.Importance,
		AckRequired:   p.AckRequired,
	})
	if err != nil {
		return result(err)
	}
	return mcp.JSONResult(out)
}

// MarkMessageRead implements mark_message_read.
type MarkMessageRead struct {
	Deps *Deps
}

func (t *MarkMessageRead) Name() string        { return "mark_message_read" }
func (t *MarkMessageRead) Writer() bool        { return true }
func (t *MarkMessageRead) Description() string { return "Mark a message read for an agent. Idempotent." }

func (t *MarkMessageRead) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "required": ["project", "agent", "message_id"],
  "properties": {
    "project": {"type": "string"},
    "agent": {"type": "string"},
    "message_id": {"type": "string"}
  }
}`)
}

type messageReceiptParams struct {
	Project   string `json:"project"`
	Agent     string `json:"agent"`
	MessageID string `json:"message_id"`
}

func (t *MarkMessageRead) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p messageReceiptParams
	if err := json.Unmarshal(params, &p); err != nil {
		return badParams(err)
	}
	project, err := t.Deps.resolveProject(ctx, p.Project)
	if err != nil {
		return result(err)
	}
	agent, err := t.Deps.resolveAgent(ctx, project.ID, p.Agent)
	if err != nil {
		return result(err)
	}
	msg, err := t.Deps.Store.MessageByExternalID(ctx, p.MessageID)
	if err != nil {
		return result(apperr.Wrap(apperr.NotFound, err, "message %s not found", p.MessageID))
	}
	if err := t.Deps.Store.MarkRead(ctx, msg.ID, agent.ID); err != nil {
		return result(err)
	}
	return mcp.JSONResult(map[string]bool{"ok": true})
}

// AcknowledgeMessage implements acknowledge_message.
type AcknowledgeMessage struct {
	Deps *Deps
}

func (t *AcknowledgeMessage) Name() string { return "acknowledge_message" }
func (t *AcknowledgeMessage) Writer() bool { return true }
func (t *AcknowledgeMessage) Description() string {
	return "Acknowledge a message for an agent, also marking it read if unread. Idempotent."
}

func (t *AcknowledgeMessage) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "required": ["project", "agent", "message_id"],
  "properties": {
    "project": {"type": "string"},
    "agent": {"type": "string"},
    "message_id": {"type": "string"}
  }
}`)
}

func (t *AcknowledgeMessage) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p messageReceiptParams
	if err := json.Unmarshal(params, &p); err != nil {
		return badParams(err)
	}
	project, err := t.Deps.resolveProject(ctx, p.Project)
	if err != nil {
		return result(err)
	}
	agent, err := t.Deps.resolveAgent(ctx, project.ID, p.Agent)
	if err != nil {
		return result(err)
	}
	msg, err := t.Deps.Store.MessageByExternalID(ctx, p.MessageID)
	if err != nil {
		return result(apperr.Wrap(apperr.NotFound, err, "message %s not found", p.MessageID))
	}
	engine := &messaging.Engine{Store: t.Deps.Store}
	if err := engine.Acknowledge(ctx, msg.ID, agent.ID); err != nil {
		return result(err)
	}
	return mcp.JSONResult(map[string]bool{"ok": true})
}

// FetchInbox implements fetch_inbox: read-only, never mutates read_ts.
type FetchInbox struct {
	Deps *Deps
}

func (t *FetchInbox) Name() string        { return "fetch_inbox" }
func (t *FetchInbox) Writer() bool        { return false }
func (t *FetchInbox) Description() string {
	return "List an agent's recent messages, most recent first, without mutating read state."
}

func (t *FetchInbox) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "required": ["project", "agent"],
  "properties": {
    "project": {"type": "string"},
    "agent": {"type": "string"},
    "since_ts": {"type": "integer"},
    "urgent_only": {"type": "boolean"},
    "ack_required": {"type": "boolean"},
    "limit": {"type": "integer"}
  }
}`)
}

type fetchInboxParams struct {
	Project     string `json:"project"`
	Agent       string `json:"agent"`
	SinceTs     int64  `json:"since_ts,omitempty"`
	UrgentOnly  bool   `json:"urgent_only,omitempty"`
	AckRequired bool   `json:"ack_required,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

func (t *FetchInbox) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p fetchInboxParams
	if err := json.Unmarshal(params, &p); err != nil {
		return badParams(err)
	}
	project, err := t.Deps.resolveProject(ctx, p.Project)
	if err != nil {
		return result(err)
	}
	agent, err := t.Deps.resolveAgent(ctx, project.ID, p.Agent)
	if err != nil {
		return result(err)
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}
	msgs, err := t.Deps.Store.Inbox(ctx, agent.ID, store.InboxFilter{
		UrgentOnly:  p.UrgentOnly,
		AckRequired: p.AckRequired,
		SinceTs:     p.SinceTs,
		Limit:       limit,
	})
	if err != nil {
		return result(err)
	}
	return mcp.JSONResult(msgs)
}
