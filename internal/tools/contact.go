package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dicklesworthstone/agentmail/internal/attachments"
	"github.com/Dicklesworthstone/agentmail/internal/mcp"
	"github.com/Dicklesworthstone/agentmail/internal/messaging"
	"github.com/Dicklesworthstone/agentmail/internal/store"
)

// SetContactPolicy implements set_contact_policy.
type SetContactPolicy struct {
	Deps *Deps
}

func (t *SetContactPolicy) Name() string { return "set_contact_policy" }
func (t *SetContactPolicy) Writer() bool { return true }
func (t *SetContactPolicy) Description() string {
	return "Set an agent's contact_policy, governing which senders may reach it (§4.7)."
}

func (t *SetContactPolicy) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "required": ["project", "agent", "policy"],
  "properties": {
    "project": {"type": "string"},
    "agent": {"type": "string"},
    "policy": {"type": "string", "enum": ["open", "auto", "contacts_only", "block_all"]}
  }
}`)
}

type setContactPolicyParams struct {
	Project string `json:"project"`
	Agent   string `json:"agent"`
	Policy  string `json:"policy"`
}

func (t *SetContactPolicy) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p setContactPolicyParams
	if err := json.Unmarshal(params, &p); err != nil {
		return badParams(err)
	}
	switch p.Policy {
	case "open", "auto", "contacts_only", "block_all":
	default:
		return mcp.ErrorResult("policy must be one of open, auto, contacts_only, block_all"), nil
	}

	project, err := t.Deps.resolveProject(ctx, p.Project)
	if err != nil {
		return result(err)
	}
	agent, err := t.Deps.resolveAgent(ctx, project.ID, p.Agent)
	if err != nil {
		return result(err)
	}
	if err := t.Deps.Store.SetContactPolicy(ctx, agent.ID, p.Policy); err != nil {
		return result(err)
	}
	return mcp.JSONResult(map[string]bool{"ok": true})
}

// RequestContact implements request_contact.
type RequestContact struct {
	Deps *Deps
}

func (t *RequestContact) Name() string { return "request_contact" }
func (t *RequestContact) Writer() bool { return true }
func (t *RequestContact) Description() string {
	return "Open (or refresh) a pending contact link from one agent to another."
}

func (t *RequestContact) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "required": ["project", "from", "to"],
  "properties": {
    "project": {"type": "string"},
    "from": {"type": "string"},
    "to": {"type": "string"},
    "reason": {"type": "string"}
  }
}`)
}

type requestContactParams struct {
	Project string `json:"project"`
	From    string `json:"from"`
	To      string `json:"to"`
	Reason  string `json:"reason,omitempty"`
}

func (t *RequestContact) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p requestContactParams
	if err := json.Unmarshal(params, &p); err != nil {
		return badParams(err)
	}
	project, err := t.Deps.resolveProject(ctx, p.Project)
	if err != nil {
		return result(err)
	}
	from, err := t.Deps.resolveAgent(ctx, project.ID, p.From)
	if err != nil {
		return result(err)
	}
	to, err := t.Deps.resolveAgent(ctx, project.ID, p.To)
	if err != nil {
		return result(err)
	}
	link, err := t.Deps.Contacts.RequestContact(ctx, project.ID, from.ID, to.ID)
	if err != nil {
		return result(err)
	}

	if err := t.sendIntro(ctx, project.Slug, project.ID, from, to, p.Reason); err != nil {
		return result(err)
	}
	return mcp.JSONResult(link)
}

// sendIntro delivers the ack-required intro message §4.7 requires alongside
// a new contact request: "Alice is requesting to exchange messages with you"
// plus the requester's stated reason, bypassing to's contact_policy (the
// whole point of the request is that policy would otherwise block it).
func (t *RequestContact) sendIntro(ctx context.Context, slug string, projectID int64, from, to store.Agent, reason string) error {
	engine, err := t.Deps.messagingEngine(slug, attachments.EmbedAuto, 0, false)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("%s is requesting to exchange messages with you.", from.Name)
	if reason != "" {
		body = fmt.Sprintf("%s\n\nReason: %s", body, reason)
	}
	_, err = engine.Send(ctx, messaging.SendRequest{
		ProjectID:   projectID,
		Sender:      from,
		Recipients:  messaging.RecipientSpec{To: []string{to.Name}},
		Subject:     "Contact request",
		BodyMD:      body,
		AckRequired: true,
		Bypass:      true,
	})
	return err
}

// RespondContact implements respond_contact.
type RespondContact struct {
	Deps *Deps
}

func (t *RespondContact) Name() string { return "respond_contact" }
func (t *RespondContact) Writer() bool { return true }
func (t *RespondContact) Description() string {
	return "Accept or deny a pending contact request. Acceptance sets an expiry (default 30 days)."
}

func (t *RespondContact) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "required": ["project", "to", "from", "accept"],
  "properties": {
    "project": {"type": "string"},
    "to": {"type": "string"},
    "from": {"type": "string"},
    "accept": {"type": "boolean"},
    "ttl_seconds": {"type": "integer"}
  }
}`)
}

type respondContactParams struct {
	Project    string `json:"project"`
	To         string `json:"to"`
	From       string `json:"from"`
	Accept     bool   `json:"accept"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
}

func (t *RespondContact) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p respondContactParams
	if err := json.Unmarshal(params, &p); err != nil {
		return badParams(err)
	}
	project, err := t.Deps.resolveProject(ctx, p.Project)
	if err != nil {
		return result(err)
	}
	responder, err := t.Deps.resolveAgent(ctx, project.ID, p.To)
	if err != nil {
		return result(err)
	}
	requester, err := t.Deps.resolveAgent(ctx, project.ID, p.From)
	if err != nil {
		return result(err)
	}
	var ttl time.Duration
	if p.TTLSeconds > 0 {
		ttl = time.Duration(p.TTLSeconds) * time.Second
	}
	if err := t.Deps.Contacts.RespondContact(ctx, project.ID, responder.ID, requester.ID, p.Accept, ttl); err != nil {
		return result(err)
	}
	return mcp.JSONResult(map[string]bool{"ok": true})
}

// ListContacts implements list_contacts.
type ListContacts struct {
	Deps *Deps
}

func (t *ListContacts) Name() string        { return "list_contacts" }
func (t *ListContacts) Writer() bool        { return false }
func (t *ListContacts) Description() string { return "List an agent's contact links with state and expiry." }

func (t *ListContacts) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "required": ["project", "agent"],
  "properties": {
    "project": {"type": "string"},
    "agent": {"type": "string"}
  }
}`)
}

func (t *ListContacts) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p whoisParams
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
	links, err := t.Deps.Contacts.ListContacts(ctx, project.ID, agent.ID)
	if err != nil {
		return result(err)
	}
	return mcp.JSONResult(links)
}
