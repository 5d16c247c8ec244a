package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"

	"agentdir/internal/engine"
	"agentdir/internal/jsonrpc"
)

// Provider exposes the registry and mailbox as tools, resources, and
// prompts over the protocol engine.
type Provider struct {
	engine.BaseProvider

	reg     *Registry
	mailbox *Mailbox
	logger  *log.Logger

	// reloadPending is set by the persistence watcher when the registry
	// document changes on disk. The reload itself happens at the next
	// tool call, keeping all mutation on the dispatch path.
	reloadPending atomic.Bool
}

// NewProvider creates the directory tool provider.
func NewProvider(reg *Registry, logger *log.Logger) *Provider {
	return &Provider{
		reg:     reg,
		mailbox: NewMailbox(reg),
		logger:  logger,
	}
}

// MarkStale flags the registry document as externally modified.
// Safe to call from the watcher goroutine.
func (p *Provider) MarkStale() {
	p.reloadPending.Store(true)
}

// maybeReload re-reads the registry document if the watcher flagged it.
// Reloading after our own save is harmless: it reads back the state just
// written.
func (p *Provider) maybeReload() {
	if !p.reloadPending.Swap(false) {
		return
	}
	if err := p.reg.Load(); err != nil {
		p.logger.Printf("warning: failed to reload directory: %v", err)
	}
}

// Tools implements engine.Provider.
func (p *Provider) Tools() []engine.Tool {
	return toolDefs()
}

// CallTool implements engine.Provider. Arguments are decoded into typed
// structures here, immediately after transport parsing; only the wire
// edge stays generic JSON.
func (p *Provider) CallTool(ctx context.Context, name string, args json.RawMessage) (any, error) {
	p.maybeReload()

	caller, err := engine.CallerName(args)
	if err != nil {
		return nil, err
	}

	switch name {
	case ToolRegisterAgent:
		return p.registerAgent(caller, args)
	case ToolListAgents:
		return p.listAgents(args)
	case ToolFindAgent:
		return p.findAgent(args)
	case ToolUpdateStatus:
		return p.updateStatus(caller, args)
	case ToolUnregisterAgent:
		return p.unregisterAgent(caller, args)
	case ToolSendMessage:
		return p.sendMessage(caller, args)
	case ToolGetMessages:
		return p.getMessages(caller, args)
	case ToolMarkMessageRead:
		return p.markMessageRead(caller, args)
	case ToolSendEmail:
		return p.sendEmail(caller, args)
	case ToolCheckInbox:
		return p.checkInbox(caller, args)
	case ToolGetEmail:
		return p.getEmail(caller, args)
	case ToolReplyToEmail:
		return p.replyToEmail(caller, args)
	case ToolForwardEmail:
		return p.forwardEmail(caller, args)
	case ToolDeleteEmail:
		return p.deleteEmail(caller, args)
	case ToolGetInboxStats:
		return p.inboxStats(caller)
	default:
		return nil, engine.NewServerError(jsonrpc.CodeMethodNotFound, "unknown tool: %s", name)
	}
}

func decodeArgs(args json.RawMessage, into any) error {
	if err := json.Unmarshal(args, into); err != nil {
		return jsonrpc.NewInvalidParams("invalid tool arguments: " + err.Error())
	}
	return nil
}

type registerParams struct {
	Name         string   `json:"name"`
	Role         string   `json:"role"`
	Capabilities []string `json:"capabilities"`
	Status       string   `json:"status"`
	Description  string   `json:"description"`
}

func (p *Provider) registerAgent(caller string, args json.RawMessage) (any, error) {
	var params registerParams
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}

	agent, err := p.reg.Register(caller, params.Name, params.Role, params.Capabilities, params.Status, params.Description)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":           agent.ID,
		"session_name": agent.SessionName,
		"name":         agent.Name,
		"role":         agent.Role,
		"status":       agent.Status,
	}, nil
}

// agentView is the queue-free projection of an identity returned by the
// discovery tools.
type agentView struct {
	ID            string   `json:"id"`
	SessionName   string   `json:"session_name"`
	Name          string   `json:"name"`
	Role          string   `json:"role"`
	Capabilities  []string `json:"capabilities"`
	Status        string   `json:"status"`
	StatusMessage string   `json:"status_message,omitempty"`
	Description   string   `json:"description,omitempty"`
	RegisteredAt  string   `json:"registered_at"`
	LastSeen      string   `json:"last_seen"`
}

func viewOf(a *Agent) agentView {
	return agentView{
		ID:            a.ID,
		SessionName:   a.SessionName,
		Name:          a.Name,
		Role:          a.Role,
		Capabilities:  a.Capabilities,
		Status:        a.Status,
		StatusMessage: a.StatusMessage,
		Description:   a.Description,
		RegisteredAt:  a.RegisteredAt.Format("2006-01-02T15:04:05Z07:00"),
		LastSeen:      a.LastSeen.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (p *Provider) listAgents(args json.RawMessage) (any, error) {
	var params struct {
		Status     string `json:"status"`
		Role       string `json:"role"`
		Capability string `json:"capability"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}

	agents, err := p.reg.List(params.Status, params.Role, params.Capability)
	if err != nil {
		return nil, err
	}
	views := make([]agentView, 0, len(agents))
	for _, a := range agents {
		views = append(views, viewOf(a))
	}
	return map[string]any{"agents": views, "count": len(views)}, nil
}

func (p *Provider) findAgent(args json.RawMessage) (any, error) {
	var params struct {
		Query string `json:"query"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	if params.Query == "" {
		return nil, jsonrpc.NewInvalidParams("query is required")
	}

	agent, err := p.reg.Find(params.Query)
	if err != nil {
		return nil, err
	}
	return viewOf(agent), nil
}

func (p *Provider) updateStatus(caller string, args json.RawMessage) (any, error) {
	var params struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}

	agent, err := p.reg.UpdateStatus(caller, params.Status, params.Message)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"session_name":   agent.SessionName,
		"status":         agent.Status,
		"status_message": agent.StatusMessage,
	}, nil
}

func (p *Provider) unregisterAgent(caller string, args json.RawMessage) (any, error) {
	var params struct {
		Reason string `json:"reason"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}

	if err := p.reg.Unregister(caller, params.Reason); err != nil {
		return nil, err
	}
	return map[string]any{"unregistered": caller}, nil
}

func (p *Provider) sendMessage(caller string, args json.RawMessage) (any, error) {
	var params struct {
		To       string `json:"to"`
		Content  string `json:"content"`
		Priority string `json:"priority"`
		Type     string `json:"type"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}

	msg, err := p.mailbox.SendMessage(caller, params.To, params.Content, params.Priority, params.Type)
	if err != nil {
		return nil, err
	}
	return map[string]any{"message_id": msg.ID, "to": msg.To}, nil
}

func (p *Provider) getMessages(caller string, args json.RawMessage) (any, error) {
	var params struct {
		UnreadOnly bool   `json:"unreadOnly"`
		Priority   string `json:"priority"`
		Limit      int    `json:"limit"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}

	msgs, err := p.mailbox.Messages(caller, params.UnreadOnly, params.Priority, params.Limit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []*DirectoryMessage{}
	}
	return map[string]any{"messages": msgs, "count": len(msgs)}, nil
}

func (p *Provider) markMessageRead(caller string, args json.RawMessage) (any, error) {
	var params struct {
		MessageID string `json:"messageId"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	if params.MessageID == "" {
		return nil, jsonrpc.NewInvalidParams("messageId is required")
	}

	changed, err := p.mailbox.MarkMessageRead(caller, params.MessageID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"message_id": params.MessageID, "changed": changed}, nil
}

type sendEmailParams struct {
	To          []string          `json:"to"`
	Cc          []string          `json:"cc"`
	Bcc         []string          `json:"bcc"`
	Subject     string            `json:"subject"`
	Body        string            `json:"body"`
	Priority    string            `json:"priority"`
	Attachments []EmailAttachment `json:"attachments"`
}

func (p *Provider) sendEmail(caller string, args json.RawMessage) (any, error) {
	var params sendEmailParams
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}

	return p.mailbox.SendEmail(caller, params.To, params.Cc, params.Bcc, params.Subject, params.Body, params.Priority, params.Attachments)
}

func (p *Provider) checkInbox(caller string, args json.RawMessage) (any, error) {
	var params struct {
		MarkAsRead  bool `json:"markAsRead"`
		IncludeRead bool `json:"includeRead"`
		Limit       int  `json:"limit"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}

	summaries, err := p.mailbox.CheckInbox(caller, params.MarkAsRead, params.IncludeRead, params.Limit)
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []EmailSummary{}
	}

	unread := 0
	for _, s := range summaries {
		if !s.Read {
			unread++
		}
	}
	return map[string]any{"emails": summaries, "count": len(summaries), "unread": unread}, nil
}

func (p *Provider) getEmail(caller string, args json.RawMessage) (any, error) {
	// markAsRead defaults to true; a pointer distinguishes "absent" from
	// an explicit false.
	var params struct {
		EmailID    string `json:"emailId"`
		MarkAsRead *bool  `json:"markAsRead"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	if params.EmailID == "" {
		return nil, jsonrpc.NewInvalidParams("emailId is required")
	}

	markAsRead := true
	if params.MarkAsRead != nil {
		markAsRead = *params.MarkAsRead
	}
	return p.mailbox.GetEmail(caller, params.EmailID, markAsRead)
}

func (p *Provider) replyToEmail(caller string, args json.RawMessage) (any, error) {
	var params struct {
		EmailID         string `json:"emailId"`
		Body            string `json:"body"`
		IncludeOriginal bool   `json:"includeOriginal"`
		Priority        string `json:"priority"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	if params.EmailID == "" {
		return nil, jsonrpc.NewInvalidParams("emailId is required")
	}

	return p.mailbox.Reply(caller, params.EmailID, params.Body, params.IncludeOriginal, params.Priority)
}

func (p *Provider) forwardEmail(caller string, args json.RawMessage) (any, error) {
	var params struct {
		EmailID string   `json:"emailId"`
		To      []string `json:"to"`
		Cc      []string `json:"cc"`
		Bcc     []string `json:"bcc"`
		Note    string   `json:"note"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	if params.EmailID == "" {
		return nil, jsonrpc.NewInvalidParams("emailId is required")
	}

	return p.mailbox.Forward(caller, params.EmailID, params.To, params.Cc, params.Bcc, params.Note)
}

func (p *Provider) deleteEmail(caller string, args json.RawMessage) (any, error) {
	var params struct {
		EmailID   string `json:"emailId"`
		Permanent bool   `json:"permanent"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	if params.EmailID == "" {
		return nil, jsonrpc.NewInvalidParams("emailId is required")
	}

	if err := p.mailbox.Delete(caller, params.EmailID, params.Permanent); err != nil {
		return nil, err
	}
	return map[string]any{"deleted": params.EmailID}, nil
}

func (p *Provider) inboxStats(caller string) (any, error) {
	return p.mailbox.Stats(caller)
}

// Resource URIs served by the directory.
const (
	ResourceAgents = "directory://agents"
	ResourceStats  = "directory://stats"
)

// Resources implements engine.Provider.
func (p *Provider) Resources() []engine.Resource {
	return []engine.Resource{
		{
			URI:         ResourceAgents,
			Name:        "Registered agents",
			Description: "All registered agents with presence, most recently seen first",
			MimeType:    "application/json",
		},
		{
			URI:         ResourceStats,
			Name:        "Directory statistics",
			Description: "Registry occupancy and queue totals",
			MimeType:    "application/json",
		},
	}
}

// ReadResource implements engine.Provider.
func (p *Provider) ReadResource(ctx context.Context, uri string) (*engine.ResourceContent, error) {
	p.maybeReload()

	switch uri {
	case ResourceAgents:
		agents, _ := p.reg.List("", "", "")
		views := make([]agentView, 0, len(agents))
		for _, a := range agents {
			views = append(views, viewOf(a))
		}
		data, err := json.MarshalIndent(views, "", "  ")
		if err != nil {
			return nil, err
		}
		return &engine.ResourceContent{URI: uri, MimeType: "application/json", Text: string(data)}, nil

	case ResourceStats:
		messages, emails := 0, 0
		agents, _ := p.reg.List("", "", "")
		for _, a := range agents {
			messages += len(a.Messages)
			emails += len(a.Inbox)
		}
		data, err := json.MarshalIndent(map[string]int{
			"agents":   p.reg.Count(),
			"capacity": MaxAgents,
			"messages": messages,
			"emails":   emails,
		}, "", "  ")
		if err != nil {
			return nil, err
		}
		return &engine.ResourceContent{URI: uri, MimeType: "application/json", Text: string(data)}, nil

	default:
		return nil, engine.NewServerError(jsonrpc.CodeInvalidParams, "unknown resource: %s", uri)
	}
}

// Prompts implements engine.Provider.
func (p *Provider) Prompts() []engine.Prompt {
	return []engine.Prompt{
		{
			Name:        "onboarding",
			Description: "Explain the directory and mailbox tools to a newly started agent",
			Arguments: []engine.PromptArgument{
				{Name: "agentName", Description: "Session name of the agent being onboarded", Required: true},
			},
		},
	}
}

// GetPrompt implements engine.Provider.
func (p *Provider) GetPrompt(ctx context.Context, name string, args map[string]string) (*engine.PromptResult, error) {
	if name != "onboarding" {
		return nil, engine.NewServerError(jsonrpc.CodeInvalidParams, "unknown prompt: %s", name)
	}

	agentName := args["agentName"]
	if agentName == "" {
		return nil, jsonrpc.NewInvalidParams("agentName argument is required")
	}

	text := fmt.Sprintf(`You are agent %q. Use register_agent first with your name and role; the
agentName field of every tool call must be %q. Discover colleagues with
list_agents and find_agent, keep your presence fresh with update_status,
and communicate with send_message / send_email. Check mail with
check_inbox and get_email; use reply_to_email to stay on a thread and
forward_email to hand a message to someone else.`, agentName, agentName)

	return &engine.PromptResult{
		Description: "Directory onboarding for " + agentName,
		Messages: []engine.PromptMessage{
			{Role: "user", Content: engine.NewTextContent(text)},
		},
	}, nil
}
