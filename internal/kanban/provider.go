package kanban

import (
	"context"
	"encoding/json"

	"agentdir/internal/engine"
	"agentdir/internal/jsonrpc"
)

// Tool names exposed by the kanban server.
const (
	ToolCreateTicket   = "create_ticket"
	ToolListTickets    = "list_tickets"
	ToolProgressTicket = "progress_ticket"
)

// Provider exposes the board as tools plus a markdown board resource.
type Provider struct {
	engine.BaseProvider
	board *Board
}

// NewProvider creates the kanban tool provider.
func NewProvider(board *Board) *Provider {
	return &Provider{board: board}
}

// Tools implements engine.Provider.
func (p *Provider) Tools() []engine.Tool {
	return []engine.Tool{
		{
			Name:        ToolCreateTicket,
			Description: "Create a ticket in Backlog",
			InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"agentName": {"type": "string"},
			"title": {"type": "string"},
			"body": {"type": "string"},
			"priority": {"type": "string", "enum": ["low", "normal", "high", "urgent"]}
		},
		"required": ["agentName", "title"]
	}`),
		},
		{
			Name:        ToolListTickets,
			Description: "List your tickets, optionally by pipeline status",
			InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"agentName": {"type": "string"},
			"status": {"type": "string", "enum": ["Backlog", "In Progress", "Review", "Testing", "Complete"]}
		},
		"required": ["agentName"]
	}`),
		},
		{
			Name:        ToolProgressTicket,
			Description: "Advance a ticket one pipeline step toward Complete",
			InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"agentName": {"type": "string"},
			"ticketId": {"type": "string"}
		},
		"required": ["agentName", "ticketId"]
	}`),
		},
	}
}

// CallTool implements engine.Provider.
func (p *Provider) CallTool(ctx context.Context, name string, args json.RawMessage) (any, error) {
	caller, err := engine.CallerName(args)
	if err != nil {
		return nil, err
	}

	var params struct {
		Title    string `json:"title"`
		Body     string `json:"body"`
		Priority string `json:"priority"`
		Status   string `json:"status"`
		TicketID string `json:"ticketId"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, jsonrpc.NewInvalidParams("invalid tool arguments: " + err.Error())
	}

	switch name {
	case ToolCreateTicket:
		return p.board.Create(caller, params.Title, params.Body, params.Priority)
	case ToolListTickets:
		tickets, err := p.board.Tickets(caller, params.Status)
		if err != nil {
			return nil, err
		}
		if tickets == nil {
			tickets = []*Ticket{}
		}
		return map[string]any{"tickets": tickets, "count": len(tickets)}, nil
	case ToolProgressTicket:
		return p.board.Progress(caller, params.TicketID)
	default:
		return nil, engine.NewServerError(jsonrpc.CodeMethodNotFound, "unknown tool: %s", name)
	}
}

// BoardURI addresses the rendered markdown board.
const BoardURI = "kanban://board"

// Resources implements engine.Provider.
func (p *Provider) Resources() []engine.Resource {
	return []engine.Resource{
		{
			URI:         BoardURI,
			Name:        "Kanban board",
			Description: "Markdown rendering of every pipeline column",
			MimeType:    "text/markdown",
		},
	}
}

// ReadResource implements engine.Provider.
func (p *Provider) ReadResource(ctx context.Context, uri string) (*engine.ResourceContent, error) {
	if uri != BoardURI {
		return nil, engine.NewServerError(jsonrpc.CodeInvalidParams, "unknown resource: %s", uri)
	}
	p.board.load()
	return &engine.ResourceContent{
		URI:      uri,
		MimeType: "text/markdown",
		Text:     p.board.renderBoard(),
	}, nil
}
