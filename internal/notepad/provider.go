package notepad

import (
	"context"
	"encoding/json"

	"agentdir/internal/engine"
	"agentdir/internal/jsonrpc"
)

// Tool names exposed by the notepad server.
const (
	ToolWriteNote  = "write_note"
	ToolReadNote   = "read_note"
	ToolListNotes  = "list_notes"
	ToolDeleteNote = "delete_note"
)

// Provider exposes the notepad as tools.
type Provider struct {
	engine.BaseProvider
	pad *Pad
}

// NewProvider creates the notepad tool provider.
func NewProvider(pad *Pad) *Provider {
	return &Provider{pad: pad}
}

// Tools implements engine.Provider.
func (p *Provider) Tools() []engine.Tool {
	return []engine.Tool{
		{
			Name:        ToolWriteNote,
			Description: "Create or overwrite a named note",
			InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"agentName": {"type": "string"},
			"title": {"type": "string"},
			"content": {"type": "string"}
		},
		"required": ["agentName", "title"]
	}`),
		},
		{
			Name:        ToolReadNote,
			Description: "Read a note by title",
			InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"agentName": {"type": "string"},
			"title": {"type": "string"}
		},
		"required": ["agentName", "title"]
	}`),
		},
		{
			Name:        ToolListNotes,
			Description: "List your notes, most recently updated first",
			InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"agentName": {"type": "string"}
		},
		"required": ["agentName"]
	}`),
		},
		{
			Name:        ToolDeleteNote,
			Description: "Delete a note by title",
			InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"agentName": {"type": "string"},
			"title": {"type": "string"}
		},
		"required": ["agentName", "title"]
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
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, jsonrpc.NewInvalidParams("invalid tool arguments: " + err.Error())
	}

	switch name {
	case ToolWriteNote:
		return p.pad.Write(caller, params.Title, params.Content)
	case ToolReadNote:
		return p.pad.Read(caller, params.Title)
	case ToolListNotes:
		notes := p.pad.List(caller)
		return map[string]any{"notes": notes, "count": len(notes)}, nil
	case ToolDeleteNote:
		if err := p.pad.Delete(caller, params.Title); err != nil {
			return nil, err
		}
		return map[string]any{"deleted": params.Title}, nil
	default:
		return nil, engine.NewServerError(jsonrpc.CodeMethodNotFound, "unknown tool: %s", name)
	}
}
