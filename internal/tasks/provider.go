package tasks

import (
	"context"
	"encoding/json"

	"agentdir/internal/engine"
	"agentdir/internal/jsonrpc"
)

// Tool names exposed by the task-list server.
const (
	ToolAddTask      = "add_task"
	ToolListTasks    = "list_tasks"
	ToolCompleteTask = "complete_task"
	ToolDeleteTask   = "delete_task"
)

// Provider exposes the task list as tools.
type Provider struct {
	engine.BaseProvider
	list *List
}

// NewProvider creates the task-list tool provider.
func NewProvider(list *List) *Provider {
	return &Provider{list: list}
}

// Tools implements engine.Provider.
func (p *Provider) Tools() []engine.Tool {
	return []engine.Tool{
		{
			Name:        ToolAddTask,
			Description: "Add a task to your list",
			InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"agentName": {"type": "string"},
			"title": {"type": "string"},
			"description": {"type": "string"},
			"priority": {"type": "string", "enum": ["low", "normal", "high", "urgent"]}
		},
		"required": ["agentName", "title"]
	}`),
		},
		{
			Name:        ToolListTasks,
			Description: "List your tasks in creation order",
			InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"agentName": {"type": "string"},
			"includeCompleted": {"type": "boolean"}
		},
		"required": ["agentName"]
	}`),
		},
		{
			Name:        ToolCompleteTask,
			Description: "Mark a task done (idempotent)",
			InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"agentName": {"type": "string"},
			"taskId": {"type": "string"}
		},
		"required": ["agentName", "taskId"]
	}`),
		},
		{
			Name:        ToolDeleteTask,
			Description: "Delete a task",
			InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"agentName": {"type": "string"},
			"taskId": {"type": "string"}
		},
		"required": ["agentName", "taskId"]
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
		Title            string `json:"title"`
		Description      string `json:"description"`
		Priority         string `json:"priority"`
		TaskID           string `json:"taskId"`
		IncludeCompleted bool   `json:"includeCompleted"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, jsonrpc.NewInvalidParams("invalid tool arguments: " + err.Error())
	}

	switch name {
	case ToolAddTask:
		return p.list.Add(caller, params.Title, params.Description, params.Priority)
	case ToolListTasks:
		tasks := p.list.Tasks(caller, params.IncludeCompleted)
		if tasks == nil {
			tasks = []*Task{}
		}
		return map[string]any{"tasks": tasks, "count": len(tasks)}, nil
	case ToolCompleteTask:
		return p.list.Complete(caller, params.TaskID)
	case ToolDeleteTask:
		if err := p.list.Delete(caller, params.TaskID); err != nil {
			return nil, err
		}
		return map[string]any{"deleted": params.TaskID}, nil
	default:
		return nil, engine.NewServerError(jsonrpc.CodeMethodNotFound, "unknown tool: %s", name)
	}
}
