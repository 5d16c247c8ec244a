package directory

import (
	"encoding/json"

	"agentdir/internal/engine"
)

// Tool names exposed by the directory server.
const (
	ToolRegisterAgent   = "register_agent"
	ToolListAgents      = "list_agents"
	ToolFindAgent       = "find_agent"
	ToolUpdateStatus    = "update_status"
	ToolUnregisterAgent = "unregister_agent"
	ToolSendMessage     = "send_message"
	ToolGetMessages     = "get_messages"
	ToolMarkMessageRead = "mark_message_read"
	ToolSendEmail       = "send_email"
	ToolCheckInbox      = "check_inbox"
	ToolGetEmail        = "get_email"
	ToolReplyToEmail    = "reply_to_email"
	ToolForwardEmail    = "forward_email"
	ToolDeleteEmail     = "delete_email"
	ToolGetInboxStats   = "get_inbox_stats"
)

// Schemas are defined by hand so enum and required constraints match the
// handlers exactly.

const agentNameProperty = `"agentName": {
				"type": "string",
				"description": "Session name identifying the calling agent"
			}`

func toolDefs() []engine.Tool {
	return []engine.Tool{
		{
			Name:        ToolRegisterAgent,
			Description: "Register the calling agent in the directory",
			InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			` + agentNameProperty + `,
			"name": {"type": "string", "description": "Display name"},
			"role": {"type": "string", "description": "Agent role, e.g. dev, qa"},
			"capabilities": {"type": "array", "items": {"type": "string"}},
			"status": {"type": "string", "enum": ["active", "busy", "idle", "offline"]},
			"description": {"type": "string"}
		},
		"required": ["agentName", "name", "role"]
	}`),
		},
		{
			Name:        ToolListAgents,
			Description: "List registered agents, most recently seen first",
			InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			` + agentNameProperty + `,
			"status": {"type": "string", "enum": ["active", "busy", "idle", "offline"]},
			"role": {"type": "string", "description": "Role substring filter"},
			"capability": {"type": "string", "description": "Capability substring filter"}
		},
		"required": ["agentName"]
	}`),
		},
		{
			Name:        ToolFindAgent,
			Description: "Find one agent by id or exact name (case-insensitive)",
			InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			` + agentNameProperty + `,
			"query": {"type": "string", "description": "Agent id or display name"}
		},
		"required": ["agentName", "query"]
	}`),
		},
		{
			Name:        ToolUpdateStatus,
			Description: "Update the calling agent's availability status",
			InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			` + agentNameProperty + `,
			"status": {"type": "string", "enum": ["active", "busy", "idle", "offline"]},
			"message": {"type": "string", "description": "Optional status message"}
		},
		"required": ["agentName", "status"]
	}`),
		},
		{
			Name:        ToolUnregisterAgent,
			Description: "Remove the calling agent and all of its queued mail",
			InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			` + agentNameProperty + `,
			"reason": {"type": "string"}
		},
		"required": ["agentName"]
	}`),
		},
		{
			Name:        ToolSendMessage,
			Description: "Send a directory message to another agent",
			InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			` + agentNameProperty + `,
			"to": {"type": "string", "description": "Recipient id or name"},
			"content": {"type": "string"},
			"priority": {"type": "string", "enum": ["low", "normal", "high", "urgent"]},
			"type": {"type": "string", "description": "Free-form message type tag"}
		},
		"required": ["agentName", "to", "content"]
	}`),
		},
		{
			Name:        ToolGetMessages,
			Description: "Fetch the calling agent's directory messages, newest first",
			InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			` + agentNameProperty + `,
			"unreadOnly": {"type": "boolean"},
			"priority": {"type": "string", "enum": ["low", "normal", "high", "urgent"]},
			"limit": {"type": "integer", "minimum": 1}
		},
		"required": ["agentName"]
	}`),
		},
		{
			Name:        ToolMarkMessageRead,
			Description: "Mark one directory message as read (idempotent)",
			InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			` + agentNameProperty + `,
			"messageId": {"type": "string"}
		},
		"required": ["agentName", "messageId"]
	}`),
		},
		{
			Name:        ToolSendEmail,
			Description: "Send an email to one or more agents; unresolvable addresses are skipped and reported",
			InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			` + agentNameProperty + `,
			"to": {"type": "array", "items": {"type": "string"}, "minItems": 1},
			"cc": {"type": "array", "items": {"type": "string"}},
			"bcc": {"type": "array", "items": {"type": "string"}},
			"subject": {"type": "string"},
			"body": {"type": "string"},
			"priority": {"type": "string", "enum": ["low", "normal", "high", "urgent"]},
			"attachments": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"filename": {"type": "string"},
						"content": {"type": "string"},
						"mime_type": {"type": "string"}
					},
					"required": ["filename", "content"]
				}
			}
		},
		"required": ["agentName", "to", "subject"]
	}`),
		},
		{
			Name:        ToolCheckInbox,
			Description: "List inbox email headers, newest first",
			InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			` + agentNameProperty + `,
			"markAsRead": {"type": "boolean"},
			"includeRead": {"type": "boolean"},
			"limit": {"type": "integer", "minimum": 1}
		},
		"required": ["agentName"]
	}`),
		},
		{
			Name:        ToolGetEmail,
			Description: "Read one email from your own inbox (marks it read unless suppressed)",
			InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			` + agentNameProperty + `,
			"emailId": {"type": "string"},
			"markAsRead": {"type": "boolean", "description": "Defaults to true"}
		},
		"required": ["agentName", "emailId"]
	}`),
		},
		{
			Name:        ToolReplyToEmail,
			Description: "Reply to an email in your inbox; goes to the original sender on the same thread",
			InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			` + agentNameProperty + `,
			"emailId": {"type": "string"},
			"body": {"type": "string"},
			"includeOriginal": {"type": "boolean"},
			"priority": {"type": "string", "enum": ["low", "normal", "high", "urgent"]}
		},
		"required": ["agentName", "emailId", "body"]
	}`),
		},
		{
			Name:        ToolForwardEmail,
			Description: "Forward an email you hold to other agents under a new thread",
			InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			` + agentNameProperty + `,
			"emailId": {"type": "string"},
			"to": {"type": "array", "items": {"type": "string"}, "minItems": 1},
			"cc": {"type": "array", "items": {"type": "string"}},
			"bcc": {"type": "array", "items": {"type": "string"}},
			"note": {"type": "string"}
		},
		"required": ["agentName", "emailId", "to"]
	}`),
		},
		{
			Name:        ToolDeleteEmail,
			Description: "Delete an email from your own inbox",
			InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			` + agentNameProperty + `,
			"emailId": {"type": "string"},
			"permanent": {"type": "boolean", "description": "Accepted for compatibility; no trash state exists"}
		},
		"required": ["agentName", "emailId"]
	}`),
		},
		{
			Name:        ToolGetInboxStats,
			Description: "Aggregate counts over your own inbox",
			InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			` + agentNameProperty + `
		},
		"required": ["agentName"]
	}`),
		},
	}
}
