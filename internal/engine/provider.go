package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"agentdir/internal/jsonrpc"
)

// Tool describes a named operation with a schema-typed input.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Resource describes a URI-addressable readable unit of data.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceContent is the payload returned by a resource read.
type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text"`
}

// Prompt describes a named prompt template.
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptArgument describes one prompt template argument.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// PromptMessage is one message of a rendered prompt.
type PromptMessage struct {
	Role    string      `json:"role"`
	Content TextContent `json:"content"`
}

// TextContent is plain text content in MCP result shape.
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewTextContent builds a text content block.
func NewTextContent(text string) TextContent {
	return TextContent{Type: "text", Text: text}
}

// PromptResult is the rendered form of a prompt.
type PromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// Provider is the contract implemented by each tool server. The engine
// routes decoded requests to it and converts its failures into protocol
// errors.
type Provider interface {
	// Tools returns the tool metadata advertised by tools/list.
	Tools() []Tool

	// CallTool executes a tool with raw JSON arguments and returns a
	// JSON-marshalable result.
	CallTool(ctx context.Context, name string, args json.RawMessage) (any, error)

	// Resources returns the resource metadata advertised by resources/list.
	Resources() []Resource

	// ReadResource reads one resource by URI.
	ReadResource(ctx context.Context, uri string) (*ResourceContent, error)

	// Prompts returns the prompt metadata advertised by prompts/list.
	Prompts() []Prompt

	// GetPrompt renders one prompt by name.
	GetPrompt(ctx context.Context, name string, args map[string]string) (*PromptResult, error)
}

// BaseProvider is a Provider with no tools, resources, or prompts.
// Concrete providers embed it and override what they serve.
type BaseProvider struct{}

func (BaseProvider) Tools() []Tool { return nil }

func (BaseProvider) CallTool(ctx context.Context, name string, args json.RawMessage) (any, error) {
	return nil, NewServerError(jsonrpc.CodeMethodNotFound, "unknown tool: %s", name)
}

func (BaseProvider) Resources() []Resource { return nil }

func (BaseProvider) ReadResource(ctx context.Context, uri string) (*ResourceContent, error) {
	return nil, NewServerError(jsonrpc.CodeInvalidParams, "unknown resource: %s", uri)
}

func (BaseProvider) Prompts() []Prompt { return nil }

func (BaseProvider) GetPrompt(ctx context.Context, name string, args map[string]string) (*PromptResult, error) {
	return nil, NewServerError(jsonrpc.CodeInvalidParams, "unknown prompt: %s", name)
}

// ServerError is a domain failure raised inside a provider. The engine
// converts it into a JSON-RPC error response carrying Code; providers use
// it for not-found entities, capacity limits, and validation failures.
type ServerError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	return e.Message
}

// NewServerError creates a ServerError with an explicit JSON-RPC code.
func NewServerError(code int, format string, args ...any) *ServerError {
	return &ServerError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Errorf creates a ServerError with the default internal-error code.
func Errorf(format string, args ...any) *ServerError {
	return NewServerError(jsonrpc.CodeInternalError, format, args...)
}

// CallerName extracts the mandatory agentName field from tool arguments.
// Every tool argument map must identify the calling agent; absence is an
// invalid-params error.
func CallerName(args json.RawMessage) (string, error) {
	var probe struct {
		AgentName string `json:"agentName"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &probe); err != nil {
			return "", jsonrpc.NewInvalidParams("invalid tool arguments: " + err.Error())
		}
	}
	if probe.AgentName == "" {
		return "", jsonrpc.NewInvalidParams("agentName is required")
	}
	return probe.AgentName, nil
}
