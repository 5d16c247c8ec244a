package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"sync"

	"agentdir/internal/jsonrpc"
)

// ProtocolVersion is the protocol revision accepted by initialize.
const ProtocolVersion = "2024-11-05"

// Method names covered by the fixed dispatch table.
const (
	MethodInitialize    = "initialize"
	MethodToolsList     = "tools/list"
	MethodToolsCall     = "tools/call"
	MethodResourcesList = "resources/list"
	MethodResourcesRead = "resources/read"
	MethodPromptsList   = "prompts/list"
	MethodPromptsGet    = "prompts/get"

	MethodInitialized = "notifications/initialized"
	MethodCancelled   = "notifications/cancelled"
)

// maxLineSize bounds a single inbound wire line (1 MiB).
const maxLineSize = 1 << 20

// unknownID is the synthetic id used for parse-error responses, since the
// real id of an unparseable line cannot be recovered.
var unknownID = json.RawMessage(`"unknown"`)

// FallbackHandler handles methods outside the fixed dispatch table.
type FallbackHandler func(ctx context.Context, req *jsonrpc.Request) (any, error)

// Options configures an Engine.
type Options struct {
	// Name and Version identify the server in the initialize result.
	Name    string
	Version string

	// In and Out replace stdin/stdout (for testing).
	In  io.Reader
	Out io.Writer

	// Logger receives diagnostics; defaults to stderr.
	Logger *log.Logger

	// Verbose enables per-message debug logging.
	Verbose bool

	// OnCancelled is invoked when a notifications/cancelled arrives.
	// No in-flight handler is interrupted; cancellation is cooperative
	// and currently only surfaced through this hook.
	OnCancelled func(requestID string)

	// Fallback handles methods the dispatch table does not cover.
	// Defaults to a method-not-found error.
	Fallback FallbackHandler
}

// Engine reads newline-delimited JSON-RPC envelopes from the transport,
// dispatches them to the bound provider, and writes responses back.
type Engine struct {
	provider Provider
	name     string
	version  string
	in       io.Reader
	out      io.Writer
	logger   *log.Logger
	verbose  bool

	onCancelled func(requestID string)
	fallback    FallbackHandler

	closeOnce sync.Once
	done      chan struct{}
}

// New creates an engine bound to the given provider.
func New(provider Provider, opts *Options) *Engine {
	if opts == nil {
		opts = &Options{}
	}

	e := &Engine{
		provider:    provider,
		name:        opts.Name,
		version:     opts.Version,
		in:          opts.In,
		out:         opts.Out,
		logger:      opts.Logger,
		verbose:     opts.Verbose,
		onCancelled: opts.OnCancelled,
		fallback:    opts.Fallback,
		done:        make(chan struct{}),
	}

	if e.name == "" {
		e.name = "agentdir"
	}
	if e.version == "" {
		e.version = "dev"
	}
	if e.in == nil {
		e.in = os.Stdin
	}
	if e.out == nil {
		e.out = os.Stdout
	}
	if e.logger == nil {
		e.logger = log.New(os.Stderr, "[agentdir] ", log.LstdFlags)
	}
	if e.fallback == nil {
		e.fallback = func(ctx context.Context, req *jsonrpc.Request) (any, error) {
			return nil, jsonrpc.NewMethodNotFound(req.Method)
		}
	}

	return e
}

// wireLine is one inbound line handed from the reader goroutine to the
// dispatch loop. tooLong marks a line that exceeded maxLineSize and was
// drained without being buffered.
type wireLine struct {
	data    []byte
	tooLong bool
}

// readWireLine reads one newline-terminated line, discarding the payload
// (but not the framing) of lines longer than maxLineSize so the stream
// stays aligned on line boundaries.
func readWireLine(r *bufio.Reader) (line []byte, tooLong bool, err error) {
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > maxLineSize {
				tooLong = true
				line = nil
			} else {
				// ReadSlice reuses its buffer; append copies.
				line = append(line, chunk...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if n := len(line); n > 0 && line[n-1] == '\n' {
			line = line[:n-1]
			if n > 1 && line[n-2] == '\r' {
				line = line[:n-2]
			}
		}
		return line, tooLong, err
	}
}

// Run binds the transport and blocks until EOF, context cancellation, or
// Close. Each line is fully processed before the next one is read.
func (e *Engine) Run(ctx context.Context) error {
	reader := bufio.NewReaderSize(e.in, 64*1024)

	lines := make(chan wireLine)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		for {
			line, tooLong, err := readWireLine(reader)
			if len(line) > 0 || tooLong {
				select {
				case lines <- wireLine{data: line, tooLong: tooLong}:
				case <-ctx.Done():
					return
				case <-e.done:
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					readErr <- err
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.done:
			return nil
		case err := <-readErr:
			return err
		case line, ok := <-lines:
			if !ok {
				// Reader goroutine finished; surface a read failure if
				// one was queued before the channel closed.
				select {
				case err := <-readErr:
					return err
				default:
					return nil // EOF
				}
			}
			if line.tooLong {
				// The id of a line we refused to buffer is unrecoverable;
				// answer like any other unparseable input and keep going.
				e.logger.Printf("dropping oversized wire line (limit %d bytes)", maxLineSize)
				e.write(jsonrpc.NewErrorResponse(unknownID, jsonrpc.NewParseError("wire line exceeds maximum size")))
				continue
			}
			e.handleLine(ctx, line.data)
		}
	}
}

// Close shuts the engine down. It is idempotent; the input subscription is
// cancelled and any in-flight handler finishes without being drained.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		close(e.done)
		if c, ok := e.out.(io.Closer); ok && e.out != os.Stdout {
			_ = c.Close()
		}
	})
	return nil
}

// handleLine parses and dispatches a single wire line.
func (e *Engine) handleLine(ctx context.Context, line []byte) {
	req, err := jsonrpc.Decode(line)
	if err != nil {
		// The id of an unparseable line is unrecoverable; answer with the
		// synthetic "unknown" id rather than dropping the line or crashing.
		e.logger.Printf("parse error: %v", err)
		e.write(jsonrpc.NewErrorResponse(unknownID, jsonrpc.NewParseError(err.Error())))
		return
	}

	switch {
	case req.IsRequest():
		e.handleRequest(ctx, req)
	case req.Method != "":
		e.handleNotification(ctx, req)
	default:
		// Response-shaped or empty envelope; nothing to dispatch to.
		e.logger.Printf("dropping message without method (id=%s)", string(req.ID))
	}
}

// handleRequest dispatches a request and always writes exactly one
// response with the request's id. Handler failures are converted into
// error responses at this boundary; one bad request never terminates the
// process.
func (e *Engine) handleRequest(ctx context.Context, req *jsonrpc.Request) {
	if e.verbose {
		e.logger.Printf("request: method=%s id=%s", req.Method, string(req.ID))
	}

	result, err := e.dispatch(ctx, req)
	if err != nil {
		e.write(jsonrpc.NewErrorResponse(req.ID, toProtocolError(err)))
		return
	}
	e.write(jsonrpc.NewResponse(req.ID, result))
}

// handleNotification dispatches a notification. Errors are logged only;
// no response channel exists for notifications.
func (e *Engine) handleNotification(ctx context.Context, req *jsonrpc.Request) {
	if e.verbose {
		e.logger.Printf("notification: method=%s", req.Method)
	}

	switch req.Method {
	case MethodInitialized:
		// Handshake acknowledgement; stateless by design.
	case MethodCancelled:
		var params struct {
			RequestID json.RawMessage `json:"requestId"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			e.logger.Printf("cancelled notification with bad params: %v", err)
			return
		}
		if e.onCancelled != nil {
			// Ids may be strings or numbers on the wire; the hook gets the
			// logical id either way ("req-9", not "\"req-9\"").
			id := string(params.RequestID)
			var s string
			if json.Unmarshal(params.RequestID, &s) == nil {
				id = s
			}
			e.onCancelled(id)
		}
	default:
		e.logger.Printf("ignoring notification: %s", req.Method)
	}
}

// dispatch routes a request through the fixed method table.
func (e *Engine) dispatch(ctx context.Context, req *jsonrpc.Request) (any, error) {
	switch req.Method {
	case MethodInitialize:
		return e.handleInitialize(req)
	case MethodToolsList:
		return e.handleToolsList()
	case MethodToolsCall:
		return e.handleToolsCall(ctx, req)
	case MethodResourcesList:
		return e.handleResourcesList()
	case MethodResourcesRead:
		return e.handleResourcesRead(ctx, req)
	case MethodPromptsList:
		return e.handlePromptsList()
	case MethodPromptsGet:
		return e.handlePromptsGet(ctx, req)
	default:
		return e.fallback(ctx, req)
	}
}

// handleInitialize validates the protocol version and returns server
// identity and capabilities. It is stateless: no session object is
// created, and a version mismatch has no side effects.
func (e *Engine) handleInitialize(req *jsonrpc.Request) (any, error) {
	var params struct {
		ProtocolVersion string `json:"protocolVersion"`
		ClientInfo      struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"clientInfo"`
	}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, jsonrpc.NewInvalidParams("invalid initialize params: " + err.Error())
		}
	}
	if params.ProtocolVersion != ProtocolVersion {
		return nil, jsonrpc.NewInvalidParams("unsupported protocol version: " + params.ProtocolVersion)
	}

	if e.verbose {
		e.logger.Printf("initialize from %s %s", params.ClientInfo.Name, params.ClientInfo.Version)
	}

	return map[string]any{
		"protocolVersion": ProtocolVersion,
		"serverInfo": map[string]any{
			"name":    e.name,
			"version": e.version,
		},
		"capabilities": map[string]any{
			"tools":     map[string]any{},
			"resources": map[string]any{},
			"prompts":   map[string]any{},
		},
	}, nil
}

func (e *Engine) handleToolsList() (any, error) {
	tools := e.provider.Tools()
	if tools == nil {
		tools = []Tool{}
	}
	return map[string]any{"tools": tools}, nil
}

func (e *Engine) handleToolsCall(ctx context.Context, req *jsonrpc.Request) (any, error) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, jsonrpc.NewInvalidParams("invalid tools/call params: " + err.Error())
	}
	if params.Name == "" {
		return nil, jsonrpc.NewInvalidParams("tool name is required")
	}

	result, err := e.provider.CallTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return nil, err
	}

	// Tool results travel as text content; structured results are
	// JSON-encoded into the text block.
	text, ok := result.(string)
	if !ok {
		data, err := json.Marshal(result)
		if err != nil {
			return nil, jsonrpc.NewInternalError("failed to encode tool result: " + err.Error())
		}
		text = string(data)
	}

	return map[string]any{
		"content": []TextContent{NewTextContent(text)},
	}, nil
}

func (e *Engine) handleResourcesList() (any, error) {
	resources := e.provider.Resources()
	if resources == nil {
		resources = []Resource{}
	}
	return map[string]any{"resources": resources}, nil
}

func (e *Engine) handleResourcesRead(ctx context.Context, req *jsonrpc.Request) (any, error) {
	var params struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, jsonrpc.NewInvalidParams("invalid resources/read params: " + err.Error())
	}
	if params.URI == "" {
		return nil, jsonrpc.NewInvalidParams("resource uri is required")
	}

	content, err := e.provider.ReadResource(ctx, params.URI)
	if err != nil {
		return nil, err
	}
	return map[string]any{"contents": []*ResourceContent{content}}, nil
}

func (e *Engine) handlePromptsList() (any, error) {
	prompts := e.provider.Prompts()
	if prompts == nil {
		prompts = []Prompt{}
	}
	return map[string]any{"prompts": prompts}, nil
}

func (e *Engine) handlePromptsGet(ctx context.Context, req *jsonrpc.Request) (any, error) {
	var params struct {
		Name      string            `json:"name"`
		Arguments map[string]string `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, jsonrpc.NewInvalidParams("invalid prompts/get params: " + err.Error())
	}

	result, err := e.provider.GetPrompt(ctx, params.Name, params.Arguments)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// toProtocolError converts a handler failure into a JSON-RPC error.
// Protocol errors pass through, domain errors keep their declared code,
// anything else becomes an internal error.
func toProtocolError(err error) *jsonrpc.Error {
	var rpcErr *jsonrpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	var srvErr *ServerError
	if errors.As(err, &srvErr) {
		return &jsonrpc.Error{Code: srvErr.Code, Message: srvErr.Message}
	}
	return jsonrpc.NewInternalError(err.Error())
}

// write encodes and writes one outbound message. Write failures are
// logged; the read loop keeps going.
func (e *Engine) write(msg any) {
	data, err := jsonrpc.Encode(msg)
	if err != nil {
		e.logger.Printf("failed to encode response: %v", err)
		return
	}
	if _, err := e.out.Write(data); err != nil {
		e.logger.Printf("failed to write response: %v", err)
	}
}
