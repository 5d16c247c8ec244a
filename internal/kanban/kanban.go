// Package kanban implements the kanban tool server: per-agent tickets
// moving through a fixed ordered status pipeline, persisted as JSON with
// a human-readable markdown rendering of the board.
package kanban

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"agentdir/internal/engine"
	"agentdir/internal/jsonrpc"
	"agentdir/internal/store"

	"github.com/google/uuid"
)

// Pipeline is the fixed ordered status progression. Tickets move one
// step at a time and never cycle back past Complete.
var Pipeline = []string{"Backlog", "In Progress", "Review", "Testing", "Complete"}

// TicketsFile is the JSON load source; BoardFile is the rendered board.
const (
	TicketsFile = "kanban_tickets.json"
	BoardFile   = "kanban_board.md"
)

// Ticket is one kanban card, owned by the agent that created it.
type Ticket struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Priority  string    `json:"priority"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// nextStatus returns the pipeline step after s, or "" when s is terminal
// or unknown.
func nextStatus(s string) string {
	for i, step := range Pipeline {
		if step == s && i < len(Pipeline)-1 {
			return Pipeline[i+1]
		}
	}
	return ""
}

// Board holds every ticket across agents; reads and mutations are scoped
// to the calling agent's own cards.
type Board struct {
	tickets []*Ticket
	gateway *store.Gateway
	logger  *log.Logger
	clock   func() time.Time
	loaded  bool
}

// NewBoard creates an empty board backed by the gateway.
func NewBoard(gateway *store.Gateway, logger *log.Logger) *Board {
	if logger == nil {
		logger = log.New(os.Stderr, "[kanban] ", log.LstdFlags)
	}
	return &Board{
		gateway: gateway,
		logger:  logger,
		clock:   time.Now,
	}
}

type boardDocument struct {
	SavedAt time.Time `json:"saved_at"`
	Tickets []*Ticket `json:"tickets"`
}

func (b *Board) load() {
	if b.loaded {
		return
	}
	b.loaded = true

	var doc boardDocument
	if err := b.gateway.Load(TicketsFile, &doc); err != nil {
		if !os.IsNotExist(err) && err != store.ErrDisabled {
			b.logger.Printf("warning: failed to load kanban tickets: %v", err)
		}
		return
	}
	b.tickets = doc.Tickets
}

// persist writes the JSON source of truth and re-renders the markdown
// board next to it.
func (b *Board) persist() {
	doc := boardDocument{SavedAt: b.clock(), Tickets: b.tickets}
	if err := b.gateway.Save(TicketsFile, doc); err != nil {
		b.logger.Printf("warning: failed to persist kanban tickets: %v", err)
	}
	if err := b.gateway.SaveText(BoardFile, b.renderBoard()); err != nil {
		b.logger.Printf("warning: failed to render kanban board: %v", err)
	}
}

// renderBoard produces the markdown view, one section per pipeline step.
func (b *Board) renderBoard() string {
	var sb strings.Builder
	sb.WriteString("# Kanban board\n")
	for _, status := range Pipeline {
		sb.WriteString("\n## " + status + "\n\n")
		empty := true
		for _, t := range b.tickets {
			if t.Status != status {
				continue
			}
			empty = false
			fmt.Fprintf(&sb, "- **%s** `%s` (%s, %s)\n", t.Title, t.ID, t.Owner, t.Priority)
			if t.Body != "" {
				fmt.Fprintf(&sb, "  %s\n", t.Body)
			}
		}
		if empty {
			sb.WriteString("_empty_\n")
		}
	}
	return sb.String()
}

// Create adds a ticket in Backlog.
func (b *Board) Create(owner, title, body, priority string) (*Ticket, error) {
	if title == "" {
		return nil, jsonrpc.NewInvalidParams("title is required")
	}
	if priority == "" {
		priority = "normal"
	}

	b.load()
	now := b.clock()
	ticket := &Ticket{
		ID:        "ticket_" + uuid.NewString(),
		Owner:     owner,
		Title:     title,
		Body:      body,
		Priority:  priority,
		Status:    Pipeline[0],
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.tickets = append(b.tickets, ticket)
	b.persist()
	return ticket, nil
}

// Tickets returns the calling agent's tickets, optionally restricted to
// one pipeline status.
func (b *Board) Tickets(owner, status string) ([]*Ticket, error) {
	if status != "" && nextStatus(status) == "" && status != Pipeline[len(Pipeline)-1] {
		return nil, jsonrpc.NewInvalidParams("invalid status: " + status)
	}

	b.load()
	var out []*Ticket
	for _, t := range b.tickets {
		if t.Owner != owner {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Progress advances one of the caller's tickets a single pipeline step.
// Progressing a Complete ticket fails; the pipeline never cycles.
func (b *Board) Progress(owner, ticketID string) (*Ticket, error) {
	b.load()
	for _, t := range b.tickets {
		if t.ID != ticketID || t.Owner != owner {
			continue
		}
		next := nextStatus(t.Status)
		if next == "" {
			return nil, engine.Errorf("ticket already complete: %s", ticketID)
		}
		t.Status = next
		t.UpdatedAt = b.clock()
		b.persist()
		return t, nil
	}
	return nil, engine.Errorf("ticket not found: %s", ticketID)
}
