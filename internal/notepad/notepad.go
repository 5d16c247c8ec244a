// Package notepad implements the notepad tool server: named notes with
// per-agent isolated storage, one JSON document per agent.
package notepad

import (
	"log"
	"os"
	"sort"
	"time"

	"agentdir/internal/engine"
	"agentdir/internal/jsonrpc"
	"agentdir/internal/store"

	"github.com/google/uuid"
)

// Note is one named note in an agent's notepad.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Pad holds every agent's notes, keyed by session name. Notes are never
// visible across agents.
type Pad struct {
	notes   map[string][]*Note
	gateway *store.Gateway
	logger  *log.Logger
	clock   func() time.Time
}

// NewPad creates an empty notepad backed by the gateway.
func NewPad(gateway *store.Gateway, logger *log.Logger) *Pad {
	if logger == nil {
		logger = log.New(os.Stderr, "[notepad] ", log.LstdFlags)
	}
	return &Pad{
		notes:   make(map[string][]*Note),
		gateway: gateway,
		logger:  logger,
		clock:   time.Now,
	}
}

func fileFor(agent string) string {
	return "notepad_" + agent + ".json"
}

type padDocument struct {
	SavedAt time.Time `json:"saved_at"`
	Notes   []*Note   `json:"notes"`
}

// load pulls the agent's document on first access.
func (p *Pad) load(agent string) []*Note {
	if notes, ok := p.notes[agent]; ok {
		return notes
	}
	var doc padDocument
	if err := p.gateway.Load(fileFor(agent), &doc); err != nil {
		if !os.IsNotExist(err) && err != store.ErrDisabled {
			p.logger.Printf("warning: failed to load notepad for %s: %v", agent, err)
		}
		p.notes[agent] = []*Note{}
		return p.notes[agent]
	}
	p.notes[agent] = doc.Notes
	return doc.Notes
}

func (p *Pad) persist(agent string) {
	doc := padDocument{SavedAt: p.clock(), Notes: p.notes[agent]}
	if err := p.gateway.Save(fileFor(agent), doc); err != nil {
		p.logger.Printf("warning: failed to persist notepad for %s: %v", agent, err)
	}
}

// Write creates a note, or overwrites the note with the same title.
func (p *Pad) Write(agent, title, content string) (*Note, error) {
	if title == "" {
		return nil, jsonrpc.NewInvalidParams("title is required")
	}

	notes := p.load(agent)
	now := p.clock()
	for _, n := range notes {
		if n.Title == title {
			n.Content = content
			n.UpdatedAt = now
			p.persist(agent)
			return n, nil
		}
	}

	note := &Note{
		ID:        "note_" + uuid.NewString(),
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.notes[agent] = append(notes, note)
	p.persist(agent)
	return note, nil
}

// Read returns one note by title.
func (p *Pad) Read(agent, title string) (*Note, error) {
	for _, n := range p.load(agent) {
		if n.Title == title {
			return n, nil
		}
	}
	return nil, engine.Errorf("note not found: %s", title)
}

// List returns the agent's notes, most recently updated first.
func (p *Pad) List(agent string) []*Note {
	notes := append([]*Note(nil), p.load(agent)...)
	sort.Slice(notes, func(i, j int) bool {
		return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
	})
	return notes
}

// Delete removes one note by title.
func (p *Pad) Delete(agent, title string) error {
	notes := p.load(agent)
	for i, n := range notes {
		if n.Title == title {
			p.notes[agent] = append(notes[:i], notes[i+1:]...)
			p.persist(agent)
			return nil
		}
	}
	return engine.Errorf("note not found: %s", title)
}
