package directory

import (
	"encoding/json"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"agentdir/internal/engine"
	"agentdir/internal/jsonrpc"
	"agentdir/internal/store"
)

// DirectoryFile is the collection name for the registry document.
const DirectoryFile = "company_directory.json"

// Registry holds every registered agent identity, keyed by session name.
// It is instantiated once per process and handed by reference into the
// provider; the engine's sequential dispatch means no locking is needed.
type Registry struct {
	agents  map[string]*Agent
	gateway *store.Gateway
	logger  *log.Logger
	clock   func() time.Time
}

// NewRegistry creates an empty registry backed by the given gateway.
func NewRegistry(gateway *store.Gateway, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(os.Stderr, "[directory] ", log.LstdFlags)
	}
	return &Registry{
		agents:  make(map[string]*Agent),
		gateway: gateway,
		logger:  logger,
		clock:   time.Now,
	}
}

// directoryDocument is the persisted registry shape. Agents are kept as
// raw JSON on load so one corrupt entry can be skipped without aborting
// the whole document.
type directoryDocument struct {
	SavedAt time.Time         `json:"saved_at"`
	Agents  []json.RawMessage `json:"agents"`
}

type directorySnapshot struct {
	SavedAt time.Time `json:"saved_at"`
	Agents  []*Agent  `json:"agents"`
}

// Load replaces the in-memory table with the persisted document.
// Per-entry decode failures are logged and skipped; only a document-level
// read failure is reported.
func (r *Registry) Load() error {
	var doc directoryDocument
	if err := r.gateway.Load(DirectoryFile, &doc); err != nil {
		if os.IsNotExist(err) || err == store.ErrDisabled {
			return nil
		}
		return err
	}

	agents := make(map[string]*Agent, len(doc.Agents))
	for i, raw := range doc.Agents {
		var agent Agent
		if err := json.Unmarshal(raw, &agent); err != nil {
			r.logger.Printf("skipping undecodable directory entry %d: %v", i, err)
			continue
		}
		if agent.SessionName == "" {
			r.logger.Printf("skipping directory entry %d without session name", i)
			continue
		}
		agents[agent.SessionName] = &agent
	}

	r.agents = agents
	return nil
}

// persist re-serializes the entire registry, nested queues included.
// It runs after every mutation; a write failure is logged and swallowed
// since the in-memory mutation already succeeded.
func (r *Registry) persist() {
	snap := directorySnapshot{
		SavedAt: r.clock(),
		Agents:  r.sortedAgents(),
	}
	if err := r.gateway.Save(DirectoryFile, snap); err != nil {
		r.logger.Printf("warning: failed to persist directory: %v", err)
	}
}

// sortedAgents returns all agents ordered by last-seen descending, which
// is both the list order and the persisted order.
func (r *Registry) sortedAgents() []*Agent {
	agents := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		agents = append(agents, a)
	}
	sort.Slice(agents, func(i, j int) bool {
		if agents[i].LastSeen.Equal(agents[j].LastSeen) {
			return agents[i].SessionName < agents[j].SessionName
		}
		return agents[i].LastSeen.After(agents[j].LastSeen)
	})
	return agents
}

// Register creates a new identity for the session name. Re-registration
// replaces the previous identity (queues included); a brand-new
// registration fails once the registry holds MaxAgents entries.
func (r *Registry) Register(sessionName, name, role string, capabilities []string, status, description string) (*Agent, error) {
	if sessionName == "" {
		return nil, jsonrpc.NewInvalidParams("agentName is required")
	}
	if name == "" {
		return nil, jsonrpc.NewInvalidParams("name is required")
	}
	if role == "" {
		return nil, jsonrpc.NewInvalidParams("role is required")
	}
	if status == "" {
		status = StatusActive
	}
	if !ValidStatus(status) {
		return nil, jsonrpc.NewInvalidParams("invalid status: " + status)
	}

	_, exists := r.agents[sessionName]
	if !exists && len(r.agents) >= MaxAgents {
		return nil, engine.Errorf("registry is full: maximum of %d agents reached", MaxAgents)
	}

	now := r.clock()
	agent := &Agent{
		ID:           NewAgentID(sessionName, now),
		SessionName:  sessionName,
		Name:         name,
		Role:         role,
		Capabilities: append([]string(nil), capabilities...),
		Status:       status,
		Description:  description,
		RegisteredAt: now,
		LastSeen:     now,
		Messages:     []*DirectoryMessage{},
		Inbox:        []*Email{},
	}
	r.agents[sessionName] = agent
	r.persist()
	return agent, nil
}

// List returns a snapshot ordered by last-seen descending, optionally
// filtered by exact status, role substring, and capability substring.
func (r *Registry) List(status, roleContains, capabilityContains string) ([]*Agent, error) {
	if status != "" && !ValidStatus(status) {
		return nil, jsonrpc.NewInvalidParams("invalid status: " + status)
	}

	var out []*Agent
	for _, a := range r.sortedAgents() {
		if status != "" && a.Status != status {
			continue
		}
		if roleContains != "" && !strings.Contains(strings.ToLower(a.Role), strings.ToLower(roleContains)) {
			continue
		}
		if capabilityContains != "" && !hasCapability(a, capabilityContains) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func hasCapability(a *Agent, substr string) bool {
	needle := strings.ToLower(substr)
	for _, c := range a.Capabilities {
		if strings.Contains(strings.ToLower(c), needle) {
			return true
		}
	}
	return false
}

// Find looks an agent up by generated id, then by case-insensitive exact
// display name.
func (r *Registry) Find(query string) (*Agent, error) {
	for _, a := range r.agents {
		if a.ID == query {
			return a, nil
		}
	}
	for _, a := range r.agents {
		if strings.EqualFold(a.Name, query) {
			return a, nil
		}
	}
	return nil, engine.Errorf("agent not found: %s", query)
}

// BySession returns the live identity for a session name, if any.
func (r *Registry) BySession(sessionName string) (*Agent, bool) {
	a, ok := r.agents[sessionName]
	return a, ok
}

// Resolve maps a recipient address to an agent, trying generated id,
// then session name, then case-insensitive display name, in that order.
func (r *Registry) Resolve(addr string) (*Agent, bool) {
	for _, a := range r.agents {
		if a.ID == addr {
			return a, true
		}
	}
	if a, ok := r.agents[addr]; ok {
		return a, true
	}
	for _, a := range r.agents {
		if strings.EqualFold(a.Name, addr) {
			return a, true
		}
	}
	return nil, false
}

// UpdateStatus replaces status, status message, and last-seen for the
// session's identity. Unregistered sessions fail.
func (r *Registry) UpdateStatus(sessionName, status, message string) (*Agent, error) {
	if !ValidStatus(status) {
		return nil, jsonrpc.NewInvalidParams("invalid status: " + status)
	}
	agent, ok := r.agents[sessionName]
	if !ok {
		return nil, engine.Errorf("agent not registered: %s", sessionName)
	}

	agent.Status = status
	agent.StatusMessage = message
	agent.LastSeen = r.clock()
	r.persist()
	return agent, nil
}

// Unregister deletes the identity and everything it owns, queued
// messages and mail included.
func (r *Registry) Unregister(sessionName, reason string) error {
	agent, ok := r.agents[sessionName]
	if !ok {
		return engine.Errorf("agent not registered: %s", sessionName)
	}

	delete(r.agents, sessionName)
	if reason != "" {
		r.logger.Printf("unregistered %s (%s): %s", agent.Name, sessionName, reason)
	}
	r.persist()
	return nil
}

// Count returns the number of live identities.
func (r *Registry) Count() int {
	return len(r.agents)
}
