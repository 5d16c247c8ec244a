package directory

import (
	"agentdir/internal/engine"
	"agentdir/internal/jsonrpc"
)

// Mailbox layers the message and email queues on top of the registry.
// It holds no state of its own; every queue lives inside the owning
// agent's identity.
type Mailbox struct {
	reg *Registry
}

// NewMailbox creates a mailbox system over the registry.
func NewMailbox(reg *Registry) *Mailbox {
	return &Mailbox{reg: reg}
}

// SendMessage appends a directory message to the recipient's queue.
// The sender is the calling session; the recipient address is resolved
// by id, then session name, then case-insensitive name. Both sides must
// resolve.
func (m *Mailbox) SendMessage(senderSession, to, content, priority, msgType string) (*DirectoryMessage, error) {
	if content == "" {
		return nil, jsonrpc.NewInvalidParams("content is required")
	}
	if priority == "" {
		priority = PriorityNormal
	}
	if !ValidPriority(priority) {
		return nil, jsonrpc.NewInvalidParams("invalid priority: " + priority)
	}

	sender, ok := m.reg.BySession(senderSession)
	if !ok {
		return nil, engine.Errorf("sender not registered: %s", senderSession)
	}
	recipient, ok := m.reg.Resolve(to)
	if !ok {
		return nil, engine.Errorf("recipient not found: %s", to)
	}

	msg := &DirectoryMessage{
		ID:       NewMessageID(),
		From:     sender.ID,
		FromName: sender.Name,
		To:       recipient.ID,
		Content:  content,
		Priority: priority,
		Type:     msgType,
		SentAt:   m.reg.clock(),
	}
	recipient.Messages = append(recipient.Messages, msg)
	m.reg.persist()
	return msg, nil
}

// Messages returns copies of the caller's queued messages, newest first,
// optionally restricted to unread and/or one priority, capped at limit.
func (m *Mailbox) Messages(session string, unreadOnly bool, priority string, limit int) ([]*DirectoryMessage, error) {
	if priority != "" && !ValidPriority(priority) {
		return nil, jsonrpc.NewInvalidParams("invalid priority: " + priority)
	}
	agent, ok := m.reg.BySession(session)
	if !ok {
		return nil, engine.Errorf("agent not registered: %s", session)
	}

	var out []*DirectoryMessage
	for i := len(agent.Messages) - 1; i >= 0; i-- {
		msg := agent.Messages[i]
		if unreadOnly && msg.Read {
			continue
		}
		if priority != "" && msg.Priority != priority {
			continue
		}
		out = append(out, msg.Clone())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// MarkMessageRead flags one queued message as read and stamps the read
// time. Marking an already-read message again is a no-op, not an error.
// Returns whether the state actually changed.
func (m *Mailbox) MarkMessageRead(session, messageID string) (bool, error) {
	agent, ok := m.reg.BySession(session)
	if !ok {
		return false, engine.Errorf("agent not registered: %s", session)
	}

	for _, msg := range agent.Messages {
		if msg.ID != messageID {
			continue
		}
		if msg.Read {
			return false, nil
		}
		now := m.reg.clock()
		msg.Read = true
		msg.ReadAt = &now
		m.reg.persist()
		return true, nil
	}
	return false, engine.Errorf("message not found: %s", messageID)
}
