// Package directory implements the multi-agent directory service:
// registration, discovery, and presence for agent identities, plus the
// per-agent mailbox system layered on top of them.
package directory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxAgents is the hard registry capacity.
const MaxAgents = 100

// Agent availability statuses.
const (
	StatusActive  = "active"
	StatusBusy    = "busy"
	StatusIdle    = "idle"
	StatusOffline = "offline"
)

// Message and email priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// ValidStatus reports whether s is a known availability status.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusBusy, StatusIdle, StatusOffline:
		return true
	default:
		return false
	}
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// Agent is one registered identity. The session name is the stable key
// every later call uses; the id is generated at registration. Each agent
// owns its own message and email queues; queues are never shared across
// agents.
type Agent struct {
	ID            string    `json:"id"`
	SessionName   string    `json:"session_name"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	Capabilities  []string  `json:"capabilities"`
	Status        string    `json:"status"`
	StatusMessage string    `json:"status_message,omitempty"`
	Description   string    `json:"description,omitempty"`
	RegisteredAt  time.Time `json:"registered_at"`
	LastSeen      time.Time `json:"last_seen"`

	Messages []*DirectoryMessage `json:"messages"`
	Inbox    []*Email            `json:"inbox"`
}

// NewAgentID derives the generated id for a session name.
func NewAgentID(sessionName string, now time.Time) string {
	return fmt.Sprintf("%s_%d", sessionName, now.UnixMilli())
}

// DirectoryMessage is a short directed message in a recipient's queue.
// It is created once by send and mutated only by mark-read.
type DirectoryMessage struct {
	ID       string     `json:"id"`
	From     string     `json:"from"`
	FromName string     `json:"from_name"`
	To       string     `json:"to"`
	Content  string     `json:"content"`
	Priority string     `json:"priority"`
	Type     string     `json:"type,omitempty"`
	Read     bool       `json:"read"`
	ReadAt   *time.Time `json:"read_at,omitempty"`
	SentAt   time.Time  `json:"sent_at"`
}

// NewMessageID generates a directory message id.
func NewMessageID() string {
	return "msg_" + uuid.NewString()
}

// EmailAttachment is an opaque payload attached to an email. Size is
// derived from the content length, never trusted from the caller.
type EmailAttachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	MimeType string `json:"mime_type"`
	Size     int    `json:"size"`
}

// Email is one mailbox entry. ThreadID groups reply chains; it defaults
// to the email's own id for a fresh send.
type Email struct {
	ID            string            `json:"id"`
	From          string            `json:"from"`
	FromName      string            `json:"from_name"`
	To            []string          `json:"to"`
	Cc            []string          `json:"cc,omitempty"`
	Bcc           []string          `json:"bcc,omitempty"`
	Subject       string            `json:"subject"`
	Body          string            `json:"body"`
	Priority      string            `json:"priority"`
	SentAt        time.Time         `json:"sent_at"`
	Read          bool              `json:"read"`
	ReadAt        *time.Time        `json:"read_at,omitempty"`
	ReplyToID     string            `json:"reply_to_id,omitempty"`
	ForwardFromID string            `json:"forward_from_id,omitempty"`
	Attachments   []EmailAttachment `json:"attachments,omitempty"`
	ThreadID      string            `json:"thread_id"`
}

// NewEmailID generates an email id.
func NewEmailID() string {
	return "email_" + uuid.NewString()
}

// ForwardThreadID derives the fresh thread id a forward opens.
func ForwardThreadID(originalThreadID string) string {
	return "forward_" + originalThreadID
}

// Clone returns a deep copy of the email. Every recipient inbox gets its
// own copy; sharing one mutable instance would let one agent's mark-read
// corrupt another agent's unread count.
func (e *Email) Clone() *Email {
	dup := *e
	if e.ReadAt != nil {
		t := *e.ReadAt
		dup.ReadAt = &t
	}
	dup.To = append([]string(nil), e.To...)
	dup.Cc = append([]string(nil), e.Cc...)
	dup.Bcc = append([]string(nil), e.Bcc...)
	dup.Attachments = append([]EmailAttachment(nil), e.Attachments...)
	return &dup
}

// Clone returns a deep copy of the message.
func (m *DirectoryMessage) Clone() *DirectoryMessage {
	dup := *m
	if m.ReadAt != nil {
		t := *m.ReadAt
		dup.ReadAt = &t
	}
	return &dup
}
