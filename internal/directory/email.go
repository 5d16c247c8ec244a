package directory

import (
	"fmt"
	"strings"
	"time"

	"agentdir/internal/engine"
	"agentdir/internal/jsonrpc"
)

// DeliveryReport summarizes a send or forward: how many addresses were
// requested versus how many resolved to a live inbox.
type DeliveryReport struct {
	EmailID              string   `json:"email_id"`
	ThreadID             string   `json:"thread_id"`
	SuccessfulDeliveries int      `json:"successful_deliveries"`
	TotalRecipients      int      `json:"total_recipients"`
	DeliveredTo          []string `json:"delivered_to"`
	Skipped              []string `json:"skipped,omitempty"`
}

// EmailSummary is the header-only view returned by check-inbox.
type EmailSummary struct {
	ID             string    `json:"id"`
	From           string    `json:"from"`
	Subject        string    `json:"subject"`
	Priority       string    `json:"priority"`
	SentAt         time.Time `json:"sent_at"`
	Read           bool      `json:"read"`
	ThreadID       string    `json:"thread_id"`
	HasAttachments bool      `json:"has_attachments"`
}

// InboxStats aggregates the caller's inbox.
type InboxStats struct {
	Total      int            `json:"total"`
	Unread     int            `json:"unread"`
	Read       int            `json:"read"`
	ByPriority map[string]int `json:"by_priority"`
	Threads    int            `json:"threads"`
}

// SendEmail resolves every address across to/cc/bcc independently and
// appends a deep copy of the email to each resolved recipient's inbox.
// Unresolvable addresses are silently skipped; the report carries the
// delivered-versus-requested counts. Never raises on partial delivery.
func (m *Mailbox) SendEmail(senderSession string, to, cc, bcc []string, subject, body, priority string, attachments []EmailAttachment) (*DeliveryReport, error) {
	if len(to) == 0 {
		return nil, jsonrpc.NewInvalidParams("at least one to recipient is required")
	}
	if subject == "" {
		return nil, jsonrpc.NewInvalidParams("subject is required")
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

	res := m.resolveLists(to, cc, bcc)

	email := &Email{
		ID:          NewEmailID(),
		From:        sender.ID,
		FromName:    sender.Name,
		To:          res.to,
		Cc:          res.cc,
		Bcc:         res.bcc,
		Subject:     subject,
		Body:        body,
		Priority:    priority,
		SentAt:      m.reg.clock(),
		Attachments: normalizeAttachments(attachments),
	}
	email.ThreadID = email.ID

	return m.deliver(email, res, len(to)+len(cc)+len(bcc)), nil
}

// CheckInbox returns header summaries of the caller's inbox, newest
// first. With markAsRead the returned entries are flagged read; with
// includeRead already-read mail appears too.
func (m *Mailbox) CheckInbox(session string, markAsRead, includeRead bool, limit int) ([]EmailSummary, error) {
	agent, ok := m.reg.BySession(session)
	if !ok {
		return nil, engine.Errorf("agent not registered: %s", session)
	}

	var out []EmailSummary
	changed := false
	for i := len(agent.Inbox) - 1; i >= 0; i-- {
		email := agent.Inbox[i]
		if !includeRead && email.Read {
			continue
		}
		out = append(out, EmailSummary{
			ID:             email.ID,
			From:           email.FromName,
			Subject:        email.Subject,
			Priority:       email.Priority,
			SentAt:         email.SentAt,
			Read:           email.Read,
			ThreadID:       email.ThreadID,
			HasAttachments: len(email.Attachments) > 0,
		})
		if markAsRead && !email.Read {
			now := m.reg.clock()
			email.Read = true
			email.ReadAt = &now
			changed = true
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	if changed {
		m.reg.persist()
	}
	return out, nil
}

// GetEmail returns the full content of one email from the calling
// agent's own inbox; other inboxes are never searched. Unless
// suppressed, reading marks the email read as a side effect.
func (m *Mailbox) GetEmail(session, emailID string, markAsRead bool) (*Email, error) {
	agent, ok := m.reg.BySession(session)
	if !ok {
		return nil, engine.Errorf("agent not registered: %s", session)
	}

	email := findEmail(agent, emailID)
	if email == nil {
		return nil, engine.Errorf("email not found: %s", emailID)
	}

	if markAsRead && !email.Read {
		now := m.reg.clock()
		email.Read = true
		email.ReadAt = &now
		m.reg.persist()
	}
	return email.Clone(), nil
}

// Reply builds a new message addressed solely to the original sender.
// It reuses the original thread id, preserves the original cc, drops
// bcc, and optionally quotes the source. The reply lands in the original
// sender's inbox and, as an outbound record, in the replier's own inbox.
func (m *Mailbox) Reply(session, emailID, body string, includeOriginal bool, priority string) (*DeliveryReport, error) {
	if body == "" {
		return nil, jsonrpc.NewInvalidParams("body is required")
	}

	agent, ok := m.reg.BySession(session)
	if !ok {
		return nil, engine.Errorf("agent not registered: %s", session)
	}
	original := findEmail(agent, emailID)
	if original == nil {
		return nil, engine.Errorf("email not found in your inbox: %s", emailID)
	}

	if priority == "" {
		priority = original.Priority
	}
	if !ValidPriority(priority) {
		return nil, jsonrpc.NewInvalidParams("invalid priority: " + priority)
	}

	originalSender, ok := m.reg.Resolve(original.From)
	if !ok {
		// The id may be stale after a re-registration; fall back to the
		// recorded display name.
		originalSender, ok = m.reg.Resolve(original.FromName)
	}
	if !ok {
		return nil, engine.Errorf("original sender no longer registered: %s", original.FromName)
	}

	replyBody := body
	if includeOriginal {
		replyBody = body + "\n\n--- Original message ---\n" + quote(original.Body)
	}

	reply := &Email{
		ID:        NewEmailID(),
		From:      agent.ID,
		FromName:  agent.Name,
		To:        []string{originalSender.Name},
		Cc:        append([]string(nil), original.Cc...),
		Subject:   replySubject(original.Subject),
		Body:      replyBody,
		Priority:  priority,
		SentAt:    m.reg.clock(),
		ReplyToID: original.ID,
		ThreadID:  original.ThreadID,
	}

	originalSender.Inbox = append(originalSender.Inbox, reply.Clone())
	if originalSender.SessionName != agent.SessionName {
		// Self-visible outbound record, pre-marked read so it never
		// inflates the replier's unread count.
		record := reply.Clone()
		now := m.reg.clock()
		record.Read = true
		record.ReadAt = &now
		agent.Inbox = append(agent.Inbox, record)
	}
	m.reg.persist()

	return &DeliveryReport{
		EmailID:              reply.ID,
		ThreadID:             reply.ThreadID,
		SuccessfulDeliveries: 1,
		TotalRecipients:      1,
		DeliveredTo:          []string{originalSender.Name},
	}, nil
}

// Forward re-sends a held message under a fresh thread id. The original
// thread is never mutated; attachments are carried over, and addresses
// resolve exactly like sendEmail.
func (m *Mailbox) Forward(session, emailID string, to, cc, bcc []string, note string) (*DeliveryReport, error) {
	if len(to) == 0 {
		return nil, jsonrpc.NewInvalidParams("at least one to recipient is required")
	}

	agent, ok := m.reg.BySession(session)
	if !ok {
		return nil, engine.Errorf("agent not registered: %s", session)
	}
	original := findEmail(agent, emailID)
	if original == nil {
		return nil, engine.Errorf("email not found in your inbox: %s", emailID)
	}

	body := "--- Forwarded message from " + original.FromName + " ---\n" + original.Body
	if note != "" {
		body = note + "\n\n" + body
	}

	res := m.resolveLists(to, cc, bcc)

	fwd := &Email{
		ID:            NewEmailID(),
		From:          agent.ID,
		FromName:      agent.Name,
		To:            res.to,
		Cc:            res.cc,
		Bcc:           res.bcc,
		Subject:       forwardSubject(original.Subject),
		Body:          body,
		Priority:      original.Priority,
		SentAt:        m.reg.clock(),
		ForwardFromID: original.ID,
		Attachments:   append([]EmailAttachment(nil), original.Attachments...),
		ThreadID:      ForwardThreadID(original.ThreadID),
	}

	return m.deliver(fwd, res, len(to)+len(cc)+len(bcc)), nil
}

// Delete removes one email from the caller's own inbox. The permanent
// flag is accepted but inert: no trash collection exists, so every
// delete behaves the same way.
func (m *Mailbox) Delete(session, emailID string, permanent bool) error {
	agent, ok := m.reg.BySession(session)
	if !ok {
		return engine.Errorf("agent not registered: %s", session)
	}

	for i, email := range agent.Inbox {
		if email.ID == emailID {
			agent.Inbox = append(agent.Inbox[:i], agent.Inbox[i+1:]...)
			m.reg.persist()
			return nil
		}
	}
	return engine.Errorf("email not found: %s", emailID)
}

// Stats aggregates total, unread/read, per-priority, and distinct thread
// counts over the caller's inbox only.
func (m *Mailbox) Stats(session string) (*InboxStats, error) {
	agent, ok := m.reg.BySession(session)
	if !ok {
		return nil, engine.Errorf("agent not registered: %s", session)
	}

	stats := &InboxStats{ByPriority: make(map[string]int)}
	threads := make(map[string]struct{})
	for _, email := range agent.Inbox {
		stats.Total++
		if email.Read {
			stats.Read++
		} else {
			stats.Unread++
		}
		stats.ByPriority[email.Priority]++
		threads[email.ThreadID] = struct{}{}
	}
	stats.Threads = len(threads)
	return stats, nil
}

// resolution is the outcome of resolving the three address lists.
type resolution struct {
	recipients  []*Agent
	to, cc, bcc []string
	skipped     []string

	// bccSessions marks which recipients were addressed via bcc; only
	// their copies carry the bcc list.
	bccSessions map[string]struct{}
}

// resolveLists resolves the three address lists independently,
// deduplicating by agent so one inbox never receives two copies of the
// same send. Returned name lists reflect only resolved addresses.
func (m *Mailbox) resolveLists(to, cc, bcc []string) resolution {
	res := resolution{bccSessions: make(map[string]struct{})}
	seen := make(map[string]struct{})

	resolveOne := func(addr string, names *[]string) *Agent {
		agent, ok := m.reg.Resolve(addr)
		if !ok {
			res.skipped = append(res.skipped, addr)
			return nil
		}
		*names = append(*names, agent.Name)
		if _, dup := seen[agent.SessionName]; dup {
			return agent
		}
		seen[agent.SessionName] = struct{}{}
		res.recipients = append(res.recipients, agent)
		return agent
	}

	for _, addr := range to {
		resolveOne(addr, &res.to)
	}
	for _, addr := range cc {
		resolveOne(addr, &res.cc)
	}
	for _, addr := range bcc {
		if agent := resolveOne(addr, &res.bcc); agent != nil {
			res.bccSessions[agent.SessionName] = struct{}{}
		}
	}
	return res
}

// deliver clones the email into every resolved inbox and persists once.
// The bcc list is stripped from copies going to anyone who was not
// themselves bcc'd, so ordinary recipients never learn who else got one.
func (m *Mailbox) deliver(email *Email, res resolution, requested int) *DeliveryReport {
	delivered := make([]string, 0, len(res.recipients))
	for _, recipient := range res.recipients {
		dup := email.Clone()
		if _, ok := res.bccSessions[recipient.SessionName]; !ok {
			dup.Bcc = nil
		}
		recipient.Inbox = append(recipient.Inbox, dup)
		delivered = append(delivered, recipient.Name)
	}
	m.reg.persist()

	return &DeliveryReport{
		EmailID:              email.ID,
		ThreadID:             email.ThreadID,
		SuccessfulDeliveries: len(delivered),
		TotalRecipients:      requested,
		DeliveredTo:          delivered,
		Skipped:              res.skipped,
	}
}

func findEmail(agent *Agent, id string) *Email {
	for _, email := range agent.Inbox {
		if email.ID == id {
			return email
		}
	}
	return nil
}

func normalizeAttachments(attachments []EmailAttachment) []EmailAttachment {
	if len(attachments) == 0 {
		return nil
	}
	out := make([]EmailAttachment, len(attachments))
	for i, a := range attachments {
		a.Size = len(a.Content)
		if a.MimeType == "" {
			a.MimeType = "text/plain"
		}
		out[i] = a
	}
	return out
}

func replySubject(subject string) string {
	if strings.HasPrefix(subject, "Re: ") {
		return subject
	}
	return "Re: " + subject
}

func forwardSubject(subject string) string {
	if strings.HasPrefix(subject, "Fwd: ") {
		return subject
	}
	return "Fwd: " + subject
}

func quote(body string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		lines[i] = fmt.Sprintf("> %s", line)
	}
	return strings.Join(lines, "\n")
}
