package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendEmail_ReadLifecycle(t *testing.T) {
	_, mb := registerPair(t)

	report, err := mb.SendEmail("alice", []string{"bob"}, nil, nil, "Standup", "notes attached", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SuccessfulDeliveries)
	assert.Equal(t, report.EmailID, report.ThreadID)

	// Unread until fetched with markAsRead.
	stats, err := mb.Stats("bob")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Unread)

	email, err := mb.GetEmail("bob", report.EmailID, true)
	require.NoError(t, err)
	assert.Equal(t, "Standup", email.Subject)
	assert.Equal(t, "Alice", email.FromName)

	stats, err = mb.Stats("bob")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Unread)
	assert.Equal(t, 1, stats.Read)

	// Unread-only inbox view no longer shows it.
	summaries, err := mb.CheckInbox("bob", false, false, 0)
	require.NoError(t, err)
	assert.Empty(t, summaries)
	summaries, err = mb.CheckInbox("bob", false, true, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.True(t, summaries[0].Read)
}

func TestSendEmail_PartialDeliveryIsNotAnError(t *testing.T) {
	_, mb := registerPair(t)

	report, err := mb.SendEmail("alice", []string{"bob", "nosuchagent"}, nil, nil, "FYI", "body", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SuccessfulDeliveries)
	assert.Equal(t, 2, report.TotalRecipients)
	assert.Equal(t, []string{"Bob"}, report.DeliveredTo)
	assert.Equal(t, []string{"nosuchagent"}, report.Skipped)
}

func TestSendEmail_DedupesRecipientAcrossLists(t *testing.T) {
	reg, mb := registerPair(t)
	bob, _ := reg.BySession("bob")

	// Bob addressed three ways still gets one copy.
	report, err := mb.SendEmail("alice", []string{"bob"}, []string{bob.ID}, []string{"Bob"}, "Dup", "body", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SuccessfulDeliveries)
	assert.Len(t, bob.Inbox, 1)
}

func TestSendEmail_HidesBccFromOtherRecipients(t *testing.T) {
	reg, mb := registerPair(t)
	_, err := reg.Register("carol", "Carol", "dev", nil, "", "")
	require.NoError(t, err)

	report, err := mb.SendEmail("alice", []string{"bob"}, nil, []string{"carol"}, "Quiet cc", "body", "", nil)
	require.NoError(t, err)
	require.Equal(t, 2, report.SuccessfulDeliveries)

	bobCopy, err := mb.GetEmail("bob", report.EmailID, false)
	require.NoError(t, err)
	assert.Empty(t, bobCopy.Bcc)

	carolCopy, err := mb.GetEmail("carol", report.EmailID, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Carol"}, carolCopy.Bcc)
}

func TestForward_HidesBccFromOtherRecipients(t *testing.T) {
	reg, mb := registerPair(t)
	_, err := reg.Register("carol", "Carol", "dev", nil, "", "")
	require.NoError(t, err)

	sent, err := mb.SendEmail("alice", []string{"bob"}, nil, nil, "Design doc", "v1 attached", "", nil)
	require.NoError(t, err)

	fwd, err := mb.Forward("bob", sent.EmailID, []string{"alice"}, nil, []string{"carol"}, "")
	require.NoError(t, err)

	aliceCopy, err := mb.GetEmail("alice", fwd.EmailID, false)
	require.NoError(t, err)
	assert.Empty(t, aliceCopy.Bcc)

	carolCopy, err := mb.GetEmail("carol", fwd.EmailID, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Carol"}, carolCopy.Bcc)
}

func TestSendEmail_Validation(t *testing.T) {
	_, mb := registerPair(t)

	_, err := mb.SendEmail("alice", nil, nil, nil, "Subject", "body", "", nil)
	require.Error(t, err)
	_, err = mb.SendEmail("alice", []string{"bob"}, nil, nil, "", "body", "", nil)
	require.Error(t, err)
	_, err = mb.SendEmail("alice", []string{"bob"}, nil, nil, "Subject", "body", "asap", nil)
	require.Error(t, err)
	_, err = mb.SendEmail("ghost", []string{"bob"}, nil, nil, "Subject", "body", "", nil)
	require.Error(t, err)
}

func TestSendEmail_NormalizesAttachments(t *testing.T) {
	reg, mb := registerPair(t)
	bob, _ := reg.BySession("bob")

	_, err := mb.SendEmail("alice", []string{"bob"}, nil, nil, "Report", "see attachment",
		"", []EmailAttachment{{Filename: "notes.txt", Content: "hello world"}})
	require.NoError(t, err)

	require.Len(t, bob.Inbox, 1)
	att := bob.Inbox[0].Attachments
	require.Len(t, att, 1)
	assert.Equal(t, len("hello world"), att[0].Size)
	assert.Equal(t, "text/plain", att[0].MimeType)
}

func TestDeliveries_AreIndependentCopies(t *testing.T) {
	reg, mb := registerPair(t)
	_, err := reg.Register("carol", "Carol", "dev", nil, "", "")
	require.NoError(t, err)

	report, err := mb.SendEmail("alice", []string{"bob", "carol"}, nil, nil, "Shared", "body", "", nil)
	require.NoError(t, err)
	require.Equal(t, 2, report.SuccessfulDeliveries)

	// Bob reading his copy must not touch Carol's.
	_, err = mb.GetEmail("bob", report.EmailID, true)
	require.NoError(t, err)

	carolStats, err := mb.Stats("carol")
	require.NoError(t, err)
	assert.Equal(t, 1, carolStats.Unread)
}

func TestGetEmail_ScopedToOwnInbox(t *testing.T) {
	_, mb := registerPair(t)

	report, err := mb.SendEmail("alice", []string{"bob"}, nil, nil, "Private", "body", "", nil)
	require.NoError(t, err)

	// Alice cannot fetch mail sitting in Bob's inbox.
	_, err = mb.GetEmail("alice", report.EmailID, false)
	require.Error(t, err)

	// markAsRead=false leaves the email unread.
	_, err = mb.GetEmail("bob", report.EmailID, false)
	require.NoError(t, err)
	stats, err := mb.Stats("bob")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Unread)
}

func TestReply_StaysOnThread(t *testing.T) {
	reg, mb := registerPair(t)
	_, err := reg.Register("carol", "Carol", "dev", nil, "", "")
	require.NoError(t, err)
	alice, _ := reg.BySession("alice")
	bob, _ := reg.BySession("bob")

	sent, err := mb.SendEmail("alice", []string{"bob"}, []string{"carol"}, []string{"carol"}, "Plan", "v1 attached", PriorityHigh, nil)
	require.NoError(t, err)

	report, err := mb.Reply("bob", sent.EmailID, "looks good", true, "")
	require.NoError(t, err)
	assert.Equal(t, sent.ThreadID, report.ThreadID)
	assert.Equal(t, []string{"Alice"}, report.DeliveredTo)
	assert.Equal(t, 1, report.SuccessfulDeliveries)

	require.Len(t, alice.Inbox, 1)
	reply := alice.Inbox[0]
	assert.Equal(t, "Re: Plan", reply.Subject)
	assert.Equal(t, sent.ThreadID, reply.ThreadID)
	assert.Equal(t, sent.EmailID, reply.ReplyToID)
	assert.Equal(t, []string{"Alice"}, reply.To)
	// Cc rides along; bcc never does.
	assert.Equal(t, []string{"Carol"}, reply.Cc)
	assert.Empty(t, reply.Bcc)
	// Priority inherited from the original.
	assert.Equal(t, PriorityHigh, reply.Priority)
	assert.Contains(t, reply.Body, "looks good")
	assert.Contains(t, reply.Body, "> v1 attached")

	// Bob keeps an outbound record that never counts as unread.
	require.Len(t, bob.Inbox, 2)
	record := bob.Inbox[1]
	assert.Equal(t, reply.ID, record.ID)
	assert.True(t, record.Read)

	stats, err := mb.Stats("bob")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Unread)
	// Same thread from both directions.
	assert.Equal(t, 1, stats.Threads)
}

func TestReply_SubjectPrefixNotStacked(t *testing.T) {
	_, mb := registerPair(t)

	sent, err := mb.SendEmail("alice", []string{"bob"}, nil, nil, "Re: Plan", "body", "", nil)
	require.NoError(t, err)

	_, err = mb.Reply("bob", sent.EmailID, "ack", false, "")
	require.NoError(t, err)

	summaries, err := mb.CheckInbox("alice", false, true, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Re: Plan", summaries[0].Subject)
}

func TestReply_RequiresHeldEmail(t *testing.T) {
	_, mb := registerPair(t)

	_, err := mb.Reply("bob", "email_nope", "hi", false, "")
	require.Error(t, err)
	_, err = mb.Reply("bob", "email_nope", "", false, "")
	require.Error(t, err)
}

func TestForward_OpensNewThread(t *testing.T) {
	reg, mb := registerPair(t)
	_, err := reg.Register("carol", "Carol", "dev", nil, "", "")
	require.NoError(t, err)
	carol, _ := reg.BySession("carol")

	sent, err := mb.SendEmail("alice", []string{"bob"}, nil, nil, "Design doc", "draft here", PriorityHigh,
		[]EmailAttachment{{Filename: "notes.txt", Content: "draft"}})
	require.NoError(t, err)

	report, err := mb.Forward("bob", sent.EmailID, []string{"carol"}, nil, nil, "thoughts?")
	require.NoError(t, err)
	assert.Equal(t, "forward_"+sent.ThreadID, report.ThreadID)
	assert.NotEqual(t, sent.ThreadID, report.ThreadID)

	require.Len(t, carol.Inbox, 1)
	fwd := carol.Inbox[0]
	assert.Equal(t, "Fwd: Design doc", fwd.Subject)
	assert.Equal(t, sent.EmailID, fwd.ForwardFromID)
	assert.Equal(t, "Bob", fwd.FromName)
	assert.Equal(t, PriorityHigh, fwd.Priority)
	assert.Contains(t, fwd.Body, "thoughts?")
	assert.Contains(t, fwd.Body, "--- Forwarded message from Alice ---")
	assert.Contains(t, fwd.Body, "draft here")
	require.Len(t, fwd.Attachments, 1)
	assert.Equal(t, "notes.txt", fwd.Attachments[0].Filename)

	// The original in Bob's inbox is untouched.
	original, err := mb.GetEmail("bob", sent.EmailID, false)
	require.NoError(t, err)
	assert.Equal(t, sent.ThreadID, original.ThreadID)
}

func TestDelete_RemovesFromOwnInboxOnly(t *testing.T) {
	_, mb := registerPair(t)

	sent, err := mb.SendEmail("alice", []string{"bob"}, nil, nil, "Gone soon", "body", "", nil)
	require.NoError(t, err)

	// Alice holds no copy, so she has nothing to delete.
	err = mb.Delete("alice", sent.EmailID, false)
	require.Error(t, err)

	require.NoError(t, mb.Delete("bob", sent.EmailID, false))
	stats, err := mb.Stats("bob")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)

	err = mb.Delete("bob", sent.EmailID, true)
	require.Error(t, err)
}

func TestStats_Aggregates(t *testing.T) {
	_, mb := registerPair(t)

	first, err := mb.SendEmail("alice", []string{"bob"}, nil, nil, "One", "a", PriorityLow, nil)
	require.NoError(t, err)
	_, err = mb.SendEmail("alice", []string{"bob"}, nil, nil, "Two", "b", PriorityLow, nil)
	require.NoError(t, err)
	_, err = mb.SendEmail("alice", []string{"bob"}, nil, nil, "Three", "c", PriorityUrgent, nil)
	require.NoError(t, err)
	_, err = mb.GetEmail("bob", first.EmailID, true)
	require.NoError(t, err)

	stats, err := mb.Stats("bob")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Read)
	assert.Equal(t, 2, stats.Unread)
	assert.Equal(t, 2, stats.ByPriority[PriorityLow])
	assert.Equal(t, 1, stats.ByPriority[PriorityUrgent])
	assert.Equal(t, 3, stats.Threads)
}

func TestCheckInbox_MarkAsReadAndLimit(t *testing.T) {
	_, mb := registerPair(t)

	for _, subject := range []string{"one", "two", "three"} {
		_, err := mb.SendEmail("alice", []string{"bob"}, nil, nil, subject, "body", "", nil)
		require.NoError(t, err)
	}

	// Limit applies newest first; only the returned entries get marked.
	summaries, err := mb.CheckInbox("bob", true, false, 2)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "three", summaries[0].Subject)
	assert.Equal(t, "two", summaries[1].Subject)

	stats, err := mb.Stats("bob")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Unread)
}
