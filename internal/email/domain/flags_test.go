package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFoldThreadFlags(t *testing.T) {
	messages := []RemoteMessage{
		{LabelIDs: []string{"INBOX"}},
		{LabelIDs: []string{GmailLabelUnread, "INBOX"}},
		{LabelIDs: []string{GmailLabelStarred}},
	}

	flags := FoldThreadFlags(messages)

	assert.True(t, flags.IsUnread)
	assert.True(t, flags.IsStarred)
	assert.False(t, flags.IsImportant)
	assert.False(t, flags.HasDraft)
}

func TestFoldThreadFlagsEmpty(t *testing.T) {
	assert.Equal(t, ThreadFlags{}, FoldThreadFlags(nil))
}

func TestMessageFlags(t *testing.T) {
	isUnread, isStarred, isDraft := MessageFlags([]string{GmailLabelDraft, GmailLabelUnread})
	assert.True(t, isUnread)
	assert.False(t, isStarred)
	assert.True(t, isDraft)
}

func TestUnionLabelIDs(t *testing.T) {
	messages := []RemoteMessage{
		{LabelIDs: []string{"INBOX", GmailLabelUnread}},
		{LabelIDs: []string{GmailLabelUnread, "WORK"}},
	}

	assert.Equal(t, []string{"INBOX", GmailLabelUnread, "WORK"}, UnionLabelIDs(messages))
}

func TestLatestMessageTime(t *testing.T) {
	t1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(2 * time.Hour)
	messages := []RemoteMessage{{SentAt: t2}, {SentAt: t1}}

	assert.Equal(t, t2, LatestMessageTime(messages))
}
