package domain

import "time"

// Well-known Gmail system label IDs
const (
	GmailLabelUnread    = "UNREAD"
	GmailLabelStarred   = "STARRED"
	GmailLabelImportant = "IMPORTANT"
	GmailLabelDraft     = "DRAFT"
)

// ThreadFlags are the denormalized flags stored on a thread row
type ThreadFlags struct {
	IsUnread    bool
	IsStarred   bool
	IsImportant bool
	HasDraft    bool
}

// FoldThreadFlags derives thread-level flags from the label sets of the
// thread's messages: a flag is set if any message carries the label.
func FoldThreadFlags(messages []RemoteMessage) ThreadFlags {
	var flags ThreadFlags
	for _, msg := range messages {
		for _, labelID := range msg.LabelIDs {
			switch labelID {
			case GmailLabelUnread:
				flags.IsUnread = true
			case GmailLabelStarred:
				flags.IsStarred = true
			case GmailLabelImportant:
				flags.IsImportant = true
			case GmailLabelDraft:
				flags.HasDraft = true
			}
		}
	}
	return flags
}

// MessageFlags extracts the per-message flags from its label set
func MessageFlags(labelIDs []string) (isUnread, isStarred, isDraft bool) {
	for _, labelID := range labelIDs {
		switch labelID {
		case GmailLabelUnread:
			isUnread = true
		case GmailLabelStarred:
			isStarred = true
		case GmailLabelDraft:
			isDraft = true
		}
	}
	return
}

// UnionLabelIDs collects the distinct label IDs across a thread's messages,
// preserving first-seen order.
func UnionLabelIDs(messages []RemoteMessage) []string {
	seen := make(map[string]bool)
	var union []string
	for _, msg := range messages {
		for _, labelID := range msg.LabelIDs {
			if !seen[labelID] {
				seen[labelID] = true
				union = append(union, labelID)
			}
		}
	}
	return union
}

// LatestMessageTime returns the newest SentAt across the thread's messages
func LatestMessageTime(messages []RemoteMessage) time.Time {
	var latest time.Time
	for _, msg := range messages {
		if msg.SentAt.After(latest) {
			latest = msg.SentAt
		}
	}
	return latest
}
