package storage

import (
	"fmt"
	"strings"
)

// GCS object names max out at 1024 bytes; keep filenames well below that so
// the full key always fits.
const maxFilenameLen = 200

// SanitizeFilename reduces a user-supplied filename to [A-Za-z0-9._-],
// collapsing runs of other characters into a single underscore.
func SanitizeFilename(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := b.String()
	if out == "" || strings.Trim(out, "_.") == "" {
		out = "attachment"
	}
	if len(out) > maxFilenameLen {
		out = out[:maxFilenameLen]
	}
	return out
}

// BodyKey builds the deterministic object key for a message body
func BodyKey(userID, gmailMessageID string) string {
	return fmt.Sprintf("%s/bodies/%s", userID, gmailMessageID)
}

// AttachmentKey builds the deterministic object key for an attachment
func AttachmentKey(userID, gmailMessageID, attachmentID, filename string) string {
	return fmt.Sprintf("%s/attachments/%s/%s/%s", userID, gmailMessageID, attachmentID, SanitizeFilename(filename))
}

// UserPrefix is the key prefix under which all of a user's objects live
func UserPrefix(userID string) string {
	return userID + "/"
}
