package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"clean name untouched", "report-2024_final.pdf", "report-2024_final.pdf"},
		{"spaces collapse to underscore", "my  report.pdf", "my_report.pdf"},
		{"unicode collapses", "résumé.pdf", "r_sum_.pdf"},
		{"path separators removed", "../../etc/passwd", ".._.._etc_passwd"},
		{"empty becomes placeholder", "", "attachment"},
		{"only symbols becomes placeholder", "???", "attachment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFilename(tt.input))
		})
	}
}

func TestSanitizeFilenameTruncates(t *testing.T) {
	long := strings.Repeat("a", 500) + ".pdf"
	out := SanitizeFilename(long)
	assert.Len(t, out, maxFilenameLen)
}

func TestKeysAreDeterministic(t *testing.T) {
	assert.Equal(t, "u1/bodies/m1", BodyKey("u1", "m1"))
	assert.Equal(t, BodyKey("u1", "m1"), BodyKey("u1", "m1"))

	key := AttachmentKey("u1", "m1", "a1", "invoice (март).pdf")
	assert.Equal(t, "u1/attachments/m1/a1/invoice_.pdf", key)
	assert.Equal(t, key, AttachmentKey("u1", "m1", "a1", "invoice (март).pdf"))
}

func TestUserPrefixCoversKeys(t *testing.T) {
	assert.True(t, strings.HasPrefix(BodyKey("u1", "m1"), UserPrefix("u1")))
	assert.True(t, strings.HasPrefix(AttachmentKey("u1", "m1", "a1", "f"), UserPrefix("u1")))
}
