package gmail

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

func encodePart(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestExtractBodyPrefersHTML(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmail.MessagePart{
			{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encodePart("plain text")}},
			{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encodePart("<p>html</p>")}},
		},
	}

	assert.Equal(t, "<p>html</p>", extractBody(payload))
}

func TestExtractBodyAbsentWithoutHTML(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmail.MessagePart{
			{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encodePart("plain only")}},
		},
	}

	// plain-only messages have no renderable body
	assert.Empty(t, extractBody(payload))

	flat := &gmail.MessagePart{
		MimeType: "text/plain",
		Body:     &gmail.MessagePartBody{Data: encodePart("flat plain")},
	}
	assert.Empty(t, extractBody(flat))
}

func TestExtractBodyNestedParts(t *testing.T) {
	// multipart/mixed wrapping multipart/alternative, the usual shape for
	// messages with attachments
	payload := &gmail.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gmail.MessagePart{
			{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encodePart("plain")}},
					{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encodePart("<b>deep html</b>")}},
				},
			},
			{MimeType: "application/pdf", Filename: "a.pdf", Body: &gmail.MessagePartBody{AttachmentId: "att1"}},
		},
	}

	assert.Equal(t, "<b>deep html</b>", extractBody(payload))
}

func TestExtractBodySinglePart(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "text/html",
		Body:     &gmail.MessagePartBody{Data: encodePart("<i>flat</i>")},
	}

	assert.Equal(t, "<i>flat</i>", extractBody(payload))
}

func TestFindAttachments(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gmail.MessagePart{
			{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encodePart("body")}},
			{
				MimeType: "image/png",
				Filename: "logo.png",
				Headers:  []*gmail.MessagePartHeader{{Name: "Content-ID", Value: "<logo@x>"}},
				Body:     &gmail.MessagePartBody{AttachmentId: "att-inline", Size: 10},
			},
			{
				MimeType: "application/pdf",
				Filename: "report.pdf",
				Body:     &gmail.MessagePartBody{AttachmentId: "att-file", Size: 2048},
			},
		},
	}

	attachments := findAttachments(payload)

	assert.Len(t, attachments, 2)
	assert.Equal(t, "att-inline", attachments[0].ID)
	assert.True(t, attachments[0].IsInline)
	assert.Equal(t, "report.pdf", attachments[1].Filename)
	assert.False(t, attachments[1].IsInline)
	assert.Equal(t, int64(2048), attachments[1].Size)
}

func TestErrorClassification(t *testing.T) {
	rateLimited := wrapAPIError("threads.list", &googleapi.Error{Code: 429, Message: "rate limit exceeded"})
	assert.True(t, IsRateLimit(rateLimited))
	assert.True(t, IsRetryable(rateLimited))

	quota403 := wrapAPIError("threads.list", &googleapi.Error{Code: 403, Message: "User-rate limit exceeded"})
	assert.True(t, IsRateLimit(quota403))

	forbidden := wrapAPIError("threads.list", &googleapi.Error{Code: 403, Message: "insufficient permissions"})
	assert.False(t, IsRateLimit(forbidden))
	assert.False(t, IsRetryable(forbidden))

	serverErr := wrapAPIError("threads.get", &googleapi.Error{Code: 503, Message: "backend error"})
	assert.False(t, IsRateLimit(serverErr))
	assert.True(t, IsRetryable(serverErr))

	notFound := wrapAPIError("messages.get", &googleapi.Error{Code: 404, Message: "not found"})
	assert.False(t, IsRetryable(notFound))

	transport := wrapAPIError("messages.get", errors.New("connection reset"))
	assert.True(t, IsRetryable(transport))

	assert.False(t, IsRetryable(errors.New("plain error")))
}

func TestThreadingHeaders(t *testing.T) {
	original := &gmail.Message{
		ThreadId: "t1",
		Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{
				{Name: "Message-ID", Value: "<orig@mail>"},
				{Name: "References", Value: "<root@mail>"},
			},
		},
	}

	headers := threadingHeaders(original)
	assert.Equal(t, "<orig@mail>", headers["In-Reply-To"])
	assert.Equal(t, "<root@mail> <orig@mail>", headers["References"])
}

func TestThreadingHeadersNoReferences(t *testing.T) {
	original := &gmail.Message{
		Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{
				{Name: "Message-ID", Value: "<orig@mail>"},
			},
		},
	}

	headers := threadingHeaders(original)
	assert.Equal(t, "<orig@mail>", headers["References"])
}

func TestSplitAddressHeader(t *testing.T) {
	assert.Equal(t, []string{"a@x.com", "B <b@x.com>"}, splitAddressHeader("a@x.com, B <b@x.com>"))
	assert.Nil(t, splitAddressHeader(""))
}
