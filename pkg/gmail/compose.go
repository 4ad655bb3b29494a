package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"google.golang.org/api/gmail/v1"
)

// OutgoingAttachment is a file to include in a composed message
type OutgoingAttachment struct {
	Filename string
	MimeType string
	Data     []byte
}

// buildRawMessage assembles an RFC822 message with an HTML body and optional
// attachments. extraHeaders carries threading headers for replies/forwards.
func buildRawMessage(from string, to, cc, bcc []string, subject, htmlBody string, attachments []OutgoingAttachment, extraHeaders map[string]string) ([]byte, error) {
	var b bytes.Buffer

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", toAddressList(to))
	if len(cc) > 0 {
		h.SetAddressList("Cc", toAddressList(cc))
	}
	if len(bcc) > 0 {
		h.SetAddressList("Bcc", toAddressList(bcc))
	}
	h.SetSubject(subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("unable to generate message id: %v", err)
	}
	for name, value := range extraHeaders {
		h.Set(name, value)
	}

	mw, err := mail.CreateWriter(&b, h)
	if err != nil {
		return nil, fmt.Errorf("unable to create message writer: %v", err)
	}

	var th mail.InlineHeader
	th.Set("Content-Type", "text/html; charset=utf-8")
	bodyWriter, err := mw.CreateSingleInline(th)
	if err != nil {
		return nil, fmt.Errorf("unable to create body part: %v", err)
	}
	if _, err := io.WriteString(bodyWriter, htmlBody); err != nil {
		return nil, fmt.Errorf("unable to write body: %v", err)
	}
	if err := bodyWriter.Close(); err != nil {
		return nil, err
	}

	for _, att := range attachments {
		var ah mail.AttachmentHeader
		if att.MimeType != "" {
			ah.Set("Content-Type", att.MimeType)
		}
		ah.SetFilename(att.Filename)
		attWriter, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf("unable to create attachment part: %v", err)
		}
		if _, err := attWriter.Write(att.Data); err != nil {
			return nil, fmt.Errorf("unable to write attachment: %v", err)
		}
		if err := attWriter.Close(); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func toAddressList(addrs []string) []*mail.Address {
	out := make([]*mail.Address, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, &mail.Address{Address: strings.TrimSpace(a)})
	}
	return out
}

// SendEmail composes and sends a new message. It returns the Gmail thread ID
// assigned to the sent message so callers can re-sync that thread.
func (s *Service) SendEmail(ctx context.Context, accessToken, refreshToken, from string, to, cc, bcc []string, subject, htmlBody string, attachments []OutgoingAttachment, onTokenRefresh TokenUpdateFunc) (string, error) {
	srv, err := s.GetGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return "", err
	}

	raw, err := buildRawMessage(from, to, cc, bcc, subject, htmlBody, attachments, nil)
	if err != nil {
		return "", err
	}

	return s.sendRaw(ctx, srv, raw, "")
}

// ReplyEmail sends a reply within the original message's thread, carrying the
// In-Reply-To and References headers forward.
func (s *Service) ReplyEmail(ctx context.Context, accessToken, refreshToken, from, originalMessageID string, to, cc, bcc []string, htmlBody string, attachments []OutgoingAttachment, onTokenRefresh TokenUpdateFunc) (string, error) {
	srv, err := s.GetGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return "", err
	}

	original, err := s.getMessage(ctx, srv, originalMessageID)
	if err != nil {
		return "", err
	}

	subject := getHeader(original.Payload.Headers, "Subject")
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	extraHeaders := threadingHeaders(original)

	raw, err := buildRawMessage(from, to, cc, bcc, subject, htmlBody, attachments, extraHeaders)
	if err != nil {
		return "", err
	}

	return s.sendRaw(ctx, srv, raw, original.ThreadId)
}

// ForwardEmail sends the original message's content on to new recipients.
func (s *Service) ForwardEmail(ctx context.Context, accessToken, refreshToken, from, originalMessageID string, to, cc, bcc []string, htmlBody string, attachments []OutgoingAttachment, onTokenRefresh TokenUpdateFunc) (string, error) {
	srv, err := s.GetGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return "", err
	}

	original, err := s.getMessage(ctx, srv, originalMessageID)
	if err != nil {
		return "", err
	}

	subject := getHeader(original.Payload.Headers, "Subject")
	if !strings.HasPrefix(strings.ToLower(subject), "fwd:") {
		subject = "Fwd: " + subject
	}

	if htmlBody == "" {
		htmlBody = extractBody(original.Payload)
	}

	// Carry the original attachments along
	for _, att := range findAttachments(original.Payload) {
		data, err := s.GetAttachment(ctx, accessToken, refreshToken, originalMessageID, att.ID, onTokenRefresh)
		if err != nil {
			return "", fmt.Errorf("unable to fetch attachment for forward: %v", err)
		}
		attachments = append(attachments, OutgoingAttachment{
			Filename: att.Filename,
			MimeType: att.MimeType,
			Data:     data,
		})
	}

	raw, err := buildRawMessage(from, to, cc, bcc, subject, htmlBody, attachments, nil)
	if err != nil {
		return "", err
	}

	return s.sendRaw(ctx, srv, raw, "")
}

func (s *Service) getMessage(ctx context.Context, srv *gmail.Service, messageID string) (*gmail.Message, error) {
	var msg *gmail.Message
	err := s.call(ctx, "messages.get", func() error {
		var callErr error
		msg, callErr = srv.Users.Messages.Get(gmailUser, messageID).Format("full").Do()
		return callErr
	})
	return msg, err
}

func (s *Service) sendRaw(ctx context.Context, srv *gmail.Service, raw []byte, threadID string) (string, error) {
	msg := &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString(raw),
		ThreadId: threadID,
	}

	var sent *gmail.Message
	err := s.call(ctx, "messages.send", func() error {
		var callErr error
		sent, callErr = srv.Users.Messages.Send(gmailUser, msg).Do()
		return callErr
	})
	if err != nil {
		return "", err
	}
	return sent.ThreadId, nil
}

// threadingHeaders derives In-Reply-To and References for a reply from the
// original message's headers.
func threadingHeaders(original *gmail.Message) map[string]string {
	headers := make(map[string]string)
	messageID := getHeader(original.Payload.Headers, "Message-ID")
	if messageID == "" {
		return headers
	}
	headers["In-Reply-To"] = messageID
	if refs := getHeader(original.Payload.Headers, "References"); refs != "" {
		headers["References"] = refs + " " + messageID
	} else {
		headers["References"] = messageID
	}
	return headers
}
