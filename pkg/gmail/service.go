package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	emaildomain "mailmirror-backend/internal/email/domain"
	"mailmirror-backend/pkg/logger"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// TokenUpdateFunc is a callback function that handles token updates
type TokenUpdateFunc func(token *oauth2.Token) error

const (
	gmailUser      = "me"
	maxRetries     = 4
	baseRetryDelay = 500 * time.Millisecond
	// concurrent thread detail fetches per listing
	detailFetchConcurrency = 10
)

type Service struct {
	clientID     string
	clientSecret string
	// limiter is shared across all users of this process so the app-level
	// Gmail quota is respected regardless of how many syncs run.
	limiter *rate.Limiter
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			logger.Warn("[Gmail] Failed to persist refreshed token: %v", err)
		}
	}
	return t, nil
}

// NewService creates the shared Gmail client. requestsPerSecond bounds the
// total API call rate for the whole process.
func NewService(clientID, clientSecret string, requestsPerSecond float64) *Service {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 10
	}
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
		limiter:      rate.NewLimiter(rate.Limit(requestsPerSecond), int(requestsPerSecond)),
	}
}

// GetGmailService creates Gmail service with user's access token
func (s *Service) GetGmailService(ctx context.Context, accessToken, refreshToken string, onTokenRefresh TokenUpdateFunc) (*gmail.Service, error) {
	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}

	// Only force refresh if we have a refresh token
	if refreshToken != "" {
		token.Expiry = time.Now()
	}

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	tokenSource := config.TokenSource(ctx, token)

	// Wrap token source to detect refreshes
	wrappedSource := &notifyTokenSource{
		src:      tokenSource,
		current:  token,
		callback: onTokenRefresh,
	}

	client := oauth2.NewClient(ctx, wrappedSource)

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %v", err)
	}

	return srv, nil
}

// call runs one API operation through the shared rate limiter, retrying
// retryable failures with exponential backoff and jitter.
func (s *Service) call(ctx context.Context, op string, fn func() error) error {
	delay := baseRetryDelay
	for attempt := 0; ; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		err := fn()
		if err == nil {
			return nil
		}
		wrapped := wrapAPIError(op, err)
		if attempt >= maxRetries || !IsRetryable(wrapped) {
			return wrapped
		}
		jitter := time.Duration(rand.Int63n(int64(delay) / 2))
		logger.Warn("[Gmail] %s failed (attempt %d), retrying in %v: %v", op, attempt+1, delay+jitter, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay + jitter):
		}
		delay *= 2
	}
}

// ListLabels retrieves all labels of the mailbox
func (s *Service) ListLabels(ctx context.Context, accessToken, refreshToken string, onTokenRefresh TokenUpdateFunc) ([]emaildomain.RemoteLabel, error) {
	srv, err := s.GetGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	var resp *gmail.ListLabelsResponse
	err = s.call(ctx, "labels.list", func() error {
		resp, err = srv.Users.Labels.List(gmailUser).Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	labels := make([]emaildomain.RemoteLabel, 0, len(resp.Labels))
	for _, l := range resp.Labels {
		labelType := emaildomain.LabelTypeUser
		if l.Type == "system" {
			labelType = emaildomain.LabelTypeSystem
		}
		labels = append(labels, emaildomain.RemoteLabel{
			ID:   l.Id,
			Name: l.Name,
			Type: labelType,
		})
	}
	return labels, nil
}

// ListThreads lists up to limit threads with full message details. The
// returned listing is marked incomplete when more threads remained remotely
// or when any thread detail could not be fetched.
func (s *Service) ListThreads(ctx context.Context, accessToken, refreshToken string, limit int, onTokenRefresh TokenUpdateFunc) (*emaildomain.ThreadListing, error) {
	srv, err := s.GetGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 100
	}

	// Page through thread IDs first
	var ids []string
	pageToken := ""
	truncated := false
	for {
		pageSize := int64(limit - len(ids))
		if pageSize > 500 {
			pageSize = 500 // Gmail API maximum
		}

		listQuery := srv.Users.Threads.List(gmailUser).MaxResults(pageSize)
		if pageToken != "" {
			listQuery = listQuery.PageToken(pageToken)
		}

		var resp *gmail.ListThreadsResponse
		err = s.call(ctx, "threads.list", func() error {
			resp, err = listQuery.Do()
			return err
		})
		if err != nil {
			return nil, err
		}

		for _, t := range resp.Threads {
			ids = append(ids, t.Id)
		}
		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
		if len(ids) >= limit {
			truncated = true
			break
		}
	}

	// Fetch details in parallel with bounded concurrency
	type threadResult struct {
		thread *emaildomain.RemoteThread
		err    error
	}
	threadChan := make(chan threadResult, len(ids))
	semaphore := make(chan struct{}, detailFetchConcurrency)

	for _, id := range ids {
		go func(threadID string) {
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			thread, err := s.getThreadDetail(ctx, srv, threadID)
			threadChan <- threadResult{thread, err}
		}(id)
	}

	threads := make([]emaildomain.RemoteThread, 0, len(ids))
	detailFailed := false
	for i := 0; i < len(ids); i++ {
		result := <-threadChan
		if result.err != nil {
			// A thread we could not observe must not count as a complete view
			logger.Warn("[Gmail] Failed to fetch thread detail: %v", result.err)
			detailFailed = true
			continue
		}
		threads = append(threads, *result.thread)
	}

	// Parallel fetching returns threads in random order
	sort.Slice(threads, func(i, j int) bool {
		latestI := emaildomain.LatestMessageTime(threads[i].Messages)
		latestJ := emaildomain.LatestMessageTime(threads[j].Messages)
		return latestI.After(latestJ)
	})

	return &emaildomain.ThreadListing{
		Threads:  threads,
		Complete: !truncated && !detailFailed,
	}, nil
}

// GetThread retrieves a single thread with full message details
func (s *Service) GetThread(ctx context.Context, accessToken, refreshToken, threadID string, onTokenRefresh TokenUpdateFunc) (*emaildomain.RemoteThread, error) {
	srv, err := s.GetGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}
	return s.getThreadDetail(ctx, srv, threadID)
}

func (s *Service) getThreadDetail(ctx context.Context, srv *gmail.Service, threadID string) (*emaildomain.RemoteThread, error) {
	var resp *gmail.Thread
	err := s.call(ctx, "threads.get", func() error {
		var callErr error
		resp, callErr = srv.Users.Threads.Get(gmailUser, threadID).Format("full").Do()
		return callErr
	})
	if err != nil {
		return nil, err
	}

	thread := &emaildomain.RemoteThread{
		ID:        resp.Id,
		HistoryID: resp.HistoryId,
		Messages:  make([]emaildomain.RemoteMessage, 0, len(resp.Messages)),
	}
	for _, msg := range resp.Messages {
		thread.Messages = append(thread.Messages, convertMessage(msg))
	}
	return thread, nil
}

// GetAttachment fetches and decodes one attachment's content
func (s *Service) GetAttachment(ctx context.Context, accessToken, refreshToken, messageID, attachmentID string, onTokenRefresh TokenUpdateFunc) ([]byte, error) {
	srv, err := s.GetGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	var attachPart *gmail.MessagePartBody
	err = s.call(ctx, "attachments.get", func() error {
		var callErr error
		attachPart, callErr = srv.Users.Messages.Attachments.Get(gmailUser, messageID, attachmentID).Do()
		return callErr
	})
	if err != nil {
		return nil, err
	}

	data, err := base64.URLEncoding.DecodeString(attachPart.Data)
	if err != nil {
		return nil, fmt.Errorf("unable to decode attachment data: %v", err)
	}
	return data, nil
}

// Helper functions

// storedHeaders are the RFC822 headers mirrored into the metadata store
var storedHeaders = []string{"Message-ID", "In-Reply-To", "References", "Date", "Reply-To"}

func convertMessage(msg *gmail.Message) emaildomain.RemoteMessage {
	headers := make(map[string]string)
	for _, name := range storedHeaders {
		if v := getHeader(msg.Payload.Headers, name); v != "" {
			headers[name] = v
		}
	}

	out := emaildomain.RemoteMessage{
		ID:           msg.Id,
		From:         getHeader(msg.Payload.Headers, "From"),
		To:           splitAddressHeader(getHeader(msg.Payload.Headers, "To")),
		Cc:           splitAddressHeader(getHeader(msg.Payload.Headers, "Cc")),
		Bcc:          splitAddressHeader(getHeader(msg.Payload.Headers, "Bcc")),
		Subject:      getHeader(msg.Payload.Headers, "Subject"),
		Snippet:      msg.Snippet,
		Headers:      headers,
		LabelIDs:     msg.LabelIds,
		SentAt:       time.Unix(msg.InternalDate/1000, 0),
		BodyHTML:     extractBody(msg.Payload),
		SizeEstimate: msg.SizeEstimate,
		Attachments:  findAttachments(msg.Payload),
	}
	return out
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

func splitAddressHeader(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// extractBody walks the MIME part tree depth-first and returns the first
// text/html body. A message without an HTML part anywhere in the tree has no
// renderable body and yields the empty string.
func extractBody(payload *gmail.MessagePart) string {
	// A non-multipart message carries the body on the payload itself
	if payload.MimeType == "text/html" && payload.Body != nil && payload.Body.Data != "" && len(payload.Parts) == 0 {
		data, err := base64.URLEncoding.DecodeString(payload.Body.Data)
		if err == nil {
			return string(data)
		}
	}

	var htmlBody string

	var findBody func(parts []*gmail.MessagePart)
	findBody = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			if part.MimeType == "text/html" && htmlBody == "" && part.Body != nil && part.Body.Data != "" {
				data, err := base64.URLEncoding.DecodeString(part.Body.Data)
				if err == nil {
					htmlBody = string(data)
				}
			}

			if len(part.Parts) > 0 {
				findBody(part.Parts)
			}
		}
	}

	findBody(payload.Parts)
	return htmlBody
}

func findAttachments(payload *gmail.MessagePart) []emaildomain.RemoteAttachment {
	var attachments []emaildomain.RemoteAttachment

	var walk func(parts []*gmail.MessagePart)
	walk = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
				contentID := getHeader(part.Headers, "Content-ID")

				attachments = append(attachments, emaildomain.RemoteAttachment{
					ID:       part.Body.AttachmentId,
					Filename: part.Filename,
					MimeType: part.MimeType,
					Size:     part.Body.Size,
					IsInline: contentID != "",
				})
			}

			if len(part.Parts) > 0 {
				walk(part.Parts)
			}
		}
	}

	walk(payload.Parts)
	return attachments
}
