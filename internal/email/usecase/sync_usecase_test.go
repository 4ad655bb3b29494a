package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	authdomain "mailmirror-backend/internal/auth/domain"
	emaildomain "mailmirror-backend/internal/email/domain"
	"mailmirror-backend/internal/email/dto"
	"mailmirror-backend/pkg/cache"
	"mailmirror-backend/pkg/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- in-memory fakes ----

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*authdomain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*authdomain.User)}
}

func (r *fakeUserRepo) Create(user *authdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) FindByID(id string) (*authdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) FindByEmail(email string) (*authdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) Update(user *authdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) UpdateTokens(userID, accessToken, refreshToken string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[userID]; ok {
		user.AccessToken = accessToken
		if refreshToken != "" {
			user.RefreshToken = refreshToken
		}
		user.TokenExpiry = expiry
	}
	return nil
}

func (r *fakeUserRepo) TouchLastSync(userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[userID]; ok {
		user.LastSyncAt = &at
	}
	return nil
}

func (r *fakeUserRepo) FindUsersDueForSync(olderThan time.Time) ([]authdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []authdomain.User
	for _, user := range r.users {
		if user.LastSyncAt == nil || user.LastSyncAt.Before(olderThan) {
			due = append(due, *user)
		}
	}
	return due, nil
}

type fakeStore struct {
	mu          sync.Mutex
	threads     map[string]*emaildomain.Thread
	messages    map[string]*emaildomain.Message
	attachments map[string]*emaildomain.Attachment
	labels      map[string]*emaildomain.Label
	threadLinks map[string][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		threads:     make(map[string]*emaildomain.Thread),
		messages:    make(map[string]*emaildomain.Message),
		attachments: make(map[string]*emaildomain.Attachment),
		labels:      make(map[string]*emaildomain.Label),
		threadLinks: make(map[string][]string),
	}
}

// thread repository

func (s *fakeStore) Create(thread *emaildomain.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread.ID = uuid.New().String()
	copied := *thread
	s.threads[thread.ID] = &copied
	return nil
}

func (s *fakeStore) FindByGmailID(userID, gmailThreadID string) (*emaildomain.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, thread := range s.threads {
		if thread.UserID == userID && thread.GmailThreadID == gmailThreadID {
			copied := *thread
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) FindByID(id string) (*emaildomain.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread, ok := s.threads[id]
	if !ok {
		return nil, nil
	}
	copied := *thread
	return &copied, nil
}

func (s *fakeStore) ListByUser(userID string, limit, offset int) ([]emaildomain.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []emaildomain.Thread
	for _, thread := range s.threads {
		if thread.UserID == userID {
			out = append(out, *thread)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateObserved(id string, flags emaildomain.ThreadFlags, historyID uint64, lastMessageAt, seenAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread, ok := s.threads[id]
	if !ok {
		return errors.New("thread missing")
	}
	thread.IsUnread = flags.IsUnread
	thread.IsStarred = flags.IsStarred
	thread.IsImportant = flags.IsImportant
	thread.HasDraft = flags.HasDraft
	thread.HistoryID = historyID
	thread.LastMessageAt = lastMessageAt
	thread.LastSeenAt = seenAt
	return nil
}

func (s *fakeStore) ReplaceLabels(threadID string, labelIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threadLinks[threadID] = append([]string(nil), labelIDs...)
	return nil
}

func (s *fakeStore) PruneNotSeenSince(userID string, cutoff time.Time) (int64, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pruned int64
	var keys []string
	for id, thread := range s.threads {
		if thread.UserID != userID || !thread.LastSeenAt.Before(cutoff) {
			continue
		}
		// cascade like the database would
		for msgID, msg := range s.messages {
			if msg.ThreadID != id {
				continue
			}
			if msg.BodyObjectKey != nil {
				keys = append(keys, *msg.BodyObjectKey)
			}
			for attID, att := range s.attachments {
				if att.MessageID == msgID {
					keys = append(keys, att.ObjectKey)
					delete(s.attachments, attID)
				}
			}
			delete(s.messages, msgID)
		}
		delete(s.threadLinks, id)
		delete(s.threads, id)
		pruned++
	}
	return pruned, keys, nil
}

func (s *fakeStore) SetUnread(id string, isUnread bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if thread, ok := s.threads[id]; ok {
		thread.IsUnread = isUnread
	}
	return nil
}

func (s *fakeStore) SetStarred(id string, isStarred bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if thread, ok := s.threads[id]; ok {
		thread.IsStarred = isStarred
	}
	return nil
}

// message repository, wrapped so method sets don't collide with threads

type fakeMessageRepo struct{ s *fakeStore }

func (r *fakeMessageRepo) Create(message *emaildomain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	message.ID = uuid.New().String()
	copied := *message
	r.s.messages[message.ID] = &copied
	return nil
}

func (r *fakeMessageRepo) FindByGmailID(threadID, gmailMessageID string) (*emaildomain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, msg := range r.s.messages {
		if msg.ThreadID == threadID && msg.GmailMessageID == gmailMessageID {
			copied := *msg
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeMessageRepo) FindByID(id string) (*emaildomain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msg, ok := r.s.messages[id]
	if !ok {
		return nil, nil
	}
	copied := *msg
	return &copied, nil
}

func (r *fakeMessageRepo) ListByThread(threadID string) ([]emaildomain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []emaildomain.Message
	for _, msg := range r.s.messages {
		if msg.ThreadID == threadID {
			out = append(out, *msg)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) UpdateFlags(id string, isUnread, isStarred, isDraft bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if msg, ok := r.s.messages[id]; ok {
		msg.IsUnread = isUnread
		msg.IsStarred = isStarred
		msg.IsDraft = isDraft
	}
	return nil
}

func (r *fakeMessageRepo) SetBodyObjectKey(id, objectKey string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if msg, ok := r.s.messages[id]; ok {
		msg.BodyObjectKey = &objectKey
	}
	return nil
}

func (r *fakeMessageRepo) SetUnreadByThread(threadID string, isUnread bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, msg := range r.s.messages {
		if msg.ThreadID == threadID {
			msg.IsUnread = isUnread
		}
	}
	return nil
}

type fakeAttachmentRepo struct{ s *fakeStore }

func (r *fakeAttachmentRepo) Create(attachment *emaildomain.Attachment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	attachment.ID = uuid.New().String()
	copied := *attachment
	r.s.attachments[attachment.ID] = &copied
	return nil
}

func (r *fakeAttachmentRepo) FindByGmailID(messageID, gmailAttachmentID string) (*emaildomain.Attachment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, att := range r.s.attachments {
		if att.MessageID == messageID && att.GmailAttachmentID == gmailAttachmentID {
			copied := *att
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeAttachmentRepo) FindByID(id string) (*emaildomain.Attachment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	att, ok := r.s.attachments[id]
	if !ok {
		return nil, nil
	}
	copied := *att
	return &copied, nil
}

func (r *fakeAttachmentRepo) ListByMessage(messageID string) ([]emaildomain.Attachment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []emaildomain.Attachment
	for _, att := range r.s.attachments {
		if att.MessageID == messageID {
			out = append(out, *att)
		}
	}
	return out, nil
}

type fakeLabelRepo struct{ s *fakeStore }

func (r *fakeLabelRepo) EnsureLabel(userID, gmailLabelID, name, labelType string) (*emaildomain.Label, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := userID + "/" + gmailLabelID
	if existing, ok := r.s.labels[key]; ok {
		copied := *existing
		return &copied, nil
	}
	label := &emaildomain.Label{
		ID:           uuid.New().String(),
		UserID:       userID,
		GmailLabelID: gmailLabelID,
		Name:         name,
		Type:         labelType,
		CreatedAt:    time.Now(),
	}
	r.s.labels[key] = label
	copied := *label
	return &copied, nil
}

func (r *fakeLabelRepo) FindByGmailID(userID, gmailLabelID string) (*emaildomain.Label, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if label, ok := r.s.labels[userID+"/"+gmailLabelID]; ok {
		copied := *label
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeLabelRepo) ListByUser(userID string) ([]emaildomain.Label, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []emaildomain.Label
	for _, label := range r.s.labels {
		if label.UserID == userID {
			out = append(out, *label)
		}
	}
	return out, nil
}

type fakeAuditRepo struct {
	mu        sync.Mutex
	audits    map[string]*emaildomain.SyncAudit
	order     []string
	cancelAll bool
}

func newFakeAuditRepo() *fakeAuditRepo {
	return &fakeAuditRepo{audits: make(map[string]*emaildomain.SyncAudit)}
}

func (r *fakeAuditRepo) Create(audit *emaildomain.SyncAudit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	audit.ID = uuid.New().String()
	if audit.StartedAt.IsZero() {
		audit.StartedAt = time.Now()
	}
	copied := *audit
	r.audits[audit.ID] = &copied
	r.order = append(r.order, audit.ID)
	return nil
}

func (r *fakeAuditRepo) FindByID(id string) (*emaildomain.SyncAudit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	audit, ok := r.audits[id]
	if !ok {
		return nil, nil
	}
	copied := *audit
	return &copied, nil
}

func (r *fakeAuditRepo) Finish(id, status string, threads, messages, attachments int, fullListing bool, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	audit, ok := r.audits[id]
	if !ok {
		return errors.New("audit missing")
	}
	now := time.Now()
	audit.Status = status
	audit.FinishedAt = &now
	audit.ThreadsSynced = threads
	audit.MessagesSynced = messages
	audit.AttachmentsSynced = attachments
	audit.FullListing = fullListing
	audit.ErrorMessage = errorMessage
	return nil
}

func (r *fakeAuditRepo) RequestCancel(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if audit, ok := r.audits[id]; ok {
		audit.Cancelled = true
	}
	return nil
}

func (r *fakeAuditRepo) IsCancelRequested(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelAll {
		return true, nil
	}
	if audit, ok := r.audits[id]; ok {
		return audit.Cancelled, nil
	}
	return false, nil
}

func (r *fakeAuditRepo) ListRecentByUser(userID string, limit int) ([]emaildomain.SyncAudit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []emaildomain.SyncAudit
	for i := len(r.order) - 1; i >= 0 && len(out) < limit; i-- {
		audit := r.audits[r.order[i]]
		if audit.UserID == userID {
			out = append(out, *audit)
		}
	}
	return out, nil
}

type fakeProvider struct {
	mu              sync.Mutex
	labels          []emaildomain.RemoteLabel
	listing         *emaildomain.ThreadListing
	listErr         error
	attachmentData  map[string][]byte
	failAttachments map[string]bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		attachmentData:  make(map[string][]byte),
		failAttachments: make(map[string]bool),
	}
}

func attKey(messageID, attachmentID string) string {
	return messageID + "/" + attachmentID
}

func (p *fakeProvider) ListLabels(ctx context.Context, userID string) ([]emaildomain.RemoteLabel, error) {
	return p.labels, nil
}

func (p *fakeProvider) ListThreads(ctx context.Context, userID string, limit int) (*emaildomain.ThreadListing, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	return p.listing, nil
}

func (p *fakeProvider) GetThread(ctx context.Context, userID, threadID string) (*emaildomain.RemoteThread, error) {
	for i := range p.listing.Threads {
		if p.listing.Threads[i].ID == threadID {
			return &p.listing.Threads[i], nil
		}
	}
	return nil, errors.New("remote thread not found")
}

func (p *fakeProvider) FetchAttachment(ctx context.Context, userID, messageID, attachmentID string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := attKey(messageID, attachmentID)
	if p.failAttachments[key] {
		return nil, errors.New("attachment fetch failed")
	}
	data, ok := p.attachmentData[key]
	if !ok {
		return nil, errors.New("no such attachment")
	}
	return data, nil
}

type fakeBlobStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	deleted  []string
	failBody map[string]bool
	bodyPuts int
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{
		objects:  make(map[string][]byte),
		failBody: make(map[string]bool),
	}
}

func (b *fakeBlobStore) PutBody(ctx context.Context, userID, gmailMessageID, html string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bodyPuts++
	if b.failBody[gmailMessageID] {
		return "", errors.New("blob store unavailable")
	}
	key := storage.BodyKey(userID, gmailMessageID)
	b.objects[key] = []byte(html)
	return key, nil
}

func (b *fakeBlobStore) PutAttachment(ctx context.Context, userID, gmailMessageID, attachmentID, filename, mimeType string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := storage.AttachmentKey(userID, gmailMessageID, attachmentID, filename)
	b.objects[key] = data
	return key, nil
}

func (b *fakeBlobStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (b *fakeBlobStore) SignedURL(key string, ttl time.Duration) (string, error) {
	return "https://signed.example/" + key, nil
}

func (b *fakeBlobStore) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	b.deleted = append(b.deleted, key)
	return nil
}

func (b *fakeBlobStore) DeleteUserData(ctx context.Context, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key := range b.objects {
		if len(key) > len(userID) && key[:len(userID)+1] == userID+"/" {
			delete(b.objects, key)
			b.deleted = append(b.deleted, key)
		}
	}
	return nil
}

type fakeSender struct {
	threadID string
	sent     int
}

func (s *fakeSender) Send(ctx context.Context, userID string, req dto.SendEmailRequest) (string, error) {
	s.sent++
	return s.threadID, nil
}

func (s *fakeSender) Reply(ctx context.Context, userID, originalGmailMessageID string, req dto.ReplyEmailRequest) (string, error) {
	s.sent++
	return s.threadID, nil
}

func (s *fakeSender) Forward(ctx context.Context, userID, originalGmailMessageID string, req dto.ForwardEmailRequest) (string, error) {
	s.sent++
	return s.threadID, nil
}

// ---- fixture ----

type fixture struct {
	users    *fakeUserRepo
	store    *fakeStore
	audits   *fakeAuditRepo
	provider *fakeProvider
	blobs    *fakeBlobStore
	sender   *fakeSender
	usecase  EmailUsecase
	userID   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	users := newFakeUserRepo()
	user := &authdomain.User{
		Email:        "sync@example.com",
		AccessToken:  "access",
		RefreshToken: "refresh",
	}
	require.NoError(t, users.Create(user))

	store := newFakeStore()
	audits := newFakeAuditRepo()
	provider := newFakeProvider()
	blobs := newFakeBlobStore()
	sender := &fakeSender{threadID: "t-sent"}

	uc := NewEmailUsecase(
		users,
		store,
		&fakeMessageRepo{s: store},
		&fakeAttachmentRepo{s: store},
		&fakeLabelRepo{s: store},
		audits,
		provider,
		sender,
		blobs,
		cache.NewLocalCache(time.Minute),
		Options{
			MaxThreads:   1000,
			Workers:      3,
			ResyncDelay:  time.Millisecond,
			SyncInterval: time.Minute,
		},
	)

	return &fixture{
		users:    users,
		store:    store,
		audits:   audits,
		provider: provider,
		blobs:    blobs,
		sender:   sender,
		usecase:  uc,
		userID:   user.ID,
	}
}

// twoThreadListing builds a remote mailbox with two threads, two messages in
// the first thread and one attachment on its first message.
func twoThreadListing(f *fixture) *emaildomain.ThreadListing {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	f.provider.labels = []emaildomain.RemoteLabel{
		{ID: "INBOX", Name: "INBOX", Type: emaildomain.LabelTypeSystem},
		{ID: "UNREAD", Name: "UNREAD", Type: emaildomain.LabelTypeSystem},
		{ID: "Label_1", Name: "Projects", Type: emaildomain.LabelTypeUser},
	}
	f.provider.attachmentData[attKey("m1", "a1")] = []byte("pdf-bytes")

	return &emaildomain.ThreadListing{
		Complete: true,
		Threads: []emaildomain.RemoteThread{
			{
				ID:        "t1",
				HistoryID: 100,
				Messages: []emaildomain.RemoteMessage{
					{
						ID:       "m1",
						From:     "alice@example.com",
						To:       []string{"sync@example.com"},
						Subject:  "Project update",
						LabelIDs: []string{"INBOX", "UNREAD", "Label_1"},
						SentAt:   base,
						BodyHTML: "<p>first</p>",
						Attachments: []emaildomain.RemoteAttachment{
							{ID: "a1", Filename: "report.pdf", MimeType: "application/pdf", Size: 9},
						},
					},
					{
						ID:       "m2",
						From:     "sync@example.com",
						To:       []string{"alice@example.com"},
						Subject:  "Re: Project update",
						LabelIDs: []string{"INBOX"},
						SentAt:   base.Add(time.Hour),
						BodyHTML: "<p>second</p>",
					},
				},
			},
			{
				ID:        "t2",
				HistoryID: 101,
				Messages: []emaildomain.RemoteMessage{
					{
						ID:       "m3",
						From:     "bob@example.com",
						Subject:  "Standalone",
						LabelIDs: []string{"INBOX"},
						SentAt:   base.Add(2 * time.Hour),
						BodyHTML: "<p>third</p>",
					},
				},
			},
		},
	}
}

// ---- tests ----

func TestRunFullSyncStoresEverything(t *testing.T) {
	f := newFixture(t)
	f.provider.listing = twoThreadListing(f)

	result := f.usecase.RunFullSync(context.Background(), f.userID)

	require.True(t, result.Success, "cycle failed: %s", result.Error)
	assert.Equal(t, 2, result.ThreadsSynced)
	assert.Equal(t, 3, result.MessagesSynced)
	assert.Equal(t, 1, result.AttachmentsSynced)

	assert.Len(t, f.store.threads, 2)
	assert.Len(t, f.store.messages, 3)
	assert.Len(t, f.store.attachments, 1)
	assert.Len(t, f.store.labels, 3)

	// thread flags fold over message labels
	thread, err := f.store.FindByGmailID(f.userID, "t1")
	require.NoError(t, err)
	require.NotNil(t, thread)
	assert.True(t, thread.IsUnread)
	assert.False(t, thread.IsStarred)
	assert.Equal(t, uint64(100), thread.HistoryID)

	// bodies and attachment content landed in the blob store
	body, err := f.blobs.GetObject(context.Background(), storage.BodyKey(f.userID, "m1"))
	require.NoError(t, err)
	assert.Equal(t, "<p>first</p>", string(body))
	_, err = f.blobs.GetObject(context.Background(), storage.AttachmentKey(f.userID, "m1", "a1", "report.pdf"))
	assert.NoError(t, err)

	// audit finalized with the counts
	audit, err := f.audits.FindByID(result.AuditID)
	require.NoError(t, err)
	assert.Equal(t, emaildomain.SyncStatusSuccess, audit.Status)
	assert.Equal(t, 2, audit.ThreadsSynced)
	assert.Equal(t, 3, audit.MessagesSynced)
	assert.Equal(t, 1, audit.AttachmentsSynced)
	assert.True(t, audit.FullListing)
	assert.NotNil(t, audit.FinishedAt)

	// last sync time stamped
	user, err := f.users.FindByID(f.userID)
	require.NoError(t, err)
	assert.NotNil(t, user.LastSyncAt)
}

func TestRunFullSyncIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.provider.listing = twoThreadListing(f)

	first := f.usecase.RunFullSync(context.Background(), f.userID)
	require.True(t, first.Success)

	second := f.usecase.RunFullSync(context.Background(), f.userID)
	require.True(t, second.Success)

	// Re-observation refreshes rows instead of duplicating them
	assert.Len(t, f.store.threads, 2)
	assert.Len(t, f.store.messages, 3)
	assert.Len(t, f.store.attachments, 1)
	assert.Len(t, f.store.labels, 3)

	// an unchanged mailbox yields zero counts on the second cycle
	assert.Equal(t, 0, second.ThreadsSynced)
	assert.Equal(t, 0, second.MessagesSynced)
	assert.Equal(t, 0, second.AttachmentsSynced)
}

func TestRunFullSyncRefreshesFlags(t *testing.T) {
	f := newFixture(t)
	f.provider.listing = twoThreadListing(f)
	require.True(t, f.usecase.RunFullSync(context.Background(), f.userID).Success)

	// remotely the thread was read and starred since the last cycle
	msgs := f.provider.listing.Threads[0].Messages
	msgs[0].LabelIDs = []string{"INBOX", "STARRED", "Label_1"}
	require.True(t, f.usecase.RunFullSync(context.Background(), f.userID).Success)

	thread, err := f.store.FindByGmailID(f.userID, "t1")
	require.NoError(t, err)
	assert.False(t, thread.IsUnread)
	assert.True(t, thread.IsStarred)

	message, err := (&fakeMessageRepo{s: f.store}).FindByGmailID(thread.ID, "m1")
	require.NoError(t, err)
	assert.False(t, message.IsUnread)
	assert.True(t, message.IsStarred)
}

func TestPruneRemovesVanishedThreads(t *testing.T) {
	f := newFixture(t)
	f.provider.listing = twoThreadListing(f)
	require.True(t, f.usecase.RunFullSync(context.Background(), f.userID).Success)

	// t2 disappears from the remote mailbox
	f.provider.listing.Threads = f.provider.listing.Threads[:1]
	require.True(t, f.usecase.RunFullSync(context.Background(), f.userID).Success)

	assert.Len(t, f.store.threads, 1)
	remaining, err := f.store.FindByGmailID(f.userID, "t1")
	require.NoError(t, err)
	assert.NotNil(t, remaining)

	gone, err := f.store.FindByGmailID(f.userID, "t2")
	require.NoError(t, err)
	assert.Nil(t, gone)

	// the pruned body was removed from the blob store too
	assert.Contains(t, f.blobs.deleted, storage.BodyKey(f.userID, "m3"))
}

func TestTruncatedListingSkipsPrune(t *testing.T) {
	f := newFixture(t)
	f.provider.listing = twoThreadListing(f)
	require.True(t, f.usecase.RunFullSync(context.Background(), f.userID).Success)

	// a truncated listing that no longer shows t2 must not delete it
	f.provider.listing.Threads = f.provider.listing.Threads[:1]
	f.provider.listing.Complete = false
	result := f.usecase.RunFullSync(context.Background(), f.userID)
	require.True(t, result.Success)

	assert.Len(t, f.store.threads, 2)

	audit, err := f.audits.FindByID(result.AuditID)
	require.NoError(t, err)
	assert.False(t, audit.FullListing)
}

func TestBodyUploadFailureRetriedNextCycle(t *testing.T) {
	f := newFixture(t)
	f.provider.listing = twoThreadListing(f)
	f.blobs.failBody["m3"] = true

	require.True(t, f.usecase.RunFullSync(context.Background(), f.userID).Success)

	// the message row exists with a null body key
	thread, err := f.store.FindByGmailID(f.userID, "t2")
	require.NoError(t, err)
	message, err := (&fakeMessageRepo{s: f.store}).FindByGmailID(thread.ID, "m3")
	require.NoError(t, err)
	require.NotNil(t, message)
	assert.Nil(t, message.BodyObjectKey)

	// next cycle the blob store recovered
	f.blobs.failBody = map[string]bool{}
	require.True(t, f.usecase.RunFullSync(context.Background(), f.userID).Success)

	message, err = (&fakeMessageRepo{s: f.store}).FindByGmailID(thread.ID, "m3")
	require.NoError(t, err)
	require.NotNil(t, message.BodyObjectKey)
	assert.Equal(t, storage.BodyKey(f.userID, "m3"), *message.BodyObjectKey)
}

func TestAttachmentFailureOnlySkipsThatAttachment(t *testing.T) {
	f := newFixture(t)
	listing := twoThreadListing(f)
	// add a second attachment that will fail to fetch
	listing.Threads[0].Messages[0].Attachments = append(listing.Threads[0].Messages[0].Attachments,
		emaildomain.RemoteAttachment{ID: "a2", Filename: "broken.zip", MimeType: "application/zip"})
	f.provider.listing = listing
	f.provider.failAttachments[attKey("m1", "a2")] = true

	result := f.usecase.RunFullSync(context.Background(), f.userID)
	require.True(t, result.Success)

	// the message and its healthy attachment are stored
	assert.Len(t, f.store.messages, 3)
	assert.Len(t, f.store.attachments, 1)
	assert.Equal(t, 1, result.AttachmentsSynced)

	// the failed attachment is picked up once the remote recovers
	f.provider.failAttachments = map[string]bool{}
	f.provider.attachmentData[attKey("m1", "a2")] = []byte("zip-bytes")
	result = f.usecase.RunFullSync(context.Background(), f.userID)
	require.True(t, result.Success)
	assert.Len(t, f.store.attachments, 2)
}

func TestCancelBetweenThreads(t *testing.T) {
	f := newFixture(t)
	f.provider.listing = twoThreadListing(f)
	f.audits.cancelAll = true

	result := f.usecase.RunFullSync(context.Background(), f.userID)

	assert.False(t, result.Success)
	assert.Equal(t, 0, result.ThreadsSynced)
	assert.Empty(t, f.store.threads)

	audit, err := f.audits.FindByID(result.AuditID)
	require.NoError(t, err)
	assert.Equal(t, emaildomain.SyncStatusCancelled, audit.Status)
}

func TestCancelledCycleSkipsPrune(t *testing.T) {
	f := newFixture(t)
	f.provider.listing = twoThreadListing(f)
	require.True(t, f.usecase.RunFullSync(context.Background(), f.userID).Success)

	f.audits.cancelAll = true
	f.usecase.RunFullSync(context.Background(), f.userID)

	// nothing was pruned even though no thread was observed this cycle
	assert.Len(t, f.store.threads, 2)
}

func TestSyncUnknownUserFailsAudit(t *testing.T) {
	f := newFixture(t)

	result := f.usecase.RunFullSync(context.Background(), "no-such-user")

	assert.False(t, result.Success)
	assert.Equal(t, emaildomain.ErrUserNotFound.Error(), result.Error)

	audit, err := f.audits.FindByID(result.AuditID)
	require.NoError(t, err)
	assert.Equal(t, emaildomain.SyncStatusFailed, audit.Status)
}

func TestSyncWithoutCredentialsFailsAudit(t *testing.T) {
	f := newFixture(t)
	bare := &authdomain.User{Email: "empty@example.com"}
	require.NoError(t, f.users.Create(bare))

	result := f.usecase.RunFullSync(context.Background(), bare.ID)

	assert.False(t, result.Success)
	assert.Equal(t, emaildomain.ErrCredentialsMissing.Error(), result.Error)
}

func TestTriggerSyncRejectsConcurrentCycle(t *testing.T) {
	f := newFixture(t)
	f.provider.listing = twoThreadListing(f)

	// hold the guard as a running cycle would
	uc := f.usecase.(*emailUsecase)
	require.True(t, uc.tryAcquire(f.userID))
	defer uc.release(f.userID)

	_, err := f.usecase.TriggerSync(context.Background(), f.userID)
	assert.ErrorIs(t, err, emaildomain.ErrSyncAlreadyRunning)
}

func TestListRemoteFailureFailsCycle(t *testing.T) {
	f := newFixture(t)
	f.provider.listing = twoThreadListing(f)
	f.provider.listErr = errors.New("gmail threads.list failed with status 503")

	result := f.usecase.RunFullSync(context.Background(), f.userID)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "503")

	audit, err := f.audits.FindByID(result.AuditID)
	require.NoError(t, err)
	assert.Equal(t, emaildomain.SyncStatusFailed, audit.Status)
}

func TestGetSyncStatusNewestFirst(t *testing.T) {
	f := newFixture(t)
	f.provider.listing = twoThreadListing(f)

	for i := 0; i < 3; i++ {
		require.True(t, f.usecase.RunFullSync(context.Background(), f.userID).Success)
	}

	status, err := f.usecase.GetSyncStatus(context.Background(), f.userID)
	require.NoError(t, err)
	require.Len(t, status, 3)
	for i := 1; i < len(status); i++ {
		assert.True(t, !status[i-1].StartedAt.Before(status[i].StartedAt))
	}
}

func TestGetSyncProgressUnknownAudit(t *testing.T) {
	f := newFixture(t)

	_, err := f.usecase.GetSyncProgress(context.Background(), "missing")
	assert.ErrorIs(t, err, emaildomain.ErrAuditNotFound)
}

func TestCancelSyncUnknownAudit(t *testing.T) {
	f := newFixture(t)

	err := f.usecase.CancelSync(context.Background(), "missing")
	assert.ErrorIs(t, err, emaildomain.ErrAuditNotFound)
}

func TestSyncSingleThread(t *testing.T) {
	f := newFixture(t)
	f.provider.listing = twoThreadListing(f)

	f.usecase.SyncSingleThread(context.Background(), f.userID, "t1")

	assert.Len(t, f.store.threads, 1)
	assert.Len(t, f.store.messages, 2)
	assert.Len(t, f.store.attachments, 1)

	audits, err := f.audits.ListRecentByUser(f.userID, 10)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, emaildomain.SyncKindSingle, audits[0].Kind)
	assert.Equal(t, emaildomain.SyncStatusSuccess, audits[0].Status)
}

func TestSyncSingleThreadSwallowsErrors(t *testing.T) {
	f := newFixture(t)
	f.provider.listing = &emaildomain.ThreadListing{Complete: true}

	// unknown remote thread: must not panic or return anything
	f.usecase.SyncSingleThread(context.Background(), f.userID, "ghost")

	audits, err := f.audits.ListRecentByUser(f.userID, 10)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, emaildomain.SyncStatusFailed, audits[0].Status)
}

func TestRunScheduledSyncForAllUsers(t *testing.T) {
	f := newFixture(t)
	f.provider.listing = twoThreadListing(f)

	second := &authdomain.User{Email: "second@example.com", AccessToken: "a2"}
	require.NoError(t, f.users.Create(second))
	bare := &authdomain.User{Email: "empty@example.com"}
	require.NoError(t, f.users.Create(bare))

	summary := f.usecase.RunScheduledSyncForAllUsers(context.Background())

	require.NotNil(t, summary)
	assert.Equal(t, 3, summary.TotalUsers)
	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 1, summary.ErrorCount)
	require.Len(t, summary.Results, 3)

	byUser := make(map[string]dto.SyncResult, len(summary.Results))
	for _, r := range summary.Results {
		byUser[r.UserID] = r
	}
	assert.True(t, byUser[f.userID].Success)
	assert.Equal(t, 2, byUser[f.userID].ThreadsSynced)
	assert.False(t, byUser[bare.ID].Success)
	assert.Equal(t, emaildomain.ErrCredentialsMissing.Error(), byUser[bare.ID].Error)

	for _, id := range []string{f.userID, second.ID} {
		user, err := f.users.FindByID(id)
		require.NoError(t, err)
		assert.NotNil(t, user.LastSyncAt, "user %s was not synced", id)
	}
}

func TestMarkThreadReadAndCacheInvalidation(t *testing.T) {
	f := newFixture(t)
	f.provider.listing = twoThreadListing(f)
	require.True(t, f.usecase.RunFullSync(context.Background(), f.userID).Success)

	ctx := context.Background()
	before, err := f.usecase.ListThreads(ctx, f.userID, 50, 0)
	require.NoError(t, err)
	assert.Contains(t, string(before), "\"is_unread\":true")

	thread, err := f.store.FindByGmailID(f.userID, "t1")
	require.NoError(t, err)
	require.NoError(t, f.usecase.MarkThreadRead(ctx, f.userID, thread.ID, true))

	after, err := f.usecase.ListThreads(ctx, f.userID, 50, 0)
	require.NoError(t, err)
	assert.NotContains(t, string(after), "\"is_unread\":true")

	messages, err := (&fakeMessageRepo{s: f.store}).ListByThread(thread.ID)
	require.NoError(t, err)
	for _, msg := range messages {
		assert.False(t, msg.IsUnread)
	}
}

func TestGetBodyURL(t *testing.T) {
	f := newFixture(t)
	f.provider.listing = twoThreadListing(f)
	require.True(t, f.usecase.RunFullSync(context.Background(), f.userID).Success)

	thread, err := f.store.FindByGmailID(f.userID, "t1")
	require.NoError(t, err)
	message, err := (&fakeMessageRepo{s: f.store}).FindByGmailID(thread.ID, "m1")
	require.NoError(t, err)

	resp, err := f.usecase.GetBodyURL(context.Background(), f.userID, message.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/"+storage.BodyKey(f.userID, "m1"), resp.URL)
	assert.True(t, resp.ExpiresAt.After(time.Now()))

	// another user cannot reach it
	_, err = f.usecase.GetBodyURL(context.Background(), "someone-else", message.ID)
	assert.ErrorIs(t, err, emaildomain.ErrMessageNotFound)
}

func TestSendEmailTriggersThreadResync(t *testing.T) {
	f := newFixture(t)
	listing := twoThreadListing(f)
	listing.Threads[0].ID = "t-sent"
	f.provider.listing = listing

	err := f.usecase.SendEmail(context.Background(), f.userID, dto.SendEmailRequest{
		To:      []string{"alice@example.com"},
		Subject: "hi",
		Body:    "<p>hi</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.sender.sent)

	// the background single-thread sync picks up the sent thread
	require.Eventually(t, func() bool {
		thread, err := f.store.FindByGmailID(f.userID, "t-sent")
		return err == nil && thread != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCountsReflectSuccessesOnly(t *testing.T) {
	f := newFixture(t)
	listing := twoThreadListing(f)
	f.provider.listing = listing
	f.provider.failAttachments[attKey("m1", "a1")] = true

	result := f.usecase.RunFullSync(context.Background(), f.userID)
	require.True(t, result.Success)

	assert.Equal(t, 2, result.ThreadsSynced)
	assert.Equal(t, 3, result.MessagesSynced)
	assert.Equal(t, 0, result.AttachmentsSynced)
}
