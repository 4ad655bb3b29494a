package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	authrepo "mailmirror-backend/internal/auth/repository"
	emaildomain "mailmirror-backend/internal/email/domain"
	"mailmirror-backend/internal/email/dto"
	"mailmirror-backend/internal/email/repository"
	"mailmirror-backend/internal/monitoring"
	"mailmirror-backend/pkg/cache"
	"mailmirror-backend/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Options are the tuning knobs of the reconciliation engine
type Options struct {
	// MaxThreads caps how many threads one full cycle lists remotely
	MaxThreads int
	// Workers bounds the per-cycle thread worker pool
	Workers int
	// UserDelay is the pause between users in the scheduled batch run
	UserDelay time.Duration
	// ResyncDelay is how long to wait before re-syncing a thread after a
	// send, giving the remote side time to index the new message
	ResyncDelay time.Duration
	// SyncInterval decides which users are due in the scheduled batch run
	SyncInterval time.Duration
	SignedURLTTL time.Duration
}

type emailUsecase struct {
	users       authrepo.UserRepository
	threads     repository.ThreadRepository
	messages    repository.MessageRepository
	attachments repository.AttachmentRepository
	labels      repository.LabelRepository
	audits      repository.SyncAuditRepository
	provider    emaildomain.MailProvider
	sender      mailSender
	blobs       emaildomain.BlobStore
	cache       cache.Cache
	opts        Options

	// in-process guard: one running cycle per user
	mu      sync.Mutex
	running map[string]bool
}

// NewEmailUsecase creates the reconciliation engine
func NewEmailUsecase(
	users authrepo.UserRepository,
	threads repository.ThreadRepository,
	messages repository.MessageRepository,
	attachments repository.AttachmentRepository,
	labels repository.LabelRepository,
	audits repository.SyncAuditRepository,
	provider emaildomain.MailProvider,
	sender mailSender,
	blobs emaildomain.BlobStore,
	cacheStore cache.Cache,
	opts Options,
) EmailUsecase {
	if opts.MaxThreads <= 0 {
		opts.MaxThreads = 1000
	}
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	if opts.ResyncDelay <= 0 {
		opts.ResyncDelay = 3 * time.Second
	}
	if opts.SignedURLTTL <= 0 {
		opts.SignedURLTTL = 15 * time.Minute
	}
	return &emailUsecase{
		users:       users,
		threads:     threads,
		messages:    messages,
		attachments: attachments,
		labels:      labels,
		audits:      audits,
		provider:    provider,
		sender:      sender,
		blobs:       blobs,
		cache:       cacheStore,
		opts:        opts,
		running:     make(map[string]bool),
	}
}

func (u *emailUsecase) tryAcquire(userID string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.running[userID] {
		return false
	}
	u.running[userID] = true
	return true
}

func (u *emailUsecase) release(userID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.running, userID)
}

func (u *emailUsecase) isRunning(userID string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.running[userID]
}

// startCycle creates the audit record for a full cycle, resolves the user and
// takes the per-user guard. The audit is finalized as failed when any of
// these steps reject the cycle. On success the caller owns the guard.
func (u *emailUsecase) startCycle(userID string) (*emaildomain.SyncAudit, error) {
	audit := &emaildomain.SyncAudit{
		UserID:    userID,
		Kind:      emaildomain.SyncKindFull,
		Status:    emaildomain.SyncStatusRunning,
		StartedAt: time.Now(),
	}
	if err := u.audits.Create(audit); err != nil {
		return nil, err
	}

	failCycle := func(cause error) (*emaildomain.SyncAudit, error) {
		if err := u.audits.Finish(audit.ID, emaildomain.SyncStatusFailed, 0, 0, 0, false, cause.Error()); err != nil {
			logger.Error("[Sync] Failed to finalize audit %s: %v", audit.ID, err)
		}
		monitoring.SyncCyclesTotal.WithLabelValues(emaildomain.SyncKindFull, emaildomain.SyncStatusFailed).Inc()
		return audit, cause
	}

	user, err := u.users.FindByID(userID)
	if err != nil {
		return failCycle(err)
	}
	if user == nil {
		return failCycle(emaildomain.ErrUserNotFound)
	}
	if !user.HasCredentials() {
		return failCycle(emaildomain.ErrCredentialsMissing)
	}

	if !u.tryAcquire(userID) {
		return failCycle(emaildomain.ErrSyncAlreadyRunning)
	}
	return audit, nil
}

// TriggerSync starts a full cycle in the background and returns its audit ID
func (u *emailUsecase) TriggerSync(ctx context.Context, userID string) (*dto.TriggerSyncResponse, error) {
	audit, err := u.startCycle(userID)
	if err != nil {
		return nil, err
	}

	go u.runCycle(context.Background(), userID, audit)

	return &dto.TriggerSyncResponse{
		AuditID: audit.ID,
		Status:  emaildomain.SyncStatusRunning,
	}, nil
}

// RunFullSync runs one full reconciliation cycle to completion
func (u *emailUsecase) RunFullSync(ctx context.Context, userID string) *dto.SyncResult {
	audit, err := u.startCycle(userID)
	if err != nil {
		result := &dto.SyncResult{Success: false, Error: err.Error()}
		if audit != nil {
			result.AuditID = audit.ID
		}
		return result
	}
	return u.runCycle(ctx, userID, audit)
}

// runCycle executes the reconciliation steps. The caller must hold the
// per-user guard; it is released here.
func (u *emailUsecase) runCycle(ctx context.Context, userID string, audit *emaildomain.SyncAudit) *dto.SyncResult {
	defer u.release(userID)

	start := time.Now()
	cycleStart := audit.StartedAt

	failCycle := func(cause error) *dto.SyncResult {
		logger.Error("[Sync] Cycle %s for user %s failed: %v", audit.ID, userID, cause)
		if err := u.audits.Finish(audit.ID, emaildomain.SyncStatusFailed, 0, 0, 0, false, cause.Error()); err != nil {
			logger.Error("[Sync] Failed to finalize audit %s: %v", audit.ID, err)
		}
		monitoring.SyncCyclesTotal.WithLabelValues(emaildomain.SyncKindFull, emaildomain.SyncStatusFailed).Inc()
		return &dto.SyncResult{Success: false, AuditID: audit.ID, Error: cause.Error()}
	}

	// Mirror the label directory first so thread links can resolve
	labelMap, err := u.syncLabels(ctx, userID)
	if err != nil {
		return failCycle(err)
	}

	listing, err := u.provider.ListThreads(ctx, userID, u.opts.MaxThreads)
	if err != nil {
		return failCycle(err)
	}
	logger.Info("[Sync] Cycle %s: listed %d threads for user %s (complete=%v)",
		audit.ID, len(listing.Threads), userID, listing.Complete)

	var threadCount, messageCount, attachmentCount atomic.Int64

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(u.opts.Workers)

	cancelled := false
	for _, remote := range listing.Threads {
		// Cooperative cancel, polled between threads
		if requested, err := u.audits.IsCancelRequested(audit.ID); err == nil && requested {
			cancelled = true
			break
		}
		if groupCtx.Err() != nil {
			break
		}

		remote := remote
		group.Go(func() error {
			created, messages, attachments, err := u.syncRemoteThread(groupCtx, userID, labelMap, &remote, cycleStart)
			if err != nil {
				// One bad thread must not sink the cycle
				logger.Warn("[Sync] Skipping thread %s for user %s: %v", remote.ID, userID, err)
				return nil
			}
			if created {
				threadCount.Add(1)
			}
			messageCount.Add(int64(messages))
			attachmentCount.Add(int64(attachments))
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return failCycle(err)
	}
	if ctx.Err() != nil {
		cancelled = true
	}

	// Prune threads that disappeared remotely. Only safe after a complete
	// listing: a truncated view must not delete unseen threads.
	if listing.Complete && !cancelled {
		pruned, objectKeys, err := u.threads.PruneNotSeenSince(userID, cycleStart)
		if err != nil {
			logger.Error("[Sync] Prune failed for user %s: %v", userID, err)
		} else if pruned > 0 {
			logger.Info("[Sync] Pruned %d stale threads for user %s", pruned, userID)
			monitoring.ThreadsPrunedTotal.Add(float64(pruned))
			u.deleteBlobs(userID, objectKeys)
		}
	}

	if err := u.users.TouchLastSync(userID, time.Now()); err != nil {
		logger.Warn("[Sync] Failed to update last sync time for user %s: %v", userID, err)
	}
	u.invalidateThreadCache(userID)

	status := emaildomain.SyncStatusSuccess
	if cancelled {
		status = emaildomain.SyncStatusCancelled
	}
	threads, messages, attachments := int(threadCount.Load()), int(messageCount.Load()), int(attachmentCount.Load())
	if err := u.audits.Finish(audit.ID, status, threads, messages, attachments, listing.Complete, ""); err != nil {
		logger.Error("[Sync] Failed to finalize audit %s: %v", audit.ID, err)
	}

	monitoring.SyncCyclesTotal.WithLabelValues(emaildomain.SyncKindFull, status).Inc()
	monitoring.ThreadsSyncedTotal.Add(float64(threads))
	monitoring.MessagesSyncedTotal.Add(float64(messages))
	monitoring.AttachmentsSyncedTotal.Add(float64(attachments))
	monitoring.SyncDurationSeconds.Observe(time.Since(start).Seconds())

	logger.Info("[Sync] Cycle %s finished for user %s: status=%s threads=%d messages=%d attachments=%d in %v",
		audit.ID, userID, status, threads, messages, attachments, time.Since(start))

	return &dto.SyncResult{
		Success:           status == emaildomain.SyncStatusSuccess,
		AuditID:           audit.ID,
		ThreadsSynced:     threads,
		MessagesSynced:    messages,
		AttachmentsSynced: attachments,
	}
}

// syncLabels mirrors the remote label directory and returns the mapping from
// remote label IDs to stored label row IDs.
func (u *emailUsecase) syncLabels(ctx context.Context, userID string) (map[string]string, error) {
	remoteLabels, err := u.provider.ListLabels(ctx, userID)
	if err != nil {
		return nil, err
	}

	labelMap := make(map[string]string, len(remoteLabels))
	for _, remote := range remoteLabels {
		label, err := u.labels.EnsureLabel(userID, remote.ID, remote.Name, remote.Type)
		if err != nil {
			logger.Warn("[Sync] Failed to store label %s for user %s: %v", remote.ID, userID, err)
			continue
		}
		labelMap[remote.ID] = label.ID
	}
	return labelMap, nil
}

// syncRemoteThread reconciles one remote thread into the store. It reports
// whether the thread row was newly created, along with how many messages and
// attachments were newly stored; a re-observed thread only has its flags and
// labels refreshed and does not count as synced.
func (u *emailUsecase) syncRemoteThread(ctx context.Context, userID string, labelMap map[string]string, remote *emaildomain.RemoteThread, seenAt time.Time) (bool, int, int, error) {
	flags := emaildomain.FoldThreadFlags(remote.Messages)
	lastMessageAt := emaildomain.LatestMessageTime(remote.Messages)

	created := false
	thread, err := u.threads.FindByGmailID(userID, remote.ID)
	if err != nil {
		return false, 0, 0, err
	}
	if thread == nil {
		thread = &emaildomain.Thread{
			UserID:        userID,
			GmailThreadID: remote.ID,
			HistoryID:     remote.HistoryID,
			LastMessageAt: lastMessageAt,
			IsUnread:      flags.IsUnread,
			IsStarred:     flags.IsStarred,
			IsImportant:   flags.IsImportant,
			HasDraft:      flags.HasDraft,
			LastSeenAt:    seenAt,
		}
		if err := u.threads.Create(thread); err != nil {
			return false, 0, 0, err
		}
		created = true
	} else {
		if err := u.threads.UpdateObserved(thread.ID, flags, remote.HistoryID, lastMessageAt, seenAt); err != nil {
			return false, 0, 0, err
		}
	}

	// Recompute the label links from the union of message labels
	var labelRowIDs []string
	for _, gmailLabelID := range emaildomain.UnionLabelIDs(remote.Messages) {
		if rowID, ok := labelMap[gmailLabelID]; ok {
			labelRowIDs = append(labelRowIDs, rowID)
		}
	}
	if err := u.threads.ReplaceLabels(thread.ID, labelRowIDs); err != nil {
		logger.Warn("[Sync] Failed to replace labels on thread %s: %v", thread.ID, err)
	}

	messageCount := 0
	attachmentCount := 0
	for i := range remote.Messages {
		messages, attachments, err := u.syncMessage(ctx, userID, thread.ID, &remote.Messages[i])
		if err != nil {
			// One bad message must not sink the thread
			logger.Warn("[Sync] Skipping message %s in thread %s: %v", remote.Messages[i].ID, thread.ID, err)
			continue
		}
		messageCount += messages
		attachmentCount += attachments
	}
	return created, messageCount, attachmentCount, nil
}

// syncMessage stores a newly observed message, or refreshes the flags of a
// known one and retries any content that failed to upload earlier.
func (u *emailUsecase) syncMessage(ctx context.Context, userID, threadID string, remote *emaildomain.RemoteMessage) (int, int, error) {
	existing, err := u.messages.FindByGmailID(threadID, remote.ID)
	if err != nil {
		return 0, 0, err
	}

	isUnread, isStarred, isDraft := emaildomain.MessageFlags(remote.LabelIDs)

	if existing != nil {
		if err := u.messages.UpdateFlags(existing.ID, isUnread, isStarred, isDraft); err != nil {
			return 0, 0, err
		}
		// Retry a body upload that failed on an earlier cycle
		if existing.BodyObjectKey == nil && remote.BodyHTML != "" {
			if key, err := u.blobs.PutBody(ctx, userID, remote.ID, remote.BodyHTML); err != nil {
				logger.Warn("[Sync] Body upload retry failed for message %s: %v", remote.ID, err)
			} else if err := u.messages.SetBodyObjectKey(existing.ID, key); err != nil {
				logger.Warn("[Sync] Failed to record body key for message %s: %v", remote.ID, err)
			}
		}
		attachments := u.syncAttachments(ctx, userID, existing.ID, remote)
		return 0, attachments, nil
	}

	// New message: upload the body first, but a failed upload does not block
	// the metadata row. The null key is retried on later cycles.
	var bodyKey *string
	if remote.BodyHTML != "" {
		if key, err := u.blobs.PutBody(ctx, userID, remote.ID, remote.BodyHTML); err != nil {
			logger.Warn("[Sync] Body upload failed for message %s: %v", remote.ID, err)
		} else {
			bodyKey = &key
		}
	}

	message := &emaildomain.Message{
		ThreadID:       threadID,
		GmailMessageID: remote.ID,
		From:           remote.From,
		To:             remote.To,
		Cc:             remote.Cc,
		Bcc:            remote.Bcc,
		Subject:        remote.Subject,
		Snippet:        remote.Snippet,
		Headers:        remote.Headers,
		SentAt:         remote.SentAt,
		IsUnread:       isUnread,
		IsStarred:      isStarred,
		IsDraft:        isDraft,
		BodyObjectKey:  bodyKey,
		SizeEstimate:   remote.SizeEstimate,
	}
	if err := u.messages.Create(message); err != nil {
		return 0, 0, err
	}

	attachments := u.syncAttachments(ctx, userID, message.ID, remote)
	return 1, attachments, nil
}

// syncAttachments stores any attachments of the message that are not in the
// store yet. Each attachment fails independently.
func (u *emailUsecase) syncAttachments(ctx context.Context, userID, messageID string, remote *emaildomain.RemoteMessage) int {
	stored := 0
	for _, att := range remote.Attachments {
		existing, err := u.attachments.FindByGmailID(messageID, att.ID)
		if err != nil {
			logger.Warn("[Sync] Attachment lookup failed for %s: %v", att.ID, err)
			continue
		}
		if existing != nil {
			continue
		}

		data, err := u.provider.FetchAttachment(ctx, userID, remote.ID, att.ID)
		if err != nil {
			logger.Warn("[Sync] Failed to fetch attachment %s of message %s: %v", att.ID, remote.ID, err)
			continue
		}
		key, err := u.blobs.PutAttachment(ctx, userID, remote.ID, att.ID, att.Filename, att.MimeType, data)
		if err != nil {
			logger.Warn("[Sync] Failed to store attachment %s of message %s: %v", att.ID, remote.ID, err)
			continue
		}

		record := &emaildomain.Attachment{
			MessageID:         messageID,
			GmailAttachmentID: att.ID,
			Filename:          att.Filename,
			MimeType:          att.MimeType,
			Size:              int64(len(data)),
			ObjectKey:         key,
			IsInline:          att.IsInline,
		}
		if err := u.attachments.Create(record); err != nil {
			logger.Warn("[Sync] Failed to record attachment %s: %v", att.ID, err)
			continue
		}
		stored++
	}
	return stored
}

// SyncSingleThread re-syncs one thread after the remote side had time to
// index it. All failures are logged and swallowed.
func (u *emailUsecase) SyncSingleThread(ctx context.Context, userID, gmailThreadID string) {
	if u.opts.ResyncDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(u.opts.ResyncDelay):
		}
	}

	audit := &emaildomain.SyncAudit{
		UserID:    userID,
		Kind:      emaildomain.SyncKindSingle,
		Status:    emaildomain.SyncStatusRunning,
		StartedAt: time.Now(),
	}
	if err := u.audits.Create(audit); err != nil {
		logger.Error("[Sync] Failed to create audit for thread %s: %v", gmailThreadID, err)
		return
	}

	fail := func(cause error) {
		logger.Warn("[Sync] Single-thread sync of %s for user %s failed: %v", gmailThreadID, userID, cause)
		if err := u.audits.Finish(audit.ID, emaildomain.SyncStatusFailed, 0, 0, 0, false, cause.Error()); err != nil {
			logger.Error("[Sync] Failed to finalize audit %s: %v", audit.ID, err)
		}
		monitoring.SyncCyclesTotal.WithLabelValues(emaildomain.SyncKindSingle, emaildomain.SyncStatusFailed).Inc()
	}

	labelMap, err := u.syncLabels(ctx, userID)
	if err != nil {
		fail(err)
		return
	}

	remote, err := u.provider.GetThread(ctx, userID, gmailThreadID)
	if err != nil {
		fail(err)
		return
	}

	created, messages, attachments, err := u.syncRemoteThread(ctx, userID, labelMap, remote, audit.StartedAt)
	if err != nil {
		fail(err)
		return
	}

	threads := 0
	if created {
		threads = 1
	}
	u.invalidateThreadCache(userID)
	if err := u.audits.Finish(audit.ID, emaildomain.SyncStatusSuccess, threads, messages, attachments, false, ""); err != nil {
		logger.Error("[Sync] Failed to finalize audit %s: %v", audit.ID, err)
	}
	monitoring.SyncCyclesTotal.WithLabelValues(emaildomain.SyncKindSingle, emaildomain.SyncStatusSuccess).Inc()
}

func (u *emailUsecase) GetSyncStatus(ctx context.Context, userID string) ([]dto.SyncAuditResponse, error) {
	audits, err := u.audits.ListRecentByUser(userID, 10)
	if err != nil {
		return nil, err
	}
	out := make([]dto.SyncAuditResponse, 0, len(audits))
	for i := range audits {
		out = append(out, toAuditResponse(&audits[i]))
	}
	return out, nil
}

func (u *emailUsecase) GetSyncProgress(ctx context.Context, auditID string) (*dto.SyncAuditResponse, error) {
	audit, err := u.audits.FindByID(auditID)
	if err != nil {
		return nil, err
	}
	if audit == nil {
		return nil, emaildomain.ErrAuditNotFound
	}
	resp := toAuditResponse(audit)
	return &resp, nil
}

// CancelSync requests cooperative cancellation of a running cycle. The
// request takes effect between threads.
func (u *emailUsecase) CancelSync(ctx context.Context, auditID string) error {
	audit, err := u.audits.FindByID(auditID)
	if err != nil {
		return err
	}
	if audit == nil {
		return emaildomain.ErrAuditNotFound
	}
	if audit.Status != emaildomain.SyncStatusRunning {
		return nil
	}
	return u.audits.RequestCancel(auditID)
}

// RunScheduledSyncForAllUsers syncs every user whose last cycle is older than
// the configured interval, pausing between users to spread API load. The
// summary carries the per-user outcomes alongside the aggregate counts.
func (u *emailUsecase) RunScheduledSyncForAllUsers(ctx context.Context) *dto.ScheduledSyncResult {
	summary := &dto.ScheduledSyncResult{}

	cutoff := time.Now().Add(-u.opts.SyncInterval)
	users, err := u.users.FindUsersDueForSync(cutoff)
	if err != nil {
		logger.Error("[Sync] Failed to list users due for sync: %v", err)
		return summary
	}
	summary.TotalUsers = len(users)
	logger.Info("[Sync] Scheduled run: %d users due", len(users))

	record := func(result *dto.SyncResult) {
		if result.Success {
			summary.SuccessCount++
		} else {
			summary.ErrorCount++
		}
		summary.Results = append(summary.Results, *result)
	}

	for i := range users {
		if ctx.Err() != nil {
			return summary
		}
		user := &users[i]
		if !user.HasCredentials() {
			record(&dto.SyncResult{UserID: user.ID, Error: emaildomain.ErrCredentialsMissing.Error()})
			continue
		}
		if u.isRunning(user.ID) {
			logger.Info("[Sync] Skipping user %s: sync already in flight", user.ID)
			record(&dto.SyncResult{UserID: user.ID, Error: emaildomain.ErrSyncAlreadyRunning.Error()})
			continue
		}

		result := u.RunFullSync(ctx, user.ID)
		result.UserID = user.ID
		if !result.Success {
			logger.Warn("[Sync] Scheduled sync for user %s failed: %s", user.ID, result.Error)
		}
		record(result)

		if u.opts.UserDelay > 0 && i < len(users)-1 {
			select {
			case <-ctx.Done():
				return summary
			case <-time.After(u.opts.UserDelay):
			}
		}
	}
	return summary
}

// deleteBlobs removes pruned content from the blob store, best effort
func (u *emailUsecase) deleteBlobs(userID string, keys []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	for _, key := range keys {
		if err := u.blobs.Delete(ctx, key); err != nil {
			logger.Warn("[Sync] Failed to delete pruned object %s for user %s: %v", key, userID, err)
		}
	}
}

func toAuditResponse(audit *emaildomain.SyncAudit) dto.SyncAuditResponse {
	return dto.SyncAuditResponse{
		ID:                audit.ID,
		Kind:              audit.Kind,
		Status:            audit.Status,
		StartedAt:         audit.StartedAt,
		FinishedAt:        audit.FinishedAt,
		ThreadsSynced:     audit.ThreadsSynced,
		MessagesSynced:    audit.MessagesSynced,
		AttachmentsSynced: audit.AttachmentsSynced,
		FullListing:       audit.FullListing,
		Error:             audit.ErrorMessage,
	}
}
