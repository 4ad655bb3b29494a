package delivery

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	emaildomain "mailmirror-backend/internal/email/domain"
	"mailmirror-backend/internal/email/dto"
	"mailmirror-backend/internal/email/usecase"
	"mailmirror-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// EmailHandler exposes the sync and mailbox endpoints
type EmailHandler struct {
	emailUsecase usecase.EmailUsecase
	cronSecret   string
}

// NewEmailHandler creates a new EmailHandler
func NewEmailHandler(emailUsecase usecase.EmailUsecase, cronSecret string) *EmailHandler {
	return &EmailHandler{
		emailUsecase: emailUsecase,
		cronSecret:   cronSecret,
	}
}

func userIDFromContext(c *gin.Context) string {
	return c.GetString("userID")
}

// TriggerSync starts a full sync for the authenticated user
func (h *EmailHandler) TriggerSync(c *gin.Context) {
	resp, err := h.emailUsecase.TriggerSync(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, emaildomain.ErrSyncAlreadyRunning):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, emaildomain.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, emaildomain.ErrCredentialsMissing):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start sync"})
		}
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

// GetSyncStatus returns the last sync audits for the authenticated user
func (h *EmailHandler) GetSyncStatus(c *gin.Context) {
	status, err := h.emailUsecase.GetSyncStatus(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sync status"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"audits": status})
}

// GetSyncProgress returns one audit by ID
func (h *EmailHandler) GetSyncProgress(c *gin.Context) {
	progress, err := h.emailUsecase.GetSyncProgress(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, emaildomain.ErrAuditNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sync progress"})
		return
	}
	c.JSON(http.StatusOK, progress)
}

// CancelSync requests cancellation of a running cycle
func (h *EmailHandler) CancelSync(c *gin.Context) {
	err := h.emailUsecase.CancelSync(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, emaildomain.ErrAuditNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel sync"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cancellation requested"})
}

// RunScheduledSync is called by the cron trigger, authenticated by a shared
// secret instead of a user token.
func (h *EmailHandler) RunScheduledSync(c *gin.Context) {
	if h.cronSecret == "" || c.GetHeader("X-Cron-Secret") != h.cronSecret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid cron secret"})
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("[API] Panic in scheduled sync: %v", r)
			}
		}()
		summary := h.emailUsecase.RunScheduledSyncForAllUsers(context.Background())
		logger.Info("[API] Scheduled sync finished: %d users, %d succeeded, %d failed",
			summary.TotalUsers, summary.SuccessCount, summary.ErrorCount)
	}()

	c.JSON(http.StatusAccepted, gin.H{"message": "scheduled sync started"})
}

// ListThreads returns a page of the user's threads
func (h *EmailHandler) ListThreads(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	raw, err := h.emailUsecase.ListThreads(c.Request.Context(), userIDFromContext(c), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load threads"})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

// GetThread returns one thread with its messages and attachments
func (h *EmailHandler) GetThread(c *gin.Context) {
	thread, err := h.emailUsecase.GetThread(c.Request.Context(), userIDFromContext(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, emaildomain.ErrThreadNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load thread"})
		return
	}
	c.JSON(http.StatusOK, thread)
}

// GetBodyURL returns a signed URL for a message body
func (h *EmailHandler) GetBodyURL(c *gin.Context) {
	resp, err := h.emailUsecase.GetBodyURL(c.Request.Context(), userIDFromContext(c), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, emaildomain.ErrMessageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, emaildomain.ErrBodyNotStored):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign body url"})
		}
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetAttachmentURL returns a signed URL for an attachment
func (h *EmailHandler) GetAttachmentURL(c *gin.Context) {
	resp, err := h.emailUsecase.GetAttachmentURL(c.Request.Context(), userIDFromContext(c), c.Param("id"), c.Param("attachmentId"))
	if err != nil {
		switch {
		case errors.Is(err, emaildomain.ErrMessageNotFound), errors.Is(err, emaildomain.ErrAttachmentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign attachment url"})
		}
		return
	}
	c.JSON(http.StatusOK, resp)
}

// MarkThreadRead flips the read state of a thread
func (h *EmailHandler) MarkThreadRead(c *gin.Context) {
	var req struct {
		Read *bool `json:"read"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Read == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read field is required"})
		return
	}

	err := h.emailUsecase.MarkThreadRead(c.Request.Context(), userIDFromContext(c), c.Param("id"), *req.Read)
	if err != nil {
		if errors.Is(err, emaildomain.ErrThreadNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update thread"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "thread updated"})
}

// ToggleStar flips the starred state of a thread
func (h *EmailHandler) ToggleStar(c *gin.Context) {
	err := h.emailUsecase.ToggleStar(c.Request.Context(), userIDFromContext(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, emaildomain.ErrThreadNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update thread"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "thread updated"})
}

// SendEmail composes and sends a new email
func (h *EmailHandler) SendEmail(c *gin.Context) {
	var req dto.SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.emailUsecase.SendEmail(c.Request.Context(), userIDFromContext(c), req); err != nil {
		h.composeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "email sent"})
}

// ReplyEmail replies to a stored message
func (h *EmailHandler) ReplyEmail(c *gin.Context) {
	var req dto.ReplyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.emailUsecase.ReplyEmail(c.Request.Context(), userIDFromContext(c), req); err != nil {
		h.composeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "reply sent"})
}

// ForwardEmail forwards a stored message
func (h *EmailHandler) ForwardEmail(c *gin.Context) {
	var req dto.ForwardEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.emailUsecase.ForwardEmail(c.Request.Context(), userIDFromContext(c), req); err != nil {
		h.composeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "email forwarded"})
}

func (h *EmailHandler) composeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, emaildomain.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, emaildomain.ErrUserNotFound), errors.Is(err, emaildomain.ErrCredentialsMissing):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Error("[API] Compose failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send email"})
	}
}

// Health reports service liveness
func (h *EmailHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
