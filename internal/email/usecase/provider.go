package usecase

import (
	"context"

	authrepo "mailmirror-backend/internal/auth/repository"
	emaildomain "mailmirror-backend/internal/email/domain"
	"mailmirror-backend/internal/email/dto"
	"mailmirror-backend/pkg/gmail"

	"golang.org/x/oauth2"
)

// gmailProvider adapts the Gmail client to the engine's provider interfaces,
// resolving user credentials per call and persisting refreshed tokens.
type gmailProvider struct {
	svc   *gmail.Service
	users authrepo.UserRepository
}

// NewGmailProvider wires the Gmail client and the user store together
func NewGmailProvider(svc *gmail.Service, users authrepo.UserRepository) *gmailProvider {
	return &gmailProvider{svc: svc, users: users}
}

func (p *gmailProvider) getUserTokens(userID string) (accessToken, refreshToken string, err error) {
	user, err := p.users.FindByID(userID)
	if err != nil {
		return "", "", err
	}
	if user == nil {
		return "", "", emaildomain.ErrUserNotFound
	}
	if !user.HasCredentials() {
		return "", "", emaildomain.ErrCredentialsMissing
	}
	return user.AccessToken, user.RefreshToken, nil
}

// makeTokenUpdateCallback persists refreshed tokens back onto the user row
func (p *gmailProvider) makeTokenUpdateCallback(userID string) gmail.TokenUpdateFunc {
	return func(token *oauth2.Token) error {
		return p.users.UpdateTokens(userID, token.AccessToken, token.RefreshToken, token.Expiry)
	}
}

func (p *gmailProvider) ListLabels(ctx context.Context, userID string) ([]emaildomain.RemoteLabel, error) {
	access, refresh, err := p.getUserTokens(userID)
	if err != nil {
		return nil, err
	}
	return p.svc.ListLabels(ctx, access, refresh, p.makeTokenUpdateCallback(userID))
}

func (p *gmailProvider) ListThreads(ctx context.Context, userID string, limit int) (*emaildomain.ThreadListing, error) {
	access, refresh, err := p.getUserTokens(userID)
	if err != nil {
		return nil, err
	}
	return p.svc.ListThreads(ctx, access, refresh, limit, p.makeTokenUpdateCallback(userID))
}

func (p *gmailProvider) GetThread(ctx context.Context, userID, threadID string) (*emaildomain.RemoteThread, error) {
	access, refresh, err := p.getUserTokens(userID)
	if err != nil {
		return nil, err
	}
	return p.svc.GetThread(ctx, access, refresh, threadID, p.makeTokenUpdateCallback(userID))
}

func (p *gmailProvider) FetchAttachment(ctx context.Context, userID, messageID, attachmentID string) ([]byte, error) {
	access, refresh, err := p.getUserTokens(userID)
	if err != nil {
		return nil, err
	}
	return p.svc.GetAttachment(ctx, access, refresh, messageID, attachmentID, p.makeTokenUpdateCallback(userID))
}

func (p *gmailProvider) senderIdentity(userID string) (email, access, refresh string, err error) {
	user, err := p.users.FindByID(userID)
	if err != nil {
		return "", "", "", err
	}
	if user == nil {
		return "", "", "", emaildomain.ErrUserNotFound
	}
	if !user.HasCredentials() {
		return "", "", "", emaildomain.ErrCredentialsMissing
	}
	return user.Email, user.AccessToken, user.RefreshToken, nil
}

func (p *gmailProvider) Send(ctx context.Context, userID string, req dto.SendEmailRequest) (string, error) {
	email, access, refresh, err := p.senderIdentity(userID)
	if err != nil {
		return "", err
	}
	return p.svc.SendEmail(ctx, access, refresh, email, req.To, req.Cc, req.Bcc, req.Subject, req.Body, nil, p.makeTokenUpdateCallback(userID))
}

func (p *gmailProvider) Reply(ctx context.Context, userID, originalGmailMessageID string, req dto.ReplyEmailRequest) (string, error) {
	email, access, refresh, err := p.senderIdentity(userID)
	if err != nil {
		return "", err
	}
	return p.svc.ReplyEmail(ctx, access, refresh, email, originalGmailMessageID, req.To, req.Cc, req.Bcc, req.Body, nil, p.makeTokenUpdateCallback(userID))
}

func (p *gmailProvider) Forward(ctx context.Context, userID, originalGmailMessageID string, req dto.ForwardEmailRequest) (string, error) {
	email, access, refresh, err := p.senderIdentity(userID)
	if err != nil {
		return "", err
	}
	return p.svc.ForwardEmail(ctx, access, refresh, email, originalGmailMessageID, req.To, req.Cc, req.Bcc, req.Body, nil, p.makeTokenUpdateCallback(userID))
}
