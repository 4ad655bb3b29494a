package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"mailmirror-backend/pkg/logger"
)

// Service stores mail content in a GCS bucket under deterministic keys
type Service struct {
	client *storage.Client
	bucket string
}

// NewService creates a GCS-backed blob store. credentialsFile may be empty,
// in which case application default credentials are used.
func NewService(ctx context.Context, bucket, credentialsFile string) (*Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create storage client: %v", err)
	}
	return &Service{client: client, bucket: bucket}, nil
}

func (s *Service) put(ctx context.Context, key, contentType string, data []byte) error {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("unable to write object %s: %v", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("unable to write object %s: %v", key, err)
	}
	return nil
}

// PutBody stores a message body and returns its object key. Writing the same
// message twice overwrites the object with identical content, so retries are
// harmless.
func (s *Service) PutBody(ctx context.Context, userID, gmailMessageID, html string) (string, error) {
	key := BodyKey(userID, gmailMessageID)
	if err := s.put(ctx, key, "text/html; charset=utf-8", []byte(html)); err != nil {
		return "", err
	}
	return key, nil
}

// PutAttachment stores attachment content and returns its object key
func (s *Service) PutAttachment(ctx context.Context, userID, gmailMessageID, attachmentID, filename, mimeType string, data []byte) (string, error) {
	key := AttachmentKey(userID, gmailMessageID, attachmentID, filename)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	if err := s.put(ctx, key, mimeType, data); err != nil {
		return "", err
	}
	return key, nil
}

// GetObject reads an object's full content
func (s *Service) GetObject(ctx context.Context, key string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to read object %s: %v", key, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read object %s: %v", key, err)
	}
	return data, nil
}

// SignedURL returns a time-limited download URL for an object
func (s *Service) SignedURL(key string, ttl time.Duration) (string, error) {
	url, err := s.client.Bucket(s.bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("unable to sign url for %s: %v", key, err)
	}
	return url, nil
}

// Delete removes a single object. Deleting a missing object is not an error.
func (s *Service) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && err != storage.ErrObjectNotExist {
		return fmt.Errorf("unable to delete object %s: %v", key, err)
	}
	return nil
}

// DeleteUserData removes every object under the user's prefix. Individual
// delete failures are logged and skipped so one bad object does not block
// the rest.
func (s *Service) DeleteUserData(ctx context.Context, userID string) error {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: UserPrefix(userID)})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("unable to list objects for user %s: %v", userID, err)
		}
		if err := s.client.Bucket(s.bucket).Object(attrs.Name).Delete(ctx); err != nil {
			logger.Warn("[Storage] Failed to delete object %s: %v", attrs.Name, err)
		}
	}
	return nil
}
