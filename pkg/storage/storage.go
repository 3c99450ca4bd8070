// Package storage persists attachment payloads in Cloud Storage. The
// relational tables only ever hold the object key.
package storage

import (
	"context"
	"fmt"
	"strings"

	gcs "cloud.google.com/go/storage"
)

// AttachmentStore writes mail and calendar attachment bytes to their buckets.
type AttachmentStore struct {
	client         *gcs.Client
	mailBucket     string
	calendarBucket string
}

func NewAttachmentStore(ctx context.Context, mailBucket, calendarBucket string) (*AttachmentStore, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to create storage client: %w", err)
	}
	return &AttachmentStore{
		client:         client,
		mailBucket:     mailBucket,
		calendarBucket: calendarBucket,
	}, nil
}

// SaveMailAttachment uploads one mail attachment and returns its object key.
// Re-runs overwrite the same object.
func (s *AttachmentStore) SaveMailAttachment(ctx context.Context, userID, messageID, attachmentID, filename, mimeType string, data []byte) (string, error) {
	key := ObjectKey(userID, messageID, attachmentID, filename)
	if err := s.upload(ctx, s.mailBucket, key, mimeType, data); err != nil {
		return "", err
	}
	return key, nil
}

// SaveCalendarAttachment uploads one Drive-linked event attachment.
func (s *AttachmentStore) SaveCalendarAttachment(ctx context.Context, userID, eventID, fileID, filename, mimeType string, data []byte) (string, error) {
	key := ObjectKey(userID, eventID, fileID, filename)
	if err := s.upload(ctx, s.calendarBucket, key, mimeType, data); err != nil {
		return "", err
	}
	return key, nil
}

func (s *AttachmentStore) upload(ctx context.Context, bucket, key, mimeType string, data []byte) error {
	w := s.client.Bucket(bucket).Object(key).NewWriter(ctx)
	if mimeType != "" {
		w.ContentType = mimeType
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("unable to write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("unable to finalize object %s: %w", key, err)
	}
	return nil
}

// ObjectKey builds {user}/{parent}/{attachment}-{sanitized filename}. The
// attachment id keeps same-named siblings on one parent distinct.
func ObjectKey(userID, parentID, attachmentID, filename string) string {
	return fmt.Sprintf("%s/%s/%s-%s", userID, parentID, attachmentID, SanitizeFilename(filename))
}

// SanitizeFilename reduces a provider-supplied filename to characters safe in
// an object key.
func SanitizeFilename(name string) string {
	if name == "" {
		return "attachment"
	}
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
