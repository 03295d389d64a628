package events

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/notification"
	"github.com/sirupsen/logrus"

	"property-workflow/internal/domain"
)

const objectCreatedEvent = "s3:ObjectCreated:*"

// DocumentEvent is a property document that landed in the bucket.
type DocumentEvent struct {
	PropertyID int64
	Kind       domain.DocumentKind
	Filename   string
	ObjectKey  string
	EventName  string
}

type DocumentEventSource interface {
	Run(ctx context.Context, handler func(context.Context, DocumentEvent) error) error
}

type MinioDocumentEventSource struct {
	client *minio.Client
	bucket string
	logger logrus.FieldLogger
}

func NewMinioDocumentEventSource(client *minio.Client, bucket string, logger logrus.FieldLogger) *MinioDocumentEventSource {
	if logger == nil {
		logger = logrus.New()
	}
	return &MinioDocumentEventSource{client: client, bucket: bucket, logger: logger}
}

func (s *MinioDocumentEventSource) Run(ctx context.Context, handler func(context.Context, DocumentEvent) error) error {
	notificationCh := s.client.ListenBucketNotification(ctx, s.bucket, "", "", []string{objectCreatedEvent})
	for {
		select {
		case <-ctx.Done():
			return nil
		case info, ok := <-notificationCh:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream closed")
			}
			if info.Err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream error: %w", info.Err)
			}
			for _, event := range documentEvents(info, s.logger) {
				if err := handler(ctx, event); err != nil {
					return err
				}
			}
		}
	}
}

// documentEvents keeps the records whose key follows the property document
// layout and skips the rest.
func documentEvents(info notification.Info, logger logrus.FieldLogger) []DocumentEvent {
	out := make([]DocumentEvent, 0, len(info.Records))
	for _, record := range info.Records {
		objectKey, err := decodeObjectKey(record.S3.Object.Key)
		if err == nil {
			var event DocumentEvent
			event, err = parseObjectKey(objectKey)
			if err == nil {
				event.EventName = record.EventName
				out = append(out, event)
				continue
			}
		}
		logger.WithError(err).WithField("object_key", record.S3.Object.Key).Debug("skipping object")
	}
	return out
}

func decodeObjectKey(encoded string) (string, error) {
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return "", err
	}
	decoded = strings.TrimSpace(decoded)
	if decoded == "" {
		return "", fmt.Errorf("object key is empty")
	}
	return decoded, nil
}

// parseObjectKey reads a "<property id>/<kind>/<file>" key.
func parseObjectKey(objectKey string) (DocumentEvent, error) {
	cleaned := strings.Trim(strings.ReplaceAll(objectKey, "\\", "/"), "/")
	parts := strings.SplitN(cleaned, "/", 3)
	if len(parts) != 3 {
		return DocumentEvent{}, fmt.Errorf("object key %q does not match property_id/kind/filename", objectKey)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil || id <= 0 {
		return DocumentEvent{}, fmt.Errorf("object key %q has no property id", objectKey)
	}
	kind, err := domain.ParseDocumentKind(parts[1])
	if err != nil {
		return DocumentEvent{}, err
	}
	filename := strings.TrimSpace(parts[2])
	if filename == "" {
		return DocumentEvent{}, fmt.Errorf("object key %q missing filename", objectKey)
	}
	return DocumentEvent{
		PropertyID: id,
		Kind:       kind,
		Filename:   filename,
		ObjectKey:  cleaned,
	}, nil
}
