package events

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
)

const objectCreatedEvent = "s3:ObjectCreated:*"

// AttachmentEvent is an attachment landing under <reportID>/<uploadID>/<name>.
type AttachmentEvent struct {
	ReportID  int64
	Filename  string
	ObjectKey string
	EventName string
}

type AttachmentEventSource interface {
	Run(ctx context.Context, handler func(context.Context, AttachmentEvent) error) error
}

type MinioAttachmentEventSource struct {
	client *minio.Client
	bucket string
	prefix string
	suffix string
}

func NewMinioAttachmentEventSource(client *minio.Client, bucket string, prefix string, suffix string) *MinioAttachmentEventSource {
	return &MinioAttachmentEventSource{
		client: client,
		bucket: bucket,
		prefix: prefix,
		suffix: suffix,
	}
}

// Run delivers object-created events until ctx is done. Keys that do not
// start with a report id, such as archive snapshots, are skipped.
func (s *MinioAttachmentEventSource) Run(ctx context.Context, handler func(context.Context, AttachmentEvent) error) error {
	notificationCh := s.client.ListenBucketNotification(ctx, s.bucket, s.prefix, s.suffix, []string{objectCreatedEvent})
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
			for _, record := range info.Records {
				event, err := eventFromKey(record.S3.Object.Key, record.EventName)
				if err != nil {
					continue
				}
				if err := handler(ctx, event); err != nil {
					return err
				}
			}
		}
	}
}

func eventFromKey(encodedKey, eventName string) (AttachmentEvent, error) {
	objectKey, err := decodeObjectKey(encodedKey)
	if err != nil {
		return AttachmentEvent{}, err
	}
	reportID, filename, err := parseObjectKey(objectKey)
	if err != nil {
		return AttachmentEvent{}, err
	}
	return AttachmentEvent{
		ReportID:  reportID,
		Filename:  filename,
		ObjectKey: objectKey,
		EventName: eventName,
	}, nil
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

func parseObjectKey(objectKey string) (int64, string, error) {
	cleaned := strings.Trim(strings.ReplaceAll(objectKey, "\\", "/"), "/")
	parts := strings.SplitN(cleaned, "/", 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("object key %q does not match report_id/filename", objectKey)
	}
	reportID, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil || reportID <= 0 {
		return 0, "", fmt.Errorf("object key %q has no report id", objectKey)
	}
	rest := strings.TrimSpace(parts[1])
	if rest == "" {
		return 0, "", fmt.Errorf("object key %q missing filename", objectKey)
	}
	filename := rest
	if i := strings.LastIndex(rest, "/"); i >= 0 {
		filename = rest[i+1:]
	}
	if filename == "" {
		return 0, "", fmt.Errorf("object key %q missing filename", objectKey)
	}
	return reportID, filename, nil
}
