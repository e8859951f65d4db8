package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strconv"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const archivePrefix = "archive"

type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(endpoint, accessKey, secretKey string, useSSL bool, bucket string) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}

	return &MinioStore{client: client, bucket: bucket}, nil
}

// AttachmentKey is the object key for a report attachment. The leading report
// id is what the bucket event source keys workflow starts on.
func AttachmentKey(reportID int64, uploadID, filename string) string {
	return path.Join(strconv.FormatInt(reportID, 10), uploadID, path.Base(filename))
}

// ArchiveKey is deterministic so a retried archive overwrites instead of
// duplicating.
func ArchiveKey(reportID int64) string {
	return path.Join(archivePrefix, strconv.FormatInt(reportID, 10), "approval.json")
}

func (m *MinioStore) PutAttachment(ctx context.Context, objectKey string, content []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := m.client.PutObject(ctx, m.bucket, objectKey, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (m *MinioStore) PutArchive(ctx context.Context, reportID int64, snapshot []byte) (string, error) {
	objectKey := ArchiveKey(reportID)
	_, err := m.client.PutObject(ctx, m.bucket, objectKey, bytes.NewReader(snapshot), int64(len(snapshot)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", err
	}
	return objectKey, nil
}

func (m *MinioStore) GetObject(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data := new(bytes.Buffer)
	if _, err := data.ReadFrom(obj); err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data.Bytes(), nil
}
