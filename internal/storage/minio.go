package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"property-workflow/internal/domain"
)

type MinioStore struct {
	client *minio.Client
	bucket string
	now    func() time.Time
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

	return &MinioStore{client: client, bucket: bucket, now: time.Now}, nil
}

// Client exposes the underlying client for bucket notifications.
func (m *MinioStore) Client() *minio.Client {
	return m.client
}

func (m *MinioStore) Bucket() string {
	return m.bucket
}

// DocumentPrefix is the object prefix under which every document of a
// property is stored.
func DocumentPrefix(propertyID int64) string {
	return strconv.FormatInt(propertyID, 10) + "/"
}

// DocumentObjectKey builds <property id>/<kind>/<unix nanos>_<filename>.
func DocumentObjectKey(propertyID int64, kind domain.DocumentKind, filename string, at time.Time) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	return path.Join(strconv.FormatInt(propertyID, 10), string(kind), fmt.Sprintf("%d_%s", at.UnixNano(), name))
}

type StoredDocument struct {
	ObjectKey string
	Size      int64
}

func (m *MinioStore) PutDocument(ctx context.Context, propertyID int64, kind domain.DocumentKind, filename, contentType string, content []byte) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	objectKey := DocumentObjectKey(propertyID, kind, filename, m.now())
	_, err := m.client.PutObject(ctx, m.bucket, objectKey, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return objectKey, nil
}

func (m *MinioStore) ListDocuments(ctx context.Context, propertyID int64) ([]StoredDocument, error) {
	docs := make([]StoredDocument, 0)
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    DocumentPrefix(propertyID),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects: %w", obj.Err)
		}
		docs = append(docs, StoredDocument{ObjectKey: obj.Key, Size: obj.Size})
	}
	return docs, nil
}

func (m *MinioStore) GetDocument(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data := new(bytes.Buffer)
	if _, err := data.ReadFrom(obj); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: object %s", domain.ErrNotFound, objectKey)
		}
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data.Bytes(), nil
}

// RemovePropertyDocuments deletes every object stored for the property.
func (m *MinioStore) RemovePropertyDocuments(ctx context.Context, propertyID int64) error {
	objects := m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    DocumentPrefix(propertyID),
		Recursive: true,
	})
	for rerr := range m.client.RemoveObjects(ctx, m.bucket, objects, minio.RemoveObjectsOptions{}) {
		if rerr.Err != nil {
			return fmt.Errorf("remove %s: %w", rerr.ObjectName, rerr.Err)
		}
	}
	return nil
}
