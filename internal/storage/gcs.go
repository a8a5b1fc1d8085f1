package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const gcsFolder = "issues"

// GCSUploader сохраняет изображения в бакет Google Cloud Storage.
// Бакет должен быть доступен на чтение публично
type GCSUploader struct {
	client     *storage.Client
	bucketName string
}

func NewGCSUploader(ctx context.Context, bucketName, credentialsPath string) (*GCSUploader, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSUploader{client: client, bucketName: bucketName}, nil
}

func (u *GCSUploader) Save(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	objectName := gcsFolder + "/" + name

	wc := u.client.Bucket(u.bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType
	wc.CacheControl = "public, max-age=86400"

	if _, err := io.Copy(wc, r); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("failed to copy file to GCS: %w", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}

	return u.publicURL(objectName), nil
}

func (u *GCSUploader) publicURL(objectName string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", u.bucketName, objectName)
}

// Delete удаляет объект по публичному URL этого бакета
func (u *GCSUploader) Delete(ctx context.Context, url string) error {
	objectName, ok := strings.CutPrefix(url, u.publicURL(""))
	if !ok || objectName == "" {
		return fmt.Errorf("url %q does not belong to bucket %s", url, u.bucketName)
	}
	err := u.client.Bucket(u.bucketName).Object(objectName).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete GCS object: %w", err)
	}
	return nil
}

func (u *GCSUploader) Close() error {
	return u.client.Close()
}
