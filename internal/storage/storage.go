// Package storage archives compressed outputs to S3-compatible object
// storage, keyed by batch so a whole run can be retrieved together.
package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/vidsqueeze/vidsqueeze/internal/config"
)

// Multipart tuning for large video uploads.
const (
	uploadPartSize uint64 = 16 * 1024 * 1024
	uploadThreads  uint   = 4
)

// Archive provides object storage operations for batch outputs.
type Archive struct {
	client     *minio.Client
	bucketName string
}

// New creates a storage client and ensures the bucket exists.
func New(cfg config.StorageConfig) (*Archive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Archive{
		client:     client,
		bucketName: cfg.BucketName,
	}, nil
}

// Store uploads a compressed output under the batch prefix and returns the
// object name.
func (a *Archive) Store(ctx context.Context, batchID, outputPath string) (string, error) {
	objectName := ObjectName(batchID, outputPath)
	contentType := getContentType(outputPath)

	_, err := a.client.FPutObject(ctx, a.bucketName, objectName, outputPath, minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    uploadPartSize,
		NumThreads:  uploadThreads,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	return objectName, nil
}

// PresignedURL returns a time-limited download link for an archived object.
func (a *Archive) PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = time.Hour
	}

	url, err := a.client.PresignedGetObject(ctx, a.bucketName, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate URL: %w", err)
	}

	return url.String(), nil
}

// ListBatch lists the archived objects of one batch.
func (a *Archive) ListBatch(ctx context.Context, batchID string) ([]string, error) {
	var objects []string

	for object := range a.client.ListObjects(ctx, a.bucketName, minio.ListObjectsOptions{
		Prefix:    batchID + "/",
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		objects = append(objects, object.Key)
	}

	return objects, nil
}

// Delete removes an archived object.
func (a *Archive) Delete(ctx context.Context, objectName string) error {
	err := a.client.RemoveObject(ctx, a.bucketName, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

// ObjectName builds the storage key for one output file.
func ObjectName(batchID, outputPath string) string {
	return path.Join(batchID, filepath.Base(outputPath))
}

// getContentType returns the content type based on file extension
func getContentType(filePath string) string {
	switch filepath.Ext(filePath) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".avi":
		return "video/x-msvideo"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".wmv":
		return "video/x-ms-wmv"
	case ".flv":
		return "video/x-flv"
	default:
		return "application/octet-stream"
	}
}
