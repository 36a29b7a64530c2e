// internal/services/storage_service.go
package services

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/gotchaguardian/payment-server/internal/apperrors"
	"github.com/gotchaguardian/payment-server/internal/catalog"
	"github.com/gotchaguardian/payment-server/internal/config"
)

// StorageService resolves product file references to something a client
// can download: a presigned S3 URL in production, a local file path in
// development when no AWS credentials are configured.
type StorageService struct {
	s3Client *s3.S3
	config   *config.Config
}

// FileDescriptor is handed to the download handler after a token redeem.
// Exactly one of URL and LocalPath is set.
type FileDescriptor struct {
	ProductID string `json:"product_id"`
	FileName  string `json:"file_name"`
	Size      int64  `json:"size"`
	SHA256    string `json:"sha256,omitempty"`
	URL       string `json:"url,omitempty"`
	LocalPath string `json:"-"`
}

func NewStorageService(cfg *config.Config) (*StorageService, error) {
	if cfg.AWS.AccessKeyID == "" {
		// Local development: serve from the downloads directory
		return &StorageService{config: cfg}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		config:   cfg,
	}, nil
}

func (s *StorageService) ResolveDownload(product catalog.Product) (*FileDescriptor, error) {
	descriptor := &FileDescriptor{
		ProductID: product.ID,
		FileName:  filepath.Base(product.File.Key),
		Size:      product.File.Size,
		SHA256:    product.File.SHA256,
	}

	if s.s3Client != nil {
		url, err := s.presignedURL(product.File.Key, 15*time.Minute)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, "failed to sign download URL", err)
		}
		descriptor.URL = url
		return descriptor, nil
	}

	localPath := filepath.Join(s.config.Download.LocalDirectory, filepath.Base(product.File.Key))
	if _, err := os.Stat(localPath); err != nil {
		return nil, apperrors.Newf(apperrors.KindNotFound, "product file %q not available", descriptor.FileName)
	}
	descriptor.LocalPath = localPath
	return descriptor, nil
}

func (s *StorageService) presignedURL(key string, expiration time.Duration) (string, error) {
	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})

	url, err := req.Presign(expiration)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url, nil
}
