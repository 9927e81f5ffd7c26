package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	fig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/techagentng/collabhub/config"
)

const (
	generatedFolder = "generated"
	maxMirrorSize   = 20 * 1024 * 1024 // 20 MB
)

// MediaService copies remote media into the configured bucket.
type MediaService interface {
	// MirrorURL downloads sourceURL and stores it publicly, returning the new URL.
	MirrorURL(ctx context.Context, sourceURL string) (string, error)
}

// ObjectPutter is the part of the S3 client the media service uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type mediaService struct {
	Config *config.Config
	s3     ObjectPutter
	http   *http.Client
}

func NewMediaService(client ObjectPutter, conf *config.Config) MediaService {
	return &mediaService{
		Config: conf,
		s3:     client,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

// NewS3Client builds an S3 client from the static credentials in conf.
func NewS3Client(ctx context.Context, conf *config.Config) (*s3.Client, error) {
	cfg, err := fig.LoadDefaultConfig(ctx,
		fig.WithRegion(conf.AWSRegion),
		fig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			conf.AWSAccessKeyID,
			conf.AWSSecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config, %v", err)
	}

	return s3.NewFromConfig(cfg), nil
}

func (m *mediaService) MirrorURL(ctx context.Context, sourceURL string) (string, error) {
	if m.Config.S3Bucket == "" {
		return "", fmt.Errorf("S3 bucket name is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download media: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download media: %s", resp.Status)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxMirrorSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read media: %v", err)
	}
	if len(content) > maxMirrorSize {
		return "", fmt.Errorf("media exceeds %d bytes", maxMirrorSize)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}
	key := path.Join(generatedFolder, uuid.NewString()+extensionFor(contentType))

	_, err = m.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.Config.S3Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ACL:         types.ObjectCannedACLPublicRead,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to S3: %v", err)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", m.Config.S3Bucket, m.Config.AWSRegion, key), nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}
