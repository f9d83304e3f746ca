package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSPublisher uploads exports to a Google Cloud Storage bucket.
type GCSPublisher struct {
	client        *storage.Client
	bucket        string
	objectPrefix  string
	publicBaseURL string
	timeout       time.Duration
}

// NewGCSPublisher uses credentialsFile when set, otherwise application
// default credentials.
func NewGCSPublisher(ctx context.Context, bucketName, objectPrefix, credentialsFile, publicBaseURL string) (*GCSPublisher, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSPublisher{
		client:        client,
		bucket:        bucketName,
		objectPrefix:  strings.Trim(objectPrefix, "/"),
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		timeout:       5 * time.Minute,
	}, nil
}

func (p *GCSPublisher) Publish(ctx context.Context, name string, r io.Reader) (string, error) {
	objectName := p.objectName(name)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	wc := p.client.Bucket(p.bucket).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType(name)
	if _, err := io.Copy(wc, r); err != nil {
		wc.Close()
		return "", fmt.Errorf("failed to copy export to GCS: %w", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}

	return p.location(objectName), nil
}

func (p *GCSPublisher) objectName(name string) string {
	if p.objectPrefix == "" {
		return name
	}
	return p.objectPrefix + "/" + name
}

// location is the public URL when a base URL is configured, otherwise a
// gs:// URI.
func (p *GCSPublisher) location(objectName string) string {
	if p.publicBaseURL != "" {
		return p.publicBaseURL + "/" + (&url.URL{Path: objectName}).EscapedPath()
	}
	return fmt.Sprintf("gs://%s/%s", p.bucket, objectName)
}

func (p *GCSPublisher) Close() error {
	return p.client.Close()
}

func contentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".webm"):
		return "video/webm"
	case strings.HasSuffix(name, ".mp4"):
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}
