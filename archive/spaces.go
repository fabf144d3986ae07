// Package archive exports snapshot history to S3-compatible object
// storage as JSON lines, one object per export run.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/duskhaven/economy/economy/models"
)

type SpacesExporter struct {
	client *s3.Client
	bucket string
}

// NewSpacesExporter builds an exporter against an S3-compatible
// endpoint (DigitalOcean Spaces in production).
func NewSpacesExporter(ctx context.Context, key, secret, region, endpoint, bucket string) (*SpacesExporter, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{URL: endpoint}, nil
	})

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load object storage config: %w", err)
	}

	return &SpacesExporter{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}, nil
}

// ExportSnapshots uploads the given snapshots as a single JSON-lines
// object keyed by export time.
func (e *SpacesExporter) ExportSnapshots(ctx context.Context, snapshots []models.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, snap := range snapshots {
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
	}

	key := fmt.Sprintf("snapshots/%s.jsonl", time.Now().UTC().Format("2006-01-02T15-04-05"))
	_, err := e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &e.bucket,
		Key:    &key,
		Body:   bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("failed to upload snapshot export: %w", err)
	}

	slog.Info("snapshot history exported",
		slog.String("key", key),
		slog.Int("snapshots", len(snapshots)))
	return nil
}
