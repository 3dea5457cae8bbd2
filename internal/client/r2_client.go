package client

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/luzdodia/api/internal/config"
)

// AssetStore persists generated media and returns a public URL for it
type AssetStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	PublicURL(key string) string
}

// AssetKey builds the storage key of a session asset.
func AssetKey(sessionID, kind, name string) string {
	return path.Join(SessionAssetPrefix(sessionID), kind, name)
}

// SessionAssetPrefix is the key prefix holding every asset of a session.
func SessionAssetPrefix(sessionID string) string {
	return path.Join("sessions", sessionID) + "/"
}

// R2Client stores session media in a Cloudflare R2 bucket through the S3 API
type R2Client struct {
	s3         *s3.Client
	bucket     string
	accountID  string
	publicBase string
}

func NewR2Client(ctx context.Context, cfg *config.R2Config) (*R2Client, error) {
	if cfg.AccountID == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("R2 configuration incomplete")
	}
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("R2 bucket name is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("load R2 credentials: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	return &R2Client{
		s3: s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		}),
		bucket:     cfg.BucketName,
		accountID:  cfg.AccountID,
		publicBase: strings.TrimRight(cfg.PublicURL, "/"),
	}, nil
}

// Upload stores an asset under key and returns its public URL. Generated
// media never changes under a key, so it is cached for a day.
func (c *R2Client) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(c.bucket),
		Key:          aws.String(key),
		Body:         body,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=86400"),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s to R2: %w", key, err)
	}
	return c.PublicURL(key), nil
}

// DeletePrefix removes every object under prefix and returns how many
// were deleted.
func (c *R2Client) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	deleted := 0
	pages := s3.NewListObjectsV2Paginator(c.s3, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("list %s: %w", prefix, err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
		}
		out, err := c.s3.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(c.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return deleted, fmt.Errorf("delete %s: %w", prefix, err)
		}
		deleted += len(objects) - len(out.Errors)
		if len(out.Errors) > 0 {
			return deleted, fmt.Errorf("delete %s: %d objects failed, first: %s", prefix, len(out.Errors), aws.ToString(out.Errors[0].Message))
		}
	}
	return deleted, nil
}

// Ping checks that the bucket is reachable with the configured keys.
func (c *R2Client) Ping(ctx context.Context) error {
	if _, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)}); err != nil {
		return fmt.Errorf("R2 bucket %s unreachable: %w", c.bucket, err)
	}
	return nil
}

// PublicURL returns the CDN URL of key, or the bucket endpoint URL when no
// public domain is configured.
func (c *R2Client) PublicURL(key string) string {
	if c.publicBase != "" {
		return c.publicBase + "/" + key
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com/%s/%s", c.accountID, c.bucket, key)
}
