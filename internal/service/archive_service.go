package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// WebhookArchive keeps a copy of every verified webhook payload.
type WebhookArchive interface {
	// Store writes payload and returns the object key.
	Store(ctx context.Context, provider string, payload []byte) (string, error)
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3Archive struct {
	client objectPutter
	bucket string
	now    func() time.Time
}

// NewWebhookArchive returns an S3 backed archive, or a no-op archive when bucket is empty.
func NewWebhookArchive(client objectPutter, bucket string) WebhookArchive {
	if bucket == "" || client == nil {
		return nopArchive{}
	}
	return &s3Archive{client: client, bucket: bucket, now: time.Now}
}

func (a *s3Archive) Store(ctx context.Context, provider string, payload []byte) (string, error) {
	key := fmt.Sprintf("webhooks/%s/%s/%s.json", provider, a.now().UTC().Format("2006/01/02"), uuid.NewString())
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("archive %s webhook to s3://%s/%s: %w", provider, a.bucket, key, err)
	}
	return key, nil
}

type nopArchive struct{}

func (nopArchive) Store(context.Context, string, []byte) (string, error) { return "", nil }
