package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3TableState reads the table from a single S3 object.
type S3TableState struct {
	client objectGetter
	bucket string
	key    string
}

func NewS3TableState(client objectGetter, bucket, key string) *S3TableState {
	return &S3TableState{client: client, bucket: bucket, key: key}
}

func (s *S3TableState) Load(ctx context.Context) ([]byte, error) {
	uri := fmt.Sprintf("s3://%s/%s", s.bucket, s.key)

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get nutrition table %s: %w", uri, err)
	}
	defer out.Body.Close()

	return readLimited(out.Body, uri)
}
