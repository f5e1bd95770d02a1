package aws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"

	"github.com/voidshard/compositor"
)

// api is the part of *s3.Client the store uses.
type api interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type s3Store struct {
	client api
	bucket string
	prefix string
}

// NewStore creates a render store keeping one PNG object per key in bucket,
// under prefix. Credentials and region come from the default AWS config chain.
func NewStore(ctx context.Context, bucket, prefix string) (compositor.Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return newStore(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func newStore(client api, bucket, prefix string) *s3Store {
	return &s3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *s3Store) objectKey(key string) string {
	return path.Join(s.prefix, compositor.FileName(key))
}

// owns is true for object keys the store writes: a render file name directly
// under the prefix.
func (s *s3Store) owns(object string) bool {
	name := path.Base(object)
	return compositor.IsFileName(name) && object == path.Join(s.prefix, name)
}

// Path implements compositor.Store
func (s *s3Store) Path(key string) string {
	return "s3://" + s.bucket + "/" + s.objectKey(key)
}

// Load implements compositor.Store
func (s *s3Store) Load(ctx context.Context, key string) (image.Image, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", compositor.ErrNotStored, key)
		}
		return nil, fmt.Errorf("failed to get render %s: %w", key, err)
	}
	defer resp.Body.Close()

	img, err := png.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode render %s: %w", key, err)
	}
	return img, nil
}

// Save implements compositor.Store. A PutObject replaces the object whole,
// readers never see part of it.
func (s *s3Store) Save(ctx context.Context, key string, img image.Image) error {
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("image/png"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload render %s: %w", key, err)
	}
	return nil
}

// Remove implements compositor.Store
func (s *s3Store) Remove(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete render %s: %w", key, err)
	}
	return nil
}

// Clear implements compositor.Store, deleting every render under the prefix.
// Other objects in the bucket are left alone, also when the prefix is empty.
func (s *s3Store) Clear(ctx context.Context) error {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix + "/")
	}

	deleted := 0
	pages := s3.NewListObjectsV2Paginator(s.client, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list renders: %w", err)
		}
		for _, obj := range page.Contents {
			if !s.owns(aws.ToString(obj.Key)) {
				continue
			}
			_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    obj.Key,
			})
			if err != nil {
				return fmt.Errorf("failed to delete %s: %w", aws.ToString(obj.Key), err)
			}
			deleted++
		}
	}

	logrus.WithFields(logrus.Fields{"bucket": s.bucket, "prefix": s.prefix, "deleted": deleted}).Info("cleared renders")
	return nil
}
