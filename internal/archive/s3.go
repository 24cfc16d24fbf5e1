package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Archive stores snapshots as S3 objects. The version marker is a small
// companion object next to the snapshot:
//
//	<prefix>/<name>
//	<prefix>/<name>.version
type S3Archive struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

var _ Archive = (*S3Archive)(nil)

// NewS3Archive creates an archive over the given bucket. Credentials come
// from the default AWS credential chain.
func NewS3Archive(ctx context.Context, bucket, prefix, region string) (*S3Archive, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Archive{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
	}, nil
}

func (a *S3Archive) key(name string) string {
	return path.Join(a.prefix, name)
}

func (a *S3Archive) Put(ctx context.Context, name string, r io.Reader, size int64, version int64) error {
	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(name)),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("uploading snapshot: %w", err)
	}

	versionData := strconv.FormatInt(version, 10)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(name) + ".version"),
		Body:   strings.NewReader(versionData),
	})
	if err != nil {
		return fmt.Errorf("uploading version marker: %w", err)
	}
	return nil
}

func (a *S3Archive) Get(ctx context.Context, name string, w io.Writer) error {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(name)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return fmt.Errorf("snapshot not found: %s", name)
		}
		return fmt.Errorf("downloading snapshot: %w", err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}
	return nil
}

func (a *S3Archive) Version(ctx context.Context, name string) (int64, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(name) + ".version"),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return 0, nil
		}
		return 0, fmt.Errorf("downloading version marker: %w", err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, out.Body); err != nil {
		return 0, fmt.Errorf("reading version marker: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(buf.String()), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

func (a *S3Archive) ValidateSetup(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", a.bucket, err)
	}
	return nil
}
