package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Client abstracts the S3 API operations used by [S3Store].
// The [s3.Client] type satisfies this interface.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store implements Store backed by Amazon S3 or any S3-compatible object
// store that supports conditional writes (If-Match / If-None-Match on PUT).
//
// The object ETag serves as the opaque version token. All keys are mapped
// to S3 keys under an optional prefix. The caller is responsible for
// configuring the [s3.Client] with credentials, region, and endpoint;
// transient scoped credentials are an aws.CredentialsProvider concern and
// never surface here.
type S3Store struct {
	client S3Client
	bucket string
	prefix string
}

// NewS3 creates an S3-backed Store.
//
// The client should be pre-configured. Any type satisfying [S3Client] is
// accepted; typically an [s3.Client]. Prefix is prepended to all object
// keys; pass "" for no prefix.
func NewS3(client S3Client, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: strings.TrimSuffix(prefix, "/")}
}

// key builds the full S3 object key for the given store key.
func (s *S3Store) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + "/" + k
}

// unkey strips the store prefix from a full S3 key.
func (s *S3Store) unkey(k string) string {
	if s.prefix == "" {
		return k
	}
	return strings.TrimPrefix(k, s.prefix+"/")
}

func (s *S3Store) Get(ctx context.Context, key string) (*Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		return nil, s.mapErr("get", key, err)
	}
	defer out.Body.Close()
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("blob: get %s: read body: %w", key, err)
	}
	return &Object{
		Body:        body,
		Meta:        out.Metadata,
		ContentType: aws.ToString(out.ContentType),
		Size:        aws.ToInt64(out.ContentLength),
		Version:     etag(out.ETag),
	}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, body []byte, opts *PutOptions) (string, error) {
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
		Body:   bytes.NewReader(body),
	}
	if opts != nil {
		if opts.IfMatch != "" {
			in.IfMatch = aws.String(opts.IfMatch)
		}
		if opts.IfNoneMatch {
			in.IfNoneMatch = aws.String("*")
		}
		if opts.ContentType != "" {
			in.ContentType = aws.String(opts.ContentType)
		}
		if len(opts.Meta) > 0 {
			in.Metadata = opts.Meta
		}
	}
	out, err := s.client.PutObject(ctx, in)
	if err != nil {
		return "", s.mapErr("put", key, err)
	}
	return etag(out.ETag), nil
}

// Delete removes the named object. S3 DeleteObject is already idempotent
// (returns success for missing keys).
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		return s.mapErr("delete", key, err)
	}
	return nil
}

// List pages through ListObjectsV2 and returns all keys under prefix with
// the store prefix stripped.
func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.key(prefix)),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, s.mapErr("list", prefix, err)
		}
		for _, obj := range out.Contents {
			keys = append(keys, s.unkey(aws.ToString(obj.Key)))
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	return keys, nil
}

func (s *S3Store) Head(ctx context.Context, key string) (*Object, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		return nil, s.mapErr("head", key, err)
	}
	return &Object{
		Meta:        out.Metadata,
		ContentType: aws.ToString(out.ContentType),
		Size:        aws.ToInt64(out.ContentLength),
		Version:     etag(out.ETag),
	}, nil
}

// mapErr translates S3 API errors into the package sentinels, preserving
// the original error in the chain.
func (s *S3Store) mapErr(op, key string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("blob: %s %s: %w", op, key, ErrNotFound)
		case "PreconditionFailed", "ConditionalRequestConflict":
			return fmt.Errorf("blob: %s %s: %w", op, key, ErrPreconditionFailed)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return fmt.Errorf("blob: %s %s: %w: %v", op, key, ErrAccessDenied, err)
		}
	}
	return fmt.Errorf("blob: %s %s: %w", op, key, err)
}

// etag normalizes an S3 ETag into a version token. S3 quotes ETags; the
// quotes carry no information and complicate comparisons.
func etag(s *string) string {
	return strings.Trim(aws.ToString(s), `"`)
}

// Compile-time interface check.
var _ Store = (*S3Store)(nil)
