// Package s3 provides meld Client and ObjectStore implementations for AWS S3.
//
// S3 has no compose operation; Client emulates one with a multipart upload whose
// parts are server-side copies of the sources. S3 requires every part except the
// last to be at least 5 MiB, so small sources fail with the service's EntityTooSmall.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/zoobzio/meld"
	"github.com/zoobzio/meld/internal/shared"
)

// Metadata keys understood by Client. Other keys are ignored.
const (
	// MetaVersionID copies a specific version of the component.
	MetaVersionID = "VersionId"

	// MetaIfMatch makes the part copy fail unless the component's ETag matches.
	MetaIfMatch = "IfMatch"
)

// API is the subset of *s3.Client used by this package.
type API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	UploadPart(ctx context.Context, in *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	UploadPartCopy(ctx context.Context, in *s3.UploadPartCopyInput, optFns ...func(*s3.Options)) (*s3.UploadPartCopyOutput, error)
	CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// Client implements meld.Client for S3 using multipart copy.
type Client struct {
	api API
}

// New creates an S3 compose client.
func New(api API) *Client {
	return &Client{api: api}
}

// Compose copies each entry, in order, as one part of a multipart upload to destination.
// The upload is aborted if any part fails.
func (c *Client) Compose(ctx context.Context, entries []meld.Entry, destination, contentType string) error {
	bucket, key, err := meld.SplitPath(destination)
	if err != nil {
		return err
	}

	create := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		create.ContentType = aws.String(contentType)
	}
	upload, err := c.api.CreateMultipartUpload(ctx, create)
	if err != nil {
		return err
	}
	uploadID := aws.ToString(upload.UploadId)

	parts := make([]types.CompletedPart, 0, len(entries))
	for i, e := range entries {
		partNumber := int32(i + 1) //nolint:gosec // bounded by meld.MaxComponents
		in := &s3.UploadPartCopyInput{
			Bucket:     aws.String(bucket),
			Key:        aws.String(key),
			UploadId:   aws.String(uploadID),
			PartNumber: aws.Int32(partNumber),
			CopySource: aws.String(copySource(bucket, e)),
		}
		if etag, ok := e.Metadata[MetaIfMatch]; ok {
			in.CopySourceIfMatch = aws.String(etag)
		}
		out, err := c.api.UploadPartCopy(ctx, in)
		if err != nil {
			c.abort(ctx, bucket, key, uploadID)
			return translate(err)
		}
		var etag *string
		if out.CopyPartResult != nil {
			etag = out.CopyPartResult.ETag
		}
		parts = append(parts, types.CompletedPart{
			ETag:       etag,
			PartNumber: aws.Int32(partNumber),
		})
	}

	_, err = c.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: parts,
		},
	})
	if err != nil {
		c.abort(ctx, bucket, key, uploadID)
		return err
	}
	return nil
}

func (c *Client) abort(ctx context.Context, bucket, key, uploadID string) {
	_, _ = c.api.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
}

// copySource builds the URL-encoded bucket/key[?versionId=] copy source.
func copySource(bucket string, e meld.Entry) string {
	segments := strings.Split(e.Name, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	src := bucket + "/" + strings.Join(segments, "/")
	if v, ok := e.Metadata[MetaVersionID]; ok && v != "" {
		src += "?versionId=" + url.QueryEscape(v)
	}
	return src
}

func translate(err error) error {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: %w", meld.ErrNotFound, err)
	}
	return err
}

// Store implements meld.ObjectStore over S3 GetObject and managed uploads.
type Store struct {
	api      API
	uploader *manager.Uploader
}

// NewStore creates an S3 object store.
func NewStore(api API) *Store {
	return &Store{
		api:      api,
		uploader: manager.NewUploader(api),
	}
}

// Open returns the body of the object at path.
func (s *Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, key, err := meld.SplitPath(path)
	if err != nil {
		return nil, err
	}
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, translate(err)
	}
	return out.Body, nil
}

// Create returns a writer streamed to S3 through a managed upload.
// The upload completes when the writer is closed.
func (s *Store) Create(ctx context.Context, path, contentType string) (io.WriteCloser, error) {
	bucket, key, err := meld.SplitPath(path)
	if err != nil {
		return nil, err
	}
	in := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	return shared.StreamWriter(func(r io.Reader) error {
		in.Body = r
		_, err := s.uploader.Upload(ctx, in)
		return err
	}), nil
}

var (
	_ meld.Client      = (*Client)(nil)
	_ meld.ObjectStore = (*Store)(nil)
	_ API              = (*s3.Client)(nil)
)
