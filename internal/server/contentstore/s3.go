// Package contentstore keeps uploaded documents in S3-compatible object
// storage, addressed by the SHA-256 of their bytes.
package contentstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/docattest/internal/common"
	"github.com/dmitrijs2005/docattest/internal/logging"
)

// MaxUploadSize bounds a single document.
const MaxUploadSize = 32 << 20

const (
	keyPrefix     = "documents/"
	presignExpiry = 15 * time.Minute
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) error {
		_, err := c.PutObject(ctx, in)
		return err
	}

	headObject = func(c *s3.Client, ctx context.Context, in *s3.HeadObjectInput) error {
		_, err := c.HeadObject(ctx, in)
		return err
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// Options configures the S3 connection (MinIO in development).
type Options struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	Bucket       string
}

type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	log     logging.Logger
}

// NewS3Store builds the S3 clients once; requests reuse them.
func NewS3Store(ctx context.Context, opts Options, log logging.Logger) (*S3Store, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Store{
		client:  client,
		presign: newS3PresignClient(client),
		bucket:  opts.Bucket,
		log:     log.With("module", "contentstore"),
	}, nil
}

// ObjectKey is the storage key of a content hash.
func ObjectKey(contentHash string) string {
	return keyPrefix + contentHash
}

// Upload stores the bytes read from r and returns their content hash
// (lowercase hex SHA-256). Uploading identical bytes again is harmless and
// yields the same hash.
func (s *S3Store) Upload(ctx context.Context, r io.Reader, filename string) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return "", common.ErrUploadFailed.Wrap(err, "read upload")
	}
	if len(data) == 0 {
		return "", common.ErrInvalidInput.New("empty file")
	}
	if len(data) > MaxUploadSize {
		return "", common.ErrInvalidInput.Newf("file exceeds %d bytes", MaxUploadSize)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	err = putObject(s.client, ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(ObjectKey(hash)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(http.DetectContentType(data)),
		Metadata:      map[string]string{"filename": filename},
	})
	if err != nil {
		return "", common.ErrUploadFailed.Wrap(err, "put object")
	}

	s.log.Info(ctx, "document uploaded", "content_hash", hash, "size", len(data))
	return hash, nil
}

// PresignedURL returns a short-lived GET URL for viewing the document.
func (s *S3Store) PresignedURL(ctx context.Context, contentHash string) (string, error) {
	req, err := presignGetObject(s.presign, ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ObjectKey(contentHash)),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// Exists reports whether an object is stored under contentHash.
func (s *S3Store) Exists(ctx context.Context, contentHash string) (bool, error) {
	err := headObject(s.client, ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ObjectKey(contentHash)),
	})
	if err == nil {
		return true, nil
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return false, nil
	}
	return false, err
}
