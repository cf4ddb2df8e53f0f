package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/parquet-go/parquet-go"
)

// Putter is the part of the S3 client used for uploads.
type Putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Batch is a set of rows written as one parquet file, partitioned by date.
type Batch[T any] struct {
	Rows []T
	Name string
	Date civil.Date
}

func WriteRows[T any](rows []T, output io.Writer) error {
	writer := parquet.NewGenericWriter[T](output)

	if _, err := writer.Write(rows); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write records: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}

	return nil
}

// datePath returns yyyy/mm/dd joined with sep.
func datePath(d civil.Date, sep string) string {
	return fmt.Sprintf("%04d%s%02d%s%02d", d.Year, sep, int(d.Month), sep, d.Day)
}

func StoreToPath[T any](ctx context.Context, batch *Batch[T], basepath string) (string, error) {
	path := filepath.Join(basepath, datePath(batch.Date, string(filepath.Separator)))

	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return "", err
	}

	outPath := filepath.Join(path, batch.Name+".parquet")

	file, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if err := WriteRows(batch.Rows, file); err != nil {
		return "", err
	}

	return outPath, nil
}

type S3Path struct {
	Bucket string
	Prefix string
}

func (p *S3Path) String() string {
	if p.Prefix == "" {
		return "s3://" + p.Bucket
	}
	return "s3://" + p.Bucket + "/" + p.Prefix
}

func ParseS3(path string) (*S3Path, error) {
	if !strings.HasPrefix(path, "s3://") {
		return nil, fmt.Errorf("path must start with s3://")
	}

	path = strings.TrimPrefix(path, "s3://")
	parts := strings.SplitN(path, "/", 2)

	bucket := parts[0]
	if bucket == "" {
		return nil, fmt.Errorf("missing bucket in s3 path")
	}

	var prefix string
	if len(parts) > 1 {
		prefix = strings.TrimSuffix(parts[1], "/")
	}

	return &S3Path{
		Bucket: bucket,
		Prefix: prefix,
	}, nil
}

// ObjectKey is the key a batch is stored under within dst.
func ObjectKey(dst *S3Path, name string, date civil.Date) string {
	key := fmt.Sprintf("%s/%s.parquet", datePath(date, "/"), name)
	if dst.Prefix != "" {
		key = dst.Prefix + "/" + key
	}
	return key
}

func StoreToS3[T any](ctx context.Context, batch *Batch[T], client Putter, dst *S3Path) (string, error) {
	tmp, err := os.CreateTemp("", "duals-*.parquet")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %v", err)
	}
	defer tmp.Close()
	defer os.Remove(tmp.Name())

	if err := WriteRows(batch.Rows, tmp); err != nil {
		return "", err
	}

	if _, err := tmp.Seek(0, 0); err != nil {
		return "", fmt.Errorf("failed to seek to start of file: %w", err)
	}

	key := ObjectKey(dst, batch.Name, batch.Date)

	input := &s3.PutObjectInput{
		Bucket: aws.String(dst.Bucket),
		Key:    aws.String(key),
		Body:   tmp,
	}

	if _, err := client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload file to s3://%s/%s: %w", dst.Bucket, key, err)
	}

	return fmt.Sprintf("s3://%s/%s", dst.Bucket, key), nil
}

// NewS3Client loads the shared AWS config, using profile unless it is empty
// or "default".
func NewS3Client(ctx context.Context, profile string) (*s3.Client, error) {
	var (
		cfg aws.Config
		err error
	)
	if profile == "" || profile == "default" {
		cfg, err = config.LoadDefaultConfig(ctx)
	} else {
		cfg, err = config.LoadDefaultConfig(ctx, config.WithSharedConfigProfile(profile))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %v", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// Store writes the batch to an s3:// destination or a local directory.
func Store[T any](ctx context.Context, batch *Batch[T], dst, profile string) (string, error) {
	if s3Path, _ := ParseS3(dst); s3Path != nil {
		client, err := NewS3Client(ctx, profile)
		if err != nil {
			return "", err
		}
		return StoreToS3(ctx, batch, client, s3Path)
	}
	return StoreToPath(ctx, batch, dst)
}
