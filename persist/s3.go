package persist

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/brettbedarf/treefs/internal/util"
	"github.com/mitchellh/mapstructure"
)

// DefaultS3Key is the object key used when none is configured
const DefaultS3Key = "treefs.snapshot"

// S3API is the subset of the s3 client used by S3Backend
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3BackendConfig are the "s3" storage options
type S3BackendConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Key             string `mapstructure:"key"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"` // i.e. localstack or minio
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// S3Backend keeps the encoded snapshot as a single object
type S3Backend struct {
	client S3API
	bucket string
	key    string
	codec  Codec
}

func openS3Backend(ctx context.Context, opts map[string]any, codec Codec) (Backend, error) {
	var cfg S3BackendConfig
	if err := mapstructure.Decode(opts, &cfg); err != nil {
		return nil, fmt.Errorf("invalid s3 storage options: %w", err)
	}
	if cfg.Bucket == "" {
		return nil, errors.New("s3 storage requires a bucket")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewS3Backend(client, cfg.Bucket, cfg.Key, codec), nil
}

// NewS3Backend wraps an existing client; an empty key selects DefaultS3Key
func NewS3Backend(client S3API, bucket, key string, codec Codec) *S3Backend {
	if key == "" {
		key = DefaultS3Key
	}
	if codec == nil {
		codec = XDRCodec{}
	}
	return &S3Backend{client: client, bucket: bucket, key: key, codec: codec}
}

func (b *S3Backend) Save(ctx context.Context, snap *Snapshot) error {
	logger := util.GetLogger("S3Backend.Save")

	var buf bytes.Buffer
	if err := b.codec.Encode(&buf, snap); err != nil {
		return err
	}
	size := buf.Len()
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(b.key),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(int64(size)),
	})
	if err != nil {
		return fmt.Errorf("failed to put s3://%s/%s: %w", b.bucket, b.key, err)
	}
	logger.Debug().Str("bucket", b.bucket).Str("key", b.key).Int("bytes", size).Msg("Saved snapshot")
	return nil
}

func (b *S3Backend) Load(ctx context.Context) (*Snapshot, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", b.bucket, b.key, err)
	}
	defer out.Body.Close()
	return b.codec.Decode(out.Body)
}

func (b *S3Backend) Close() error { return nil }
