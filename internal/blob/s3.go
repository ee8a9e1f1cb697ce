package blob

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Config configura el backend S3.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string // vacío = endpoint de AWS
	BaseURL  string
	Prefix   string
	// Credenciales estáticas; vacías = cadena por defecto del SDK
	// (env, shared config, IAM role).
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// s3API es el subconjunto del cliente que usamos (permite fakes en tests).
type s3API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store borra objetos de un bucket S3.
type S3Store struct {
	client s3API
	bucket string
	keys   KeyOptions
}

// NewS3 construye el cliente con la configuración por defecto del SDK
// más los overrides de cfg.
func NewS3(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("blob: s3 bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("blob: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newS3WithClient(client, cfg), nil
}

func newS3WithClient(client s3API, cfg S3Config) *S3Store {
	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		keys: KeyOptions{
			BaseURL:   cfg.BaseURL,
			Bucket:    cfg.Bucket,
			PathStyle: cfg.UsePathStyle,
			Prefix:    cfg.Prefix,
		},
	}
}

func (s *S3Store) Name() string { return "s3" }

// Delete borra el objeto referenciado por ref (URL o clave).
// DeleteObject de S3 es idempotente y no distingue ausencia, por eso se
// consulta HeadObject antes.
func (s *S3Store) Delete(ctx context.Context, ref string) error {
	key, err := KeyFromRef(ref, s.keys)
	if err != nil {
		return err
	}

	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return mapS3Err(key, err)
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return mapS3Err(key, err)
	}
	return nil
}

func mapS3Err(key string, err error) error {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
	}
	return fmt.Errorf("blob: s3 delete %s: %w", key, err)
}
