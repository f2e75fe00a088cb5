package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mkrupp/localauth/internal/domain"
	"github.com/mkrupp/localauth/internal/infra/logging"
)

// S3MirrorConfig holds the settings for an S3-compatible replica bucket.
type S3MirrorConfig struct {
	Bucket       string `env:"BUCKET"        default:""`
	Prefix       string `env:"PREFIX"        default:"localauth/"`
	Region       string `env:"REGION"        default:"us-east-1"`
	BaseEndpoint string `env:"BASE_ENDPOINT" default:""`
	AccessKey    string `env:"ACCESS_KEY"    default:""`
	SecretKey    string `env:"SECRET_KEY"    default:""`
	UsePathStyle bool   `env:"USE_PATH_STYLE" default:"true"`
}

// S3PutObjectAPI is the subset of the S3 client used by S3Mirror.
type S3PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Mirror stores each user as <prefix>users/<id>.json.
type S3Mirror struct {
	Client S3PutObjectAPI
	Bucket string
	Prefix string
	Log    logging.Logger
}

var _ Mirror = (*S3Mirror)(nil)

// NewS3Mirror builds an S3 client from cfg. Static credentials are used when
// both keys are set, otherwise the default AWS credential chain applies.
func NewS3Mirror(ctx context.Context, cfg S3MirrorConfig) (*S3Mirror, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		}

		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Mirror{
		Client: client,
		Bucket: cfg.Bucket,
		Prefix: cfg.Prefix,
		Log: logging.GetLogger("repo.mirror.s3_mirror").With(
			logging.Group("s3", "bucket", cfg.Bucket, "prefix", cfg.Prefix),
		),
	}, nil
}

// ObjectKey returns the object key for the user with the given id.
func (m *S3Mirror) ObjectKey(id string) string {
	return path.Join(m.Prefix, "users", id+".json")
}

// Publish implements Mirror.Publish.
func (m *S3Mirror) Publish(ctx context.Context, u domain.UserMirror) (err error) {
	key := m.ObjectKey(u.ID)

	defer func() {
		if m.Log == nil {
			return
		}

		log := m.Log.With(logging.Group("object", "key", key))
		if err != nil {
			log.ErrorContext(ctx, "publish failed", "error", err)
		} else {
			log.DebugContext(ctx, "published")
		}
	}()

	body, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	if _, err := m.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return fmt.Errorf("put object: %w", err)
	}

	return nil
}

// Close implements Mirror.Close.
func (m *S3Mirror) Close() error {
	return nil
}
