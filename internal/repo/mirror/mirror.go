package mirror

import (
	"context"

	"github.com/mkrupp/localauth/internal/domain"
)

// Mirror pushes non-secret user fields to a shared remote replica.
// Publishing is best-effort; callers log and drop failures.
type Mirror interface {
	// Publish writes u to the replica, replacing any earlier copy.
	Publish(ctx context.Context, u domain.UserMirror) error

	// Close releases any resources held by the mirror.
	Close() error
}

// MirrorConfig configures the remote replica. An empty Bucket disables mirroring.
type MirrorConfig struct {
	S3 S3MirrorConfig `envPrefix:"S3_"`
}

// NewMirror returns an S3Mirror when a bucket is configured, otherwise a NopMirror.
func NewMirror(ctx context.Context, cfg MirrorConfig) (Mirror, error) {
	if cfg.S3.Bucket == "" {
		return NopMirror{}, nil
	}

	return NewS3Mirror(ctx, cfg.S3)
}

// NopMirror discards everything.
type NopMirror struct{}

var _ Mirror = NopMirror{}

func (NopMirror) Publish(context.Context, domain.UserMirror) error { return nil }

func (NopMirror) Close() error { return nil }
