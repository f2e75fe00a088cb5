package mirror_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/localauth/internal/domain"
	"github.com/mkrupp/localauth/internal/repo/mirror"
)

type mockS3 struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.err != nil {
		return nil, m.err
	}

	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	m.inputs = append(m.inputs, in)
	m.bodies = append(m.bodies, body)

	return &s3.PutObjectOutput{}, nil
}

func TestS3MirrorPublish(t *testing.T) {
	t.Parallel()

	client := &mockS3{}
	m := &mirror.S3Mirror{Client: client, Bucket: "users-bucket", Prefix: "localauth/"}

	u := domain.UserMirror{
		ID:        "u1",
		Name:      "Alice",
		Username:  "alice",
		Role:      domain.RoleEditor,
		CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, m.Publish(context.Background(), u))
	require.Len(t, client.inputs, 1)

	in := client.inputs[0]
	assert.Equal(t, "users-bucket", aws.ToString(in.Bucket))
	assert.Equal(t, "localauth/users/u1.json", aws.ToString(in.Key))
	assert.Equal(t, "application/json", aws.ToString(in.ContentType))

	var got domain.UserMirror
	require.NoError(t, json.Unmarshal(client.bodies[0], &got))
	assert.Equal(t, u, got)
	assert.NotContains(t, string(client.bodies[0]), "password")
}

func TestS3MirrorPublishError(t *testing.T) {
	t.Parallel()

	errPut := errors.New("access denied")
	m := &mirror.S3Mirror{Client: &mockS3{err: errPut}, Bucket: "users-bucket"}

	err := m.Publish(context.Background(), domain.UserMirror{ID: "u1"})
	require.ErrorIs(t, err, errPut)
}

func TestS3MirrorObjectKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "", want: "users/u1.json"},
		{prefix: "localauth/", want: "localauth/users/u1.json"},
		{prefix: "a/b", want: "a/b/users/u1.json"},
	}

	for _, tt := range tests {
		m := &mirror.S3Mirror{Prefix: tt.prefix}
		assert.Equal(t, tt.want, m.ObjectKey("u1"))
	}
}

func TestNewMirror(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	m, err := mirror.NewMirror(ctx, mirror.MirrorConfig{})
	require.NoError(t, err)
	assert.IsType(t, mirror.NopMirror{}, m)
	require.NoError(t, m.Publish(ctx, domain.UserMirror{ID: "u1"}))
	require.NoError(t, m.Close())

	m, err = mirror.NewMirror(ctx, mirror.MirrorConfig{S3: mirror.S3MirrorConfig{
		Bucket:       "users-bucket",
		Region:       "us-east-1",
		BaseEndpoint: "http://127.0.0.1:9000",
		AccessKey:    "test",
		SecretKey:    "test",
		UsePathStyle: true,
	}})
	require.NoError(t, err)
	assert.IsType(t, &mirror.S3Mirror{}, m)
}
