package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"tutor/tutor/config"
	"tutor/tutor/sources/psql/models"
	"tutor/tutor/utils/logging"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// ErrStorageDisabled is returned by exports when no object store is configured.
var ErrStorageDisabled = errors.New("transcript storage is not configured")

const defaultRegion = "us-east-1"

type Transcript struct {
	Session    models.ChatSession   `json:"session"`
	Messages   []models.ChatMessage `json:"messages"`
	ExportedAt time.Time            `json:"exportedAt"`
}

type TranscriptStore interface {
	UploadTranscript(ctx context.Context, t Transcript) (string, error)
	GetTranscript(ctx context.Context, key string) (*Transcript, error)
}

type MinIOClient struct {
	client *minio.Client
	bucket string
}

// NewMinIOClient connects and creates the bucket when missing. It returns
// nil, nil when MINIO_ENDPOINT is empty.
func NewMinIOClient(ctx context.Context, cfg config.Config) (*MinIOClient, error) {
	if cfg.MinIOEndpoint == "" {
		logging.AppLogger.Info("transcript storage disabled")
		return nil, nil
	}
	bucket := cfg.MinIOBucket
	client, err := minio.New(
		cfg.MinIOEndpoint,
		&minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
			Secure: cfg.MinIOUseSSL,
			Region: defaultRegion,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: defaultRegion}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
		logging.AppLogger.Info("bucket created", zap.String("bucket", bucket))
	}
	return &MinIOClient{client: client, bucket: bucket}, nil
}

func TranscriptKey(sessionID string, at time.Time) string {
	return path.Join("transcripts", sessionID, fmt.Sprintf("%d.json", at.Unix()))
}

func (m *MinIOClient) UploadTranscript(ctx context.Context, t Transcript) (string, error) {
	if t.ExportedAt.IsZero() {
		t.ExportedAt = time.Now().UTC()
	}
	key := TranscriptKey(t.Session.ID.String(), t.ExportedAt)

	data, err := json.Marshal(t)
	if err != nil {
		return "", err
	}

	_, err = m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("upload transcript: %w", err)
	}
	return key, nil
}

func (m *MinIOClient) GetTranscript(ctx context.Context, key string) (*Transcript, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, err
	}
	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode transcript %s: %w", key, err)
	}
	return &t, nil
}
