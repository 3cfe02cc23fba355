// Package backup exports the local store to S3-compatible object storage.
//
// A snapshot holds every record of every offline-capable kind together with
// its sync metadata, so queued changes that never reached the remote store
// are preserved as well.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/schoolkeeper/internal/client/models"
	"github.com/dmitrijs2005/schoolkeeper/internal/client/repositories/records"
	"github.com/google/uuid"
)

// ErrNotConfigured is returned when no bucket is set.
var ErrNotConfigured = errors.New("backup storage is not configured")

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// Config describes the target bucket.
type Config struct {
	Region   string
	User     string
	Password string
	Endpoint string
	Bucket   string
}

// NewS3Client builds a client for cfg. A custom endpoint (MinIO and the like)
// switches to path-style addressing.
func NewS3Client(ctx context.Context, cfg Config) (*s3.Client, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.User, cfg.Password, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	return newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// ObjectPutter is the part of *s3.Client the exporter uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Record struct {
	ID           string            `json:"id"`
	SyncStatus   models.SyncStatus `json:"syncStatus"`
	Operation    models.Operation  `json:"operation"`
	LastModified time.Time         `json:"lastModified"`
	Revision     int64             `json:"revision"`
	Fields       models.Fields     `json:"fields"`
}

type Snapshot struct {
	CreatedAt time.Time                `json:"createdAt"`
	Kinds     map[models.Kind][]Record `json:"kinds"`
}

// Count returns the number of records in the snapshot.
func (s Snapshot) Count() int {
	n := 0
	for _, recs := range s.Kinds {
		n += len(recs)
	}
	return n
}

type Exporter struct {
	stores []records.Repository
	putter ObjectPutter
	bucket string
	now    func() time.Time
}

func NewExporter(stores []records.Repository, putter ObjectPutter, bucket string) *Exporter {
	return &Exporter{stores: stores, putter: putter, bucket: bucket, now: time.Now}
}

// ObjectKey returns a fresh key under snapshots/<year>/<month>/<day>/.
func ObjectKey(t time.Time) string {
	return fmt.Sprintf("snapshots/%d/%d/%d/%v.json", t.Year(), t.Month(), t.Day(), uuid.New())
}

// Snapshot reads every store.
func (e *Exporter) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		CreatedAt: e.now().UTC(),
		Kinds:     make(map[models.Kind][]Record, len(e.stores)),
	}
	for _, st := range e.stores {
		recs, err := st.ListAll(ctx)
		if err != nil {
			return Snapshot{}, err
		}
		out := make([]Record, 0, len(recs))
		for _, r := range recs {
			out = append(out, Record{
				ID:           r.ID,
				SyncStatus:   r.SyncStatus,
				Operation:    r.Operation,
				LastModified: r.LastModified,
				Revision:     r.Revision,
				Fields:       r.Fields,
			})
		}
		snap.Kinds[st.Kind()] = out
	}
	return snap, nil
}

// Export uploads a snapshot and returns its object key.
func (e *Exporter) Export(ctx context.Context) (string, Snapshot, error) {
	if e.bucket == "" || e.putter == nil {
		return "", Snapshot{}, ErrNotConfigured
	}

	snap, err := e.Snapshot(ctx)
	if err != nil {
		return "", Snapshot{}, fmt.Errorf("failed to read local store: %w", err)
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return "", Snapshot{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	key := ObjectKey(snap.CreatedAt)
	_, err = e.putter.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", Snapshot{}, fmt.Errorf("failed to upload snapshot: %w", err)
	}
	return key, snap, nil
}
