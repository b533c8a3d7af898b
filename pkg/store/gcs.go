// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"cloud.google.com/go/storage"

	"github.com/jllopis/flakewatch/pkg/errors"
	"github.com/jllopis/flakewatch/pkg/model"
)

// GCSStore keeps the failure and cluster documents as JSON objects in a
// Google Cloud Storage bucket. Credentials come from the ambient
// GOOGLE_APPLICATION_CREDENTIALS environment.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string

	Now func() time.Time
}

// NewGCSStore creates a GCS-backed store for the given bucket and object
// prefix.
func NewGCSStore(ctx context.Context, bucket, prefix string) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New(errors.CodeConfig, "gcs store requires a bucket", nil)
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, gcsErr("create client", err)
	}
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}, nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *GCSStore) object(name string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(path.Join(s.prefix, name))
}

func (s *GCSStore) readDoc(ctx context.Context, name string, out interface{}) (bool, error) {
	reader, err := s.object(name).NewReader(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return false, nil
		}
		return false, gcsErr("open "+name, err)
	}
	defer reader.Close()

	payload, err := io.ReadAll(reader)
	if err != nil {
		return false, gcsErr("read "+name, err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return false, gcsErr("decode "+name, err)
	}
	return true, nil
}

func (s *GCSStore) writeDoc(ctx context.Context, name string, value interface{}) error {
	writer := s.object(name).NewWriter(ctx)
	writer.ContentType = "application/json"
	payload, err := json.Marshal(value)
	if err != nil {
		return gcsErr("encode "+name, err)
	}
	if _, err := writer.Write(payload); err != nil {
		writer.Close()
		return gcsErr("write "+name, err)
	}
	if err := writer.Close(); err != nil {
		return gcsErr("flush "+name, err)
	}
	return nil
}

// SaveFailures appends records to the failures document.
func (s *GCSStore) SaveFailures(ctx context.Context, failures []model.TestFailure) error {
	var existing []model.TestFailure
	if _, err := s.readDoc(ctx, FailuresCollection+".json", &existing); err != nil {
		return err
	}
	existing = append(existing, failures...)
	return s.writeDoc(ctx, FailuresCollection+".json", existing)
}

// FetchFailures returns failures within the past days, in document order.
func (s *GCSStore) FetchFailures(ctx context.Context, days int) ([]model.TestFailure, error) {
	var all []model.TestFailure
	if _, err := s.readDoc(ctx, FailuresCollection+".json", &all); err != nil {
		return nil, err
	}
	cutoff := s.now().AddDate(0, 0, -days)
	var out []model.TestFailure
	for _, f := range all {
		if !f.Timestamp.Before(cutoff) {
			out = append(out, f)
		}
	}
	return out, nil
}

// SaveClusters replaces the cluster document with the ranked pass output.
func (s *GCSStore) SaveClusters(ctx context.Context, clusters []model.FailureCluster) error {
	return s.writeDoc(ctx, ClustersCollection+".json", clusters)
}

// FetchClusters reads the cluster document back.
func (s *GCSStore) FetchClusters(ctx context.Context, limit int) ([]model.FailureCluster, error) {
	var out []model.FailureCluster
	if _, err := s.readDoc(ctx, ClustersCollection+".json", &out); err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func gcsErr(op string, err error) error {
	return errors.New(errors.CodeStorage, fmt.Sprintf("gcs store: %s", op), err)
}
