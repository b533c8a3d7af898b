// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jllopis/flakewatch/pkg/errors"
	"github.com/jllopis/flakewatch/pkg/model"
)

// FileStore persists failures as JSON lines and clusters as one JSON
// document per keyspace, under a data directory. Timestamps serialize as
// ISO-8601 through the standard time.Time JSON encoding.
type FileStore struct {
	dir string

	Now func() time.Time
}

// NewFileStore creates a file-backed store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *FileStore) failuresPath() string {
	return filepath.Join(s.dir, FailuresCollection+".jsonl")
}

func (s *FileStore) clustersPath() string {
	return filepath.Join(s.dir, ClustersCollection+".json")
}

// SaveFailures appends each record as one JSON line.
func (s *FileStore) SaveFailures(_ context.Context, failures []model.TestFailure) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return storageErr("create data directory", err)
	}
	file, err := os.OpenFile(s.failuresPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return storageErr("open failures file", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	for i := range failures {
		if err := enc.Encode(&failures[i]); err != nil {
			return storageErr("append failure record", err)
		}
	}
	return nil
}

// FetchFailures scans the failures file and returns records within the past
// days, in file order.
func (s *FileStore) FetchFailures(_ context.Context, days int) ([]model.TestFailure, error) {
	file, err := os.Open(s.failuresPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, storageErr("open failures file", err)
	}
	defer file.Close()

	cutoff := s.now().AddDate(0, 0, -days)
	var out []model.TestFailure
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var f model.TestFailure
		if err := json.Unmarshal(scanner.Bytes(), &f); err != nil {
			return nil, storageErr("decode failure record", err)
		}
		if !f.Timestamp.Before(cutoff) {
			out = append(out, f)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, storageErr("scan failures file", err)
	}
	return out, nil
}

// SaveClusters atomically replaces the cluster document.
func (s *FileStore) SaveClusters(_ context.Context, clusters []model.FailureCluster) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return storageErr("create data directory", err)
	}
	payload, err := json.MarshalIndent(clusters, "", "  ")
	if err != nil {
		return storageErr("encode clusters", err)
	}
	tmp := s.clustersPath() + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return storageErr("write clusters file", err)
	}
	if err := os.Rename(tmp, s.clustersPath()); err != nil {
		return storageErr("replace clusters file", err)
	}
	return nil
}

// FetchClusters reads the cluster document back.
func (s *FileStore) FetchClusters(_ context.Context, limit int) ([]model.FailureCluster, error) {
	payload, err := os.ReadFile(s.clustersPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, storageErr("read clusters file", err)
	}
	var out []model.FailureCluster
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, storageErr("decode clusters file", err)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func storageErr(op string, err error) error {
	return errors.New(errors.CodeStorage, fmt.Sprintf("file store: %s", op), err)
}
