// SPDX-License-Identifier: Apache-2.0

// Package qdrant mirrors embedded failures into a qdrant collection so that
// individual failures can be searched by vector similarity after a pass.
package qdrant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jllopis/flakewatch/pkg/model"
)

// DefaultCollection is the qdrant collection used when none is configured.
const DefaultCollection = "flakewatch_failures"

// Sink writes embedded failures into qdrant.
type Sink struct {
	client      pb.PointsClient
	collections pb.CollectionsClient
}

// New connects to a qdrant instance at addr (host:port, gRPC).
func New(addr string) (*Sink, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &Sink{
		client:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
	}, nil
}

// EnsureCollection creates the collection for the given vector size if it
// does not exist yet.
func (s *Sink) EnsureCollection(ctx context.Context, name string, vectorSize uint64) error {
	exists, err := s.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: name})
	if err == nil && exists.GetResult().GetExists() {
		return nil
	}
	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     vectorSize,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection: %w", err)
	}
	return nil
}

// UpsertFailures writes one point per embedded failure. Point ids are
// derived from the failure id so re-runs overwrite rather than duplicate.
func (s *Sink) UpsertFailures(ctx context.Context, collection string, failures []model.EmbeddedFailure) error {
	if len(failures) == 0 {
		return nil
	}
	points := make([]*pb.PointStruct, len(failures))
	for i, f := range failures {
		payload := map[string]*pb.Value{
			"failure_id": stringValue(f.ID),
			"test_title": stringValue(f.TestTitle),
			"file_path":  stringValue(f.TestFilePath),
			"timestamp":  intValue(f.Timestamp.UnixMilli()),
		}
		if f.Metadata != nil && f.Metadata.RunID != "" {
			payload["run_id"] = stringValue(f.Metadata.RunID)
		}

		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{
					Uuid: uuid.NewSHA1(uuid.NameSpaceOID, []byte(f.ID)).String(),
				},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: f.Embedding},
				},
			},
			Payload: payload,
		}
	}

	_, err := s.client.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

func stringValue(v string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
}

func intValue(v int64) *pb.Value {
	return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: v}}
}
