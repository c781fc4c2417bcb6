// Package qdrant implements the vector-store capability against a Qdrant
// instance over its gRPC API.
package qdrant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"iirdsrag/internal/domain"
)

// pointNamespace maps content-addressed chunk ids onto the UUID point ids
// Qdrant requires. uuid.NewSHA1 is deterministic, so re-upserting the
// same chunk id always targets the same point.
var pointNamespace = uuid.MustParse("9f2c1b6e-54d7-4c80-9d3a-7a4f8f0e2b11")

// Config contains connection details for a Qdrant vector store.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	Collection string
	UseTLS     bool
}

// Storage is a vectorstore.Storage backed by Qdrant.
type Storage struct {
	client     *qdrant.Client
	collection string
}

func NewStorage(cfg Config) (*Storage, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "iirds"
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, err
	}
	return &Storage{client: client, collection: cfg.Collection}, nil
}

// Init creates the collection if it does not exist yet.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(dimension),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

func (s *Storage) Close() error { return s.client.Close() }

func (s *Storage) Upsert(ctx context.Context, points []domain.ChunkPoint) error {
	if len(points) == 0 {
		return nil
	}
	pts := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		payload := map[string]any{"text": p.Text}
		for k, v := range p.Metadata {
			payload[k] = v
		}
		pts[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.NewSHA1(pointNamespace, []byte(p.ID)).String()),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(payload),
		}
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         pts,
	})
	return err
}

func (s *Storage) Query(ctx context.Context, vector []float32, k int, filter *domain.Filter) ([]domain.SearchHit, error) {
	limit := uint64(k)
	resp, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Limit:          &limit,
		Filter:         compileFilter(filter),
		Query:          qdrant.NewQuery(vector...),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	hits := make([]domain.SearchHit, 0, len(resp))
	for _, r := range resp {
		meta := make(map[string]any, len(r.Payload))
		for key, v := range r.Payload {
			meta[key] = convertValue(v)
		}
		text, _ := meta["text"].(string)
		delete(meta, "text")
		id, _ := meta["chunk_id"].(string)
		hits = append(hits, domain.SearchHit{
			ID:       id,
			Text:     text,
			Metadata: meta,
			// cosine scores are similarities; flip so lower means closer
			Distance: 1 - r.Score,
		})
	}
	return hits, nil
}

func compileFilter(filter *domain.Filter) *qdrant.Filter {
	if filter == nil || len(filter.Must) == 0 {
		return nil
	}
	out := &qdrant.Filter{}
	for _, clause := range filter.Must {
		if clause.In != nil {
			out.Must = append(out.Must, qdrant.NewMatchKeywords(clause.Key, clause.In...))
			continue
		}
		out.Must = append(out.Must, qdrant.NewMatch(clause.Key, clause.Eq))
	}
	return out
}

func convertValue(v *qdrant.Value) any {
	switch val := v.Kind.(type) {
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_NullValue:
		return nil
	case *qdrant.Value_ListValue:
		out := make([]any, len(val.ListValue.Values))
		for i, lv := range val.ListValue.Values {
			out[i] = convertValue(lv)
		}
		return out
	case *qdrant.Value_StructValue:
		out := make(map[string]any)
		for k, nv := range val.StructValue.Fields {
			out[k] = convertValue(nv)
		}
		return out
	}
	return nil
}
