package zilliz

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/hybrid-rag/backend/internal/retrieval"
	"github.com/hybrid-rag/backend/pkg/circuitbreaker"
	"github.com/hybrid-rag/backend/pkg/logger"
)

const (
	fieldChunkID   = "chunk_id"
	fieldSourceID  = "source_id"
	fieldEmbedding = "embedding"
)

type Config struct {
	Endpoint       string
	APIKey         string
	CollectionName string
	VectorDim      int
	NList          int
	NProbe         int
}

// Client is the Milvus/Zilliz backed semantic index. It only reads during
// retrieval; CreateCollection and Insert belong to the index owner.
type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
	nlist          int
	nprobe         int
	cb             *circuitbreaker.CircuitBreaker
}

var _ retrieval.SemanticIndex = (*Client)(nil)

type VectorRecord struct {
	ChunkID   string
	SourceID  string
	Embedding []float32
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	c, err := client.NewClient(ctx, client.Config{
		Address: cfg.Endpoint,
		APIKey:  cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	if cfg.NList <= 0 {
		cfg.NList = 1024
	}
	if cfg.NProbe <= 0 {
		cfg.NProbe = 16
	}

	cb := circuitbreaker.NewCircuitBreaker("zilliz", circuitbreaker.Config{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          20 * time.Second,
		FailureThreshold: 5,
		Logger:           logger.GetLogger(),
	})

	logger.Info("Zilliz/Milvus client initialized",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("collection", cfg.CollectionName),
	)

	return &Client{
		client:         c,
		collectionName: cfg.CollectionName,
		vectorDim:      cfg.VectorDim,
		nlist:          cfg.NList,
		nprobe:         cfg.NProbe,
		cb:             cb,
	}, nil
}

func (z *Client) Close() error {
	return z.client.Close()
}

func (z *Client) Ping(ctx context.Context) error {
	has, err := z.client.HasCollection(ctx, z.collectionName)
	if err != nil {
		return fmt.Errorf("failed to reach milvus: %w", err)
	}
	if !has {
		return fmt.Errorf("collection %s does not exist", z.collectionName)
	}
	return nil
}

// CreateCollection creates and loads the collection, or loads it when it
// already exists.
func (z *Client) CreateCollection(ctx context.Context) error {
	has, err := z.client.HasCollection(ctx, z.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", z.collectionName))
		if err := z.client.LoadCollection(ctx, z.collectionName, false); err != nil {
			return fmt.Errorf("failed to load collection: %w", err)
		}
		return nil
	}

	schema := &entity.Schema{
		CollectionName: z.collectionName,
		Description:    "Chunk embeddings for hybrid retrieval",
		Fields: []*entity.Field{
			{
				Name:       fieldChunkID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "128",
				},
			},
			{
				Name:     fieldSourceID,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "256",
				},
			},
			{
				Name:     fieldEmbedding,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(z.vectorDim),
				},
			},
		},
	}

	err = z.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.COSINE, z.nlist)
	if err != nil {
		return fmt.Errorf("failed to build index params: %w", err)
	}
	err = z.client.CreateIndex(ctx, z.collectionName, fieldEmbedding, idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = z.client.LoadCollection(ctx, z.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", z.collectionName))

	return nil
}

func (z *Client) Insert(ctx context.Context, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	chunkIDs := make([]string, len(records))
	sourceIDs := make([]string, len(records))
	embeddings := make([][]float32, len(records))

	for i, r := range records {
		if len(r.Embedding) != z.vectorDim {
			return fmt.Errorf("chunk %s has dimension %d, collection expects %d", r.ChunkID, len(r.Embedding), z.vectorDim)
		}
		chunkIDs[i] = r.ChunkID
		sourceIDs[i] = r.SourceID
		embeddings[i] = r.Embedding
	}

	_, err := z.client.Insert(
		ctx,
		z.collectionName,
		"",
		entity.NewColumnVarChar(fieldChunkID, chunkIDs),
		entity.NewColumnVarChar(fieldSourceID, sourceIDs),
		entity.NewColumnFloatVector(fieldEmbedding, z.vectorDim, embeddings),
	)
	if err != nil {
		return fmt.Errorf("failed to insert vectors: %w", err)
	}

	err = z.client.Flush(ctx, z.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Vectors inserted", zap.Int("count", len(records)))

	return nil
}

// Search returns the k nearest chunks by cosine similarity.
func (z *Client) Search(ctx context.Context, vector []float32, k int) ([]retrieval.Hit, error) {
	if k <= 0 || len(vector) == 0 {
		return nil, nil
	}
	if len(vector) != z.vectorDim {
		return nil, fmt.Errorf("query vector has dimension %d, collection expects %d", len(vector), z.vectorDim)
	}

	sp, err := entity.NewIndexIvfFlatSearchParam(z.nprobe)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	var results []client.SearchResult
	err = z.cb.Execute(ctx, func() error {
		var searchErr error
		results, searchErr = z.client.Search(
			ctx,
			z.collectionName,
			[]string{},
			"",
			[]string{fieldChunkID},
			[]entity.Vector{entity.FloatVector(vector)},
			fieldEmbedding,
			entity.COSINE,
			k,
			sp,
		)
		return searchErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	hits, err := hitsFromResults(results)
	if err != nil {
		return nil, err
	}

	logger.Debug("Vector search completed",
		zap.Int("top_k", k),
		zap.Int("results", len(hits)),
	)

	return hits, nil
}

func hitsFromResults(results []client.SearchResult) ([]retrieval.Hit, error) {
	hits := make([]retrieval.Hit, 0)
	for _, sr := range results {
		if sr.Err != nil {
			return nil, fmt.Errorf("failed to search: %w", sr.Err)
		}
		col := sr.Fields.GetColumn(fieldChunkID)
		if col == nil {
			return nil, fmt.Errorf("search result is missing %s", fieldChunkID)
		}
		for i := 0; i < sr.ResultCount && i < len(sr.Scores); i++ {
			raw, err := col.Get(i)
			if err != nil {
				return nil, fmt.Errorf("failed to read chunk id: %w", err)
			}
			id, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("chunk id has type %T", raw)
			}
			hits = append(hits, retrieval.Hit{
				ChunkID:    id,
				Similarity: float64(sr.Scores[i]),
			})
		}
	}
	return hits, nil
}
