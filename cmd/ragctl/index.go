package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hybrid-rag/backend/internal/cache/redis"
	"github.com/hybrid-rag/backend/internal/ingestion"
	"github.com/hybrid-rag/backend/internal/storage/sqlite"
	"github.com/hybrid-rag/backend/internal/vector/zilliz"
	"github.com/hybrid-rag/backend/pkg/config"
	appLogger "github.com/hybrid-rag/backend/pkg/logger"
)

type indexOptions struct {
	filePath         string
	invalidateCache  bool
	skipVectorWrites bool
}

func indexCMD(loadConfig func() (*config.Config, error)) *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Load pre-chunked, pre-embedded chunks from a JSONL file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runIndex(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.filePath, "file", "", "chunks JSONL file")
	cmd.Flags().BoolVar(&opts.invalidateCache, "invalidate-cache", false, "drop cached embeddings in Redis after loading")
	cmd.Flags().BoolVar(&opts.skipVectorWrites, "skip-vectors", false, "write only the chunk store even when Zilliz is enabled")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runIndex(ctx context.Context, out io.Writer, cfg *config.Config, opts indexOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	f, err := os.Open(opts.filePath)
	if err != nil {
		return fmt.Errorf("failed to open chunks file: %w", err)
	}
	defer f.Close()

	chunks, err := ingestion.ReadJSONL(f)
	if err != nil {
		return err
	}

	store, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.InitSchema(); err != nil {
		return err
	}

	var vectors ingestion.VectorWriter
	if cfg.Zilliz.Enabled && !opts.skipVectorWrites {
		zillizClient, err := zilliz.NewClient(ctx, zilliz.Config{
			Endpoint:       cfg.Zilliz.Endpoint,
			APIKey:         cfg.Zilliz.APIKey,
			CollectionName: cfg.Zilliz.CollectionName,
			VectorDim:      cfg.Zilliz.VectorDim,
			NList:          cfg.Zilliz.NList,
			NProbe:         cfg.Zilliz.NProbe,
		})
		if err != nil {
			return err
		}
		defer zillizClient.Close()

		if err := zillizClient.CreateCollection(ctx); err != nil {
			return err
		}
		vectors = zillizClient
	}

	stats, err := ingestion.NewLoader(store, vectors).Load(ctx, chunks)
	if err != nil {
		return err
	}

	if opts.invalidateCache && cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Skipping cache invalidation", zap.Error(err))
		} else {
			defer redisClient.Close()
			removed, err := redisClient.InvalidateEmbeddings(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Invalidated %d cached embeddings\n", removed)
		}
	}

	_, err = fmt.Fprintf(out, "Loaded %d chunks (%d with embeddings, %d written to the vector index)\n",
		stats.Chunks, stats.Embedded, stats.Indexed)
	return err
}
