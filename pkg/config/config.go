package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/hybrid-rag/backend/internal/evaluation"
	"github.com/hybrid-rag/backend/internal/retrieval"
)

const envPrefix = "HYBRID_RAG"

type Config struct {
	Server     ServerConfig
	Zilliz     ZillizConfig
	SQLite     SQLiteConfig
	Redis      RedisConfig
	LLM        LLMConfig
	Cache      CacheConfig
	Retrieval  RetrievalConfig
	Evaluation EvaluationConfig
	RateLimit  RateLimitConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	QueryTimeout   int
	AllowedOrigins []string
	Development    bool
}

type ZillizConfig struct {
	Enabled        bool
	Endpoint       string
	APIKey         string
	CollectionName string
	VectorDim      int
	NList          int
	NProbe         int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type LLMConfig struct {
	BaseURL        string
	Model          string
	APIKey         string
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
	EmbeddingModel string
	// RerankScorer selects the rerank model: "embedding" or "phrase".
	RerankScorer string
}

type CacheConfig struct {
	EmbeddingTTL    int
	CleanupInterval int
}

type RetrievalConfig struct {
	TopK                 int
	SemanticWeight       float64
	LexicalWeight        float64
	SimilarityThreshold  float64
	DiversityCap         int
	CandidatePool        int
	RerankEnabled        bool
	CitationBoostEnabled bool
	CitationBoost        float64
	ExcludeStopwords     bool
	BestEffort           bool
	TimeoutMS            int
}

type EvaluationConfig struct {
	RelevanceThreshold float64
	SupportThreshold   float64
	NGramSize          int
	LengthBandMin      int
	LengthBandMax      int
	KeywordWeight      float64
	LengthBonus        float64
	Segmenter          string
	Workers            int
}

type RateLimitConfig struct {
	Enabled              bool
	MaxRequestsPerMinute int
	Burst                int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func (r RetrievalConfig) ToRetrievalConfig() retrieval.Config {
	return retrieval.Config{
		TopK:                 r.TopK,
		SemanticWeight:       r.SemanticWeight,
		LexicalWeight:        r.LexicalWeight,
		SimilarityThreshold:  r.SimilarityThreshold,
		DiversityCap:         r.DiversityCap,
		CandidatePool:        r.CandidatePool,
		RerankEnabled:        r.RerankEnabled,
		CitationBoostEnabled: r.CitationBoostEnabled,
		CitationBoost:        r.CitationBoost,
		ExcludeStopwords:     r.ExcludeStopwords,
		BestEffort:           r.BestEffort,
	}
}

func (r RetrievalConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutMS) * time.Millisecond
}

func (e EvaluationConfig) ToEvaluationConfig() evaluation.Config {
	return evaluation.Config{
		RelevanceThreshold: e.RelevanceThreshold,
		SupportThreshold:   e.SupportThreshold,
		NGramSize:          e.NGramSize,
		LengthBandMin:      e.LengthBandMin,
		LengthBandMax:      e.LengthBandMax,
		KeywordWeight:      e.KeywordWeight,
		LengthBonus:        e.LengthBonus,
		Segmenter:          e.Segmenter,
	}
}

// Load reads .env (when present), then config.yaml from the usual search
// paths, then HYBRID_RAG_* environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/hybrid-rag")

	return load(v)
}

// LoadFile reads configuration from an explicit YAML file.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Retrieval.ToRetrievalConfig().Validate(); err != nil {
		return nil, fmt.Errorf("retrieval: %w", err)
	}
	if err := config.Evaluation.ToEvaluationConfig().Validate(); err != nil {
		return nil, fmt.Errorf("evaluation: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.bodyLimit", 1048576)
	v.SetDefault("server.queryTimeout", 60)
	v.SetDefault("server.allowedOrigins", []string{})
	v.SetDefault("server.development", false)

	v.SetDefault("zilliz.enabled", false)
	v.SetDefault("zilliz.endpoint", "localhost:19530")
	v.SetDefault("zilliz.apiKey", "")
	v.SetDefault("zilliz.collectionName", "chunks")
	v.SetDefault("zilliz.vectorDim", 1536)
	v.SetDefault("zilliz.nList", 1024)
	v.SetDefault("zilliz.nProbe", 16)

	v.SetDefault("sqlite.path", "./data/hybrid-rag.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("llm.baseURL", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.apiKey", "")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.maxTokens", 1024)
	v.SetDefault("llm.timeoutSec", 60)
	v.SetDefault("llm.embeddingModel", "text-embedding-3-small")
	v.SetDefault("llm.rerankScorer", "embedding")

	v.SetDefault("cache.embeddingTTL", 86400)
	v.SetDefault("cache.cleanupInterval", 600)

	defaults := retrieval.DefaultConfig()
	v.SetDefault("retrieval.topK", defaults.TopK)
	v.SetDefault("retrieval.semanticWeight", defaults.SemanticWeight)
	v.SetDefault("retrieval.lexicalWeight", defaults.LexicalWeight)
	v.SetDefault("retrieval.similarityThreshold", defaults.SimilarityThreshold)
	v.SetDefault("retrieval.diversityCap", defaults.DiversityCap)
	v.SetDefault("retrieval.candidatePool", defaults.CandidatePool)
	v.SetDefault("retrieval.rerankEnabled", defaults.RerankEnabled)
	v.SetDefault("retrieval.citationBoostEnabled", defaults.CitationBoostEnabled)
	v.SetDefault("retrieval.citationBoost", defaults.CitationBoost)
	v.SetDefault("retrieval.excludeStopwords", defaults.ExcludeStopwords)
	v.SetDefault("retrieval.bestEffort", defaults.BestEffort)
	v.SetDefault("retrieval.timeoutMS", 5000)

	eval := evaluation.DefaultConfig()
	v.SetDefault("evaluation.relevanceThreshold", eval.RelevanceThreshold)
	v.SetDefault("evaluation.supportThreshold", eval.SupportThreshold)
	v.SetDefault("evaluation.nGramSize", eval.NGramSize)
	v.SetDefault("evaluation.lengthBandMin", eval.LengthBandMin)
	v.SetDefault("evaluation.lengthBandMax", eval.LengthBandMax)
	v.SetDefault("evaluation.keywordWeight", eval.KeywordWeight)
	v.SetDefault("evaluation.lengthBonus", eval.LengthBonus)
	v.SetDefault("evaluation.segmenter", eval.Segmenter)
	v.SetDefault("evaluation.workers", 4)

	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.maxRequestsPerMinute", 60)
	v.SetDefault("rateLimit.burst", 10)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
