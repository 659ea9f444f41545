package main

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"ragqa/internal/chunker"
	"ragqa/internal/config"
	"ragqa/internal/domain"
	"ragqa/internal/embedding"
	"ragqa/internal/embedding/hashing"
	"ragqa/internal/embedding/openai"
	"ragqa/internal/extract"
	"ragqa/internal/generator"
	"ragqa/internal/service"
	"ragqa/internal/summarizer"
	"ragqa/internal/vectorstore"
	"ragqa/internal/vectorstore/memory"
	"ragqa/internal/vectorstore/qdrant"
	"ragqa/internal/vectorstore/sqlite"
)

// app is the assembled set of components shared by every command.
type app struct {
	cfg    *config.AppConfig
	logger *zap.Logger
	store  vectorstore.Storage
	svc    *service.Service
}

func buildApp(cfg *config.AppConfig, logger *zap.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	apiKey, baseURL, err := cfg.Credentials()
	if err != nil {
		return nil, err
	}

	gen, err := generator.NewOpenAI(generator.Config{
		APIKey:      apiKey,
		BaseURL:     baseURL,
		Model:       cfg.Generator.Model,
		Temperature: cfg.Generator.Temperature,
		Timeout:     time.Duration(cfg.Generator.TimeoutSecs) * time.Second,
		MaxRetries:  cfg.Generator.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("generator init failed: %w", err)
	}

	emb, err := newEmbedder(cfg, apiKey, baseURL)
	if err != nil {
		return nil, err
	}
	if cfg.Embedder.CacheSize > 0 {
		emb = embedding.WithCache(emb, cfg.Embedder.CacheSize)
	}

	st, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	var sum domain.Summarizer
	switch cfg.Summarizer.Type {
	case "frequency":
		sum = summarizer.NewFrequencySummarizer()
	case "none":
	default:
		_ = st.Close()
		return nil, fmt.Errorf("unknown summarizer: %s", cfg.Summarizer.Type)
	}

	svc := service.NewService(
		extract.New(),
		chunker.NewParagraphChunker(cfg.Chunker.MaxSize, cfg.Chunker.Overlap),
		emb,
		st,
		gen,
		sum,
		service.Options{TopK: cfg.Retrieval.TopK, SummarySentences: cfg.Summarizer.MaxSentences},
		logger,
	)
	logger.Info("components ready",
		zap.String("embedder", emb.Name()),
		zap.String("vector_store", cfg.VectorStore.Type),
		zap.String("model", gen.ModelName()))
	return &app{cfg: cfg, logger: logger, store: st, svc: svc}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func newEmbedder(cfg *config.AppConfig, apiKey, baseURL string) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "hashing":
		return hashing.NewEmbedder(cfg.Embedder.Hashing.Dimension), nil
	case "openai":
		o := cfg.Embedder.OpenAI
		key := os.Getenv(o.APIKeyEnv)
		if key == "" {
			key = apiKey
		}
		url := o.BaseURL
		if url == "" {
			url = baseURL
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:    url,
			APIKey:     key,
			Model:      o.Model,
			Timeout:    time.Duration(o.TimeoutSecs) * time.Second,
			BatchSize:  o.BatchSize,
			MaxRetries: o.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
}

func newStore(cfg *config.AppConfig) (vectorstore.Storage, error) {
	switch cfg.VectorStore.Type {
	case "sqlite":
		st, err := sqlite.Open(cfg.VectorStore.SQLite.Dir, cfg.VectorStore.SQLite.Collection)
		if err != nil {
			return nil, fmt.Errorf("open index: %w", err)
		}
		return st, nil
	case "memory":
		return memory.NewStorage(), nil
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		return qdrant.NewStorage(qdrant.Config{
			URL:        q.URL,
			APIKey:     q.APIKey,
			Collection: q.Collection,
			Distance:   q.Distance,
			Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}
}
