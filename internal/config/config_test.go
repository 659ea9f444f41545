package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Chunker.MaxSize)
	assert.Equal(t, 100, cfg.Chunker.Overlap)
	assert.Equal(t, "hashing", cfg.Embedder.Type)
	assert.Equal(t, 384, cfg.Embedder.Hashing.Dimension)
	assert.Equal(t, "sqlite", cfg.VectorStore.Type)
	assert.Equal(t, "./data", cfg.VectorStore.SQLite.Dir)
	assert.Equal(t, "doc_chunks", cfg.VectorStore.SQLite.Collection)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Generator.APIKeyEnv)
	assert.Equal(t, "OPENAI_BASE_URL", cfg.Generator.BaseURLEnv)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileOverridesAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
chunker:
  max_size: 200
embedder:
  type: openai
  openai:
    model: nomic-embed-text
vector_store:
  type: qdrant
retrieval:
  top_k: 5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Chunker.MaxSize)
	assert.Equal(t, 100, cfg.Chunker.Overlap)
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "nomic-embed-text", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, 32, cfg.Embedder.OpenAI.BatchSize)
	require.NotNil(t, cfg.VectorStore.Qdrant)
	assert.Equal(t, "http://localhost:6333", cfg.VectorStore.Qdrant.URL)
	assert.Equal(t, "Cosine", cfg.VectorStore.Qdrant.Distance)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunker: [oops"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Server.Addr = ":9999"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*AppConfig){
		"unknown embedder":     func(c *AppConfig) { c.Embedder.Type = "bert" },
		"unknown store":        func(c *AppConfig) { c.VectorStore.Type = "chroma" },
		"unknown summarizer":   func(c *AppConfig) { c.Summarizer.Type = "llm" },
		"negative max size":    func(c *AppConfig) { c.Chunker.MaxSize = -1 },
		"zero upload limit":    func(c *AppConfig) { c.Server.MaxUploadMB = -1 },
		"missing sqlite dir":   func(c *AppConfig) { c.VectorStore.SQLite.Dir = "" },
		"zero hash dimension":  func(c *AppConfig) { c.Embedder.Hashing.Dimension = 0 },
		"negative top k":       func(c *AppConfig) { c.Retrieval.TopK = -2 },
		"negative cache entry": func(c *AppConfig) { c.Embedder.CacheSize = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestCredentials(t *testing.T) {
	cfg := Default()
	cfg.Generator.APIKeyEnv = "RAGQA_TEST_KEY"
	cfg.Generator.BaseURLEnv = "RAGQA_TEST_URL"

	t.Setenv("RAGQA_TEST_KEY", "")
	t.Setenv("RAGQA_TEST_URL", "")
	_, _, err := cfg.Credentials()
	require.ErrorIs(t, err, ErrMissingCredentials)
	assert.Contains(t, err.Error(), "RAGQA_TEST_KEY and RAGQA_TEST_URL")

	t.Setenv("RAGQA_TEST_KEY", "sk-test")
	_, _, err = cfg.Credentials()
	require.ErrorIs(t, err, ErrMissingCredentials)
	assert.NotContains(t, err.Error(), "RAGQA_TEST_KEY")

	t.Setenv("RAGQA_TEST_URL", "http://localhost:11434/v1")
	key, url, err := cfg.Credentials()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", key)
	assert.Equal(t, "http://localhost:11434/v1", url)
}

func TestLoadDefault_WritesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "ragqa", "config.yaml"), path)
	assert.FileExists(t, path)
	assert.Equal(t, Default(), cfg)
}
